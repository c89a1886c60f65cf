package model

import "errors"

var (
	// ErrShapeMismatch indicates models (or a batch and a model) whose
	// dimensions do not line up.
	ErrShapeMismatch = errors.New("model shape mismatch")

	// ErrEmptyInput indicates an aggregation or forward pass with nothing to work on.
	ErrEmptyInput = errors.New("empty input")

	// ErrInvalidWeight indicates an aggregation whose weights sum to zero.
	ErrInvalidWeight = errors.New("aggregation weights sum to zero")

	// ErrDeserialization indicates bytes that do not decode to a well formed model.
	ErrDeserialization = errors.New("failed to deserialize model")
)
