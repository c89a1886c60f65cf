package model

import "fmt"

// Weighted pairs a model with its aggregation weight, normally the number
// of training samples behind it.
type Weighted struct {
	Model  Model
	Weight uint64
}

// Average returns the weight-proportional elementwise mean of the models:
// Σ model_i · (weight_i / Σ weight_j).
func Average(entries []Weighted) (Model, error) {
	if len(entries) == 0 {
		return Model{}, ErrEmptyInput
	}

	shape := entries[0].Model.Shape()
	var total float64
	for i, e := range entries {
		if err := e.Model.Validate(); err != nil {
			return Model{}, fmt.Errorf("entry %d: %w", i, err)
		}
		if e.Model.Shape() != shape {
			return Model{}, fmt.Errorf("%w: entry %d has shape %s, expected %s", ErrShapeMismatch, i, e.Model.Shape(), shape)
		}
		total += float64(e.Weight)
	}
	if total == 0 {
		return Model{}, ErrInvalidWeight
	}

	weights := make([]float64, shape.Inputs*shape.Outputs)
	bias := make([]float64, shape.Outputs)
	for _, e := range entries {
		share := float64(e.Weight) / total
		for i, v := range e.Model.Weights {
			weights[i] += float64(v) * share
		}
		for i, v := range e.Model.Bias {
			bias[i] += float64(v) * share
		}
	}

	avg := Zeros(shape.Inputs, shape.Outputs)
	for i, v := range weights {
		avg.Weights[i] = float32(v)
	}
	for i, v := range bias {
		avg.Bias[i] = float32(v)
	}

	return avg, nil
}
