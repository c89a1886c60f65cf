package coordinator

import "errors"

var (
	// ErrRoundMismatch indicates an update computed against a round other
	// than the active one. The participant should fetch the current model
	// and retry.
	ErrRoundMismatch = errors.New("round mismatch")

	// ErrUnregisteredParticipant indicates an update from an unknown participant.
	ErrUnregisteredParticipant = errors.New("participant is not registered")

	// ErrMalformedParameters indicates parameters that do not decode to a
	// model of the coordinator's shape.
	ErrMalformedParameters = errors.New("malformed model parameters")

	// ErrAggregationFailed wraps invariant violations raised while averaging
	// a completed round.
	ErrAggregationFailed = errors.New("aggregation failed")

	ErrMissingParticipantID = errors.New("missing participant id")
	ErrInvalidSampleCount   = errors.New("sample count must be positive")
)
