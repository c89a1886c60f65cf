// Package coordinator implements the federated averaging coordinator: the
// participant registry, the round state and the global model, together with
// the protocol that aggregates a round once every registered participant
// has reported.
package coordinator

import (
	"context"

	"github.com/absmach/fedavg/pkg/fl"
)

// GlobalModel is an immutable snapshot of the committed global model. Round
// is the round whose updates must be computed against Params.
type GlobalModel struct {
	Round  uint64
	Params []byte
}

// SubmitResult describes what an accepted update did to the round.
type SubmitResult struct {
	Round      uint64 `json:"round"`
	Aggregated bool   `json:"aggregated"`
	NewRound   uint64 `json:"new_round"`
}

type Service interface {
	// Register adds a participant or overwrites its sample count. It may be
	// called at any time, including while a round is in flight.
	Register(ctx context.Context, participantID string, sampleCount uint64) (fl.Participant, error)

	// CurrentModel returns the last committed global model, JSON encoded.
	CurrentModel(ctx context.Context) (GlobalModel, error)

	// SubmitUpdate buffers a participant's update for the current round and
	// aggregates the round when it completes the registered set.
	SubmitUpdate(ctx context.Context, update fl.Update) (SubmitResult, error)

	// Status reports the current round, the registry and training losses.
	Status(ctx context.Context) (fl.Status, error)
}
