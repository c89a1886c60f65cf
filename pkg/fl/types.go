package fl

import (
	"time"

	"github.com/absmach/fedavg/pkg/model"
)

// Update is a participant's locally trained model for one round. Params
// holds the encoded model (JSON or CBOR).
type Update struct {
	ParticipantID string   `json:"participant_id" cbor:"participant_id"`
	Round         uint64   `json:"round"          cbor:"round"`
	Params        []byte   `json:"-"              cbor:"parameters"`
	Loss          *float64 `json:"loss,omitempty" cbor:"loss,omitempty"`
}

// Contribution is an update that passed validation and waits for its round
// to complete.
type Contribution struct {
	ParticipantID string
	Model         model.Model
	NumSamples    uint64
	Loss          *float64
	ReceivedAt    time.Time
}

// Status is the observable state of the coordinator.
type Status struct {
	CurrentRound           uint64             `json:"current_round"`
	RegisteredParticipants []string           `json:"registered_participants"`
	PendingUpdates         int                `json:"pending_updates"`
	ParticipantLosses      map[string]float64 `json:"participant_losses"`
	GlobalLoss             *float64           `json:"global_loss,omitempty"`
}

// RoundCompleted is broadcast after a round has been aggregated.
type RoundCompleted struct {
	Round        uint64    `json:"round"`
	NewRound     uint64    `json:"new_round"`
	Participants []string  `json:"participants"`
	TotalSamples uint64    `json:"total_samples"`
	GlobalLoss   *float64  `json:"global_loss,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// Aggregator combines the contributions of a completed round into a new global model.
type Aggregator interface {
	Aggregate(contributions []Contribution) (model.Model, error)
}

// Participant is a registered training agent. SampleCount is its weight in aggregation.
type Participant struct {
	ID           string    `json:"participant_id"`
	SampleCount  uint64    `json:"sample_count"`
	RegisteredAt time.Time `json:"registered_at"`
}
