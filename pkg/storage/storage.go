package storage

import (
	"context"

	"github.com/absmach/fedavg/pkg/fl"
)

// ParticipantRepository persists the participant registry. Save overwrites
// an existing entry with the same ID.
type ParticipantRepository interface {
	Save(ctx context.Context, p fl.Participant) error
	Get(ctx context.Context, id string) (fl.Participant, error)
	List(ctx context.Context) ([]fl.Participant, error)
}
