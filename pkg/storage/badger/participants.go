package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	pkgerrors "github.com/absmach/fedavg/pkg/errors"
	"github.com/absmach/fedavg/pkg/fl"
)

const participantPrefix = "participant:"

type participantRepo struct {
	db *Database
}

func NewParticipantRepository(db *Database) *participantRepo {
	return &participantRepo{db: db}
}

func (r *participantRepo) Save(_ context.Context, p fl.Participant) error {
	if p.ID == "" {
		return pkgerrors.ErrEmptyKey
	}
	val, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal error: %w", err)
	}

	return r.db.set([]byte(participantPrefix+p.ID), val)
}

func (r *participantRepo) Get(_ context.Context, id string) (fl.Participant, error) {
	if id == "" {
		return fl.Participant{}, pkgerrors.ErrEmptyKey
	}
	val, err := r.db.get([]byte(participantPrefix + id))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return fl.Participant{}, pkgerrors.ErrNotFound
		}

		return fl.Participant{}, err
	}
	var p fl.Participant
	if err := json.Unmarshal(val, &p); err != nil {
		return fl.Participant{}, fmt.Errorf("unmarshal error: %w", err)
	}

	return p, nil
}

func (r *participantRepo) List(_ context.Context) ([]fl.Participant, error) {
	values, err := r.db.listWithPrefix([]byte(participantPrefix))
	if err != nil {
		return nil, err
	}
	participants := make([]fl.Participant, len(values))
	for i, val := range values {
		if err := json.Unmarshal(val, &participants[i]); err != nil {
			return nil, fmt.Errorf("unmarshal error: %w", err)
		}
	}

	return participants, nil
}
