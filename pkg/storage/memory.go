package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/absmach/fedavg/pkg/errors"
	"github.com/absmach/fedavg/pkg/fl"
)

type inMemoryParticipants struct {
	sync.Mutex

	data map[string]fl.Participant
}

func NewInMemoryParticipantRepository() ParticipantRepository {
	return &inMemoryParticipants{
		data: make(map[string]fl.Participant),
	}
}

func (s *inMemoryParticipants) Save(_ context.Context, p fl.Participant) error {
	if p.ID == "" {
		return errors.ErrEmptyKey
	}

	s.Lock()
	defer s.Unlock()

	s.data[p.ID] = p

	return nil
}

func (s *inMemoryParticipants) Get(_ context.Context, id string) (fl.Participant, error) {
	if id == "" {
		return fl.Participant{}, errors.ErrEmptyKey
	}

	s.Lock()
	defer s.Unlock()

	if p, ok := s.data[id]; ok {
		return p, nil
	}

	return fl.Participant{}, errors.ErrNotFound
}

func (s *inMemoryParticipants) List(_ context.Context) ([]fl.Participant, error) {
	s.Lock()
	defer s.Unlock()

	participants := make([]fl.Participant, 0, len(s.data))
	for _, p := range s.data {
		participants = append(participants, p)
	}
	sort.Slice(participants, func(i, j int) bool {
		return participants[i].ID < participants[j].ID
	})

	return participants, nil
}
