package coordinator

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/absmach/fedavg/pkg/fl"
	"github.com/absmach/fedavg/pkg/storage"
)

// registry is the in-memory view of the participant registry, written
// through to the repository. It has its own lock so registrations never
// wait on model reads or round processing.
type registry struct {
	mu      sync.RWMutex
	entries map[string]fl.Participant
	repo    storage.ParticipantRepository
}

func newRegistry(ctx context.Context, repo storage.ParticipantRepository) (*registry, error) {
	participants, err := repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load participants: %w", err)
	}

	entries := make(map[string]fl.Participant, len(participants))
	for _, p := range participants {
		entries[p.ID] = p
	}

	return &registry{entries: entries, repo: repo}, nil
}

// save inserts or overwrites p and reports whether p.ID is new to the registry.
func (r *registry) save(ctx context.Context, p fl.Participant) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.repo.Save(ctx, p); err != nil {
		return false, err
	}
	_, existed := r.entries[p.ID]
	r.entries[p.ID] = p

	return !existed, nil
}

func (r *registry) sampleCount(id string) (uint64, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.entries[id]

	return p.SampleCount, ok
}

func (r *registry) size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.entries)
}

func (r *registry) ids() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	return ids
}
