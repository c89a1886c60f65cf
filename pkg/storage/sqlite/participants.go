package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	pkgerrors "github.com/absmach/fedavg/pkg/errors"
	"github.com/absmach/fedavg/pkg/fl"
)

type dbParticipant struct {
	ID           string    `db:"id"`
	SampleCount  int64     `db:"sample_count"`
	RegisteredAt time.Time `db:"registered_at"`
}

type participantRepo struct {
	db *Database
}

func NewParticipantRepository(db *Database) *participantRepo {
	return &participantRepo{db: db}
}

func (r *participantRepo) Save(ctx context.Context, p fl.Participant) error {
	if p.ID == "" {
		return pkgerrors.ErrEmptyKey
	}
	if p.SampleCount > math.MaxInt64 {
		return fmt.Errorf("%w: sample count %d out of range", pkgerrors.ErrInvalidData, p.SampleCount)
	}

	_, err := r.db.NamedExecContext(ctx,
		`INSERT INTO participants (id, sample_count, registered_at)
		VALUES (:id, :sample_count, :registered_at)
		ON CONFLICT (id) DO UPDATE SET
			sample_count = excluded.sample_count,
			registered_at = excluded.registered_at`,
		dbParticipant{
			ID:           p.ID,
			SampleCount:  int64(p.SampleCount),
			RegisteredAt: p.RegisteredAt.UTC(),
		})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCreate, err)
	}

	return nil
}

func (r *participantRepo) Get(ctx context.Context, id string) (fl.Participant, error) {
	if id == "" {
		return fl.Participant{}, pkgerrors.ErrEmptyKey
	}

	var dbp dbParticipant
	if err := r.db.GetContext(ctx, &dbp, `SELECT id, sample_count, registered_at FROM participants WHERE id = ?`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fl.Participant{}, pkgerrors.ErrNotFound
		}

		return fl.Participant{}, fmt.Errorf("%w: %w", ErrDBQuery, err)
	}

	return toParticipant(dbp), nil
}

func (r *participantRepo) List(ctx context.Context) ([]fl.Participant, error) {
	var rows []dbParticipant
	if err := r.db.SelectContext(ctx, &rows, `SELECT id, sample_count, registered_at FROM participants ORDER BY id`); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDBQuery, err)
	}

	participants := make([]fl.Participant, len(rows))
	for i, row := range rows {
		participants[i] = toParticipant(row)
	}

	return participants, nil
}

func toParticipant(dbp dbParticipant) fl.Participant {
	return fl.Participant{
		ID:           dbp.ID,
		SampleCount:  uint64(dbp.SampleCount),
		RegisteredAt: dbp.RegisteredAt.UTC(),
	}
}
