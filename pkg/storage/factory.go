package storage

import (
	"fmt"
	"io"

	"github.com/absmach/fedavg/pkg/storage/badger"
	"github.com/absmach/fedavg/pkg/storage/postgres"
	"github.com/absmach/fedavg/pkg/storage/sqlite"
)

type Config struct {
	Type       string          `env:"FEDAVG_STORAGE_TYPE" envDefault:"memory"`
	BadgerPath string          `env:"FEDAVG_BADGER_PATH"  envDefault:"./data/badger"`
	SQLitePath string          `env:"FEDAVG_SQLITE_PATH"  envDefault:"./data/fedavg.db"`
	Postgres   postgres.Config `envPrefix:"FEDAVG_POSTGRES_"`
}

// NewParticipantRepository opens the configured backend. The returned
// closer is nil for the in-memory backend.
func NewParticipantRepository(cfg Config) (ParticipantRepository, io.Closer, error) {
	switch cfg.Type {
	case "badger":
		db, err := badger.NewDatabase(cfg.BadgerPath)
		if err != nil {
			return nil, nil, err
		}

		return badger.NewParticipantRepository(db), db, nil
	case "sqlite":
		db, err := sqlite.NewDatabase(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}

		return sqlite.NewParticipantRepository(db), db, nil
	case "postgres":
		db, err := postgres.NewDatabase(cfg.Postgres)
		if err != nil {
			return nil, nil, err
		}

		return postgres.NewParticipantRepository(db), db, nil
	case "memory", "":
		return NewInMemoryParticipantRepository(), nil, nil
	default:
		return nil, nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}
