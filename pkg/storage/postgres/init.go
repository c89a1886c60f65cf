package postgres

import (
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	migrate "github.com/rubenv/sql-migrate"
)

var (
	ErrDBConnection = errors.New("database connection error")
	ErrDBQuery      = errors.New("database query error")
	ErrCreate       = errors.New("create error")
	ErrMigration    = errors.New("database migration error")
)

type Config struct {
	Host    string `env:"HOST"     envDefault:"localhost"`
	Port    string `env:"PORT"     envDefault:"5432"`
	User    string `env:"USER"     envDefault:"fedavg"`
	Pass    string `env:"PASS"     envDefault:"fedavg"`
	Name    string `env:"NAME"     envDefault:"fedavg"`
	SSLMode string `env:"SSL_MODE" envDefault:"disable"`
}

func (c Config) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s", c.Host, c.Port, c.User, c.Pass, c.Name, c.SSLMode)
}

type Database struct {
	*sqlx.DB
}

func NewDatabase(cfg Config) (*Database, error) {
	db, err := sqlx.Connect("pgx", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDBConnection, err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	database := &Database{DB: db}
	if err := database.Migrate(); err != nil {
		_ = db.Close()

		return nil, err
	}

	return database, nil
}

func (db *Database) Migrate() error {
	migrations := &migrate.MemoryMigrationSource{
		Migrations: []*migrate.Migration{
			{
				Id: "1_create_participants",
				Up: []string{
					`CREATE TABLE IF NOT EXISTS participants (
						id VARCHAR(254) PRIMARY KEY,
						sample_count BIGINT NOT NULL CHECK (sample_count > 0),
						registered_at TIMESTAMPTZ NOT NULL
					)`,
				},
				Down: []string{
					`DROP TABLE IF EXISTS participants`,
				},
			},
		},
	}

	if _, err := migrate.Exec(db.DB.DB, "postgres", migrations, migrate.Up); err != nil {
		return fmt.Errorf("%w: %w", ErrMigration, err)
	}

	return nil
}
