package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	config "github.com/JeroniMan/solana-indexer/configs"
	"github.com/JeroniMan/solana-indexer/internal/common"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"
)

const createCheckpointsTable = `CREATE TABLE IF NOT EXISTS checkpoints (
	stage      TEXT NOT NULL,
	worker_id  TEXT NOT NULL,
	value      JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (stage, worker_id)
)`

type PostgresCheckpointStore struct {
	db  *sql.DB
	cfg *config.PostgresConfig
}

func NewPostgresCheckpointStore(cfg *config.PostgresConfig) (*PostgresCheckpointStore, error) {
	db, err := sql.Open("postgres", postgresConnString(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)

	if cfg.MaxConnLifetime > 0 {
		db.SetConnMaxLifetime(time.Duration(cfg.MaxConnLifetime) * time.Second)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	if _, err := db.Exec(createCheckpointsTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create checkpoints table: %w", err)
	}

	return &PostgresCheckpointStore{db: db, cfg: cfg}, nil
}

func postgresConnString(cfg *config.PostgresConfig) string {
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s",
		cfg.Host, cfg.Port, cfg.Username, cfg.Password, cfg.Database)

	// Default to "require" for security if SSL mode not specified
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "require"
		log.Info().Msg("No SSL mode specified, defaulting to 'require' for secure connection")
	}
	connStr += fmt.Sprintf(" sslmode=%s", sslMode)

	if cfg.ConnectTimeout > 0 {
		connStr += fmt.Sprintf(" connect_timeout=%d", cfg.ConnectTimeout)
	}
	return connStr
}

func (p *PostgresCheckpointStore) ReadCheckpoint(ctx context.Context, stage string, workerID string) (*common.Checkpoint, error) {
	query := `SELECT value FROM checkpoints WHERE stage = $1 AND worker_id = $2`

	var value string
	err := p.db.QueryRowContext(ctx, query, stage, workerID).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read checkpoint %s/%s: %w", stage, workerID, err)
	}
	cp, err := common.StringToCheckpoint(value)
	if err != nil {
		return nil, fmt.Errorf("failed to decode checkpoint %s/%s: %w", stage, workerID, err)
	}
	return &cp, nil
}

func (p *PostgresCheckpointStore) WriteCheckpoint(ctx context.Context, cp common.Checkpoint) error {
	if err := validateCheckpoint(cp); err != nil {
		return err
	}
	value, err := common.CheckpointToString(cp)
	if err != nil {
		return err
	}

	query := `INSERT INTO checkpoints (stage, worker_id, value, updated_at)
	          VALUES ($1, $2, $3, NOW())
	          ON CONFLICT (stage, worker_id)
	          DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`

	if _, err := p.db.ExecContext(ctx, query, cp.Stage, cp.WorkerID, value); err != nil {
		return fmt.Errorf("failed to write checkpoint %s/%s: %w", cp.Stage, cp.WorkerID, err)
	}
	return nil
}

func (p *PostgresCheckpointStore) ListCheckpoints(ctx context.Context, stage string) ([]common.Checkpoint, error) {
	query := `SELECT value FROM checkpoints WHERE stage = $1 ORDER BY worker_id`

	rows, err := p.db.QueryContext(ctx, query, stage)
	if err != nil {
		return nil, fmt.Errorf("failed to list checkpoints for %s: %w", stage, err)
	}
	defer rows.Close()

	checkpoints := []common.Checkpoint{}
	for rows.Next() {
		var value string
		if err := rows.Scan(&value); err != nil {
			return nil, err
		}
		cp, err := common.StringToCheckpoint(value)
		if err != nil {
			return nil, fmt.Errorf("failed to decode checkpoint: %w", err)
		}
		checkpoints = append(checkpoints, cp)
	}
	return checkpoints, rows.Err()
}

func (p *PostgresCheckpointStore) DeleteCheckpoints(ctx context.Context, stage string) (int, error) {
	result, err := p.db.ExecContext(ctx, `DELETE FROM checkpoints WHERE stage = $1`, stage)
	if err != nil {
		return 0, fmt.Errorf("failed to delete checkpoints for %s: %w", stage, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(affected), nil
}

func (p *PostgresCheckpointStore) Close() error {
	return p.db.Close()
}
