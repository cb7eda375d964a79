package storage

import (
	"context"
	"crypto/tls"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	config "github.com/JeroniMan/solana-indexer/configs"
	"github.com/JeroniMan/solana-indexer/internal/common"
	"github.com/rs/zerolog/log"
)

const DEFAULT_CLICKHOUSE_DATABASE = "default"

// ClickHouseCatalog records one manifest row per finalized partition file so
// that query engines can discover files without listing the bucket.
type ClickHouseCatalog struct {
	conn     driver.Conn
	database string
}

func NewClickHouseCatalog(cfg *config.ClickhouseConfig) (*ClickHouseCatalog, error) {
	conn, err := connectClickHouse(cfg)
	if err != nil {
		return nil, err
	}

	database := cfg.Database
	if database == "" {
		database = DEFAULT_CLICKHOUSE_DATABASE
	}

	catalog := &ClickHouseCatalog{conn: conn, database: database}
	if err := conn.Exec(context.Background(), catalog.createTableQuery()); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create partition_files table: %w", err)
	}

	log.Info().Str("host", cfg.Host).Str("database", database).Msg("Connected to ClickHouse catalog")
	return catalog, nil
}

func connectClickHouse(cfg *config.ClickhouseConfig) (driver.Conn, error) {
	var tlsConfig *tls.Config
	if !cfg.DisableTLS {
		tlsConfig = &tls.Config{}
	}

	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr:     []string{fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)},
		Protocol: clickhouse.Native,
		TLS:      tlsConfig,
		Auth: clickhouse.Auth{
			Username: cfg.Username,
			Password: cfg.Password,
			Database: cfg.Database,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open clickhouse connection: %w", err)
	}
	if err := conn.Ping(context.Background()); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping clickhouse: %w", err)
	}
	return conn, nil
}

func (c *ClickHouseCatalog) createTableQuery() string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.partition_files (
		entity LowCardinality(String),
		epoch UInt64,
		block_date Date,
		block_hour Int8,
		file_key String,
		source_key String,
		row_count UInt64,
		min_slot UInt64,
		max_slot UInt64,
		finalized_at DateTime64(3, 'UTC')
	) ENGINE = ReplacingMergeTree(finalized_at)
	ORDER BY (entity, epoch, block_date, file_key)`, c.database)
}

func (c *ClickHouseCatalog) RecordPartitionFiles(ctx context.Context, files []common.PartitionFile) error {
	if len(files) == 0 {
		return nil
	}

	query := fmt.Sprintf(`INSERT INTO %s.partition_files (entity, epoch, block_date, block_hour, file_key, source_key, row_count, min_slot, max_slot, finalized_at)`, c.database)
	batch, err := c.conn.PrepareBatch(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to prepare catalog batch: %w", err)
	}
	defer func(batch driver.Batch) {
		_ = batch.Abort()
	}(batch)

	for _, f := range files {
		blockDate, err := common.ParseBlockDate(f.BlockDate)
		if err != nil {
			return err
		}
		err = batch.Append(
			string(f.Entity),
			f.Epoch,
			blockDate,
			int8(f.BlockHour),
			f.Key,
			f.SourceKey,
			uint64(f.RowCount),
			f.MinSlot,
			f.MaxSlot,
			f.FinalizeAt,
		)
		if err != nil {
			return fmt.Errorf("failed to append catalog row for %s: %w", f.Key, err)
		}
	}
	return batch.Send()
}

func (c *ClickHouseCatalog) Close() error {
	return c.conn.Close()
}
