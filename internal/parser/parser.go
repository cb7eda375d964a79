package parser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"sort"
	"time"

	config "github.com/JeroniMan/solana-indexer/configs"
	"github.com/JeroniMan/solana-indexer/internal/common"
	customLogger "github.com/JeroniMan/solana-indexer/internal/log"
	"github.com/JeroniMan/solana-indexer/internal/metrics"
	"github.com/JeroniMan/solana-indexer/internal/storage"
	"github.com/JeroniMan/solana-indexer/internal/worker"
	"github.com/rs/zerolog"
)

const (
	DEFAULT_WORKERS          = 5
	DEFAULT_POLL_INTERVAL_MS = 60000
)

// Parser turns raw batch files into one columnar file per entity. Consumed
// raw files are tracked with one checkpoint each, keyed by the file's base
// name.
type Parser struct {
	storage      storage.IStorage
	workers      int
	pollInterval time.Duration
	compression  string
	errorRate    *worker.ErrorRate
	now          func() time.Time
	logger       zerolog.Logger
}

type ParserOption func(*Parser)

func WithWorkers(workers int) ParserOption {
	return func(p *Parser) {
		if workers > 0 {
			p.workers = workers
		}
	}
}

func WithPollInterval(interval time.Duration) ParserOption {
	return func(p *Parser) {
		if interval > 0 {
			p.pollInterval = interval
		}
	}
}

func WithCompression(compression string) ParserOption {
	return func(p *Parser) {
		p.compression = compression
	}
}

func WithClock(now func() time.Time) ParserOption {
	return func(p *Parser) {
		p.now = now
	}
}

func NewParser(store storage.IStorage, opts ...ParserOption) *Parser {
	cfg := config.Cfg.Parser

	workers := cfg.Workers
	if workers <= 0 {
		workers = DEFAULT_WORKERS
	}
	pollInterval := cfg.PollIntervalMs
	if pollInterval <= 0 {
		pollInterval = DEFAULT_POLL_INTERVAL_MS
	}
	compression := cfg.Compression
	if compression == "" {
		compression = storage.DEFAULT_PARQUET_COMPRESSION
	}

	p := &Parser{
		storage:      store,
		workers:      workers,
		pollInterval: time.Duration(pollInterval) * time.Millisecond,
		compression:  compression,
		errorRate:    worker.NewErrorRate(common.StageParser, cfg.ErrorRate),
		now:          time.Now,
		logger:       customLogger.ForStage(common.StageParser),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run polls for raw batches until ctx is done or the error rate escalates.
func (p *Parser) Run(ctx context.Context) error {
	p.logger.Info().Int("workers", p.workers).Dur("poll_interval", p.pollInterval).Msg("Starting parser")
	for {
		if ctx.Err() != nil {
			p.logger.Info().Msg("Parser stopped")
			return nil
		}
		processed, err := p.RunOnce(ctx)
		if err != nil {
			return err
		}
		if processed > 0 {
			continue
		}
		select {
		case <-ctx.Done():
			p.logger.Info().Msg("Parser stopped")
			return nil
		case <-time.After(p.pollInterval):
		}
	}
}

// Pending lists raw batch files without a parser checkpoint, ordered by
// shard and then batch sequence.
func (p *Parser) Pending(ctx context.Context) ([]common.BatchID, error) {
	objects, err := p.storage.Objects.List(ctx, common.RawPrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list raw batches: %w", err)
	}
	checkpoints, err := p.storage.Checkpoints.ListCheckpoints(ctx, common.StageParser)
	if err != nil {
		return nil, fmt.Errorf("failed to list parser checkpoints: %w", err)
	}
	consumed := common.NewSet[string]()
	for _, cp := range checkpoints {
		consumed.Add(cp.WorkerID)
	}

	pending := make([]common.BatchID, 0, len(objects))
	for _, o := range objects {
		id, err := common.ParseRawBatchKey(o.Key)
		if err != nil {
			p.logger.Warn().Str("file", o.Key).Msg("Ignoring file with unexpected name")
			continue
		}
		if consumed.Contains(path.Base(o.Key)) {
			continue
		}
		pending = append(pending, id)
	}
	sort.Slice(pending, func(i, j int) bool {
		return pending[i].Less(pending[j])
	})
	metrics.RawFilesQueue.Set(float64(len(pending)))
	return pending, nil
}

// RunOnce parses every pending raw batch once and reports how many were
// consumed. A batch that hit a storage error stays pending for the next
// round.
func (p *Parser) RunOnce(ctx context.Context) (int, error) {
	pending, err := p.Pending(ctx)
	if err != nil {
		return 0, err
	}
	if len(pending) == 0 {
		return 0, nil
	}
	p.logger.Debug().Int("pending", len(pending)).Msg("Parsing raw batches")

	results := worker.Run(ctx, p.workers, pending, p.parseBatch)

	consumed, failed, quarantined := 0, 0, 0
	var fatal error
	for _, r := range results {
		if r.Skipped {
			continue
		}
		switch {
		case r.Value.err != nil && errors.Is(r.Value.err, worker.ErrErrorRateExceeded):
			if fatal == nil {
				fatal = r.Value.err
			}
			consumed++
		case r.Value.err != nil:
			failed++
			p.logger.Error().Err(r.Value.err).Str("file", common.RawBatchKey(r.Item)).Msg("Failed to parse raw batch, will retry")
		default:
			consumed++
		}
		if r.Value.quarantined {
			quarantined++
		}
	}

	p.logger.Info().
		Int("consumed", consumed).
		Int("quarantined", quarantined).
		Int("failed", failed).
		Int("queue", len(pending)-consumed).
		Float64("error_rate", p.errorRate.Rate()).
		Msg("Parser round complete")
	return consumed, fatal
}

type batchOutcome struct {
	quarantined bool
	err         error
}

func (p *Parser) parseBatch(ctx context.Context, id common.BatchID) batchOutcome {
	start := time.Now()
	key := common.RawBatchKey(id)

	var data []byte
	err := worker.Retry(ctx, worker.DEFAULT_STORAGE_ATTEMPTS, worker.DEFAULT_STORAGE_BACKOFF, func() error {
		var err error
		data, err = p.storage.Objects.Get(ctx, key)
		return err
	})
	if err != nil {
		metrics.ParserBatches.WithLabelValues("failed").Inc()
		return batchOutcome{err: fmt.Errorf("failed to read %s: %w", key, err)}
	}

	gated, err := decodeAndValidate(data, id)
	if err != nil {
		if err := p.quarantine(ctx, key, id, err); err != nil {
			metrics.ParserBatches.WithLabelValues("failed").Inc()
			return batchOutcome{err: err}
		}
		metrics.ParserBatches.WithLabelValues("quarantined").Inc()
		return batchOutcome{quarantined: true, err: p.errorRate.Record(true)}
	}

	if err := p.writeColumnar(ctx, id, gated); err != nil {
		metrics.ParserBatches.WithLabelValues("failed").Inc()
		return batchOutcome{err: err}
	}

	cp := common.Checkpoint{
		Stage:    common.StageParser,
		WorkerID: path.Base(key),
		Slot:     id.LastSlot,
		File:     key,
		Status:   common.CheckpointStatusOK,
	}
	if n := gated.InvalidCount(); n > 0 {
		cp.Message = fmt.Sprintf("%d invalid records dropped", n)
	}
	if err := p.writeCheckpoint(ctx, cp); err != nil {
		metrics.ParserBatches.WithLabelValues("failed").Inc()
		return batchOutcome{err: err}
	}

	metrics.ParserBatches.WithLabelValues("ok").Inc()
	metrics.ParserBatchDuration.Observe(time.Since(start).Seconds())
	p.logger.Debug().
		Str("file", key).
		Int("blocks", len(gated.Blocks)).
		Int("transactions", len(gated.Transactions)).
		Int("rewards", len(gated.Rewards)).
		Int("invalid", gated.InvalidCount()).
		Msg("Raw batch parsed")

	if err := p.recordOutcomes(gated); err != nil {
		return batchOutcome{err: err}
	}
	return batchOutcome{}
}

func decodeAndValidate(data []byte, id common.BatchID) (*Gated, error) {
	batch, err := common.DecodeRawBatch(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUndecodable, err)
	}
	if batch.BatchID != id {
		return nil, fmt.Errorf("%w: content is batch %s, name says %s", ErrUndecodable, batch.BatchID, id)
	}
	records, err := DecodeBatch(batch)
	if err != nil {
		return nil, err
	}
	return ValidateRecords(records, id.Range()), nil
}

// recordOutcomes feeds one outcome per block into the error rate. Rows of
// the other entities only hit the metrics.
func (p *Parser) recordOutcomes(gated *Gated) error {
	for _, entity := range common.Entities {
		if n := gated.Invalid[entity]; n > 0 {
			metrics.ParserInvalidRecords.WithLabelValues(string(entity)).Add(float64(n))
		}
	}
	metrics.ParserRecords.WithLabelValues(string(common.EntityBlocks)).Add(float64(len(gated.Blocks)))
	metrics.ParserRecords.WithLabelValues(string(common.EntityTransactions)).Add(float64(len(gated.Transactions)))
	metrics.ParserRecords.WithLabelValues(string(common.EntityRewards)).Add(float64(len(gated.Rewards)))

	if err := p.errorRate.Record(false); err != nil {
		return err
	}
	for i := 0; i < gated.Invalid[common.EntityBlocks]; i++ {
		if err := p.errorRate.Record(true); err != nil {
			return err
		}
	}
	return nil
}

func (p *Parser) writeColumnar(ctx context.Context, id common.BatchID, gated *Gated) error {
	files := []struct {
		entity common.Entity
		encode func() ([]byte, error)
	}{
		{common.EntityBlocks, func() ([]byte, error) { return storage.WriteParquet(gated.Blocks, p.compression) }},
		{common.EntityTransactions, func() ([]byte, error) { return storage.WriteParquet(gated.Transactions, p.compression) }},
		{common.EntityRewards, func() ([]byte, error) { return storage.WriteParquet(gated.Rewards, p.compression) }},
	}
	for _, f := range files {
		data, err := f.encode()
		if err != nil {
			return fmt.Errorf("failed to encode %s of batch %s: %w", f.entity, id, err)
		}
		key := common.ColumnarKey(f.entity, id)
		err = worker.Retry(ctx, worker.DEFAULT_STORAGE_ATTEMPTS, worker.DEFAULT_STORAGE_BACKOFF, func() error {
			return p.storage.Objects.Put(ctx, key, data)
		})
		if err != nil {
			return fmt.Errorf("failed to write %s: %w", key, err)
		}
	}
	return nil
}

type quarantineMarker struct {
	File          string    `json:"file"`
	Error         string    `json:"error"`
	QuarantinedAt time.Time `json:"quarantined_at"`
}

// quarantine leaves a marker next to the pipeline output and consumes the
// batch with an error status so it stops blocking the queue.
func (p *Parser) quarantine(ctx context.Context, key string, id common.BatchID, cause error) error {
	now := p.now()
	p.logger.Error().Err(cause).Str("file", key).Msg("Quarantining undecodable raw batch")

	marker, err := json.Marshal(quarantineMarker{File: key, Error: cause.Error(), QuarantinedAt: now})
	if err != nil {
		return fmt.Errorf("failed to encode quarantine marker for %s: %w", key, err)
	}
	markerKey := common.QuarantineKey(key)
	err = worker.Retry(ctx, worker.DEFAULT_STORAGE_ATTEMPTS, worker.DEFAULT_STORAGE_BACKOFF, func() error {
		return p.storage.Objects.Put(ctx, markerKey, marker)
	})
	if err != nil {
		return fmt.Errorf("failed to write quarantine marker %s: %w", markerKey, err)
	}

	return p.writeCheckpoint(ctx, common.Checkpoint{
		Stage:    common.StageParser,
		WorkerID: path.Base(key),
		Slot:     id.LastSlot,
		File:     key,
		Status:   common.CheckpointStatusQuarantined,
		Message:  cause.Error(),
	})
}

func (p *Parser) writeCheckpoint(ctx context.Context, cp common.Checkpoint) error {
	cp.UpdatedAt = p.now()
	start := time.Now()
	err := worker.Retry(ctx, worker.DEFAULT_STORAGE_ATTEMPTS, worker.DEFAULT_STORAGE_BACKOFF, func() error {
		return p.storage.Checkpoints.WriteCheckpoint(ctx, cp)
	})
	metrics.CheckpointWriteDuration.WithLabelValues(common.StageParser).Observe(time.Since(start).Seconds())
	if err != nil {
		return fmt.Errorf("failed to checkpoint %s: %w", cp.File, err)
	}
	return nil
}
