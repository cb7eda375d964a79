package validator

import (
	"context"
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
	DEFAULT_WORKERS          = 3
	DEFAULT_POLL_INTERVAL_MS = 60000
)

const (
	outcomeMoved         = "moved"
	outcomeSplit         = "split"
	outcomeEmpty         = "empty"
	outcomeUnpartitioned = "unpartitioned"
)

type namedSink struct {
	name string
	sink storage.IPartitionSink
}

// Validator moves columnar files into the epoch/date partitioned layout,
// splitting the ones whose rows span more than one partition.
type Validator struct {
	storage       storage.IStorage
	sinks         []namedSink
	workers       int
	pollInterval  time.Duration
	slotsPerEpoch uint64
	byHour        bool
	keepSource    bool
	compression   string
	errorRate     *worker.ErrorRate
	now           func() time.Time
	logger        zerolog.Logger
}

type ValidatorOption func(*Validator)

func WithWorkers(workers int) ValidatorOption {
	return func(v *Validator) {
		if workers > 0 {
			v.workers = workers
		}
	}
}

func WithPollInterval(interval time.Duration) ValidatorOption {
	return func(v *Validator) {
		if interval > 0 {
			v.pollInterval = interval
		}
	}
}

func WithSlotsPerEpoch(slotsPerEpoch uint64) ValidatorOption {
	return func(v *Validator) {
		if slotsPerEpoch > 0 {
			v.slotsPerEpoch = slotsPerEpoch
		}
	}
}

func WithPartitionByHour(byHour bool) ValidatorOption {
	return func(v *Validator) {
		v.byHour = byHour
	}
}

func WithKeepSource(keep bool) ValidatorOption {
	return func(v *Validator) {
		v.keepSource = keep
	}
}

func WithCompression(compression string) ValidatorOption {
	return func(v *Validator) {
		if compression != "" {
			v.compression = compression
		}
	}
}

// WithSink registers a sink that is told about every finalized partition
// file. A nil sink is ignored.
func WithSink(name string, sink storage.IPartitionSink) ValidatorOption {
	return func(v *Validator) {
		if sink != nil {
			v.sinks = append(v.sinks, namedSink{name: name, sink: sink})
		}
	}
}

func WithClock(now func() time.Time) ValidatorOption {
	return func(v *Validator) {
		v.now = now
	}
}

func NewValidator(store storage.IStorage, opts ...ValidatorOption) *Validator {
	cfg := config.Cfg.Validator

	workers := cfg.Workers
	if workers <= 0 {
		workers = DEFAULT_WORKERS
	}
	pollInterval := cfg.PollIntervalMs
	if pollInterval <= 0 {
		pollInterval = DEFAULT_POLL_INTERVAL_MS
	}
	slotsPerEpoch := cfg.SlotsPerEpoch
	if slotsPerEpoch == 0 {
		slotsPerEpoch = common.DEFAULT_SLOTS_PER_EPOCH
	}
	compression := config.Cfg.Parser.Compression
	if compression == "" {
		compression = storage.DEFAULT_PARQUET_COMPRESSION
	}

	v := &Validator{
		storage:       store,
		workers:       workers,
		pollInterval:  time.Duration(pollInterval) * time.Millisecond,
		slotsPerEpoch: slotsPerEpoch,
		byHour:        cfg.PartitionByHour,
		keepSource:    cfg.KeepSource,
		compression:   compression,
		errorRate:     worker.NewErrorRate(common.StageValidator, cfg.ErrorRate),
		now:           time.Now,
		logger:        customLogger.ForStage(common.StageValidator),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Run finalizes columnar files until ctx is done or the error rate
// escalates.
func (v *Validator) Run(ctx context.Context) error {
	v.logger.Info().
		Int("workers", v.workers).
		Uint64("slots_per_epoch", v.slotsPerEpoch).
		Bool("partition_by_hour", v.byHour).
		Msg("Starting validator")
	for {
		if ctx.Err() != nil {
			v.logger.Info().Msg("Validator stopped")
			return nil
		}
		processed, err := v.RunOnce(ctx)
		if err != nil {
			return err
		}
		if processed > 0 {
			continue
		}
		select {
		case <-ctx.Done():
			v.logger.Info().Msg("Validator stopped")
			return nil
		case <-time.After(v.pollInterval):
		}
	}
}

// SourceFile is one columnar file waiting to be finalized.
type SourceFile struct {
	Key          string
	Entity       common.Entity
	Batch        common.BatchID
	LastModified time.Time
}

// Pending lists columnar files without a validator checkpoint, oldest
// first. Ties are broken by key.
func (v *Validator) Pending(ctx context.Context) ([]SourceFile, error) {
	objects, err := v.storage.Objects.List(ctx, common.ProcessedPrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list columnar files: %w", err)
	}
	checkpoints, err := v.storage.Checkpoints.ListCheckpoints(ctx, common.StageValidator)
	if err != nil {
		return nil, fmt.Errorf("failed to list validator checkpoints: %w", err)
	}
	consumed := common.NewSet[string]()
	for _, cp := range checkpoints {
		consumed.Add(cp.WorkerID)
	}

	pending := make([]SourceFile, 0, len(objects))
	for _, o := range objects {
		entity, id, err := common.ParseColumnarKey(o.Key)
		if err != nil {
			v.logger.Warn().Str("file", o.Key).Msg("Ignoring file with unexpected name")
			continue
		}
		if consumed.Contains(path.Base(o.Key)) {
			continue
		}
		pending = append(pending, SourceFile{Key: o.Key, Entity: entity, Batch: id, LastModified: o.LastModified})
	}
	sort.SliceStable(pending, func(i, j int) bool {
		if !pending[i].LastModified.Equal(pending[j].LastModified) {
			return pending[i].LastModified.Before(pending[j].LastModified)
		}
		return pending[i].Key < pending[j].Key
	})
	metrics.ProcessedFilesQueue.Set(float64(len(pending)))
	return pending, nil
}

// RunOnce finalizes every pending file once and reports how many were
// consumed.
func (v *Validator) RunOnce(ctx context.Context) (int, error) {
	pending, err := v.Pending(ctx)
	if err != nil {
		return 0, err
	}
	if len(pending) == 0 {
		return 0, nil
	}
	perEntity := map[common.Entity]int{}
	for _, f := range pending {
		perEntity[f.Entity]++
	}
	v.logger.Debug().
		Int("blocks", perEntity[common.EntityBlocks]).
		Int("transactions", perEntity[common.EntityTransactions]).
		Int("rewards", perEntity[common.EntityRewards]).
		Msg("Finalizing columnar files")

	results := worker.Run(ctx, v.workers, pending, v.finalizeFile)

	consumed, failed, partitionFiles := 0, 0, 0
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
			v.logger.Error().Err(r.Value.err).Str("file", r.Item.Key).Msg("Failed to finalize columnar file, will retry")
		default:
			consumed++
		}
		partitionFiles += len(r.Value.files)
	}

	v.logger.Info().
		Int("consumed", consumed).
		Int("failed", failed).
		Int("partition_files", partitionFiles).
		Int("queue", len(pending)-consumed).
		Float64("error_rate", v.errorRate.Rate()).
		Msg("Validator round complete")
	return consumed, fatal
}

type fileOutcome struct {
	outcome string
	files   []common.PartitionFile
	err     error
}

func (v *Validator) finalizeFile(ctx context.Context, f SourceFile) fileOutcome {
	var data []byte
	err := worker.Retry(ctx, worker.DEFAULT_STORAGE_ATTEMPTS, worker.DEFAULT_STORAGE_BACKOFF, func() error {
		var err error
		data, err = v.storage.Objects.Get(ctx, f.Key)
		return err
	})
	if err != nil {
		return fileOutcome{err: fmt.Errorf("failed to read %s: %w", f.Key, err)}
	}

	var result fileOutcome
	switch f.Entity {
	case common.EntityBlocks:
		result = finalize[common.BlockRecord](ctx, v, f, data)
	case common.EntityTransactions:
		result = finalize[common.TransactionRecord](ctx, v, f, data)
	case common.EntityRewards:
		result = finalize[common.RewardRecord](ctx, v, f, data)
	default:
		return fileOutcome{err: fmt.Errorf("unknown entity %q for %s", f.Entity, f.Key)}
	}
	if result.err != nil {
		return result
	}

	metrics.ValidatorFiles.WithLabelValues(result.outcome).Inc()
	if !v.keepSource {
		if err := v.storage.Objects.Delete(ctx, f.Key); err != nil {
			v.logger.Warn().Err(err).Str("file", f.Key).Msg("Failed to remove finalized source file")
		}
	}
	v.notifySinks(ctx, result.files)

	result.err = v.errorRate.Record(result.outcome == outcomeUnpartitioned)
	return result
}

// finalize writes the partition outputs of one source file and checkpoints
// it. A file that fits one partition is copied as is; otherwise every
// partition gets its own file named after the source.
func finalize[T common.PartitionRow](ctx context.Context, v *Validator, f SourceFile, data []byte) fileOutcome {
	rows, err := storage.ReadParquet[T](data)
	if err != nil {
		v.logger.Error().Err(err).Str("file", f.Key).Msg("Unreadable columnar file, routing to unpartitioned")
		if err := v.put(ctx, common.UnpartitionedKey(f.Entity, f.Key), data); err != nil {
			return fileOutcome{err: err}
		}
		return v.checkpoint(ctx, f, common.CheckpointStatusUnpartitioned, f.Batch.LastSlot, err.Error(), fileOutcome{outcome: outcomeUnpartitioned})
	}

	partitions, unplaced := Split(rows, v.slotsPerEpoch, v.byHour)
	if err := checkLossless(rows, partitions, unplaced); err != nil {
		return fileOutcome{err: fmt.Errorf("%s: %w", f.Key, err)}
	}
	now := v.now()
	_, maxSlot := slotBounds(rows)

	result := fileOutcome{outcome: outcomeEmpty}
	switch {
	case len(rows) == 0:
	case len(partitions) == 1 && len(unplaced) == 0:
		p := partitions[0]
		key := p.Key.FileKey(f.Entity, f.Key)
		if err := v.put(ctx, key, data); err != nil {
			return fileOutcome{err: err}
		}
		result.outcome = outcomeMoved
		result.files = append(result.files, partitionFile(f, p, key, now))
	default:
		for _, p := range partitions {
			encoded, err := storage.WriteParquet(p.Rows, v.compression)
			if err != nil {
				return fileOutcome{err: fmt.Errorf("failed to encode partition %s of %s: %w", p.Key.Dir(f.Entity), f.Key, err)}
			}
			key := p.Key.FileKey(f.Entity, f.Key)
			if err := v.put(ctx, key, encoded); err != nil {
				return fileOutcome{err: err}
			}
			result.files = append(result.files, partitionFile(f, p, key, now))
		}
		result.outcome = outcomeSplit
		if len(partitions) > 1 {
			metrics.ValidatorSplitFiles.Inc()
		}
		if len(unplaced) > 0 {
			encoded, err := storage.WriteParquet(unplaced, v.compression)
			if err != nil {
				return fileOutcome{err: fmt.Errorf("failed to encode unpartitioned rows of %s: %w", f.Key, err)}
			}
			if err := v.put(ctx, common.UnpartitionedKey(f.Entity, f.Key), encoded); err != nil {
				return fileOutcome{err: err}
			}
			result.outcome = outcomeUnpartitioned
		}
	}
	for range result.files {
		metrics.ValidatorPartitionFiles.WithLabelValues(string(f.Entity)).Inc()
	}

	status := common.CheckpointStatusOK
	message := ""
	if len(unplaced) > 0 {
		status = common.CheckpointStatusUnpartitioned
		message = fmt.Sprintf("%d of %d rows without block time", len(unplaced), len(rows))
		v.logger.Warn().Str("file", f.Key).Int("rows", len(unplaced)).Msg("Rows without block time routed to unpartitioned")
	}
	for _, pf := range result.files {
		v.logger.Debug().
			Str("file", f.Key).
			Str("entity", string(pf.Entity)).
			Uint64("epoch", pf.Epoch).
			Str("block_date", pf.BlockDate).
			Int("rows", pf.RowCount).
			Str("target", pf.Key).
			Msg("Partition file written")
	}
	if maxSlot == 0 {
		maxSlot = f.Batch.LastSlot
	}
	return v.checkpoint(ctx, f, status, maxSlot, message, result)
}

func partitionFile[T common.PartitionRow](f SourceFile, p Partition[T], key string, now time.Time) common.PartitionFile {
	minSlot, maxSlot := slotBounds(p.Rows)
	return common.PartitionFile{
		Entity:     f.Entity,
		Epoch:      p.Key.Epoch,
		BlockDate:  p.Key.BlockDate,
		BlockHour:  p.Key.BlockHour,
		Key:        key,
		SourceKey:  f.Key,
		RowCount:   len(p.Rows),
		MinSlot:    minSlot,
		MaxSlot:    maxSlot,
		FinalizeAt: now,
	}
}

func (v *Validator) put(ctx context.Context, key string, data []byte) error {
	err := worker.Retry(ctx, worker.DEFAULT_STORAGE_ATTEMPTS, worker.DEFAULT_STORAGE_BACKOFF, func() error {
		return v.storage.Objects.Put(ctx, key, data)
	})
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

func (v *Validator) checkpoint(ctx context.Context, f SourceFile, status common.CheckpointStatus, slot uint64, message string, result fileOutcome) fileOutcome {
	cp := common.Checkpoint{
		Stage:     common.StageValidator,
		WorkerID:  path.Base(f.Key),
		Slot:      slot,
		File:      f.Key,
		Status:    status,
		Message:   message,
		UpdatedAt: v.now(),
	}
	start := time.Now()
	err := worker.Retry(ctx, worker.DEFAULT_STORAGE_ATTEMPTS, worker.DEFAULT_STORAGE_BACKOFF, func() error {
		return v.storage.Checkpoints.WriteCheckpoint(ctx, cp)
	})
	metrics.CheckpointWriteDuration.WithLabelValues(common.StageValidator).Observe(time.Since(start).Seconds())
	if err != nil {
		return fileOutcome{err: fmt.Errorf("failed to checkpoint %s: %w", f.Key, err)}
	}
	return result
}

// notifySinks reports finalized files. Failures never un-consume the source.
func (v *Validator) notifySinks(ctx context.Context, files []common.PartitionFile) {
	if len(files) == 0 {
		return
	}
	for _, s := range v.sinks {
		if err := s.sink.RecordPartitionFiles(ctx, files); err != nil {
			metrics.SinkErrors.WithLabelValues(s.name).Inc()
			v.logger.Error().Err(err).Str("sink", s.name).Int("files", len(files)).Msg("Failed to notify partition sink")
		}
	}
}
