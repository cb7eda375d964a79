package collector

import (
	"context"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	config "github.com/JeroniMan/solana-indexer/configs"
	"github.com/JeroniMan/solana-indexer/internal/common"
	customLogger "github.com/JeroniMan/solana-indexer/internal/log"
	"github.com/JeroniMan/solana-indexer/internal/metrics"
	"github.com/JeroniMan/solana-indexer/internal/rpc"
	"github.com/JeroniMan/solana-indexer/internal/storage"
	"github.com/JeroniMan/solana-indexer/internal/worker"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const (
	DEFAULT_WORKERS          = 5
	DEFAULT_BATCH_SIZE       = 100
	DEFAULT_POLL_INTERVAL_MS = 1000
)

// Collector fetches slots from the RPC node and archives them as raw batch
// files. A bounded range is split into one contiguous shard per worker; an
// open range (end slot 0) is claimed through a shared cursor that follows
// the chain head.
type Collector struct {
	rpc          rpc.IRPCClient
	storage      storage.IStorage
	startSlot    uint64
	endSlot      uint64
	workers      int
	batchSize    int
	pollInterval time.Duration
	retryPolicy  rpc.RetryPolicy
	errorRate    *worker.ErrorRate
	now          func() time.Time
	logger       zerolog.Logger

	head      atomic.Uint64
	slotsDone atomic.Uint64
}

type CollectorOption func(*Collector)

func WithRange(startSlot, endSlot uint64) CollectorOption {
	return func(c *Collector) {
		c.startSlot = startSlot
		c.endSlot = endSlot
	}
}

func WithWorkers(workers int) CollectorOption {
	return func(c *Collector) {
		if workers > 0 {
			c.workers = workers
		}
	}
}

func WithBatchSize(batchSize int) CollectorOption {
	return func(c *Collector) {
		if batchSize > 0 {
			c.batchSize = batchSize
		}
	}
}

func WithRetryPolicy(policy rpc.RetryPolicy) CollectorOption {
	return func(c *Collector) {
		c.retryPolicy = policy
	}
}

func WithPollInterval(interval time.Duration) CollectorOption {
	return func(c *Collector) {
		if interval > 0 {
			c.pollInterval = interval
		}
	}
}

func WithClock(now func() time.Time) CollectorOption {
	return func(c *Collector) {
		c.now = now
	}
}

func NewCollector(rpcClient rpc.IRPCClient, store storage.IStorage, opts ...CollectorOption) *Collector {
	cfg := config.Cfg.Collector

	workers := cfg.Workers
	if workers <= 0 {
		workers = DEFAULT_WORKERS
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = DEFAULT_BATCH_SIZE
	}
	pollInterval := cfg.PollIntervalMs
	if pollInterval <= 0 {
		pollInterval = DEFAULT_POLL_INTERVAL_MS
	}

	c := &Collector{
		rpc:          rpcClient,
		storage:      store,
		startSlot:    cfg.StartSlot,
		endSlot:      cfg.EndSlot,
		workers:      workers,
		batchSize:    batchSize,
		pollInterval: time.Duration(pollInterval) * time.Millisecond,
		retryPolicy:  rpc.GetRetryPolicyConfig(),
		errorRate:    worker.NewErrorRate(common.StageCollector, cfg.ErrorRate),
		now:          time.Now,
		logger:       customLogger.ForStage(common.StageCollector),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run collects until a bounded range is fully archived, ctx is done, or
// the error rate escalates. Cancellation is not an error.
func (c *Collector) Run(ctx context.Context) error {
	if c.endSlot > 0 {
		return c.runBounded(ctx)
	}
	return c.runOpen(ctx)
}

type shardState struct {
	shard         int
	workerID      string
	label         string
	seq           uint64
	checkpoint    uint64
	hasCheckpoint bool
	gaps          int
}

func (c *Collector) loadShardState(ctx context.Context, shard int) (*shardState, error) {
	st := &shardState{shard: shard, workerID: strconv.Itoa(shard), label: strconv.Itoa(shard)}
	cp, err := c.storage.Checkpoints.ReadCheckpoint(ctx, common.StageCollector, st.workerID)
	if err != nil {
		return nil, fmt.Errorf("failed to read checkpoint of shard %d: %w", shard, err)
	}
	if cp != nil {
		st.seq = cp.BatchCount
		st.checkpoint = cp.Slot
		st.hasCheckpoint = true
		metrics.CollectorLastCheckpointedSlot.WithLabelValues(st.label).Set(float64(cp.Slot))
	}
	return st, nil
}

func (c *Collector) runBounded(ctx context.Context) error {
	if c.endSlot < c.startSlot {
		return fmt.Errorf("end slot %d is before start slot %d", c.endSlot, c.startSlot)
	}
	// the raw archive decides what is left, shard checkpoints may come from
	// a run with a different worker count
	covered, err := CoveredRanges(ctx, c.storage.Objects)
	if err != nil {
		return err
	}
	shards := common.SplitRange(c.startSlot, c.endSlot, c.workers)
	total := c.endSlot - c.startSlot + 1
	c.slotsDone.Store(0)

	c.logger.Info().
		Uint64("start_slot", c.startSlot).
		Uint64("end_slot", c.endSlot).
		Int("shards", len(shards)).
		Int("batch_size", c.batchSize).
		Msg("Starting bounded collection")

	g, gctx := errgroup.WithContext(ctx)
	for i, shard := range shards {
		missing := common.MissingRanges(shard, covered)
		g.Go(func() error {
			return c.runShard(gctx, i, shard, missing, total)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	if ctx.Err() == nil {
		c.logger.Info().Uint64("start_slot", c.startSlot).Uint64("end_slot", c.endSlot).Msg("Bounded collection complete")
	}
	return nil
}

// runShard collects the parts of bounds that are missing from the raw
// archive, in order and in batches of at most batchSize slots.
func (c *Collector) runShard(ctx context.Context, shard int, bounds common.SlotRange, missing []common.SlotRange, total uint64) error {
	var todo uint64
	for _, m := range missing {
		todo += m.Len()
	}
	c.addProgress(bounds.Len()-todo, total)
	if todo == 0 {
		c.logger.Info().Int("shard", shard).Str("range", bounds.String()).Msg("Shard already collected")
		return nil
	}

	st, err := c.loadShardState(ctx, shard)
	if err != nil {
		return err
	}

	c.logger.Debug().Int("shard", shard).Str("range", bounds.String()).Int("missing_ranges", len(missing)).Uint64("resume_slot", missing[0].First).Msg("Starting shard")
	for _, m := range missing {
		for _, r := range m.Chunks(c.batchSize) {
			if ctx.Err() != nil {
				return nil
			}
			written, err := c.collectRange(ctx, st, r)
			if err != nil {
				return err
			}
			if !written {
				return nil
			}
			c.addProgress(r.Len(), total)
		}
	}

	c.logger.Info().Int("shard", shard).Str("range", bounds.String()).Int("gaps", st.gaps).Msg("Shard complete")
	return nil
}

func (c *Collector) runOpen(ctx context.Context) error {
	checkpoints, err := c.storage.Checkpoints.ListCheckpoints(ctx, common.StageCollector)
	if err != nil {
		return fmt.Errorf("failed to list collector checkpoints: %w", err)
	}

	covered, err := CoveredRanges(ctx, c.storage.Objects)
	if err != nil {
		return err
	}

	// resume after whatever is higher: the last checkpoint or the last
	// archived slot. A batch written just before a crash has no checkpoint.
	resumeFrom := c.startSlot
	for _, cp := range checkpoints {
		if cp.Slot+1 > resumeFrom {
			resumeFrom = cp.Slot + 1
		}
	}
	for _, r := range covered {
		if r.Last+1 > resumeFrom {
			resumeFrom = r.Last + 1
		}
	}

	// claims lost to a crash sit below the resume slot
	var pending []common.SlotRange
	if resumeFrom > c.startSlot {
		pending = common.MissingRanges(common.SlotRange{First: c.startSlot, Last: resumeFrom - 1}, covered)
	}
	queue := newRangeQueue(pending, c.batchSize)
	cursor := NewSlotCursor(resumeFrom)

	if err := c.refreshHead(ctx); err != nil {
		return fmt.Errorf("failed to read chain head: %w", err)
	}

	c.logger.Info().
		Uint64("start_slot", c.startSlot).
		Uint64("resume_slot", resumeFrom).
		Uint64("head", c.head.Load()).
		Int("requeued_ranges", queue.Len()).
		Int("workers", c.workers).
		Msg("Starting open-ended collection")

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < c.workers; i++ {
		g.Go(func() error {
			return c.runOpenWorker(gctx, i, cursor, queue)
		})
	}
	return g.Wait()
}

func (c *Collector) runOpenWorker(ctx context.Context, shard int, cursor *SlotCursor, queue *rangeQueue) error {
	st, err := c.loadShardState(ctx, shard)
	if err != nil {
		return err
	}

	for {
		if ctx.Err() != nil {
			return nil
		}
		r, ok := queue.Pop()
		if !ok {
			r, ok = cursor.Claim(c.batchSize, c.head.Load())
		}
		if !ok {
			if err := c.refreshHead(ctx); err != nil {
				c.logger.Warn().Err(err).Int("shard", shard).Msg("Failed to refresh chain head")
			}
			r, ok = cursor.Claim(c.batchSize, c.head.Load())
		}
		if !ok {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(c.pollInterval):
			}
			continue
		}

		if _, err := c.collectRange(ctx, st, r); err != nil {
			return err
		}
	}
}

func (c *Collector) refreshHead(ctx context.Context) error {
	head, err := c.rpc.GetSlot(ctx)
	if err != nil {
		return err
	}
	for {
		current := c.head.Load()
		if head <= current || c.head.CompareAndSwap(current, head) {
			break
		}
	}
	metrics.ChainHead.Set(float64(c.head.Load()))
	return nil
}

// collectRange fetches every slot of r in order and persists the batch. It
// reports false when ctx ended before the batch was complete; nothing is
// written in that case.
func (c *Collector) collectRange(ctx context.Context, st *shardState, r common.SlotRange) (bool, error) {
	blocks := make([]common.RawBlock, 0, r.Len())
	var failed []rpc.FetchResult

	for slot := r.First; ; slot++ {
		if ctx.Err() != nil {
			c.logger.Debug().Int("shard", st.shard).Str("range", r.String()).Msg("Discarding incomplete batch")
			return false, nil
		}
		result := rpc.FetchBlock(ctx, c.rpc, slot, c.retryPolicy)
		if ctx.Err() != nil {
			c.logger.Debug().Int("shard", st.shard).Str("range", r.String()).Msg("Discarding incomplete batch")
			return false, nil
		}

		blocks = append(blocks, toRawBlock(result, c.now()))
		metrics.CollectorSlotsFetched.WithLabelValues(st.label, string(result.Status)).Inc()

		isFailed := result.Status == rpc.FetchFailedAfterRetries
		if isFailed {
			failed = append(failed, result)
			c.logger.Error().Err(result.Err).Int("shard", st.shard).Uint64("slot", slot).Int("attempts", result.Attempts).Msg("Slot failed after retries, recording gap")
		}
		if err := c.errorRate.Record(isFailed); err != nil {
			return false, err
		}
		if slot == r.Last {
			break
		}
	}

	if err := c.persistBatch(context.WithoutCancel(ctx), st, r, blocks, failed); err != nil {
		return false, err
	}
	return true, nil
}

// persistBatch writes the raw batch, then the gap records, then the
// checkpoint. A crash in between only causes the range to be fetched again.
func (c *Collector) persistBatch(ctx context.Context, st *shardState, r common.SlotRange, blocks []common.RawBlock, failed []rpc.FetchResult) error {
	now := c.now()
	batch := &common.RawBatch{
		BatchID:   common.BatchID{Shard: st.shard, Seq: st.seq, FirstSlot: r.First, LastSlot: r.Last},
		CreatedAt: now.Unix(),
		Blocks:    blocks,
	}
	data, err := common.EncodeRawBatch(batch)
	if err != nil {
		return err
	}

	key := common.RawBatchKey(batch.BatchID)
	err = worker.Retry(ctx, worker.DEFAULT_STORAGE_ATTEMPTS, worker.DEFAULT_STORAGE_BACKOFF, func() error {
		return c.storage.Objects.Put(ctx, key, data)
	})
	if err != nil {
		return fmt.Errorf("failed to write raw batch %s: %w", key, err)
	}
	metrics.CollectorBatchesWritten.Inc()

	for _, f := range failed {
		gap := newGapCheckpoint(f, st.shard, now)
		if err := c.storage.Checkpoints.WriteCheckpoint(ctx, gap); err != nil {
			c.logger.Error().Err(err).Uint64("slot", f.Slot).Msg("Failed to record gap")
		}
	}
	if len(failed) > 0 {
		st.gaps += len(failed)
		metrics.CollectorGaps.WithLabelValues(st.label).Add(float64(len(failed)))
	}

	slot := r.Last
	if st.hasCheckpoint && st.checkpoint > slot {
		slot = st.checkpoint
	}
	cp := common.Checkpoint{
		Stage:      common.StageCollector,
		WorkerID:   st.workerID,
		Slot:       slot,
		File:       key,
		Status:     common.CheckpointStatusOK,
		BatchCount: st.seq + 1,
		UpdatedAt:  now,
	}
	start := time.Now()
	err = worker.Retry(ctx, worker.DEFAULT_STORAGE_ATTEMPTS, worker.DEFAULT_STORAGE_BACKOFF, func() error {
		return c.storage.Checkpoints.WriteCheckpoint(ctx, cp)
	})
	metrics.CheckpointWriteDuration.WithLabelValues(common.StageCollector).Observe(time.Since(start).Seconds())
	if err != nil {
		return fmt.Errorf("failed to checkpoint shard %d at slot %d: %w", st.shard, slot, err)
	}

	st.seq++
	st.checkpoint = slot
	st.hasCheckpoint = true
	metrics.CollectorLastCheckpointedSlot.WithLabelValues(st.label).Set(float64(slot))

	c.logger.Debug().
		Int("shard", st.shard).
		Str("file", key).
		Str("range", r.String()).
		Int("gaps", len(failed)).
		Msg("Raw batch written")
	return nil
}

func (c *Collector) addProgress(slots uint64, total uint64) {
	if total == 0 {
		return
	}
	done := c.slotsDone.Add(slots)
	metrics.CollectorProgress.Set(float64(done) / float64(total))
}

func toRawBlock(result rpc.FetchResult, now time.Time) common.RawBlock {
	raw := common.RawBlock{
		Slot:        result.Slot,
		Code:        result.Code,
		Attempts:    result.Attempts,
		CollectedAt: now.Unix(),
	}
	switch result.Status {
	case rpc.FetchSuccess:
		raw.Status = common.SlotStatusOK
		raw.Block = result.Block
	case rpc.FetchSkippedNotFound:
		raw.Status = common.SlotStatusSkipped
	default:
		raw.Status = common.SlotStatusError
	}
	if result.Err != nil {
		raw.Message = result.Err.Error()
	}
	return raw
}
