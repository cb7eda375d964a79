package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// RPC Metrics
var (
	RPCRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "rpc_request_duration_seconds",
		Help:    "Duration of RPC requests by method",
		Buckets: prometheus.DefBuckets,
	}, []string{"method"})

	RPCErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rpc_errors_total",
		Help: "The total number of RPC errors by method and kind",
	}, []string{"method", "kind"})
)

// Collector Metrics
var (
	CollectorSlotsFetched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "collector_slots_fetched_total",
		Help: "The total number of slots handled by the collector by outcome",
	}, []string{"shard", "status"})

	CollectorRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "collector_rpc_retries_total",
		Help: "The total number of slot fetch retries",
	})

	CollectorGaps = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "collector_gaps",
		Help: "The number of slots that failed after retries, per shard",
	}, []string{"shard"})

	CollectorLastCheckpointedSlot = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "collector_last_checkpointed_slot",
		Help: "The last slot checkpointed by a collector shard",
	}, []string{"shard"})

	CollectorProgress = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "collector_progress",
		Help: "Fraction of a bounded slot range that has been checkpointed",
	})

	CollectorBatchesWritten = promauto.NewCounter(prometheus.CounterOpts{
		Name: "collector_batches_written_total",
		Help: "The total number of raw batch files written",
	})

	ChainHead = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "collector_chain_head",
		Help: "The latest slot reported by the RPC node",
	})

	CollectorLag = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "collector_lag_slots",
		Help: "Slots between the chain head and the highest collector checkpoint",
	})
)

// Parser Metrics
var (
	ParserBatches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "parser_batches_total",
		Help: "The total number of raw batches consumed by outcome",
	}, []string{"status"})

	ParserRecords = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "parser_records_total",
		Help: "The total number of valid records written per entity",
	}, []string{"entity"})

	ParserInvalidRecords = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "parser_invalid_records_total",
		Help: "The total number of records dropped by the schema gate per entity",
	}, []string{"entity"})

	ParserBatchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "parser_batch_duration_seconds",
		Help:    "Time spent turning one raw batch into columnar files",
		Buckets: prometheus.DefBuckets,
	})

	RawFilesQueue = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "raw_files_queue",
		Help: "The number of raw batch files waiting for the parser",
	})
)

// Validator Metrics
var (
	ValidatorFiles = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "validator_files_total",
		Help: "The total number of columnar files finalized by outcome",
	}, []string{"outcome"})

	ValidatorPartitionFiles = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "validator_partition_files_total",
		Help: "The total number of partition files written per entity",
	}, []string{"entity"})

	ValidatorSplitFiles = promauto.NewCounter(prometheus.CounterOpts{
		Name: "validator_split_files_total",
		Help: "The total number of source files that straddled a partition boundary",
	})

	ProcessedFilesQueue = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "processed_files_queue",
		Help: "The number of columnar files waiting for the validator",
	})

	SinkErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "validator_sink_errors_total",
		Help: "The total number of failed partition notifications per sink",
	}, []string{"sink"})
)

// Checkpoint Metrics
var (
	CheckpointWriteDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "checkpoint_write_duration_seconds",
		Help:    "Duration of checkpoint writes per stage",
		Buckets: prometheus.DefBuckets,
	}, []string{"stage"})
)

// Publisher Metrics
var (
	PublishDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "publisher_duration_seconds",
		Help:    "Time spent publishing partition events",
		Buckets: prometheus.DefBuckets,
	})

	PublisherPartitionCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "publisher_partition_files_published_total",
		Help: "The total number of partition files announced to Kafka",
	})
)
