package cmd

import (
	"os"

	config "github.com/JeroniMan/solana-indexer/configs"
	"github.com/JeroniMan/solana-indexer/internal/env"
	customLogger "github.com/JeroniMan/solana-indexer/internal/log"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	// Used for flags.
	cfgFile string
	envFile string

	rootCmd = &cobra.Command{
		Use:   "solana-indexer",
		Short: "Solana slot indexer",
		Long:  "Collects Solana blocks slot by slot, parses them into columnar files and partitions them by epoch and date",
		Run: func(cmd *cobra.Command, args []string) {
			RunOrchestratorWithApi(cmd, args)
		},
	}
)

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./configs/config.yml)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "env file to load before reading the config (default is .env)")
	rootCmd.PersistentFlags().String("rpc-url", "", "Solana RPC url")
	rootCmd.PersistentFlags().Int("rpc-timeoutMs", 0, "Timeout of a single RPC request in milliseconds")
	rootCmd.PersistentFlags().String("rpc-commitment", "", "Commitment level used for getBlock and getSlot")
	rootCmd.PersistentFlags().Int("rpc-retry-maxAttempts", 0, "Attempts per slot before it is recorded as a gap")
	rootCmd.PersistentFlags().Int("rpc-retry-initialBackoffMs", 0, "First retry backoff in milliseconds")
	rootCmd.PersistentFlags().Int("rpc-retry-maxBackoffMs", 0, "Retry backoff cap in milliseconds")
	rootCmd.PersistentFlags().String("log-level", "", "Log level to use for the application")
	rootCmd.PersistentFlags().Bool("log-prettify", false, "Whether to prettify the log output")
	rootCmd.PersistentFlags().Bool("collector-enabled", true, "Toggle collector")
	rootCmd.PersistentFlags().Uint64("collector-start-slot", 0, "First slot to collect")
	rootCmd.PersistentFlags().Uint64("collector-end-slot", 0, "Last slot to collect, 0 follows the chain head")
	rootCmd.PersistentFlags().Int("collector-workers", 0, "Number of collector shards")
	rootCmd.PersistentFlags().Int("collector-batch-size", 0, "Slots per raw batch file")
	rootCmd.PersistentFlags().Int("collector-poll-interval", 0, "How often an idle open ended collector checks the chain head in milliseconds")
	rootCmd.PersistentFlags().Bool("parser-enabled", true, "Toggle parser")
	rootCmd.PersistentFlags().Int("parser-workers", 0, "Number of raw batches parsed concurrently")
	rootCmd.PersistentFlags().Int("parser-poll-interval", 0, "How often the parser looks for raw batches in milliseconds")
	rootCmd.PersistentFlags().String("parser-compression", "", "Columnar file compression (zstd, snappy, gzip, none)")
	rootCmd.PersistentFlags().Bool("validator-enabled", true, "Toggle validator")
	rootCmd.PersistentFlags().Int("validator-workers", 0, "Number of columnar files finalized concurrently")
	rootCmd.PersistentFlags().Int("validator-poll-interval", 0, "How often the validator looks for columnar files in milliseconds")
	rootCmd.PersistentFlags().Uint64("validator-slots-per-epoch", 0, "Slots per epoch used for partitioning")
	rootCmd.PersistentFlags().Bool("validator-partition-by-hour", false, "Add a block_hour level to partitions")
	rootCmd.PersistentFlags().Bool("validator-keep-source", false, "Keep columnar files after they are finalized")
	rootCmd.PersistentFlags().String("storage-mode", "", "Object storage mode (local or s3)")
	rootCmd.PersistentFlags().String("storage-local-root", "", "Root directory of local object storage")
	rootCmd.PersistentFlags().String("storage-s3-bucket", "", "S3 bucket")
	rootCmd.PersistentFlags().String("storage-s3-region", "", "S3 region")
	rootCmd.PersistentFlags().String("storage-s3-prefix", "", "Key prefix inside the S3 bucket")
	rootCmd.PersistentFlags().String("storage-s3-endpoint", "", "Custom S3 endpoint")
	rootCmd.PersistentFlags().String("checkpoint-driver", "", "Checkpoint store (object, badger, pebble, redis, postgres, memory)")
	rootCmd.PersistentFlags().String("checkpoint-badger-path", "", "Directory of the badger checkpoint store")
	rootCmd.PersistentFlags().String("checkpoint-pebble-path", "", "Directory of the pebble checkpoint store")
	rootCmd.PersistentFlags().String("checkpoint-redis-addr", "", "Redis address of the checkpoint store")
	rootCmd.PersistentFlags().String("checkpoint-postgres-host", "", "Postgres host of the checkpoint store")
	rootCmd.PersistentFlags().Int("checkpoint-postgres-port", 0, "Postgres port of the checkpoint store")
	rootCmd.PersistentFlags().Bool("publisher-kafka-enabled", false, "Publish finalized partition files to Kafka")
	rootCmd.PersistentFlags().String("publisher-kafka-brokers", "", "Comma separated Kafka brokers")
	rootCmd.PersistentFlags().Bool("catalog-clickhouse-enabled", false, "Record finalized partition files in ClickHouse")
	rootCmd.PersistentFlags().String("catalog-clickhouse-host", "", "ClickHouse host of the partition catalog")
	rootCmd.PersistentFlags().String("api-host", "", "Host the status API is reachable at")
	rootCmd.PersistentFlags().Int("api-port", 0, "Port of the status API")
	rootCmd.PersistentFlags().Bool("metrics-enabled", true, "Serve prometheus metrics")
	rootCmd.PersistentFlags().String("metrics-addr", "", "Listen address of the metrics server")
	viper.BindPFlag("rpc.url", rootCmd.PersistentFlags().Lookup("rpc-url"))
	viper.BindPFlag("rpc.timeoutMs", rootCmd.PersistentFlags().Lookup("rpc-timeoutMs"))
	viper.BindPFlag("rpc.commitment", rootCmd.PersistentFlags().Lookup("rpc-commitment"))
	viper.BindPFlag("rpc.retry.maxAttempts", rootCmd.PersistentFlags().Lookup("rpc-retry-maxAttempts"))
	viper.BindPFlag("rpc.retry.initialBackoffMs", rootCmd.PersistentFlags().Lookup("rpc-retry-initialBackoffMs"))
	viper.BindPFlag("rpc.retry.maxBackoffMs", rootCmd.PersistentFlags().Lookup("rpc-retry-maxBackoffMs"))
	viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("log.prettify", rootCmd.PersistentFlags().Lookup("log-prettify"))
	viper.BindPFlag("collector.enabled", rootCmd.PersistentFlags().Lookup("collector-enabled"))
	viper.BindPFlag("collector.startSlot", rootCmd.PersistentFlags().Lookup("collector-start-slot"))
	viper.BindPFlag("collector.endSlot", rootCmd.PersistentFlags().Lookup("collector-end-slot"))
	viper.BindPFlag("collector.workers", rootCmd.PersistentFlags().Lookup("collector-workers"))
	viper.BindPFlag("collector.batchSize", rootCmd.PersistentFlags().Lookup("collector-batch-size"))
	viper.BindPFlag("collector.pollIntervalMs", rootCmd.PersistentFlags().Lookup("collector-poll-interval"))
	viper.BindPFlag("parser.enabled", rootCmd.PersistentFlags().Lookup("parser-enabled"))
	viper.BindPFlag("parser.workers", rootCmd.PersistentFlags().Lookup("parser-workers"))
	viper.BindPFlag("parser.pollIntervalMs", rootCmd.PersistentFlags().Lookup("parser-poll-interval"))
	viper.BindPFlag("parser.compression", rootCmd.PersistentFlags().Lookup("parser-compression"))
	viper.BindPFlag("validator.enabled", rootCmd.PersistentFlags().Lookup("validator-enabled"))
	viper.BindPFlag("validator.workers", rootCmd.PersistentFlags().Lookup("validator-workers"))
	viper.BindPFlag("validator.pollIntervalMs", rootCmd.PersistentFlags().Lookup("validator-poll-interval"))
	viper.BindPFlag("validator.slotsPerEpoch", rootCmd.PersistentFlags().Lookup("validator-slots-per-epoch"))
	viper.BindPFlag("validator.partitionByHour", rootCmd.PersistentFlags().Lookup("validator-partition-by-hour"))
	viper.BindPFlag("validator.keepSource", rootCmd.PersistentFlags().Lookup("validator-keep-source"))
	viper.BindPFlag("storage.mode", rootCmd.PersistentFlags().Lookup("storage-mode"))
	viper.BindPFlag("storage.local.root", rootCmd.PersistentFlags().Lookup("storage-local-root"))
	viper.BindPFlag("storage.s3.bucket", rootCmd.PersistentFlags().Lookup("storage-s3-bucket"))
	viper.BindPFlag("storage.s3.region", rootCmd.PersistentFlags().Lookup("storage-s3-region"))
	viper.BindPFlag("storage.s3.prefix", rootCmd.PersistentFlags().Lookup("storage-s3-prefix"))
	viper.BindPFlag("storage.s3.endpoint", rootCmd.PersistentFlags().Lookup("storage-s3-endpoint"))
	viper.BindPFlag("checkpoint.driver", rootCmd.PersistentFlags().Lookup("checkpoint-driver"))
	viper.BindPFlag("checkpoint.badger.path", rootCmd.PersistentFlags().Lookup("checkpoint-badger-path"))
	viper.BindPFlag("checkpoint.pebble.path", rootCmd.PersistentFlags().Lookup("checkpoint-pebble-path"))
	viper.BindPFlag("checkpoint.redis.addr", rootCmd.PersistentFlags().Lookup("checkpoint-redis-addr"))
	viper.BindPFlag("checkpoint.postgres.host", rootCmd.PersistentFlags().Lookup("checkpoint-postgres-host"))
	viper.BindPFlag("checkpoint.postgres.port", rootCmd.PersistentFlags().Lookup("checkpoint-postgres-port"))
	viper.BindPFlag("publisher.kafka.enabled", rootCmd.PersistentFlags().Lookup("publisher-kafka-enabled"))
	viper.BindPFlag("publisher.kafka.brokers", rootCmd.PersistentFlags().Lookup("publisher-kafka-brokers"))
	viper.BindPFlag("catalog.clickhouse.enabled", rootCmd.PersistentFlags().Lookup("catalog-clickhouse-enabled"))
	viper.BindPFlag("catalog.clickhouse.host", rootCmd.PersistentFlags().Lookup("catalog-clickhouse-host"))
	viper.BindPFlag("api.host", rootCmd.PersistentFlags().Lookup("api-host"))
	viper.BindPFlag("api.port", rootCmd.PersistentFlags().Lookup("api-port"))
	viper.BindPFlag("metrics.enabled", rootCmd.PersistentFlags().Lookup("metrics-enabled"))
	viper.BindPFlag("metrics.addr", rootCmd.PersistentFlags().Lookup("metrics-addr"))
	rootCmd.AddCommand(orchestratorCmd)
	rootCmd.AddCommand(collectorCmd)
	rootCmd.AddCommand(parserCmd)
	rootCmd.AddCommand(validatorCmd)
	rootCmd.AddCommand(apiCmd)
	rootCmd.AddCommand(gapsCmd)
	rootCmd.AddCommand(resetCmd)
}

func initConfig() {
	if envFile != "" {
		env.Load(envFile)
	} else {
		env.Load()
	}
	if err := config.LoadConfig(cfgFile); err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	customLogger.InitLogger()
}
