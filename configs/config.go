package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type LogConfig struct {
	Level    string `mapstructure:"level"`
	Prettify bool   `mapstructure:"prettify"`
}

type RetryConfig struct {
	MaxAttempts      int `mapstructure:"maxAttempts"`
	InitialBackoffMs int `mapstructure:"initialBackoffMs"`
	MaxBackoffMs     int `mapstructure:"maxBackoffMs"`
}

type RPCConfig struct {
	URL        string      `mapstructure:"url"`
	TimeoutMs  int         `mapstructure:"timeoutMs"`
	Commitment string      `mapstructure:"commitment"`
	Retry      RetryConfig `mapstructure:"retry"`
}

type ErrorRateConfig struct {
	Window     int     `mapstructure:"window"`
	Threshold  float64 `mapstructure:"threshold"`
	MinSamples int     `mapstructure:"minSamples"`
}

type CollectorConfig struct {
	Enabled        bool            `mapstructure:"enabled"`
	StartSlot      uint64          `mapstructure:"startSlot"`
	EndSlot        uint64          `mapstructure:"endSlot"`
	Workers        int             `mapstructure:"workers"`
	BatchSize      int             `mapstructure:"batchSize"`
	PollIntervalMs int             `mapstructure:"pollIntervalMs"`
	ErrorRate      ErrorRateConfig `mapstructure:"errorRate"`
}

type ParserConfig struct {
	Enabled        bool            `mapstructure:"enabled"`
	Workers        int             `mapstructure:"workers"`
	PollIntervalMs int             `mapstructure:"pollIntervalMs"`
	Compression    string          `mapstructure:"compression"`
	ErrorRate      ErrorRateConfig `mapstructure:"errorRate"`
}

type ValidatorConfig struct {
	Enabled         bool            `mapstructure:"enabled"`
	Workers         int             `mapstructure:"workers"`
	PollIntervalMs  int             `mapstructure:"pollIntervalMs"`
	SlotsPerEpoch   uint64          `mapstructure:"slotsPerEpoch"`
	PartitionByHour bool            `mapstructure:"partitionByHour"`
	KeepSource      bool            `mapstructure:"keepSource"`
	ErrorRate       ErrorRateConfig `mapstructure:"errorRate"`
}

type StorageMode string

const (
	StorageModeLocal StorageMode = "local"
	StorageModeS3    StorageMode = "s3"
)

type LocalStorageConfig struct {
	Root string `mapstructure:"root"`
}

type S3StorageConfig struct {
	Bucket          string `mapstructure:"bucket"`
	Region          string `mapstructure:"region"`
	Prefix          string `mapstructure:"prefix"`
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"accessKeyId"`
	SecretAccessKey string `mapstructure:"secretAccessKey"`
	UsePathStyle    bool   `mapstructure:"usePathStyle"`
}

type StorageConfig struct {
	Mode  StorageMode         `mapstructure:"mode"`
	Local *LocalStorageConfig `mapstructure:"local"`
	S3    *S3StorageConfig    `mapstructure:"s3"`
}

type BadgerConfig struct {
	Path string `mapstructure:"path"`
}

type PebbleConfig struct {
	Path string `mapstructure:"path"`
}

type RedisConfig struct {
	Addr      string `mapstructure:"addr"`
	Username  string `mapstructure:"username"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	PoolSize  int    `mapstructure:"poolSize"`
	EnableTLS bool   `mapstructure:"enableTLS"`
	KeyPrefix string `mapstructure:"keyPrefix"`
}

type PostgresConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	Username        string `mapstructure:"username"`
	Password        string `mapstructure:"password"`
	Database        string `mapstructure:"database"`
	SSLMode         string `mapstructure:"sslMode"`
	ConnectTimeout  int    `mapstructure:"connectTimeout"`
	MaxOpenConns    int    `mapstructure:"maxOpenConns"`
	MaxIdleConns    int    `mapstructure:"maxIdleConns"`
	MaxConnLifetime int    `mapstructure:"maxConnLifetime"`
}

type MemoryConfig struct {
	MaxItems int `mapstructure:"maxItems"`
}

type ObjectCheckpointConfig struct {
	Prefix string `mapstructure:"prefix"`
}

type CheckpointDriver string

const (
	CheckpointDriverObject   CheckpointDriver = "object"
	CheckpointDriverBadger   CheckpointDriver = "badger"
	CheckpointDriverPebble   CheckpointDriver = "pebble"
	CheckpointDriverRedis    CheckpointDriver = "redis"
	CheckpointDriverPostgres CheckpointDriver = "postgres"
	CheckpointDriverMemory   CheckpointDriver = "memory"
)

type CheckpointConfig struct {
	Driver   CheckpointDriver        `mapstructure:"driver"`
	Object   *ObjectCheckpointConfig `mapstructure:"object"`
	Badger   *BadgerConfig           `mapstructure:"badger"`
	Pebble   *PebbleConfig           `mapstructure:"pebble"`
	Redis    *RedisConfig            `mapstructure:"redis"`
	Postgres *PostgresConfig         `mapstructure:"postgres"`
	Memory   *MemoryConfig           `mapstructure:"memory"`
}

type KafkaConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Brokers   string `mapstructure:"brokers"`
	Username  string `mapstructure:"username"`
	Password  string `mapstructure:"password"`
	EnableTLS bool   `mapstructure:"enableTLS"`
	Topic     string `mapstructure:"topic"`
}

type PublisherConfig struct {
	Kafka KafkaConfig `mapstructure:"kafka"`
}

type ClickhouseConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	Username   string `mapstructure:"username"`
	Password   string `mapstructure:"password"`
	Database   string `mapstructure:"database"`
	DisableTLS bool   `mapstructure:"disableTLS"`
}

type CatalogConfig struct {
	Clickhouse ClickhouseConfig `mapstructure:"clickhouse"`
}

type BasicAuthConfig struct {
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

type APIConfig struct {
	Host      string          `mapstructure:"host"`
	Port      int             `mapstructure:"port"`
	BasicAuth BasicAuthConfig `mapstructure:"basicAuth"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

type Config struct {
	RPC        RPCConfig        `mapstructure:"rpc"`
	Log        LogConfig        `mapstructure:"log"`
	Collector  CollectorConfig  `mapstructure:"collector"`
	Parser     ParserConfig     `mapstructure:"parser"`
	Validator  ValidatorConfig  `mapstructure:"validator"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Checkpoint CheckpointConfig `mapstructure:"checkpoint"`
	Publisher  PublisherConfig  `mapstructure:"publisher"`
	Catalog    CatalogConfig    `mapstructure:"catalog"`
	API        APIConfig        `mapstructure:"api"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
}

var Cfg Config

func LoadConfig(cfgFile string) error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("error reading config file, %s", err)
		}
	} else {
		viper.SetConfigName("config")
		viper.AddConfigPath("./configs")

		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("error reading config file, %s", err)
		}

		// secrets are optional, they only override values from config.yml
		viper.SetConfigName("secrets")
		if err := viper.MergeInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return fmt.Errorf("error loading secrets file: %v", err)
			}
		}
	}

	// sets e.g. RPC_URL to rpc.url
	replacer := strings.NewReplacer(".", "_")
	viper.SetEnvKeyReplacer(replacer)

	viper.AutomaticEnv()

	err := viper.Unmarshal(&Cfg)
	if err != nil {
		return fmt.Errorf("error unmarshalling config: %v", err)
	}

	return nil
}
