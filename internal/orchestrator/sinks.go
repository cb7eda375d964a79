package orchestrator

import (
	"fmt"

	config "github.com/JeroniMan/solana-indexer/configs"
	"github.com/JeroniMan/solana-indexer/internal/publisher"
	"github.com/JeroniMan/solana-indexer/internal/storage"
	"github.com/JeroniMan/solana-indexer/internal/validator"
	"github.com/rs/zerolog/log"
)

const (
	SinkKafka      = "kafka"
	SinkClickHouse = "clickhouse"
)

// Sinks holds the partition sinks enabled in the configuration.
type Sinks struct {
	sinks map[string]storage.IPartitionSink
}

// NewSinks connects every enabled sink. A sink that cannot connect fails the
// whole call so that a misconfigured deployment does not start silently.
func NewSinks(cfg *config.Config) (*Sinks, error) {
	s := &Sinks{sinks: map[string]storage.IPartitionSink{}}

	if cfg.Publisher.Kafka.Enabled {
		p, err := publisher.NewPublisher(&cfg.Publisher.Kafka)
		if err != nil {
			return nil, fmt.Errorf("failed to create kafka publisher: %w", err)
		}
		s.sinks[SinkKafka] = p
		log.Info().Str("brokers", cfg.Publisher.Kafka.Brokers).Msg("Kafka partition publisher enabled")
	}

	if cfg.Catalog.Clickhouse.Enabled {
		c, err := storage.NewClickHouseCatalog(&cfg.Catalog.Clickhouse)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("failed to create clickhouse catalog: %w", err)
		}
		s.sinks[SinkClickHouse] = c
		log.Info().Str("host", cfg.Catalog.Clickhouse.Host).Msg("ClickHouse partition catalog enabled")
	}
	return s, nil
}

// ValidatorOptions registers every sink with the validator.
func (s *Sinks) ValidatorOptions() []validator.ValidatorOption {
	opts := make([]validator.ValidatorOption, 0, len(s.sinks))
	for _, name := range []string{SinkKafka, SinkClickHouse} {
		if sink, ok := s.sinks[name]; ok {
			opts = append(opts, validator.WithSink(name, sink))
		}
	}
	return opts
}

func (s *Sinks) Len() int {
	return len(s.sinks)
}

func (s *Sinks) Close() {
	for name, sink := range s.sinks {
		if err := sink.Close(); err != nil {
			log.Error().Err(err).Str("sink", name).Msg("Failed to close partition sink")
		}
	}
}
