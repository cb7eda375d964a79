package publisher

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	config "github.com/JeroniMan/solana-indexer/configs"
	"github.com/JeroniMan/solana-indexer/internal/common"
	"github.com/JeroniMan/solana-indexer/internal/metrics"
	"github.com/rs/zerolog/log"
	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/pkg/sasl/plain"
)

const DEFAULT_TOPIC = "solana.partitions"

// Publisher announces finalized partition files on a Kafka topic.
type Publisher struct {
	client *kgo.Client
	topic  string
	mu     sync.RWMutex
}

type PartitionMessage struct {
	Data      common.PartitionFile `json:"data"`
	Type      string               `json:"type"`
	Timestamp time.Time            `json:"timestamp"`
}

func NewPublisher(cfg *config.KafkaConfig) (*Publisher, error) {
	if cfg.Brokers == "" {
		return nil, fmt.Errorf("publisher.kafka.brokers is required")
	}

	brokers := strings.Split(cfg.Brokers, ",")
	opts := []kgo.Opt{
		kgo.SeedBrokers(brokers...),
		kgo.AllowAutoTopicCreation(),
		kgo.ProducerBatchCompression(kgo.ZstdCompression()),
		kgo.ClientID("solana-indexer-validator"),
		kgo.MaxBufferedRecords(100_000),
		kgo.ProducerBatchMaxBytes(16_000_000),
		kgo.ProduceRequestTimeout(30 * time.Second),
		kgo.MetadataMaxAge(60 * time.Second),
		kgo.DialTimeout(10 * time.Second),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.RequestRetries(5),
	}

	if cfg.Username != "" && cfg.Password != "" {
		opts = append(opts, kgo.SASL(plain.Auth{
			User: cfg.Username,
			Pass: cfg.Password,
		}.AsMechanism()))
	}

	if cfg.EnableTLS {
		tlsDialer := &tls.Dialer{NetDialer: &net.Dialer{Timeout: 10 * time.Second}}
		opts = append(opts, kgo.Dialer(tlsDialer.DialContext))
	}

	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka client: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := client.Ping(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Kafka: %v", err)
	}

	topic := cfg.Topic
	if topic == "" {
		topic = DEFAULT_TOPIC
	}
	return &Publisher{client: client, topic: topic}, nil
}

// RecordPartitionFiles produces one record per file and waits for every
// acknowledgement. The first failure is returned.
func (p *Publisher) RecordPartitionFiles(ctx context.Context, files []common.PartitionFile) error {
	if len(files) == 0 {
		return nil
	}
	publishStart := time.Now()

	records := make([]*kgo.Record, 0, len(files))
	for _, f := range files {
		record, err := createPartitionRecord(p.topic, f)
		if err != nil {
			return err
		}
		records = append(records, record)
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.client == nil {
		return nil
	}

	var wg sync.WaitGroup
	var errMu sync.Mutex
	var firstErr error
	wg.Add(len(records))
	for _, record := range records {
		p.client.Produce(ctx, record, func(_ *kgo.Record, err error) {
			defer wg.Done()
			if err != nil {
				log.Error().Err(err).Msg("Failed to publish partition message to Kafka")
				errMu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				errMu.Unlock()
			}
		})
	}
	wg.Wait()
	if firstErr != nil {
		return fmt.Errorf("failed to publish partition messages: %w", firstErr)
	}

	metrics.PublishDuration.Observe(time.Since(publishStart).Seconds())
	metrics.PublisherPartitionCounter.Add(float64(len(records)))
	return nil
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.client != nil {
		p.client.Close()
		p.client = nil
		log.Debug().Msg("Publisher client closed")
	}
	return nil
}

func createPartitionRecord(topic string, file common.PartitionFile) (*kgo.Record, error) {
	msg := PartitionMessage{
		Data:      file,
		Type:      "partition_finalized",
		Timestamp: file.FinalizeAt,
	}
	msgJson, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal partition message: %v", err)
	}
	return &kgo.Record{
		Topic: topic,
		Key:   []byte(file.Key),
		Value: msgJson,
		Headers: []kgo.RecordHeader{
			{Key: "entity", Value: []byte(file.Entity)},
			{Key: "epoch", Value: []byte(fmt.Sprintf("%d", file.Epoch))},
			{Key: "block_date", Value: []byte(file.BlockDate)},
		},
	}, nil
}
