// Package kafkasource is the concrete upstream.Client: it drives the
// connector's Coordinator (an upstream.Sink) from Kafka consumer-group
// rebalances and per-partition fetch loops, using
// github.com/segmentio/kafka-go — a Dialer built from brokers/TLS/SASL
// options, one goroutine per partition reading with
// kafka.Reader.FetchMessage.
//
// Source must expose per-partition pause/resume/seek to satisfy
// upstream.Client, so each assigned partition gets its own Reader
// goroutine gated by a shared gate instead of one Reader consuming the
// whole group.
package kafkasource

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	kafka "github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl/plain"

	"github.com/mbiondo/partition-sink/internal/partition"
	"github.com/mbiondo/partition-sink/internal/upstream"
	"github.com/mbiondo/partition-sink/internal/upstream/kafkasource/tlsconfig"
)

// Config holds the Kafka consumer settings a sink connector needs:
// broker/topic/group identity, TLS/SASL, and batch/poll tuning.
type Config struct {
	Brokers      []string         `yaml:"brokers"`
	Topics       []string         `yaml:"topics"`
	GroupID      string           `yaml:"group_id"`
	StartOffset  string           `yaml:"start_offset,omitempty"`
	MinBytes     int              `yaml:"min_bytes,omitempty"`
	MaxBytes     int              `yaml:"max_bytes,omitempty"`
	ClientID     string           `yaml:"client_id,omitempty"`
	Username     string           `yaml:"username,omitempty"`
	Password     string           `yaml:"password,omitempty"`
	BatchSize    int              `yaml:"batch_size,omitempty"`
	PollInterval time.Duration    `yaml:"poll_interval,omitempty"`
	TLS          tlsconfig.Config `yaml:"tls,omitempty"`
}

// Source is the upstream.Client implementation backed by a Kafka
// consumer group.
type Source struct {
	cfg    Config
	dialer *kafka.Dialer
	sink   upstream.Sink
	gate   *gate

	mu      sync.Mutex
	readers map[partition.ID]*partitionReader
}

// NewSource validates cfg and builds a Source that will drive sink once
// Run is called.
func NewSource(cfg Config, sink upstream.Sink) (*Source, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka source requires at least one broker")
	}
	if len(cfg.Topics) == 0 {
		return nil, fmt.Errorf("kafka source requires at least one topic")
	}
	if cfg.GroupID == "" {
		return nil, fmt.Errorf("kafka source requires a consumer group id")
	}
	if err := cfg.TLS.Validate(); err != nil {
		return nil, err
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 500
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 200 * time.Millisecond
	}

	dialer := &kafka.Dialer{Timeout: 10 * time.Second, DualStack: true}
	if cfg.ClientID != "" {
		dialer.ClientID = cfg.ClientID
	}
	if cfg.TLS.Enabled {
		tlsCfg, err := cfg.TLS.NewTLSConfig()
		if err != nil {
			return nil, fmt.Errorf("failed to build TLS config: %w", err)
		}
		dialer.TLS = tlsCfg
	}
	if cfg.Username != "" && cfg.Password != "" {
		dialer.SASLMechanism = plain.Mechanism{Username: cfg.Username, Password: cfg.Password}
	}

	return &Source{
		cfg:     cfg,
		dialer:  dialer,
		sink:    sink,
		gate:    newGate(),
		readers: make(map[partition.ID]*partitionReader),
	}, nil
}

// Run joins the consumer group and drives sink until ctx is canceled or
// an unrecoverable group error occurs. It blocks; callers run it in its
// own goroutine.
func (s *Source) Run(ctx context.Context) error {
	group, err := kafka.NewConsumerGroup(kafka.ConsumerGroupConfig{
		ID:      s.cfg.GroupID,
		Brokers: s.cfg.Brokers,
		Topics:  s.cfg.Topics,
		Dialer:  s.dialer,
	})
	if err != nil {
		return fmt.Errorf("kafka source: failed to join consumer group: %w", err)
	}
	defer func() { _ = group.Close() }()

	for {
		gen, err := group.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("kafka source: consumer group generation error: %w", err)
		}
		s.runGeneration(ctx, gen)
	}
}

// runGeneration assigns one partitionReader per (topic, partition) this
// generation owns, calls sink.OnAssigned, starts one fetch goroutine per
// partition via gen.Start, and arranges for sink.OnRevoked to run once
// every one of those goroutines has returned (i.e. the generation's quit
// channel fired for all of them). It does not block: kafka-go's
// ConsumerGroup.Next already waits for the previous generation's Start
// callbacks to finish before handing out a new one.
func (s *Source) runGeneration(ctx context.Context, gen *kafka.Generation) {
	var assigned []partition.ID

	s.mu.Lock()
	for topic, parts := range gen.Assignments {
		for _, a := range parts {
			p := partition.ID{Topic: topic, PartitionID: a.ID}
			assigned = append(assigned, p)
			pr := newPartitionReader(s, p, a.Offset)
			s.readers[p] = pr
		}
	}
	s.mu.Unlock()

	s.sink.OnAssigned(ctx, assigned)

	var genWG sync.WaitGroup
	for _, p := range assigned {
		pr := s.readers[p]
		genWG.Add(1)
		gen.Start(func(genCtx context.Context, quit <-chan struct{}) {
			defer genWG.Done()
			pr.run(genCtx, quit, gen)
		})
	}

	go func() {
		genWG.Wait()
		s.mu.Lock()
		for _, p := range assigned {
			delete(s.readers, p)
			s.gate.forget(p)
		}
		s.mu.Unlock()
		s.sink.OnRevoked(ctx, assigned)
	}()
}

// Assignment returns the partitions currently owned by this generation.
func (s *Source) Assignment() []partition.ID {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]partition.ID, 0, len(s.readers))
	for p := range s.readers {
		out = append(out, p)
	}
	return out
}

func (s *Source) Pause(p partition.ID)  { s.gate.pause(p) }
func (s *Source) Resume(p partition.ID) { s.gate.resume(p) }
func (s *Source) Seek(p partition.ID, offset partition.Offset) {
	s.gate.seek(p, offset)
}
func (s *Source) RequestBackoff(ms int) { s.gate.requestBackoff(ms) }

func (s *Source) logf(format string, args ...any) {
	log.Printf("kafka source: "+format, args...)
}
