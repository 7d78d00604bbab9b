// Package export publishes recorded modification events to Kafka, for a
// consumer that wants a durable stream of the same data HistoryStore
// holds in memory (spec.md's "Persisted state: none" is a property of
// HistoryStore itself; this is an optional downstream sink layered on
// top, not a contradiction of it). Grounded on the teacher's own Kafka
// sink: async sarama producer, SASL/SCRAM auth, background loop draining
// the producer's success and error channels.
package export

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/IBM/sarama"
	"github.com/sirupsen/logrus"

	"fieldwatch-agent/internal/config"
	"fieldwatch-agent/internal/metrics"
	"fieldwatch-agent/pkg/historystore"
)

// Event is the wire shape published for one recorded modification,
// whichever kind triggered it.
type Event struct {
	Kind       string `json:"kind"` // "field" | "container"
	Class      string `json:"class,omitempty"`
	Field      string `json:"field,omitempty"`
	Element    any    `json:"element,omitempty"`
	IsAddition bool   `json:"is_addition,omitempty"`
	Timestamp  int64  `json:"timestamp"`
}

// Publisher is a best-effort async Kafka publisher for modification
// events. A publish failure is logged and counted, never propagated to
// the hot path that produced the event — this is a downstream fan-out,
// not a dependency of HistoryStore's own correctness.
type Publisher struct {
	cfg      config.ExportConfig
	log      *logrus.Logger
	producer sarama.AsyncProducer

	sentCount  int64
	errorCount int64

	wg sync.WaitGroup
}

// NewPublisher builds a Publisher, or returns (nil, nil) if cfg.Enabled is
// false — callers skip wiring a disabled publisher entirely rather than
// holding a no-op implementation of it.
func NewPublisher(cfg config.ExportConfig, log *logrus.Logger) (*Publisher, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("export: no brokers configured")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("export: no topic configured")
	}

	saramaConfig := sarama.NewConfig()
	saramaConfig.Producer.Return.Successes = true
	saramaConfig.Producer.Return.Errors = true
	saramaConfig.Producer.RequiredAcks = sarama.WaitForLocal
	saramaConfig.Producer.Compression = sarama.CompressionSnappy

	if cfg.SASL.Enabled {
		saramaConfig.Net.SASL.Enable = true
		saramaConfig.Net.SASL.User = cfg.SASL.Username
		saramaConfig.Net.SASL.Password = cfg.SASL.Password
		switch strings.ToUpper(cfg.SASL.Mechanism) {
		case "SCRAM-SHA-256":
			saramaConfig.Net.SASL.Mechanism = sarama.SASLTypeSCRAMSHA256
			saramaConfig.Net.SASL.SCRAMClientGeneratorFunc = func() sarama.SCRAMClient {
				return &xdgSCRAMClient{HashGeneratorFcn: scramSHA256}
			}
		case "SCRAM-SHA-512":
			saramaConfig.Net.SASL.Mechanism = sarama.SASLTypeSCRAMSHA512
			saramaConfig.Net.SASL.SCRAMClientGeneratorFunc = func() sarama.SCRAMClient {
				return &xdgSCRAMClient{HashGeneratorFcn: scramSHA512}
			}
		default:
			return nil, fmt.Errorf("export: unsupported SASL mechanism %q", cfg.SASL.Mechanism)
		}
	}

	producer, err := sarama.NewAsyncProducer(cfg.Brokers, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("export: create producer: %w", err)
	}

	p := &Publisher{cfg: cfg, log: log, producer: producer}
	p.wg.Add(1)
	go p.handleResponses()
	return p, nil
}

// PublishFieldModification publishes a field-reassignment event. now is
// passed in rather than read internally so the caller controls the
// timestamp's clock source.
func (p *Publisher) PublishFieldModification(locator historystore.FieldLocator, now time.Time) {
	p.publish(Event{Kind: "field", Class: locator.Class, Field: locator.Field, Timestamp: now.UnixMilli()})
}

// PublishContainerModification publishes a container element insertion or
// removal event.
func (p *Publisher) PublishContainerModification(mod historystore.ContainerModification, now time.Time) {
	p.publish(Event{Kind: "container", Element: mod.Element, IsAddition: mod.IsAddition, Timestamp: now.UnixMilli()})
}

func (p *Publisher) publish(evt Event) {
	value, err := json.Marshal(evt)
	if err != nil {
		p.log.WithError(err).Error("export: failed to marshal event")
		return
	}
	msg := &sarama.ProducerMessage{Topic: p.cfg.Topic, Value: sarama.ByteEncoder(value)}
	select {
	case p.producer.Input() <- msg:
	default:
		atomic.AddInt64(&p.errorCount, 1)
		metrics.ExportPublishFailures.Inc()
		p.log.Warn("export: producer input full, dropping event")
	}
}

func (p *Publisher) handleResponses() {
	defer p.wg.Done()
	for {
		select {
		case success, ok := <-p.producer.Successes():
			if !ok {
				return
			}
			if success != nil {
				atomic.AddInt64(&p.sentCount, 1)
			}
		case err, ok := <-p.producer.Errors():
			if !ok {
				return
			}
			if err != nil {
				atomic.AddInt64(&p.errorCount, 1)
				metrics.ExportPublishFailures.Inc()
				p.log.WithError(err.Err).Error("export: failed to publish event")
			}
		}
	}
}

// Shutdown closes the producer, waiting for in-flight publishes to
// finish or ctx to expire.
func (p *Publisher) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		p.producer.Close()
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
