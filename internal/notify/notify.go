// Package notify publishes engine events to Kafka so other services can
// follow which instruments were loaded and which quotes moved.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"

	"github.com/rshade/finwatch/internal/engine"
	"github.com/rshade/finwatch/internal/record"
)

// DefaultBuffer is the number of events queued before Observe starts dropping.
const DefaultBuffer = 256

// Writer is the subset of *kafka.Writer the publisher needs.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Message is the JSON payload of a published event.
type Message struct {
	Type   string           `json:"type"`
	Epoch  uint64           `json:"epoch"`
	Key    string           `json:"key"`
	Price  *decimal.Decimal `json:"price,omitempty"`
	Change *decimal.Decimal `json:"change,omitempty"`
	Volume int64            `json:"volume,omitempty"`
	At     time.Time        `json:"at"`
}

// EncodeEvent turns an engine event into Kafka messages keyed by symbol.
// Only key-loaded and prices-refreshed events are published; others encode
// to nothing. Prices come from the quotes the event carries, so a queued
// message reports the quote of its own commit.
func EncodeEvent(ev engine.Event) ([]kafka.Message, error) {
	var keys []record.Key
	switch ev.Kind {
	case engine.EventKeyLoaded:
		keys = []record.Key{ev.Key}
	case engine.EventPricesRefreshed:
		keys = ev.Keys
	default:
		return nil, nil
	}

	out := make([]kafka.Message, 0, len(keys))
	for _, k := range keys {
		m := Message{Type: ev.Kind.String(), Epoch: ev.Epoch, Key: k.String(), At: ev.At.UTC()}
		if q, ok := ev.Quotes[k]; ok {
			m.Price = &q.Price
			m.Change = &q.Change
			m.Volume = q.Volume
		}
		payload, err := json.Marshal(m)
		if err != nil {
			return nil, fmt.Errorf("encode %s event for %s: %w", ev.Kind, k, err)
		}
		out = append(out, kafka.Message{
			Key:   []byte(k),
			Value: payload,
			Time:  ev.At,
		})
	}
	return out, nil
}

// Config configures a KafkaPublisher.
type Config struct {
	Brokers []string
	Topic   string
	Buffer  int
}

// NewKafkaWriter builds a kafka-go writer for cfg.
func NewKafkaWriter(cfg Config) (*kafka.Writer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("at least one kafka broker is required")
	}
	if cfg.Topic == "" {
		return nil, errors.New("kafka topic is required")
	}
	return &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		BatchTimeout:           100 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}, nil
}

// KafkaPublisher forwards engine events to a Writer from its own goroutine.
// Observe never blocks the engine; when the buffer is full events are dropped.
type KafkaPublisher struct {
	writer Writer
	log    zerolog.Logger
	events chan engine.Event

	mu      sync.Mutex
	closed  bool
	dropped int

	done chan struct{}
}

// NewKafkaPublisher starts a publisher writing through w.
func NewKafkaPublisher(w Writer, buffer int, log zerolog.Logger) *KafkaPublisher {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	p := &KafkaPublisher{
		writer: w,
		log:    log.With().Str("component", "notify").Logger(),
		events: make(chan engine.Event, buffer),
		done:   make(chan struct{}),
	}
	go p.run()
	return p
}

// Observe queues ev for publishing. It is meant for engine.WithObserver.
func (p *KafkaPublisher) Observe(ev engine.Event) {
	if ev.Kind != engine.EventKeyLoaded && ev.Kind != engine.EventPricesRefreshed {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	select {
	case p.events <- ev:
	default:
		p.dropped++
	}
}

// Dropped returns how many events were dropped because the buffer was full.
func (p *KafkaPublisher) Dropped() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dropped
}

// Close publishes queued events, then closes the writer.
func (p *KafkaPublisher) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.events)
	p.mu.Unlock()

	<-p.done
	return p.writer.Close()
}

func (p *KafkaPublisher) run() {
	defer close(p.done)

	for ev := range p.events {
		msgs, err := EncodeEvent(ev)
		if err != nil {
			p.log.Warn().Err(err).Str("operation", "encode").Msg("dropping event")
			continue
		}
		if len(msgs) == 0 {
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err = p.writer.WriteMessages(ctx, msgs...)
		cancel()
		if err != nil {
			p.log.Warn().
				Err(err).
				Str("operation", "publish").
				Str("event", ev.Kind.String()).
				Int("messages", len(msgs)).
				Msg("kafka write failed")
		}
	}
}
