// Package redissource implements source.DataSource over Redis.
//
// Full records are JSON strings at finwatch:record:{KEY}; the latest quote of
// each key is a JSON string at finwatch:quote:{KEY}. A price batch is a single
// MGET, so one batch is one round trip.
package redissource

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rshade/finwatch/internal/record"
	"github.com/rshade/finwatch/internal/source"
)

// Key prefixes.
const (
	RecordPrefix = "finwatch:record:"
	QuotePrefix  = "finwatch:quote:"
)

// Config configures the Redis connection.
type Config struct {
	Addr     string
	Password string
	DB       int
}

// Source reads records and quotes from Redis.
type Source struct {
	client redis.UniversalClient
}

var _ source.DataSource = (*Source)(nil)

// New connects to Redis with cfg.
func New(cfg Config) (*Source, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis address is required")
	}
	return NewWithClient(redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client redis.UniversalClient) *Source {
	return &Source{client: client}
}

// Ping checks the connection.
func (s *Source) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return classify(ctx, fmt.Errorf("ping redis: %w", err))
	}
	return nil
}

// Close closes the client.
func (s *Source) Close() error {
	return s.client.Close()
}

// FetchFull reads the record JSON for key.
func (s *Source) FetchFull(ctx context.Context, key record.Key) (record.Record, error) {
	data, err := s.client.Get(ctx, RecordPrefix+key.String()).Bytes()
	if errors.Is(err, redis.Nil) {
		return record.Record{}, fmt.Errorf("record %s: %w", key, source.ErrNotFound)
	}
	if err != nil {
		return record.Record{}, classify(ctx, fmt.Errorf("get record %s: %w", key, err))
	}

	var rec record.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return record.Record{}, fmt.Errorf("unmarshal record %s: %w", key, err)
	}
	rec.Key = key
	return rec, nil
}

// FetchPrices reads the quotes for keys with one MGET. Keys without a quote
// are omitted; an unreadable quote fails the whole batch.
func (s *Source) FetchPrices(ctx context.Context, keys []record.Key) ([]record.PricePatch, error) {
	if len(keys) == 0 {
		return nil, nil
	}

	redisKeys := make([]string, len(keys))
	for i, k := range keys {
		redisKeys[i] = QuotePrefix + k.String()
	}

	results, err := s.client.MGet(ctx, redisKeys...).Result()
	if err != nil {
		return nil, classify(ctx, fmt.Errorf("mget quotes: %w", err))
	}

	patches := make([]record.PricePatch, 0, len(keys))
	for i, val := range results {
		payload, ok := val.(string)
		if !ok || payload == "" {
			continue
		}
		var q record.Quote
		if err := json.Unmarshal([]byte(payload), &q); err != nil {
			return nil, fmt.Errorf("unmarshal quote %s: %w", keys[i], err)
		}
		patches = append(patches, record.PricePatch{Key: keys[i], Quote: q})
	}
	return patches, nil
}

// Seed writes full records and their quotes. ttl of zero keeps them forever.
func (s *Source) Seed(ctx context.Context, records []record.Record, ttl time.Duration) error {
	pipe := s.client.TxPipeline()
	for _, rec := range records {
		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("marshal record %s: %w", rec.Key, err)
		}
		quote, err := json.Marshal(rec.Quote)
		if err != nil {
			return fmt.Errorf("marshal quote %s: %w", rec.Key, err)
		}
		pipe.Set(ctx, RecordPrefix+rec.Key.String(), data, ttl)
		pipe.Set(ctx, QuotePrefix+rec.Key.String(), quote, ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("seed redis: %w", err)
	}
	return nil
}

// PublishQuote overwrites the stored quote of key.
func (s *Source) PublishQuote(ctx context.Context, key record.Key, q record.Quote) error {
	data, err := json.Marshal(q)
	if err != nil {
		return fmt.Errorf("marshal quote %s: %w", key, err)
	}
	return s.client.Set(ctx, QuotePrefix+key.String(), data, 0).Err()
}

// classify marks connection failures as transient.
func classify(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return err
	}
	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, redis.ErrClosed) {
		return fmt.Errorf("%w: %w", source.ErrTransient, err)
	}
	return err
}
