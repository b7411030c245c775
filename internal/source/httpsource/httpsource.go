// Package httpsource implements source.DataSource over a JSON HTTP API.
//
//	GET {base}/v1/records/{KEY}           full record, 404 when unknown
//	GET {base}/v1/quotes?symbols=A,B,C    {"quotes":[{"key":"A","quote":{...}}]}
//
// Retries with backoff for 429 and 5xx responses are handled by
// go-retryablehttp; the engine sees one call per key or batch.
package httpsource

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"

	"github.com/rshade/finwatch/internal/record"
	"github.com/rshade/finwatch/internal/source"
)

// Defaults applied by New for zero Config fields.
const (
	DefaultTimeout      = 10 * time.Second
	DefaultRetryMax     = 3
	DefaultRetryWaitMin = 500 * time.Millisecond
	DefaultRetryWaitMax = 5 * time.Second

	maxBodyBytes = 4 << 20
)

// Config configures the HTTP source.
type Config struct {
	BaseURL      string
	APIKey       string
	Timeout      time.Duration
	RetryMax     int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
}

// Source is a DataSource backed by HTTP.
type Source struct {
	base   *url.URL
	apiKey string
	client *retryablehttp.Client
}

var _ source.DataSource = (*Source)(nil)

// New creates an HTTP source. RetryMax of -1 disables retries.
func New(cfg Config, logger zerolog.Logger) (*Source, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("base URL is required")
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("base URL %q must be http or https", cfg.BaseURL)
	}

	client := retryablehttp.NewClient()
	client.Logger = leveledLogger{l: logger.With().Str("component", "httpsource").Logger()}
	client.RetryMax = DefaultRetryMax
	client.RetryWaitMin = DefaultRetryWaitMin
	client.RetryWaitMax = DefaultRetryWaitMax
	client.HTTPClient.Timeout = DefaultTimeout

	switch {
	case cfg.RetryMax < 0:
		client.RetryMax = 0
	case cfg.RetryMax > 0:
		client.RetryMax = cfg.RetryMax
	}
	if cfg.RetryWaitMin > 0 {
		client.RetryWaitMin = cfg.RetryWaitMin
	}
	if cfg.RetryWaitMax > 0 {
		client.RetryWaitMax = cfg.RetryWaitMax
	}
	if cfg.Timeout > 0 {
		client.HTTPClient.Timeout = cfg.Timeout
	}

	return &Source{base: base, apiKey: cfg.APIKey, client: client}, nil
}

// FetchFull fetches the complete record for key.
func (s *Source) FetchFull(ctx context.Context, key record.Key) (record.Record, error) {
	u := s.base.JoinPath("v1", "records", key.String())

	var rec record.Record
	if err := s.getJSON(ctx, u, &rec); err != nil {
		return record.Record{}, fmt.Errorf("fetch record %s: %w", key, err)
	}
	rec.Key = key
	return rec, nil
}

type quotesResponse struct {
	Quotes []record.PricePatch `json:"quotes"`
}

// FetchPrices fetches quotes for keys in one request. Quotes for keys that
// were not requested are dropped.
func (s *Source) FetchPrices(ctx context.Context, keys []record.Key) ([]record.PricePatch, error) {
	if len(keys) == 0 {
		return nil, nil
	}

	u := s.base.JoinPath("v1", "quotes")
	u.RawQuery = url.Values{"symbols": {strings.Join(record.Strings(keys), ",")}}.Encode()

	var resp quotesResponse
	if err := s.getJSON(ctx, u, &resp); err != nil {
		return nil, fmt.Errorf("fetch quotes: %w", err)
	}

	wanted := make(map[record.Key]struct{}, len(keys))
	for _, k := range keys {
		wanted[k] = struct{}{}
	}
	out := make([]record.PricePatch, 0, len(resp.Quotes))
	for _, p := range resp.Quotes {
		k, err := record.ParseKey(p.Key.String())
		if err != nil {
			continue
		}
		if _, ok := wanted[k]; ok {
			p.Key = k
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *Source) getJSON(ctx context.Context, u *url.URL, dst any) error {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%w: %w", source.ErrTransient, err)
	}
	defer resp.Body.Close()

	if err := statusError(resp); err != nil {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return err
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(dst); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func statusError(resp *http.Response) error {
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusNotFound:
		return source.ErrNotFound
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return fmt.Errorf("%w: status %d", source.ErrTransient, resp.StatusCode)
	default:
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
}

// leveledLogger adapts zerolog to retryablehttp.LeveledLogger.
type leveledLogger struct {
	l zerolog.Logger
}

func (a leveledLogger) Error(msg string, kv ...any) { a.l.Error().Fields(kv).Msg(msg) }
func (a leveledLogger) Warn(msg string, kv ...any)  { a.l.Warn().Fields(kv).Msg(msg) }
func (a leveledLogger) Info(msg string, kv ...any)  { a.l.Debug().Fields(kv).Msg(msg) }
func (a leveledLogger) Debug(msg string, kv ...any) { a.l.Trace().Fields(kv).Msg(msg) }
