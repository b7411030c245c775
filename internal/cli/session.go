package cli

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/rshade/finwatch/internal/config"
	"github.com/rshade/finwatch/internal/engine"
	"github.com/rshade/finwatch/internal/engine/cache"
	"github.com/rshade/finwatch/internal/logging"
	"github.com/rshade/finwatch/internal/notify"
	"github.com/rshade/finwatch/internal/source"
	"github.com/rshade/finwatch/internal/source/httpsource"
	"github.com/rshade/finwatch/internal/source/redissource"
	"github.com/rshade/finwatch/internal/source/simsource"
	"github.com/rshade/finwatch/internal/watchlist"
)

// session owns the engine of a long-running command together with the data
// source and optional Kafka publisher it was built from.
type session struct {
	eng       *engine.Engine
	store     *cache.Store
	publisher *notify.KafkaPublisher
	closers   []func() error
}

// newSession validates cfg and starts an idle engine. Observers receive every
// engine event; they must not block.
func newSession(ctx context.Context, cfg *config.Config, observers ...func(engine.Event)) (*session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &session{store: cache.NewStore()}

	src, closeSrc, err := newDataSource(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if closeSrc != nil {
		s.closers = append(s.closers, closeSrc)
	}

	opts := []engine.Option{
		engine.WithOptions(cfg.EngineOptions()),
		engine.WithCache(s.store),
	}
	for _, obs := range observers {
		opts = append(opts, engine.WithObserver(obs))
	}

	if cfg.Notify.Kafka.Enabled {
		w, werr := notify.NewKafkaWriter(notify.Config{
			Brokers: cfg.Notify.Kafka.Brokers,
			Topic:   cfg.Notify.Kafka.Topic,
			Buffer:  cfg.Notify.Kafka.Buffer,
		})
		if werr != nil {
			_ = s.Close()
			return nil, fmt.Errorf("creating kafka writer: %w", werr)
		}
		s.publisher = notify.NewKafkaPublisher(w, cfg.Notify.Kafka.Buffer, *logging.FromContext(ctx))
		opts = append(opts, engine.WithObserver(s.publisher.Observe))
	}

	eng, err := engine.New(ctx, src, opts...)
	if err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("creating engine: %w", err)
	}
	s.eng = eng

	logging.FromContext(ctx).Debug().Ctx(ctx).
		Str("source", cfg.Source.Kind).
		Bool("kafka", cfg.Notify.Kafka.Enabled).
		Msg("session started")
	return s, nil
}

// Close stops the engine first so no event reaches a closed publisher, then
// releases the publisher and the data source.
func (s *session) Close() error {
	var result *multierror.Error
	if s.eng != nil {
		if err := s.eng.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("closing engine: %w", err))
		}
	}
	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("closing kafka publisher: %w", err))
		}
	}
	for _, c := range s.closers {
		if err := c(); err != nil {
			result = multierror.Append(result, fmt.Errorf("closing data source: %w", err))
		}
	}
	s.closers = nil
	return result.ErrorOrNil()
}

// newDataSource builds the configured data source. The returned close
// function is nil when the source holds no resources.
func newDataSource(ctx context.Context, cfg *config.Config) (source.DataSource, func() error, error) {
	switch cfg.Source.Kind {
	case config.SourceSim:
		failKeys, err := cfg.SimFailKeys()
		if err != nil {
			return nil, nil, err
		}
		return simsource.New(simsource.Config{
			Latency:  cfg.Source.Sim.Latency,
			FailKeys: failKeys,
			Seed:     cfg.Source.Sim.Seed,
		}), nil, nil

	case config.SourceHTTP:
		h := cfg.Source.HTTP
		src, err := httpsource.New(httpsource.Config{
			BaseURL:      h.BaseURL,
			APIKey:       h.APIKey,
			Timeout:      h.Timeout,
			RetryMax:     h.RetryMax,
			RetryWaitMin: h.RetryWaitMin,
			RetryWaitMax: h.RetryWaitMax,
		}, logging.ComponentLogger(*logging.FromContext(ctx), "httpsource"))
		if err != nil {
			return nil, nil, fmt.Errorf("creating http source: %w", err)
		}
		return src, nil, nil

	case config.SourceRedis:
		r := cfg.Source.Redis
		src, err := redissource.New(redissource.Config{Addr: r.Addr, Password: r.Password, DB: r.DB})
		if err != nil {
			return nil, nil, fmt.Errorf("creating redis source: %w", err)
		}
		if err := src.Ping(ctx); err != nil {
			_ = src.Close()
			return nil, nil, fmt.Errorf("connecting to redis at %s: %w", r.Addr, err)
		}
		return src, src.Close, nil

	default:
		return nil, nil, fmt.Errorf("%w: unknown source kind %q", config.ErrInvalidConfig, cfg.Source.Kind)
	}
}

// openWatchlist loads the configured watchlist file, or a fresh default one.
func openWatchlist(cfg *config.Config) (*watchlist.Watchlist, error) {
	path := cfg.Watchlist.File
	if path == "" {
		var err error
		if path, err = watchlist.DefaultPath(); err != nil {
			return nil, err
		}
	}
	wl, err := watchlist.Load(path)
	if err != nil {
		return nil, fmt.Errorf("loading watchlist: %w", err)
	}
	return wl, nil
}

// viewOrDefault returns view, or the configured default view when empty.
func viewOrDefault(cfg *config.Config, view string) string {
	if view != "" {
		return view
	}
	if cfg.Watchlist.DefaultView != "" {
		return cfg.Watchlist.DefaultView
	}
	return watchlist.DefaultView
}
