package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rshade/finwatch/internal/config"
	"github.com/rshade/finwatch/internal/record"
	"github.com/rshade/finwatch/internal/source"
	"github.com/rshade/finwatch/internal/source/redissource"
	"github.com/rshade/finwatch/internal/source/simsource"
)

const defaultSeedInterval = 5 * time.Second

// seedOptions holds the flags of the seed command.
type seedOptions struct {
	view     string
	ttl      time.Duration
	ticks    int
	interval time.Duration
}

// newSeedCmd creates the seed command, which fills Redis with simulated data
// so the redis source has something to serve.
func newSeedCmd() *cobra.Command {
	var opts seedOptions

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Write simulated records for a view into Redis",
		Long: `Generates records for every key of a watchlist view with the simulated
source and stores them in Redis (source.redis settings). With --ticks, fresh
quotes are then published every --interval so a watch on the redis source
sees prices move.`,
		Example: `  # Seed the default view, then watch it through Redis
  finwatch seed
  finwatch watch --source redis

  # Keep quotes moving for a minute
  finwatch seed --ticks 12 --interval 5s`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSeed(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.view, "view", "", "watchlist view to seed (default from config)")
	cmd.Flags().DurationVar(&opts.ttl, "ttl", 0, "expiry of the seeded keys (0 keeps them)")
	cmd.Flags().IntVar(&opts.ticks, "ticks", 0, "number of quote updates to publish after seeding")
	cmd.Flags().DurationVar(&opts.interval, "interval", defaultSeedInterval, "time between quote updates")

	return cmd
}

func runSeed(cmd *cobra.Command, opts seedOptions) error {
	if opts.ttl < 0 {
		return fmt.Errorf("--ttl must be >= 0, got %s", opts.ttl)
	}
	if opts.ticks < 0 {
		return fmt.Errorf("--ticks must be >= 0, got %d", opts.ticks)
	}
	if opts.ticks > 0 && opts.interval <= 0 {
		return fmt.Errorf("--interval must be > 0, got %s", opts.interval)
	}

	cfg := config.GetGlobalConfig()
	wl, err := openWatchlist(cfg)
	if err != nil {
		return err
	}
	keys, err := wl.View(viewOrDefault(cfg, opts.view))
	if err != nil {
		return err
	}
	failKeys, err := cfg.SimFailKeys()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	r := cfg.Source.Redis
	dst, err := redissource.New(redissource.Config{Addr: r.Addr, Password: r.Password, DB: r.DB})
	if err != nil {
		return err
	}
	defer func() { _ = dst.Close() }()
	if err := dst.Ping(ctx); err != nil {
		return fmt.Errorf("connecting to redis at %s: %w", r.Addr, err)
	}

	sim := simsource.New(simsource.Config{FailKeys: failKeys, Seed: cfg.Source.Sim.Seed})

	records := make([]record.Record, 0, len(keys))
	for _, k := range keys {
		rec, ferr := sim.FetchFull(ctx, k)
		if ferr != nil {
			logger.Warn().Ctx(ctx).
				Str("operation", "seed").
				Str("key", k.String()).
				Str("error_class", source.Classify(ferr)).
				Err(ferr).
				Msg("skipping key")
			continue
		}
		records = append(records, rec)
	}
	if err := dst.Seed(ctx, records, opts.ttl); err != nil {
		return err
	}
	cmd.Printf("Seeded %d of %d records into redis at %s\n", len(records), len(keys), r.Addr)

	return publishTicks(ctx, cmd, sim, dst, recordKeys(records), opts)
}

// publishTicks pushes opts.ticks rounds of simulated quotes to Redis.
func publishTicks(
	ctx context.Context,
	cmd *cobra.Command,
	sim *simsource.Source,
	dst *redissource.Source,
	keys []record.Key,
	opts seedOptions,
) error {
	if opts.ticks == 0 || len(keys) == 0 {
		return nil
	}

	ticker := time.NewTicker(opts.interval)
	defer ticker.Stop()

	for i := 1; i <= opts.ticks; i++ {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()
		case <-ticker.C:
		}

		patches, err := sim.FetchPrices(ctx, keys)
		if err != nil {
			return fmt.Errorf("generating quotes: %w", err)
		}
		for _, p := range patches {
			if err := dst.PublishQuote(ctx, p.Key, p.Quote); err != nil {
				return fmt.Errorf("publishing quote for %s: %w", p.Key, err)
			}
		}
		cmd.Printf("Tick %d/%d: published %d quotes\n", i, opts.ticks, len(patches))
	}
	return nil
}

func recordKeys(records []record.Record) []record.Key {
	keys := make([]record.Key, len(records))
	for i, r := range records {
		keys[i] = r.Key
	}
	return keys
}
