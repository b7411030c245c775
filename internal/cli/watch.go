package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/rshade/finwatch/internal/config"
	"github.com/rshade/finwatch/internal/engine"
	"github.com/rshade/finwatch/internal/logging"
	"github.com/rshade/finwatch/internal/tui"
	"github.com/rshade/finwatch/internal/watchlist"
)

// plainEventBuffer bounds the events queued for the plain printer.
const plainEventBuffer = 512

// watchOptions holds the flags of the watch command.
type watchOptions struct {
	view     string
	plain    bool
	duration time.Duration
}

// newWatchCmd creates the watch command.
func newWatchCmd() *cobra.Command {
	var opts watchOptions

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Watch a watchlist view with live price refreshes",
		Long: `Loads every record of a watchlist view, then keeps prices fresh on a
timer. In a terminal an interactive table is shown; with --plain, or when
stdout is not a terminal, events are printed line by line.`,
		Example: `  # Interactive table for the default view
  finwatch watch

  # Plain output for the tech view, stopping after one minute
  finwatch watch --view tech --plain --duration 1m`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWatch(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.view, "view", "", "watchlist view to watch (default from config)")
	cmd.Flags().BoolVar(&opts.plain, "plain", false, "print events as text instead of the interactive table")
	cmd.Flags().DurationVar(&opts.duration, "duration", 0, "stop after this long (0 runs until interrupted)")

	return cmd
}

func runWatch(cmd *cobra.Command, opts watchOptions) error {
	if opts.duration < 0 {
		return fmt.Errorf("--duration must be >= 0, got %s", opts.duration)
	}

	cfg := config.GetGlobalConfig()
	wl, err := openWatchlist(cfg)
	if err != nil {
		return err
	}
	view := viewOrDefault(cfg, opts.view)
	if _, err := wl.View(view); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if opts.duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.duration)
		defer cancel()
	}

	if !opts.plain && isTerminal(os.Stdout) && isTerminal(os.Stdin) {
		return runWatchTUI(ctx, cfg, wl, view)
	}
	return runWatchPlain(ctx, cmd.OutOrStdout(), cfg, wl, view)
}

// runWatchTUI runs the interactive table until the user quits or ctx ends.
func runWatchTUI(ctx context.Context, cfg *config.Config, wl *watchlist.Watchlist, view string) error {
	log := logging.FromContext(ctx)

	bridge := tui.NewEventBridge(tui.DefaultBridgeBuffer)
	sess, err := newSession(ctx, cfg, bridge.Observe)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := sess.Close(); cerr != nil {
			log.Warn().Ctx(ctx).Err(cerr).Msg("closing watch session")
		}
	}()

	model, err := tui.NewWatchModel(ctx, sess.eng, wl, view)
	if err != nil {
		return err
	}

	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))

	bridgeCtx, cancelBridge := context.WithCancel(ctx)
	defer cancelBridge()
	go bridge.Run(bridgeCtx, p.Send)

	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("running watch UI: %w", err)
	}

	log.Debug().Ctx(ctx).Int64("dropped_events", bridge.Dropped()).Msg("watch UI finished")
	return nil
}

// runWatchPlain prints engine events to out until ctx ends.
func runWatchPlain(
	ctx context.Context,
	out io.Writer,
	cfg *config.Config,
	wl *watchlist.Watchlist,
	view string,
) error {
	keys, err := wl.View(view)
	if err != nil {
		return err
	}

	events := make(chan engine.Event, plainEventBuffer)
	observe := func(ev engine.Event) {
		select {
		case events <- ev:
		default:
		}
	}

	sess, err := newSession(ctx, cfg, observe)
	if err != nil {
		return err
	}

	printer := newEventPrinter(out, sess.eng)
	printer.header(view, len(keys))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case ev := <-events:
				printer.handle(ev)
			}
		}
	})
	g.Go(func() error {
		<-gctx.Done()
		return sess.Close()
	})

	sess.eng.SetTrackedSet(keys)

	return g.Wait()
}
