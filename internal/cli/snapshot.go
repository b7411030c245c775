package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/rshade/finwatch/internal/cli/pagination"
	"github.com/rshade/finwatch/internal/config"
	"github.com/rshade/finwatch/internal/engine"
	"github.com/rshade/finwatch/internal/logging"
	"github.com/rshade/finwatch/internal/record"
	"github.com/rshade/finwatch/internal/tui"
)

// Output formats of the snapshot command.
const (
	outputTable = "table"
	outputJSON  = "json"
)

const defaultSnapshotTimeout = 2 * time.Minute

// snapshotOptions holds the flags of the snapshot command.
type snapshotOptions struct {
	view    string
	output  string
	timeout time.Duration
	sort    string
	limit   int
	offset  int
	filters []string
}

// snapshotRow is one record in JSON output.
type snapshotRow struct {
	Symbol        string          `json:"symbol"`
	Name          string          `json:"name"`
	Exchange      string          `json:"exchange,omitempty"`
	Currency      string          `json:"currency,omitempty"`
	Price         decimal.Decimal `json:"price"`
	Change        decimal.Decimal `json:"change"`
	ChangePercent decimal.Decimal `json:"change_percent"`
	Volume        int64           `json:"volume"`
	MarketCap     decimal.Decimal `json:"market_cap"`
	AsOf          time.Time       `json:"as_of"`
}

// snapshotResult is the JSON document printed by the snapshot command.
type snapshotResult struct {
	View        string          `json:"view"`
	Complete    bool            `json:"complete"`
	Records     []snapshotRow   `json:"records"`
	Unavailable []string        `json:"unavailable"`
	Pagination  pagination.Meta `json:"pagination"`
}

// newSnapshotCmd creates the snapshot command.
func newSnapshotCmd() *cobra.Command {
	var opts snapshotOptions

	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Load a watchlist view once and print it",
		Long: `Runs one full load of a watchlist view and prints the cached records.
Keys whose fetch failed are listed as unavailable. If the load does not
finish within --timeout, whatever is cached at that point is printed.`,
		Example: `  # Table of the default view
  finwatch snapshot

  # Top five movers of the tech view as JSON
  finwatch snapshot --view tech --sort change_pct:desc --limit 5 --output json

  # Only NASDAQ listings
  finwatch snapshot --filter exchange=NASDAQ`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSnapshot(cmd, opts)
		},
	}

	sorter := pagination.NewRecordSorter()
	cmd.Flags().StringVar(&opts.view, "view", "", "watchlist view to load (default from config)")
	cmd.Flags().StringVar(&opts.output, "output", outputTable, "output format: table or json")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", defaultSnapshotTimeout, "maximum time to wait for the full load")
	cmd.Flags().StringVar(&opts.sort, "sort", "",
		"sort by field[:asc|desc] ("+strings.Join(sorter.GetValidFields(), ", ")+")")
	cmd.Flags().IntVar(&opts.limit, "limit", pagination.DefaultLimit, "maximum records to print (0 for all)")
	cmd.Flags().IntVar(&opts.offset, "offset", pagination.DefaultOffset, "records to skip")
	cmd.Flags().StringArrayVar(&opts.filters, "filter", nil,
		"keep records matching key=value ("+strings.Join(filterKeys(), ", ")+"), repeatable")

	return cmd
}

func runSnapshot(cmd *cobra.Command, opts snapshotOptions) error {
	if opts.output != outputTable && opts.output != outputJSON {
		return fmt.Errorf("unsupported output format %q (use %s or %s)", opts.output, outputTable, outputJSON)
	}
	if opts.timeout <= 0 {
		return fmt.Errorf("--timeout must be > 0, got %s", opts.timeout)
	}

	params := pagination.NewParams()
	params.Limit = opts.limit
	params.Offset = opts.offset
	field, order, err := pagination.ParseSort(opts.sort)
	if err != nil {
		return err
	}
	params.SortField, params.SortOrder = field, order
	if err := params.Validate(); err != nil {
		return err
	}
	sorter := pagination.NewRecordSorter()
	if field != "" && !sorter.IsValidField(field) {
		return fmt.Errorf("%w: %q (valid: %s)", pagination.ErrInvalidSortField, field,
			strings.Join(sorter.GetValidFields(), ", "))
	}

	ctx := cmd.Context()
	if _, err := ApplyFilters(ctx, nil, opts.filters); err != nil {
		return err
	}

	cfg := config.GetGlobalConfig()
	wl, err := openWatchlist(cfg)
	if err != nil {
		return err
	}
	view := viewOrDefault(cfg, opts.view)
	keys, err := wl.View(view)
	if err != nil {
		return err
	}

	records, complete, err := loadSnapshot(ctx, cfg, keys, opts.timeout)
	if err != nil {
		return err
	}

	unavailable := missingKeys(keys, records)
	records, err = ApplyFilters(ctx, records, opts.filters)
	if err != nil {
		return err
	}
	sorted, err := sorter.Sort(records, params.SortField, params.SortOrder)
	if err != nil {
		return err
	}
	page := pagination.Apply(sorted, params)
	meta := pagination.NewMeta(params, len(sorted), len(page))

	if opts.output == outputJSON {
		return renderSnapshotJSON(cmd.OutOrStdout(), snapshotResult{
			View:        view,
			Complete:    complete,
			Records:     toSnapshotRows(page),
			Unavailable: record.Strings(unavailable),
			Pagination:  meta,
		})
	}
	return renderSnapshotTable(cmd.OutOrStdout(), page, unavailable, meta, complete)
}

// loadSnapshot tracks keys on a fresh engine and waits for the load to
// finish. complete is false when the timeout expired first.
func loadSnapshot(
	ctx context.Context,
	cfg *config.Config,
	keys []record.Key,
	timeout time.Duration,
) ([]record.Record, bool, error) {
	done := make(chan struct{}, 1)
	observe := func(ev engine.Event) {
		if ev.Kind != engine.EventLoadComplete {
			return
		}
		select {
		case done <- struct{}{}:
		default:
		}
	}

	sess, err := newSession(ctx, cfg, observe)
	if err != nil {
		return nil, false, err
	}
	defer func() {
		if cerr := sess.Close(); cerr != nil {
			logging.FromContext(ctx).Warn().Ctx(ctx).Err(cerr).Msg("closing snapshot session")
		}
	}()

	sess.eng.SetTrackedSet(keys)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	complete := true
	select {
	case <-done:
	case <-timer.C:
		complete = false
		logging.FromContext(ctx).Warn().Ctx(ctx).
			Dur("timeout", timeout).
			Int("loaded", sess.eng.CurrentProgress().Loaded).
			Int("total", len(keys)).
			Msg("snapshot timed out before the full load finished")
	case <-ctx.Done():
		return nil, false, ctx.Err()
	}

	return sess.eng.CurrentSnapshot(), complete, nil
}

// missingKeys returns the keys without a record, in tracked order.
func missingKeys(keys []record.Key, records []record.Record) []record.Key {
	present := make(map[record.Key]struct{}, len(records))
	for _, r := range records {
		present[r.Key] = struct{}{}
	}
	var missing []record.Key
	for _, k := range keys {
		if _, ok := present[k]; !ok {
			missing = append(missing, k)
		}
	}
	return missing
}

func toSnapshotRows(records []record.Record) []snapshotRow {
	rows := make([]snapshotRow, 0, len(records))
	for _, r := range records {
		rows = append(rows, snapshotRow{
			Symbol:        r.Key.String(),
			Name:          r.DisplayName(),
			Exchange:      r.Profile.Exchange,
			Currency:      r.Profile.Currency,
			Price:         r.Quote.Price,
			Change:        r.Quote.Change,
			ChangePercent: r.Quote.ChangePercent,
			Volume:        r.Quote.Volume,
			MarketCap:     r.Fundamentals.MarketCap,
			AsOf:          r.Quote.AsOf,
		})
	}
	return rows
}

func renderSnapshotJSON(w io.Writer, result snapshotResult) error {
	if result.Unavailable == nil {
		result.Unavailable = []string{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

func renderSnapshotTable(
	w io.Writer,
	records []record.Record,
	unavailable []record.Key,
	meta pagination.Meta,
	complete bool,
) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "SYMBOL\tNAME\tPRICE\tCHANGE\tCHG%\tVOLUME\tMKT CAP")
	for _, r := range records {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.Key, r.DisplayName(),
			tui.FormatPrice(r.Quote.Price),
			tui.FormatChange(r.Quote.Change),
			tui.FormatPercent(r.Quote.ChangePercent),
			tui.FormatVolume(r.Quote.Volume),
			tui.FormatCompact(r.Fundamentals.MarketCap))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	_, _ = fmt.Fprintf(w, "\nShowing %d of %d records", meta.Returned, meta.TotalItems)
	if meta.HasNext {
		_, _ = fmt.Fprintf(w, " (more with --offset %d)", meta.Offset+meta.Returned)
	}
	_, _ = fmt.Fprintln(w)
	if len(unavailable) > 0 {
		_, _ = fmt.Fprintf(w, "Unavailable: %s\n", strings.Join(record.Strings(unavailable), ", "))
	}
	if !complete {
		_, _ = fmt.Fprintln(w, "Warning: load timed out, results are partial")
	}
	return nil
}
