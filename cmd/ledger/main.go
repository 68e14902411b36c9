package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/iho/sagaledger/internal/app"
	"github.com/iho/sagaledger/internal/domain"
	"github.com/iho/sagaledger/internal/infrastructure/config"
	"github.com/iho/sagaledger/internal/infrastructure/logger"
)

var (
	logLevel  string
	logFormat string
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "ledger",
		Short:        "Event-sourced ledger",
		Long:         `Runs money transfers between accounts through an event-sourced saga and inspects the resulting event log.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level, overrides LOG_LEVEL")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format (console or json), overrides LOG_FORMAT")

	rootCmd.AddCommand(demoCmd())
	rootCmd.AddCommand(replayCmd())

	return rootCmd
}

func loadConfig() (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("load configuration: %w", err)
	}

	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if logFormat != "" {
		cfg.LogFormat = logFormat
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		Output: os.Stderr,
	})

	return cfg, log, nil
}

type demoOptions struct {
	deposit         int64
	amount          int64
	transfers       int
	conflictRetries int
	out             string
}

func demoCmd() *cobra.Command {
	opts := demoOptions{}

	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Open two accounts, transfer between them and print the event store",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			if opts.conflictRetries >= 0 {
				cfg.ConflictRetries = opts.conflictRetries
			}
			return runDemo(cmd.Context(), cmd.OutOrStdout(), cfg, log, opts)
		},
	}

	cmd.Flags().Int64Var(&opts.deposit, "deposit", 100, "Initial deposit into the source account")
	cmd.Flags().Int64Var(&opts.amount, "amount", 60, "Amount of each transfer")
	cmd.Flags().IntVar(&opts.transfers, "transfers", 1, "Number of transfers to initiate concurrently")
	cmd.Flags().IntVar(&opts.conflictRetries, "conflict-retries", -1, "Retries on concurrency conflicts, -1 keeps CONFLICT_RETRIES")
	cmd.Flags().StringVar(&opts.out, "out", "", "Write the event log as JSON to this file")

	return cmd
}

func runDemo(ctx context.Context, w io.Writer, cfg *config.Config, log zerolog.Logger, opts demoOptions) error {
	if opts.transfers < 1 {
		return fmt.Errorf("--transfers must be at least 1, got %d", opts.transfers)
	}

	ledger, err := app.New(app.Options{Config: cfg, Logger: log})
	if err != nil {
		return err
	}
	defer ledger.Close()

	source, err := ledger.Accounts.OpenAccount(ctx, "User 1")
	if err != nil {
		return err
	}
	if err := ledger.Accounts.DepositFunds(ctx, source, opts.deposit); err != nil {
		return err
	}

	destination, err := ledger.Accounts.OpenAccount(ctx, "User 2")
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	for range opts.transfers {
		g.Go(func() error {
			_, err := ledger.Transfers.InitiateTransfer(gctx, source, destination, opts.amount)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if err := ledger.Settle(ctx); err != nil {
		return err
	}

	events := ledger.Store.ReadAll(ctx)
	histories, err := groupStreams(events)
	if err != nil {
		return err
	}

	p := printer{w: w, scale: cfg.AmountScale}
	if err := p.dump(histories); err != nil {
		return err
	}
	if err := p.states(histories); err != nil {
		return err
	}
	if ledger.Registry != nil {
		if err := p.metrics(ledger.Registry); err != nil {
			return err
		}
	}

	if opts.out != "" {
		if err := writeLog(opts.out, events); err != nil {
			return err
		}
		log.Info().Str("file", opts.out).Int("events", len(events)).Msg("event log written")
	}

	return nil
}

func replayCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Rebuild account and transfer states from a JSON event log",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig()
			if err != nil {
				return err
			}
			return runReplay(cmd.OutOrStdout(), cfg, file)
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "Event log written by demo --out")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func runReplay(w io.Writer, cfg *config.Config, file string) error {
	data, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("read event log: %w", err)
	}

	var events []domain.Event
	if err := json.Unmarshal(data, &events); err != nil {
		return fmt.Errorf("decode event log: %w", err)
	}

	histories, err := groupStreams(events)
	if err != nil {
		return err
	}

	p := printer{w: w, scale: cfg.AmountScale}
	if err := p.dump(histories); err != nil {
		return err
	}
	return p.states(histories)
}

func writeLog(path string, events []domain.Event) error {
	data, err := json.MarshalIndent(events, "", "  ")
	if err != nil {
		return fmt.Errorf("encode event log: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write event log: %w", err)
	}
	return nil
}

type streamHistory struct {
	stream domain.Stream
	events []domain.Event
}

// groupStreams splits a global log into per-stream histories, in order of
// first appearance, and checks that every stream's revisions start at 1
// without gaps.
func groupStreams(events []domain.Event) ([]streamHistory, error) {
	var histories []streamHistory
	index := make(map[domain.Stream]int)

	for _, evt := range events {
		s := evt.Stream()
		i, ok := index[s]
		if !ok {
			i = len(histories)
			index[s] = i
			histories = append(histories, streamHistory{stream: s})
		}

		want := domain.Revision(len(histories[i].events) + 1)
		if evt.Revision != want {
			return nil, fmt.Errorf("stream %s: expected revision %d, got %d", s, want, evt.Revision)
		}
		histories[i].events = append(histories[i].events, evt)
	}

	return histories, nil
}

type printer struct {
	w     io.Writer
	scale int32
}

func (p printer) amount(v int64) string {
	return decimal.New(v, -p.scale).StringFixed(p.scale)
}

func (p printer) dump(histories []streamHistory) error {
	fmt.Fprintln(p.w, "Event Store content")
	for _, h := range histories {
		fmt.Fprintf(p.w, "%s\n", h.stream)
		for _, evt := range h.events {
			payload, err := json.Marshal(evt.Payload)
			if err != nil {
				return err
			}
			fmt.Fprintf(p.w, "  %d %s %s\n", evt.Revision, evt.Type(), payload)
		}
	}
	fmt.Fprintln(p.w)
	return nil
}

func (p printer) states(histories []streamHistory) error {
	for _, h := range histories {
		var (
			title string
			state any
		)

		switch h.stream.Kind {
		case domain.StreamKindAccount:
			s, err := domain.ProjectAccount(h.events)
			if err != nil {
				return fmt.Errorf("project %s: %w", h.stream, err)
			}
			title = fmt.Sprintf("Account %d (%s): available %s, %d pending",
				h.stream.ID, s.Owner, p.amount(s.AvailableFunds), len(s.PendingTransfers))
			state = s
		case domain.StreamKindTransfer:
			s, err := domain.ProjectTransfer(h.events)
			if err != nil {
				return fmt.Errorf("project %s: %w", h.stream, err)
			}
			title = fmt.Sprintf("Transfer %d: %s, amount %s", h.stream.ID, s.Status, p.amount(s.Amount))
			state = s
		default:
			return fmt.Errorf("%w: stream kind %q", domain.ErrUnknownEventType, h.stream.Kind)
		}

		data, err := json.MarshalIndent(state, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintf(p.w, "%s\n%s\n\n", title, data)
	}
	return nil
}

// metrics prints one total per metric family: counter and gauge values are
// summed over labels, histograms report their sample count.
func (p printer) metrics(g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	sort.Slice(families, func(i, j int) bool { return families[i].GetName() < families[j].GetName() })

	fmt.Fprintln(p.w, "Metrics")
	for _, mf := range families {
		var total float64
		for _, m := range mf.GetMetric() {
			switch mf.GetType() {
			case dto.MetricType_COUNTER:
				total += m.GetCounter().GetValue()
			case dto.MetricType_GAUGE:
				total += m.GetGauge().GetValue()
			case dto.MetricType_HISTOGRAM:
				total += float64(m.GetHistogram().GetSampleCount())
			}
		}
		fmt.Fprintf(p.w, "  %s %g\n", mf.GetName(), total)
	}
	return nil
}
