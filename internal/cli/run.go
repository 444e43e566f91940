package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/lazypower/larder/internal/client"
	"github.com/lazypower/larder/internal/config"
	"github.com/lazypower/larder/internal/engine"
	"github.com/lazypower/larder/internal/feed"
	"github.com/lazypower/larder/internal/publish"
	"github.com/lazypower/larder/internal/store"
)

var (
	runOrders    string
	runLedger    string
	runNoArchive bool
	runNoSubmit  bool
	runQuiet     bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Simulate a service from an order file or the challenge server",
	Long: "Run places every order at the configured rate, picks each up after a random delay, " +
		"then archives the ledger. Without --orders the problem is fetched from the challenge " +
		"server and the ledger is submitted for grading.",
	RunE: runRun,
}

func init() {
	f := runCmd.Flags()
	f.StringVar(&runOrders, "orders", "", "JSON order file; fetch from the challenge server when empty")
	f.StringVar(&runLedger, "ledger", "", "also write the exported ledger to this file")
	f.BoolVar(&runNoArchive, "no-archive", false, "do not store the run in the archive")
	f.BoolVar(&runNoSubmit, "no-submit", false, "do not submit the ledger to the challenge server")
	f.BoolVarP(&runQuiet, "quiet", "q", false, "do not print each action")

	f.Duration("rate", 0, "interval between placements (default 500ms)")
	f.Duration("min", 0, "minimum pickup delay (default 4s)")
	f.Duration("max", 0, "maximum pickup delay (default 8s)")
	f.Uint64("feed-seed", 0, "seed for pickup delays")
	f.String("endpoint", "", "challenge server endpoint")
	f.String("auth", "", "challenge auth token")
	f.String("auth-header", "", "send the token in this header instead of the auth query parameter")
	f.String("auth-scheme", "", "prefix for the header token, e.g. Bearer (implies Authorization when --auth-header is empty)")
	f.String("orders-url", "", "full URL to fetch orders from, overriding the endpoint")
	f.String("solve-url", "", "full URL to submit the ledger to, overriding the endpoint")
	f.Duration("await", 0, "maximum wait for outstanding pickups after the last placement (default 60s, 0 waits forever)")
	f.String("name", "", "challenge problem name")
	f.Int64("seed", 0, "challenge problem seed (server picks when zero)")
}

// applyRunFlags overlays explicitly set flags onto cfg.
func applyRunFlags(cmd *cobra.Command, cfg *config.Config) error {
	f := cmd.Flags()
	var err error
	set := func(name string, apply func() error) {
		if err == nil && f.Changed(name) {
			err = apply()
		}
	}
	set("rate", func() (e error) { cfg.Feed.Rate, e = f.GetDuration("rate"); return })
	set("min", func() (e error) { cfg.Feed.MinPickup, e = f.GetDuration("min"); return })
	set("max", func() (e error) { cfg.Feed.MaxPickup, e = f.GetDuration("max"); return })
	set("feed-seed", func() (e error) { cfg.Feed.Seed, e = f.GetUint64("feed-seed"); return })
	set("endpoint", func() (e error) { cfg.Challenge.Endpoint, e = f.GetString("endpoint"); return })
	set("auth", func() (e error) { cfg.Challenge.Auth, e = f.GetString("auth"); return })
	set("auth-header", func() (e error) { cfg.Challenge.AuthHeader, e = f.GetString("auth-header"); return })
	set("auth-scheme", func() (e error) { cfg.Challenge.AuthScheme, e = f.GetString("auth-scheme"); return })
	set("orders-url", func() (e error) { cfg.Challenge.OrdersURL, e = f.GetString("orders-url"); return })
	set("solve-url", func() (e error) { cfg.Challenge.SolveURL, e = f.GetString("solve-url"); return })
	set("await", func() (e error) { cfg.Feed.AwaitTimeout, e = f.GetDuration("await"); return })
	set("name", func() (e error) { cfg.Challenge.Name, e = f.GetString("name"); return })
	set("seed", func() (e error) { cfg.Challenge.Seed, e = f.GetInt64("seed"); return })
	if err != nil {
		return err
	}
	return cfg.Validate()
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := applyRunFlags(cmd, &cfg); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load orders
	run := &store.Run{RunID: uuid.NewString()}
	var items []engine.Item
	var problem *client.Problem
	var challenge *client.Client

	if runOrders != "" {
		items, err = feed.DecodeFile(runOrders)
		if err != nil {
			return err
		}
		run.Source = store.SourceFile
	} else {
		if cfg.Challenge.Auth == "" && cfg.Challenge.OrdersURL == "" {
			return errors.New("no --orders file and no challenge auth token (set --auth or LARDER_AUTH, or an --orders-url carrying one)")
		}
		challenge = client.New(cfg.Challenge.Endpoint, cfg.Challenge.Auth, cfg.ClientOptions()...)
		problem, err = challenge.FetchOrders(ctx, cfg.Challenge.Name, cfg.Challenge.Seed)
		if err != nil {
			return fmt.Errorf("fetch orders: %w", err)
		}
		items, err = feed.DecodeBytes(problem.Orders)
		if err != nil {
			return err
		}
		run.Source = store.SourceChallenge
		run.TestID = problem.TestID
	}

	eng, err := engine.New(cfg.Capacities(), engine.NewSystemClock())
	if err != nil {
		return err
	}
	feeder, err := feed.New(eng, cfg.FeedOptions())
	if err != nil {
		return err
	}
	if !runQuiet {
		feeder.OnAction = func(a engine.Action) {
			fmt.Fprintf(os.Stderr, "  %s\n", a)
		}
	}

	fmt.Fprintf(os.Stderr, "run %s: %d orders from %s\n", run.RunID, len(items), run.Source)

	// Simulate
	started := time.Now()
	placed, runErr := feeder.Run(ctx, items)
	finished := time.Now()
	interrupted := errors.Is(runErr, context.Canceled)
	timedOut := errors.Is(runErr, feed.ErrPickupTimeout)
	if runErr != nil && !interrupted && !timedOut {
		return runErr
	}
	switch {
	case interrupted:
		fmt.Fprintf(os.Stderr, "interrupted after %d orders, archiving partial ledger\n", placed)
	case timedOut:
		fmt.Fprintf(os.Stderr, "%v, archiving partial ledger\n", runErr)
	}
	incomplete := interrupted || timedOut

	ledger := eng.Ledger()
	run.StartedAt = started.UnixMilli()
	run.FinishedAt = finished.UnixMilli()
	run.Orders = placed
	run.RateMicros = cfg.Feed.Rate.Microseconds()
	run.MinMicros = cfg.Feed.MinPickup.Microseconds()
	run.MaxMicros = cfg.Feed.MaxPickup.Microseconds()

	if runLedger != "" {
		if err := writeLedger(runLedger, ledger); err != nil {
			return err
		}
	}

	// Follow-up work uses a fresh context so an interrupt during the run
	// does not also abort archiving.
	post, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var db *store.DB
	if !runNoArchive {
		db, err = openArchive(cfg)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := db.SaveRun(run, ledger); err != nil {
			return fmt.Errorf("archive run: %w", err)
		}
	} else {
		run.Tally = store.TallyActions(ledger)
	}

	if len(cfg.Kafka.Brokers) > 0 {
		if err := publishRun(post, cfg, run.RunID, ledger); err != nil {
			fmt.Fprintf(os.Stderr, "warning: %v\n", err)
		}
	}

	if challenge != nil && !runNoSubmit && !incomplete {
		opts := client.NewOptions(cfg.Feed.Rate, cfg.Feed.MinPickup, cfg.Feed.MaxPickup)
		verdict, err := challenge.Submit(post, problem.TestID, opts, engine.Export(ledger))
		if err != nil {
			return fmt.Errorf("submit: %w", err)
		}
		run.Verdict = verdict
		if db != nil {
			if err := db.SetVerdict(run.RunID, verdict); err != nil {
				fmt.Fprintf(os.Stderr, "warning: %v\n", err)
			}
		}
	}

	printSummary(cmd, run, finished.Sub(started))
	if incomplete {
		return runErr
	}
	return nil
}

func publishRun(ctx context.Context, cfg config.Config, runID string, ledger []engine.Action) error {
	p, err := publish.New(cfg.Kafka.Brokers, cfg.Kafka.Topic)
	if err != nil {
		return err
	}
	defer p.Close()

	n, err := p.PublishRun(ctx, runID, ledger)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "published %s records to %s\n", humanize.Comma(int64(n)), cfg.Kafka.Topic)
	return nil
}

func writeLedger(path string, ledger []engine.Action) error {
	data, err := json.MarshalIndent(engine.Export(ledger), "", "  ")
	if err != nil {
		return fmt.Errorf("encode ledger: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write ledger: %w", err)
	}
	return nil
}

func printSummary(cmd *cobra.Command, run *store.Run, took time.Duration) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "run      %s\n", run.RunID)
	fmt.Fprintf(out, "orders   %s in %s\n", humanize.Comma(int64(run.Orders)), took.Round(time.Millisecond))
	fmt.Fprintf(out, "placed   %s\n", humanize.Comma(int64(run.Tally.Placed)))
	fmt.Fprintf(out, "moved    %s\n", humanize.Comma(int64(run.Tally.Moved)))
	fmt.Fprintf(out, "picked   %s\n", humanize.Comma(int64(run.Tally.PickedUp)))
	fmt.Fprintf(out, "discard  %s\n", humanize.Comma(int64(run.Tally.Discarded)))
	if run.Verdict != "" {
		fmt.Fprintf(out, "verdict  %s\n", run.Verdict)
	}
}
