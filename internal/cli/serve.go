package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/lazypower/larder/internal/config"
	"github.com/lazypower/larder/internal/engine"
	"github.com/lazypower/larder/internal/server"
	"github.com/lazypower/larder/internal/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API over a live kitchen",
	Long: "Serve exposes one engine over HTTP. Orders are placed and picked up through the API. " +
		"On shutdown the session's ledger is archived as a run.",
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("bind", "", "address to bind (default 127.0.0.1)")
	serveCmd.Flags().Int("port", 0, "port to listen on (default 37780)")
}

// applyServeFlags overlays explicitly set listener flags onto cfg.
func applyServeFlags(cmd *cobra.Command, cfg *config.Config) error {
	f := cmd.Flags()
	if f.Changed("bind") {
		bind, err := f.GetString("bind")
		if err != nil {
			return err
		}
		cfg.Server.Bind = bind
	}
	if f.Changed("port") {
		port, err := f.GetInt("port")
		if err != nil {
			return err
		}
		cfg.Server.Port = port
	}
	return cfg.Validate()
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := applyServeFlags(cmd, &cfg); err != nil {
		return err
	}

	db, err := openArchive(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	eng, err := engine.New(cfg.Capacities(), engine.NewSystemClock())
	if err != nil {
		return err
	}

	srv := server.New(eng, db, VersionString())
	addr := cfg.ListenAddr()
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	errc := make(chan error, 1)
	started := time.Now()
	go func() {
		fmt.Fprintf(os.Stderr, "larder serving on %s\n", addr)
		fmt.Fprintf(os.Stderr, "  db: %s\n", db.Path)
		caps := cfg.Capacities()
		fmt.Fprintf(os.Stderr, "  kitchen: heater=%d cooler=%d freezer=%d shelf=%d\n",
			caps.Heater, caps.Cooler, caps.Freezer, caps.Shelf)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	select {
	case <-done:
	case err := <-errc:
		return fmt.Errorf("server: %w", err)
	}
	fmt.Fprintln(os.Stderr, "\nshutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	shutdownErr := httpServer.Shutdown(ctx)

	ledger := eng.Ledger()
	if len(ledger) == 0 {
		return shutdownErr
	}

	run := &store.Run{
		RunID:      uuid.NewString(),
		Source:     store.SourceServer,
		StartedAt:  started.UnixMilli(),
		FinishedAt: time.Now().UnixMilli(),
		Orders:     store.TallyActions(ledger).Placed,
	}
	if err := db.SaveRun(run, ledger); err != nil {
		return fmt.Errorf("archive session: %w", err)
	}
	fmt.Fprintf(os.Stderr, "archived %d actions as run %s\n", len(ledger), run.RunID)

	if len(cfg.Kafka.Brokers) > 0 {
		if err := publishRun(ctx, cfg, run.RunID, ledger); err != nil {
			fmt.Fprintf(os.Stderr, "warning: %v\n", err)
		}
	}
	return shutdownErr
}
