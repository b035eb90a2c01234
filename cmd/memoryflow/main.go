package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/conorfennell/memoryflow/internal/config"
	"github.com/conorfennell/memoryflow/internal/reminder"
	"github.com/conorfennell/memoryflow/internal/review"
	"github.com/conorfennell/memoryflow/internal/storage"
	"github.com/conorfennell/memoryflow/internal/sync"
	"github.com/conorfennell/memoryflow/internal/web"
)

const usage = `Usage: memoryflow <command> [flags]

Commands:
  serve               Run the HTTP API (default)
  sync                Import notes from every configured source
  add-source <path>   Register a local directory or git URL as a note source

Flags:
`

func main() {
	if err := run(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		slog.Error("memoryflow failed", "error", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	cmd := "serve"
	if len(args) > 0 && args[0] != "" && args[0][0] != '-' {
		cmd, args = args[0], args[1:]
	}

	// 1. Load configuration
	flags := config.FlagSet("memoryflow")
	flags.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		flags.PrintDefaults()
	}
	cfg, err := config.Load(flags, args)
	if err != nil {
		return err
	}
	slog.SetDefault(cfg.Logger(os.Stderr))

	loc, err := cfg.Location()
	if err != nil {
		return fmt.Errorf("failed to load time zone %s: %w", cfg.Timezone, err)
	}
	rs, err := review.NewScheduler(cfg.Scheduler())
	if err != nil {
		return err
	}

	// 2. Open the database
	db, err := storage.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()
	slog.Info("Database opened successfully", "path", cfg.DBPath)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	syncOpts := sync.Options{
		ReposDir: cfg.ReposDir,
		Now:      func() time.Time { return time.Now().In(loc) },
		Progress: os.Stderr,
	}

	// 3. Dispatch the command
	switch cmd {
	case "serve":
		return serve(ctx, cfg, db, rs, loc, syncOpts)
	case "sync":
		report, err := sync.Run(ctx, db, syncOpts)
		if err != nil {
			return err
		}
		fmt.Printf("Synced %d sources: %d added, %d removed, %d errors.\n",
			report.Sources, report.Added, report.Removed, report.Errors)
		return nil
	case "add-source":
		return addSource(ctx, db, flags.Args())
	default:
		flags.Usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func addSource(ctx context.Context, db *storage.DB, args []string) error {
	if len(args) != 1 {
		return errors.New("add-source takes exactly one path or git URL")
	}
	path := args[0]
	sourceType := sync.SourceType(path)
	if sourceType == storage.SourceLocal {
		abs, err := filepath.Abs(path)
		if err != nil {
			return fmt.Errorf("failed to resolve %s: %w", path, err)
		}
		path = abs
	}

	existing, err := db.FindSourceByPath(ctx, path)
	if err != nil {
		return err
	}
	if existing != nil {
		fmt.Printf("Source already registered with ID %d: %s\n", existing.ID, path)
		return nil
	}

	id, err := db.InsertSource(ctx, path, sourceType)
	if err != nil {
		return err
	}
	fmt.Printf("Added %s source %d: %s\n", sourceType, id, path)
	return nil
}

func serve(ctx context.Context, cfg *config.Config, db *storage.DB, rs *review.Scheduler, loc *time.Location, syncOpts sync.Options) error {
	if cfg.ReminderEvery > 0 {
		rem := reminder.New(db, rs, loc, slog.Default())
		if err := rem.Start(cfg.ReminderEvery); err != nil {
			return err
		}
		defer rem.Stop()
	}

	srv := &http.Server{
		Addr: cfg.Addr,
		Handler: web.NewServer(db, rs,
			web.WithLocation(loc),
			web.WithSyncOptions(syncOpts),
			web.WithLogger(slog.Default()),
		),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		slog.Info("Listening", "addr", cfg.Addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		slog.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
