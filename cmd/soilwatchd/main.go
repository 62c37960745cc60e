// soilwatchd is the soil humidity ingestion and query daemon.
package main

import (
	"context"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/xtxerr/soilwatch/internal/errors"
	"github.com/xtxerr/soilwatch/internal/export"
	"github.com/xtxerr/soilwatch/internal/handler"
	"github.com/xtxerr/soilwatch/internal/loader"
	"github.com/xtxerr/soilwatch/internal/logging"
	"github.com/xtxerr/soilwatch/internal/manager"
	"github.com/xtxerr/soilwatch/internal/mirror"
	"github.com/xtxerr/soilwatch/internal/server"
	"github.com/xtxerr/soilwatch/internal/stats"
	"github.com/xtxerr/soilwatch/internal/store"
)

// Version is set at build time via ldflags
var Version = "dev"

var log = logging.Component("soilwatchd")

func main() {
	// CLI flags
	cfgPath := flag.String("config", "config.yaml", "config file path")
	envPath := flag.String("env", ".env", "env file loaded before the config")
	listen := flag.String("listen", "", "listen address (overrides config)")
	driver := flag.String("driver", "", "store driver: duckdb, sqlite3 or pgx (overrides config)")
	dsn := flag.String("dsn", "", "store DSN (overrides config)")
	exportOnce := flag.Bool("export-once", false, "write one Parquet snapshot and exit")
	flag.Parse()

	if err := loader.LoadEnv(*envPath); err != nil {
		fmt.Fprintf(os.Stderr, "soilwatchd: %v\n", err)
		os.Exit(1)
	}

	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "soilwatchd: %v\n", err)
		os.Exit(1)
	}

	// CLI overrides
	if *listen != "" {
		cfg.Listen = *listen
	}
	if *driver != "" {
		cfg.Store.Driver = *driver
	}
	if *dsn != "" {
		cfg.Store.DSN = *dsn
	}
	if err := loader.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "soilwatchd: %v\n", err)
		os.Exit(1)
	}

	logging.Init(cfg.LogLevel(), cfg.Logging.JSON)
	log.Info("soilwatchd starting", "version", Version, "config", *cfgPath)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *exportOnce {
		err = runExport(ctx, cfg)
	} else {
		err = run(ctx, cfg)
	}
	if err != nil {
		log.Error("soilwatchd stopped", "error", err)
		os.Exit(1)
	}
	log.Info("soilwatchd stopped")
}

// loadConfig loads path, falling back to defaults when the default
// config file does not exist.
func loadConfig(path string) (*loader.Config, error) {
	cfg, err := loader.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "soilwatchd: no config file at %s, using defaults\n", path)
		return loader.Load("")
	}
	return cfg, err
}

func openStore(cfg *loader.Config) (*store.Store, error) {
	storeCfg := loader.ToStoreConfig(cfg)
	log.Info("opening store", "driver", storeCfg.Driver)

	s, err := store.New(storeCfg)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return s, nil
}

// runExport writes one snapshot of every table.
func runExport(ctx context.Context, cfg *loader.Config) error {
	s, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	e, err := export.NewFromConfig(s, loader.ToExportConfig(cfg))
	if err != nil {
		return err
	}
	res, err := e.Run(ctx)
	if err != nil {
		return err
	}
	for _, t := range res.Tables {
		log.Info("exported", "table", t.Table, "rows", t.Rows, "path", t.Path)
	}
	return nil
}

// run serves the API until ctx is cancelled.
func run(ctx context.Context, cfg *loader.Config) error {
	s, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	// =========================================================================
	// Mirror (optional)
	// =========================================================================

	var mgrOpts []manager.Option
	var handlerOpts []handler.Option

	m, err := mirror.New(loader.ToMirrorConfig(cfg))
	switch {
	case errors.Is(err, errors.ErrMirrorDisabled):
		log.Info("mirror disabled")
	case err != nil:
		return fmt.Errorf("create mirror: %w", err)
	default:
		defer m.Close()
		mgrOpts = append(mgrOpts, manager.WithObserver(m))
		handlerOpts = append(handlerOpts, handler.WithMirror(m))
		log.Info("mirroring to influxdb", "url", cfg.Mirror.URL, "bucket", cfg.Mirror.Bucket)
	}

	// =========================================================================
	// API
	// =========================================================================

	rec := stats.NewRecorder(cfg.Stats.Accuracy)
	handlerOpts = append(handlerOpts, handler.WithRecorder(rec))

	mgr := manager.New(s, mgrOpts...)
	h := handler.NewHandler(mgr, handlerOpts...)
	srv := server.New(loader.ToServerConfig(cfg), h, rec)

	// =========================================================================
	// Scheduled Export
	// =========================================================================

	var sched *export.Scheduler
	if cfg.Export.Enabled {
		exportCfg := loader.ToExportConfig(cfg)
		e, err := export.NewFromConfig(s, exportCfg)
		if err != nil {
			return err
		}
		sched, err = export.NewScheduler(e, exportCfg.Schedule, cfg.Export.Timeout.Duration())
		if err != nil {
			return err
		}
		log.Info("export enabled", "dir", exportCfg.Dir, "schedule", exportCfg.Schedule)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(ctx)
	})
	if sched != nil {
		g.Go(func() error {
			return sched.Run(ctx)
		})
	}

	return g.Wait()
}
