package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"freetoair/catalog/internal/catalog"
	"freetoair/catalog/internal/config"
	"freetoair/catalog/internal/database"
	"freetoair/catalog/internal/health"
	"freetoair/catalog/internal/probe"
	"freetoair/catalog/internal/seed"
	"freetoair/catalog/internal/server"
)

func init() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "2006-01-02 15:04:05"})
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
}

func main() {
	cfg := config.DefaultConfig()

	seedCmd := flag.NewFlagSet("seed", flag.ExitOnError)
	seedCmd.StringVar(&cfg.SeedCSVPath, "csv", config.GetEnvString("CATALOG_SEED_CSV", config.DefaultSeedCSVPath),
		"Path to the channels CSV file (env: CATALOG_SEED_CSV)")
	seedCmd.StringVar(&cfg.DBPath, "db", config.GetEnvString("CATALOG_DB_PATH", config.DefaultDBPath),
		"Path to the SQLite database file (env: CATALOG_DB_PATH)")

	var seedFresh bool
	seedCmd.BoolVar(&seedFresh, "fresh", false,
		"Delete an existing database before seeding (prompts for confirmation)")

	var seedLogLevelStr string
	seedCmd.StringVar(&seedLogLevelStr, "log-level", cfg.LogLevel.String(),
		"Log level: debug, info, warn, error (env: CATALOG_LOG_LEVEL)")

	sweepCmd := flag.NewFlagSet("sweep", flag.ExitOnError)
	sweepCmd.StringVar(&cfg.DBPath, "db", config.GetEnvString("CATALOG_DB_PATH", config.DefaultDBPath),
		"Path to the SQLite database file (env: CATALOG_DB_PATH)")

	var sweepProbeTimeoutSec int
	sweepCmd.IntVar(&sweepProbeTimeoutSec, "probe-timeout", config.GetEnvInt("CATALOG_PROBE_TIMEOUT", config.DefaultProbeTimeoutSec),
		"Per-stream probe timeout in seconds (env: CATALOG_PROBE_TIMEOUT)")

	sweepCmd.IntVar(&cfg.SweepWorkers, "workers", config.GetEnvInt("CATALOG_SWEEP_WORKERS", config.DefaultSweepWorkers),
		"Number of probe worker goroutines, 0 for CPU count (env: CATALOG_SWEEP_WORKERS)")

	var sweepLogLevelStr string
	sweepCmd.StringVar(&sweepLogLevelStr, "log-level", cfg.LogLevel.String(),
		"Log level: debug, info, warn, error (env: CATALOG_LOG_LEVEL)")

	serveCmd := flag.NewFlagSet("serve", flag.ExitOnError)
	serveCmd.StringVar(&cfg.DBPath, "db", config.GetEnvString("CATALOG_DB_PATH", config.DefaultDBPath),
		"Path to the SQLite database file (env: CATALOG_DB_PATH)")

	serveCmd.StringVar(&cfg.ServerHost, "host", config.GetEnvString("CATALOG_HOST", config.DefaultServerHost),
		"Host to bind the server to (env: CATALOG_HOST)")

	serveCmd.IntVar(&cfg.ServerPort, "port", config.GetEnvInt("CATALOG_PORT", config.DefaultServerPort),
		"Port to listen on (env: CATALOG_PORT)")

	var serveIntervalSec, serveProbeTimeoutSec int
	serveCmd.IntVar(&serveIntervalSec, "interval", config.GetEnvInt("CATALOG_SWEEP_INTERVAL", config.DefaultSweepIntervalSec),
		"Interval in seconds between stream health sweeps (env: CATALOG_SWEEP_INTERVAL)")

	serveCmd.IntVar(&serveProbeTimeoutSec, "probe-timeout", config.GetEnvInt("CATALOG_PROBE_TIMEOUT", config.DefaultProbeTimeoutSec),
		"Per-stream probe timeout in seconds (env: CATALOG_PROBE_TIMEOUT)")

	serveCmd.IntVar(&cfg.SweepWorkers, "workers", config.GetEnvInt("CATALOG_SWEEP_WORKERS", config.DefaultSweepWorkers),
		"Number of probe worker goroutines, 0 for CPU count (env: CATALOG_SWEEP_WORKERS)")

	var serveConfigPath string
	serveCmd.StringVar(&serveConfigPath, "config", "",
		"Optional YAML config file; file values replace flag and env values")

	var serveLogLevelStr string
	serveCmd.StringVar(&serveLogLevelStr, "log-level", cfg.LogLevel.String(),
		"Log level: debug, info, warn, error (env: CATALOG_LOG_LEVEL)")

	if len(os.Args) < 2 {
		fmt.Println("Usage: catalog [command] [options]")
		fmt.Println("Commands: seed, sweep, serve")
		fmt.Println("\nFor command-specific options, use: catalog [command] -h")
		os.Exit(1)
	}

	switch os.Args[1] {
	case "seed":
		seedCmd.Parse(os.Args[2:])

		if level, err := zerolog.ParseLevel(seedLogLevelStr); err == nil {
			cfg.LogLevel = level
		}
		zerolog.SetGlobalLevel(cfg.LogLevel)

		if err := runSeed(cfg, seedFresh); err != nil {
			log.Error().Err(err).Msg("Seed failed")
			os.Exit(1)
		}

	case "sweep":
		sweepCmd.Parse(os.Args[2:])

		if level, err := zerolog.ParseLevel(sweepLogLevelStr); err == nil {
			cfg.LogLevel = level
		}
		cfg.ProbeTimeout = time.Duration(sweepProbeTimeoutSec) * time.Second
		zerolog.SetGlobalLevel(cfg.LogLevel)

		if err := runSweep(cfg); err != nil {
			log.Error().Err(err).Msg("Sweep failed")
			os.Exit(1)
		}

	case "serve":
		serveCmd.Parse(os.Args[2:])

		if serveConfigPath != "" {
			fileCfg, err := config.LoadFromFile(serveConfigPath)
			if err != nil {
				log.Error().Err(err).Str("path", serveConfigPath).Msg("Failed to load config file")
				os.Exit(1)
			}
			cfg = fileCfg
		} else {
			if level, err := zerolog.ParseLevel(serveLogLevelStr); err == nil {
				cfg.LogLevel = level
			}
			cfg.SweepInterval = time.Duration(serveIntervalSec) * time.Second
			cfg.ProbeTimeout = time.Duration(serveProbeTimeoutSec) * time.Second
		}
		zerolog.SetGlobalLevel(cfg.LogLevel)

		if err := runServe(cfg); err != nil {
			log.Error().Err(err).Msg("Server failed")
			os.Exit(1)
		}

	case "-h", "--help", "help":
		fmt.Println("Usage: catalog [command] [options]")
		fmt.Println("Commands: seed, sweep, serve")
		fmt.Println("\nFor command-specific options, use: catalog [command] -h")
		os.Exit(0)

	default:
		log.Error().Str("command", os.Args[1]).Msg("Unknown command")
		fmt.Println("Available commands: seed, sweep, serve")
		fmt.Println("\nFor command-specific options, use: catalog [command] -h")
		os.Exit(1)
	}
}

// runSeed loads channels into the database from the CSV file, falling
// back to the built-in sample set when the file does not exist. Seeding
// is idempotent; -fresh recreates the database first.
func runSeed(cfg *config.Config, fresh bool) error {
	if fresh {
		if _, err := os.Stat(cfg.DBPath); err == nil {
			fmt.Printf("Database %s already exists and -fresh was given. All data will be lost.\n", cfg.DBPath)
			fmt.Print("Delete and recreate? (y/N): ")

			var answer string
			fmt.Scanln(&answer)

			if strings.ToLower(answer) != "y" {
				log.Info().Msg("Operation canceled by user")
				return fmt.Errorf("operation canceled by user")
			}

			if err := database.DeleteDB(cfg.DBPath); err != nil {
				log.Error().Err(err).Str("path", cfg.DBPath).Msg("Failed to delete existing database")
				return fmt.Errorf("failed to delete existing database: %w", err)
			}
			log.Info().Str("path", cfg.DBPath).Msg("Deleted existing database")
		}
	}

	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	store := catalog.NewStore(db)
	seeder := seed.NewSeeder(store)
	ctx := context.Background()

	if _, err := os.Stat(cfg.SeedCSVPath); err != nil {
		log.Info().Str("csv", cfg.SeedCSVPath).Msg("Seed CSV not found, applying built-in sample channels")
		added, err := seeder.Apply(ctx, seed.Defaults())
		if err != nil {
			return err
		}
		log.Info().Int("added", added).Msg("Sample channels applied")
		return nil
	}

	return seeder.ImportCSV(ctx, cfg.SeedCSVPath)
}

// runSweep executes a single stream health sweep and exits.
func runSweep(cfg *config.Config) error {
	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-shutdown
		log.Info().Str("signal", sig.String()).Msg("Shutdown signal received")
		cancel()
	}()

	store := catalog.NewStore(db)
	prober := probe.NewHTTPProber(cfg.ProbeTimeout)
	reconciler := health.NewReconciler(store, prober, cfg.SweepInterval, cfg.SweepWorkers)

	log.Info().Msg("Running in one-shot mode")

	if err := reconciler.Sweep(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			log.Info().Msg("Sweep canceled by shutdown signal")
			return nil
		}
		return err
	}

	checked, active, skipped := reconciler.Stats()
	log.Info().
		Int64("checked", checked).
		Int64("active", active).
		Int64("skipped", skipped).
		Msg("Sweep stats")
	return nil
}

// runServe starts the HTTP API together with the background stream
// health reconciler. Both share one shutdown context; the reconciler is
// joined before the process exits rather than abandoned mid-sweep.
func runServe(cfg *config.Config) error {
	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-shutdown
		log.Info().Str("signal", sig.String()).Msg("Shutdown signal received")
		cancel()
	}()

	store := catalog.NewStore(db)
	prober := probe.NewHTTPProber(cfg.ProbeTimeout)

	// Bootstrap the built-in sample set; ids already present are untouched.
	seeder := seed.NewSeeder(store)
	if added, err := seeder.Apply(ctx, seed.Defaults()); err != nil {
		return fmt.Errorf("failed to apply bootstrap channels: %w", err)
	} else if added > 0 {
		log.Info().Int("added", added).Msg("Bootstrap channels applied")
	}

	reconciler := health.NewReconciler(store, prober, cfg.SweepInterval, cfg.SweepWorkers)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		reconciler.Run(ctx)
	}()

	err = server.RunServer(ctx, db, store, prober, cfg, log.Logger)

	// Stop the reconciler and wait for the current sweep to wind down.
	cancel()
	wg.Wait()

	return err
}

func openDB(cfg *config.Config) (*database.DB, error) {
	dbCfg := database.NewConfig(cfg.DBPath)
	db, err := database.NewDB(dbCfg)
	if err != nil {
		log.Error().Err(err).Str("path", cfg.DBPath).Msg("Failed to initialize database")
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return db, nil
}
