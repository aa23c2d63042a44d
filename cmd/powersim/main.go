// Power Simulator
//
// This is the main entry point for the power simulator. It runs a fixed
// roster of household devices, each drawing a random 50-200 W while on,
// and serves their consumption history over HTTP. Every tick interval
// the simulation loop samples all devices that are on.
//
// Optional integrations, all configured in configs/config.yaml:
//   - SQLite audit log of power commands
//   - MQTT power commands and retained device state
//   - InfluxDB export of every reading
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/levenlabs/go-lflag"

	"github.com/nerrad567/powersim/internal/api"
	"github.com/nerrad567/powersim/internal/device"
	"github.com/nerrad567/powersim/internal/infrastructure/config"
	"github.com/nerrad567/powersim/internal/infrastructure/database"
	"github.com/nerrad567/powersim/internal/infrastructure/influxdb"
	"github.com/nerrad567/powersim/internal/infrastructure/logging"
	"github.com/nerrad567/powersim/internal/infrastructure/mqtt"
	"github.com/nerrad567/powersim/migrations"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// powerLogRetention is how long audit entries are kept; older ones are
// pruned at startup.
const powerLogRetention = 90 * 24 * time.Hour

// options holds command-line overrides. Empty strings mean "not given".
type options struct {
	configPath     string
	maxEntries     string
	updateInterval string
	port           string
	seed           string
	migrateDown    bool
}

func main() {
	opts := registerFlags()
	lflag.Configure()

	// Cancel on interrupt signals (Ctrl+C, SIGTERM) for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, *opts); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// registerFlags declares the command-line flags. The returned options are
// filled in once lflag.Configure has parsed them.
func registerFlags() *options {
	opts := &options{}

	configPath := lflag.String("config", "", "Path to the YAML config file (default "+defaultConfigPath+")")
	maxEntries := lflag.String("max-entries", "", "Consumption history entries kept per device")
	updateInterval := lflag.String("update-interval", "", "Simulation tick interval in seconds")
	port := lflag.String("port", "", "HTTP listen port")
	seed := lflag.String("seed", "", "Seed for the power generator; 0 picks one from the clock")
	migrateDown := lflag.Bool("migrate-down", false, "Roll back the newest power log migration and exit")

	lflag.Do(func() {
		opts.configPath = *configPath
		opts.maxEntries = *maxEntries
		opts.updateInterval = *updateInterval
		opts.port = *port
		opts.seed = *seed
		opts.migrateDown = *migrateDown
	})

	return opts
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//   - opts: Command-line overrides
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context, opts options) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting power simulator",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	cfg, configPath, err := loadConfig(opts)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := applyFlags(cfg, opts); err != nil {
		return fmt.Errorf("applying flags: %w", err)
	}

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("configuration loaded",
		"path", configPath,
		"max_entries", cfg.Simulation.MaxEntries,
		"update_interval_s", cfg.Simulation.UpdateInterval,
		"port", cfg.API.Port,
	)

	if opts.migrateDown {
		return rollbackPowerLog(ctx, cfg.Database, log)
	}

	// Device roster
	registry, err := device.NewRegistry(device.DefaultRoster(cfg.Simulation.MaxEntries, cfg.TickInterval())...)
	if err != nil {
		return fmt.Errorf("building device registry: %w", err)
	}
	registry.SetLogger(log)
	log.Info("device registry initialised", "devices", registry.Count())

	sim := device.NewSimulator(registry, cfg.TickInterval(),
		device.WithSource(device.NewSource(cfg.Simulation.Seed)),
		device.WithLogger(log),
	)

	// Dependencies reported by /health
	checks := make(map[string]api.HealthChecker)

	// Power-change audit log (optional)
	var db *database.DB
	var powerLog device.PowerLogRepository
	if cfg.Database.Enabled {
		var repo *device.SQLitePowerLogRepository
		db, repo, err = openPowerLog(ctx, cfg.Database, log)
		if err != nil {
			return err
		}
		defer func() {
			log.Info("closing database")
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing database", "error", closeErr)
			}
		}()
		powerLog = repo
		checks["database"] = db
		registry.OnPowerChange(device.RecordPowerChanges(repo, log))
	} else {
		log.Info("power log disabled")
	}

	// MQTT bridge (optional)
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		mqttClient.SetLogger(log)
		checks["mqtt"] = mqttClient
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)
	} else {
		log.Info("MQTT disabled")
	}

	// InfluxDB export (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Warn("InfluxDB write error", "error", err)
		})
		sim.OnTick(influxClient.WriteReadings)
		checks["influxdb"] = influxClient
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all infrastructure connections healthy")

	server, err := api.New(api.Deps{
		Config:    cfg.API,
		WS:        cfg.WebSocket,
		Logger:    log,
		Registry:  registry,
		Simulator: sim,
		MQTT:      mqttClient,
		PowerLog:  powerLog,
		Checks:    checks,
		Version:   version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	simDone := make(chan struct{})
	go func() {
		defer close(simDone)
		sim.Run(ctx)
	}()

	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")
	<-simDone

	log.Info("power simulator stopped")
	return nil
}

// healthCheck verifies every enabled infrastructure connection. Nil
// arguments are integrations that are switched off.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if db != nil {
		if err := db.HealthCheck(ctx); err != nil {
			return fmt.Errorf("database: %w", err)
		}
	}
	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}
	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}
	return nil
}

// getConfigPath returns the config path and whether it was chosen
// explicitly. Precedence: --config, then POWERSIM_CONFIG, then the default.
func getConfigPath(opts options) (string, bool) {
	if opts.configPath != "" {
		return opts.configPath, true
	}
	if path := os.Getenv("POWERSIM_CONFIG"); path != "" {
		return path, true
	}
	return defaultConfigPath, false
}

// loadConfig loads the YAML config. A missing file at the default path
// falls back to built-in defaults; a missing explicit file is an error.
func loadConfig(opts options) (*config.Config, string, error) {
	path, explicit := getConfigPath(opts)

	cfg, err := config.Load(path)
	if err == nil {
		return cfg, path, nil
	}
	if explicit || !errors.Is(err, os.ErrNotExist) {
		return nil, path, err
	}

	cfg, err = config.LoadDefaults()
	if err != nil {
		return nil, "", err
	}
	return cfg, "(defaults)", nil
}

// applyFlags overlays command-line values on cfg and re-validates it.
func applyFlags(cfg *config.Config, opts options) error {
	if err := flagInt("max-entries", opts.maxEntries, &cfg.Simulation.MaxEntries); err != nil {
		return err
	}
	if err := flagInt("update-interval", opts.updateInterval, &cfg.Simulation.UpdateInterval); err != nil {
		return err
	}
	if err := flagInt("port", opts.port, &cfg.API.Port); err != nil {
		return err
	}
	if opts.seed != "" {
		seed, err := strconv.ParseInt(opts.seed, 10, 64)
		if err != nil {
			return fmt.Errorf("--seed: %w", err)
		}
		cfg.Simulation.Seed = seed
	}
	return cfg.Validate()
}

// flagInt parses value into dst when the flag was given.
func flagInt(name, value string, dst *int) error {
	if value == "" {
		return nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("--%s: %w", name, err)
	}
	*dst = n
	return nil
}

// openPowerLog opens the SQLite database, applies migrations and prunes
// entries older than powerLogRetention.
func openPowerLog(ctx context.Context, cfg config.DatabaseConfig, log *logging.Logger) (*database.DB, *device.SQLitePowerLogRepository, error) {
	db, err := database.Open(database.Config{
		Path:        cfg.Path,
		WALMode:     cfg.WALMode,
		BusyTimeout: cfg.BusyTimeout,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("opening database: %w", err)
	}
	log.Info("database connected", "path", cfg.Path)

	applied, err := db.Migrate(ctx, migrations.FS, ".")
	if err != nil {
		db.Close() //nolint:errcheck // already failing
		return nil, nil, fmt.Errorf("running migrations: %w", err)
	}
	log.Info("database migrations complete", "applied", applied)

	repo := device.NewSQLitePowerLogRepository(db.DB)
	pruned, err := repo.Prune(ctx, powerLogRetention)
	if err != nil {
		log.Warn("failed to prune power log", "error", err)
	} else if pruned > 0 {
		log.Info("power log pruned", "entries", pruned)
	}

	return db, repo, nil
}

// rollbackPowerLog reverts the newest applied migration of the power log
// database.
func rollbackPowerLog(ctx context.Context, cfg config.DatabaseConfig, log *logging.Logger) error {
	if !cfg.Enabled {
		return errors.New("database is disabled, nothing to roll back")
	}

	db, err := database.Open(database.Config{
		Path:        cfg.Path,
		WALMode:     cfg.WALMode,
		BusyTimeout: cfg.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close() //nolint:errcheck // best-effort close

	if err := db.MigrateDown(ctx, migrations.FS, "."); err != nil {
		return fmt.Errorf("rolling back migration: %w", err)
	}

	applied, pending, err := db.MigrationStatus(ctx, migrations.FS, ".")
	if err != nil {
		return fmt.Errorf("reading migration status: %w", err)
	}
	log.Info("database migration rolled back", "path", cfg.Path, "applied", len(applied), "pending", len(pending))
	return nil
}
