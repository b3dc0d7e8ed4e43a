// Gatekeeper Core - student registry with live updates
//
// This is the main entry point for the Gatekeeper Core service. It serves
// the student CRUD API, pushes a change event to every connected WebSocket
// client after each successful write, and optionally mirrors those events
// to MQTT, caches reads in Redis and records operation telemetry in InfluxDB.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/nerrad567/gatekeeper-core/migrations"

	"github.com/nerrad567/gatekeeper-core/internal/api"
	"github.com/nerrad567/gatekeeper-core/internal/importer"
	"github.com/nerrad567/gatekeeper-core/internal/infrastructure/cache"
	"github.com/nerrad567/gatekeeper-core/internal/infrastructure/config"
	"github.com/nerrad567/gatekeeper-core/internal/infrastructure/database"
	"github.com/nerrad567/gatekeeper-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/gatekeeper-core/internal/infrastructure/logging"
	"github.com/nerrad567/gatekeeper-core/internal/infrastructure/metrics"
	"github.com/nerrad567/gatekeeper-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/gatekeeper-core/internal/notify"
	"github.com/nerrad567/gatekeeper-core/internal/relay"
	"github.com/nerrad567/gatekeeper-core/internal/student"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// defaultConfigPath is read when GATEKEEPER_CONFIG is unset and the file exists.
const defaultConfigPath = "configs/config.yaml"

// options holds the command-line flags.
type options struct {
	// migrateDown rolls back the latest migration and exits.
	migrateDown bool
}

func main() {
	opts, err := parseArgs(os.Args[1:], os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		os.Exit(2)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if opts.migrateDown {
		err = migrateDown(ctx)
	} else {
		err = run(ctx)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// parseArgs reads the command-line flags. Parse errors are already printed
// to output when it returns.
func parseArgs(args []string, output io.Writer) (options, error) {
	var opts options
	flagSet := flag.NewFlagSet("gatekeeper", flag.ContinueOnError)
	flagSet.SetOutput(output)
	flagSet.BoolVar(&opts.migrateDown, "migrate-down", false,
		"Roll back the most recent database migration and exit.")

	if err := flagSet.Parse(args); err != nil {
		return options{}, err
	}
	if flagSet.NArg() > 0 {
		fmt.Fprintf(output, "unexpected argument %q\n", flagSet.Arg(0))
		return options{}, fmt.Errorf("unexpected argument %q", flagSet.Arg(0))
	}
	return opts, nil
}

// migrateDown opens the configured store and rolls back one migration.
func migrateDown(ctx context.Context) error {
	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log := logging.New(cfg.Logging, version)

	db, err := database.Open(databaseConfig(cfg))
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close() //nolint:errcheck // best-effort close after a one-shot command

	if err := db.MigrateDown(ctx); err != nil {
		return fmt.Errorf("rolling back migration: %w", err)
	}
	log.Info("rolled back latest migration", "driver", db.Driver(), "target", db.Target())
	return nil
}

// run wires every component and blocks until ctx is cancelled.
// Shutdown happens in reverse start order through the defer chain.
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting Gatekeeper Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if configPath == "" {
		log.Info("no config file, using defaults and environment")
	} else {
		log.Info("configuration loaded", "path", configPath)
	}

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)
	if ignored := cfg.IgnoredStoreEnv(); len(ignored) > 0 {
		log.Warn("network store settings ignored by the sqlite driver; set GATEKEEPER_DB_DRIVER to mysql or postgres to use them",
			"variables", ignored,
			"path", cfg.Database.Path,
		)
	}

	// Record store
	db, err := database.Open(databaseConfig(cfg))
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "driver", db.Driver(), "target", db.Target())

	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Metrics
	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New(metrics.Config{ServiceName: "gatekeeper", EnableDefaultCollectors: true})
	}

	// Observer hub. Closed before the API server so live connections end
	// and Shutdown is not held up by them.
	hub := notify.NewHub(cfg.WebSocket.SendBuffer)
	hub.SetLogger(log.Component("notify"))
	if m != nil {
		hub.SetMetrics(m)
	}

	// Registry service
	svc := student.NewService(student.NewSQLRepository(db), hub)
	svc.SetLogger(log.Component("student"))
	if m != nil {
		svc.AddRecorder(m)
	}

	// Read cache (optional)
	if cfg.Cache.Enabled {
		redisCache, cacheErr := cache.Connect(ctx, cacheConfig(cfg))
		if cacheErr != nil {
			return fmt.Errorf("connecting to Redis: %w", cacheErr)
		}
		defer func() {
			log.Info("closing Redis connection")
			if closeErr := redisCache.Close(); closeErr != nil {
				log.Error("error closing Redis", "error", closeErr)
			}
		}()
		svc.SetCache(cache.NewStudentCache(redisCache))
		log.Info("Redis cache connected", "addr", cacheConfig(cfg).Addr(), "ttl", cfg.GetCacheTTL().String())
	} else {
		log.Info("Redis cache disabled")
	}

	// Operation telemetry (optional)
	var telemetry *influxdb.Recorder
	if cfg.InfluxDB.Enabled {
		influxClient, influxErr := influxdb.Connect(ctx, cfg.InfluxDB)
		if influxErr != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", influxErr)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		telemetry = influxdb.NewRecorder(influxClient, hub.Count)
		svc.AddRecorder(telemetry)
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	// MQTT event mirror (optional)
	var broker api.BrokerStatus
	if cfg.MQTT.Enabled {
		mqttClient, mqttErr := mqtt.Connect(cfg.MQTT)
		if mqttErr != nil {
			return fmt.Errorf("connecting to MQTT: %w", mqttErr)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})
		broker = mqttClient
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)

		eventRelay := relay.New(hub, mqttClient, mqttClient.QoS())
		eventRelay.SetLogger(log.Component("relay"))
		relayCtx, stopRelay := context.WithCancel(ctx)
		relayDone := make(chan struct{})
		go func() {
			defer close(relayDone)
			if runErr := eventRelay.Run(relayCtx); runErr != nil && !errors.Is(runErr, context.Canceled) {
				log.Error("event relay stopped", "error", runErr)
			}
		}()
		// Stop the relay before the MQTT client disconnects.
		defer func() {
			stopRelay()
			<-relayDone
		}()
	} else {
		log.Info("MQTT event mirror disabled")
	}

	// HTTP API + live channel
	server, err := api.New(api.Deps{
		Config:      cfg.API,
		WS:          cfg.WebSocket,
		Logger:      log.Component("api"),
		Students:    svc,
		Hub:         hub,
		Importer:    newImporter(svc, telemetry, log),
		Store:       db,
		Metrics:     m,
		MetricsPath: cfg.Metrics.Path,
		Broker:      broker,
		Version:     version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if startErr := server.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()
	defer hub.Close()

	if err := healthCheck(ctx, db, server); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal", "address", server.Addr())

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")
	return nil
}

// getConfigPath returns GATEKEEPER_CONFIG when set, otherwise the default
// path if that file exists, otherwise "" (defaults and environment only).
func getConfigPath() string {
	if path := os.Getenv("GATEKEEPER_CONFIG"); path != "" {
		return path
	}
	if _, err := os.Stat(defaultConfigPath); errors.Is(err, fs.ErrNotExist) {
		return ""
	}
	return defaultConfigPath
}

func databaseConfig(cfg *config.Config) database.Config {
	return database.Config{
		Driver:       cfg.Database.Driver,
		Path:         cfg.Database.Path,
		WALMode:      cfg.Database.WALMode,
		BusyTimeout:  cfg.Database.BusyTimeout,
		Host:         cfg.Database.Host,
		Port:         cfg.DatabasePort(),
		User:         cfg.Database.User,
		Password:     cfg.Database.Password,
		Name:         cfg.Database.Name,
		SSLMode:      cfg.Database.SSLMode,
		MaxOpenConns: cfg.Database.MaxOpenConns,
	}
}

func cacheConfig(cfg *config.Config) cache.Config {
	c := cache.DefaultConfig()
	c.Host = cfg.Cache.Host
	c.Port = cfg.Cache.Port
	c.Password = cfg.Cache.Password
	c.DB = cfg.Cache.DB
	c.TTL = cfg.GetCacheTTL()
	return c
}

func newImporter(svc *student.Service, telemetry *influxdb.Recorder, log *logging.Logger) *importer.Importer {
	im := importer.New(svc)
	im.SetLogger(log.Component("importer"))
	if telemetry != nil {
		im.SetRecorder(telemetry)
	}
	return im
}

// healthChecker is implemented by every component verified at startup.
type healthChecker interface {
	HealthCheck(ctx context.Context) error
}

// healthCheck verifies the store and API server are up. Optional clients
// were already verified when they connected.
func healthCheck(ctx context.Context, db, server healthChecker) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := server.HealthCheck(ctx); err != nil {
		return fmt.Errorf("api: %w", err)
	}
	return nil
}
