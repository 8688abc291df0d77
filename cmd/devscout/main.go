// DevScout - Device Discovery Core
//
// This is the main entry point for the DevScout application.
// DevScout is the discovery core of a device-registry platform:
//   - Scatter-gather capability queries to discovery repositories over MQTT
//   - Deduplication, scoring and ranking of reported device descriptions
//   - Live subscriptions with incremental revision merging
//   - Per-template serialised discovery tasks with persisted logs
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/arienlabs/devscout/migrations"

	"github.com/arienlabs/devscout/internal/discovery"
	"github.com/arienlabs/devscout/internal/engine"
	"github.com/arienlabs/devscout/internal/gateway"
	"github.com/arienlabs/devscout/internal/infrastructure/config"
	"github.com/arienlabs/devscout/internal/infrastructure/database"
	"github.com/arienlabs/devscout/internal/infrastructure/influxdb"
	"github.com/arienlabs/devscout/internal/infrastructure/logging"
	"github.com/arienlabs/devscout/internal/infrastructure/mqtt"
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

// logPruneInterval is how often expired discovery logs are removed.
const logPruneInterval = 6 * time.Hour

func main() {
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting DevScout",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open database
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	// Run migrations
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Connect to MQTT broker
	mqttClient, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	mqttClient.SetLogger(log)
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})

	// Connect to InfluxDB (optional)
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
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)

		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
	} else {
		log.Info("InfluxDB disabled")
	}

	// Repositories
	candidates := discovery.NewSQLiteCandidateDevicesRepository(db.DB)
	templates := discovery.NewSQLiteDeviceTemplateRepository(db.DB)
	requestTopics := discovery.NewSQLiteRequestTopicRepository(db.DB)
	deployments := discovery.NewSQLiteDeploymentRepository(db.DB)
	discoveryLogs := engine.NewSQLiteLogRepository(db.DB)

	// Discovery gateway on top of the MQTT client
	gw := gateway.New(mqttClient, byte(cfg.Discovery.QoS), log)

	// Discovery engine
	deps := engine.Dependencies{
		Gateway:     gw,
		Candidates:  candidates,
		Logs:        discoveryLogs,
		Topics:      &topicSource{repo: requestTopics},
		Deployments: deployments,
		Logger:      log,
	}
	if influxClient != nil {
		deps.Metrics = influxClient
	}

	eng := engine.New(deps, cfg.Discovery.Workers)
	defer func() {
		log.Info("stopping discovery engine")
		eng.Close()
	}()
	log.Info("discovery engine started", "workers", cfg.Discovery.Workers)

	// Restore candidate device state and subscriptions after restart
	all, err := templates.List(ctx)
	if err != nil {
		return fmt.Errorf("listing device templates: %w", err)
	}
	if err := eng.Reconcile(ctx, all); err != nil {
		return fmt.Errorf("reconciling device templates: %w", err)
	}
	log.Info("device templates reconciled", "count", len(all))

	// Prune expired discovery logs periodically
	if cfg.Discovery.LogRetentionDays > 0 {
		go pruneDiscoveryLogs(ctx, discoveryLogs, cfg.Discovery.LogRetentionDays, log)
	}

	// Verify all connections are healthy
	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls will run in reverse order:
	// 1. Discovery engine (waits for queued tasks)
	// 2. InfluxDB (if enabled)
	// 3. MQTT
	// 4. Database

	log.Info("DevScout stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses DEVSCOUT_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("DEVSCOUT_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies all infrastructure connections are healthy.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if err := mqttClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}

// pruneDiscoveryLogs removes discovery logs older than the retention window,
// once at startup and then on a fixed interval until the context ends.
func pruneDiscoveryLogs(ctx context.Context, logs engine.LogRepository, retentionDays int, log *logging.Logger) {
	retention := time.Duration(retentionDays) * 24 * time.Hour

	prune := func() {
		removed, err := logs.Prune(ctx, time.Now().UTC().Add(-retention))
		if err != nil {
			log.Error("pruning discovery logs failed", "error", err)
			return
		}
		if removed > 0 {
			log.Info("pruned discovery logs", "removed", removed, "retention_days", retentionDays)
		}
	}

	prune()

	ticker := time.NewTicker(logPruneInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			prune()
		}
	}
}

// topicSource adapts the request topic repository to the engine's
// TopicsForOwner lookup.
type topicSource struct {
	repo discovery.RequestTopicRepository
}

// TopicsForOwner implements engine.RequestTopicSource.
func (s *topicSource) TopicsForOwner(ctx context.Context, ownerID string) ([]discovery.RequestTopic, error) {
	return s.repo.ListByOwner(ctx, ownerID)
}
