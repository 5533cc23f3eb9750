package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/nerrad567/gray-logic-irsensor/internal/api"
	"github.com/nerrad567/gray-logic-irsensor/internal/audit"
	"github.com/nerrad567/gray-logic-irsensor/internal/events"
	"github.com/nerrad567/gray-logic-irsensor/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-irsensor/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-irsensor/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-irsensor/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-irsensor/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-irsensor/internal/sensor"
	"github.com/nerrad567/gray-logic-irsensor/migrations"
)

// run is the service itself, separated from main for testability.
//
// Startup order: logger, probe, audit database, MQTT, InfluxDB, event
// queues, API server. Shutdown runs in reverse so in-flight reads finish,
// their events drain, and only then are the sinks closed.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//   - cfg: Loaded and validated configuration
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context, cfg *config.Config) error {
	log := logging.New(cfg.Logging, version)
	log.Info("starting irsensor",
		"version", version,
		"commit", commit,
		"build_date", date,
		"site_id", cfg.Site.ID,
	)

	probe, err := newProbe(cfg, log)
	if err != nil {
		return err
	}

	components := make(map[string]api.HealthChecker)
	queueStats := make(map[string]api.QueueStats)
	var (
		observers []sensor.Observer
		queues    []*events.Async
		auditRepo audit.Repository
	)

	// Execution audit (optional)
	if cfg.Audit.Enabled {
		db, dbErr := openAuditDB(ctx, cfg, log)
		if dbErr != nil {
			return dbErr
		}
		defer func() {
			log.Info("closing database")
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing database", "error", closeErr)
			}
		}()

		repo := audit.NewSQLiteRepository(db.DB)
		auditRepo = repo
		components["database"] = db

		q := events.NewAsync("audit", audit.NewRecorder(repo, log), events.DefaultQueueSize, log)
		queues = append(queues, q)
		queueStats["audit"] = q
		observers = append(observers, q)
	} else {
		log.Info("execution audit disabled")
	}

	// MQTT events (optional)
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
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
			"topic_prefix", mqttClient.Topics().Prefix(),
		)

		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})
		components["mqtt"] = mqttClient

		publisher := events.NewMQTTPublisher(mqttClient, mqttClient.Topics(), cfg.Site.ID, log)
		q := events.NewAsync("mqtt", publisher, events.DefaultQueueSize, log)
		queues = append(queues, q)
		queueStats["mqtt"] = q
		observers = append(observers, q)
	} else {
		log.Info("MQTT disabled")
	}

	// InfluxDB telemetry (optional)
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
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)

		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		components["influxdb"] = influxClient

		observers = append(observers, events.NewInfluxRecorder(influxClient, cfg.Site.ID))
	} else {
		log.Info("InfluxDB disabled")
	}

	// Event queues outlive the signal context so they can drain on shutdown.
	queueCtx, stopQueues := context.WithCancel(context.WithoutCancel(ctx))
	var wg sync.WaitGroup
	for _, q := range queues {
		wg.Add(1)
		go func() {
			defer wg.Done()
			q.Run(queueCtx)
		}()
	}
	defer func() {
		stopQueues()
		wg.Wait()
		for name, q := range queueStats {
			if n := q.Dropped(); n > 0 {
				log.Warn("event queue dropped events", "queue", name, "dropped", n)
			}
		}
		log.Info("event queues drained")
	}()

	reader, err := sensor.NewReader(sensor.ReaderOptions{
		Probe:         probe,
		Logger:        log,
		Observers:     observers,
		HideRawOutput: !cfg.Sensor.ExposeRawOutput,
	})
	if err != nil {
		return fmt.Errorf("creating sensor reader: %w", err)
	}

	srv, err := api.New(api.Deps{
		Config:     cfg.API,
		SiteID:     cfg.Site.ID,
		Logger:     log,
		Reader:     reader,
		Probe:      probe,
		AuditRepo:  auditRepo,
		Components: components,
		Queues:     queueStats,
		Version:    version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	log.Info("irsensor ready",
		"address", srv.Addr(),
		"path", cfg.API.Path,
		"legacy_path", api.LegacyPath,
	)

	<-ctx.Done()
	log.Info("shutdown signal received, stopping services")

	if err := srv.Close(); err != nil {
		log.Error("error stopping API server", "error", err)
	}

	log.Info("irsensor stopped")
	return nil
}

// probeOnce performs a single read and writes the HTTP response body to out.
// Logs go to stderr so out carries only JSON. The read is audited when the
// audit is enabled.
func probeOnce(ctx context.Context, cfg *config.Config, out io.Writer) error {
	log := logging.NewWithWriter(cfg.Logging, version, os.Stderr)

	probe, err := newProbe(cfg, log)
	if err != nil {
		return err
	}

	var observers []sensor.Observer
	if cfg.Audit.Enabled {
		db, dbErr := openAuditDB(ctx, cfg, log)
		if dbErr != nil {
			return dbErr
		}
		defer db.Close() //nolint:errcheck // Best effort on exit

		observers = append(observers, audit.NewRecorder(audit.NewSQLiteRepository(db.DB), log))
	}

	reader, err := sensor.NewReader(sensor.ReaderOptions{
		Probe:         probe,
		Logger:        log,
		Observers:     observers,
		HideRawOutput: !cfg.Sensor.ExposeRawOutput,
	})
	if err != nil {
		return fmt.Errorf("creating sensor reader: %w", err)
	}

	enc := json.NewEncoder(out)
	enc.SetEscapeHTML(false)

	result, readErr := reader.Read(ctx)
	if readErr != nil {
		if err := enc.Encode(sensor.NewFailurePayload(readErr.Error())); err != nil {
			return fmt.Errorf("writing result: %w", err)
		}
		return fmt.Errorf("sensor read failed: %w", readErr)
	}

	if err := enc.Encode(result); err != nil {
		return fmt.Errorf("writing result: %w", err)
	}
	return nil
}

// newProbe builds the probe adapter from the sensor configuration.
func newProbe(cfg *config.Config, log *logging.Logger) (*sensor.ExecProbe, error) {
	probe, err := sensor.NewExecProbe(sensor.ExecProbeConfig{
		ScriptDir:   cfg.Sensor.ScriptDir,
		ScriptName:  cfg.Sensor.ScriptName,
		Interpreter: cfg.Sensor.Interpreter,
		Elevation:   cfg.Sensor.Elevation,
		Timeout:     cfg.GetSensorTimeout(),
	})
	if err != nil {
		return nil, fmt.Errorf("configuring probe: %w", err)
	}
	probe.SetLogger(log)

	log.Info("probe configured",
		"script", probe.ScriptPath(),
		"command", probe.CommandLine(),
	)
	if info, statErr := os.Stat(probe.ScriptPath()); statErr != nil || info.IsDir() {
		log.Warn("probe script not found, reads will fail until it is installed",
			"script", probe.ScriptPath(),
		)
	}
	return probe, nil
}

// openAuditDB opens the SQLite database and applies the embedded migrations.
func openAuditDB(ctx context.Context, cfg *config.Config, log *logging.Logger) (*database.DB, error) {
	db, err := database.Open(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Migrate(ctx, migrations.FS); err != nil {
		db.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	log.Info("database ready", "path", cfg.Database.Path)
	return db, nil
}
