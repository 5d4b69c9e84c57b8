package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nerrad567/gray-logic-busdecode/internal/api"
	"github.com/nerrad567/gray-logic-busdecode/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-busdecode/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-busdecode/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-busdecode/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-busdecode/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-busdecode/internal/monitor"
	"github.com/nerrad567/gray-logic-busdecode/internal/recorder"
	"github.com/nerrad567/gray-logic-busdecode/internal/source"
)

// defaultStatsInterval is how often session counters are published.
const defaultStatsInterval = 30 * time.Second

func newMonitorCmd(g *globals) *cobra.Command {
	var (
		quiet         bool
		statsInterval time.Duration
	)

	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Decode a live or recorded source and fan out the results",
		Long: `Monitor reads the source named in the config file (a serial tap or a
capture) until it ends or the process is interrupted.

Decoded fields are printed unless --quiet is set. Depending on the config,
telegrams are also recorded to SQLite, published to MQTT, written to
InfluxDB and streamed over the HTTP API's WebSocket.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMonitor(cmd, g, quiet, statsInterval)
		},
	}

	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "do not print decoded fields")
	cmd.Flags().DurationVar(&statsInterval, "stats-interval", defaultStatsInterval, "how often to publish session counters (0 disables)")
	return cmd
}

// runMonitor wires the source, the enabled sinks and the monitor, then runs
// until the source ends or ctx is cancelled.
//
// Parameters:
//   - cmd: The running command (provides context and output streams)
//   - g: Global flag values
//   - quiet: Suppress printing
//   - statsInterval: Period of session counter reports
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func runMonitor(cmd *cobra.Command, g *globals, quiet bool, statsInterval time.Duration) error {
	ctx := cmd.Context()

	cfg, err := g.loadConfig()
	if err != nil {
		return err
	}
	log := newLogger(cmd, cfg.Logging)
	log.Info("starting bus decoder",
		"version", version,
		"commit", commit,
		"build_date", date,
		"site", cfg.Site.ID,
	)

	opts, err := decoderOptions(cfg.Decoder)
	if err != nil {
		return err
	}

	var sinks []monitor.Sink
	if !quiet {
		printer, printErr := monitor.NewPrinter(cmd.OutOrStdout(), g.output())
		if printErr != nil {
			return printErr
		}
		sinks = append(sinks, printer)
	}

	// Health of each enabled backend, reported by the API.
	components := make(map[string]api.HealthChecker)

	// Database (optional)
	var store api.Store
	if cfg.Database.Enabled {
		rec, db, closeDB, dbErr := startRecorder(ctx, cfg.Database, log)
		if dbErr != nil {
			return dbErr
		}
		defer closeDB()
		store = rec
		components["database"] = db
		sinks = append(sinks, monitor.NewRecorderSink(rec))
	} else {
		log.Info("telegram recorder disabled")
	}

	// MQTT (optional)
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
		mqttClient.SetLogger(log.With("component", "mqtt"))
		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", mqttClient.ClientID(),
			"topic_prefix", mqttClient.Topics().Prefix(),
		)
		components["mqtt"] = mqttClient
		sinks = append(sinks, monitor.NewMQTTSink(mqttClient))
	} else {
		log.Info("MQTT disabled")
	}

	// InfluxDB (optional)
	if cfg.InfluxDB.Enabled {
		influxClient, influxErr := influxdb.Connect(cfg.InfluxDB)
		if influxErr != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", influxErr)
		}
		defer func() {
			log.Info("closing InfluxDB connection", "write_errors", influxClient.WriteErrors())
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
		components["influxdb"] = influxClient
		sinks = append(sinks, monitor.NewMetricsSink(influxClient))
	} else {
		log.Info("InfluxDB disabled")
	}

	// HTTP API and WebSocket stream (optional)
	var apiServer *api.Server
	if cfg.API.Enabled {
		apiServer, err = api.New(api.Deps{
			Config:     cfg.API,
			WS:         cfg.WebSocket,
			Logger:     log.With("component", "api"),
			Store:      store,
			Direction:  opts.Direction,
			Version:    version,
			Components: components,
		})
		if err != nil {
			return fmt.Errorf("creating API server: %w", err)
		}
		sinks = append(sinks, apiServer.Hub())
	} else {
		log.Info("API server disabled")
	}

	src, err := source.Open(cfg.Source)
	if err != nil {
		return fmt.Errorf("opening source: %w", err)
	}
	defer func() {
		if closeErr := src.Close(); closeErr != nil {
			log.Error("error closing source", "error", closeErr)
		}
	}()
	log.Info("source opened", "type", cfg.Source.Type)

	m := monitor.New(src, opts, sinks...)
	m.SetLogger(log)
	m.SetStatsInterval(statsInterval)

	if apiServer != nil {
		apiServer.SetStatsProvider(m)
		if err := apiServer.Start(ctx); err != nil {
			return fmt.Errorf("starting API server: %w", err)
		}
		defer func() {
			if closeErr := apiServer.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	}

	if err := m.Run(ctx); err != nil {
		return fmt.Errorf("monitor: %w", err)
	}

	// Deferred closes run in reverse order: API, source, InfluxDB, MQTT, database.
	log.Info("bus decoder stopped", "sink_errors", m.SinkErrors())
	return nil
}

// startRecorder opens and migrates the database and starts a recorder on it.
//
// Parameters:
//   - ctx: Context for startup
//   - cfg: Database configuration
//   - log: Logger instance
//
// Returns:
//   - *recorder.Recorder: Started recorder
//   - *database.DB: The open database, for health checks
//   - func(): Stops the recorder and closes the database
//   - error: If any step fails
func startRecorder(ctx context.Context, cfg config.DatabaseConfig, log *logging.Logger) (*recorder.Recorder, *database.DB, func(), error) {
	db, err := database.Open(ctx, database.Config{
		Path:        cfg.Path,
		WALMode:     cfg.WALMode,
		BusyTimeout: cfg.BusyTimeout,
	})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("opening database: %w", err)
	}
	log.Info("database connected", "path", cfg.Path)

	if err := db.Migrate(ctx); err != nil {
		db.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, nil, nil, fmt.Errorf("running migrations: %w", err)
	}

	rec := recorder.New(db.DB)
	rec.SetLogger(log.With("component", "recorder"))
	if err := rec.Start(ctx); err != nil {
		db.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, nil, nil, fmt.Errorf("starting recorder: %w", err)
	}

	return rec, db, func() {
		rec.Stop()
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}, nil
}
