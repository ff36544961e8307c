package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"hkco-server/internal/config"
	"hkco-server/internal/db"
	"hkco-server/internal/httpapi"
	"hkco-server/internal/metrics"
	"hkco-server/internal/migrate"
	"hkco-server/internal/modules/telemetry"
	"hkco-server/internal/modules/telemetry/repository"
	"hkco-server/internal/modules/telemetry/service"
	"hkco-server/internal/modules/telemetry/store"
	"hkco-server/internal/modules/telemetry/views"
	"hkco-server/internal/mqtt"
)

// server is everything Run starts and later stops.
type server struct {
	handler    http.Handler
	service    *service.Service
	subscriber *mqtt.Subscriber
	db         *sql.DB
}

func (s *server) close() {
	if s.subscriber != nil {
		slog.Info("mqtt disconnecting")
		s.subscriber.Disconnect()
	}
	if err := db.Close(s.db); err != nil {
		slog.Error("db close", "error", err)
	}
}

func Run(ctx context.Context, cfg config.Config) error {
	slog.Info("config loaded",
		"appEnv", cfg.AppEnv,
		"logLevel", cfg.LogLevel.String(),
		"httpAddr", cfg.HTTPAddr,
		"journalEnabled", cfg.JournalEnabled,
		"sqliteDriver", cfg.SQLiteDriver,
		"sqlitePath", cfg.SQLitePath,
		"sqliteMaxOpenConns", cfg.SQLiteMaxOpenConns,
		"mqttEnabled", cfg.MQTTEnabled,
		"mqttBroker", cfg.MQTTBroker,
		"mqttPort", cfg.MQTTPort,
		"mqttTopic", cfg.MQTTTopic,
		"metricsEnabled", cfg.MetricsEnabled,
		"streamHeartbeat", cfg.StreamHeartbeat,
	)

	srv, err := build(ctx, cfg, slog.Default())
	if err != nil {
		return err
	}
	defer srv.close()

	if srv.subscriber != nil {
		// Short timeout so a missing broker does not block startup.
		connectCtx, connectCancel := context.WithTimeout(ctx, 5*time.Second)
		err = srv.subscriber.Connect(connectCtx)
		connectCancel()
		if err != nil {
			// HTTP reporting and /healthz keep working without the broker.
			slog.Warn("mqtt connection failed (continuing without mqtt)", "error", err)
		}
	}

	httpSrv := httpapi.NewServer(cfg, srv.handler, slog.Default())

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http listening", "addr", cfg.HTTPAddr)
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	slog.Info("http shutting down")
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	err = <-errCh
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return ctx.Err()
}

// build wires the store, its observers and the HTTP routes without starting
// any listener or broker connection.
func build(ctx context.Context, cfg config.Config, logger *slog.Logger) (*server, error) {
	srv := &server{}

	journal := repository.NewNopRepository()
	if cfg.JournalEnabled {
		conn, err := db.Open(cfg, logger)
		if err != nil {
			return nil, err
		}
		srv.db = conn
		applied, err := migrate.Run(ctx, conn)
		if err != nil {
			srv.close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		journal = repository.NewRepository(conn)
		entries, err := journal.Count(ctx)
		if err != nil {
			srv.close()
			return nil, fmt.Errorf("count journal entries: %w", err)
		}
		logger.Info("database ready", "migrationsApplied", len(applied), "journalEntries", entries)
	}

	if err := views.LoadTemplates(); err != nil {
		srv.close()
		return nil, fmt.Errorf("load templates: %w", err)
	}

	deps := httpapi.Deps{DB: srv.db}

	var observer service.Observer
	if cfg.MetricsEnabled {
		m := metrics.NewTelemetry()
		observer = m
		deps.Metrics = m.Handler()
	}

	srv.service = service.NewService(store.New(), journal, observer, logger)

	if cfg.MQTTEnabled {
		sub, err := mqtt.NewSubscriber(mqtt.Options{
			Broker:   cfg.MQTTBroker,
			Port:     cfg.MQTTPort,
			ClientID: cfg.MQTTClientID,
			Topic:    cfg.MQTTTopic,
		}, logger)
		if err != nil {
			srv.close()
			return nil, err
		}
		// Handler is set before Connect so messages right after SUBACK are not dropped.
		telemetry.RegisterMQTTHandler(sub, srv.service, logger)
		srv.subscriber = sub
		deps.MQTT = sub
	}

	mux := httpapi.NewMux(deps)
	telemetry.RegisterFeature(mux, srv.service, cfg.StreamHeartbeat)
	srv.handler = mux
	return srv, nil
}
