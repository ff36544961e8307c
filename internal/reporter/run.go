package reporter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"hkco-server/internal/mqtt"
)

func Run(ctx context.Context, cfg Config) error {
	slog.Info("initializing reporter",
		"transport", cfg.Transport,
		"url", cfg.URL,
		"interval", cfg.Interval,
		"location", cfg.Location,
		"retries", cfg.Retries,
		"mqtt_broker", cfg.MQTTBroker,
		"mqtt_port", cfg.MQTTPort,
		"mqtt_topic", cfg.MQTTTopic,
	)

	var sender Sender
	switch cfg.Transport {
	case TransportMQTT:
		publisher, err := mqtt.NewPublisher(mqtt.Options{
			Broker:   cfg.MQTTBroker,
			Port:     cfg.MQTTPort,
			ClientID: cfg.MQTTClientID,
			Topic:    cfg.MQTTTopic,
		}, slog.Default())
		if err != nil {
			return err
		}
		if err := publisher.Connect(ctx); err != nil {
			return fmt.Errorf("mqtt connect: %w", err)
		}
		defer publisher.Disconnect()
		sender = NewMQTTSender(publisher)
	default:
		sender = NewHTTPSender(nil, cfg.URL, cfg.Retries, cfg.RetryDelay, slog.Default())
	}

	sim := NewSimulator(cfg.Location, cfg.BaseTemperature, cfg.BaseHumidity, nil)
	loop(ctx, cfg.Interval, sim, sender, slog.Default())

	slog.Info("reporter shutting down")
	return ctx.Err()
}

// loop sends one report immediately and then one per interval until ctx ends.
// A failed report is logged and the next tick tries again.
func loop(ctx context.Context, interval time.Duration, sim *Simulator, sender Sender, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		sendOnce(ctx, sim, sender, logger)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func sendOnce(ctx context.Context, sim *Simulator, sender Sender, logger *slog.Logger) {
	report := sim.Next()
	payload, err := json.Marshal(report)
	if err != nil {
		logger.Error("encode report", "error", err)
		return
	}
	if err := sender.Send(ctx, payload); err != nil {
		if ctx.Err() != nil {
			return
		}
		logger.Error("report not delivered", "error", err)
		return
	}
	logger.Info("report sent",
		"temperature", report.Temperature,
		"humidity", report.Humidity,
		"location", report.Location,
	)
}
