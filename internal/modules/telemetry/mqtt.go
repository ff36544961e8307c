package telemetry

import (
	"context"
	"log/slog"

	"hkco-server/internal/modules/telemetry/service"
	"hkco-server/internal/modules/telemetry/types"
	"hkco-server/internal/mqtt"
)

// RegisterMQTTHandler applies every message on the telemetry topic as a report.
func RegisterMQTTHandler(subscriber mqtt.MQTTSubscriber, svc *service.Service, logger *slog.Logger) {
	subscriber.SetMessageHandler(func(topic string, payload []byte) error {
		reading, err := svc.ReportPayload(context.Background(), types.SourceMQTT, payload)
		if err != nil {
			return err
		}
		logger.Debug("applied mqtt report",
			"topic", topic,
			"temperature", reading.Temperature,
			"humidity", reading.Humidity,
			"location", reading.Location,
		)
		return nil
	})
}
