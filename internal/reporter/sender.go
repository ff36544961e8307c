package reporter

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/google/uuid"
)

// Sender delivers one encoded report.
type Sender interface {
	Send(ctx context.Context, payload []byte) error
}

type HTTPSender struct {
	client  *http.Client
	url     string
	retries int
	delay   time.Duration
	logger  *slog.Logger
}

func NewHTTPSender(client *http.Client, url string, retries int, delay time.Duration, logger *slog.Logger) *HTTPSender {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPSender{client: client, url: url, retries: retries, delay: delay, logger: logger}
}

// Send POSTs the report, retrying transport errors and 5xx responses. A 4xx is
// final: the same body would be rejected again.
func (s *HTTPSender) Send(ctx context.Context, payload []byte) error {
	requestID := uuid.NewString()
	return retry.Do(
		func() error { return s.post(ctx, payload, requestID) },
		retry.Context(ctx),
		retry.Attempts(uint(s.retries+1)),
		retry.Delay(s.delay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(attempt uint, err error) {
			s.logger.Warn("report failed, retrying",
				"attempt", attempt+1,
				"url", s.url,
				"request_id", requestID,
				"error", err,
			)
		}),
	)
}

func (s *HTTPSender) post(ctx context.Context, payload []byte, requestID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(payload))
	if err != nil {
		return retry.Unrecoverable(fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", requestID)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("post report: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	switch {
	case resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return retry.Unrecoverable(fmt.Errorf("report rejected: %s", resp.Status))
	default:
		return fmt.Errorf("unexpected status: %s", resp.Status)
	}
}

// Publisher is the part of the MQTT publisher the reporter needs.
type Publisher interface {
	Publish(payload []byte) error
}

type MQTTSender struct {
	publisher Publisher
}

func NewMQTTSender(p Publisher) *MQTTSender {
	return &MQTTSender{publisher: p}
}

// Send publishes at QoS 1. Paho handles redelivery, so there is no retry here.
func (s *MQTTSender) Send(ctx context.Context, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.publisher.Publish(payload)
}
