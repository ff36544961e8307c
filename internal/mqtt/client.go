package mqtt

import (
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Options describes one broker connection and the telemetry topic it uses.
type Options struct {
	Broker   string
	Port     int
	ClientID string
	Topic    string
}

const qosAtLeastOnce = byte(1)

func (o Options) brokerURL() string {
	return fmt.Sprintf("tcp://%s:%d", o.Broker, o.Port)
}

// newClientOptions builds the paho options shared by subscriber and publisher.
func newClientOptions(o Options, logger *slog.Logger, onConnect func(), onLost func()) *mqtt.ClientOptions {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(o.brokerURL())
	opts.SetClientID(o.ClientID)

	// Session settings
	opts.SetCleanSession(true)

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(60 * time.Second)

	// Keepalive / timeouts
	opts.SetKeepAlive(30 * time.Second)
	opts.SetPingTimeout(10 * time.Second)

	// Callbacks keep internal state accurate
	opts.SetOnConnectHandler(func(_ mqtt.Client) {
		onConnect()
		logger.Info("mqtt connected", "broker", o.Broker, "port", o.Port, "client_id", o.ClientID)
	})

	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		onLost()
		logger.Warn("mqtt connection lost", "error", err)
	})
	return opts
}

// waitToken waits for a paho token, giving up after timeout.
func waitToken(token mqtt.Token, timeout time.Duration, what string) error {
	if !token.WaitTimeout(timeout) {
		return fmt.Errorf("%s: timeout after %s", what, timeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%s: %w", what, err)
	}
	return nil
}
