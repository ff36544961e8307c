package reporter

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"hkco-server/internal/config"
)

const (
	TransportHTTP = "http"
	TransportMQTT = "mqtt"
)

type Config struct {
	AppEnv   string
	LogLevel slog.Level
	LogFile  string

	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int

	Transport  string
	URL        string
	Interval   time.Duration
	Location   string
	Retries    int
	RetryDelay time.Duration

	BaseTemperature float64
	BaseHumidity    float64

	MQTTBroker   string
	MQTTPort     int
	MQTTClientID string
	MQTTTopic    string
}

func LoadFromEnv() (Config, error) {
	get := func(key, def string) string {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			return v
		}
		return def
	}

	appEnv := get("APP_ENV", "dev")
	switch appEnv {
	case "dev", "prod":
	default:
		return Config{}, fmt.Errorf("invalid APP_ENV %q (allowed: dev, prod)", appEnv)
	}

	level, err := config.ParseLogLevel(get("LOG_LEVEL", "info"))
	if err != nil {
		return Config{}, err
	}

	transport := strings.ToLower(get("REPORT_TRANSPORT", TransportHTTP))
	switch transport {
	case TransportHTTP, TransportMQTT:
	default:
		return Config{}, fmt.Errorf("invalid REPORT_TRANSPORT %q (allowed: http, mqtt)", transport)
	}

	interval, err := parsePositiveDuration("REPORT_INTERVAL", get("REPORT_INTERVAL", "60s"))
	if err != nil {
		return Config{}, err
	}
	retryDelay, err := parsePositiveDuration("REPORT_RETRY_DELAY", get("REPORT_RETRY_DELAY", "2s"))
	if err != nil {
		return Config{}, err
	}

	retriesStr := get("REPORT_RETRIES", "3")
	retries, err := strconv.Atoi(retriesStr)
	if err != nil {
		return Config{}, fmt.Errorf("invalid REPORT_RETRIES %q: %w", retriesStr, err)
	}
	if retries < 0 {
		return Config{}, fmt.Errorf("REPORT_RETRIES must be >= 0, got %d", retries)
	}

	baseTempStr := get("SIM_BASE_TEMPERATURE", "4.0")
	baseTemp, err := strconv.ParseFloat(baseTempStr, 64)
	if err != nil {
		return Config{}, fmt.Errorf("invalid SIM_BASE_TEMPERATURE %q: %w", baseTempStr, err)
	}
	baseHumStr := get("SIM_BASE_HUMIDITY", "85.0")
	baseHum, err := strconv.ParseFloat(baseHumStr, 64)
	if err != nil {
		return Config{}, fmt.Errorf("invalid SIM_BASE_HUMIDITY %q: %w", baseHumStr, err)
	}
	if baseHum < 0 || baseHum > 100 {
		return Config{}, fmt.Errorf("SIM_BASE_HUMIDITY must be within 0-100, got %v", baseHum)
	}

	logMaxSize, err := parseNonNegativeInt("LOG_MAX_SIZE_MB", get("LOG_MAX_SIZE_MB", "100"))
	if err != nil {
		return Config{}, err
	}
	logMaxBackups, err := parseNonNegativeInt("LOG_MAX_BACKUPS", get("LOG_MAX_BACKUPS", "3"))
	if err != nil {
		return Config{}, err
	}
	logMaxAge, err := parseNonNegativeInt("LOG_MAX_AGE_DAYS", get("LOG_MAX_AGE_DAYS", "28"))
	if err != nil {
		return Config{}, err
	}

	mqttPortStr := get("MQTT_PORT", "1883")
	mqttPort, err := strconv.Atoi(mqttPortStr)
	if err != nil {
		return Config{}, fmt.Errorf("invalid MQTT_PORT %q: %w", mqttPortStr, err)
	}

	return Config{
		AppEnv:          appEnv,
		LogLevel:        level,
		LogFile:         get("LOG_FILE", ""),
		LogMaxSizeMB:    logMaxSize,
		LogMaxBackups:   logMaxBackups,
		LogMaxAgeDays:   logMaxAge,
		Transport:       transport,
		URL:             get("REPORT_URL", "http://localhost:8080/api/temperature"),
		Interval:        interval,
		Location:        get("REPORT_LOCATION", "Cold Storage"),
		Retries:         retries,
		RetryDelay:      retryDelay,
		BaseTemperature: baseTemp,
		BaseHumidity:    baseHum,
		MQTTBroker:      get("MQTT_BROKER", "localhost"),
		MQTTPort:        mqttPort,
		MQTTClientID:    get("MQTT_CLIENT_ID", "hkco-reporter"),
		MQTTTopic:       get("MQTT_TOPIC", config.DefaultMQTTTopic),
	}, nil
}

func parsePositiveDuration(key, s string) (time.Duration, error) {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %v", key, d)
	}
	return d, nil
}

func parseNonNegativeInt(key, s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	if n < 0 {
		return 0, fmt.Errorf("%s must be >= 0, got %d", key, n)
	}
	return n, nil
}
