package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	AppEnv   string
	LogLevel slog.Level
	HTTPAddr string

	// LogFile, when set, receives a rotated copy of the JSON log stream.
	LogFile         string
	LogMaxSizeMB    int
	LogMaxBackups   int
	LogMaxAgeDays   int
	StreamHeartbeat time.Duration

	JournalEnabled        bool
	SQLiteDriver          string
	SQLiteDSN             string
	SQLitePath            string
	SQLiteMaxOpenConns    int
	SQLiteMaxIdleConns    int
	SQLiteConnMaxLifetime time.Duration
	SQLiteLogStatements   bool

	MQTTEnabled  bool
	MQTTBroker   string
	MQTTPort     int
	MQTTClientID string
	MQTTTopic    string

	MetricsEnabled bool
}

// fileConfig mirrors the environment keys so a YAML file can supply defaults.
type fileConfig struct {
	AppEnv          string `yaml:"app_env"`
	LogLevel        string `yaml:"log_level"`
	LogFile         string `yaml:"log_file"`
	LogMaxSizeMB    string `yaml:"log_max_size_mb"`
	LogMaxBackups   string `yaml:"log_max_backups"`
	LogMaxAgeDays   string `yaml:"log_max_age_days"`
	HTTPAddr        string `yaml:"http_addr"`
	StreamHeartbeat string `yaml:"stream_heartbeat"`

	JournalEnabled  string `yaml:"journal_enabled"`
	DBDriver        string `yaml:"db_driver"`
	SQLiteDSN       string `yaml:"sqlite_dsn"`
	SQLitePath      string `yaml:"sqlite_path"`
	MaxOpenConns    string `yaml:"db_max_open_conns"`
	MaxIdleConns    string `yaml:"db_max_idle_conns"`
	ConnMaxLifetime string `yaml:"db_conn_max_lifetime"`
	LogSQL          string `yaml:"db_log_sql"`

	MQTTEnabled  string `yaml:"mqtt_enabled"`
	MQTTBroker   string `yaml:"mqtt_broker"`
	MQTTPort     string `yaml:"mqtt_port"`
	MQTTClientID string `yaml:"mqtt_client_id"`
	MQTTTopic    string `yaml:"mqtt_topic"`

	MetricsEnabled string `yaml:"metrics_enabled"`
}

const DefaultMQTTTopic = "hkco/telemetry/temperature"

func LoadFromEnv() (Config, error) {
	fc, err := loadFile(strings.TrimSpace(os.Getenv("CONFIG_FILE")))
	if err != nil {
		return Config{}, err
	}
	get := func(key, fromFile, def string) string {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			return v
		}
		if v := strings.TrimSpace(fromFile); v != "" {
			return v
		}
		return def
	}

	appEnv := get("APP_ENV", fc.AppEnv, "dev")
	switch appEnv {
	case "dev", "prod":
	default:
		return Config{}, fmt.Errorf("invalid APP_ENV %q (allowed: dev, prod)", appEnv)
	}

	level, err := ParseLogLevel(get("LOG_LEVEL", fc.LogLevel, "info"))
	if err != nil {
		return Config{}, err
	}

	logFile := get("LOG_FILE", fc.LogFile, "")
	logMaxSize, err := parseInt("LOG_MAX_SIZE_MB", get("LOG_MAX_SIZE_MB", fc.LogMaxSizeMB, "100"))
	if err != nil {
		return Config{}, err
	}
	logMaxBackups, err := parseInt("LOG_MAX_BACKUPS", get("LOG_MAX_BACKUPS", fc.LogMaxBackups, "3"))
	if err != nil {
		return Config{}, err
	}
	logMaxAge, err := parseInt("LOG_MAX_AGE_DAYS", get("LOG_MAX_AGE_DAYS", fc.LogMaxAgeDays, "28"))
	if err != nil {
		return Config{}, err
	}

	httpAddr := get("HTTP_ADDR", fc.HTTPAddr, ":8080")

	heartbeatStr := get("STREAM_HEARTBEAT", fc.StreamHeartbeat, "15s")
	heartbeat, err := time.ParseDuration(heartbeatStr)
	if err != nil {
		return Config{}, fmt.Errorf("invalid STREAM_HEARTBEAT %q: %w", heartbeatStr, err)
	}
	if heartbeat <= 0 {
		return Config{}, fmt.Errorf("STREAM_HEARTBEAT must be positive, got %v", heartbeat)
	}

	journalEnabled, err := parseBool("JOURNAL_ENABLED", get("JOURNAL_ENABLED", fc.JournalEnabled, "true"))
	if err != nil {
		return Config{}, err
	}
	driver := get("DB_DRIVER", fc.DBDriver, "sqlite3")
	dsn := get("SQLITE_DSN", fc.SQLiteDSN, "")
	path := get("SQLITE_PATH", fc.SQLitePath, "../dev/sqlite/app.db")

	maxOpenConns, err := parseInt("DB_MAX_OPEN_CONNS", get("DB_MAX_OPEN_CONNS", fc.MaxOpenConns, "1"))
	if err != nil {
		return Config{}, err
	}
	maxIdleConns, err := parseInt("DB_MAX_IDLE_CONNS", get("DB_MAX_IDLE_CONNS", fc.MaxIdleConns, "1"))
	if err != nil {
		return Config{}, err
	}
	connMaxLifetimeStr := get("DB_CONN_MAX_LIFETIME", fc.ConnMaxLifetime, "0s")
	connMaxLifetime, err := time.ParseDuration(connMaxLifetimeStr)
	if err != nil {
		return Config{}, fmt.Errorf("invalid DB_CONN_MAX_LIFETIME %q: %w", connMaxLifetimeStr, err)
	}
	logSQL, err := parseBool("DB_LOG_SQL", get("DB_LOG_SQL", fc.LogSQL, "false"))
	if err != nil {
		return Config{}, err
	}

	mqttEnabled, err := parseBool("MQTT_ENABLED", get("MQTT_ENABLED", fc.MQTTEnabled, "true"))
	if err != nil {
		return Config{}, err
	}
	mqttBroker := get("MQTT_BROKER", fc.MQTTBroker, "localhost")
	mqttPort, err := parseInt("MQTT_PORT", get("MQTT_PORT", fc.MQTTPort, "1883"))
	if err != nil {
		return Config{}, err
	}
	mqttClientID := get("MQTT_CLIENT_ID", fc.MQTTClientID, "hkco-server")
	mqttTopic := get("MQTT_TOPIC", fc.MQTTTopic, DefaultMQTTTopic)

	metricsEnabled, err := parseBool("METRICS_ENABLED", get("METRICS_ENABLED", fc.MetricsEnabled, "true"))
	if err != nil {
		return Config{}, err
	}

	return Config{
		AppEnv:                appEnv,
		LogLevel:              level,
		HTTPAddr:              httpAddr,
		LogFile:               logFile,
		LogMaxSizeMB:          logMaxSize,
		LogMaxBackups:         logMaxBackups,
		LogMaxAgeDays:         logMaxAge,
		StreamHeartbeat:       heartbeat,
		JournalEnabled:        journalEnabled,
		SQLiteDriver:          driver,
		SQLiteDSN:             dsn,
		SQLitePath:            path,
		SQLiteMaxOpenConns:    maxOpenConns,
		SQLiteMaxIdleConns:    maxIdleConns,
		SQLiteConnMaxLifetime: connMaxLifetime,
		SQLiteLogStatements:   logSQL,
		MQTTEnabled:           mqttEnabled,
		MQTTBroker:            mqttBroker,
		MQTTPort:              mqttPort,
		MQTTClientID:          mqttClientID,
		MQTTTopic:             mqttTopic,
		MetricsEnabled:        metricsEnabled,
	}, nil
}

func loadFile(path string) (fileConfig, error) {
	var fc fileConfig
	if path == "" {
		return fc, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fc, fmt.Errorf("CONFIG_FILE %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fc, fmt.Errorf("CONFIG_FILE %q: parse yaml: %w", path, err)
	}
	return fc, nil
}

func parseInt(key, s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	return n, nil
}

func parseBool(key, s string) (bool, error) {
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	return b, nil
}

// ParseLogLevel is shared with the reporter binary.
func ParseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL %q (allowed: debug, info, warn, error)", s)
	}
}
