package logging

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
	"gopkg.in/natefinch/lumberjack.v2"

	"hkco-server/internal/config"
)

// Options is the subset of configuration the logger needs; both binaries fill it in.
type Options struct {
	AppEnv string
	Level  slog.Level

	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

func OptionsFromConfig(cfg config.Config) Options {
	return Options{
		AppEnv:     cfg.AppEnv,
		Level:      cfg.LogLevel,
		File:       cfg.LogFile,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
		MaxAgeDays: cfg.LogMaxAgeDays,
	}
}

func New(opts Options, version string, appName string) *slog.Logger {
	return newWithWriter(os.Stdout, opts, version, appName)
}

func newWithWriter(stdout io.Writer, opts Options, version string, appName string) *slog.Logger {
	file := fileSink(opts)

	if version == "dev" {
		w := stdout
		if file != nil {
			w = io.MultiWriter(stdout, file)
		}
		h := tint.NewHandler(w, &tint.Options{
			Level:      opts.Level,
			AddSource:  true,
			TimeFormat: time.Kitchen,
			// Color codes would end up in the log file.
			NoColor: file != nil,
		})
		return slog.New(h).With("app", appName)
	}

	w := stdout
	if file != nil {
		w = io.MultiWriter(stdout, file)
	}
	h := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: opts.Level,
	})
	return slog.New(h).With(
		"app", appName,
		"version", version,
		"env", opts.AppEnv,
	)
}

func fileSink(opts Options) io.Writer {
	if opts.File == "" {
		return nil
	}
	return &lumberjack.Logger{
		Filename:   opts.File,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		MaxAge:     opts.MaxAgeDays,
		Compress:   true,
	}
}
