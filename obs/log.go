/*
Package obs builds the process logger and the Prometheus metrics recorder.

LOGGING:
  NewLogger returns a zap production logger: JSON (or console) output on
  stdout, ISO8601 "ts" field, level parsed from config. Services receive it
  and name themselves, e.g. log.Named("billing.generator").

METRICS:
  Metrics implements billing.Recorder on a dedicated registry, so tests can
  create as many as they like without clashing on the default registry.

SEE ALSO:
  - billing/engine.go: Recorder, WithLogger
  - api/server.go: /metrics
*/
package obs

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type LogConfig struct {
	Service string
	Level   string
	Format  string // json | console
}

// NewLogger builds a structured zap.Logger.
func NewLogger(cfg LogConfig) (*zap.Logger, error) {
	zapCfg := zap.NewProductionConfig()
	zapCfg.Encoding = normalizeFormat(cfg.Format)
	zapCfg.EncoderConfig.TimeKey = "ts"
	zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zapCfg.OutputPaths = []string{"stdout"}
	zapCfg.ErrorOutputPaths = []string{"stderr"}

	level := strings.TrimSpace(cfg.Level)
	if level == "" {
		level = "info"
	}
	if err := zapCfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	logger, err := zapCfg.Build(zap.AddStacktrace(zapcore.ErrorLevel))
	if err != nil {
		return nil, err
	}

	service := strings.TrimSpace(cfg.Service)
	if service == "" {
		service = "condo-ledger"
	}
	return logger.With(zap.String("service", service)), nil
}

func normalizeFormat(format string) string {
	if strings.ToLower(strings.TrimSpace(format)) == "console" {
		return "console"
	}
	return "json"
}
