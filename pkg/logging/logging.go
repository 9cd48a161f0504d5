package logging

import (
	"github.com/canopy-network/govunlock/pkg/utils"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds the process logger from LOG_LEVEL and LOG_ENCODING. Every entry
// carries the component name.
func New(component string) (*zap.Logger, error) {
	cfg := Config(utils.Env("LOG_LEVEL", "info"), utils.Env("LOG_ENCODING", "json"))
	l, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	if component != "" {
		l = l.With(zap.String("component", component))
	}
	return l, nil
}

// Config maps a level name onto a production config. Unknown levels fall back to info.
func Config(level, encoding string) zap.Config {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = encoding

	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	if lvl == zapcore.DebugLevel {
		cfg.Development = true
		cfg.Sampling = nil
	}

	cfg.OutputPaths = []string{"stdout"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg
}
