package logger

import (
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const serviceName = "election-ledger"

// New builds a JSON logger. Unknown levels fall back to info; debug also
// disables sampling so that every ledger decision is kept.
func New(logLevel string) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(logLevel)
	if err != nil {
		level = zap.InfoLevel
	}

	config := zap.NewProductionConfig()
	config.Level = zap.NewAtomicLevelAt(level)
	config.EncoderConfig.TimeKey = "time"
	config.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout(time.DateTime)
	if level == zap.DebugLevel {
		config.Sampling = nil
	}

	return config.Build(zap.Fields(zap.String("service", serviceName)))
}
