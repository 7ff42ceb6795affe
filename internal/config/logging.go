package config

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds the engine's zap logger. level follows the CLI's
// --log-level convention: 0=error, 1=warn, 2=info, 3=debug. logToFile, when
// non-empty, sends all output to that path instead of stderr.
func NewLogger(level int, logToFile string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(levelFromInt(level))
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder

	if logToFile != "" {
		cfg.OutputPaths = []string{logToFile}
		cfg.ErrorOutputPaths = []string{logToFile}
	} else {
		cfg.OutputPaths = []string{"stderr"}
		cfg.ErrorOutputPaths = []string{"stderr"}
	}

	return cfg.Build()
}

func levelFromInt(level int) zapcore.Level {
	switch {
	case level <= 0:
		return zapcore.ErrorLevel
	case level == 1:
		return zapcore.WarnLevel
	case level == 2:
		return zapcore.InfoLevel
	default:
		return zapcore.DebugLevel
	}
}
