package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a zap logger. "release" gives the JSON production logger; any
// other mode gives the development console logger with colored levels.
func New(mode string) (*zap.Logger, error) {
	var config zap.Config

	if mode == "release" {
		config = zap.NewProductionConfig()
	} else {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	return config.Build()
}

// Sync flushes l, ignoring the error stdout/stderr report on some platforms
func Sync(l *zap.Logger) {
	if l != nil {
		_ = l.Sync()
	}
}
