// Package logger provides a convenience function to constructing a logger
// for use in the chain node services.
package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// New constructs a Sugared Logger that writes to stdout and provides
// machine readable timestamps in UTC.
func New(service string) (*zap.SugaredLogger, error) {
	return NewWithFile(service, "")
}

// NewWithFile constructs a Sugared Logger the same way New does, but also
// tees output to a rotating log file at logFile when logFile is non-empty.
// Rotation is handled by lumberjack so the service can run unattended.
func NewWithFile(service string, logFile string) (*zap.SugaredLogger, error) {
	config := zap.NewProductionConfig()
	config.OutputPaths = []string{"stdout"}
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	core, err := config.Build()
	if err != nil {
		return nil, err
	}

	if logFile != "" {
		rotator := &lumberjack.Logger{
			Filename:   logFile,
			MaxSize:    100,
			MaxBackups: 5,
			MaxAge:     30,
			Compress:   true,
		}

		fileCore := zapcore.NewCore(
			zapcore.NewJSONEncoder(config.EncoderConfig),
			zapcore.AddSync(rotator),
			config.Level,
		)

		core = core.WithOptions(zap.WrapCore(func(c zapcore.Core) zapcore.Core {
			return zapcore.NewTee(c, fileCore)
		}))
	}

	log := core.With(zap.String("service", service))

	return log.Sugar(), nil
}
