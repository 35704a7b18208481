package main

import (
	"go.uber.org/zap"

	"github.com/nilsc-dev/resp3pipe/conn"
)

// makeLogger builds the CLI's structured logger, per
// internal/env/make_logger.go's production-config pattern.
func makeLogger() (*zap.Logger, error) {
	logConfig := zap.NewProductionConfig()
	logConfig.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	logConfig.Encoding = "console"
	return logConfig.Build()
}

// zapConnLogger adapts conn.Logger onto a *zap.Logger, the way
// redisconn/logger.go's defaultLogger adapts onto log.Printf.
type zapConnLogger struct {
	log *zap.Logger
}

func (z zapConnLogger) Report(event conn.LogKind, c *conn.Connection, v ...interface{}) {
	fields := make([]zap.Field, 0, len(v)+1)
	fields = append(fields, zap.String("addr", c.Addr()))
	for i, val := range v {
		fields = append(fields, zap.Any(fieldName(i), val))
	}
	z.log.Info(event.String(), fields...)
}

func fieldName(i int) string {
	names := [...]string{"a", "b", "c"}
	if i < len(names) {
		return names[i]
	}
	return "extra"
}
