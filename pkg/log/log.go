// Package log wires a logrus logger into dlib's context-scoped dlog API,
// the same two-step setup the teacher uses in cmd/traffic/logger.go.
package log

import (
	"context"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/datawire/dlib/dlog"
)

// WithLogger builds the base logger from OUTPOST_LOG_LEVEL (default info)
// and attaches it to ctx.
func WithLogger(ctx context.Context) context.Context {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05.0000",
	})
	logger.SetLevel(parseLevel(os.Getenv("OUTPOST_LOG_LEVEL")))

	wrapped := dlog.WrapLogrus(logger)
	dlog.SetFallbackLogger(wrapped)
	return dlog.WithLogger(ctx, wrapped)
}

func parseLevel(raw string) logrus.Level {
	level, err := logrus.ParseLevel(strings.ToLower(raw))
	if err != nil {
		return logrus.InfoLevel
	}
	return level
}
