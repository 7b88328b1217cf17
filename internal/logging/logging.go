// Package logging builds the process logger. Output goes to stderr so
// stdout stays free for chat transcripts and the MCP stdio protocol.
package logging

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/ziadkadry99/medicrypt/internal/config"
)

// New returns a logger configured from cfg. verbose forces debug level.
func New(cfg config.LogConfig, verbose bool) *logrus.Logger {
	return NewWithWriter(os.Stderr, cfg, verbose)
}

// NewWithWriter is New with an explicit output.
func NewWithWriter(w io.Writer, cfg config.LogConfig, verbose bool) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(w)

	if strings.EqualFold(cfg.Format, "json") {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:          true,
			DisableLevelTruncation: true,
		})
	}

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	if verbose {
		level = logrus.DebugLevel
	}
	log.SetLevel(level)

	return log
}

// Discard returns a logger that drops everything.
func Discard() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

type ctxKey struct{}

// WithLogger stores l in ctx.
func WithLogger(ctx context.Context, l logrus.FieldLogger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext returns the logger stored in ctx, or the logrus standard
// logger.
func FromContext(ctx context.Context) logrus.FieldLogger {
	if l, ok := ctx.Value(ctxKey{}).(logrus.FieldLogger); ok && l != nil {
		return l
	}
	return logrus.StandardLogger()
}
