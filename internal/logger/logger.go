// Package logger builds the zap loggers used across caravel and threads
// them through request contexts.
package logger

import (
	"context"
	"errors"
	"net/http"

	"github.com/tomasen/realip"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type ctxKey struct{}

// NewContext returns a copy of ctx carrying lgr, retrievable with FromContext.
func NewContext(ctx context.Context, lgr *zap.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, lgr)
}

// FromContext retrieves the logger attached by NewContext or Middleware.
func FromContext(ctx context.Context) (*zap.Logger, error) {
	lgr, ok := ctx.Value(ctxKey{}).(*zap.Logger)
	if !ok {
		return nil, errors.New("no logger in context")
	}
	return lgr, nil
}

// Middleware attaches a request-scoped logger, annotated with the client
// address and endpoint, to every request context.
func Middleware(base *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			lgr := base.With(
				zap.String("client_ip", realip.FromRequest(r)),
				zap.String("endpoint", r.URL.Path),
			)
			next.ServeHTTP(w, r.WithContext(NewContext(r.Context(), lgr)))
		})
	}
}

// New returns a production logger writing to the file at path, creating it
// if needed, so log output never interleaves with the terminal UI. An empty
// path logs to stderr.
func New(path string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.EncodeTime = zapcore.RFC3339NanoTimeEncoder
	if path != "" {
		cfg.OutputPaths = []string{path}
		cfg.ErrorOutputPaths = []string{path}
	}
	return cfg.Build()
}
