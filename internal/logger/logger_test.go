package logger_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/caravelhq/caravel/internal/logger"
)

func TestContextRoundTrip(t *testing.T) {
	_, err := logger.FromContext(context.Background())
	assert.Error(t, err)

	lgr := zap.NewNop()
	ctx := logger.NewContext(context.Background(), lgr)
	got, err := logger.FromContext(ctx)
	require.NoError(t, err)
	assert.Same(t, lgr, got)
}

func TestMiddlewareAttachesLogger(t *testing.T) {
	var handled bool
	handler := logger.Middleware(zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handled = true
		_, err := logger.FromContext(r.Context())
		assert.NoError(t, err)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/establish", nil))
	assert.True(t, handled)
}

func TestNewLogsToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "caravel.log")
	lgr, err := logger.New(path)
	require.NoError(t, err)

	lgr.Info("transfer succeeded")
	require.NoError(t, lgr.Sync())

	assert.FileExists(t, path)
}
