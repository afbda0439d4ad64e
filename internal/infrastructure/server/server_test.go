package server

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/filemanager/internal/api/middleware"
	"github.com/GriffinCanCode/filemanager/internal/infrastructure/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	base := t.TempDir()
	cfg := config.Default()
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = "0"
	cfg.Server.ShutdownTimeout = config.Duration(2 * time.Second)
	cfg.Logging.Level = "error"
	cfg.Storage.FileRoot = filepath.Join(base, "files")
	cfg.Storage.ThumbnailRoot = filepath.Join(base, "thumbs")
	return cfg
}

func TestNew(t *testing.T) {
	srv, err := New(testConfig(t))
	require.NoError(t, err)

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/filemanager?mode=readfolder&path=/", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"data":[]}`, w.Body.String())
	assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader))
}

func TestRateLimitScope(t *testing.T) {
	send := func(srv *Server, addr string) int {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.RemoteAddr = addr
		w := httptest.NewRecorder()
		srv.Handler().ServeHTTP(w, req)
		return w.Code
	}

	t.Run("per client", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.RateLimit.RequestsPerSecond = 1
		cfg.RateLimit.Burst = 1
		srv, err := New(cfg)
		require.NoError(t, err)

		assert.Equal(t, http.StatusOK, send(srv, "10.0.0.1:1000"))
		assert.Equal(t, http.StatusOK, send(srv, "10.0.0.2:1000"))
		assert.Equal(t, http.StatusTooManyRequests, send(srv, "10.0.0.1:1001"))
	})

	t.Run("global", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.RateLimit.RequestsPerSecond = 1
		cfg.RateLimit.Burst = 1
		cfg.RateLimit.Global = true
		srv, err := New(cfg)
		require.NoError(t, err)

		assert.Equal(t, http.StatusOK, send(srv, "10.0.0.1:1000"))
		assert.Equal(t, http.StatusTooManyRequests, send(srv, "10.0.0.2:1000"))
	})
}

func TestNewRejectsSharedRoots(t *testing.T) {
	cfg := testConfig(t)
	cfg.Storage.ThumbnailRoot = cfg.Storage.FileRoot

	_, err := New(cfg)
	assert.Error(t, err)
}

func TestServeShutsDownOnCancel(t *testing.T) {
	srv, err := New(testConfig(t))
	require.NoError(t, err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/health")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "healthy")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
