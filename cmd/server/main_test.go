package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"pong/internal/config"
)

func loadTestConfig(t *testing.T, redisAddr string) *config.Config {
	t.Helper()
	t.Setenv("DB_DRIVER", config.DriverSQLite)
	t.Setenv("SQLITE_PATH", filepath.Join(t.TempDir(), "pong.db"))
	t.Setenv("REDIS_ADDR", redisAddr)
	t.Setenv("GAME_CONFIG_FILE", "")

	cfg, err := config.Load()
	require.NoError(t, err)
	return cfg
}

func startApp(t *testing.T, cfg *config.Config) *app {
	t.Helper()
	a, err := newApp(cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { a.shutdown(context.Background()) })
	return a
}

func TestNewAppServesRoutesWithoutRedis(t *testing.T) {
	a := startApp(t, loadTestConfig(t, ""))
	assert.Nil(t, a.rdb)

	tests := []struct {
		name           string
		path           string
		expectedStatus int
	}{
		{name: "health", path: "/healthz", expectedStatus: http.StatusOK},
		{name: "rooms", path: "/api/v1/game/rooms", expectedStatus: http.StatusOK},
		{name: "history backed by sqlite", path: "/api/v1/game/history/alice", expectedStatus: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			a.server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
			assert.Equal(t, tt.expectedStatus, rec.Code)
		})
	}
}

func TestNewAppUsesRedisWhenReachable(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	a := startApp(t, loadTestConfig(t, mr.Addr()))
	assert.NotNil(t, a.rdb)
	assert.NotNil(t, a.redisMirror)

	rec := httptest.NewRecorder()
	a.server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestNewAppFallsBackWhenRedisIsDown(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	addr := mr.Addr()
	mr.Close()

	a := startApp(t, loadTestConfig(t, addr))
	assert.Nil(t, a.rdb)
	assert.Nil(t, a.redisMirror)
}
