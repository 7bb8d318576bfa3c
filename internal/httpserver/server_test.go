package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PratikDhanave/eventlog-export-service/internal/config"
	"github.com/PratikDhanave/eventlog-export-service/internal/export"
	"github.com/PratikDhanave/eventlog-export-service/internal/models"
	"github.com/PratikDhanave/eventlog-export-service/internal/store"
)

var serverCfg = config.ServerConfig{
	Port: 8080,
	APIKeys: map[string][]string{
		"ops-key": {"*"},
		"erp-key": {"ERP"},
	},
}

func newSession(t *testing.T) *export.Session {
	t.Helper()
	path := filepath.Join(t.TempDir(), "export.db")
	s, err := export.Open(context.Background(), func(ctx context.Context) (store.Backend, error) {
		return store.NewSQLiteStore(ctx, path)
	}, nil, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func do(r http.Handler, path, key string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if key != "" {
		req.Header.Set("X-API-Key", key)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestPublicEndpoints(t *testing.T) {
	r := NewRouter(serverCfg, newSession(t))

	w := do(r, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(r, "/ready", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ready"}`, w.Body.String())

	w = do(r, "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "go_goroutines"))
}

type downBackend struct{ Backend }

func (downBackend) Ping(context.Context) error { return errors.New("dial tcp: connection refused") }

func TestReady_StoreDown(t *testing.T) {
	r := NewRouter(serverCfg, downBackend{})

	w := do(r, "/ready", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestSystemRoutes(t *testing.T) {
	s := newSession(t)
	ctx := context.Background()
	period := time.Date(2024, 5, 2, 8, 30, 0, 0, time.UTC)

	require.NoError(t, s.Write(ctx, "ERP", []models.SourceRecord{{RowID: 1, Period: period}}))
	_, err := s.SavePosition(ctx, "ERP", models.FileInfo{Name: "20240502.lgp"}, models.Position{
		EventNumber:     1,
		CurrentFileData: `C:\logs\20240502.lgp`,
		StreamPosition:  311,
	})
	require.NoError(t, err)

	r := NewRouter(serverCfg, s)

	t.Run("unauthenticated", func(t *testing.T) {
		assert.Equal(t, http.StatusUnauthorized, do(r, "/systems/ERP/position", "").Code)
	})

	t.Run("key scoped to another system", func(t *testing.T) {
		serverCfg := config.ServerConfig{APIKeys: map[string][]string{"hr-key": {"HR"}}}
		r := NewRouter(serverCfg, s)
		assert.Equal(t, http.StatusForbidden, do(r, "/systems/ERP/position", "hr-key").Code)
	})

	t.Run("position", func(t *testing.T) {
		w := do(r, "/systems/ERP/position", "erp-key")
		require.Equal(t, http.StatusOK, w.Code)

		var body struct {
			System   string          `json:"system"`
			Position models.Position `json:"position"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, "ERP", body.System)
		assert.Equal(t, models.Position{
			EventNumber:     1,
			CurrentFileData: `C:\logs\20240502.lgp`,
			StreamPosition:  311,
		}, body.Position)
	})

	t.Run("max period", func(t *testing.T) {
		w := do(r, "/systems/ERP/max-period", "ops-key")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"max_period":"2024-05-02T08:30:00Z"`)
	})

	t.Run("row exists", func(t *testing.T) {
		w := do(r, "/systems/ERP/rows/1/exists?period=2024-05-02T08:30:00Z", "erp-key")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"exists":true`)

		w = do(r, "/systems/ERP/rows/2/exists?period=2024-05-02T08:30:00Z", "erp-key")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"exists":false`)
	})

	t.Run("system without checkpoint", func(t *testing.T) {
		assert.Equal(t, http.StatusNotFound, do(r, "/systems/CRM/position", "ops-key").Code)
	})
}
