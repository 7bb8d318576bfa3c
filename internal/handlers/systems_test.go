package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PratikDhanave/eventlog-export-service/internal/models"
)

type fakeReader struct {
	positions map[string]*models.Position
	periods   map[string]time.Time
	rows      map[int64]time.Time
	err       error

	gotSystem string
}

func (f *fakeReader) LastPosition(_ context.Context, system string) (*models.Position, error) {
	f.gotSystem = system
	return f.positions[system], f.err
}

func (f *fakeReader) MaxPersistedPeriod(_ context.Context, system string) (time.Time, error) {
	f.gotSystem = system
	if p, ok := f.periods[system]; ok {
		return p, f.err
	}
	return models.MinPeriod, f.err
}

func (f *fakeReader) Exists(_ context.Context, system string, rowID int64, period time.Time) (bool, error) {
	f.gotSystem = system
	p, ok := f.rows[rowID]
	return ok && p.Equal(period), f.err
}

func newRouter(rd SystemReader) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterSystemRoutes(r.Group("/systems/:system"), rd)
	return r
}

func get(t *testing.T, r http.Handler, path string) (int, map[string]any) {
	t.Helper()
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return w.Code, body
}

var stored = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

func TestPosition(t *testing.T) {
	rd := &fakeReader{positions: map[string]*models.Position{
		"ERP": {EventNumber: 42, CurrentFileData: `\\srv\logs\20240301.lgp`, StreamPosition: 1024},
	}}
	r := newRouter(rd)

	code, body := get(t, r, "/systems/ERP/position")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ERP", rd.gotSystem)
	pos := body["position"].(map[string]any)
	assert.Equal(t, float64(42), pos["event_number"])
	assert.Equal(t, `\\srv\logs\20240301.lgp`, pos["current_file_data"])

	code, _ = get(t, r, "/systems/HR/position")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestMaxPeriod(t *testing.T) {
	r := newRouter(&fakeReader{periods: map[string]time.Time{"ERP": stored}})

	code, body := get(t, r, "/systems/ERP/max-period")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "2024-03-01T10:00:00Z", body["max_period"])
	assert.Equal(t, false, body["empty"])

	code, body = get(t, r, "/systems/HR/max-period")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "1970-01-01T00:00:00Z", body["max_period"])
	assert.Equal(t, true, body["empty"])
}

func TestRowExists(t *testing.T) {
	r := newRouter(&fakeReader{rows: map[int64]time.Time{7: stored}})

	tests := []struct {
		name   string
		path   string
		code   int
		exists any
	}{
		{name: "stored", path: "/systems/ERP/rows/7/exists?period=2024-03-01T10:00:00Z", code: http.StatusOK, exists: true},
		{name: "offset timestamp", path: "/systems/ERP/rows/7/exists?period=2024-03-01T13:00:00%2B03:00", code: http.StatusOK, exists: true},
		{name: "other period", path: "/systems/ERP/rows/7/exists?period=2024-03-01T10:00:01Z", code: http.StatusOK, exists: false},
		{name: "unknown row", path: "/systems/ERP/rows/8/exists?period=2024-03-01T10:00:00Z", code: http.StatusOK, exists: false},
		{name: "bad id", path: "/systems/ERP/rows/x/exists?period=2024-03-01T10:00:00Z", code: http.StatusBadRequest},
		{name: "missing period", path: "/systems/ERP/rows/7/exists", code: http.StatusBadRequest},
		{name: "bad period", path: "/systems/ERP/rows/7/exists?period=yesterday", code: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := get(t, r, tt.path)
			assert.Equal(t, tt.code, code)
			if tt.exists != nil {
				assert.Equal(t, tt.exists, body["exists"])
			}
		})
	}
}

func TestStoreFailure(t *testing.T) {
	r := newRouter(&fakeReader{err: errors.New("connection refused")})

	for _, path := range []string{
		"/systems/ERP/position",
		"/systems/ERP/max-period",
		"/systems/ERP/rows/1/exists?period=2024-03-01T10:00:00Z",
	} {
		code, body := get(t, r, path)
		assert.Equal(t, http.StatusInternalServerError, code, path)
		assert.NotContains(t, body["error"], "connection refused", "store errors are not leaked")
	}
}
