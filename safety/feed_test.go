package safety_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/fleetmaint/navigation/navierr"
	"github.com/fleetmaint/navigation/safety"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryCache struct {
	records []safety.SafetyDataPoint
	saved   int
	err     error
}

func (c *memoryCache) SaveRecords(_ context.Context, records []safety.SafetyDataPoint) error {
	c.records = records
	c.saved++
	return nil
}

func (c *memoryCache) LoadRecords(context.Context) ([]safety.SafetyDataPoint, error) {
	if c.err != nil {
		return nil, c.err
	}
	if c.records == nil {
		return nil, safety.ErrCacheMiss
	}
	return c.records, nil
}

func feedServer(t *testing.T, status int, body string) *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.URL.Query().Get("apikey"))
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestAPIClientLoad(t *testing.T) {
	srv := feedServer(t, http.StatusOK, `{"result":[
		{"id":"1","majorCategory":"ACCIDENT_PRONE_AREA","x":127.0,"y":37.5},
		{"id":2},
		{"id":"3","majorCategory":"ICY_ROAD","geometry":"POINT(127 37)"}
	]}`)
	records, err := safety.NewAPIClient(srv.URL, "secret").Load(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "1", records[0].ID)
	assert.Equal(t, 127.0, *records[0].X)
	assert.Equal(t, "POINT(127 37)", records[1].Geometry)
}

func TestAPIClientErrors(t *testing.T) {
	_, err := safety.NewAPIClient("http://127.0.0.1:1", "").Load(context.Background())
	assert.Equal(t, navierr.CodeMissingAPIKey, navierr.CodeOf(err))

	srv := feedServer(t, http.StatusOK, `{"error":"quota exceeded"}`)
	_, err = safety.NewAPIClient(srv.URL, "secret").Load(context.Background())
	assert.ErrorContains(t, err, "quota exceeded")
}

func TestLoadRecordsRefreshesBackup(t *testing.T) {
	srv := feedServer(t, http.StatusOK, `{"result":[{"id":"1","majorCategory":"ACCIDENT_PRONE_AREA","x":127.0,"y":37.5}]}`)
	cache := &memoryCache{}
	records, err := safety.LoadRecords(context.Background(), safety.NewAPIClient(srv.URL, "secret"), cache)
	require.NoError(t, err)
	assert.Len(t, records, 1)
	assert.Equal(t, 1, cache.saved)
	assert.Equal(t, records, cache.records)
}

func TestLoadRecordsFallback(t *testing.T) {
	srv := feedServer(t, http.StatusBadGateway, ``)
	cache := &memoryCache{records: []safety.SafetyDataPoint{{ID: "cached"}}}
	records, err := safety.LoadRecords(context.Background(), safety.NewAPIClient(srv.URL, "secret"), cache)
	require.NoError(t, err)
	assert.Equal(t, "cached", records[0].ID)
	assert.Zero(t, cache.saved)

	cache = &memoryCache{err: errors.New("redis down")}
	_, err = safety.LoadRecords(context.Background(), safety.NewAPIClient(srv.URL, "secret"), cache)
	assert.Equal(t, navierr.CodeFeedUnavailable, navierr.CodeOf(err))
	assert.ErrorContains(t, err, "redis down")

	_, err = safety.LoadRecords(context.Background(), safety.NewAPIClient(srv.URL, "secret"), nil)
	assert.Equal(t, navierr.CodeFeedUnavailable, navierr.CodeOf(err))
}

func TestLoadRecordsMissingKeySkipsBackup(t *testing.T) {
	cache := &memoryCache{records: []safety.SafetyDataPoint{{ID: "cached"}}}
	_, err := safety.LoadRecords(context.Background(), safety.NewAPIClient("http://127.0.0.1:1", ""), cache)
	assert.Equal(t, navierr.CodeMissingAPIKey, navierr.CodeOf(err))
}

func TestFileLoader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "safety.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"id":"a","majorCategory":"ACCIDENT_PRONE_AREA","geometry":"POINT(127 37)"}]`), 0o644))
	records, err := safety.FileLoader{Path: path}.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "a", records[0].ID)

	_, err = safety.FileLoader{Path: filepath.Join(t.TempDir(), "missing.json")}.Load(context.Background())
	assert.Error(t, err)
}
