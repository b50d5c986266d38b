package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dashcast/dashcast/internal/manager"
)

type stallFetcher struct{}

func (stallFetcher) Fetch(_ context.Context, url string, _ map[string]string) ([]byte, error) {
	return nil, fmt.Errorf("stall fetcher: %s unreachable", url)
}

func newTestServer(t *testing.T) (*httptest.Server, *manager.Manager, string) {
	t.Helper()
	baseDir := t.TempDir()
	mgr := manager.New(baseDir, stallFetcher{}, nil, "mp4decrypt", 16)
	srv := New(Config{
		Host:            "127.0.0.1",
		Port:            0,
		ReadTimeout:     5 * time.Second,
		WriteTimeout:    5 * time.Second,
		ShutdownTimeout: time.Second,
	}, mgr, nil, "test")
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts, mgr, baseDir
}

func TestServer_AddListGetRemoveStream(t *testing.T) {
	ts, _, _ := newTestServer(t)

	addBody := strings.NewReader(`{"mpd_url":"https://example.com/live.mpd"}`)
	resp, err := http.Post(ts.URL+"/streams", "application/json", addBody)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var added struct {
		StreamID string `json:"stream_id"`
		HLSURL   string `json:"hls_url"`
		Status   string `json:"status"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&added))
	require.NotEmpty(t, added.StreamID)
	assert.Equal(t, "/hls/"+added.StreamID+"/master.m3u8", added.HLSURL)

	getResp, err := http.Get(ts.URL + "/streams/" + added.StreamID)
	require.NoError(t, err)
	defer getResp.Body.Close()
	assert.Equal(t, http.StatusOK, getResp.StatusCode)

	listResp, err := http.Get(ts.URL + "/streams")
	require.NoError(t, err)
	defer listResp.Body.Close()
	var list struct {
		Streams []struct {
			ID string `json:"stream_id"`
		} `json:"streams"`
	}
	require.NoError(t, json.NewDecoder(listResp.Body).Decode(&list))
	assert.Len(t, list.Streams, 1)

	req, err := http.NewRequest(http.MethodDelete, ts.URL+"/streams/"+added.StreamID, nil)
	require.NoError(t, err)
	delResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer delResp.Body.Close()
	assert.Equal(t, http.StatusOK, delResp.StatusCode)

	notFoundResp, err := http.Get(ts.URL + "/streams/" + added.StreamID)
	require.NoError(t, err)
	defer notFoundResp.Body.Close()
	assert.Equal(t, http.StatusNotFound, notFoundResp.StatusCode)
}

func TestServer_RemoveUnknownStreamReturns404(t *testing.T) {
	ts, _, _ := newTestServer(t)

	req, err := http.NewRequest(http.MethodDelete, ts.URL+"/streams/does-not-exist", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServer_AddStreamRejectsMissingMPDURL(t *testing.T) {
	ts, _, _ := newTestServer(t)

	resp, err := http.Post(ts.URL+"/streams", "application/json", strings.NewReader(`{}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.GreaterOrEqual(t, resp.StatusCode, http.StatusBadRequest)
}

func TestServer_ServesFilesUnderOutputDirAndRejectsEscapes(t *testing.T) {
	ts, mgr, baseDir := newTestServer(t)

	addResp, err := http.Post(ts.URL+"/streams", "application/json", strings.NewReader(`{"mpd_url":"https://example.com/live.mpd"}`))
	require.NoError(t, err)
	defer addResp.Body.Close()
	var added struct {
		StreamID string `json:"stream_id"`
	}
	require.NoError(t, json.NewDecoder(addResp.Body).Decode(&added))

	outDir := filepath.Join(baseDir, added.StreamID)
	require.NoError(t, os.MkdirAll(outDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(outDir, "master.m3u8"), []byte("#EXTM3U\n"), 0o644))

	fileResp, err := http.Get(ts.URL + "/hls/" + added.StreamID + "/master.m3u8")
	require.NoError(t, err)
	defer fileResp.Body.Close()
	assert.Equal(t, http.StatusOK, fileResp.StatusCode)
	assert.Equal(t, "application/vnd.apple.mpegurl", fileResp.Header.Get("Content-Type"))

	missingResp, err := http.Get(ts.URL + "/hls/" + added.StreamID + "/does-not-exist.m3u8")
	require.NoError(t, err)
	defer missingResp.Body.Close()
	assert.Equal(t, http.StatusNotFound, missingResp.StatusCode)

	unknownStreamResp, err := http.Get(ts.URL + "/hls/nonexistent-stream/master.m3u8")
	require.NoError(t, err)
	defer unknownStreamResp.Body.Close()
	assert.Equal(t, http.StatusNotFound, unknownStreamResp.StatusCode)

	sandbox, ok := mgr.Sandbox(added.StreamID)
	require.True(t, ok)
	_, err = sandbox.ResolvePath("../../etc/passwd")
	assert.Error(t, err, "the session sandbox must reject paths that resolve outside its root")

	mgr.Shutdown()
}
