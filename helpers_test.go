package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"vidgrab/cmd"
	"vidgrab/config"
	"vidgrab/services"
	"vidgrab/types"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

// fakeEngine stands in for yt-dlp. Downloads block until released when gated.
type fakeEngine struct {
	mu      sync.Mutex
	gate    chan struct{}
	failing map[string]string
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{failing: make(map[string]string)}
}

// Hold makes future downloads wait until Release is called
func (e *fakeEngine) Hold() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.gate = make(chan struct{})
}

// Release lets held downloads finish
func (e *fakeEngine) Release() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.gate != nil {
		close(e.gate)
		e.gate = nil
	}
}

// FailURL makes downloads of url fail with message
func (e *fakeEngine) FailURL(url, message string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.failing[url] = message
}

func (e *fakeEngine) Retrieve(ctx context.Context, sourceURL, outputTemplate string, onProgress services.ProgressFunc) (string, error) {
	e.mu.Lock()
	gate := e.gate
	failure, fails := e.failing[sourceURL]
	e.mu.Unlock()

	onProgress(services.ProgressEvent{Phase: services.PhaseDownloading, Percent: 10, Speed: "1.5MB/s"})
	if gate != nil {
		<-gate
	}
	if fails {
		return "", errorString(failure)
	}

	path := strings.NewReplacer("%(title)s", "Sample_Video", "%(ext)s", "mp4").Replace(outputTemplate)
	if err := os.WriteFile(path, sampleVideo, 0644); err != nil {
		return "", err
	}
	onProgress(services.ProgressEvent{Phase: services.PhaseFinished, Percent: 100})
	return path, nil
}

type errorString string

func (e errorString) Error() string { return string(e) }

var sampleVideo = []byte("fake video payload")

// TestHelper provides utilities for testing the vidgrab server
type TestHelper struct {
	Server      *httptest.Server
	App         *cmd.Server
	Engine      *fakeEngine
	DownloadDir string
}

// NewTestHelper starts a server backed by the fake engine
func NewTestHelper(t *testing.T, cleanupDelay time.Duration) *TestHelper {
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		DownloadDir:   t.TempDir(),
		Port:          0,
		CleanupDelay:  cleanupDelay,
		SubjectPrefix: config.DefaultSubjectPrefix,
	}

	engine := newFakeEngine()
	app, err := cmd.NewServer(cfg, engine)
	require.NoError(t, err)

	return &TestHelper{
		Server:      httptest.NewServer(app.Router),
		App:         app,
		Engine:      engine,
		DownloadDir: cfg.DownloadDir,
	}
}

// Cleanup releases held downloads and stops the server
func (h *TestHelper) Cleanup(t *testing.T) {
	h.Engine.Release()
	h.App.Worker.Wait()
	h.Server.Close()
	h.App.Close()
}

// MakeRequest makes an HTTP request to the test server
func (h *TestHelper) MakeRequest(t *testing.T, method, path string, body interface{}) *http.Response {
	var reqBody io.Reader
	if body != nil {
		switch b := body.(type) {
		case string:
			reqBody = strings.NewReader(b)
		default:
			jsonBody, err := json.Marshal(b)
			require.NoError(t, err)
			reqBody = bytes.NewBuffer(jsonBody)
		}
	}

	req, err := http.NewRequest(method, h.Server.URL+path, reqBody)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

// GetJSON makes a GET request and unmarshals the JSON response
func (h *TestHelper) GetJSON(t *testing.T, path string, target interface{}) *http.Response {
	return h.doJSON(t, http.MethodGet, path, nil, target)
}

// PostJSON makes a POST request with a JSON body and unmarshals the JSON response
func (h *TestHelper) PostJSON(t *testing.T, path string, requestBody interface{}, target interface{}) *http.Response {
	return h.doJSON(t, http.MethodPost, path, requestBody, target)
}

func (h *TestHelper) doJSON(t *testing.T, method, path string, requestBody, target interface{}) *http.Response {
	resp := h.MakeRequest(t, method, path, requestBody)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	if target != nil {
		require.NoError(t, json.Unmarshal(body, target), "body: %s", body)
	}
	return resp
}

// Submit requests a download and returns the new video id
func (h *TestHelper) Submit(t *testing.T, url string) types.DownloadResponse {
	var response types.DownloadResponse
	resp := h.PostJSON(t, "/video/request-download", types.DownloadRequest{URL: url}, &response)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	require.NotEmpty(t, response.VideoID)
	return response
}

// WaitForStatus polls until the job reaches a terminal status
func (h *TestHelper) WaitForStatus(t *testing.T, videoID string, timeout time.Duration) types.StatusResponse {
	deadline := time.Now().Add(timeout)

	for time.Now().Before(deadline) {
		var response types.StatusResponse
		resp := h.GetJSON(t, "/video/"+videoID, &response)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		if response.Status.IsTerminal() {
			return response
		}
		time.Sleep(20 * time.Millisecond)
	}

	t.Fatalf("Video %s did not finish within %s", videoID, timeout)
	return types.StatusResponse{}
}

// ConnectWebSocket connects to a WebSocket endpoint
func (h *TestHelper) ConnectWebSocket(t *testing.T, path string) *websocket.Conn {
	wsURL := "ws" + strings.TrimPrefix(h.Server.URL, "http") + path

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	return conn
}
