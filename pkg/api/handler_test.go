package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xmhha/tab-monitor/pkg/logger"
	"github.com/0xmhha/tab-monitor/pkg/notify"
	"github.com/0xmhha/tab-monitor/pkg/stats"
	"github.com/0xmhha/tab-monitor/pkg/tracker"
)

// fakeController is an in-memory Controller.
type fakeController struct {
	mu       sync.Mutex
	report   stats.Report
	err      error
	calls    []string
	bridge   *notify.Bridge
	subbed   chan struct{}
	subOnce  sync.Once
	blocking bool
}

func newFakeController() *fakeController {
	return &fakeController{
		report: stats.Report{
			IsTracking: true,
			TopDomains: []stats.DomainView{{Domain: "github.com", TotalTimeMS: 60000, Visits: 2}},
		},
		bridge: notify.NewBridge(notify.Config{}, logger.Noop()),
		subbed: make(chan struct{}),
	}
}

func (f *fakeController) record(call string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	return f.err
}

func (f *fakeController) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string{}, f.calls...)
}

func (f *fakeController) GetStats(ctx context.Context) (stats.Report, error) {
	if f.blocking {
		<-ctx.Done()
		return stats.Report{}, tracker.ErrEngineUnavailable
	}
	if err := f.record("stats"); err != nil {
		return stats.Report{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.report, nil
}

func (f *fakeController) StartTracking(context.Context) error {
	if err := f.record("start"); err != nil {
		return err
	}
	f.mu.Lock()
	f.report.IsTracking = true
	f.mu.Unlock()
	return nil
}

func (f *fakeController) PauseTracking(context.Context) error {
	if err := f.record("pause"); err != nil {
		return err
	}
	f.mu.Lock()
	f.report.IsTracking = false
	f.mu.Unlock()
	return nil
}

func (f *fakeController) ResetData(context.Context) error {
	if err := f.record("reset"); err != nil {
		return err
	}
	f.mu.Lock()
	f.report.TopDomains = []stats.DomainView{}
	f.mu.Unlock()
	return nil
}

func (f *fakeController) Subscribe() *notify.Subscription {
	sub := f.bridge.Subscribe()
	f.subOnce.Do(func() { close(f.subbed) })
	return sub
}

func (f *fakeController) Unsubscribe(id string) {
	f.bridge.Unsubscribe(id)
}

func newTestHandler(ctl Controller) http.Handler {
	return NewHandler(ctl, 0, logger.Noop()).Routes()
}

func TestHandler_Stats(t *testing.T) {
	ctl := newFakeController()

	req := httptest.NewRequest(http.MethodGet, "/api/stats", http.NoBody)
	w := httptest.NewRecorder()
	newTestHandler(ctl).ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var resp stats.Report
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.IsTracking)
	require.Len(t, resp.TopDomains, 1)
	assert.Equal(t, "github.com", resp.TopDomains[0].Domain)
}

func TestHandler_Control(t *testing.T) {
	tests := []struct {
		path  string
		call  string
		check func(t *testing.T, r stats.Report)
	}{
		{"/api/tracking/pause", "pause", func(t *testing.T, r stats.Report) { assert.False(t, r.IsTracking) }},
		{"/api/tracking/start", "start", func(t *testing.T, r stats.Report) { assert.True(t, r.IsTracking) }},
		{"/api/reset", "reset", func(t *testing.T, r stats.Report) { assert.Empty(t, r.TopDomains) }},
	}

	for _, tt := range tests {
		t.Run(tt.call, func(t *testing.T) {
			ctl := newFakeController()

			req := httptest.NewRequest(http.MethodPost, tt.path, http.NoBody)
			w := httptest.NewRecorder()
			newTestHandler(ctl).ServeHTTP(w, req)

			require.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, []string{tt.call, "stats"}, ctl.Calls())

			var resp stats.Report
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			tt.check(t, resp)
		})
	}
}

func TestHandler_MethodNotAllowed(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/reset", http.NoBody)
	w := httptest.NewRecorder()
	newTestHandler(newFakeController()).ServeHTTP(w, req)

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestHandler_Errors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"unavailable", tracker.ErrEngineUnavailable, http.StatusServiceUnavailable},
		{"closed", tracker.ErrEngineClosed, http.StatusServiceUnavailable},
		{"other", assert.AnError, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctl := newFakeController()
			ctl.err = tt.err

			req := httptest.NewRequest(http.MethodPost, "/api/reset", http.NoBody)
			w := httptest.NewRecorder()
			newTestHandler(ctl).ServeHTTP(w, req)

			require.Equal(t, tt.status, w.Code)

			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tt.err.Error(), resp.Error)
		})
	}
}

func TestHandler_Health(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/health", http.NoBody)
	w := httptest.NewRecorder()
	newTestHandler(newFakeController()).ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestServer_Lifecycle(t *testing.T) {
	_, err := NewServer(ServerConfig{Addr: "127.0.0.1:0"}, logger.Noop())
	assert.ErrorIs(t, err, ErrMissingController)

	ctl := newFakeController()
	srv, err := NewServer(ServerConfig{Addr: "127.0.0.1:0", Controller: ctl}, logger.Noop())
	require.NoError(t, err)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	client := NewClient(ClientConfig{Addr: srv.Addr(), Timeout: time.Second}, logger.Noop())
	report, err := client.GetStats(context.Background())
	require.NoError(t, err)
	assert.True(t, report.IsTracking)

	// An open event stream must not hold up shutdown.
	streamDone := make(chan error, 1)
	go func() {
		streamDone <- client.Stream(context.Background(), func(StreamMessage) {})
	}()
	select {
	case <-ctl.subbed:
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not subscribe")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, srv.Stop(ctx))
	assert.NoError(t, <-errCh)

	select {
	case <-streamDone:
	case <-time.After(2 * time.Second):
		t.Fatal("stream not closed on shutdown")
	}
}
