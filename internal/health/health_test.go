package health

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fangligamedev/OiiLike/internal/metrics"
	"github.com/fangligamedev/OiiLike/pkg/blackboard"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePinger struct {
	err error
}

func (f fakePinger) Ping(ctx context.Context) error {
	return f.err
}

func TestHealthCheck(t *testing.T) {
	tests := []struct {
		name       string
		pinger     Pinger
		wantStatus int
		wantBody   HealthResponse
	}{
		{
			name:       "no relay configured",
			wantStatus: http.StatusOK,
			wantBody:   HealthResponse{Status: "healthy", Redis: "disabled"},
		},
		{
			name:       "redis reachable",
			pinger:     fakePinger{},
			wantStatus: http.StatusOK,
			wantBody:   HealthResponse{Status: "healthy", Redis: "connected"},
		},
		{
			name:       "redis unreachable",
			pinger:     fakePinger{err: errors.New("connection refused")},
			wantStatus: http.StatusServiceUnavailable,
			wantBody:   HealthResponse{Status: "unhealthy", Redis: "disconnected", Error: "connection refused"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := NewServer(":0", blackboard.New(), tt.pinger, nil)

			rec := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

			var body HealthResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.wantBody, body)
		})
	}
}

func TestMethodNotAllowed(t *testing.T) {
	srv := NewServer(":0", blackboard.New(), nil, nil)

	for _, path := range []string{"/healthz", "/summary"} {
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, path, nil))
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code, path)
	}
}

func TestSummaryEndpoint(t *testing.T) {
	board := blackboard.New()
	require.NoError(t, board.Publish(context.Background(),
		blackboard.NewTask(blackboard.TaskKindReview, blackboard.AgentProducer, nil)))

	srv := NewServer(":0", board, nil, nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/summary", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var summary blackboard.Summary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.Equal(t, 1, summary.Tasks.Pending)
	assert.Equal(t, int64(1), summary.EventCount)
}

func TestServer_StartServesMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := metrics.New(registry)
	board := blackboard.New(blackboard.WithObserver(m))
	require.NoError(t, board.Publish(context.Background(),
		blackboard.NewTask(blackboard.TaskKindGenerateImage, blackboard.AgentVoidShaper, nil)))

	srv := NewServer("127.0.0.1:0", board, nil, registry)
	require.NoError(t, srv.Start())
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}()

	resp, err := http.Get("http://" + srv.Addr() + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `oiilike_blackboard_tasks_published_total{kind="generate_image"} 1`)
}

func TestServer_StartReportsBindFailure(t *testing.T) {
	first := NewServer("127.0.0.1:0", blackboard.New(), nil, nil)
	require.NoError(t, first.Start())
	defer first.Shutdown(context.Background())

	second := NewServer(first.Addr(), blackboard.New(), nil, nil)
	err := second.Start()
	assert.ErrorContains(t, err, "failed to listen")
}
