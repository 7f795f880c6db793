package api

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maltedev/amazon-rank-tracker/internal/queue"
)

func newTestHandlers(q queue.Queue) *Handlers {
	return NewHandlers(q, nil, slog.Default())
}

func TestCreateRunQueuesJob(t *testing.T) {
	q := queue.NewInMemoryQueue()
	h := newTestHandlers(q)

	body := `{"targets": [
		{"keyword": "wireless earbuds", "asins": ["B001ABC123", "b002def456"]},
		{"keyword": "usb hub", "asins": ["B003GHI789"]}
	]}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/runs", strings.NewReader(body))
	rec := httptest.NewRecorder()

	h.CreateRun(rec, req)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"queued"`)
	require.Equal(t, 1, q.Size())

	job, err := q.Pop(context.Background())
	require.NoError(t, err)
	require.Len(t, job.Targets, 2)
	assert.Equal(t, "wireless earbuds", job.Targets[0].Keyword)
	// ASINs are normalized on the way in.
	assert.Contains(t, job.Targets[0].ASINs, "B002DEF456")
}

func TestCreateRunRejectsEmptyTargets(t *testing.T) {
	h := newTestHandlers(queue.NewInMemoryQueue())

	tests := []struct {
		name string
		body string
	}{
		{"no targets", `{"targets": []}`},
		{"keyword without asins", `{"targets": [{"keyword": "usb hub", "asins": []}]}`},
		{"asins without keyword", `{"targets": [{"keyword": "", "asins": ["B001ABC123"]}]}`},
		{"malformed json", `{"targets": `},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/runs", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()

			h.CreateRun(rec, req)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestCreateRunClosedQueue(t *testing.T) {
	q := queue.NewInMemoryQueue()
	require.NoError(t, q.Close())
	h := newTestHandlers(q)

	body := `{"targets": [{"keyword": "usb hub", "asins": ["B001ABC123"]}]}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/runs", strings.NewReader(body))
	rec := httptest.NewRecorder()

	h.CreateRun(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestGetRunInvalidID(t *testing.T) {
	h := newTestHandlers(queue.NewInMemoryQueue())

	r := chi.NewRouter()
	r.Get("/api/v1/runs/{runID}", h.GetRun)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/runs/not-a-uuid", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
