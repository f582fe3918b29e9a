package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nijaru/yt-catalog/errors"
	"github.com/nijaru/yt-catalog/middleware"
	"github.com/nijaru/yt-catalog/models"
	"github.com/nijaru/yt-catalog/repository/memory"
)

type fakeIngestion struct {
	startErr error
	starts   int
	state    models.IngestionState
}

func (f *fakeIngestion) Start(ctx context.Context) error {
	f.starts++
	return f.startErr
}

func (f *fakeIngestion) State() models.IngestionState { return f.state }

func quietLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func newTestServer(t *testing.T, ing Ingestion, repo *memory.Repository, cfg Config) *httptest.Server {
	t.Helper()
	if repo == nil {
		repo = memory.NewRepository()
	}
	h := New(context.Background(), ing, repo, cfg, quietLogger())
	srv := httptest.NewServer(h.Routes())
	t.Cleanup(srv.Close)
	return srv
}

func decode(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, nil, nil, Config{})

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get(middleware.RequestIDHeader))
	assert.Equal(t, "ok", decode(t, resp)["status"])
}

func TestStatus(t *testing.T) {
	finished := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	ing := &fakeIngestion{state: models.IngestionState{
		Running:         true,
		LastCompletedAt: finished,
		LastReport:      &models.RunReport{ID: "run-9"},
	}}
	srv := newTestServer(t, ing, nil, Config{})

	resp, err := http.Get(srv.URL + "/api/ingestion/status")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decode(t, resp)
	assert.Equal(t, true, body["enabled"])
	assert.Equal(t, true, body["running"])
	assert.Equal(t, "2024-01-02T03:04:05Z", body["last_completed_at"])
	assert.Equal(t, "run-9", body["last_report"].(map[string]any)["id"])
}

func TestStatusWhenDisabled(t *testing.T) {
	srv := newTestServer(t, nil, nil, Config{})

	resp, err := http.Get(srv.URL + "/api/ingestion/status")
	require.NoError(t, err)
	body := decode(t, resp)
	assert.Equal(t, false, body["enabled"])
	assert.Equal(t, false, body["running"])
}

func TestGenres(t *testing.T) {
	repo := memory.NewRepository()
	ctx := context.Background()
	require.NoError(t, repo.Insert(ctx, &models.ContentItem{ExternalID: "a", Title: "a", Genres: []string{"comedy"}}))
	require.NoError(t, repo.Insert(ctx, &models.ContentItem{ExternalID: "b", Title: "b", Genres: []string{"comedy", "drama"}}))

	srv := newTestServer(t, nil, repo, Config{Genres: []string{"comedy", "drama", "horror"}, MinPerGenre: 2})

	resp, err := http.Get(srv.URL + "/api/genres")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Genres []struct {
			Genre   string `json:"genre"`
			Count   int    `json:"current_count"`
			Minimum int    `json:"minimum_required"`
			Deficit int    `json:"deficit"`
		} `json:"genres"`
	}
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))

	require.Len(t, body.Genres, 3)
	assert.Equal(t, "comedy", body.Genres[0].Genre)
	assert.Equal(t, 2, body.Genres[0].Count)
	assert.Equal(t, 0, body.Genres[0].Deficit)
	assert.Equal(t, 1, body.Genres[1].Deficit)
	assert.Equal(t, 2, body.Genres[2].Deficit)
	assert.Equal(t, 2, body.Genres[2].Minimum)
}

func TestGenresStoreUnavailable(t *testing.T) {
	repo := memory.NewRepository()
	require.NoError(t, repo.Close())
	srv := newTestServer(t, nil, repo, Config{Genres: []string{"drama"}, MinPerGenre: 1})

	resp, err := http.Get(srv.URL + "/api/genres")
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	body := decode(t, resp)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, resp.Header.Get(middleware.RequestIDHeader), body["request_id"])
}

func TestTriggerRun(t *testing.T) {
	tests := []struct {
		name       string
		ingestion  *fakeIngestion
		wantStatus int
	}{
		{"started", &fakeIngestion{}, http.StatusAccepted},
		{"already running", &fakeIngestion{startErr: errors.ErrRunInProgress}, http.StatusConflict},
		{"disabled", nil, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ing Ingestion
			if tt.ingestion != nil {
				ing = tt.ingestion
			}
			srv := newTestServer(t, ing, nil, Config{})

			resp, err := http.Post(srv.URL+"/api/ingestion/run", "application/json", nil)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)

			body := decode(t, resp)
			assert.Equal(t, tt.wantStatus == http.StatusAccepted, body["success"])
			if tt.ingestion != nil {
				assert.Equal(t, 1, tt.ingestion.starts)
			}
		})
	}
}

func TestTriggerRunIsRateLimited(t *testing.T) {
	ing := &fakeIngestion{}
	srv := newTestServer(t, ing, nil, Config{TriggerInterval: time.Hour})

	resp, err := http.Post(srv.URL+"/api/ingestion/run", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	resp, err = http.Post(srv.URL+"/api/ingestion/run", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, 1, ing.starts)
}

func TestTriggerRunWhileRunningKeepsBudget(t *testing.T) {
	ing := &fakeIngestion{state: models.IngestionState{Running: true}}
	srv := newTestServer(t, ing, nil, Config{TriggerInterval: time.Hour})

	for i := 0; i < 2; i++ {
		resp, err := http.Post(srv.URL+"/api/ingestion/run", "application/json", nil)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
	}
	assert.Zero(t, ing.starts)

	ing.state.Running = false
	resp, err := http.Post(srv.URL+"/api/ingestion/run", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, 1, ing.starts)
}

func TestUnknownRouteAndMethod(t *testing.T) {
	srv := newTestServer(t, nil, nil, Config{})

	resp, err := http.Get(srv.URL + "/nope")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "route not found", decode(t, resp)["error"])

	resp, err = http.Get(srv.URL + "/api/ingestion/run")
	require.NoError(t, err)
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	resp.Body.Close()
}
