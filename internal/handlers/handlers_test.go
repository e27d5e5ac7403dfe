package handlers

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/vistaview/conveyor/internal/common"
	"github.com/vistaview/conveyor/internal/models"
	"github.com/vistaview/conveyor/internal/queue"
	"github.com/vistaview/conveyor/internal/services/progress"
	"github.com/vistaview/conveyor/internal/storage/sqlite"
)

func newHandlerFixture(t *testing.T) (*JobHandler, *sqlite.JobStorage) {
	t.Helper()

	logger := arbor.NewLogger()
	db, err := sqlite.NewDB(logger, &common.StorageConfig{
		Path:          filepath.Join(t.TempDir(), "test.db"),
		CacheSizeMB:   16,
		BusyTimeoutMS: 5000,
		WALMode:       true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	jobs := sqlite.NewJobStorage(db, logger)
	queueCfg := common.QueueConfig{DefaultMaxAttempts: 3, DefaultPriority: 5, BatchLimit: 10}
	dispatcher := queue.NewDispatcher(queueCfg, logger, jobs, queue.NewRegistry())
	return NewJobHandler(queueCfg, logger, jobs, dispatcher), jobs
}

func TestEnqueueHandlerAcceptsValidPayload(t *testing.T) {
	handler, jobs := newHandlerFixture(t)

	body := bytes.NewBufferString(`{"url":"https://example.com/catalog","max_depth":1,"priority":7}`)
	req := httptest.NewRequest(http.MethodPost, "/api/jobs/fetch/enqueue", body)
	rec := httptest.NewRecorder()
	handler.EnqueueHandler(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Success bool   `json:"success"`
		JobID   string `json:"jobId"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	require.NotEmpty(t, resp.JobID)

	job, err := jobs.GetJob(req.Context(), resp.JobID)
	require.NoError(t, err)
	assert.Equal(t, models.FamilyFetch, job.Family)
	assert.Equal(t, 7, job.Priority)
	assert.Equal(t, models.JobStatusPending, job.Status)
}

func TestEnqueueHandlerRejectsMissingField(t *testing.T) {
	handler, _ := newHandlerFixture(t)

	// Fetch payload without the required url
	body := bytes.NewBufferString(`{"max_depth":1}`)
	req := httptest.NewRequest(http.MethodPost, "/api/jobs/fetch/enqueue", body)
	rec := httptest.NewRecorder()
	handler.EnqueueHandler(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var resp struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.NotEmpty(t, resp.Error)
}

func TestEnqueueHandlerRejectsUnknownFamily(t *testing.T) {
	handler, _ := newHandlerFixture(t)

	body := bytes.NewBufferString(`{"url":"https://example.com"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/jobs/transmogrify/enqueue", body)
	rec := httptest.NewRecorder()
	handler.EnqueueHandler(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEnqueueHandlerWrongMethod(t *testing.T) {
	handler, _ := newHandlerFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/api/jobs/fetch/enqueue", nil)
	rec := httptest.NewRecorder()
	handler.EnqueueHandler(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestGetJobHandlerNotFound(t *testing.T) {
	handler, _ := newHandlerFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/api/jobs/fetch/job_missing", nil)
	rec := httptest.NewRecorder()
	handler.GetJobHandler(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestProgressStreamDeliversNDJSON(t *testing.T) {
	logger := arbor.NewLogger()
	channel := progress.NewChannel(16, logger)
	handler := NewProgressHandler(logger, channel)

	server := httptest.NewServer(http.HandlerFunc(handler.StreamHandler))
	defer server.Close()

	// Publish once the subscriber is connected
	go func() {
		for channel.SubscriberCount() == 0 {
			time.Sleep(5 * time.Millisecond)
		}
		pub := channel.NewPublisher("session-1")
		pub.Step(1, "Parse Catalog", "Reading...", 20)
		pub.Complete("Publish Catalog", "2 products now live!", models.PipelineResult{ProductCount: 2})
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL+"/api/progress/session-1", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/x-ndjson", resp.Header.Get("Content-Type"))

	var events []models.ProgressEvent
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var event models.ProgressEvent
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &event))
		events = append(events, event)
	}

	require.Len(t, events, 2)
	assert.Equal(t, 1, events[0].Step)
	assert.False(t, events[0].Complete)
	assert.True(t, events[1].Complete)
	assert.Equal(t, 100, events[1].Progress)
}

func TestProgressStreamRequiresSession(t *testing.T) {
	logger := arbor.NewLogger()
	handler := NewProgressHandler(logger, progress.NewChannel(16, logger))

	req := httptest.NewRequest(http.MethodGet, "/api/progress/", nil)
	rec := httptest.NewRecorder()
	handler.StreamHandler(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
