package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/vistaview/conveyor/internal/common"
	"github.com/vistaview/conveyor/internal/models"
	"github.com/vistaview/conveyor/internal/storage/sqlite"
)

// scriptedExecutor fails jobs whose payload URL appears in failures
type scriptedExecutor struct {
	family   models.JobFamily
	failures map[string]bool
	executed []string
}

func (e *scriptedExecutor) Family() models.JobFamily { return e.family }

func (e *scriptedExecutor) Execute(_ context.Context, job *models.Job) (json.RawMessage, error) {
	var payload models.FetchPayload
	if err := job.DecodePayload(&payload); err != nil {
		return nil, err
	}
	e.executed = append(e.executed, payload.URL)

	if e.failures[payload.URL] {
		return nil, fmt.Errorf("scripted failure for %s", payload.URL)
	}
	return json.Marshal(map[string]string{"url": payload.URL})
}

type recordingNotifier struct {
	started  []string
	outcomes []models.Outcome
}

func (n *recordingNotifier) JobStarted(job *models.Job) {
	n.started = append(n.started, job.ID)
}

func (n *recordingNotifier) JobFinished(outcome models.Outcome) {
	n.outcomes = append(n.outcomes, outcome)
}

func newQueueFixture(t *testing.T, executor TaskExecutor) (*Dispatcher, *sqlite.JobStorage) {
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
	dispatcher := NewDispatcher(common.QueueConfig{
		DefaultMaxAttempts: 3,
		BatchLimit:         10,
	}, logger, jobs, NewRegistry(executor))
	return dispatcher, jobs
}

func enqueueFetch(t *testing.T, jobs *sqlite.JobStorage, url string) string {
	t.Helper()

	payload := &models.FetchPayload{URL: url, MaxDepth: 1}
	job, err := models.NewJob(models.FamilyFetch, payload, 3, 5)
	require.NoError(t, err)
	job.NaturalKey = payload.NaturalKey()

	id, err := jobs.Enqueue(context.Background(), job)
	require.NoError(t, err)
	return id
}

func TestProcessBatchIsolatesFailures(t *testing.T) {
	executor := &scriptedExecutor{
		family:   models.FamilyFetch,
		failures: map[string]bool{"https://example.com/3": true},
	}
	dispatcher, jobs := newQueueFixture(t, executor)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		enqueueFetch(t, jobs, fmt.Sprintf("https://example.com/%d", i))
	}

	outcomes, err := dispatcher.ProcessBatch(ctx, models.FamilyFetch, 5)
	require.NoError(t, err)
	require.Len(t, outcomes, 5)
	assert.Len(t, executor.executed, 5, "one failure must not abort the batch")

	failed := 0
	for _, outcome := range outcomes {
		if outcome.Success {
			assert.NotEmpty(t, outcome.Summary)
		} else {
			failed++
			assert.Contains(t, outcome.Error, "scripted failure")
		}
	}
	assert.Equal(t, 1, failed)

	// The failed job went back to pending for a retry, the rest completed
	counts, err := jobs.CountByStatus(ctx, models.FamilyFetch)
	require.NoError(t, err)
	assert.Equal(t, 4, counts[models.JobStatusCompleted])
	assert.Equal(t, 1, counts[models.JobStatusPending])
}

func TestProcessBatchClampsLimit(t *testing.T) {
	executor := &scriptedExecutor{family: models.FamilyFetch}
	dispatcher, jobs := newQueueFixture(t, executor)

	for i := 0; i < 15; i++ {
		enqueueFetch(t, jobs, fmt.Sprintf("https://example.com/page-%d", i))
	}

	// Requested limit above BatchLimit is clamped to the config cap
	outcomes, err := dispatcher.ProcessBatch(context.Background(), models.FamilyFetch, 100)
	require.NoError(t, err)
	assert.Len(t, outcomes, 10)
}

func TestProcessBatchUnknownFamily(t *testing.T) {
	executor := &scriptedExecutor{family: models.FamilyFetch}
	dispatcher, _ := newQueueFixture(t, executor)

	_, err := dispatcher.ProcessBatch(context.Background(), models.FamilyParse, 5)
	assert.Error(t, err)
}

func TestProcessBatchEmptyQueue(t *testing.T) {
	executor := &scriptedExecutor{family: models.FamilyFetch}
	dispatcher, _ := newQueueFixture(t, executor)

	outcomes, err := dispatcher.ProcessBatch(context.Background(), models.FamilyFetch, 5)
	require.NoError(t, err)
	assert.Empty(t, outcomes)
}

func TestNotifierReceivesEveryOutcome(t *testing.T) {
	executor := &scriptedExecutor{
		family:   models.FamilyFetch,
		failures: map[string]bool{"https://example.com/bad": true},
	}
	dispatcher, jobs := newQueueFixture(t, executor)

	notifier := &recordingNotifier{}
	dispatcher.SetNotifier(notifier)

	enqueueFetch(t, jobs, "https://example.com/good")
	enqueueFetch(t, jobs, "https://example.com/bad")

	outcomes, err := dispatcher.ProcessBatch(context.Background(), models.FamilyFetch, 5)
	require.NoError(t, err)
	require.Len(t, outcomes, 2)
	assert.Equal(t, outcomes, notifier.outcomes)
	assert.Len(t, notifier.started, 2)
}

func TestRegistryLookup(t *testing.T) {
	executor := &scriptedExecutor{family: models.FamilyFetch}
	registry := NewRegistry(executor)

	found, err := registry.Lookup(models.FamilyFetch)
	require.NoError(t, err)
	assert.Same(t, executor, found)

	_, err = registry.Lookup(models.FamilyEmbed)
	assert.Error(t, err)
}
