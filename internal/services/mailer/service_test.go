package mailer

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/vistaview/conveyor/internal/common"
	"github.com/vistaview/conveyor/internal/models"
	"github.com/vistaview/conveyor/internal/storage/sqlite"
)

func newMailFixture(t *testing.T) (*Service, *sqlite.MailStorage) {
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

	mails := sqlite.NewMailStorage(db, logger)
	stats := sqlite.NewStatsStorage(db, logger)

	// No username selects test mode: nothing leaves the process
	config := common.MailConfig{
		Host:     "smtp.example.com",
		Port:     587,
		From:     "noreply@vistaview.ai",
		FromName: "VistaView",
	}
	return NewService(config, logger, mails, stats), mails
}

func newSendJob(t *testing.T) *models.Job {
	t.Helper()

	job, err := models.NewJob(models.FamilySend, &models.SendPayload{
		To:           "buyer@example.com",
		Subject:      "Your catalog is live",
		BodyMarkdown: "# Catalog published\n\n**12 products** are now searchable.",
	}, 3, 5)
	require.NoError(t, err)
	return job
}

func TestExecuteTestModeRecordsAttempt(t *testing.T) {
	service, mails := newMailFixture(t)
	ctx := context.Background()

	job := newSendJob(t)
	summaryJSON, err := service.Execute(ctx, job)
	require.NoError(t, err)

	var summary sendSummary
	require.NoError(t, json.Unmarshal(summaryJSON, &summary))
	assert.Equal(t, "buyer@example.com", summary.To)
	assert.Equal(t, "test", summary.Transport)
	assert.True(t, strings.HasPrefix(summary.MessageID, "test-"))

	records, err := mails.GetAttemptsByJob(ctx, job.ID)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, models.MailStatusTest, records[0].Status)
	assert.Equal(t, "buyer@example.com", records[0].Recipient)
	assert.Equal(t, "Your catalog is live", records[0].Subject)
	assert.Empty(t, records[0].Error)
}

func TestComposeRendersMarkdownAlternative(t *testing.T) {
	service, _ := newMailFixture(t)

	message, err := service.compose("test-1", models.SendPayload{
		To:           "buyer@example.com",
		Subject:      "Hello",
		BodyMarkdown: "# Welcome\n\nYour *catalog* is ready.",
	})
	require.NoError(t, err)

	text := string(message)
	assert.Contains(t, text, "Subject: Hello")
	assert.Contains(t, text, "# Welcome", "plain part carries the raw markdown")
	assert.Contains(t, text, "<h1>Welcome</h1>", "html part carries the rendering")
	assert.Contains(t, text, "<em>catalog</em>")
}

func TestTransportSelection(t *testing.T) {
	logger := arbor.NewLogger()

	test := NewTransport(common.MailConfig{}, logger)
	assert.Equal(t, "test", test.Name())

	smtp := NewTransport(common.MailConfig{
		Host:     "smtp.example.com",
		Port:     587,
		Username: "mailer",
		Password: "secret",
	}, logger)
	assert.Equal(t, "smtp", smtp.Name())
}
