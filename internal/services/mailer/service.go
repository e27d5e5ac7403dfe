// -----------------------------------------------------------------------
// Send executor - markdown mail delivery with a durable attempt log
// -----------------------------------------------------------------------

package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/ternarybob/arbor"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"

	"github.com/vistaview/conveyor/internal/common"
	"github.com/vistaview/conveyor/internal/models"
	"github.com/vistaview/conveyor/internal/storage/sqlite"
)

// Service is the send-family task executor
type Service struct {
	config    common.MailConfig
	logger    arbor.ILogger
	transport Transport
	mails     *sqlite.MailStorage
	stats     *sqlite.StatsStorage
	markdown  goldmark.Markdown
}

func NewService(config common.MailConfig, logger arbor.ILogger,
	mails *sqlite.MailStorage, stats *sqlite.StatsStorage) *Service {
	return &Service{
		config:    config,
		logger:    logger,
		transport: NewTransport(config, logger),
		mails:     mails,
		stats:     stats,
		markdown: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithRendererOptions(
				html.WithHardWraps(),
				html.WithXHTML(),
			),
		),
	}
}

// Family implements the task executor contract
func (s *Service) Family() models.JobFamily {
	return models.FamilySend
}

// sendSummary is the result blob written onto a completed send job
type sendSummary struct {
	To        string `json:"to"`
	MessageID string `json:"message_id"`
	Transport string `json:"transport"`
}

// Execute delivers the message and always records the attempt, success
// or failure, before reporting the outcome.
func (s *Service) Execute(ctx context.Context, job *models.Job) (json.RawMessage, error) {
	var payload models.SendPayload
	if err := job.DecodePayload(&payload); err != nil {
		return nil, err
	}

	messageID := fmt.Sprintf("%d@vistaview.ai", time.Now().UnixNano())
	if s.transport.Name() == "test" {
		messageID = TestMessageID()
	}

	record := &models.MailRecord{
		JobID:     job.ID,
		Recipient: payload.To,
		Subject:   payload.Subject,
		MessageID: messageID,
		CreatedAt: time.Now(),
	}

	message, err := s.compose(messageID, payload)
	if err == nil {
		err = s.transport.Send(payload.To, message)
	}

	if err != nil {
		record.Status = models.MailStatusFailed
		record.Error = err.Error()
	} else if s.transport.Name() == "test" {
		record.Status = models.MailStatusTest
	} else {
		record.Status = models.MailStatusSent
	}

	if recordErr := s.mails.RecordAttempt(ctx, record); recordErr != nil {
		s.logger.Error().Err(recordErr).Str("job_id", job.ID).Msg("Failed to record mail attempt")
	}

	if err != nil {
		return nil, err
	}

	if statsErr := s.stats.Increment(ctx, "mails_sent", 1); statsErr != nil {
		s.logger.Warn().Err(statsErr).Msg("Failed to increment mails_sent")
	}

	s.logger.Info().
		Str("job_id", job.ID).
		Str("to", payload.To).
		Str("message_id", messageID).
		Str("transport", s.transport.Name()).
		Msg("Mail delivered")

	return json.Marshal(sendSummary{
		To:        payload.To,
		MessageID: messageID,
		Transport: s.transport.Name(),
	})
}

// compose builds a multipart/alternative message carrying the markdown
// body as plain text alongside its HTML rendering.
func (s *Service) compose(messageID string, payload models.SendPayload) ([]byte, error) {
	var htmlBuf bytes.Buffer
	if err := s.markdown.Convert([]byte(payload.BodyMarkdown), &htmlBuf); err != nil {
		return nil, fmt.Errorf("failed to render mail body: %w", err)
	}

	var buf bytes.Buffer

	var header mail.Header
	header.SetDate(time.Now())
	header.SetAddressList("From", []*mail.Address{{Name: s.config.FromName, Address: s.config.From}})
	header.SetAddressList("To", []*mail.Address{{Address: payload.To}})
	header.SetSubject(payload.Subject)
	header.SetMessageID(messageID)

	mw, err := mail.CreateWriter(&buf, header)
	if err != nil {
		return nil, fmt.Errorf("failed to create mail writer: %w", err)
	}

	tw, err := mw.CreateInline()
	if err != nil {
		return nil, fmt.Errorf("failed to create inline writer: %w", err)
	}

	var textHeader mail.InlineHeader
	textHeader.Set("Content-Type", "text/plain; charset=utf-8")
	part, err := tw.CreatePart(textHeader)
	if err != nil {
		return nil, fmt.Errorf("failed to create text part: %w", err)
	}
	io.WriteString(part, payload.BodyMarkdown)
	part.Close()

	var htmlHeader mail.InlineHeader
	htmlHeader.Set("Content-Type", "text/html; charset=utf-8")
	part, err = tw.CreatePart(htmlHeader)
	if err != nil {
		return nil, fmt.Errorf("failed to create html part: %w", err)
	}
	part.Write(htmlBuf.Bytes())
	part.Close()

	tw.Close()
	mw.Close()

	return buf.Bytes(), nil
}
