package announcer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/aaronromeo/sortpat/internal/model"
	"github.com/pkg/errors"
)

const webhookAnnouncePath = "/announcements"

type Option func(*webhookAnnouncer)

// Service reports a finished run somewhere outside the process.
type Service interface {
	Announce(ctx context.Context, summary model.RunSummary) error
}

func WithWebhookURL(webhookURL string) Option {
	return func(wa *webhookAnnouncer) {
		wa.baseURL = strings.TrimSpace(webhookURL)
	}
}

func WithHTTPClient(client *http.Client) Option {
	return func(wa *webhookAnnouncer) {
		if client != nil {
			wa.client = client
		}
	}
}

type webhookAnnouncer struct {
	baseURL string
	client  *http.Client
}

type announcement struct {
	Message string           `json:"message"`
	Summary model.RunSummary `json:"summary"`
}

func New(opts ...Option) *webhookAnnouncer {
	announcer := &webhookAnnouncer{client: &http.Client{Timeout: 10 * time.Second}}
	for _, opt := range opts {
		opt(announcer)
	}
	return announcer
}

// Announce posts the summary to the reporting webhook. Without a webhook URL
// it does nothing.
func (w *webhookAnnouncer) Announce(ctx context.Context, summary model.RunSummary) error {
	if w.baseURL == "" {
		return nil
	}
	payload, err := json.Marshal(announcement{Message: Message(summary), Summary: summary})
	if err != nil {
		return errors.Wrap(err, "encode announcement")
	}

	baseURL := strings.TrimRight(w.baseURL, "/")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+webhookAnnouncePath, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := w.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("reporting webhook returned status %s", resp.Status)
	}
	return nil
}

// Message is the one-line human summary of a run.
func Message(s model.RunSummary) string {
	prefix := "run"
	if s.DryRun {
		prefix = "dry run"
	}
	msg := fmt.Sprintf("%s %s on %q: scanned %d, labeled %d, archived %d, skipped %d, failed %d",
		prefix, s.FinalState, s.Folder, s.Scanned, s.Labeled, s.Archived, s.Skipped, s.Failed)
	if s.Error != "" {
		msg += " (" + s.Error + ")"
	}
	return msg
}
