package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"scriptsync/internal/config"
)

const userAgent = "scriptsync/0.1"

// RunSummary describes a finished run for a notification.
type RunSummary struct {
	RunID   string
	Status  string
	Input   string
	Output  string
	Events  int
	Dropped int
	Reason  string
}

// Service is the notification surface used by the pipeline and CLI.
type Service interface {
	NotifyRunFinished(ctx context.Context, summary RunSummary) error
	TestNotification(ctx context.Context) error
}

// NewService builds an ntfy-backed notifier, or a noop when no topic is set.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}
	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
}

func (n *ntfyService) NotifyRunFinished(ctx context.Context, s RunSummary) error {
	name := filepath.Base(s.Input)
	if s.Input == "" {
		name = s.RunID
	}
	var data payload
	switch s.Status {
	case "completed":
		data = payload{
			title:   "scriptsync - Subtitles Ready",
			message: fmt.Sprintf("%s: %d events (%d dropped)\n%s", name, s.Events, s.Dropped, s.Output),
			tags:    []string{"scriptsync", "completed"},
		}
	case "review":
		data = payload{
			title:    "scriptsync - Review Needed",
			message:  fmt.Sprintf("%s: %s", name, strings.TrimSpace(s.Reason)),
			tags:     []string{"scriptsync", "review"},
			priority: "high",
		}
	default:
		data = payload{
			title:    "scriptsync - Run Failed",
			message:  fmt.Sprintf("%s: %s", name, strings.TrimSpace(s.Reason)),
			tags:     []string{"scriptsync", "error", "alert"},
			priority: "high",
		}
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	return n.send(ctx, payload{
		title:    "scriptsync - Test",
		message:  "Notification system test",
		tags:     []string{"scriptsync", "test"},
		priority: "low",
	})
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifyRunFinished(context.Context, RunSummary) error { return nil }
func (noopService) TestNotification(context.Context) error             { return nil }
