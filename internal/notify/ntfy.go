// Package notify sends the fire-and-forget notifications triggered by a new
// upload: ntfy pushes for news shows and mails to the station, the producer,
// and the show's supervisors.
package notify

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"aircheck/internal/catalog"
	"aircheck/internal/config"
)

const userAgent = "aircheck/0.1.0"

// Pusher is the push notification surface. Failures are logged by callers
// and never block the upload flow.
type Pusher interface {
	PushNewsUpload(ctx context.Context, upload *catalog.Upload, uploader *catalog.Person, show *catalog.Show) error
	TestPush(ctx context.Context) error
}

// NewPusher builds a pusher backed by ntfy when configured. Without a topic
// a noop implementation is returned.
func NewPusher(cfg *config.Config, logger *slog.Logger) Pusher {
	topic := strings.TrimSpace(cfg.Notify.NtfyTopic)
	if topic == "" {
		return noopPusher{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	timeout := time.Duration(cfg.Notify.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ntfyPusher{
		endpoint: strings.TrimRight(cfg.Notify.NtfyURL, "/") + "/" + topic,
		client:   &http.Client{Timeout: timeout},
		logger:   logger,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyPusher struct {
	endpoint string
	client   *http.Client
	logger   *slog.Logger
}

// PushNewsUpload notifies the newsroom about a fresh news submission. Only
// news-medium shows get a push.
func (n *ntfyPusher) PushNewsUpload(ctx context.Context, upload *catalog.Upload, uploader *catalog.Person, show *catalog.Show) error {
	if !show.IsNews() {
		n.logger.Debug("skipping push for non-news upload", slog.Int64("upload_id", upload.ID))
		return nil
	}
	data := payload{
		title:    fmt.Sprintf("u-%05d: New news upload %s", upload.ID, show.Name),
		message:  fmt.Sprintf("A new news episode for %s was submitted by %s.", show.Name, uploader.Name),
		tags:     []string{"newspaper"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func (n *ntfyPusher) TestPush(ctx context.Context) error {
	data := payload{
		title:    "aircheck - Test",
		message:  "Notification system test",
		tags:     []string{"test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func (n *ntfyPusher) send(ctx context.Context, data payload) error {
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
	if data.priority != "" && data.priority != "default" {
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

type noopPusher struct{}

func (noopPusher) PushNewsUpload(context.Context, *catalog.Upload, *catalog.Person, *catalog.Show) error {
	return nil
}
func (noopPusher) TestPush(context.Context) error { return nil }
