package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jguynes74-create/Smooth-Edit/internal/config"
)

const userAgent = "SmoothEdit-Go/0.1.0"

// Service defines the notification surface exposed to pipeline components.
type Service interface {
	NotifyProcessingCompleted(ctx context.Context, videoName string, degradedStages int) error
	NotifyProcessingFailed(ctx context.Context, videoName, reason string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
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
		endpoint:       topic,
		client:         &http.Client{Timeout: timeout},
		sendCompletion: cfg.Notifications.Completion,
		sendErrors:     cfg.Notifications.Errors,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint       string
	client         *http.Client
	sendCompletion bool
	sendErrors     bool
}

func (n *ntfyService) NotifyProcessingCompleted(ctx context.Context, videoName string, degradedStages int) error {
	if !n.sendCompletion {
		return nil
	}
	videoName = strings.TrimSpace(videoName)
	message := fmt.Sprintf("Ready to watch: %s", videoName)
	if degradedStages > 0 {
		message = fmt.Sprintf("%s (%d repair step(s) skipped)", message, degradedStages)
	}
	data := payload{
		title:    "Smooth Edit - Complete",
		message:  message,
		tags:     []string{"smoothedit", "processing", "completed"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyProcessingFailed(ctx context.Context, videoName, reason string) error {
	if !n.sendErrors {
		return nil
	}
	videoName = strings.TrimSpace(videoName)
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "unknown"
	}
	data := payload{
		title:    "Smooth Edit - Failed",
		message:  fmt.Sprintf("Processing failed: %s\n%s", videoName, reason),
		tags:     []string{"smoothedit", "processing", "failed"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "Smooth Edit - Test",
		message:  "Notification system test",
		tags:     []string{"smoothedit", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

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

type noopService struct{}

func (noopService) NotifyProcessingCompleted(context.Context, string, int) error { return nil }
func (noopService) NotifyProcessingFailed(context.Context, string, string) error { return nil }
func (noopService) TestNotification(context.Context) error                       { return nil }
