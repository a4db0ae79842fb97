package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"syscall"
	"time"

	"github.com/jguynes74-create/Smooth-Edit/internal/store"
)

// apiClient is a thin HTTP client for the daemon API.
type apiClient struct {
	baseURL string
	token   string
	http    *http.Client
}

func newAPIClient(addr, token string) (*apiClient, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, errors.New("daemon API address is not configured; set paths.api_bind or pass --addr")
	}
	return &apiClient{
		baseURL: "http://" + addr,
		token:   strings.TrimSpace(token),
		http:    &http.Client{Timeout: 30 * time.Second},
	}, nil
}

type statusResponse struct {
	Running      bool                `json:"running"`
	PID          int                 `json:"pid"`
	DatabasePath string              `json:"databasePath"`
	LockFilePath string              `json:"lockFilePath"`
	Jobs         store.HealthSummary `json:"jobs"`
	InFlight     int                 `json:"inFlight"`
	Sessions     int                 `json:"sessions"`
}

type pollResponse struct {
	Status       string `json:"status"`
	Progress     int    `json:"progress"`
	CurrentStep  string `json:"currentStep"`
	ErrorMessage string `json:"errorMessage"`
}

func (c *apiClient) Status(ctx context.Context) (*statusResponse, error) {
	var status statusResponse
	if err := c.do(ctx, http.MethodGet, "/api/status", nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

func (c *apiClient) ListVideos(ctx context.Context) ([]*store.Video, error) {
	var listing struct {
		Videos []*store.Video `json:"videos"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/videos", nil, &listing); err != nil {
		return nil, err
	}
	return listing.Videos, nil
}

func (c *apiClient) GetVideo(ctx context.Context, id string) (*store.Video, error) {
	var video store.Video
	if err := c.do(ctx, http.MethodGet, "/api/videos/"+id, nil, &video); err != nil {
		return nil, err
	}
	return &video, nil
}

func (c *apiClient) RegisterUpload(ctx context.Context, originalName, path string) (*store.Video, error) {
	payload := map[string]string{"originalName": originalName, "path": path}
	var video store.Video
	if err := c.do(ctx, http.MethodPost, "/api/videos", payload, &video); err != nil {
		return nil, err
	}
	return &video, nil
}

func (c *apiClient) StartProcessing(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, "/api/videos/"+id+"/process", nil, nil)
}

func (c *apiClient) PollStatus(ctx context.Context, id string) (*pollResponse, error) {
	var poll pollResponse
	if err := c.do(ctx, http.MethodGet, "/api/videos/"+id+"/status", nil, &poll); err != nil {
		return nil, err
	}
	return &poll, nil
}

func (c *apiClient) DeleteVideo(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/videos/"+id, nil, nil)
}

func (c *apiClient) ListDrafts(ctx context.Context) ([]*store.Draft, error) {
	var listing struct {
		Drafts []*store.Draft `json:"drafts"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/drafts", nil, &listing); err != nil {
		return nil, err
	}
	return listing.Drafts, nil
}

func (c *apiClient) DeleteDraft(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/drafts/"+id, nil, nil)
}

func (c *apiClient) TestNotification(ctx context.Context) (string, error) {
	var result struct {
		Sent   bool   `json:"sent"`
		Detail string `json:"detail"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/notifications/test", nil, &result); err != nil {
		return "", err
	}
	return result.Detail, nil
}

func (c *apiClient) do(ctx context.Context, method, path string, body, target any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return wrapDialError(err, c.baseURL)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if decodeErr := json.NewDecoder(resp.Body).Decode(&apiErr); decodeErr == nil && apiErr.Error != "" {
			return fmt.Errorf("daemon responded %d: %s", resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("daemon responded %d", resp.StatusCode)
	}
	if target == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func wrapDialError(err error, baseURL string) error {
	if errors.Is(err, syscall.ECONNREFUSED) {
		return fmt.Errorf("connect to daemon at %s: connection refused; start the daemon with `smootheditd`", baseURL)
	}
	return fmt.Errorf("connect to daemon: %w", err)
}
