package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/jguynes74-create/Smooth-Edit/internal/config"
	"github.com/jguynes74-create/Smooth-Edit/internal/logging"
	"github.com/jguynes74-create/Smooth-Edit/internal/media/ffprobe"
	"github.com/jguynes74-create/Smooth-Edit/internal/services"
	"github.com/jguynes74-create/Smooth-Edit/internal/store"
)

// Client analyzes a source video for repairable defects.
type Client interface {
	Analyze(ctx context.Context, path string) (store.DefectReport, error)
}

// analyzeRequest is the JSON payload posted to the analysis service.
type analyzeRequest struct {
	Path            string  `json:"path"`
	SizeBytes       int64   `json:"sizeBytes,omitempty"`
	DurationSeconds float64 `json:"durationSeconds,omitempty"`
}

// httpClient talks to a remote analysis service over HTTP.
type httpClient struct {
	baseURL       string
	apiKey        string
	ffprobeBinary string
	client        *http.Client
	logger        *slog.Logger
}

// disabledClient reports that no analysis service is configured. The
// orchestrator substitutes the conservative fallback report.
type disabledClient struct{}

// ErrDisabled wraps the no-oracle condition so callers can fall back cleanly.
var ErrDisabled = services.Wrap(services.ErrConfiguration, "analyzing", "", "analysis service not configured", nil)

func (disabledClient) Analyze(context.Context, string) (store.DefectReport, error) {
	return store.DefectReport{}, ErrDisabled
}

// NewClient builds an oracle client from configuration. A missing base URL
// yields a disabled client.
func NewClient(cfg *config.Config, logger *slog.Logger) Client {
	base := strings.TrimSpace(cfg.Oracle.BaseURL)
	if base == "" {
		return disabledClient{}
	}
	timeout := time.Duration(cfg.Oracle.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &httpClient{
		baseURL:       strings.TrimRight(base, "/"),
		apiKey:        strings.TrimSpace(cfg.Oracle.APIKey),
		ffprobeBinary: cfg.FFmpeg.FFprobeBinary,
		client:        &http.Client{Timeout: timeout},
		logger:        logging.NewComponentLogger(logger, "oracle"),
	}
}

func (c *httpClient) Analyze(ctx context.Context, path string) (store.DefectReport, error) {
	payload := analyzeRequest{Path: path}
	if probe, err := ffprobe.Inspect(ctx, c.ffprobeBinary, path); err == nil {
		payload.SizeBytes = probe.SizeBytes()
		payload.DurationSeconds = probe.DurationSeconds()
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return store.DefectReport{}, services.Wrap(services.ErrValidation, "analyzing", "encode request", err.Error(), err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/analyze", bytes.NewReader(body))
	if err != nil {
		return store.DefectReport{}, services.Wrap(services.ErrValidation, "analyzing", "build request", err.Error(), err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if services.IsTimeout(err) || strings.Contains(err.Error(), "Client.Timeout") {
			return store.DefectReport{}, services.Wrap(services.ErrTimeout, "analyzing", "call analysis service", "request timed out", err)
		}
		return store.DefectReport{}, services.Wrap(services.ErrTransient, "analyzing", "call analysis service", err.Error(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		message := fmt.Sprintf("analysis service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
		return store.DefectReport{}, services.Wrap(services.ErrExternalTool, "analyzing", "call analysis service", message, nil)
	}

	var report store.DefectReport
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		return store.DefectReport{}, services.Wrap(services.ErrExternalTool, "analyzing", "decode response", err.Error(), err)
	}

	c.logger.Debug("analysis complete",
		logging.Bool("needs_repair", report.NeedsRepair()),
		logging.Int("recommendations", len(report.Recommendations)))
	return report, nil
}

// FallbackReport is the conservative substitute used when analysis fails or
// is unavailable: no repairs except a local wind-noise hint, so the pipeline
// still exports a playable artifact.
func FallbackReport(ctx context.Context, ffprobeBinary, path string) store.DefectReport {
	report := store.DefectReport{
		Recommendations: []string{"Automatic analysis unavailable; applied export-only processing"},
	}
	probe, err := ffprobe.Inspect(ctx, ffprobeBinary, path)
	if err != nil {
		return report
	}
	// Mono low-bitrate audio on outdoor footage is the usual wind-noise
	// signature we can detect without the analysis service.
	for _, stream := range probe.Streams {
		if !strings.EqualFold(stream.CodecType, "audio") {
			continue
		}
		if stream.Channels == 1 {
			report.WindNoise = true
			report.Recommendations = append(report.Recommendations, "Remove wind noise from mono audio track")
		}
		break
	}
	return report
}
