package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/JaimeStill/triage/pkg/formatting"
)

const maxResponseBytes = 4 << 20

// System classifies patient submissions.
type System interface {
	// Classify sends s to the service once. Failures are reported as
	// ErrUnavailable and are never retried.
	Classify(ctx context.Context, s Submission) (*Result, error)
}

type gateway struct {
	client   *http.Client
	textURL  string
	imageURL string
	logger   *slog.Logger
}

type textRequest struct {
	Text string `json:"text"`
}

type imageRequest struct {
	Message string `json:"message"`
	Image   string `json:"image"`
}

// New creates a gateway bounded by cfg.Timeout. A nil client uses a fresh
// http.Client.
func New(cfg *Config, client *http.Client, logger *slog.Logger) System {
	if client == nil {
		client = &http.Client{}
	}
	bounded := *client
	bounded.Timeout = cfg.TimeoutDuration()

	base := strings.TrimSuffix(cfg.BaseURL, "/")

	return &gateway{
		client:   &bounded,
		textURL:  base + cfg.TextPath,
		imageURL: base + cfg.ImagePath,
		logger:   logger.With("system", "classifier"),
	}
}

func (g *gateway) Classify(ctx context.Context, s Submission) (*Result, error) {
	if s.Empty() {
		return nil, ErrEmptySubmission
	}

	endpoint, body := g.route(s)

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("%w: encode request: %w", ErrUnavailable, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %w", ErrUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		g.logger.Warn("classification request failed", "endpoint", endpoint, "error", err)
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %w", ErrUnavailable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		g.logger.Warn("classification rejected", "endpoint", endpoint, "status", resp.StatusCode)
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	result, err := formatting.Parse[Result](string(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	severity := ""
	if result.Severity != nil {
		severity = string(*result.Severity)
	}
	g.logger.Info("submission classified", "endpoint", endpoint, "severity", severity)

	return &result, nil
}

// route picks the endpoint solely from the presence of an image.
func (g *gateway) route(s Submission) (string, any) {
	if s.Image != nil && *s.Image != "" {
		return g.imageURL, imageRequest{Message: s.Text, Image: *s.Image}
	}
	return g.textURL, textRequest{Text: s.Text}
}
