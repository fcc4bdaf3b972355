package hypothesis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/research-lab/internal/config"
)

// HTTPGenerator asks a remote language-model service for hypotheses
type HTTPGenerator struct {
	client  *retryablehttp.Client
	baseURL string
	apiKey  string
	model   string
	logger  *logrus.Logger
}

type generateRequest struct {
	Model string `json:"model,omitempty"`
	ResearchContext
}

type generateResponse struct {
	Hypotheses []Hypothesis `json:"hypotheses"`
}

// NewHTTPGenerator creates a generator for the configured endpoint
func NewHTTPGenerator(cfg *config.HypothesisConfig, logger *logrus.Logger) *HTTPGenerator {
	client := retryablehttp.NewClient()
	client.HTTPClient.Timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	client.RetryMax = 2
	client.Logger = nil

	return &HTTPGenerator{
		client:  client,
		baseURL: strings.TrimRight(cfg.URL, "/"),
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		logger:  logger,
	}
}

// Generate requests hypotheses and drops the ones that fail validation
func (g *HTTPGenerator) Generate(ctx context.Context, rc ResearchContext) ([]Hypothesis, error) {
	body, err := json.Marshal(generateRequest{Model: g.model, ResearchContext: rc})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/v1/hypotheses", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if g.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.apiKey)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("%w: status %d: %s", ErrGenerationFailed, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: failed to decode response: %v", ErrGenerationFailed, err)
	}

	valid := make([]Hypothesis, 0, len(out.Hypotheses))
	for _, h := range out.Hypotheses {
		if err := h.Validate(); err != nil {
			g.logger.WithError(err).WithField("name", h.Name).Warn("Discarding invalid hypothesis")
			continue
		}
		valid = append(valid, h)
	}
	if rc.MaxHypotheses > 0 && len(valid) > rc.MaxHypotheses {
		valid = valid[:rc.MaxHypotheses]
	}
	return valid, nil
}
