package predict

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/kartoza/airscope/internal/metrics"
	"github.com/kartoza/airscope/internal/models"
)

// ErrPredictionFailed is returned when the service answers with a non-2xx status
var ErrPredictionFailed = errors.New("Failed to get prediction")

// Client posts prediction requests to the prediction service
type Client struct {
	endpoint string
	client   *http.Client
	metrics  *metrics.Collector
}

// NewClient creates a client for endpoint. A zero timeout disables the
// client-side timeout.
func NewClient(endpoint string, timeout time.Duration) *Client {
	return &Client{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

// WithMetrics attaches a collector that observes every call
func (c *Client) WithMetrics(m *metrics.Collector) *Client {
	c.metrics = m
	return c
}

// Endpoint returns the URL requests are posted to
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Predict sends req as JSON and decodes the result
func (c *Client) Predict(ctx context.Context, req models.PredictionRequest) (*models.PredictionResult, error) {
	start := time.Now()
	result, err := c.do(ctx, req)

	outcome := "success"
	if err != nil {
		outcome = "error"
		log.Warn().Err(err).Str("endpoint", c.endpoint).Msg("prediction request failed")
	}
	c.metrics.ObservePrediction(outcome, time.Since(start))

	return result, err
}

func (c *Client) do(ctx context.Context, req models.PredictionRequest) (*models.PredictionResult, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal prediction request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create prediction request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("prediction service request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, ErrPredictionFailed
	}

	var result models.PredictionResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode prediction response: %w", err)
	}

	return &result, nil
}
