package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"plate-service/internal/config"
)

var ErrOCRNotConfigured = errors.New("OCR service URL is not configured")

// TextRegion is one text detection reported by the OCR engine.
type TextRegion struct {
	Text       string   `json:"text"`
	Confidence *float64 `json:"confidence,omitempty"`
}

type OCRResponse struct {
	Data []TextRegion `json:"data"`
}

type OCRClient struct {
	baseURL       string
	internalToken string
	maxRetries    int
	backoff       time.Duration
	limiter       *rate.Limiter
	httpClient    *http.Client
}

func NewOCRClient(cfg *config.Config) *OCRClient {
	maxRetries := cfg.OCR.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 1
	}

	limit := rate.Inf
	if cfg.OCR.RateLimitRPS > 0 {
		limit = rate.Limit(cfg.OCR.RateLimitRPS)
	}

	return &OCRClient{
		baseURL:       strings.TrimRight(cfg.OCR.ServiceURL, "/"),
		internalToken: cfg.OCR.InternalToken,
		maxRetries:    maxRetries,
		backoff:       500 * time.Millisecond,
		limiter:       rate.NewLimiter(limit, 1),
		httpClient: &http.Client{
			Timeout: cfg.OCR.Timeout,
		},
	}
}

// RecognizeText sends one image to the OCR engine and returns the detected
// text regions in engine order, trimmed, with empty regions dropped.
func (c *OCRClient) RecognizeText(ctx context.Context, image []byte, contentType string) ([]string, error) {
	if c.baseURL == "" {
		return nil, ErrOCRNotConfigured
	}

	u, err := url.Parse(c.baseURL + "/v1/recognize")
	if err != nil {
		return nil, fmt.Errorf("invalid OCR service URL: %w", err)
	}

	if contentType == "" {
		contentType = "application/octet-stream"
	}

	var resp *http.Response
	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("OCR rate limiter: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(image))
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", contentType)
		req.Header.Set("Accept", "application/json")
		if c.internalToken != "" {
			req.Header.Set("X-Internal-Token", c.internalToken)
		}

		resp, lastErr = c.httpClient.Do(req)
		if lastErr == nil {
			break
		}
		if attempt == c.maxRetries-1 {
			return nil, fmt.Errorf("failed to execute request after %d attempts: %w", c.maxRetries, lastErr)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(attempt+1) * c.backoff):
		}
	}
	if resp == nil {
		return nil, fmt.Errorf("failed to execute request: %w", lastErr)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("OCR service returned status %d: %s", resp.StatusCode, string(body))
	}

	var response OCRResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	texts := make([]string, 0, len(response.Data))
	for _, region := range response.Data {
		text := strings.TrimSpace(region.Text)
		if text != "" {
			texts = append(texts, text)
		}
	}

	return texts, nil
}
