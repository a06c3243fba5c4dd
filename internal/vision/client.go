package vision

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/verity-catalog/verity-catalog/internal/verify"
)

// ErrUnavailable marks recognition outages. Callers treat it as a
// degradation signal, not a hard failure.
var ErrUnavailable = errors.New("vision: recognition service unavailable")

// errRejected marks 4xx replies, which are never retried.
var errRejected = errors.New("vision: request rejected")

// Config tunes the HTTP detector.
type Config struct {
	Endpoint   string
	APIKey     string
	Timeout    time.Duration
	MaxRetries int
	RatePerSec float64
	Burst      int
}

// Client calls a JSON concept recognition API and maps its answers to
// detected concepts.
type Client struct {
	endpoint string
	apiKey   string
	http     *http.Client
	limiter  *rate.Limiter
	retries  int
}

// NewClient constructs the HTTP detector.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	retries := cfg.MaxRetries
	if retries <= 0 {
		retries = 2
	}
	rps := cfg.RatePerSec
	if rps <= 0 {
		rps = 10
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 5
	}
	return &Client{
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		apiKey:   cfg.APIKey,
		http:     &http.Client{Timeout: timeout},
		limiter:  rate.NewLimiter(rate.Limit(rps), burst),
		retries:  retries,
	}
}

type detectRequest struct {
	ImageRef string `json:"image_ref"`
}

type detectResponse struct {
	Concepts []struct {
		Name       string  `json:"name"`
		Confidence float64 `json:"confidence"`
	} `json:"concepts"`
}

// Detect asks the recognition API what the referenced image shows.
// Transient failures are retried within the rate budget; when every
// attempt fails the returned error wraps ErrUnavailable.
func (c *Client) Detect(ctx context.Context, imageRef string) ([]verify.DetectedConcept, error) {
	if c == nil || c.endpoint == "" {
		return nil, nil
	}
	payload, err := json.Marshal(detectRequest{ImageRef: imageRef})
	if err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		concepts, err := c.detectOnce(ctx, payload)
		if err == nil {
			return concepts, nil
		}
		lastErr = err
		if errors.Is(err, errRejected) || ctx.Err() != nil {
			break
		}
	}
	return nil, fmt.Errorf("%w: %v", ErrUnavailable, lastErr)
}

func (c *Client) detectOnce(ctx context.Context, payload []byte) ([]verify.DetectedConcept, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/v1/concepts", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		return nil, fmt.Errorf("%w: status %d", errRejected, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("vision: status %d", resp.StatusCode)
	}

	var decoded detectResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, err
	}
	out := make([]verify.DetectedConcept, 0, len(decoded.Concepts))
	for _, concept := range decoded.Concepts {
		out = append(out, verify.DetectedConcept{Name: concept.Name, Confidence: concept.Confidence})
	}
	return out, nil
}

// Noop is the detector used when recognition is not configured. It
// reports no concepts and no error, so verification proceeds on file
// name evidence alone.
type Noop struct{}

// Detect implements the detector contract without doing anything.
func (Noop) Detect(context.Context, string) ([]verify.DetectedConcept, error) {
	return nil, nil
}
