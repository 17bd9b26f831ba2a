// Package inference talks to an Ollama compatible vision model endpoint.
package inference

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/text/unicode/norm"
	"golang.org/x/time/rate"

	"github.com/aiphotofinder/photofinder/internal/errors"
	"github.com/aiphotofinder/photofinder/internal/logging"
)

const (
	DefaultEndpoint   = "http://localhost:11434/api/generate"
	DefaultModel      = "llava:34b"
	DefaultTimeout    = 120 * time.Second
	DefaultMaxRetries = 3
	DefaultRetryDelay = 2 * time.Second

	// maxErrorBody bounds the response body kept in an Error
	maxErrorBody = 4096
)

var logger *slog.Logger

func init() {
	logger = logging.ForService("inference")
}

// Generator produces a text answer for an image and a prompt.
type Generator interface {
	Generate(ctx context.Context, image []byte, prompt string) (string, error)
}

// Config holds the settings of a Client.
type Config struct {
	Endpoint   string
	Model      string
	Timeout    time.Duration
	MaxRetries int           // retries after the first attempt
	RetryDelay time.Duration // initial backoff interval
	RateLimit  float64       // requests per second, 0 for unlimited
}

// Client is a Generator backed by the /api/generate endpoint.
type Client struct {
	cfg        Config
	httpClient *http.Client
	limiter    *rate.Limiter
}

type generateRequest struct {
	Model  string   `json:"model"`
	Prompt string   `json:"prompt"`
	Stream bool     `json:"stream"`
	Images []string `json:"images"`
}

type generateResponse struct {
	Response *string `json:"response"`
}

// NewClient returns a Client for cfg. Zero values fall back to the defaults.
func NewClient(cfg Config) *Client {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = DefaultRetryDelay
	}

	c := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
	if cfg.RateLimit > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	}
	return c
}

// Model returns the model name sent with every request.
func (c *Client) Model() string {
	return c.cfg.Model
}

// Generate sends image and prompt to the endpoint and returns the model's
// answer, normalised to NFC and trimmed. Transport errors, 429 and 5xx
// responses are retried with exponential backoff.
func (c *Client) Generate(ctx context.Context, image []byte, prompt string) (string, error) {
	body, err := json.Marshal(generateRequest{
		Model:  c.cfg.Model,
		Prompt: prompt,
		Stream: false,
		Images: []string{base64.StdEncoding.EncodeToString(image)},
	})
	if err != nil {
		return "", &Error{Err: fmt.Errorf("encode request: %w", err)}
	}

	var answer string
	attempt := 0
	operation := func() error {
		attempt++
		if err := ctx.Err(); err != nil {
			return backoff.Permanent(&Error{Err: err})
		}
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return backoff.Permanent(&Error{Err: err})
			}
		}

		result, err := c.post(ctx, body)
		if err != nil {
			if ctx.Err() != nil || !retryable(err) {
				return backoff.Permanent(err)
			}
			logger.Debug("inference request failed, will retry",
				"attempt", attempt,
				"endpoint", c.cfg.Endpoint,
				"error", err)
			return err
		}
		answer = result
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.cfg.RetryDelay
	b.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(c.cfg.MaxRetries)), ctx)

	start := time.Now()
	if err := backoff.Retry(operation, policy); err != nil {
		var ierr *Error
		if !errors.As(err, &ierr) {
			ierr = &Error{Err: err}
		}
		return "", errors.New(ierr).
			Component("inference").
			Category(ierr.ErrorCategory()).
			NetworkContext(c.cfg.Endpoint, c.cfg.Timeout).
			Context("attempts", attempt).
			Context("status_code", ierr.StatusCode).
			Timing("inference-generate", time.Since(start)).
			Build()
	}

	return answer, nil
}

// post performs a single request and decodes the answer
func (c *Client) post(ctx context.Context, body []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return "", &Error{Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &Error{Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &Error{StatusCode: resp.StatusCode, Err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode != http.StatusOK {
		return "", &Error{StatusCode: resp.StatusCode, Body: truncate(string(raw))}
	}

	var decoded generateResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", &Error{StatusCode: resp.StatusCode, Body: truncate(string(raw)), Err: fmt.Errorf("decode response: %w", err)}
	}
	if decoded.Response == nil {
		return "", &Error{StatusCode: resp.StatusCode, Body: truncate(string(raw)), Err: ErrMissingResponse}
	}

	return strings.TrimSpace(norm.NFC.String(*decoded.Response)), nil
}

// retryable reports whether a failed attempt may succeed when repeated
func retryable(err error) bool {
	var ierr *Error
	if !errors.As(err, &ierr) {
		return false
	}
	switch {
	case ierr.StatusCode == 0:
		return ierr.Err != nil && !errors.Is(ierr.Err, ErrMissingResponse)
	case ierr.StatusCode == http.StatusTooManyRequests:
		return true
	case ierr.StatusCode >= 500:
		return true
	default:
		return false
	}
}

// truncate caps s at maxErrorBody bytes without splitting a rune
func truncate(s string) string {
	if len(s) <= maxErrorBody {
		return s
	}
	cut := maxErrorBody
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
