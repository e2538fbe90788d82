// Package backend is the transport adapter for the remote secret service. It
// issues the two calls the client needs (create, retrieve) and translates
// low-level transport faults into categorized errors. It performs no retries
// and no caching; retry policy belongs to the retrieval flow.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/haukened/peek/internal/domain"
)

// DefaultTimeout bounds every request to the service.
const DefaultTimeout = 30 * time.Second

// maxResponseBytes caps how much of a response body is read. Failure messages
// and secret payloads are both small; anything larger is misbehavior.
const maxResponseBytes = 1 << 20

// Client talks to the remote secret service. Safe for concurrent use.
type Client struct {
	baseURL string
	http    *http.Client
	log     *slog.Logger
}

// New returns a Client for the service at baseURL. A non-positive timeout
// falls back to DefaultTimeout. If log is nil, slog.Default() is used.
func New(baseURL string, timeout time.Duration, log *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		log:     log,
	}
}

type createRequest struct {
	Secret     string `json:"secret"`
	TTL        int64  `json:"ttl"`
	Passphrase string `json:"passphrase,omitempty"`
}

type createResponse struct {
	SecretKey string `json:"secret_key"`
}

type retrieveRequest struct {
	Passphrase string `json:"passphrase,omitempty"`
}

// retrieveResponse also carries the embedded failure marker the service is
// known to return with a 200 status.
type retrieveResponse struct {
	Value string `json:"value"`
	Error string `json:"error,omitempty"`
}

// Create submits content with a TTL and optional passphrase and returns the
// key addressing the new secret. Non-2xx responses become *APIError carrying
// the service's status and message verbatim.
func (c *Client) Create(ctx context.Context, content string, ttl time.Duration, passphrase string) (domain.SecretKey, error) {
	body, err := c.post(ctx, "/api/v1/share", createRequest{
		Secret:     content,
		TTL:        int64(ttl.Seconds()),
		Passphrase: passphrase,
	})
	if err != nil {
		return "", err
	}
	var out createResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("decode create response: %w", err)
	}
	key, err := domain.ParseKey(out.SecretKey)
	if err != nil {
		return "", fmt.Errorf("service returned malformed key: %w", err)
	}
	return key, nil
}

// Retrieve attempts to consume the secret addressed by key, optionally with a
// passphrase. On success it returns the plaintext content and discards every
// other response field. Any response that signals failure, including a 200
// carrying an embedded error marker, is returned as *APIError so the
// classifier sees the raw message; content is never returned alongside an
// error.
func (c *Client) Retrieve(ctx context.Context, key domain.SecretKey, passphrase string) (string, error) {
	body, err := c.post(ctx, "/api/v1/secret/"+url.PathEscape(key.String()), retrieveRequest{Passphrase: passphrase})
	if err != nil {
		return "", err
	}
	var out retrieveResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("decode retrieve response: %w", err)
	}
	if out.Error != "" {
		// The service sometimes reports failure inside a 2xx body.
		return "", &APIError{Status: http.StatusOK, Message: out.Error}
	}
	return out.Value, nil
}

// post issues a JSON POST and returns the raw 2xx body. Transport faults map
// to ErrTimeout / ErrNoResponse; HTTP failures map to *APIError.
func (c *Client) post(ctx context.Context, path string, payload any) ([]byte, error) {
	buf, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(buf))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, mapTransportFault(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, mapTransportFault(err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := failureMessage(body)
		c.log.Debug("backend failure response", "path", path, "status", resp.StatusCode)
		return nil, &APIError{Status: resp.StatusCode, Message: msg}
	}
	return body, nil
}

// mapTransportFault categorizes request errors that never yielded a response.
func mapTransportFault(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrNoResponse, err)
}

// failureMessage extracts the free-text message from a failure body. The
// service is inconsistent: sometimes {"message": ...}, sometimes
// {"error": ...}, sometimes plain text. Whatever text it supplied is passed
// through verbatim.
func failureMessage(body []byte) string {
	var structured struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &structured); err == nil {
		if structured.Message != "" {
			return structured.Message
		}
		if structured.Error != "" {
			return structured.Error
		}
	}
	return strings.TrimSpace(string(body))
}
