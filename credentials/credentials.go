// Package credentials requests short lived connection credentials from the
// host's issuing endpoint.
package credentials

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

var ErrCredential = errors.New("credential request failed")

// Request is the body sent to the issuing endpoint.
type Request struct {
	Voice string `json:"voice"`
}

// Response is the body returned by the issuing endpoint. Depending on the
// provider either Credential or APIKey is set.
type Response struct {
	Credential string `json:"credential,omitempty"`
	APIKey     string `json:"apiKey,omitempty"`
}

func (r Response) Value() string {
	if r.Credential != "" {
		return r.Credential
	}
	return r.APIKey
}

// Source issues one credential per session.
type Source interface {
	Credential(ctx context.Context, voice string) (string, error)
}

type SourceFunc func(ctx context.Context, voice string) (string, error)

func (f SourceFunc) Credential(ctx context.Context, voice string) (string, error) {
	return f(ctx, voice)
}

// Static always returns the same credential.
func Static(credential string) Source {
	return SourceFunc(func(context.Context, string) (string, error) {
		return credential, nil
	})
}

type HTTPConfig struct {
	URL     string
	Timeout time.Duration
	Header  http.Header
	Client  *http.Client
}

func (c *HTTPConfig) Defaults() {
	if c.Timeout == 0 {
		c.Timeout = 10 * time.Second
	}
	if c.Client == nil {
		c.Client = http.DefaultClient
	}
}

// HTTPSource POSTs {voice} to the issuing endpoint.
type HTTPSource struct {
	config HTTPConfig
	logger *slog.Logger
}

func NewHTTPSource(config HTTPConfig) *HTTPSource {
	config.Defaults()
	return &HTTPSource{
		config: config,
		logger: slog.Default().With(slog.String("component", "credentials")),
	}
}

func (s *HTTPSource) Credential(ctx context.Context, voice string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	body, err := json.Marshal(Request{Voice: voice})
	if err != nil {
		return "", fmt.Errorf("%w: marshal request: %w", ErrCredential, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.URL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: create request: %w", ErrCredential, err)
	}
	for k, v := range s.config.Header {
		req.Header[k] = v
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := s.config.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrCredential, err)
	}
	defer res.Body.Close()

	data, err := io.ReadAll(io.LimitReader(res.Body, 64<<10))
	if err != nil {
		return "", fmt.Errorf("%w: read response: %w", ErrCredential, err)
	}

	if res.StatusCode < 200 || res.StatusCode > 299 {
		s.logger.Warn("credential endpoint rejected request", slog.Int("status", res.StatusCode))
		return "", fmt.Errorf("%w: status %d: %s", ErrCredential, res.StatusCode, bytes.TrimSpace(data))
	}

	var out Response
	if err := json.Unmarshal(data, &out); err != nil {
		return "", fmt.Errorf("%w: decode response: %w", ErrCredential, err)
	}
	if out.Value() == "" {
		return "", fmt.Errorf("%w: response carries no credential", ErrCredential)
	}

	return out.Value(), nil
}

var _ Source = &HTTPSource{}
