package issuer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/babelforce/rtvoice-go/config"
	"github.com/babelforce/rtvoice-go/credentials"
)

var ErrUpstream = errors.New("upstream credential request failed")

// Minter issues the credential for one session.
type Minter interface {
	Mint(ctx context.Context, voice string) (credentials.Response, error)
}

type MinterFunc func(ctx context.Context, voice string) (credentials.Response, error)

func (f MinterFunc) Mint(ctx context.Context, voice string) (credentials.Response, error) {
	return f(ctx, voice)
}

// NewMinter returns the minter for the configured provider.
func NewMinter(cfg Config) Minter {
	if cfg.Provider == config.ProviderGemini {
		return apiKeyMinter{key: cfg.APIKey}
	}
	return &sessionMinter{cfg: cfg}
}

type apiKeyMinter struct {
	key string
}

func (m apiKeyMinter) Mint(context.Context, string) (credentials.Response, error) {
	return credentials.Response{APIKey: m.key}, nil
}

// sessionMinter creates an ephemeral realtime session key.
type sessionMinter struct {
	cfg Config
}

type sessionRequest struct {
	Model string `json:"model"`
	Voice string `json:"voice,omitempty"`
}

type sessionResponse struct {
	ID           string `json:"id"`
	ClientSecret struct {
		Value     string `json:"value"`
		ExpiresAt int64  `json:"expires_at"`
	} `json:"client_secret"`
}

func (m *sessionMinter) Mint(ctx context.Context, voice string) (credentials.Response, error) {
	body, err := json.Marshal(sessionRequest{Model: m.cfg.Model, Voice: voice})
	if err != nil {
		return credentials.Response{}, fmt.Errorf("marshal session request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.cfg.SessionsURL, bytes.NewReader(body))
	if err != nil {
		return credentials.Response{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+m.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	res, err := m.cfg.Client.Do(req)
	if err != nil {
		return credentials.Response{}, fmt.Errorf("%w: %w", ErrUpstream, err)
	}
	defer res.Body.Close()

	data, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return credentials.Response{}, fmt.Errorf("%w: read body: %w", ErrUpstream, err)
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return credentials.Response{}, fmt.Errorf("%w: unexpected status code %d", ErrUpstream, res.StatusCode)
	}

	var sess sessionResponse
	if err := json.Unmarshal(data, &sess); err != nil {
		return credentials.Response{}, fmt.Errorf("%w: decode session: %w", ErrUpstream, err)
	}
	if sess.ClientSecret.Value == "" {
		return credentials.Response{}, fmt.Errorf("%w: no client secret in session %s", ErrUpstream, sess.ID)
	}

	return credentials.Response{Credential: sess.ClientSecret.Value}, nil
}
