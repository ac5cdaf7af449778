package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"skywatch/internal/config"
	"skywatch/internal/model"
)

// Verifier answers "verify token, return user id". The engine trusts the
// returned id as-is; issuing tokens is someone else's job.
type Verifier interface {
	Verify(ctx context.Context, token string) (string, error)
}

func New(cfg config.AuthConfig) (Verifier, error) {
	switch cfg.Mode {
	case "static":
		return NewStatic(cfg.Tokens), nil
	case "remote":
		return NewRemote(cfg), nil
	default:
		return nil, fmt.Errorf("unsupported auth mode: %s", cfg.Mode)
	}
}

// StaticVerifier resolves tokens from a fixed map, for dev and tests.
type StaticVerifier struct {
	tokens map[string]string
}

func NewStatic(tokens map[string]string) *StaticVerifier {
	if tokens == nil {
		tokens = make(map[string]string)
	}
	return &StaticVerifier{tokens: tokens}
}

func (v *StaticVerifier) Verify(_ context.Context, token string) (string, error) {
	if token == "" {
		return "", model.ErrUnauthorized
	}
	userID, ok := v.tokens[token]
	if !ok || userID == "" {
		return "", model.ErrUnauthorized
	}
	return userID, nil
}

// RemoteVerifier delegates to an external auth service over HTTP.
type RemoteVerifier struct {
	url  string
	http *http.Client
}

func NewRemote(cfg config.AuthConfig) *RemoteVerifier {
	return &RemoteVerifier{
		url:  cfg.VerifyURL,
		http: &http.Client{Timeout: cfg.Timeout},
	}
}

func (v *RemoteVerifier) Verify(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", model.ErrUnauthorized
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := v.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("auth service: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return "", model.ErrUnauthorized
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("auth service: status %d", resp.StatusCode)
	}
	var body struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("auth service: %w", err)
	}
	if body.ID == "" {
		return "", model.ErrUnauthorized
	}
	return body.ID, nil
}
