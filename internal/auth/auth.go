// Package auth resolves connection credentials to player identities.
package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

var (
	// ErrInvalidToken indicates the credential is definitively invalid.
	ErrInvalidToken = errors.New("auth: invalid token")

	// ErrUnavailable indicates the identity service is unreachable.
	// Callers may choose to fail open (allow) or fail closed (reject).
	ErrUnavailable = errors.New("auth: unavailable")
)

// Identity is a resolved player.
type Identity struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName,omitempty"`
}

// Resolver turns a connection credential into a player identity.
type Resolver interface {
	// Resolve checks a token and returns the player it belongs to.
	// Returns:
	//   - (*Identity, nil) if the token is valid
	//   - (nil, nil) if no identity applies (spectator session)
	//   - (nil, ErrInvalidToken) if the token is definitively invalid
	//   - (nil, ErrUnavailable) if the identity service is unavailable
	Resolve(ctx context.Context, token string) (*Identity, error)
}

// HTTPResolver resolves tokens via HTTP callback to an external identity
// service.
type HTTPResolver struct {
	url    string
	client *http.Client
	secret string
}

// NewHTTPResolver creates a resolver that calls an external HTTP endpoint.
// The secret, if set, is sent on every request so the service can tell
// cardroom instances from the open internet.
func NewHTTPResolver(url, secret string) *HTTPResolver {
	return &HTTPResolver{
		url:    url,
		secret: secret,
		client: &http.Client{
			Timeout: 500 * time.Millisecond, // Align with context timeout
		},
	}
}

type resolveRequest struct {
	Token string `json:"token"`
}

type resolveResponse struct {
	Valid       bool   `json:"valid"`
	ID          string `json:"id,omitempty"`
	DisplayName string `json:"displayName,omitempty"`
	Error       string `json:"error,omitempty"`
}

func (r *HTTPResolver) Resolve(ctx context.Context, token string) (*Identity, error) {
	// An absent credential is a spectator, not an error.
	if token == "" {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()

	reqBody, err := json.Marshal(resolveRequest{Token: token})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if r.secret != "" {
		req.Header.Set("X-Service-Secret", r.secret)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		// Network errors, timeouts, etc. = unavailable
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		// Success - decode response
	case http.StatusUnauthorized, http.StatusForbidden:
		// Definitive rejection
		return nil, ErrInvalidToken
	case http.StatusTooManyRequests, http.StatusInternalServerError,
		http.StatusBadGateway, http.StatusServiceUnavailable:
		// Service issues
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	default:
		// Treat unexpected status as unavailable
		return nil, fmt.Errorf("%w: unexpected status %d", ErrUnavailable, resp.StatusCode)
	}

	// Limit response body to 1MB to avoid pathological responses
	limitedReader := io.LimitReader(resp.Body, 1<<20)

	var body resolveResponse
	if err := json.NewDecoder(limitedReader).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: decode error: %v", ErrUnavailable, err)
	}

	if !body.Valid || body.ID == "" {
		return nil, ErrInvalidToken
	}

	return &Identity{ID: body.ID, DisplayName: body.DisplayName}, nil
}

// NoopResolver trusts the presented token as the player id (dev mode).
type NoopResolver struct{}

// NewNoopResolver creates a resolver for local development: whatever name a
// client presents is who they are.
func NewNoopResolver() *NoopResolver {
	return &NoopResolver{}
}

func (r *NoopResolver) Resolve(ctx context.Context, token string) (*Identity, error) {
	if token == "" {
		return nil, nil
	}
	return &Identity{ID: token, DisplayName: token}, nil
}
