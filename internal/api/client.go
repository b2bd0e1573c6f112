// Package api is the REST client for the Kratos Hub backend. Every
// call normalizes the server's uniform {success, message, data}
// envelope and folds failures into a small tagged taxonomy so callers
// can tell "not authenticated" apart from transport and decode
// failures.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/myapplejuice/final-project-the-kratos-hub-sub001/internal/models"
	"github.com/myapplejuice/final-project-the-kratos-hub-sub001/internal/observability"
)

var (
	// ErrNotAuthenticated marks 401 responses and missing tokens.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrTransport marks network-level failures.
	ErrTransport = errors.New("transport failure")
	// ErrMalformed marks bodies that do not decode into the envelope.
	ErrMalformed = errors.New("malformed response")
	// ErrRejected marks envelopes with success=false; the server
	// message is wrapped alongside.
	ErrRejected = errors.New("request rejected")
)

// Envelope is the uniform response shape of every backend endpoint.
type Envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// TokenSource yields the current bearer token; empty means logged out.
type TokenSource interface {
	Token() string
}

// HistoryPage is one page of chat history, newest page first.
type HistoryPage struct {
	Messages []models.ChatMessage `json:"messages"`
	HasMore  bool                 `json:"hasMore"`
}

// Client talks to the backend over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
	tokens  TokenSource
}

// NewClient builds a Client. A nil tokens source means unauthenticated
// calls only.
func NewClient(baseURL string, timeout time.Duration, tokens TokenSource) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		tokens:  tokens,
	}
}

// FetchProfile loads the authenticated user's profile record.
func (c *Client) FetchProfile(ctx context.Context) (models.Profile, error) {
	var profile models.Profile
	if err := c.get(ctx, "/users/me", nil, &profile); err != nil {
		return models.Profile{}, err
	}
	return profile, nil
}

// ChatHistory fetches one page of messages between the user and a
// friend.
func (c *Client) ChatHistory(ctx context.Context, userID, friendID string, page int) (HistoryPage, error) {
	params := url.Values{}
	params.Set("userId", userID)
	params.Set("friendId", friendID)
	params.Set("page", strconv.Itoa(page))

	var out HistoryPage
	if err := c.get(ctx, "/chats/history", params, &out); err != nil {
		return HistoryPage{}, err
	}
	return out, nil
}

func (c *Client) get(ctx context.Context, route string, params url.Values, out any) error {
	ctx, span := otel.Tracer("kratos-hub/api").Start(ctx, "api.get "+route)
	defer span.End()

	target := c.baseURL + route
	if len(params) > 0 {
		target += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransport, err)
	}
	if c.tokens != nil {
		if token := c.tokens.Token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		observability.IncAPIRequest(route, "transport_error")
		return fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		observability.IncAPIRequest(route, "unauthorized")
		return ErrNotAuthenticated
	}

	var envelope Envelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		observability.IncAPIRequest(route, "malformed")
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if !envelope.Success {
		observability.IncAPIRequest(route, "rejected")
		if envelope.Message == "" {
			return ErrRejected
		}
		return fmt.Errorf("%w: %s", ErrRejected, envelope.Message)
	}

	if out != nil && len(envelope.Data) > 0 {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			observability.IncAPIRequest(route, "malformed")
			return fmt.Errorf("%w: %v", ErrMalformed, err)
		}
	}
	observability.IncAPIRequest(route, "ok")
	return nil
}
