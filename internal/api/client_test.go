package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticToken string

func (s staticToken) Token() string { return string(s) }

func newTestClient(server *httptest.Server, token string) *Client {
	return NewClient(server.URL, 5*time.Second, staticToken(token))
}

func TestFetchProfileSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/users/me", r.URL.Path)
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		w.Write([]byte(`{"success":true,"message":"","data":{"id":"u1","firstName":"Ana","friends":[]}}`))
	}))
	defer server.Close()

	profile, err := newTestClient(server, "tok-1").FetchProfile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "u1", profile.ID)
	assert.Equal(t, "Ana", profile.FirstName)
}

func TestChatHistoryPassesQueryParams(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chats/history", r.URL.Path)
		assert.Equal(t, "u1", r.URL.Query().Get("userId"))
		assert.Equal(t, "f1", r.URL.Query().Get("friendId"))
		assert.Equal(t, "2", r.URL.Query().Get("page"))
		w.Write([]byte(`{"success":true,"data":{"messages":[{"id":"m1"}],"hasMore":true}}`))
	}))
	defer server.Close()

	page, err := newTestClient(server, "tok").ChatHistory(context.Background(), "u1", "f1", 2)
	require.NoError(t, err)
	require.Len(t, page.Messages, 1)
	assert.True(t, page.HasMore)
}

func TestUnauthorizedFoldsToNotAuthenticated(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	_, err := newTestClient(server, "stale").FetchProfile(context.Background())
	require.ErrorIs(t, err, ErrNotAuthenticated)
}

func TestRejectedEnvelopeCarriesServerMessage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":false,"message":"summary and offense required"}`))
	}))
	defer server.Close()

	_, err := newTestClient(server, "tok").FetchProfile(context.Background())
	require.ErrorIs(t, err, ErrRejected)
	assert.Contains(t, err.Error(), "summary and offense required")
}

func TestUndecodableBodyFoldsToMalformed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>not json</html>`))
	}))
	defer server.Close()

	_, err := newTestClient(server, "tok").FetchProfile(context.Background())
	require.ErrorIs(t, err, ErrMalformed)
}

func TestNetworkErrorFoldsToTransport(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	_, err := newTestClient(server, "tok").FetchProfile(context.Background())
	require.ErrorIs(t, err, ErrTransport)
}
