package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"console_go/internal/domain"
)

func loginHandler(t *testing.T, token string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var creds map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&creds))
		if creds["username"] != "operator" || creds["password"] != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"access_token": token, "token_type": "bearer"})
	}
}

func TestListConversationsSendsScopeAndBearer(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/login", loginHandler(t, "tok-1"))
	mux.HandleFunc("/api/conversations", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		assert.Equal(t, "needs_attention", r.URL.Query().Get("status"))
		assert.Equal(t, "2", r.URL.Query().Get("phone_line_id"))
		json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"data": []map[string]any{
				{"id": 1, "customer_phone": "+15551230001", "platform": "sms", "control_mode": "ai"},
			},
		})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := NewClient(srv.URL, "operator", "secret")
	line := int64(2)
	convs, err := c.ListConversations(context.Background(), domain.Scope{Status: domain.StatusAttention, PhoneLineID: &line})
	require.NoError(t, err)
	require.Len(t, convs, 1)
	assert.Equal(t, int64(1), convs[0].ID)
	assert.Equal(t, domain.PlatformSMS, convs[0].Platform)
}

func TestListConversationsEnvelopeFailure(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/login", loginHandler(t, "tok-1"))
	mux.HandleFunc("/api/conversations", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"success": false, "error": "shard unavailable"})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := NewClient(srv.URL, "operator", "secret")
	_, err := c.ListConversations(context.Background(), domain.Scope{Status: domain.StatusActive})
	assert.ErrorIs(t, err, domain.ErrAPIFailure)
	assert.Contains(t, err.Error(), "shard unavailable")
}

func TestExpiredTokenRetriesOnce(t *testing.T) {
	var logins, rejected atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		logins.Add(1)
		json.NewEncoder(w).Encode(map[string]string{"access_token": "tok-" + string(rune('0'+logins.Load())), "token_type": "bearer"})
	})
	mux.HandleFunc("/api/conversations", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "Bearer tok-1" {
			rejected.Add(1)
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"success": true, "data": []any{}})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := NewClient(srv.URL, "operator", "secret")
	require.NoError(t, c.Login(context.Background()))

	convs, err := c.ListConversations(context.Background(), domain.Scope{Status: domain.StatusActive})
	require.NoError(t, err)
	assert.Empty(t, convs)
	assert.Equal(t, int32(1), rejected.Load())
	assert.Equal(t, int32(2), logins.Load())
}

func TestStatusCodeMapping(t *testing.T) {
	status := http.StatusOK
	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/login", loginHandler(t, "tok-1"))
	mux.HandleFunc("/api/conversations/7/takeover", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := NewClient(srv.URL, "operator", "secret")
	ctx := context.Background()

	status = http.StatusConflict
	assert.ErrorIs(t, c.Takeover(ctx, 7), domain.ErrInvalidTransition)

	status = http.StatusNotFound
	assert.ErrorIs(t, c.Takeover(ctx, 7), domain.ErrNotFound)

	status = http.StatusForbidden
	assert.ErrorIs(t, c.Takeover(ctx, 7), domain.ErrForbidden)

	status = http.StatusOK
	assert.NoError(t, c.Takeover(ctx, 7))
}

func TestSendMessageRejectsEmptyContentLocally(t *testing.T) {
	c := NewClient("http://unused", "operator", "secret")
	err := c.SendMessage(context.Background(), 1, "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestSetFlagBody(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/login", loginHandler(t, "tok-1"))
	mux.HandleFunc("/api/conversations/3/flags", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "pinned", body["flag"])
		assert.Equal(t, true, body["value"])
		w.WriteHeader(http.StatusOK)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := NewClient(srv.URL, "operator", "secret")
	require.NoError(t, c.SetFlag(context.Background(), 3, domain.FlagPinned, true))
}

func TestLoginBadCredentials(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/login", loginHandler(t, "tok-1"))
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := NewClient(srv.URL, "operator", "wrong")
	assert.ErrorIs(t, c.Login(context.Background()), domain.ErrUnauthorized)
}
