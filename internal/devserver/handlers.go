package devserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"console_go/internal/domain"
	"console_go/internal/security"
)

type contextKey string

const operatorContextKey contextKey = "currentOperator"

// CurrentOperator extracts the authenticated operator username, if any.
func CurrentOperator(r *http.Request) string {
	if v := r.Context().Value(operatorContextKey); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// AuthMiddleware validates the Bearer token and attaches the operator to the
// request context.
func AuthMiddleware(tokens *security.TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" || !strings.HasPrefix(strings.ToLower(authHeader), "bearer ") {
				http.Error(w, "missing or invalid Authorization header", http.StatusUnauthorized)
				return
			}
			tokenStr := strings.TrimSpace(authHeader[len("Bearer "):])

			claims, err := tokens.Parse(tokenStr)
			if err != nil {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}
			sub, _ := claims["sub"].(string)
			if sub == "" {
				http.Error(w, "invalid token subject", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), operatorContextKey, sub)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

func handleLogin(operators domain.OperatorRepository, hasher security.PasswordHasher, tokens *security.TokenService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
			return
		}

		hashed, err := operators.GetHashedPassword(r.Context(), req.Username)
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid credentials"})
			return
		}
		if err := hasher.Verify(req.Password, hashed); err != nil {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid credentials"})
			return
		}

		token, err := tokens.CreateForOperator(req.Username)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to create token"})
			return
		}
		writeJSON(w, http.StatusOK, tokenResponse{AccessToken: token, TokenType: "bearer"})
	}
}

func scopeFromQuery(r *http.Request) (domain.Scope, error) {
	scope := domain.Scope{Status: r.URL.Query().Get("status")}
	if scope.Status == "" {
		scope.Status = domain.StatusActive
	}
	switch scope.Status {
	case domain.StatusActive, domain.StatusArchived, domain.StatusAttention:
	default:
		return scope, domain.ErrInvalidInput
	}
	if v := r.URL.Query().Get("phone_line_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return scope, domain.ErrInvalidInput
		}
		scope.PhoneLineID = &id
	}
	return scope, nil
}

func handleListConversations(store domain.ConversationStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope, err := scopeFromQuery(r)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": "invalid scope"})
			return
		}
		convs, err := store.List(r.Context(), scope)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "error": err.Error()})
			return
		}
		if convs == nil {
			convs = []*domain.Conversation{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": convs})
	}
}

func conversationID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "conversationID"), 10, 64)
}

func handleTakeover(store domain.ConversationStore, hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := conversationID(r)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid conversation id"})
			return
		}
		err = store.SetControlMode(r.Context(), id, domain.ControlHuman)
		switch {
		case errors.Is(err, domain.ErrNotFound):
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "conversation not found"})
			return
		case errors.Is(err, domain.ErrInvalidTransition):
			writeJSON(w, http.StatusConflict, map[string]string{"error": "conversation is not under AI control"})
			return
		case err != nil:
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		hub.Broadcast(domain.Event{Kind: domain.EventControlModeChanged, ConversationID: id})
		writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
	}
}

type flagRequest struct {
	Flag  domain.Flag `json:"flag"`
	Value bool        `json:"value"`
}

func handleSetFlag(store domain.ConversationStore, hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := conversationID(r)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid conversation id"})
			return
		}
		var req flagRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
			return
		}
		err = store.SetFlag(r.Context(), id, req.Flag, req.Value)
		switch {
		case errors.Is(err, domain.ErrNotFound):
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "conversation not found"})
			return
		case errors.Is(err, domain.ErrInvalidInput):
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown flag"})
			return
		case err != nil:
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		hub.Broadcast(domain.Event{Kind: domain.EventConversationUpdated, ConversationID: id})
		writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
	}
}

type messageRequest struct {
	Content string `json:"content"`
}

func handleSendMessage(store domain.ConversationStore, hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := conversationID(r)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid conversation id"})
			return
		}
		var req messageRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Content == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "message requires non-empty content"})
			return
		}
		sender := CurrentOperator(r)
		if sender == "" {
			sender = "operator"
		}
		err = store.RecordMessage(r.Context(), id, req.Content, sender, time.Now().UTC(), false)
		if errors.Is(err, domain.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "conversation not found"})
			return
		}
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		hub.Broadcast(domain.Event{Kind: domain.EventNewMessage, ConversationID: id})
		writeJSON(w, http.StatusCreated, map[string]string{"status": "success"})
	}
}

func handleShareSchedule(store domain.ConversationStore, hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := conversationID(r)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid conversation id"})
			return
		}
		sender := CurrentOperator(r)
		if sender == "" {
			sender = "operator"
		}
		content := "You can book a time that works for you here: https://example.test/book"
		err = store.RecordMessage(r.Context(), id, content, sender, time.Now().UTC(), false)
		if errors.Is(err, domain.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "conversation not found"})
			return
		}
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		hub.Broadcast(domain.Event{Kind: domain.EventNewMessage, ConversationID: id})
		writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
	}
}
