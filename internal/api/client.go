package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"console_go/internal/domain"
)

// Client talks to the platform REST API. It logs in lazily with the operator
// credentials, caches the bearer token, and retries exactly once on a 401
// (expired token).
type Client struct {
	baseURL  string
	username string
	password string
	httpc    *http.Client

	mu    sync.Mutex
	token string
}

func NewClient(baseURL, username, password string) *Client {
	return &Client{
		baseURL:  baseURL,
		username: username,
		password: password,
		httpc:    &http.Client{Timeout: 15 * time.Second},
	}
}

var _ domain.ConversationAPI = (*Client)(nil)

type loginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// Login authenticates and caches the bearer token. Callers normally do not
// need this; every request logs in on demand.
func (c *Client) Login(ctx context.Context) error {
	body, _ := json.Marshal(map[string]string{
		"username": c.username,
		"password": c.password,
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/auth/login", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusUnauthorized {
		return domain.ErrUnauthorized
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("login: unexpected status %d", resp.StatusCode)
	}

	var lr loginResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return fmt.Errorf("login: decode response: %w", err)
	}
	if lr.AccessToken == "" {
		return fmt.Errorf("login: empty access token")
	}

	c.mu.Lock()
	c.token = lr.AccessToken
	c.mu.Unlock()
	return nil
}

// Token returns a valid bearer token, logging in first if needed. The
// transport client shares it for the websocket handshake.
func (c *Client) Token(ctx context.Context) (string, error) {
	c.mu.Lock()
	tok := c.token
	c.mu.Unlock()
	if tok != "" {
		return tok, nil
	}
	if err := c.Login(ctx); err != nil {
		return "", err
	}
	c.mu.Lock()
	tok = c.token
	c.mu.Unlock()
	return tok, nil
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
	}

	attempt := func() (*http.Response, error) {
		tok, err := c.Token(ctx)
		if err != nil {
			return nil, err
		}
		var rd io.Reader
		if payload != nil {
			rd = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+tok)
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		return c.httpc.Do(req)
	}

	resp, err := attempt()
	if err != nil {
		return err
	}
	if resp.StatusCode == http.StatusUnauthorized {
		// Token likely expired; drop it and retry once.
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		c.mu.Lock()
		c.token = ""
		c.mu.Unlock()
		resp, err = attempt()
		if err != nil {
			return err
		}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return domain.ErrNotFound
	case resp.StatusCode == http.StatusConflict:
		return domain.ErrInvalidTransition
	case resp.StatusCode == http.StatusUnauthorized:
		return domain.ErrUnauthorized
	case resp.StatusCode == http.StatusForbidden:
		return domain.ErrForbidden
	case resp.StatusCode >= 400:
		return fmt.Errorf("%s %s: unexpected status %d", method, path, resp.StatusCode)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	} else {
		io.Copy(io.Discard, resp.Body)
	}
	return nil
}

type listEnvelope struct {
	Success bool                   `json:"success"`
	Data    []*domain.Conversation `json:"data"`
	Error   string                 `json:"error,omitempty"`
}

func (c *Client) ListConversations(ctx context.Context, scope domain.Scope) ([]*domain.Conversation, error) {
	q := url.Values{}
	if scope.Status != "" {
		q.Set("status", scope.Status)
	}
	if scope.PhoneLineID != nil {
		q.Set("phone_line_id", strconv.FormatInt(*scope.PhoneLineID, 10))
	}
	path := "/api/conversations"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var env listEnvelope
	if err := c.do(ctx, http.MethodGet, path, nil, &env); err != nil {
		return nil, err
	}
	if !env.Success {
		if env.Error != "" {
			return nil, fmt.Errorf("%w: %s", domain.ErrAPIFailure, env.Error)
		}
		return nil, domain.ErrAPIFailure
	}
	return env.Data, nil
}

func (c *Client) Takeover(ctx context.Context, conversationID int64) error {
	path := fmt.Sprintf("/api/conversations/%d/takeover", conversationID)
	return c.do(ctx, http.MethodPost, path, nil, nil)
}

func (c *Client) SetFlag(ctx context.Context, conversationID int64, flag domain.Flag, value bool) error {
	path := fmt.Sprintf("/api/conversations/%d/flags", conversationID)
	return c.do(ctx, http.MethodPatch, path, map[string]any{
		"flag":  flag,
		"value": value,
	}, nil)
}

func (c *Client) SendMessage(ctx context.Context, conversationID int64, content string) error {
	if content == "" {
		return domain.ErrInvalidInput
	}
	path := fmt.Sprintf("/api/conversations/%d/messages", conversationID)
	return c.do(ctx, http.MethodPost, path, map[string]string{"content": content}, nil)
}

func (c *Client) ShareSchedule(ctx context.Context, conversationID int64) error {
	path := fmt.Sprintf("/api/conversations/%d/schedule-share", conversationID)
	return c.do(ctx, http.MethodPost, path, nil, nil)
}
