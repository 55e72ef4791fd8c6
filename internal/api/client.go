package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Error is a non-2xx response from an authentication endpoint.
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("auth endpoint returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("auth endpoint returned status %d: %s", e.StatusCode, e.Message)
}

// TokenResponse is the token pair issued by login and refresh. RefreshToken
// may be empty on refresh; the caller then retains the previous one.
type TokenResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

type loginRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// errorBody covers the message shapes the backend emits.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Client calls the backend's authentication endpoints.
type Client struct {
	http        *http.Client
	baseURL     string
	loginPath   string
	refreshPath string
	userAgent   string
}

// NewClient creates an endpoint client. baseURL is required; empty paths fall
// back to /auth/login and /auth/refresh.
func NewClient(httpClient *http.Client, baseURL, loginPath, refreshPath, userAgent string) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("api client requires a base URL")
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if loginPath == "" {
		loginPath = "/auth/login"
	}
	if refreshPath == "" {
		refreshPath = "/auth/refresh"
	}

	return &Client{
		http:        httpClient,
		baseURL:     strings.TrimRight(baseURL, "/"),
		loginPath:   loginPath,
		refreshPath: refreshPath,
		userAgent:   userAgent,
	}, nil
}

// Login exchanges credentials for a token pair.
func (c *Client) Login(ctx context.Context, identifier, password string) (TokenResponse, error) {
	return c.post(ctx, c.loginPath, loginRequest{Identifier: identifier, Password: password}, true)
}

// Refresh exchanges a refresh token for a new pair. Exactly one attempt is
// made; callers own any coordination.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (TokenResponse, error) {
	return c.post(ctx, c.refreshPath, refreshRequest{RefreshToken: refreshToken}, false)
}

func (c *Client) post(ctx context.Context, path string, payload any, requireRefresh bool) (TokenResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return TokenResponse{}, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return TokenResponse{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return TokenResponse{}, fmt.Errorf("call %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return TokenResponse{}, fmt.Errorf("read %s response: %w", path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return TokenResponse{}, &Error{
			StatusCode: resp.StatusCode,
			Message:    serverMessage(data),
		}
	}

	var tokens TokenResponse
	if err := json.Unmarshal(data, &tokens); err != nil {
		return TokenResponse{}, fmt.Errorf("decode %s response: %w", path, err)
	}
	if tokens.AccessToken == "" {
		return TokenResponse{}, &Error{StatusCode: resp.StatusCode, Message: "response missing access token"}
	}
	if requireRefresh && tokens.RefreshToken == "" {
		return TokenResponse{}, &Error{StatusCode: resp.StatusCode, Message: "response missing refresh token"}
	}

	return tokens, nil
}

func serverMessage(data []byte) string {
	var body errorBody
	if err := json.Unmarshal(data, &body); err != nil {
		return ""
	}
	if body.Error != "" {
		return body.Error
	}
	return body.Message
}
