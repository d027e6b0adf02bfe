package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

var (
	ErrInvalidCredentials    = errors.New("invalid login credentials")
	ErrProviderNotConfigured = errors.New("auth provider not configured")
)

// Session is what the provider hands back after a successful sign-in.
// AccessToken is empty when sign-up still needs email confirmation.
type Session struct {
	AccessToken string
	ExpiresAt   time.Time
	User        User
}

type Provider interface {
	SignIn(ctx context.Context, email, password string) (*Session, error)
	SignUp(ctx context.Context, email, password string) (*Session, error)
}

// GoTrue talks to a GoTrue-compatible auth REST API.
type GoTrue struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewGoTrue(baseURL, apiKey string) *GoTrue {
	return &GoTrue{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	ExpiresAt   int64  `json:"expires_at"`
	User        struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	} `json:"user"`

	// sign-up without a session returns the bare user object
	ID    string `json:"id"`
	Email string `json:"email"`
}

type errorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	Msg              string `json:"msg"`
}

func (g *GoTrue) SignIn(ctx context.Context, email, password string) (*Session, error) {
	return g.post(ctx, "/auth/v1/token?grant_type=password", credentials{Email: email, Password: password})
}

func (g *GoTrue) SignUp(ctx context.Context, email, password string) (*Session, error) {
	return g.post(ctx, "/auth/v1/signup", credentials{Email: email, Password: password})
}

func (g *GoTrue) post(ctx context.Context, path string, body any) (*Session, error) {
	if g.baseURL == "" {
		return nil, ErrProviderNotConfigured
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", g.apiKey)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("auth request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnauthorized {
		var e errorResponse
		_ = json.Unmarshal(data, &e)
		log.Debug().Int("status", resp.StatusCode).Str("error", e.Error).Str("msg", e.Msg).Msg("Auth provider rejected credentials")
		return nil, ErrInvalidCredentials
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("auth provider returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var tr tokenResponse
	if err := json.Unmarshal(data, &tr); err != nil {
		return nil, fmt.Errorf("decode auth response: %w", err)
	}

	s := &Session{
		AccessToken: tr.AccessToken,
		User:        User{ID: tr.User.ID, Email: tr.User.Email},
	}
	if s.User.ID == "" {
		s.User = User{ID: tr.ID, Email: tr.Email}
	}
	switch {
	case tr.ExpiresAt > 0:
		s.ExpiresAt = time.Unix(tr.ExpiresAt, 0)
	case tr.ExpiresIn > 0:
		s.ExpiresAt = time.Now().Add(time.Duration(tr.ExpiresIn) * time.Second)
	}

	return s, nil
}
