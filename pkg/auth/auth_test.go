package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "super-secret-jwt-token-with-at-least-32-characters"

func newRouter(a *Authenticator) *chi.Mux {
	r := chi.NewRouter()
	r.Use(a.Verifier())
	r.Use(a.Identify)
	r.Get("/whoami", func(w http.ResponseWriter, r *http.Request) {
		if u, ok := GetUser(r.Context()); ok {
			w.Write([]byte(u.ID + "|" + u.Email))
			return
		}
		w.Write([]byte("anonymous"))
	})
	r.With(RequireUser).Get("/api/private", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	r.With(RequireLogin).Get("/dashboard", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	return r
}

func TestIdentify(t *testing.T) {
	a := NewAuthenticator(testSecret, false)
	r := newRouter(a)

	token, err := a.IssueToken(User{ID: "user-1", Email: "a@example.com"}, time.Hour)
	require.NoError(t, err)

	t.Run("bearer header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)
		assert.Equal(t, "user-1|a@example.com", rr.Body.String())
	})

	t.Run("cookie", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		req.AddCookie(&http.Cookie{Name: CookieName, Value: token})
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)
		assert.Equal(t, "user-1|a@example.com", rr.Body.String())
	})

	t.Run("anonymous", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)
		assert.Equal(t, "anonymous", rr.Body.String())
	})

	t.Run("wrong secret", func(t *testing.T) {
		other := NewAuthenticator("another-secret-another-secret-another", false)
		forged, err := other.IssueToken(User{ID: "user-1"}, time.Hour)
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		req.Header.Set("Authorization", "Bearer "+forged)
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)
		assert.Equal(t, "anonymous", rr.Body.String())
	})

	t.Run("expired", func(t *testing.T) {
		expired, err := a.IssueToken(User{ID: "user-1"}, -time.Hour)
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		req.Header.Set("Authorization", "Bearer "+expired)
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)
		assert.Equal(t, "anonymous", rr.Body.String())
	})
}

func TestRequireUser(t *testing.T) {
	a := NewAuthenticator(testSecret, false)
	r := newRouter(a)

	req := httptest.NewRequest(http.MethodGet, "/api/private", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.JSONEq(t, `{"error":"Unauthorized"}`, rr.Body.String())

	token, err := a.IssueToken(User{ID: "user-1"}, time.Hour)
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/api/private", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestRequireLogin(t *testing.T) {
	r := newRouter(NewAuthenticator(testSecret, false))

	req := httptest.NewRequest(http.MethodGet, "/dashboard?success=true", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusFound, rr.Code)
	assert.Equal(t, "/login?redirect=%2Fdashboard%3Fsuccess%3Dtrue", rr.Header().Get("Location"))
}

func TestSafeRedirect(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"/link/abc", "/link/abc"},
		{"", "/dashboard"},
		{"https://evil.example.com", "/dashboard"},
		{"//evil.example.com", "/dashboard"},
		{"/\\evil.example.com", "/dashboard"},
	}
	for _, tt := range tests {
		if got := SafeRedirect(tt.in, "/dashboard"); got != tt.want {
			t.Fatalf("SafeRedirect(%q): expected %q; got %q", tt.in, tt.want, got)
		}
	}
}

func TestSessionCookie(t *testing.T) {
	a := NewAuthenticator(testSecret, true)
	expires := time.Now().Add(time.Hour)

	rr := httptest.NewRecorder()
	a.SetSession(rr, &Session{AccessToken: "tok", ExpiresAt: expires})
	cookies := rr.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, CookieName, cookies[0].Name)
	assert.Equal(t, "tok", cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)
	assert.True(t, cookies[0].Secure)

	rr = httptest.NewRecorder()
	a.ClearSession(rr)
	cookies = rr.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "", cookies[0].Value)
	assert.True(t, cookies[0].MaxAge < 0)
}

func TestGoTrue(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("apikey") != "anon" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		var c credentials
		if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		switch r.URL.Path {
		case "/auth/v1/token":
			if r.URL.Query().Get("grant_type") != "password" || c.Password != "correct" {
				w.WriteHeader(http.StatusBadRequest)
				w.Write([]byte(`{"error":"invalid_grant","error_description":"Invalid login credentials"}`))
				return
			}
			w.Write([]byte(`{"access_token":"tok","expires_in":3600,"user":{"id":"user-1","email":"` + c.Email + `"}}`))
		case "/auth/v1/signup":
			w.Write([]byte(`{"id":"user-2","email":"` + c.Email + `"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	ctx := context.Background()
	g := NewGoTrue(srv.URL+"/", "anon")

	s, err := g.SignIn(ctx, "a@example.com", "correct")
	require.NoError(t, err)
	assert.Equal(t, "tok", s.AccessToken)
	assert.Equal(t, User{ID: "user-1", Email: "a@example.com"}, s.User)
	assert.WithinDuration(t, time.Now().Add(time.Hour), s.ExpiresAt, time.Minute)

	_, err = g.SignIn(ctx, "a@example.com", "wrong")
	assert.True(t, errors.Is(err, ErrInvalidCredentials))

	s, err = g.SignUp(ctx, "b@example.com", "pw")
	require.NoError(t, err)
	assert.Empty(t, s.AccessToken)
	assert.Equal(t, "user-2", s.User.ID)

	_, err = NewGoTrue("", "anon").SignIn(ctx, "a@example.com", "pw")
	assert.ErrorIs(t, err, ErrProviderNotConfigured)
}
