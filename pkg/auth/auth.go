package auth

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/jwtauth/v5"
	"github.com/go-chi/render"
	"github.com/rs/zerolog/log"
)

// CookieName is where the session token lives; jwtauth.TokenFromCookie
// reads the same name.
const CookieName = "jwt"

type User struct {
	ID    string
	Email string
}

type contextKey struct{}

var userKey = contextKey{}

func WithUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, userKey, u)
}

func GetUser(ctx context.Context) (*User, bool) {
	user, ok := ctx.Value(userKey).(*User)
	return user, ok && user != nil
}

// Authenticator verifies the HS256 tokens issued by the auth provider.
type Authenticator struct {
	tokenAuth    *jwtauth.JWTAuth
	cookieSecure bool
}

func NewAuthenticator(jwtSecret string, cookieSecure bool) *Authenticator {
	return &Authenticator{
		tokenAuth:    jwtauth.New("HS256", []byte(jwtSecret), nil),
		cookieSecure: cookieSecure,
	}
}

// Verifier finds a token in the Authorization header or the session cookie
// and validates it. Invalid tokens are not rejected here; Identify decides.
func (a *Authenticator) Verifier() func(http.Handler) http.Handler {
	return jwtauth.Verify(a.tokenAuth, jwtauth.TokenFromHeader, jwtauth.TokenFromCookie)
}

// Identify puts the caller on the request context when a valid token was
// presented. Anonymous requests pass through.
func (a *Authenticator) Identify(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, claims, err := jwtauth.FromContext(r.Context())
		if err != nil || token == nil || token.Subject() == "" {
			if err != nil && !errors.Is(err, jwtauth.ErrNoTokenFound) {
				log.Debug().Err(err).Msg("Ignoring invalid session token")
			}
			next.ServeHTTP(w, r)
			return
		}

		user := &User{ID: token.Subject()}
		if email, ok := claims["email"].(string); ok {
			user.Email = email
		}
		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
	})
}

// RequireUser rejects anonymous API calls with 401.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := GetUser(r.Context()); !ok {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, render.M{"error": "Unauthorized"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireLogin redirects anonymous page requests to the login page and
// brings them back afterwards.
func RequireLogin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := GetUser(r.Context()); !ok {
			http.Redirect(w, r, LoginPath(r.URL.RequestURI()), http.StatusFound)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func LoginPath(returnPath string) string {
	if returnPath == "" {
		return "/login"
	}
	return "/login?redirect=" + url.QueryEscape(returnPath)
}

// SafeRedirect only allows local absolute paths.
func SafeRedirect(path string, fallback string) string {
	if !strings.HasPrefix(path, "/") || strings.HasPrefix(path, "//") || strings.HasPrefix(path, "/\\") {
		return fallback
	}
	return path
}

// IssueToken signs a session token in the provider's format. The server
// itself only needs this for tests and local development.
func (a *Authenticator) IssueToken(u User, ttl time.Duration) (string, error) {
	claims := map[string]any{
		"sub":   u.ID,
		"email": u.Email,
		"aud":   "authenticated",
		"role":  "authenticated",
	}
	jwtauth.SetIssuedNow(claims)
	jwtauth.SetExpiryIn(claims, ttl)

	_, tokenString, err := a.tokenAuth.Encode(claims)
	return tokenString, err
}

func (a *Authenticator) SetSession(w http.ResponseWriter, s *Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    s.AccessToken,
		Path:     "/",
		Expires:  s.ExpiresAt,
		HttpOnly: true,
		Secure:   a.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (a *Authenticator) ClearSession(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   a.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}
