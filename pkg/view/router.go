package view

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/csrf"
	"github.com/gorilla/sessions"
	"github.com/keytune/keytune/pkg/auth"
	"github.com/keytune/keytune/pkg/config"
	"github.com/keytune/keytune/pkg/links"
	"github.com/keytune/keytune/pkg/payments"
	"github.com/keytune/keytune/pkg/storage"
	"github.com/keytune/keytune/pkg/upload"
	"github.com/keytune/keytune/pkg/view/session"
	"github.com/keytune/keytune/pkg/view/static"
)

type Deps struct {
	Config         config.DashboardConfig
	PaymentsConfig config.Payments
	BaseURL        string
	CookieSecure   bool

	Storage  *storage.Services
	Auth     *auth.Authenticator
	Provider auth.Provider
	Links    *links.Service
	Uploads  *upload.Service
	Payments payments.Processor
}

// MountRoutes registers the HTML pages on r. r must already run the
// authenticator's Verifier and Identify middleware.
func MountRoutes(r chi.Router, d Deps) error {
	if len(d.Config.CSRFSecret) != 32 {
		return errors.New("view: csrf secret must be 32 bytes")
	}

	csrfMiddleware := csrf.Protect(
		[]byte(d.Config.CSRFSecret),
		csrf.Secure(d.CookieSecure),
		csrf.Path("/"),
	)

	sessionStore := sessions.NewCookieStore([]byte(d.Config.CSRFSecret))
	sessionStore.Options.HttpOnly = true
	sessionStore.Options.Secure = d.CookieSecure
	sessionStore.Options.SameSite = http.SameSiteLaxMode

	sessionService := session.NewSession(sessionStore)
	v, err := NewView(sessionService, d.Config.LiveReload)
	if err != nil {
		return err
	}

	controller := NewController(sessionService, v, d)

	fileServer := http.FileServer(http.FS(static.Static))
	r.Handle("/static/*", http.StripPrefix("/static", fileServer))

	r.Group(func(r chi.Router) {
		r.Use(upload.LimitBody(upload.MaxRequestSize))
		r.Use(csrfMiddleware)

		r.Get("/", controller.GetHome)
		r.Get("/login", controller.GetLogin)
		r.Post("/login", controller.PostLogin)
		r.Post("/signup", controller.PostSignup)
		r.Post("/logout", controller.PostLogout)
		r.Get("/link/{id}", controller.GetLink)

		r.Route("/dashboard", func(r chi.Router) {
			r.Use(auth.RequireLogin)
			r.Get("/", controller.GetDashboard)
			r.Post("/upload", controller.PostUpload)
			r.Post("/links/{id}/upgrade", controller.PostUpgrade)
		})
	})

	return nil
}
