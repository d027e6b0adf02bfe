package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/keytune/keytune/pkg/auth"
	"github.com/keytune/keytune/pkg/config"
	"github.com/keytune/keytune/pkg/view"
)

func CreateMux(c config.KeyTuneConfig, apiFunctions *KeyTuneAPI, provider auth.Provider) (*chi.Mux, error) {
	r := chi.NewRouter()
	r.Use(PrometheusMiddleware)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(apiFunctions.authenticator.Verifier())
	r.Use(apiFunctions.authenticator.Identify)

	r.Get("/healthcheck", apiFunctions.Healthcheck)

	// the in-memory blob store signs URLs under /blobs
	if blobs, ok := apiFunctions.storageServices.BlobStore.(http.Handler); ok {
		r.Handle("/blobs/*", http.StripPrefix("/blobs", blobs))
	}

	api := chi.NewRouter()
	api.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{c.API.BaseURL},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Stripe-Signature"},
		AllowCredentials: true,
		MaxAge:           300, // Maximum value not ignored by any of major browsers
	}))
	api.Get("/links/{id}", apiFunctions.GetLink)
	api.Post("/stripe", apiFunctions.CreateCheckoutSession)
	api.Post("/stripe/webhook", apiFunctions.StripeWebhook)
	api.With(auth.RequireUser, apiFunctions.RateLimitUploads).Post("/upload", apiFunctions.Upload)

	r.Mount("/api", api)

	if c.Dashboard.Enabled {
		err := view.MountRoutes(r, view.Deps{
			Config:         c.Dashboard,
			PaymentsConfig: c.Payments,
			BaseURL:        c.API.BaseURL,
			CookieSecure:   c.Auth.CookieSecure,
			Storage:        apiFunctions.storageServices,
			Auth:           apiFunctions.authenticator,
			Provider:       provider,
			Links:          apiFunctions.links,
			Uploads:        apiFunctions.uploads,
			Payments:       apiFunctions.payments,
		})
		if err != nil {
			return nil, err
		}
	} else {
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("KeyTune"))
		})
	}

	return r, nil
}
