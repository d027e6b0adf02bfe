package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/keytune/keytune/pkg/auth"
	"github.com/keytune/keytune/pkg/config"
	"github.com/keytune/keytune/pkg/links"
	"github.com/keytune/keytune/pkg/payments"
	"github.com/keytune/keytune/pkg/storage"
	"github.com/keytune/keytune/pkg/upload"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

type KeyTuneAPI struct {
	config          config.API
	storageServices *storage.Services
	authenticator   *auth.Authenticator
	links           *links.Service
	uploads         *upload.Service
	payments        payments.Processor
	fulfiller       *payments.Fulfiller
	uploadLimiter   *rate.Limiter
}

func NewKeyTuneAPI(
	conf config.API,
	storageServices *storage.Services,
	authenticator *auth.Authenticator,
	processor payments.Processor,
) (*KeyTuneAPI, error) {
	if storageServices == nil {
		return nil, fmt.Errorf("api: storage services are required")
	}

	limit := rate.Limit(conf.UploadRatePerSecond)
	if conf.UploadRatePerSecond <= 0 {
		limit = rate.Inf
	}

	return &KeyTuneAPI{
		config:          conf,
		storageServices: storageServices,
		authenticator:   authenticator,
		links:           links.NewService(storageServices),
		uploads:         upload.NewService(storageServices),
		payments:        processor,
		fulfiller:       payments.NewFulfiller(storageServices.Database),
		uploadLimiter:   rate.NewLimiter(limit, conf.UploadBurst),
	}, nil
}

func RunAPI(ctx context.Context, config config.API, mux *chi.Mux) {
	log.Debug().Int("port", config.Port).Msg("Starting API")

	server := &http.Server{
		Addr:              fmt.Sprintf("0.0.0.0:%d", config.Port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverCtx, serverStopCtx := context.WithCancel(context.Background())

	go func() {
		err := server.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			log.Err(err).Msg("Error serving API")
			serverStopCtx()
		}
	}()

	go func() {
		select {
		case <-ctx.Done():
		case <-serverCtx.Done():
			return
		}

		log.Debug().Msg("Stopping API")

		// uploads can take a while to finish
		shutdownCtx, cancel := context.WithTimeout(serverCtx, 5*time.Minute)
		err := server.Shutdown(shutdownCtx)
		if err != nil {
			log.Error().Err(err).Msg("Error shutting down API")
		}

		cancel()
		serverStopCtx()
	}()

	log.Debug().Msg("Waiting for graceful shutdown")
	<-serverCtx.Done()

	log.Debug().Msg("API server stopped")
}
