package keytune

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/keytune/keytune/pkg/api"
	"github.com/keytune/keytune/pkg/auth"
	"github.com/keytune/keytune/pkg/config"
	"github.com/keytune/keytune/pkg/payments"
	"github.com/keytune/keytune/pkg/storage"
	"github.com/keytune/keytune/pkg/workers"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func SetupLogs(logConfig config.Logging) {
	// Equivalent of Lshortfile
	zerolog.CallerMarshalFunc = func(pc uintptr, file string, line int) string {
		short := file
		for i := len(file) - 1; i > 0; i-- {
			if file[i] == '/' {
				short = file[i+1:]
				break
			}
		}
		file = short
		return file + ":" + strconv.Itoa(line)
	}

	logLevel := zerolog.TraceLevel
	switch logConfig.Level {
	case "panic":
		logLevel = zerolog.PanicLevel
	case "fatal":
		logLevel = zerolog.FatalLevel
	case "error":
		logLevel = zerolog.ErrorLevel
	case "warn":
		logLevel = zerolog.WarnLevel
	case "info":
		logLevel = zerolog.InfoLevel
	case "debug":
		logLevel = zerolog.DebugLevel
	case "trace":
		logLevel = zerolog.TraceLevel
	}
	zerolog.SetGlobalLevel(logLevel)

	if logConfig.JSONFormat {
		log.Logger = log.With().Caller().Logger()
	} else {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}).With().Caller().Logger()
	}
}

// Run starts every enabled component and blocks until SIGINT or SIGTERM.
func Run(config config.KeyTuneConfig, storageServices *storage.Services) error {
	log.Debug().Msg("Starting KeyTune")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, os.Interrupt)
	defer stop()

	authenticator := auth.NewAuthenticator(config.Auth.JWTSecret, config.Auth.CookieSecure)
	provider := auth.NewGoTrue(config.Auth.URL, config.Auth.AnonKey)
	processor := payments.NewStripe(config.Payments, config.API.BaseURL, nil)
	if !processor.Enabled() {
		log.Warn().Msg("Payments are not configured; upgrades are applied without checkout")
	}

	var mux *chi.Mux
	if config.API.Enabled {
		apiFunctions, err := api.NewKeyTuneAPI(config.API, storageServices, authenticator, processor)
		if err != nil {
			return err
		}
		mux, err = api.CreateMux(config, apiFunctions, provider)
		if err != nil {
			return err
		}
	}

	var wg sync.WaitGroup

	if mux != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			api.RunAPI(ctx, config.API, mux)
		}()
	}

	if config.Workers.Enabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			workers.RunWorkers(ctx, config.Workers, storageServices)
		}()
	}

	if config.Prometheus.Enabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			api.RunMetrics(ctx, config.Prometheus)
		}()
	}

	<-ctx.Done()
	log.Debug().Msg("Received signal, stopping")

	wg.Wait()
	log.Debug().Msg("Done")
	return nil
}
