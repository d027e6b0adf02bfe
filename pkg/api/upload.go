package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/render"
	"github.com/keytune/keytune/pkg/auth"
	"github.com/keytune/keytune/pkg/upload"
	"github.com/rs/zerolog/log"
)

func (a *KeyTuneAPI) RateLimitUploads(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.uploadLimiter.Allow() {
			writeError(w, r, http.StatusTooManyRequests, "Too many uploads, try again shortly")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (a *KeyTuneAPI) Upload(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.GetUser(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "Unauthorized")
		return
	}

	f, err := upload.FromRequest(w, r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, upload.Message(err))
		return
	}
	defer f.Close()

	res, err := a.uploads.Upload(r.Context(), user, f.File, nil)
	switch {
	case err == nil:
	case upload.IsRejected(err):
		writeError(w, r, http.StatusBadRequest, upload.Message(err))
		return
	case errors.Is(err, upload.ErrUnauthenticated):
		writeError(w, r, http.StatusUnauthorized, "Unauthorized")
		return
	default:
		log.Error().Err(err).Str("user_id", user.ID).Msg("Upload failed")
		writeError(w, r, http.StatusInternalServerError, upload.Message(err))
		return
	}

	render.JSON(w, r, render.M{
		"linkId":   res.Link.LinkID,
		"filename": res.Link.Filename,
	})
}
