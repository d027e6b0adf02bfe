package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

// GetLink echoes the token back; the link page itself is server-rendered.
func (a *KeyTuneAPI) GetLink(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	render.JSON(w, r, render.M{"message": "Link ID is " + id})
}
