package api

import (
	"net/http"

	"github.com/go-chi/render"
)

func writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	render.Status(r, status)
	render.JSON(w, r, render.M{"error": message})
}
