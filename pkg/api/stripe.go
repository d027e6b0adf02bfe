package api

import (
	"io"
	"net/http"

	"github.com/go-chi/render"
	"github.com/keytune/keytune/pkg/payments"
	"github.com/rs/zerolog/log"
)

const maxWebhookBody = 65536

func (a *KeyTuneAPI) CreateCheckoutSession(w http.ResponseWriter, r *http.Request) {
	var req payments.CheckoutRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}

	url, err := a.payments.CreateCheckout(r.Context(), req)
	if err != nil {
		log.Error().Err(err).Str("link_id", req.LinkID).Msg("Unable to create checkout session")
		writeError(w, r, http.StatusInternalServerError, "Error creating checkout session")
		return
	}

	render.JSON(w, r, render.M{"url": url})
}

func (a *KeyTuneAPI) StripeWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		log.Warn().Err(err).Msg("Unable to read webhook body")
		http.Error(w, "Webhook error", http.StatusBadRequest)
		return
	}

	event, err := a.payments.ParseEvent(body, r.Header.Get("Stripe-Signature"))
	if err != nil {
		log.Warn().Err(err).Msg("Rejected webhook")
		http.Error(w, "Webhook error", http.StatusBadRequest)
		return
	}

	if err := a.fulfiller.Handle(r.Context(), event); err != nil {
		log.Error().Err(err).Str("event_id", event.ID).Str("link_id", event.LinkID).Msg("Unable to apply payment")
		writeError(w, r, http.StatusInternalServerError, "Unable to process event")
		return
	}

	render.JSON(w, r, render.M{"received": true})
}
