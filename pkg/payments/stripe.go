package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/keytune/keytune/pkg/config"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"
	"github.com/tidwall/gjson"
)

type Stripe struct {
	conf    config.Payments
	baseURL string
	api     *client.API
}

// NewStripe builds a processor for conf. backends may be nil; tests point
// it at a local server.
func NewStripe(conf config.Payments, baseURL string, backends *stripe.Backends) *Stripe {
	s := &Stripe{
		conf:    conf,
		baseURL: strings.TrimSuffix(baseURL, "/"),
	}
	if conf.Enabled() {
		s.api = client.New(conf.SecretKey, backends)
	}
	return s
}

func (s *Stripe) Enabled() bool {
	return s.api != nil
}

func (s *Stripe) CreateCheckout(ctx context.Context, req CheckoutRequest) (string, error) {
	if !s.Enabled() {
		return "", ErrNotConfigured
	}

	successURL := s.baseURL + "/dashboard?success=true"
	cancelURL := s.baseURL + "/dashboard?canceled=true"
	if req.LinkID != "" {
		successURL = s.baseURL + "/link/" + req.LinkID + "?success=true"
		cancelURL = s.baseURL + "/link/" + req.LinkID + "?canceled=true"
	}

	params := &stripe.CheckoutSessionParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(s.conf.Currency),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(s.conf.ProductName),
					},
					UnitAmount: stripe.Int64(s.conf.UnitAmount),
				},
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(successURL),
		CancelURL:  stripe.String(cancelURL),
	}
	params.Context = ctx
	if req.Email != "" {
		params.CustomerEmail = stripe.String(req.Email)
	}
	if req.LinkID != "" {
		params.AddMetadata("linkId", req.LinkID)
	}

	session, err := s.api.CheckoutSessions.New(params)
	if err != nil {
		return "", fmt.Errorf("payments: create checkout session: %w", err)
	}

	return session.URL, nil
}

func (s *Stripe) ParseEvent(payload []byte, signature string) (Event, error) {
	if s.conf.WebhookSecret == "" {
		return Event{}, ErrNotConfigured
	}

	event, err := webhook.ConstructEventWithOptions(payload, signature, s.conf.WebhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return Event{}, errors.Join(ErrInvalidSignature, err)
	}

	rc := Event{
		ID:   event.ID,
		Type: string(event.Type),
	}
	if event.Data != nil {
		rc.LinkID = gjson.GetBytes(event.Data.Raw, "metadata.linkId").String()
	}

	return rc, nil
}
