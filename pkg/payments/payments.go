package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrNotConfigured    = errors.New("payments are not configured")
	ErrInvalidSignature = errors.New("invalid webhook signature")
)

const EventCheckoutCompleted = "checkout.session.completed"

type CheckoutRequest struct {
	Email  string `json:"email"`
	LinkID string `json:"linkId"`
}

// Event is the part of a processor notification the service acts on.
type Event struct {
	ID     string
	Type   string
	LinkID string
}

type Processor interface {
	// CreateCheckout returns the hosted checkout URL.
	CreateCheckout(ctx context.Context, req CheckoutRequest) (string, error)
	// ParseEvent verifies the signature over the raw payload.
	ParseEvent(payload []byte, signature string) (Event, error)
	Enabled() bool
}

// FormatPrice renders an amount in minor units, e.g. 299 usd is "$2.99".
func FormatPrice(amount int64, currency string) string {
	value := decimal.New(amount, -2).StringFixed(2)
	switch strings.ToLower(currency) {
	case "usd":
		return "$" + value
	case "eur":
		return "€" + value
	case "gbp":
		return "£" + value
	}
	return fmt.Sprintf("%s %s", value, strings.ToUpper(currency))
}
