package payments

import (
	"context"
	"errors"

	"github.com/keytune/keytune/pkg/storage/database"
	"github.com/keytune/keytune/pkg/storage/database/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"
)

var webhookEvents = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "payment_webhook_events_total",
	Help: "Verified payment notifications by type",
}, []string{"type"})

// Fulfiller applies verified payment events to the link store.
type Fulfiller struct {
	db database.Database
}

func NewFulfiller(db database.Database) *Fulfiller {
	return &Fulfiller{db: db}
}

// Handle marks the paid link premium. Events it cannot act on are
// acknowledged, so only backend failures return an error.
func (f *Fulfiller) Handle(ctx context.Context, event Event) error {
	webhookEvents.WithLabelValues(event.Type).Inc()

	if event.Type != EventCheckoutCompleted {
		log.Debug().Str("event_id", event.ID).Str("type", event.Type).Msg("Ignoring payment event")
		return nil
	}

	if event.LinkID == "" {
		log.Warn().Str("event_id", event.ID).Msg("Completed checkout has no linkId")
		return nil
	}

	err := f.db.SetPremium(ctx, event.LinkID)
	if errors.Is(err, models.ErrNotFound) {
		log.Warn().Str("event_id", event.ID).Str("link_id", event.LinkID).Msg("Completed checkout for unknown link")
		return nil
	}
	if err != nil {
		return err
	}

	log.Info().Str("event_id", event.ID).Str("link_id", event.LinkID).Msg("Link upgraded to premium")
	return nil
}
