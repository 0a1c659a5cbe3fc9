package core

import (
	"github.com/rs/zerolog"

	"github.com/edvin/bookwell/internal/notify"
	"github.com/edvin/bookwell/internal/payment"
)

// Services bundles the core services for handler and activity wiring.
type Services struct {
	Subscription *SubscriptionService
	BillingEvent *BillingEventService
	Billing      *BillingService
	APIKey       *APIKeyService
}

// NewServices wires every service over one DB handle and the external
// payment and alert destinations.
func NewServices(db DB, gateway payment.Gateway, sender notify.Sender, logger zerolog.Logger) *Services {
	subs := NewSubscriptionService(db)
	events := NewBillingEventService(db)

	return &Services{
		Subscription: subs,
		BillingEvent: events,
		Billing:      NewBillingService(subs, events, gateway, sender, logger),
		APIKey:       NewAPIKeyService(db),
	}
}
