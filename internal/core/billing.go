package core

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/edvin/bookwell/internal/billing"
	"github.com/edvin/bookwell/internal/metrics"
	"github.com/edvin/bookwell/internal/model"
	"github.com/edvin/bookwell/internal/notify"
	"github.com/edvin/bookwell/internal/payment"
)

// trialsEndingHorizons are the stats horizons for upcoming trial ends.
var trialsEndingHorizons = [3]int{1, 7, 30}

// BillingService owns the daily billing run and the operational read side.
// It wires the pure billing runner to the subscription store, the payment
// gateway, the alert sender and the event log.
type BillingService struct {
	subs   *SubscriptionService
	events *BillingEventService
	runner *billing.Runner
}

// NewBillingService creates a BillingService.
func NewBillingService(subs *SubscriptionService, events *BillingEventService, gateway payment.Gateway, sender notify.Sender, logger zerolog.Logger) *BillingService {
	sink := &eventSink{
		sender: sender,
		events: events,
		logger: logger.With().Str("component", "billing-sink").Logger(),
	}
	return &BillingService{
		subs:   subs,
		events: events,
		runner: billing.NewRunner(subs, billing.NewExecutor(gateway), sink, logger),
	}
}

// RunDaily executes one full billing run and records its aggregates.
func (s *BillingService) RunDaily(ctx context.Context) (*model.BillingReport, error) {
	report, err := s.runner.RunDaily(ctx)
	if err != nil {
		return nil, fmt.Errorf("daily billing run: %w", err)
	}
	metrics.ObserveBillingRun(report)
	return report, nil
}

// Stats fans out the three overview queries concurrently.
func (s *BillingService) Stats(ctx context.Context) (*model.BillingStats, error) {
	var stats model.BillingStats

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		subStats, err := s.subs.Stats(ctx)
		if err != nil {
			return err
		}
		stats.Subscriptions = *subStats
		return nil
	})
	trialCounts := [3]*int{
		&stats.TrialsEnding.Within1Day,
		&stats.TrialsEnding.Within7Days,
		&stats.TrialsEnding.Within30Days,
	}
	for i, days := range trialsEndingHorizons {
		out := trialCounts[i]
		g.Go(func() error {
			n, err := s.subs.CountTrialsExpiring(ctx, days)
			if err != nil {
				return err
			}
			*out = n
			return nil
		})
	}
	g.Go(func() error {
		n, err := s.subs.CountAwaitingRetry(ctx, billing.MaxAttempts)
		if err != nil {
			return err
		}
		stats.AwaitingRetry = n
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("billing stats: %w", err)
	}
	return &stats, nil
}

// Events lists recent billing events, newest first.
func (s *BillingService) Events(ctx context.Context, kind string, limit int) ([]model.BillingEvent, error) {
	return s.events.List(ctx, kind, limit)
}

// eventSink delivers alerts through the configured sender and mirrors both
// alerts and notifications into the billing event log. A failed event-log
// write is logged, never propagated: the delivery outcome is what counts.
type eventSink struct {
	sender notify.Sender
	events *BillingEventService
	logger zerolog.Logger
}

func (s *eventSink) DeliverAlert(ctx context.Context, alert model.Alert) error {
	if err := s.events.RecordAlert(ctx, alert); err != nil {
		s.logger.Warn().Err(err).Str("type", alert.Type).Msg("record alert failed")
	}
	return s.sender.Send(ctx, alert)
}

func (s *eventSink) RecordNotification(ctx context.Context, n model.BillingNotification) error {
	return s.events.RecordNotification(ctx, n)
}
