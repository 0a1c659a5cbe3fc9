package core

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/edvin/bookwell/internal/model"
	"github.com/edvin/bookwell/internal/platform"
)

// BillingEventService persists the billing event log: every notification
// and alert produced by a billing run, queryable for audits and support.
type BillingEventService struct {
	db DB
}

// NewBillingEventService creates a new BillingEventService.
func NewBillingEventService(db DB) *BillingEventService {
	return &BillingEventService{db: db}
}

func (s *BillingEventService) insert(ctx context.Context, evt *model.BillingEvent) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO billing_events (id, kind, type, severity, organization_id, subscription_id, payload, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		evt.ID, evt.Kind, evt.Type, evt.Severity, evt.OrganizationID, evt.SubscriptionID, evt.Payload, evt.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert billing event: %w", err)
	}
	return nil
}

// RecordNotification appends a customer notification to the event log.
func (s *BillingEventService) RecordNotification(ctx context.Context, n model.BillingNotification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	return s.insert(ctx, &model.BillingEvent{
		ID:             platform.NewName("evt_"),
		Kind:           model.EventKindNotification,
		Type:           n.Kind,
		OrganizationID: n.OrganizationID,
		SubscriptionID: n.SubscriptionID,
		Payload:        payload,
		CreatedAt:      time.Now().UTC(),
	})
}

// RecordAlert appends an operational alert to the event log.
func (s *BillingEventService) RecordAlert(ctx context.Context, alert model.Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("marshal alert: %w", err)
	}
	return s.insert(ctx, &model.BillingEvent{
		ID:             platform.NewName("evt_"),
		Kind:           model.EventKindAlert,
		Type:           alert.Type,
		Severity:       alert.Severity,
		OrganizationID: alert.OrganizationID,
		Payload:        payload,
		CreatedAt:      time.Now().UTC(),
	})
}

// List returns the newest events first, optionally filtered by kind.
func (s *BillingEventService) List(ctx context.Context, kind string, limit int) ([]model.BillingEvent, error) {
	query := `SELECT id, kind, type, severity, organization_id, subscription_id, payload, created_at
		 FROM billing_events`
	args := []any{}

	if kind != "" {
		query += ` WHERE kind = $1`
		args = append(args, kind)
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d`, len(args)+1)
	args = append(args, limit)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query billing events: %w", err)
	}
	defer rows.Close()

	var events []model.BillingEvent
	for rows.Next() {
		var evt model.BillingEvent
		err := rows.Scan(&evt.ID, &evt.Kind, &evt.Type, &evt.Severity,
			&evt.OrganizationID, &evt.SubscriptionID, &evt.Payload, &evt.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan billing event: %w", err)
		}
		events = append(events, evt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate billing events: %w", err)
	}
	return events, nil
}
