package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/edvin/bookwell/internal/model"
)

const subscriptionColumns = `id, organization_id, plan_id, plan_name, status,
	current_period_start, current_period_end, trial_start, trial_end,
	cancel_at_period_end, canceled_at, amount, currency, billing_interval, payment_method,
	last_payment_date, next_billing_date, payment_active,
	token_user_id, token_username, inscription_token, inscription_date,
	payment_attempts, last_payment_attempt, retry_payment_at,
	customer_email, created_at, updated_at`

// SubscriptionService is the subscription store. Billing writes are
// conditional on the attempt counter read at query time so that overlapping
// runs cannot both apply a stale transition.
type SubscriptionService struct {
	db DB
}

// NewSubscriptionService creates a new SubscriptionService.
func NewSubscriptionService(db DB) *SubscriptionService {
	return &SubscriptionService{db: db}
}

func scanSubscription(row pgx.Row) (*model.Subscription, error) {
	var sub model.Subscription
	var tokenUserID, tokenUsername, inscriptionToken *string
	var inscriptionDate *time.Time

	err := row.Scan(
		&sub.ID, &sub.OrganizationID, &sub.PlanID, &sub.PlanName, &sub.Status,
		&sub.CurrentPeriodStart, &sub.CurrentPeriodEnd, &sub.TrialStart, &sub.TrialEnd,
		&sub.CancelAtPeriodEnd, &sub.CanceledAt, &sub.Amount, &sub.Currency, &sub.Interval, &sub.PaymentMethod,
		&sub.LastPaymentDate, &sub.NextBillingDate, &sub.PaymentActive,
		&tokenUserID, &tokenUsername, &inscriptionToken, &inscriptionDate,
		&sub.PaymentAttempts, &sub.LastPaymentAttempt, &sub.RetryPaymentAt,
		&sub.CustomerEmail, &sub.CreatedAt, &sub.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	// Token columns are all set or all null.
	if tokenUserID != nil && tokenUsername != nil && inscriptionToken != nil && inscriptionDate != nil {
		sub.PaymentToken = &model.PaymentToken{
			UserID:           *tokenUserID,
			Username:         *tokenUsername,
			InscriptionToken: *inscriptionToken,
			InscriptionDate:  *inscriptionDate,
		}
	}
	return &sub, nil
}

func tokenFields(sub *model.Subscription) (userID, username, inscToken *string, inscDate *time.Time) {
	if sub.PaymentToken == nil {
		return nil, nil, nil, nil
	}
	return &sub.PaymentToken.UserID, &sub.PaymentToken.Username,
		&sub.PaymentToken.InscriptionToken, &sub.PaymentToken.InscriptionDate
}

// Create inserts a new subscription. Returns ErrAlreadyExists when the id is
// already taken.
func (s *SubscriptionService) Create(ctx context.Context, sub *model.Subscription) error {
	userID, username, inscToken, inscDate := tokenFields(sub)

	_, err := s.db.Exec(ctx,
		`INSERT INTO subscriptions (`+subscriptionColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
		         $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28)`,
		sub.ID, sub.OrganizationID, sub.PlanID, sub.PlanName, sub.Status,
		sub.CurrentPeriodStart, sub.CurrentPeriodEnd, sub.TrialStart, sub.TrialEnd,
		sub.CancelAtPeriodEnd, sub.CanceledAt, sub.Amount, sub.Currency, sub.Interval, sub.PaymentMethod,
		sub.LastPaymentDate, sub.NextBillingDate, sub.PaymentActive,
		userID, username, inscToken, inscDate,
		sub.PaymentAttempts, sub.LastPaymentAttempt, sub.RetryPaymentAt,
		sub.CustomerEmail, sub.CreatedAt, sub.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("subscription %s: %w", sub.ID, ErrAlreadyExists)
		}
		return fmt.Errorf("insert subscription: %w", err)
	}
	return nil
}

// GetByID retrieves a subscription by its ID.
func (s *SubscriptionService) GetByID(ctx context.Context, id string) (*model.Subscription, error) {
	sub, err := scanSubscription(s.db.QueryRow(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE id = $1`, id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("subscription %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("get subscription %s: %w", id, err)
	}
	return sub, nil
}

// GetByOrganization retrieves the most recent subscription for an
// organization.
func (s *SubscriptionService) GetByOrganization(ctx context.Context, orgID string) (*model.Subscription, error) {
	sub, err := scanSubscription(s.db.QueryRow(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions
		 WHERE organization_id = $1 ORDER BY created_at DESC LIMIT 1`, orgID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("organization %s subscription: %w", orgID, ErrNotFound)
		}
		return nil, fmt.Errorf("get subscription for organization %s: %w", orgID, err)
	}
	return sub, nil
}

func (s *SubscriptionService) querySubscriptions(ctx context.Context, query string, args ...any) ([]model.Subscription, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []model.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("scan subscription: %w", err)
		}
		subs = append(subs, *sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate subscriptions: %w", err)
	}
	return subs, nil
}

// TrialsExpiring returns trialing subscriptions whose trial ends within the
// given number of days. With days=0 it returns trials that have already
// ended, which keeps the charge-pass predicate disjoint from the notice
// pass.
func (s *SubscriptionService) TrialsExpiring(ctx context.Context, days int, requireActiveToken bool) ([]model.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions
		 WHERE status = $1 AND trial_end IS NOT NULL`
	args := []any{model.StatusTrialing}

	if days == 0 {
		query += ` AND trial_end <= now()`
	} else {
		query += fmt.Sprintf(` AND trial_end > now() AND trial_end <= now() + $%d * interval '1 day'`, len(args)+1)
		args = append(args, days)
	}
	if requireActiveToken {
		query += ` AND payment_active`
	}

	subs, err := s.querySubscriptions(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query expiring trials: %w", err)
	}
	return subs, nil
}

// DueForRetry returns past_due subscriptions whose retry time has elapsed
// and whose attempt count is below maxAttempts.
func (s *SubscriptionService) DueForRetry(ctx context.Context, maxAttempts int) ([]model.Subscription, error) {
	subs, err := s.querySubscriptions(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions
		 WHERE status = $1 AND retry_payment_at IS NOT NULL AND retry_payment_at <= now()
		   AND payment_attempts < $2`,
		model.StatusPastDue, maxAttempts,
	)
	if err != nil {
		return nil, fmt.Errorf("query subscriptions due for retry: %w", err)
	}
	return subs, nil
}

// MarkPaid records a successful charge. The update is guarded on the
// attempt counter the caller read; when a concurrent run already moved the
// counter nothing is written and ErrStaleSubscription is returned.
func (s *SubscriptionService) MarkPaid(ctx context.Context, sub *model.Subscription, paidAt, nextBilling time.Time) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE subscriptions
		 SET status = $1, payment_attempts = 0, last_payment_date = $2, next_billing_date = $3,
		     last_payment_attempt = $2, retry_payment_at = NULL, updated_at = now()
		 WHERE id = $4 AND payment_attempts = $5`,
		model.StatusActive, paidAt, nextBilling, sub.ID, sub.PaymentAttempts,
	)
	if err != nil {
		return fmt.Errorf("mark subscription %s paid: %w", sub.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("mark subscription %s paid: %w", sub.ID, ErrStaleSubscription)
	}
	return nil
}

// MarkRetryScheduled records a failed charge with its next retry time.
func (s *SubscriptionService) MarkRetryScheduled(ctx context.Context, sub *model.Subscription, attempts int, lastAttempt, retryAt time.Time) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE subscriptions
		 SET status = $1, payment_attempts = $2, last_payment_attempt = $3, retry_payment_at = $4, updated_at = now()
		 WHERE id = $5 AND payment_attempts = $6`,
		model.StatusPastDue, attempts, lastAttempt, retryAt, sub.ID, sub.PaymentAttempts,
	)
	if err != nil {
		return fmt.Errorf("schedule retry for subscription %s: %w", sub.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("schedule retry for subscription %s: %w", sub.ID, ErrStaleSubscription)
	}
	return nil
}

// MarkCanceled records retry exhaustion.
func (s *SubscriptionService) MarkCanceled(ctx context.Context, sub *model.Subscription, attempts int, canceledAt time.Time) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE subscriptions
		 SET status = $1, payment_attempts = $2, canceled_at = $3, last_payment_attempt = $3,
		     retry_payment_at = NULL, updated_at = now()
		 WHERE id = $4 AND payment_attempts = $5`,
		model.StatusCanceled, attempts, canceledAt, sub.ID, sub.PaymentAttempts,
	)
	if err != nil {
		return fmt.Errorf("cancel subscription %s: %w", sub.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("cancel subscription %s: %w", sub.ID, ErrStaleSubscription)
	}
	return nil
}

// updatableColumns are the columns Update accepts. Billing transitions go
// through the guarded Mark* writes, never through here.
var updatableColumns = map[string]struct{}{
	"plan_id":              {},
	"plan_name":            {},
	"amount":               {},
	"currency":             {},
	"billing_interval":     {},
	"payment_method":       {},
	"customer_email":       {},
	"cancel_at_period_end": {},
	"current_period_start": {},
	"current_period_end":   {},
	"trial_start":          {},
	"trial_end":            {},
	"next_billing_date":    {},
}

// Update applies a partial update of non-billing fields.
func (s *SubscriptionService) Update(ctx context.Context, id string, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}

	setClauses := make([]string, 0, len(fields)+1)
	args := make([]any, 0, len(fields)+1)
	for col, val := range fields {
		if _, ok := updatableColumns[col]; !ok {
			return fmt.Errorf("update subscription %s: column %q not updatable", id, col)
		}
		args = append(args, val)
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	setClauses = append(setClauses, "updated_at = now()")
	args = append(args, id)

	query := fmt.Sprintf("UPDATE subscriptions SET %s WHERE id = $%d",
		strings.Join(setClauses, ", "), len(args))

	tag, err := s.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update subscription %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update subscription %s: %w", id, ErrNotFound)
	}
	return nil
}

// Cancel handles an explicit cancellation request for a trialing or active
// subscription.
func (s *SubscriptionService) Cancel(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE subscriptions
		 SET status = $1, cancel_at_period_end = true, canceled_at = now(),
		     retry_payment_at = NULL, updated_at = now()
		 WHERE id = $2 AND status IN ($3, $4)`,
		model.StatusCanceled, id, model.StatusTrialing, model.StatusActive,
	)
	if err != nil {
		return fmt.Errorf("cancel subscription %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("cancel subscription %s: %w", id, ErrNotFound)
	}
	return nil
}

// RegisterPaymentToken attaches a reusable charge token, enabling automatic
// billing for the subscription.
func (s *SubscriptionService) RegisterPaymentToken(ctx context.Context, id string, token model.PaymentToken) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE subscriptions
		 SET payment_active = true, token_user_id = $1, token_username = $2,
		     inscription_token = $3, inscription_date = $4, updated_at = now()
		 WHERE id = $5`,
		token.UserID, token.Username, token.InscriptionToken, token.InscriptionDate, id,
	)
	if err != nil {
		return fmt.Errorf("register payment token for subscription %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("register payment token for subscription %s: %w", id, ErrNotFound)
	}
	return nil
}

// Stats returns aggregate subscription counts by status in a single query.
func (s *SubscriptionService) Stats(ctx context.Context) (*model.SubscriptionStats, error) {
	const query = `
		SELECT count(*),
		       count(*) FILTER (WHERE status = 'active'),
		       count(*) FILTER (WHERE status = 'trialing'),
		       count(*) FILTER (WHERE status = 'past_due'),
		       count(*) FILTER (WHERE status = 'canceled')
		FROM subscriptions`

	var stats model.SubscriptionStats
	err := s.db.QueryRow(ctx, query).Scan(
		&stats.Total, &stats.Active, &stats.Trialing, &stats.PastDue, &stats.Canceled,
	)
	if err != nil {
		return nil, fmt.Errorf("subscription stats: %w", err)
	}
	return &stats, nil
}

// CountTrialsExpiring counts trialing subscriptions whose trial ends within
// the given number of days.
func (s *SubscriptionService) CountTrialsExpiring(ctx context.Context, days int) (int, error) {
	var count int
	err := s.db.QueryRow(ctx,
		`SELECT count(*) FROM subscriptions
		 WHERE status = $1 AND trial_end IS NOT NULL AND trial_end <= now() + $2 * interval '1 day'`,
		model.StatusTrialing, days,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count expiring trials: %w", err)
	}
	return count, nil
}

// CountAwaitingRetry counts past_due subscriptions with a pending retry.
func (s *SubscriptionService) CountAwaitingRetry(ctx context.Context, maxAttempts int) (int, error) {
	var count int
	err := s.db.QueryRow(ctx,
		`SELECT count(*) FROM subscriptions
		 WHERE status = $1 AND retry_payment_at IS NOT NULL AND payment_attempts < $2`,
		model.StatusPastDue, maxAttempts,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count subscriptions awaiting retry: %w", err)
	}
	return count, nil
}
