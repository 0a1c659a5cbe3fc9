package model

import "time"

// Subscription status constants.
const (
	StatusTrialing   = "trialing"
	StatusActive     = "active"
	StatusPastDue    = "past_due"
	StatusCanceled   = "canceled"
	StatusUnpaid     = "unpaid"
	StatusIncomplete = "incomplete"
)

// Billing interval constants.
const (
	IntervalMonth = "month"
	IntervalYear  = "year"
)

// PaymentToken holds the stored card-registration token for tokenized
// charges. All fields are set together when a card is registered; a
// subscription without a token carries a nil PaymentToken.
type PaymentToken struct {
	UserID           string    `json:"user_id"`
	Username         string    `json:"username"`
	InscriptionToken string    `json:"inscription_token"`
	InscriptionDate  time.Time `json:"inscription_date"`
}

// Subscription is the billing record for one organization. At most one
// active subscription exists per organization at a time. Cancellation is a
// status transition, never a row delete.
type Subscription struct {
	ID             string `json:"id"`
	OrganizationID string `json:"organization_id"`
	PlanID         string `json:"plan_id"`
	PlanName       string `json:"plan_name"`
	Status         string `json:"status"`

	CurrentPeriodStart time.Time  `json:"current_period_start"`
	CurrentPeriodEnd   time.Time  `json:"current_period_end"`
	TrialStart         *time.Time `json:"trial_start,omitempty"`
	TrialEnd           *time.Time `json:"trial_end,omitempty"`

	CancelAtPeriodEnd bool       `json:"cancel_at_period_end"`
	CanceledAt        *time.Time `json:"canceled_at,omitempty"`

	// Amount is in minor currency units (e.g. cents).
	Amount        int64  `json:"amount"`
	Currency      string `json:"currency"`
	Interval      string `json:"interval"`
	PaymentMethod string `json:"payment_method"`

	LastPaymentDate *time.Time `json:"last_payment_date,omitempty"`
	NextBillingDate *time.Time `json:"next_billing_date,omitempty"`

	// PaymentActive is true once a reusable charge token is registered.
	PaymentActive bool          `json:"payment_active"`
	PaymentToken  *PaymentToken `json:"payment_token,omitempty"`

	// PaymentAttempts counts failed charges since the last success or
	// cancellation. Reset to 0 on every successful charge.
	PaymentAttempts    int        `json:"payment_attempts"`
	LastPaymentAttempt *time.Time `json:"last_payment_attempt,omitempty"`
	RetryPaymentAt     *time.Time `json:"retry_payment_at,omitempty"`

	CustomerEmail string `json:"customer_email"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasActiveToken reports whether the subscription can be charged without
// user interaction.
func (s *Subscription) HasActiveToken() bool {
	return s.PaymentActive && s.PaymentToken != nil
}

// SubscriptionStats holds aggregate subscription counts by status.
type SubscriptionStats struct {
	Total    int `json:"total"`
	Active   int `json:"active"`
	Trialing int `json:"trialing"`
	PastDue  int `json:"past_due"`
	Canceled int `json:"canceled"`
}

// TrialsEnding counts upcoming trial expirations per horizon.
type TrialsEnding struct {
	Within1Day   int `json:"within_1d"`
	Within7Days  int `json:"within_7d"`
	Within30Days int `json:"within_30d"`
}

// BillingStats is the operational overview served by the billing API.
type BillingStats struct {
	Subscriptions SubscriptionStats `json:"subscriptions"`
	TrialsEnding  TrialsEnding      `json:"trials_ending"`
	AwaitingRetry int               `json:"awaiting_retry"`
}
