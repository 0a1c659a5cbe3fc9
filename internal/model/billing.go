package model

import (
	"encoding/json"
	"time"
)

// PaymentAttempt is the normalized outcome of one tokenized charge against
// the payment gateway. Attempts are not persisted as rows; they feed the
// billing report and the event log.
type PaymentAttempt struct {
	SubscriptionID    string    `json:"subscription_id"`
	OrganizationID    string    `json:"organization_id"`
	OrderRef          string    `json:"order_ref"`
	Amount            int64     `json:"amount"`
	Currency          string    `json:"currency"`
	AttemptNumber     int       `json:"attempt_number"`
	Success           bool      `json:"success"`
	AuthorizationCode string    `json:"authorization_code,omitempty"`
	ErrorMessage      string    `json:"error_message,omitempty"`
	AttemptedAt       time.Time `json:"attempted_at"`
}

// Notification kinds produced by the billing run.
const (
	NotificationTrialEnding          = "trial_ending"
	NotificationPaymentSuccess       = "payment_success"
	NotificationPaymentFailed        = "payment_failed"
	NotificationSubscriptionCanceled = "subscription_canceled"
)

// TrialEndingData is the payload for trial_ending notifications.
type TrialEndingData struct {
	TrialEnd time.Time `json:"trial_end"`
	PlanName string    `json:"plan_name"`
}

// PaymentSuccessData is the payload for payment_success notifications.
type PaymentSuccessData struct {
	Amount            int64     `json:"amount"`
	Currency          string    `json:"currency"`
	AuthorizationCode string    `json:"authorization_code"`
	NextBillingDate   time.Time `json:"next_billing_date"`
}

// PaymentFailedData is the payload for payment_failed notifications.
type PaymentFailedData struct {
	Amount        int64      `json:"amount"`
	Currency      string     `json:"currency"`
	AttemptNumber int        `json:"attempt_number"`
	ErrorMessage  string     `json:"error_message"`
	RetryAt       *time.Time `json:"retry_at,omitempty"`
}

// SubscriptionCanceledData is the payload for subscription_canceled
// notifications.
type SubscriptionCanceledData struct {
	Reason       string `json:"reason"`
	AttemptsMade int    `json:"attempts_made"`
}

// BillingNotification is one billing event destined for the notification
// sink. Kind selects exactly one of the payload pointers; the others are nil.
type BillingNotification struct {
	Kind           string    `json:"kind"`
	SubscriptionID string    `json:"subscription_id"`
	OrganizationID string    `json:"organization_id"`
	CustomerEmail  string    `json:"customer_email,omitempty"`
	OccurredAt     time.Time `json:"occurred_at"`

	TrialEnding          *TrialEndingData          `json:"trial_ending,omitempty"`
	PaymentSuccess       *PaymentSuccessData       `json:"payment_success,omitempty"`
	PaymentFailed        *PaymentFailedData        `json:"payment_failed,omitempty"`
	SubscriptionCanceled *SubscriptionCanceledData `json:"subscription_canceled,omitempty"`
}

// Alert severities, in increasing order. Only medium and above are emitted.
const (
	SeverityLow      = "low"
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)

// Alert types raised by the analyzer.
const (
	AlertHighFailureRate = "high_failure_rate"
	AlertBillingFailure  = "billing_failure"
	AlertSystemError     = "system_error"
	AlertPaymentFraud    = "payment_fraud"
)

// FailureRateDetail carries the numbers behind a high_failure_rate alert.
type FailureRateDetail struct {
	Pass      string  `json:"pass"`
	Processed int     `json:"processed"`
	Failed    int     `json:"failed"`
	Rate      float64 `json:"rate"`
}

// FraudFailure is one failed charge inside a payment_fraud alert.
type FraudFailure struct {
	SubscriptionID string    `json:"subscription_id"`
	ErrorMessage   string    `json:"error_message"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// FraudDetail lists the concentrated failures for one organization.
type FraudDetail struct {
	OrganizationID string         `json:"organization_id"`
	FailureCount   int            `json:"failure_count"`
	Failures       []FraudFailure `json:"failures"`
}

// Alert is a severity-tagged operational alert produced by the analyzer.
// Detail pointers are set per type; untyped data does not exist.
type Alert struct {
	Type           string    `json:"type"`
	Severity       string    `json:"severity"`
	Title          string    `json:"title"`
	Message        string    `json:"message"`
	OrganizationID string    `json:"organization_id,omitempty"`
	OccurredAt     time.Time `json:"occurred_at"`

	FailureRate  *FailureRateDetail `json:"failure_rate,omitempty"`
	ErrorSamples []string           `json:"error_samples,omitempty"`
	Fraud        *FraudDetail       `json:"fraud,omitempty"`
}

// PassResult aggregates one billing pass. Errors holds per-subscription
// error strings; a failing record never aborts its pass.
type PassResult struct {
	Processed  int      `json:"processed"`
	Successful int      `json:"successful"`
	Failed     int      `json:"failed"`
	Errors     []string `json:"errors,omitempty"`
}

// BillingReport is the consolidated result of one daily billing run.
type BillingReport struct {
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	TrialNotices PassResult `json:"trial_notices"`
	TrialCharges PassResult `json:"trial_charges"`
	RetrySweep   PassResult `json:"retry_sweep"`

	// SkippedNoToken counts trial subscriptions left alone because no
	// reusable charge token was registered.
	SkippedNoToken int `json:"skipped_no_token"`

	Notifications []BillingNotification `json:"notifications"`
	Alerts        []Alert               `json:"alerts"`
	AlertsSent    int                   `json:"alerts_sent"`
	AlertsFailed  int                   `json:"alerts_failed"`

	// RunErrors holds pass-level failures (aborted queries), one entry per
	// aborted pass.
	RunErrors []string `json:"run_errors,omitempty"`
}

// Billing event kinds stored in the event log.
const (
	EventKindNotification = "notification"
	EventKindAlert        = "alert"
)

// BillingEvent is one persisted entry in the billing event log. Payload
// holds the marshaled notification or alert.
type BillingEvent struct {
	ID             string          `json:"id"`
	Kind           string          `json:"kind"`
	Type           string          `json:"type"`
	Severity       string          `json:"severity,omitempty"`
	OrganizationID string          `json:"organization_id,omitempty"`
	SubscriptionID string          `json:"subscription_id,omitempty"`
	Payload        json.RawMessage `json:"payload"`
	CreatedAt      time.Time       `json:"created_at"`
}

// AllErrors collects every error string from the run: per-subscription
// errors from each pass plus run-level failures.
func (r *BillingReport) AllErrors() []string {
	var out []string
	out = append(out, r.TrialNotices.Errors...)
	out = append(out, r.TrialCharges.Errors...)
	out = append(out, r.RetrySweep.Errors...)
	out = append(out, r.RunErrors...)
	return out
}
