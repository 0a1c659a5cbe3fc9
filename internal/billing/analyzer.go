package billing

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/edvin/bookwell/internal/model"
)

// Analyzer thresholds.
const (
	failureRateThreshold  = 0.20
	criticalRateThreshold = 0.50
	canceledAlertCount    = 3
	totalErrorThreshold   = 10
	fraudFailureCount     = 3
	maxErrorSamples       = 5
)

// criticalErrorPatterns are matched case-insensitively as substrings of
// error strings.
var criticalErrorPatterns = []string{
	"insufficient_funds",
	"card_expired",
	"card_blocked",
	"fraud_suspected",
}

// AnalyzerInput is everything the analyzer inspects from one billing run.
type AnalyzerInput struct {
	ChargePass    model.PassResult
	RetryPass     model.PassResult
	Notifications []model.BillingNotification
	Errors        []string
}

// Analyze inspects a run's aggregates and returns severity-tagged alerts.
// Rules are evaluated independently; none suppresses another. Only alerts of
// severity medium and above are returned. A panic inside analysis is
// recovered into a single critical system_error alert so that a bug in
// alerting never blocks the billing run it analyzes.
func Analyze(now time.Time, in AnalyzerInput) (alerts []model.Alert) {
	defer func() {
		if r := recover(); r != nil {
			alerts = []model.Alert{{
				Type:       model.AlertSystemError,
				Severity:   model.SeverityCritical,
				Title:      "Billing analysis failed",
				Message:    fmt.Sprintf("alert analysis panicked: %v", r),
				OccurredAt: now,
			}}
		}
	}()

	alerts = append(alerts, failureRateAlerts(now, in)...)
	alerts = append(alerts, criticalPatternAlert(now, in.Errors)...)
	alerts = append(alerts, cancellationAlert(now, in.Notifications)...)
	alerts = append(alerts, errorVolumeAlert(now, in.Errors)...)
	alerts = append(alerts, fraudAlerts(now, in.Notifications)...)

	filtered := alerts[:0]
	for _, a := range alerts {
		if a.Severity != model.SeverityLow {
			filtered = append(filtered, a)
		}
	}
	return filtered
}

func failureRateAlerts(now time.Time, in AnalyzerInput) []model.Alert {
	var alerts []model.Alert

	if a := passRateAlert(now, "trial_charges", in.ChargePass, true); a != nil {
		alerts = append(alerts, *a)
	}
	if a := passRateAlert(now, "retry_sweep", in.RetryPass, false); a != nil {
		alerts = append(alerts, *a)
	}
	return alerts
}

// passRateAlert returns a high_failure_rate alert when failed/processed
// strictly exceeds 20%. Exactly 20% does not trigger. The charge pass
// escalates to critical above 50%; the retry sweep stays at high.
func passRateAlert(now time.Time, pass string, result model.PassResult, escalate bool) *model.Alert {
	if result.Processed == 0 {
		return nil
	}
	rate := float64(result.Failed) / float64(result.Processed)
	if rate <= failureRateThreshold {
		return nil
	}

	severity := model.SeverityHigh
	if escalate && rate > criticalRateThreshold {
		severity = model.SeverityCritical
	}

	return &model.Alert{
		Type:       model.AlertHighFailureRate,
		Severity:   severity,
		Title:      fmt.Sprintf("High payment failure rate in %s pass", pass),
		Message:    fmt.Sprintf("%d of %d charges failed (%.1f%%)", result.Failed, result.Processed, rate*100),
		OccurredAt: now,
		FailureRate: &model.FailureRateDetail{
			Pass:      pass,
			Processed: result.Processed,
			Failed:    result.Failed,
			Rate:      rate,
		},
	}
}

func criticalPatternAlert(now time.Time, errs []string) []model.Alert {
	var samples []string
	for _, e := range errs {
		lower := strings.ToLower(e)
		for _, pattern := range criticalErrorPatterns {
			if strings.Contains(lower, pattern) {
				if len(samples) < maxErrorSamples {
					samples = append(samples, e)
				}
				break
			}
		}
	}
	if len(samples) == 0 {
		return nil
	}
	return []model.Alert{{
		Type:         model.AlertBillingFailure,
		Severity:     model.SeverityCritical,
		Title:        "Critical payment errors detected",
		Message:      fmt.Sprintf("billing run produced errors matching critical patterns (%d sampled)", len(samples)),
		OccurredAt:   now,
		ErrorSamples: samples,
	}}
}

func cancellationAlert(now time.Time, notifications []model.BillingNotification) []model.Alert {
	count := 0
	for _, n := range notifications {
		if n.Kind == model.NotificationSubscriptionCanceled {
			count++
		}
	}
	if count <= canceledAlertCount {
		return nil
	}
	return []model.Alert{{
		Type:       model.AlertBillingFailure,
		Severity:   model.SeverityMedium,
		Title:      "Elevated subscription cancellations",
		Message:    fmt.Sprintf("%d subscriptions canceled after exhausting payment retries", count),
		OccurredAt: now,
	}}
}

func errorVolumeAlert(now time.Time, errs []string) []model.Alert {
	if len(errs) <= totalErrorThreshold {
		return nil
	}
	return []model.Alert{{
		Type:       model.AlertSystemError,
		Severity:   model.SeverityHigh,
		Title:      "High billing error volume",
		Message:    fmt.Sprintf("billing run recorded %d errors", len(errs)),
		OccurredAt: now,
	}}
}

// fraudAlerts groups payment_failed notifications by organization; three or
// more failures for one organization in a single batch looks like card
// testing and yields a payment_fraud alert listing each failure.
func fraudAlerts(now time.Time, notifications []model.BillingNotification) []model.Alert {
	byOrg := map[string][]model.BillingNotification{}
	for _, n := range notifications {
		if n.Kind == model.NotificationPaymentFailed {
			byOrg[n.OrganizationID] = append(byOrg[n.OrganizationID], n)
		}
	}

	orgs := make([]string, 0, len(byOrg))
	for org, failures := range byOrg {
		if len(failures) >= fraudFailureCount {
			orgs = append(orgs, org)
		}
	}
	sort.Strings(orgs)

	var alerts []model.Alert
	for _, org := range orgs {
		failures := byOrg[org]
		detail := &model.FraudDetail{
			OrganizationID: org,
			FailureCount:   len(failures),
		}
		for _, n := range failures {
			f := model.FraudFailure{
				SubscriptionID: n.SubscriptionID,
				OccurredAt:     n.OccurredAt,
			}
			if n.PaymentFailed != nil {
				f.ErrorMessage = n.PaymentFailed.ErrorMessage
			}
			detail.Failures = append(detail.Failures, f)
		}
		alerts = append(alerts, model.Alert{
			Type:           model.AlertPaymentFraud,
			Severity:       model.SeverityHigh,
			Title:          fmt.Sprintf("Concentrated payment failures for organization %s", org),
			Message:        fmt.Sprintf("%d payment failures for one organization in a single billing run", len(failures)),
			OrganizationID: org,
			OccurredAt:     now,
			Fraud:          detail,
		})
	}
	return alerts
}
