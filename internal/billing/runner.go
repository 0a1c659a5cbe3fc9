package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/edvin/bookwell/internal/model"
)

// trialNoticeDays is the advance-warning horizon for trial_ending notices.
const trialNoticeDays = 1

// billingPeriod is the interval granted by a successful charge.
const billingPeriod = 30 * 24 * time.Hour

// Store is the subscription persistence consumed by the runner. All writes
// are conditional on the attempt counter read at query time; a losing write
// returns an error and the subscription is left for the next run.
type Store interface {
	// TrialsExpiring returns trialing subscriptions whose trial ends within
	// the given number of days from now (0 = has ended by now).
	TrialsExpiring(ctx context.Context, days int, requireActiveToken bool) ([]model.Subscription, error)
	// DueForRetry returns past_due subscriptions whose retry_payment_at has
	// elapsed and whose payment_attempts is below maxAttempts.
	DueForRetry(ctx context.Context, maxAttempts int) ([]model.Subscription, error)
	// MarkPaid records a successful charge: status active, attempts reset,
	// retry cleared.
	MarkPaid(ctx context.Context, sub *model.Subscription, paidAt, nextBilling time.Time) error
	// MarkRetryScheduled records a failed charge with a scheduled retry:
	// status past_due, attempts incremented.
	MarkRetryScheduled(ctx context.Context, sub *model.Subscription, attempts int, lastAttempt, retryAt time.Time) error
	// MarkCanceled records retry exhaustion: status canceled, retry cleared.
	MarkCanceled(ctx context.Context, sub *model.Subscription, attempts int, canceledAt time.Time) error
}

// Sink delivers alerts and records billing notifications. Implementations
// must not panic on individual delivery failures; the runner aggregates
// sent/failed counts.
type Sink interface {
	DeliverAlert(ctx context.Context, alert model.Alert) error
	RecordNotification(ctx context.Context, n model.BillingNotification) error
}

// Runner sequences the three daily billing passes and aggregates one
// report. Passes run sequentially and subscriptions are processed one at a
// time: duplicate-charge risk rules out intra-batch parallelism, and
// gateway rate limits are unknown.
type Runner struct {
	store    Store
	executor *Executor
	sink     Sink
	policy   RetryPolicy
	logger   zerolog.Logger
	now      func() time.Time
}

// NewRunner creates a Runner with the default retry policy.
func NewRunner(store Store, executor *Executor, sink Sink, logger zerolog.Logger) *Runner {
	return &Runner{
		store:    store,
		executor: executor,
		sink:     sink,
		policy:   DefaultRetryPolicy(),
		logger:   logger.With().Str("component", "billing-runner").Logger(),
		now:      time.Now,
	}
}

// RunDaily executes the trial-notice, expired-trial charge and retry sweep
// passes in order, analyzes the aggregates, delivers alerts, and returns the
// consolidated report. A query failure aborts only its own pass; later
// passes still run. RunDaily returns an error only when the report itself
// cannot be produced, which in practice is never.
func (r *Runner) RunDaily(ctx context.Context) (*model.BillingReport, error) {
	report := &model.BillingReport{StartedAt: r.now()}

	r.runTrialNoticePass(ctx, report)
	r.runChargePass(ctx, report)
	r.runRetryPass(ctx, report)

	alerts := Analyze(r.now(), AnalyzerInput{
		ChargePass:    report.TrialCharges,
		RetryPass:     report.RetrySweep,
		Notifications: report.Notifications,
		Errors:        report.AllErrors(),
	})
	report.Alerts = alerts

	r.deliver(ctx, report)

	report.FinishedAt = r.now()
	r.logger.Info().
		Int("notices", report.TrialNotices.Processed).
		Int("charges", report.TrialCharges.Processed).
		Int("retries", report.RetrySweep.Processed).
		Int("alerts", len(report.Alerts)).
		Int("errors", len(report.AllErrors())).
		Msg("daily billing run complete")

	return report, nil
}

// runTrialNoticePass synthesizes trial_ending notifications for trials
// expiring within the notice horizon. Pure notice: no mutation, no charge.
func (r *Runner) runTrialNoticePass(ctx context.Context, report *model.BillingReport) {
	subs, err := r.store.TrialsExpiring(ctx, trialNoticeDays, false)
	if err != nil {
		r.abortPass(report, "trial notice", err)
		return
	}

	for i := range subs {
		sub := &subs[i]
		report.TrialNotices.Processed++

		n := model.BillingNotification{
			Kind:           model.NotificationTrialEnding,
			SubscriptionID: sub.ID,
			OrganizationID: sub.OrganizationID,
			CustomerEmail:  sub.CustomerEmail,
			OccurredAt:     r.now(),
			TrialEnding:    &model.TrialEndingData{PlanName: sub.PlanName},
		}
		if sub.TrialEnd != nil {
			n.TrialEnding.TrialEnd = *sub.TrialEnd
		}
		report.Notifications = append(report.Notifications, n)
		report.TrialNotices.Successful++
	}
}

// runChargePass charges trials that have just ended. Subscriptions without
// an active token are skipped and counted, left trialing for a manual
// payment fallback.
func (r *Runner) runChargePass(ctx context.Context, report *model.BillingReport) {
	subs, err := r.store.TrialsExpiring(ctx, 0, false)
	if err != nil {
		r.abortPass(report, "expired-trial charge", err)
		return
	}

	for i := range subs {
		sub := &subs[i]
		if !sub.HasActiveToken() {
			report.SkippedNoToken++
			r.logger.Debug().Str("subscription", sub.ID).Msg("trial expired without payment token, skipping")
			continue
		}
		r.chargeOne(ctx, sub, &report.TrialCharges, report)
	}
}

// runRetryPass re-attempts past_due subscriptions whose backoff has
// elapsed. The query predicate (past_due) is disjoint from the charge
// pass's (trialing), so no subscription is double-charged within one run.
func (r *Runner) runRetryPass(ctx context.Context, report *model.BillingReport) {
	subs, err := r.store.DueForRetry(ctx, r.policy.MaxAttempts)
	if err != nil {
		r.abortPass(report, "retry sweep", err)
		return
	}

	for i := range subs {
		sub := &subs[i]
		r.chargeOne(ctx, sub, &report.RetrySweep, report)
	}
}

// chargeOne executes one charge and applies the outcome: success resets the
// subscription to active; failure either schedules a retry or, when the
// policy says the attempts are exhausted, cancels. The terminal-attempt
// decision is computed from the policy before the store write and reused for
// the notification, so the two can never disagree. Store errors are
// recorded per subscription and never abort the pass.
func (r *Runner) chargeOne(ctx context.Context, sub *model.Subscription, pass *model.PassResult, report *model.BillingReport) {
	pass.Processed++
	now := r.now()

	attempt := r.executor.Execute(ctx, sub, now)

	if attempt.Success {
		nextBilling := now.Add(billingPeriod)
		if err := r.store.MarkPaid(ctx, sub, now, nextBilling); err != nil {
			r.recordSubError(pass, sub.ID, fmt.Errorf("mark paid: %w", err))
			return
		}
		pass.Successful++
		report.Notifications = append(report.Notifications, model.BillingNotification{
			Kind:           model.NotificationPaymentSuccess,
			SubscriptionID: sub.ID,
			OrganizationID: sub.OrganizationID,
			CustomerEmail:  sub.CustomerEmail,
			OccurredAt:     now,
			PaymentSuccess: &model.PaymentSuccessData{
				Amount:            attempt.Amount,
				Currency:          attempt.Currency,
				AuthorizationCode: attempt.AuthorizationCode,
				NextBillingDate:   nextBilling,
			},
		})
		return
	}

	pass.Failed++
	r.recordSubError(pass, sub.ID, fmt.Errorf("charge failed: %s", attempt.ErrorMessage))

	attempts := sub.PaymentAttempts + 1

	if r.policy.Exhausted(attempts) {
		if err := r.store.MarkCanceled(ctx, sub, attempts, now); err != nil {
			r.recordSubError(pass, sub.ID, fmt.Errorf("mark canceled: %w", err))
			return
		}
		report.Notifications = append(report.Notifications, model.BillingNotification{
			Kind:           model.NotificationSubscriptionCanceled,
			SubscriptionID: sub.ID,
			OrganizationID: sub.OrganizationID,
			CustomerEmail:  sub.CustomerEmail,
			OccurredAt:     now,
			SubscriptionCanceled: &model.SubscriptionCanceledData{
				Reason:       "payment retries exhausted",
				AttemptsMade: attempts,
			},
		})
		return
	}

	retryAt := now.Add(r.policy.RetryDelay(attempts))
	if err := r.store.MarkRetryScheduled(ctx, sub, attempts, now, retryAt); err != nil {
		r.recordSubError(pass, sub.ID, fmt.Errorf("schedule retry: %w", err))
		return
	}
	report.Notifications = append(report.Notifications, model.BillingNotification{
		Kind:           model.NotificationPaymentFailed,
		SubscriptionID: sub.ID,
		OrganizationID: sub.OrganizationID,
		CustomerEmail:  sub.CustomerEmail,
		OccurredAt:     now,
		PaymentFailed: &model.PaymentFailedData{
			Amount:        attempt.Amount,
			Currency:      attempt.Currency,
			AttemptNumber: attempts,
			ErrorMessage:  attempt.ErrorMessage,
			RetryAt:       &retryAt,
		},
	})
}

// deliver records every notification and delivers every alert through the
// sink. Individual delivery failures are counted, never retried within the
// same run.
func (r *Runner) deliver(ctx context.Context, report *model.BillingReport) {
	for _, n := range report.Notifications {
		if err := r.sink.RecordNotification(ctx, n); err != nil {
			r.logger.Warn().Err(err).Str("kind", n.Kind).Str("subscription", n.SubscriptionID).Msg("record notification failed")
		}
	}

	for _, a := range report.Alerts {
		if err := r.sink.DeliverAlert(ctx, a); err != nil {
			report.AlertsFailed++
			r.logger.Error().Err(err).Str("type", a.Type).Str("severity", a.Severity).Msg("alert delivery failed")
			continue
		}
		report.AlertsSent++
	}
}

func (r *Runner) abortPass(report *model.BillingReport, pass string, err error) {
	wrapped := fmt.Sprintf("%s pass aborted: %v", pass, err)
	report.RunErrors = append(report.RunErrors, wrapped)
	r.logger.Error().Err(err).Str("pass", pass).Msg("billing pass aborted")
}

func (r *Runner) recordSubError(pass *model.PassResult, subID string, err error) {
	pass.Errors = append(pass.Errors, fmt.Sprintf("subscription %s: %v", subID, err))
	r.logger.Warn().Err(err).Str("subscription", subID).Msg("billing error")
}
