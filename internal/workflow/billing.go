package workflow

import (
	"fmt"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/edvin/bookwell/internal/model"
)

// DailyBillingWorkflow runs the three billing passes once per day. The run
// activity is never retried: a replayed run could double-charge customers,
// and the retry sweep on the next day picks up anything left in past_due.
func DailyBillingWorkflow(ctx workflow.Context) error {
	runOpts := workflow.ActivityOptions{
		StartToCloseTimeout: 15 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 1,
		},
	}

	var report model.BillingReport
	err := workflow.ExecuteActivity(workflow.WithActivityOptions(ctx, runOpts), "RunDailyBilling").Get(ctx, &report)
	if err != nil {
		return fmt.Errorf("daily billing run: %w", err)
	}

	// Archiving is best effort; the report already landed in the event log
	// and metrics.
	archiveOpts := workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts:    3,
			InitialInterval:    5 * time.Second,
			BackoffCoefficient: 2.0,
		},
	}

	var key string
	err = workflow.ExecuteActivity(workflow.WithActivityOptions(ctx, archiveOpts), "ArchiveBillingReport", &report).Get(ctx, &key)
	if err != nil {
		workflow.GetLogger(ctx).Warn("failed to archive billing report", "error", err)
	}

	return nil
}
