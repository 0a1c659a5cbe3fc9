package activity

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/edvin/bookwell/internal/archive"
	"github.com/edvin/bookwell/internal/core"
	"github.com/edvin/bookwell/internal/model"
)

// Billing contains the activities behind the daily billing workflow.
type Billing struct {
	svc      *core.BillingService
	archiver *archive.ReportArchiver
	logger   zerolog.Logger
}

// NewBilling creates the billing activity struct. archiver may be nil when
// no report bucket is configured.
func NewBilling(svc *core.BillingService, archiver *archive.ReportArchiver, logger zerolog.Logger) *Billing {
	return &Billing{svc: svc, archiver: archiver, logger: logger}
}

// RunDailyBilling executes one full billing run and returns the report.
func (a *Billing) RunDailyBilling(ctx context.Context) (*model.BillingReport, error) {
	report, err := a.svc.RunDaily(ctx)
	if err != nil {
		return nil, fmt.Errorf("run daily billing: %w", err)
	}

	a.logger.Info().
		Int("trial_notices", report.TrialNotices.Processed).
		Int("trial_charges", report.TrialCharges.Processed).
		Int("retry_sweep", report.RetrySweep.Processed).
		Int("alerts", len(report.Alerts)).
		Int("errors", len(report.AllErrors())).
		Msg("daily billing run finished")

	return report, nil
}

// ArchiveBillingReport stores the report in the configured object bucket and
// returns the object key. Returns an empty key when archiving is disabled.
func (a *Billing) ArchiveBillingReport(ctx context.Context, report *model.BillingReport) (string, error) {
	if a.archiver == nil {
		a.logger.Debug().Msg("report archiving disabled, skipping")
		return "", nil
	}

	key, err := a.archiver.Store(ctx, report)
	if err != nil {
		return "", fmt.Errorf("archive billing report: %w", err)
	}
	return key, nil
}
