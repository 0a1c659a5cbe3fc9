package handler

import (
	"net/http"
	"time"

	"github.com/edvin/bookwell/internal/api/request"
	"github.com/edvin/bookwell/internal/api/response"
	"github.com/edvin/bookwell/internal/core"
	"github.com/edvin/bookwell/internal/model"
)

// maxReportErrors caps the error strings echoed in the run-daily response.
// The full list lives in the archived report and the logs.
const maxReportErrors = 10

// Billing handles billing run and overview endpoints.
type Billing struct {
	svc *core.BillingService
}

// NewBilling creates a new Billing handler.
func NewBilling(svc *core.BillingService) *Billing {
	return &Billing{svc: svc}
}

// runDailyResponse summarizes one billing run for the HTTP caller.
type runDailyResponse struct {
	StartedAt    time.Time        `json:"started_at"`
	FinishedAt   time.Time        `json:"finished_at"`
	TrialNotices model.PassResult `json:"trial_notices"`
	TrialCharges model.PassResult `json:"trial_charges"`
	RetrySweep   model.PassResult `json:"retry_sweep"`

	SkippedNoToken int `json:"skipped_no_token"`
	Notifications  int `json:"notifications"`
	AlertsRaised   int `json:"alerts_raised"`
	AlertsSent     int `json:"alerts_sent"`
	AlertsFailed   int `json:"alerts_failed"`

	TotalErrors int      `json:"total_errors"`
	Errors      []string `json:"errors,omitempty"`
}

// RunDaily triggers a full billing run synchronously and returns its
// summary. Intended for operators; the scheduled run goes through the
// worker.
func (h *Billing) RunDaily(w http.ResponseWriter, r *http.Request) {
	report, err := h.svc.RunDaily(r.Context())
	if err != nil {
		response.WriteServiceError(w, err)
		return
	}

	allErrors := report.AllErrors()
	echoed := allErrors
	if len(echoed) > maxReportErrors {
		echoed = echoed[:maxReportErrors]
	}

	response.WriteJSON(w, http.StatusOK, runDailyResponse{
		StartedAt:      report.StartedAt,
		FinishedAt:     report.FinishedAt,
		TrialNotices:   report.TrialNotices,
		TrialCharges:   report.TrialCharges,
		RetrySweep:     report.RetrySweep,
		SkippedNoToken: report.SkippedNoToken,
		Notifications:  len(report.Notifications),
		AlertsRaised:   len(report.Alerts),
		AlertsSent:     report.AlertsSent,
		AlertsFailed:   report.AlertsFailed,
		TotalErrors:    len(allErrors),
		Errors:         echoed,
	})
}

// Stats returns the operational billing overview.
func (h *Billing) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Stats(r.Context())
	if err != nil {
		response.WriteServiceError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, stats)
}

// Events lists recent billing events, newest first.
func (h *Billing) Events(w http.ResponseWriter, r *http.Request) {
	filter := request.ParseBillingEventFilter(r)

	events, err := h.svc.Events(r.Context(), filter.Kind, filter.Limit)
	if err != nil {
		response.WriteServiceError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, map[string]any{"items": events})
}
