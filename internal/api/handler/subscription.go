package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/edvin/bookwell/internal/api/request"
	"github.com/edvin/bookwell/internal/api/response"
	"github.com/edvin/bookwell/internal/config"
	"github.com/edvin/bookwell/internal/core"
	"github.com/edvin/bookwell/internal/model"
	"github.com/edvin/bookwell/internal/platform"
)

// Subscription handles subscription lifecycle endpoints.
type Subscription struct {
	svc   *core.SubscriptionService
	plans *config.PlanCatalog
}

// NewSubscription creates a new Subscription handler.
func NewSubscription(svc *core.SubscriptionService, plans *config.PlanCatalog) *Subscription {
	return &Subscription{svc: svc, plans: plans}
}

// Create starts a new subscription on a plan from the catalog. New
// subscriptions begin trialing; the first charge happens when the trial
// runs out.
func (h *Subscription) Create(w http.ResponseWriter, r *http.Request) {
	var req request.CreateSubscription
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	plan, ok := h.plans.Get(req.PlanID)
	if !ok {
		response.WriteError(w, http.StatusBadRequest, "unknown plan: "+req.PlanID)
		return
	}

	trialDays := plan.TrialDays
	if req.TrialDays != nil {
		trialDays = *req.TrialDays
	}

	now := time.Now().UTC()
	trialEnd := now.Add(time.Duration(trialDays) * 24 * time.Hour)

	sub := &model.Subscription{
		ID:                 platform.NewName("sub_"),
		OrganizationID:     req.OrganizationID,
		PlanID:             plan.ID,
		PlanName:           plan.Name,
		Status:             model.StatusTrialing,
		CurrentPeriodStart: now,
		CurrentPeriodEnd:   trialEnd,
		TrialStart:         &now,
		TrialEnd:           &trialEnd,
		Amount:             plan.Amount,
		Currency:           plan.Currency,
		Interval:           plan.Interval,
		PaymentMethod:      "card",
		CustomerEmail:      req.CustomerEmail,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	if err := h.svc.Create(r.Context(), sub); err != nil {
		response.WriteServiceError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusCreated, sub)
}

// Get retrieves a subscription by ID.
func (h *Subscription) Get(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	sub, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		response.WriteServiceError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, sub)
}

// GetByOrganization retrieves the most recent subscription for an
// organization.
func (h *Subscription) GetByOrganization(w http.ResponseWriter, r *http.Request) {
	orgID, err := request.RequireID(chi.URLParam(r, "orgID"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	sub, err := h.svc.GetByOrganization(r.Context(), orgID)
	if err != nil {
		response.WriteServiceError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, sub)
}

// Cancel handles an explicit cancellation request.
func (h *Subscription) Cancel(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.svc.Cancel(r.Context(), id); err != nil {
		response.WriteServiceError(w, err)
		return
	}

	sub, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		response.WriteServiceError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, sub)
}

// RegisterPaymentToken attaches a reusable charge token to the
// subscription, enabling automatic billing.
func (h *Subscription) RegisterPaymentToken(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req request.RegisterPaymentToken
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	token := model.PaymentToken{
		UserID:           req.UserID,
		Username:         req.Username,
		InscriptionToken: req.InscriptionToken,
		InscriptionDate:  req.InscriptionDate,
	}
	if err := h.svc.RegisterPaymentToken(r.Context(), id, token); err != nil {
		response.WriteServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListPlans returns the plan catalog.
func (h *Subscription) ListPlans(w http.ResponseWriter, r *http.Request) {
	response.WriteJSON(w, http.StatusOK, map[string]any{"items": h.plans.All()})
}
