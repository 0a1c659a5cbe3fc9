package request

import "time"

// CreateSubscription holds the request body for creating a subscription.
// Amount and currency come from the plan catalog, never from the caller.
type CreateSubscription struct {
	OrganizationID string `json:"organization_id" validate:"required,min=1,max=255"`
	PlanID         string `json:"plan_id" validate:"required,min=1,max=255"`
	CustomerEmail  string `json:"customer_email" validate:"required,email"`
	// TrialDays overrides the plan's trial length when set.
	TrialDays *int `json:"trial_days" validate:"omitempty,min=0,max=90"`
}

// RegisterPaymentToken holds the request body for attaching a charge token.
type RegisterPaymentToken struct {
	UserID           string    `json:"user_id" validate:"required"`
	Username         string    `json:"username" validate:"required"`
	InscriptionToken string    `json:"inscription_token" validate:"required"`
	InscriptionDate  time.Time `json:"inscription_date" validate:"required"`
}
