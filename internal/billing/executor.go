package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/edvin/bookwell/internal/model"
	"github.com/edvin/bookwell/internal/payment"
	"github.com/edvin/bookwell/internal/platform"
)

// Executor issues one tokenized charge for one subscription and normalizes
// the outcome. It never persists anything; the orchestrator owns the store
// writes, which keeps the executor a pure request/response boundary.
type Executor struct {
	gateway payment.Gateway
}

// NewExecutor creates an Executor over the given gateway.
func NewExecutor(gateway payment.Gateway) *Executor {
	return &Executor{gateway: gateway}
}

// Execute charges the subscription's stored token for its plan amount.
// A gateway decline and a transport failure both come back as a
// PaymentAttempt with Success=false; the two cases carry distinct error
// text. Execute itself never returns an error.
func (e *Executor) Execute(ctx context.Context, sub *model.Subscription, now time.Time) model.PaymentAttempt {
	attempt := model.PaymentAttempt{
		SubscriptionID: sub.ID,
		OrganizationID: sub.OrganizationID,
		OrderRef:       platform.NewName("ord_"),
		Amount:         sub.Amount,
		Currency:       sub.Currency,
		AttemptNumber:  sub.PaymentAttempts + 1,
		AttemptedAt:    now,
	}

	if !sub.HasActiveToken() {
		attempt.ErrorMessage = "no active payment token"
		return attempt
	}

	result, err := e.gateway.Charge(ctx, payment.ChargeRequest{
		TokenUserID:   sub.PaymentToken.UserID,
		TokenUsername: sub.PaymentToken.Username,
		OrderRef:      attempt.OrderRef,
		Amount:        sub.Amount,
		Currency:      sub.Currency,
	})
	if err != nil {
		attempt.ErrorMessage = fmt.Sprintf("gateway error: %v", err)
		return attempt
	}

	if result.Approved {
		attempt.Success = true
		attempt.AuthorizationCode = result.AuthorizationCode
		return attempt
	}

	attempt.ErrorMessage = result.ErrorMessage
	if attempt.ErrorMessage == "" {
		attempt.ErrorMessage = "charge declined"
	}
	return attempt
}
