package payment

import "context"

// ChargeRequest is one tokenized charge against a previously registered
// card.
type ChargeRequest struct {
	TokenUserID   string `json:"token_user_id"`
	TokenUsername string `json:"token_username"`
	OrderRef      string `json:"order_ref"`
	Amount        int64  `json:"amount"`
	Currency      string `json:"currency"`
}

// ChargeResult is the gateway's authorization outcome. A business decline is
// a normal result (Approved=false with an ErrorMessage), not an error;
// Charge returns a non-nil error only for transport or protocol failures.
type ChargeResult struct {
	Approved          bool   `json:"approved"`
	AuthorizationCode string `json:"authorization_code,omitempty"`
	ErrorMessage      string `json:"error_message,omitempty"`
}

// Gateway executes tokenized charges. Implementations must apply a bounded
// timeout; a timed-out charge surfaces as an error, never as an ambiguous
// result.
type Gateway interface {
	Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error)
}
