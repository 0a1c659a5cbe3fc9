package billing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edvin/bookwell/internal/model"
	"github.com/edvin/bookwell/internal/payment"
)

// stubGateway returns canned results or errors, recording requests.
type stubGateway struct {
	result   *payment.ChargeResult
	err      error
	requests []payment.ChargeRequest
}

func (g *stubGateway) Charge(_ context.Context, req payment.ChargeRequest) (*payment.ChargeResult, error) {
	g.requests = append(g.requests, req)
	if g.err != nil {
		return nil, g.err
	}
	return g.result, nil
}

func tokenSub(attempts int) *model.Subscription {
	return &model.Subscription{
		ID:             "sub-1",
		OrganizationID: "org-1",
		Amount:         9900,
		Currency:       "USD",
		PaymentActive:  true,
		PaymentToken: &model.PaymentToken{
			UserID:           "tok-user-1",
			Username:         "acme",
			InscriptionToken: "insc-1",
		},
		PaymentAttempts: attempts,
	}
}

func TestExecutor_Execute_Approved(t *testing.T) {
	gw := &stubGateway{result: &payment.ChargeResult{Approved: true, AuthorizationCode: "AUTH123"}}
	e := NewExecutor(gw)
	now := time.Now()

	attempt := e.Execute(context.Background(), tokenSub(0), now)

	assert.True(t, attempt.Success)
	assert.Equal(t, "AUTH123", attempt.AuthorizationCode)
	assert.Empty(t, attempt.ErrorMessage)
	assert.Equal(t, 1, attempt.AttemptNumber)
	assert.Equal(t, now, attempt.AttemptedAt)

	require.Len(t, gw.requests, 1)
	assert.Equal(t, "tok-user-1", gw.requests[0].TokenUserID)
	assert.Equal(t, int64(9900), gw.requests[0].Amount)
	assert.NotEmpty(t, gw.requests[0].OrderRef)
}

func TestExecutor_Execute_Declined(t *testing.T) {
	gw := &stubGateway{result: &payment.ChargeResult{Approved: false, ErrorMessage: "insufficient_funds"}}
	e := NewExecutor(gw)

	attempt := e.Execute(context.Background(), tokenSub(1), time.Now())

	assert.False(t, attempt.Success)
	assert.Equal(t, "insufficient_funds", attempt.ErrorMessage)
	assert.Equal(t, 2, attempt.AttemptNumber)
}

func TestExecutor_Execute_DeclinedWithoutMessage(t *testing.T) {
	gw := &stubGateway{result: &payment.ChargeResult{Approved: false}}
	e := NewExecutor(gw)

	attempt := e.Execute(context.Background(), tokenSub(0), time.Now())

	assert.False(t, attempt.Success)
	assert.Equal(t, "charge declined", attempt.ErrorMessage)
}

func TestExecutor_Execute_TransportError(t *testing.T) {
	gw := &stubGateway{err: errors.New("connection refused")}
	e := NewExecutor(gw)

	attempt := e.Execute(context.Background(), tokenSub(0), time.Now())

	assert.False(t, attempt.Success)
	assert.Contains(t, attempt.ErrorMessage, "gateway error:")
	assert.Contains(t, attempt.ErrorMessage, "connection refused")
}

func TestExecutor_Execute_NoToken(t *testing.T) {
	gw := &stubGateway{}
	e := NewExecutor(gw)
	sub := tokenSub(0)
	sub.PaymentActive = false

	attempt := e.Execute(context.Background(), sub, time.Now())

	assert.False(t, attempt.Success)
	assert.Equal(t, "no active payment token", attempt.ErrorMessage)
	assert.Empty(t, gw.requests, "gateway must not be called without a token")
}

func TestExecutor_Execute_UniqueOrderRefs(t *testing.T) {
	gw := &stubGateway{result: &payment.ChargeResult{Approved: true}}
	e := NewExecutor(gw)

	e.Execute(context.Background(), tokenSub(0), time.Now())
	e.Execute(context.Background(), tokenSub(0), time.Now())

	require.Len(t, gw.requests, 2)
	assert.NotEqual(t, gw.requests[0].OrderRef, gw.requests[1].OrderRef)
}
