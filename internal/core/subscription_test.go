package core

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/edvin/bookwell/internal/model"
)

// subScanFunc fills one subscription row in column order.
func subScanFunc(id, org, status string, attempts int, withToken bool, now time.Time) func(dest ...any) error {
	return func(dest ...any) error {
		trialEnd := now.Add(24 * time.Hour)

		*(dest[0].(*string)) = id
		*(dest[1].(*string)) = org
		*(dest[2].(*string)) = "plan-pro"
		*(dest[3].(*string)) = "Pro"
		*(dest[4].(*string)) = status
		*(dest[5].(*time.Time)) = now
		*(dest[6].(*time.Time)) = now.Add(30 * 24 * time.Hour)
		*(dest[7].(**time.Time)) = &now
		*(dest[8].(**time.Time)) = &trialEnd
		*(dest[9].(*bool)) = false
		*(dest[10].(**time.Time)) = nil
		*(dest[11].(*int64)) = 4900
		*(dest[12].(*string)) = "EUR"
		*(dest[13].(*string)) = model.IntervalMonth
		*(dest[14].(*string)) = "card"
		*(dest[15].(**time.Time)) = nil
		*(dest[16].(**time.Time)) = nil
		*(dest[17].(*bool)) = withToken
		if withToken {
			userID, username, insc := "tok-user", "tok-name", "insc-123"
			*(dest[18].(**string)) = &userID
			*(dest[19].(**string)) = &username
			*(dest[20].(**string)) = &insc
			*(dest[21].(**time.Time)) = &now
		} else {
			*(dest[18].(**string)) = nil
			*(dest[19].(**string)) = nil
			*(dest[20].(**string)) = nil
			*(dest[21].(**time.Time)) = nil
		}
		*(dest[22].(*int)) = attempts
		*(dest[23].(**time.Time)) = nil
		*(dest[24].(**time.Time)) = nil
		*(dest[25].(*string)) = "owner@example.com"
		*(dest[26].(*time.Time)) = now
		*(dest[27].(*time.Time)) = now
		return nil
	}
}

func TestNewSubscriptionService(t *testing.T) {
	db := &mockDB{}
	svc := NewSubscriptionService(db)

	require.NotNil(t, svc)
	assert.Equal(t, db, svc.db)
}

// ---------- Create ----------

func TestSubscriptionService_Create_Success(t *testing.T) {
	db := &mockDB{}
	svc := NewSubscriptionService(db)
	ctx := context.Background()

	sub := &model.Subscription{
		ID:             "sub-1",
		OrganizationID: "org-1",
		Status:         model.StatusTrialing,
		Amount:         4900,
		Currency:       "EUR",
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}

	db.On("Exec", ctx, mock.AnythingOfType("string"), mock.Anything).Return(pgconn.CommandTag{}, nil)

	err := svc.Create(ctx, sub)
	require.NoError(t, err)
	db.AssertExpectations(t)
}

func TestSubscriptionService_Create_Duplicate(t *testing.T) {
	db := &mockDB{}
	svc := NewSubscriptionService(db)
	ctx := context.Background()

	pgErr := &pgconn.PgError{Code: "23505"}
	db.On("Exec", ctx, mock.AnythingOfType("string"), mock.Anything).Return(pgconn.CommandTag{}, pgErr)

	err := svc.Create(ctx, &model.Subscription{ID: "sub-1"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAlreadyExists)
	db.AssertExpectations(t)
}

// ---------- GetByID ----------

func TestSubscriptionService_GetByID_Success(t *testing.T) {
	db := &mockDB{}
	svc := NewSubscriptionService(db)
	ctx := context.Background()

	now := time.Now().Truncate(time.Microsecond)
	row := &mockRow{scanFunc: subScanFunc("sub-1", "org-1", model.StatusTrialing, 0, true, now)}
	db.On("QueryRow", ctx, mock.AnythingOfType("string"), mock.Anything).Return(row)

	result, err := svc.GetByID(ctx, "sub-1")
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, "sub-1", result.ID)
	assert.Equal(t, "org-1", result.OrganizationID)
	assert.Equal(t, model.StatusTrialing, result.Status)
	require.NotNil(t, result.PaymentToken)
	assert.Equal(t, "tok-user", result.PaymentToken.UserID)
	assert.True(t, result.HasActiveToken())
	db.AssertExpectations(t)
}

func TestSubscriptionService_GetByID_NoToken(t *testing.T) {
	db := &mockDB{}
	svc := NewSubscriptionService(db)
	ctx := context.Background()

	now := time.Now().Truncate(time.Microsecond)
	row := &mockRow{scanFunc: subScanFunc("sub-1", "org-1", model.StatusTrialing, 0, false, now)}
	db.On("QueryRow", ctx, mock.AnythingOfType("string"), mock.Anything).Return(row)

	result, err := svc.GetByID(ctx, "sub-1")
	require.NoError(t, err)
	assert.Nil(t, result.PaymentToken)
	assert.False(t, result.HasActiveToken())
	db.AssertExpectations(t)
}

func TestSubscriptionService_GetByID_NotFound(t *testing.T) {
	db := &mockDB{}
	svc := NewSubscriptionService(db)
	ctx := context.Background()

	row := &mockRow{scanFunc: func(dest ...any) error {
		return pgx.ErrNoRows
	}}
	db.On("QueryRow", ctx, mock.AnythingOfType("string"), mock.Anything).Return(row)

	result, err := svc.GetByID(ctx, "nonexistent")
	require.Error(t, err)
	assert.Nil(t, result)
	assert.ErrorIs(t, err, ErrNotFound)
	db.AssertExpectations(t)
}

// ---------- TrialsExpiring / DueForRetry ----------

func TestSubscriptionService_TrialsExpiring_Success(t *testing.T) {
	db := &mockDB{}
	svc := NewSubscriptionService(db)
	ctx := context.Background()

	now := time.Now().Truncate(time.Microsecond)
	rows := newMockRows(
		subScanFunc("sub-1", "org-1", model.StatusTrialing, 0, true, now),
		subScanFunc("sub-2", "org-2", model.StatusTrialing, 0, false, now),
	)
	db.On("Query", ctx, mock.AnythingOfType("string"), mock.Anything).Return(rows, nil)

	result, err := svc.TrialsExpiring(ctx, 1, false)
	require.NoError(t, err)
	require.Len(t, result, 2)
	assert.Equal(t, "sub-1", result[0].ID)
	assert.Equal(t, "sub-2", result[1].ID)
	db.AssertExpectations(t)
}

func TestSubscriptionService_TrialsExpiring_Empty(t *testing.T) {
	db := &mockDB{}
	svc := NewSubscriptionService(db)
	ctx := context.Background()

	db.On("Query", ctx, mock.AnythingOfType("string"), mock.Anything).Return(newEmptyMockRows(), nil)

	result, err := svc.TrialsExpiring(ctx, 0, true)
	require.NoError(t, err)
	assert.Empty(t, result)
	db.AssertExpectations(t)
}

func TestSubscriptionService_DueForRetry_QueryError(t *testing.T) {
	db := &mockDB{}
	svc := NewSubscriptionService(db)
	ctx := context.Background()

	db.On("Query", ctx, mock.AnythingOfType("string"), mock.Anything).Return(nil, errors.New("connection lost"))

	result, err := svc.DueForRetry(ctx, 3)
	require.Error(t, err)
	assert.Nil(t, result)
	assert.Contains(t, err.Error(), "due for retry")
	db.AssertExpectations(t)
}

// ---------- Conditional billing writes ----------

func TestSubscriptionService_MarkPaid_Success(t *testing.T) {
	db := &mockDB{}
	svc := NewSubscriptionService(db)
	ctx := context.Background()

	sub := &model.Subscription{ID: "sub-1", PaymentAttempts: 1}
	db.On("Exec", ctx, mock.AnythingOfType("string"), mock.Anything).Return(pgconn.NewCommandTag("UPDATE 1"), nil)

	err := svc.MarkPaid(ctx, sub, time.Now(), time.Now().Add(30*24*time.Hour))
	require.NoError(t, err)
	db.AssertExpectations(t)
}

func TestSubscriptionService_MarkPaid_Stale(t *testing.T) {
	db := &mockDB{}
	svc := NewSubscriptionService(db)
	ctx := context.Background()

	sub := &model.Subscription{ID: "sub-1", PaymentAttempts: 1}
	db.On("Exec", ctx, mock.AnythingOfType("string"), mock.Anything).Return(pgconn.NewCommandTag("UPDATE 0"), nil)

	err := svc.MarkPaid(ctx, sub, time.Now(), time.Now())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStaleSubscription)
	db.AssertExpectations(t)
}

func TestSubscriptionService_MarkRetryScheduled_Stale(t *testing.T) {
	db := &mockDB{}
	svc := NewSubscriptionService(db)
	ctx := context.Background()

	sub := &model.Subscription{ID: "sub-1", PaymentAttempts: 0}
	db.On("Exec", ctx, mock.AnythingOfType("string"), mock.Anything).Return(pgconn.NewCommandTag("UPDATE 0"), nil)

	err := svc.MarkRetryScheduled(ctx, sub, 1, time.Now(), time.Now().Add(48*time.Hour))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStaleSubscription)
	db.AssertExpectations(t)
}

func TestSubscriptionService_MarkCanceled_Success(t *testing.T) {
	db := &mockDB{}
	svc := NewSubscriptionService(db)
	ctx := context.Background()

	sub := &model.Subscription{ID: "sub-1", PaymentAttempts: 2}
	db.On("Exec", ctx, mock.AnythingOfType("string"), mock.Anything).Return(pgconn.NewCommandTag("UPDATE 1"), nil)

	err := svc.MarkCanceled(ctx, sub, 3, time.Now())
	require.NoError(t, err)
	db.AssertExpectations(t)
}

// ---------- Cancel / RegisterPaymentToken ----------

func TestSubscriptionService_Update_Success(t *testing.T) {
	db := &mockDB{}
	svc := NewSubscriptionService(db)
	ctx := context.Background()

	db.On("Exec", ctx, mock.MatchedBy(func(sql string) bool {
		return strings.Contains(sql, "plan_name = $1") && strings.Contains(sql, "updated_at = now()")
	}), mock.Anything).Return(pgconn.NewCommandTag("UPDATE 1"), nil)

	err := svc.Update(ctx, "sub-1", map[string]any{"plan_name": "Pro"})
	require.NoError(t, err)
	db.AssertExpectations(t)
}

func TestSubscriptionService_Update_UnknownColumn(t *testing.T) {
	svc := NewSubscriptionService(nil)

	err := svc.Update(context.Background(), "sub-1", map[string]any{"status": "active"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not updatable")
}

func TestSubscriptionService_Update_NotFound(t *testing.T) {
	db := &mockDB{}
	svc := NewSubscriptionService(db)
	ctx := context.Background()

	db.On("Exec", ctx, mock.AnythingOfType("string"), mock.Anything).Return(pgconn.NewCommandTag("UPDATE 0"), nil)

	err := svc.Update(ctx, "sub-missing", map[string]any{"customer_email": "new@example.com"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
	db.AssertExpectations(t)
}

func TestSubscriptionService_Cancel_NotFound(t *testing.T) {
	db := &mockDB{}
	svc := NewSubscriptionService(db)
	ctx := context.Background()

	db.On("Exec", ctx, mock.AnythingOfType("string"), mock.Anything).Return(pgconn.NewCommandTag("UPDATE 0"), nil)

	err := svc.Cancel(ctx, "sub-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
	db.AssertExpectations(t)
}

func TestSubscriptionService_RegisterPaymentToken_Success(t *testing.T) {
	db := &mockDB{}
	svc := NewSubscriptionService(db)
	ctx := context.Background()

	token := model.PaymentToken{
		UserID:           "tok-user",
		Username:         "tok-name",
		InscriptionToken: "insc-123",
		InscriptionDate:  time.Now(),
	}
	db.On("Exec", ctx, mock.AnythingOfType("string"), mock.Anything).Return(pgconn.NewCommandTag("UPDATE 1"), nil)

	err := svc.RegisterPaymentToken(ctx, "sub-1", token)
	require.NoError(t, err)
	db.AssertExpectations(t)
}

// ---------- Stats ----------

func TestSubscriptionService_Stats_Success(t *testing.T) {
	db := &mockDB{}
	svc := NewSubscriptionService(db)
	ctx := context.Background()

	row := &mockRow{scanFunc: func(dest ...any) error {
		*(dest[0].(*int)) = 10
		*(dest[1].(*int)) = 5
		*(dest[2].(*int)) = 2
		*(dest[3].(*int)) = 1
		*(dest[4].(*int)) = 2
		return nil
	}}
	db.On("QueryRow", ctx, mock.AnythingOfType("string"), mock.Anything).Return(row)

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 10, stats.Total)
	assert.Equal(t, 5, stats.Active)
	assert.Equal(t, 2, stats.Trialing)
	assert.Equal(t, 1, stats.PastDue)
	assert.Equal(t, 2, stats.Canceled)
	db.AssertExpectations(t)
}
