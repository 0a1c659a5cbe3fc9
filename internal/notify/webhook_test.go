package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edvin/bookwell/internal/model"
)

func testAlert() model.Alert {
	return model.Alert{
		Type:       model.AlertHighFailureRate,
		Severity:   model.SeverityCritical,
		Title:      "High payment failure rate in trial_charges pass",
		Message:    "6 of 10 charges failed (60.0%)",
		OccurredAt: time.Now(),
	}
}

func TestWebhookSender_Send_Generic(t *testing.T) {
	var got GenericAlertPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
	}))
	defer srv.Close()

	s := NewWebhookSender(srv.URL, "generic")
	require.NoError(t, s.Send(context.Background(), testAlert()))

	assert.Equal(t, "billing.high_failure_rate", got.Event)
	assert.Equal(t, model.SeverityCritical, got.Alert.Severity)
}

func TestWebhookSender_Send_Slack(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
	}))
	defer srv.Close()

	s := NewWebhookSender(srv.URL, "slack")
	require.NoError(t, s.Send(context.Background(), testAlert()))

	blocks, ok := got["blocks"].([]any)
	require.True(t, ok)
	assert.GreaterOrEqual(t, len(blocks), 3)
}

func TestWebhookSender_Send_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	s := NewWebhookSender(srv.URL, "generic")
	err := s.Send(context.Background(), testAlert())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}

func TestLogSender_Send(t *testing.T) {
	s := NewLogSender(zerolog.Nop())
	assert.NoError(t, s.Send(context.Background(), testAlert()))
}
