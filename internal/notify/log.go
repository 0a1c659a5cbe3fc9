package notify

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/edvin/bookwell/internal/model"
)

// LogSender writes alerts to the structured log. Used when no webhook is
// configured so that alerts are never silently dropped.
type LogSender struct {
	logger zerolog.Logger
}

// NewLogSender creates a LogSender.
func NewLogSender(logger zerolog.Logger) *LogSender {
	return &LogSender{logger: logger.With().Str("component", "alert-log").Logger()}
}

// Send logs the alert at a level matching its severity.
func (s *LogSender) Send(_ context.Context, alert model.Alert) error {
	evt := s.logger.Warn()
	if alert.Severity == model.SeverityCritical {
		evt = s.logger.Error()
	}
	evt.
		Str("type", alert.Type).
		Str("severity", alert.Severity).
		Str("organization", alert.OrganizationID).
		Str("title", alert.Title).
		Msg(alert.Message)
	return nil
}
