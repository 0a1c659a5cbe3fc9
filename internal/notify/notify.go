package notify

import (
	"context"

	"github.com/edvin/bookwell/internal/model"
)

// Sender delivers one alert to an external destination. Implementations
// return an error per delivery; callers aggregate, they never retry
// synchronously.
type Sender interface {
	Send(ctx context.Context, alert model.Alert) error
}
