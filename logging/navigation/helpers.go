package navigation

import (
	"context"

	"mendbots/server/logging"
)

const (
	// EventPathFailed is emitted when planning yields no usable path.
	EventPathFailed logging.EventType = "navigation.path_failed"
)

// PathFailedPayload records the endpoints of the failed request.
type PathFailedPayload struct {
	FromX float64 `json:"fromX"`
	FromY float64 `json:"fromY"`
	ToX   float64 `json:"toX"`
	ToY   float64 `json:"toY"`
}

// PathFailed publishes a planning failure at debug severity; steering
// retries next cycle so this is diagnostic, not an error.
func PathFailed(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload PathFailedPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventPathFailed,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityDebug,
		Category: logging.CategorySimulation,
		Payload:  payload,
		Extra:    extra,
	})
}
