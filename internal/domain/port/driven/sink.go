package driven

import (
	"context"

	"github.com/ericfisherdev/reviewnudge/internal/domain/model"
)

// NotificationSink delivers a rendered message to a team channel.
type NotificationSink interface {
	Send(ctx context.Context, endpoint string, msg model.RenderedMessage) error
}
