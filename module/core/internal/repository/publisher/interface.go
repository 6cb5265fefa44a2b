package publisher

import (
	"context"

	"github.com/nandanugg/geofence/module/core/domain"
)

type TransitionPublisher interface {
	PublishTransition(ctx context.Context, ev *domain.TransitionEvent) error
}
