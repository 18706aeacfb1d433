package ports

import (
	"context"

	"github.com/layer-3/nostrauth/core"
)

// EventPublisher publishes events to notify other instances
type EventPublisher interface {
	PublishLogin(ctx context.Context, event core.LoginEvent) error
	PublishLogout(ctx context.Context, sessionID string, tokenID string) error
}

// MetricsRecorder counts protocol outcomes.
type MetricsRecorder interface {
	RecordOutcome(state core.State)
}
