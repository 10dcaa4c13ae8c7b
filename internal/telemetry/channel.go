package telemetry

import (
	"context"

	"github.com/OCAP2/tacmap/pkg/core"
)

// Handler receives one telemetry record. It may be called from any goroutine.
type Handler func(core.TelemetryRecord)

// Subscription is a live registration on a Channel.
type Subscription interface {
	Unsubscribe() error
}

// Channel is a push channel of telemetry records grouped by topic.
type Channel interface {
	Subscribe(ctx context.Context, topic string, h Handler) (Subscription, error)
}

// LastKnown keeps the latest record per aircraft serial across views.
type LastKnown interface {
	Put(ctx context.Context, rec core.TelemetryRecord) error
	// Get returns the records it has for serials, skipping unknown ones.
	Get(ctx context.Context, serials []string) ([]core.TelemetryRecord, error)
}
