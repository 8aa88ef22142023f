// Package broker fans committed store events out to gateway instances.
// Delivery is best-effort, at-most-once per consumer, no retry: a
// subscriber that is down at publish time catches up from its next
// snapshot. Within one conversation events arrive in commit order.
package broker

import (
	"context"

	"github.com/mahaj/streamfeed/pkg/model"
)

type Broker interface {
	// Publish hands a committed event to every live consumer.
	Publish(ctx context.Context, ev model.Event) error

	// Consume invokes fn for every event until ctx is cancelled.
	// Each call to Consume sees the full event stream (broadcast, not
	// work-sharing).
	Consume(ctx context.Context, fn func(model.Event)) error

	Close() error
}
