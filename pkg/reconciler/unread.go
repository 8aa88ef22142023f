package reconciler

import (
	"context"
	"time"

	"github.com/mahaj/streamfeed/pkg/logger"
)

// ProbeFunc asks the server which of the watched conversations have
// activity past the viewer's watermark.
type ProbeFunc func(ctx context.Context) (map[string]bool, error)

// Poller is the deliberately decoupled fallback for unread indicators:
// a fixed-interval probe, independent of the push path, for the
// conversations the viewer is not looking at. It must never become the
// primary delivery channel, so the interval is coarse.
type Poller struct {
	interval time.Duration
	probe    ProbeFunc
	onUpdate func(map[string]bool)
}

func NewPoller(interval time.Duration, probe ProbeFunc, onUpdate func(map[string]bool)) *Poller {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &Poller{interval: interval, probe: probe, onUpdate: onUpdate}
}

// Run probes until ctx is cancelled. Probe failures are logged and
// skipped; the next tick tries again.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			probeCtx, cancel := context.WithTimeout(ctx, p.interval)
			result, err := p.probe(probeCtx)
			cancel()
			if err != nil {
				logger.Debug("unread probe failed", "error", err)
				continue
			}
			p.onUpdate(result)
		case <-ctx.Done():
			return
		}
	}
}
