package reconciler

import (
	"context"
	"encoding/json"
	"net/url"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mahaj/streamfeed/pkg/logger"
	"github.com/mahaj/streamfeed/pkg/model"
)

// SnapshotFunc fetches the current message page from the REST API.
type SnapshotFunc func(ctx context.Context) ([]*model.Message, error)

// Stream keeps a reconciler fed from the gateway: snapshot, then live
// events, reconnect-and-resnapshot on any failure. Transient stream
// errors are never surfaced; only when reconnection itself keeps
// failing does OnDegraded fire (once per outage) so the UI can fall
// back to manual refresh.
type Stream struct {
	GatewayURL     string // e.g. ws://localhost:8080
	Token          string
	ConversationID string

	Snapshot   SnapshotFunc
	OnDegraded func(err error)

	// DegradedAfter is how many consecutive failed connect cycles
	// trigger the degraded notice. Defaults to 3.
	DegradedAfter int
}

func (s *Stream) dialURL() string {
	u, err := url.Parse(s.GatewayURL)
	if err != nil {
		return s.GatewayURL
	}
	u.Path = "/messages/stream"
	q := u.Query()
	q.Set("conversationId", s.ConversationID)
	q.Set("token", s.Token)
	u.RawQuery = q.Encode()
	return u.String()
}

// Run blocks until ctx is cancelled.
func (s *Stream) Run(ctx context.Context, rec *Reconciler) {
	degradedAfter := s.DegradedAfter
	if degradedAfter <= 0 {
		degradedAfter = 3
	}

	failures := 0
	degraded := false
	backoff := time.Second

	for ctx.Err() == nil {
		established, err := s.runOnce(ctx, rec)
		if ctx.Err() != nil {
			return
		}
		if established {
			// The outage, if any, is over; a later drop starts a
			// fresh count.
			failures = 0
			degraded = false
			backoff = time.Second
		}

		failures++
		if failures >= degradedAfter && !degraded {
			degraded = true
			if s.OnDegraded != nil {
				s.OnDegraded(err)
			}
		}
		logger.Debug("stream cycle ended, reconnecting", "error", err, "failures", failures)

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return
		}
		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}

// runOnce performs one subscribe-snapshot-stream cycle. established
// reports whether the cycle reached the live streaming state, which
// resets the caller's outage count.
func (s *Stream) runOnce(ctx context.Context, rec *Reconciler) (established bool, _ error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.dialURL(), nil)
	if err != nil {
		return false, err
	}
	defer conn.Close()

	// Snapshot only after the subscription is open so nothing falls
	// between snapshot and stream; duplicates across the boundary
	// dedupe in Apply.
	snapCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	msgs, err := s.Snapshot(snapCtx)
	cancel()
	if err != nil {
		return false, err
	}
	rec.Seed(msgs)

	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()
	defer close(done)

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return true, err
		}
		var ev model.Event
		if err := json.Unmarshal(payload, &ev); err != nil {
			logger.Debug("skipping undecodable stream payload", "error", err)
			continue
		}
		rec.Apply(ev)
	}
}
