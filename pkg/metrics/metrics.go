// Package metrics registers the prometheus instruments shared by the
// services. Scrape via the /metrics endpoint each service exposes.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	MessagesAppended = promauto.NewCounter(prometheus.CounterOpts{
		Name: "streamfeed_messages_appended_total",
		Help: "Messages committed to the store.",
	})
	MessagesDeleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "streamfeed_messages_deleted_total",
		Help: "Messages removed by an explicit delete.",
	})
	MessagesExpired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "streamfeed_messages_expired_total",
		Help: "Messages purged by the retention reaper.",
	})
	EventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streamfeed_events_published_total",
		Help: "Fanout events published, by type.",
	}, []string{"type"})
	FanoutDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "streamfeed_fanout_dropped_total",
		Help: "Subscribers dropped for a full outbound buffer.",
	})
	StreamConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "streamfeed_stream_connections",
		Help: "Live websocket subscriptions.",
	})
)
