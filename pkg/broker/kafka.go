package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/mahaj/streamfeed/pkg/logger"
	"github.com/mahaj/streamfeed/pkg/metrics"
	"github.com/mahaj/streamfeed/pkg/model"
)

// Kafka carries events between service instances. Messages are keyed
// by conversation id with a hash balancer, so one conversation always
// lands on one partition and keeps its commit order. Every consumer
// joins with a fresh group id: broadcast semantics, each gateway sees
// the full stream.
type Kafka struct {
	brokers []string
	topic   string
	writer  *kafka.Writer
}

func NewKafka(brokers []string, topic string) *Kafka {
	return &Kafka{
		brokers: brokers,
		topic:   topic,
		writer: &kafka.Writer{
			Addr:     kafka.TCP(brokers...),
			Topic:    topic,
			Balancer: &kafka.Hash{},
		},
	}
}

func (b *Kafka) Publish(ctx context.Context, ev model.Event) error {
	value, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	err = b.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(ev.ConversationID),
		Value: value,
		Time:  time.Now(),
	})
	if err != nil {
		return err
	}
	metrics.EventsPublished.WithLabelValues(string(ev.Type)).Inc()
	return nil
}

func (b *Kafka) Consume(ctx context.Context, fn func(model.Event)) error {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers: b.brokers,
		Topic:   b.topic,
		// Unique group per consumer so every instance gets every event.
		GroupID:     fmt.Sprintf("streamfeed-fanout-%d", time.Now().UnixNano()),
		StartOffset: kafka.LastOffset,
		MinBytes:    1,
		MaxBytes:    10e6,
	})
	defer reader.Close()

	for {
		m, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.Warn("fanout consumer read failed, retrying", "error", err)
			select {
			case <-time.After(time.Second):
				continue
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		var ev model.Event
		if err := json.Unmarshal(m.Value, &ev); err != nil {
			logger.Warn("dropping undecodable fanout event", "error", err)
			continue
		}
		fn(ev)
	}
}

func (b *Kafka) Close() error {
	return b.writer.Close()
}
