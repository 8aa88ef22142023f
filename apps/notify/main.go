// The notify service consumes the fanout stream and records
// per-conversation last-activity in Redis. The API's unread endpoint
// compares that against viewer watermarks; keeping the writer here, off
// the request path, means the push pipeline stays the primary delivery
// channel and unread tracking is a fully decoupled follower.
package main

import (
	"context"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/mahaj/streamfeed/pkg/broker"
	"github.com/mahaj/streamfeed/pkg/config"
	"github.com/mahaj/streamfeed/pkg/logger"
	"github.com/mahaj/streamfeed/pkg/model"
	"github.com/mahaj/streamfeed/pkg/unread"
)

func main() {
	godotenv.Load()
	logger.Init()

	cfg, err := config.Load(os.Getenv("STREAMFEED_CONFIG"))
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer rdb.Close()
	tracker := unread.NewTracker(rdb)

	br := broker.NewKafka(cfg.KafkaBrokers, cfg.KafkaTopic)
	defer br.Close()

	logger.Info("notify service starting", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)

	err = br.Consume(context.Background(), func(ev model.Event) {
		if ev.Type != model.EventCreated || ev.Message == nil {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracker.RecordActivity(ctx, ev.ConversationID, ev.Message.CreatedAt); err != nil {
			logger.Warn("failed to record conversation activity",
				"conversation", ev.ConversationID, "error", err)
		}
	})
	if err != nil {
		logger.Error("notify consumer exited", "error", err)
		os.Exit(1)
	}
}
