package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/mahaj/streamfeed/pkg/auth"
	"github.com/mahaj/streamfeed/pkg/broker"
	"github.com/mahaj/streamfeed/pkg/config"
	"github.com/mahaj/streamfeed/pkg/db"
	"github.com/mahaj/streamfeed/pkg/directory"
	"github.com/mahaj/streamfeed/pkg/logger"
	"github.com/mahaj/streamfeed/pkg/snowflake"
	"github.com/mahaj/streamfeed/pkg/store"
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
	auth.SetSecret(cfg.JWTSecret)

	ids, err := snowflake.NewNode(cfg.NodeID)
	if err != nil {
		logger.Error("failed to initialize snowflake node", "error", err)
		os.Exit(1)
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer rdb.Close()

	dir := directory.NewRedis(rdb)
	dir.StartRefresher(context.Background(), 30*time.Second)

	tracker := unread.NewTracker(rdb)

	var st store.Store
	var br broker.Broker
	if cfg.MemoryBackends {
		mem := store.NewMemory(ids, cfg.Retention, cfg.MaxListLimit)
		mem.StartReaper(time.Minute)
		st = mem
		br = broker.NewMemory()
		logger.Info("running with in-memory store and broker")
	} else {
		sess, err := db.NewSession(cfg.ScyllaHosts, cfg.Keyspace)
		if err != nil {
			logger.Error("failed to connect to ScyllaDB", "error", err)
			os.Exit(1)
		}
		defer sess.Close()
		st = store.NewScylla(sess, ids, cfg.Retention, cfg.MaxListLimit)
		br = broker.NewKafka(cfg.KafkaBrokers, cfg.KafkaTopic)
	}
	defer st.Close()
	defer br.Close()

	srv := newServer(cfg, st, br, dir, tracker)

	logger.Info("api service starting", "addr", cfg.APIAddr)
	if err := http.ListenAndServe(cfg.APIAddr, srv.routes()); err != nil {
		logger.Error("api server exited", "error", err)
		os.Exit(1)
	}
}
