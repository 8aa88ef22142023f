package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mahaj/streamfeed/pkg/auth"
	"github.com/mahaj/streamfeed/pkg/broker"
	"github.com/mahaj/streamfeed/pkg/config"
	"github.com/mahaj/streamfeed/pkg/logger"
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

	hub := NewHub()
	go hub.Run()

	br := broker.NewKafka(cfg.KafkaBrokers, cfg.KafkaTopic)
	defer br.Close()
	go func() {
		if err := br.Consume(context.Background(), hub.Dispatch); err != nil {
			logger.Error("fanout consumer exited", "error", err)
			os.Exit(1)
		}
	}()

	mux := http.NewServeMux()
	mux.HandleFunc("/messages/stream", func(w http.ResponseWriter, r *http.Request) {
		serveStream(hub, w, r)
	})
	// Short alias for clients that address the gateway directly.
	mux.HandleFunc("/stream", func(w http.ResponseWriter, r *http.Request) {
		serveStream(hub, w, r)
	})
	mux.Handle("/metrics", promhttp.Handler())

	logger.Info("gateway service starting", "addr", cfg.GatewayAddr)
	if err := http.ListenAndServe(cfg.GatewayAddr, mux); err != nil {
		logger.Error("gateway server exited", "error", err)
		os.Exit(1)
	}
}
