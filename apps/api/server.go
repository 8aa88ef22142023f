package main

import (
	"encoding/json"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mahaj/streamfeed/pkg/auth"
	"github.com/mahaj/streamfeed/pkg/broker"
	"github.com/mahaj/streamfeed/pkg/config"
	"github.com/mahaj/streamfeed/pkg/directory"
	"github.com/mahaj/streamfeed/pkg/errs"
	"github.com/mahaj/streamfeed/pkg/store"
	"github.com/mahaj/streamfeed/pkg/unread"
)

type server struct {
	cfg       config.Config
	store     store.Store
	broker    broker.Broker
	directory directory.Index
	tracker   *unread.Tracker
	limiters  *limiterPool
}

func newServer(cfg config.Config, st store.Store, br broker.Broker, dir directory.Index, tracker *unread.Tracker) *server {
	return &server{
		cfg:       cfg,
		store:     st,
		broker:    br,
		directory: dir,
		tracker:   tracker,
		limiters:  newLimiterPool(5, 10),
	}
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("POST /login", http.HandlerFunc(s.handleLogin))

	mux.Handle("GET /messages", auth.Middleware(http.HandlerFunc(s.handleList)))
	mux.Handle("POST /messages", auth.Middleware(http.HandlerFunc(s.handleAppend)))
	mux.Handle("DELETE /messages/{id}", auth.Middleware(http.HandlerFunc(s.handleDelete)))
	// Legacy verb-in-path alias kept through the migration window.
	// Same handler, identical semantics.
	mux.Handle("POST /messages/{id}/delete", auth.Middleware(http.HandlerFunc(s.handleDelete)))

	mux.Handle("GET /messages/mentions", auth.Middleware(http.HandlerFunc(s.handleMentions)))
	mux.Handle("GET /messages/latest", auth.Middleware(http.HandlerFunc(s.handleLatest)))

	mux.Handle("GET /conversations/unread", auth.Middleware(http.HandlerFunc(s.handleUnread)))
	mux.Handle("POST /conversations/read", auth.Middleware(http.HandlerFunc(s.handleMarkRead)))

	mux.Handle("/metrics", promhttp.Handler())

	return corsMiddleware(mux)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization")

		if r.Method == "OPTIONS" {
			return
		}

		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, errs.HTTPStatus(err), map[string]string{"error": err.Error()})
}
