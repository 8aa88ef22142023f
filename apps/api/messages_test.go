package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mahaj/streamfeed/pkg/auth"
	"github.com/mahaj/streamfeed/pkg/broker"
	"github.com/mahaj/streamfeed/pkg/config"
	"github.com/mahaj/streamfeed/pkg/directory"
	"github.com/mahaj/streamfeed/pkg/model"
	"github.com/mahaj/streamfeed/pkg/snowflake"
	"github.com/mahaj/streamfeed/pkg/store"
)

func newTestAPI(t *testing.T) (*httptest.Server, *broker.Memory) {
	t.Helper()

	ids, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("NewNode: %v", err)
	}
	st := store.NewMemory(ids, time.Hour, 200)
	t.Cleanup(st.Close)

	br := broker.NewMemory()
	t.Cleanup(func() { br.Close() })

	dir := directory.NewStatic(
		directory.Entry{UserID: "u1", DisplayName: "Alice", Handle: "alice"},
		directory.Entry{UserID: "u2", DisplayName: "Bob", Handle: "bob"},
		directory.Entry{UserID: "bot1", DisplayName: "Helper Bot", Handle: "helper", Automated: true},
	)

	srv := newServer(config.Default(), st, br, dir, nil)
	ts := httptest.NewServer(srv.routes())
	t.Cleanup(ts.Close)
	return ts, br
}

func tokenFor(t *testing.T, userID, handle string, moderator bool) string {
	t.Helper()
	token, err := auth.GenerateToken(userID, handle, moderator)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	return token
}

func doRequest(t *testing.T, method, url, token string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	return resp
}

func postMessage(t *testing.T, ts *httptest.Server, token, conversation, text string, replyTo int64) model.Message {
	t.Helper()
	body := map[string]any{"text": text, "conversationId": conversation}
	if replyTo != 0 {
		body["replyToId"] = replyTo
	}
	resp := doRequest(t, http.MethodPost, ts.URL+"/messages", token, body)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("POST /messages: status %d", resp.StatusCode)
	}
	var m model.Message
	if err := json.NewDecoder(resp.Body).Decode(&m); err != nil {
		t.Fatalf("decode message: %v", err)
	}
	return m
}

func TestAppendThenList(t *testing.T) {
	ts, _ := newTestAPI(t)
	token := tokenFor(t, "u1", "alice", false)

	sent := postMessage(t, ts, token, "team", "hello", 0)
	if sent.ID == 0 || sent.DisplayName != "Alice" || sent.Automated {
		t.Fatalf("bad created message: %+v", sent)
	}

	resp := doRequest(t, http.MethodGet, ts.URL+"/messages?conversationId=team&limit=10", token, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET /messages: status %d", resp.StatusCode)
	}
	var msgs []model.Message
	if err := json.NewDecoder(resp.Body).Decode(&msgs); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(msgs) != 1 || msgs[0].Text != "hello" || msgs[0].ID != sent.ID {
		t.Fatalf("unexpected list: %+v", msgs)
	}
}

func TestAppendEmptyTextRejected(t *testing.T) {
	ts, _ := newTestAPI(t)
	token := tokenFor(t, "u1", "alice", false)

	resp := doRequest(t, http.MethodPost, ts.URL+"/messages", token,
		map[string]any{"text": "   ", "conversationId": "team"})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestAuthRequired(t *testing.T) {
	ts, _ := newTestAPI(t)
	resp := doRequest(t, http.MethodGet, ts.URL+"/messages", "", nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestReplySnapshotOverWire(t *testing.T) {
	ts, _ := newTestAPI(t)
	token := tokenFor(t, "u1", "alice", false)

	m1 := postMessage(t, ts, token, "team", "the original", 0)
	m2 := postMessage(t, ts, token, "team", "a reply", m1.ID)

	if m2.ReplyTo == nil || m2.ReplyTo.MessageID != m1.ID || m2.ReplyTo.TextPreview != "the original" {
		t.Fatalf("bad reply snapshot: %+v", m2.ReplyTo)
	}
}

func TestDeleteRoutes(t *testing.T) {
	ts, _ := newTestAPI(t)
	alice := tokenFor(t, "u1", "alice", false)
	bob := tokenFor(t, "u2", "bob", false)

	m := postMessage(t, ts, alice, "team", "mine", 0)

	// A non-owner gets 403.
	resp := doRequest(t, http.MethodDelete, fmt.Sprintf("%s/messages/%d", ts.URL, m.ID), bob, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}

	// Owner delete on the primary route.
	resp = doRequest(t, http.MethodDelete, fmt.Sprintf("%s/messages/%d", ts.URL, m.ID), alice, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	// Second delete of the same id is 404.
	resp = doRequest(t, http.MethodDelete, fmt.Sprintf("%s/messages/%d", ts.URL, m.ID), alice, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}

	// The legacy alias shares semantics exactly.
	m2 := postMessage(t, ts, alice, "team", "legacy target", 0)
	resp = doRequest(t, http.MethodPost, fmt.Sprintf("%s/messages/%d/delete", ts.URL, m2.ID), alice, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("legacy route: expected 200, got %d", resp.StatusCode)
	}
	resp = doRequest(t, http.MethodPost, fmt.Sprintf("%s/messages/%d/delete", ts.URL, m2.ID), alice, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("legacy route second delete: expected 404, got %d", resp.StatusCode)
	}
}

func TestMalformedCursorRejected(t *testing.T) {
	ts, _ := newTestAPI(t)
	token := tokenFor(t, "u1", "alice", false)

	resp := doRequest(t, http.MethodGet, ts.URL+"/messages?before=banana", token, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestMentionsEndpoint(t *testing.T) {
	ts, _ := newTestAPI(t)
	token := tokenFor(t, "u1", "alice", false)

	resp := doRequest(t, http.MethodGet, ts.URL+"/messages/mentions?q=bo", token, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
	var entries []directory.Entry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected bob and helper bot, got %+v", entries)
	}
}

func TestLatestProbe(t *testing.T) {
	ts, _ := newTestAPI(t)
	token := tokenFor(t, "u1", "alice", false)

	resp := doRequest(t, http.MethodGet, ts.URL+"/messages/latest?conversationId=empty", token, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("empty conversation: expected 204, got %d", resp.StatusCode)
	}

	m := postMessage(t, ts, token, "team", "newest", 0)
	resp = doRequest(t, http.MethodGet, ts.URL+"/messages/latest?conversationId=team", token, nil)
	defer resp.Body.Close()
	var probe struct {
		ID int64 `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&probe); err != nil {
		t.Fatalf("decode probe: %v", err)
	}
	if probe.ID != m.ID {
		t.Fatalf("expected latest %d, got %d", m.ID, probe.ID)
	}
}

func TestAppendPublishesEvent(t *testing.T) {
	ts, br := newTestAPI(t)
	token := tokenFor(t, "u1", "alice", false)

	events := make(chan model.Event, 4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go br.Consume(ctx, func(ev model.Event) { events <- ev })
	time.Sleep(20 * time.Millisecond)

	m := postMessage(t, ts, token, "team", "fan me out", 0)

	select {
	case ev := <-events:
		if ev.Type != model.EventCreated || ev.Message == nil || ev.Message.ID != m.ID {
			t.Fatalf("bad event: %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("no created event published")
	}

	resp := doRequest(t, http.MethodDelete, fmt.Sprintf("%s/messages/%d", ts.URL, m.ID), token, nil)
	resp.Body.Close()

	select {
	case ev := <-events:
		if ev.Type != model.EventDeleted || ev.MessageID != m.ID {
			t.Fatalf("bad delete event: %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("no deleted event published")
	}
}
