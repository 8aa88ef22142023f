package reconciler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/mahaj/streamfeed/pkg/directory"
)

func TestSuggesterDebounces(t *testing.T) {
	var mu sync.Mutex
	var queries []string
	search := func(ctx context.Context, q string) ([]directory.Entry, error) {
		mu.Lock()
		queries = append(queries, q)
		mu.Unlock()
		return []directory.Entry{{UserID: "u1", DisplayName: "Alice", Handle: "alice"}}, nil
	}

	results := make(chan string, 4)
	s := NewSuggester(search, 30*time.Millisecond, func(partial string, c []directory.Entry) {
		results <- partial
	})
	defer s.Stop()

	// Rapid keystrokes: only the final partial should hit the
	// directory.
	s.Input("hey @a")
	s.Input("hey @al")
	s.Input("hey @ali")

	select {
	case got := <-results:
		if got != "ali" {
			t.Fatalf("expected query for %q, got %q", "ali", got)
		}
	case <-time.After(time.Second):
		t.Fatal("suggester never fired")
	}

	mu.Lock()
	n := len(queries)
	mu.Unlock()
	if n != 1 {
		t.Fatalf("expected 1 directory query, got %d", n)
	}
}

func TestSuggesterCancelsWhenTokenGone(t *testing.T) {
	fired := make(chan struct{}, 1)
	s := NewSuggester(func(ctx context.Context, q string) ([]directory.Entry, error) {
		fired <- struct{}{}
		return nil, nil
	}, 20*time.Millisecond, func(string, []directory.Entry) {})
	defer s.Stop()

	s.Input("hey @al")
	s.Input("hey alice") // token completed away, pending query cancelled

	select {
	case <-fired:
		t.Fatal("query fired after the token was gone")
	case <-time.After(80 * time.Millisecond):
	}
}

func TestAccept(t *testing.T) {
	e := directory.Entry{UserID: "u1", DisplayName: "Alice", Handle: "alice"}

	if got := Accept("hey @al", e); got != "hey @alice " {
		t.Fatalf("Accept rewrote to %q", got)
	}
	// No trailing token: text untouched.
	if got := Accept("hey there", e); got != "hey there" {
		t.Fatalf("Accept changed non-mention text to %q", got)
	}
}
