package reconciler

import (
	"context"
	"sync"
	"time"

	"github.com/mahaj/streamfeed/pkg/directory"
	"github.com/mahaj/streamfeed/pkg/model"
)

// DefaultDebounce is how long the suggester waits after the last
// keystroke before querying the directory.
const DefaultDebounce = 180 * time.Millisecond

type SearchFunc func(ctx context.Context, q string) ([]directory.Entry, error)

// Suggester watches the compose box for a trailing @token and,
// debounced, queries the directory for candidates. Suggestions are
// advisory text formatting only; the server never validates that a
// mentioned handle exists.
type Suggester struct {
	search   SearchFunc
	debounce time.Duration
	onResult func(partial string, candidates []directory.Entry)

	mu    sync.Mutex
	timer *time.Timer
}

func NewSuggester(search SearchFunc, debounce time.Duration, onResult func(string, []directory.Entry)) *Suggester {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Suggester{search: search, debounce: debounce, onResult: onResult}
}

// Input feeds the current compose text. A trailing @partial schedules
// a debounced query; anything else cancels the pending one.
func (s *Suggester) Input(text string) {
	partial, _, ok := model.TrailingMention(text)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if !ok {
		return
	}

	s.timer = time.AfterFunc(s.debounce, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		candidates, err := s.search(ctx, partial)
		if err != nil {
			return
		}
		s.onResult(partial, candidates)
	})
}

// Stop cancels any pending query.
func (s *Suggester) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// Accept rewrites the trailing partial token to the selected handle,
// with a trailing space so typing continues naturally.
func Accept(text string, e directory.Entry) string {
	_, start, ok := model.TrailingMention(text)
	if !ok {
		return text
	}
	return text[:start] + "@" + e.Handle + " "
}
