// Package directory is the read-only view of addressable users that
// mention autocomplete queries. The records themselves are owned by
// the user-management service; this subsystem never writes them.
package directory

import (
	"context"
	"sort"
	"strings"
)

type Entry struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
	Handle      string `json:"handle"`
	Automated   bool   `json:"automated,omitempty"`
}

type Index interface {
	// Search matches q case-insensitively as a substring of handle or
	// display name, returning at most limit entries.
	Search(ctx context.Context, q string, limit int) ([]Entry, error)

	// Lookup resolves a user id to its directory entry.
	Lookup(ctx context.Context, userID string) (Entry, bool, error)
}

// search runs the shared matching logic over a snapshot of entries.
func search(entries []Entry, q string, limit int) []Entry {
	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" || limit <= 0 {
		return nil
	}

	var out []Entry
	for _, e := range entries {
		if strings.Contains(strings.ToLower(e.Handle), q) ||
			strings.Contains(strings.ToLower(e.DisplayName), q) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Handle < out[j].Handle })
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}
