package reconciler

import (
	"context"
	"strings"

	"github.com/mahaj/streamfeed/pkg/errs"
)

// Deleter is the single authoritative delete operation. Route
// compatibility shims (apiclient.MultiRouteDeleter) implement it
// outside this package.
type Deleter interface {
	Delete(ctx context.Context, id int64) error
}

// Delete runs the idempotent delete policy. A NotFound - or a
// validation response that amounts to "already gone" - is converted to
// success: the message may have expired or been removed by someone
// else between render time and now, and that race is not a failure the
// user can act on. Every other error class is surfaced.
func (r *Reconciler) Delete(ctx context.Context, d Deleter, id int64) error {
	err := d.Delete(ctx, id)
	if err != nil && !alreadyGone(err) {
		return err
	}

	r.mu.Lock()
	r.removed[id] = true
	_, present := r.messages[id]
	delete(r.messages, id)
	if present {
		r.notify()
	}
	r.mu.Unlock()
	return nil
}

func alreadyGone(err error) bool {
	if errs.IsNotFound(err) {
		return true
	}
	// Some legacy routes report a missing message as a validation
	// failure rather than a 404.
	if errs.IsValidation(err) {
		msg := strings.ToLower(err.Error())
		return strings.Contains(msg, "not found") || strings.Contains(msg, "already deleted")
	}
	return false
}
