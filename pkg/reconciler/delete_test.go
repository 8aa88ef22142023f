package reconciler

import (
	"context"
	"testing"
	"time"

	"github.com/mahaj/streamfeed/pkg/errs"
	"github.com/mahaj/streamfeed/pkg/model"
)

// scriptedDeleter returns its queued errors in order, then nils.
type scriptedDeleter struct {
	calls int
	errs  []error
}

func (d *scriptedDeleter) Delete(ctx context.Context, id int64) error {
	d.calls++
	if d.calls <= len(d.errs) {
		return d.errs[d.calls-1]
	}
	return nil
}

func TestDeleteSuccess(t *testing.T) {
	r := New("team")
	r.Apply(model.CreatedEvent(msg(1, "hello", time.Now())))

	d := &scriptedDeleter{}
	if err := r.Delete(context.Background(), d, 1); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if got := r.Messages(); len(got) != 0 {
		t.Fatalf("message still visible after delete: %+v", got)
	}
}

func TestDeleteNotFoundIsSuccess(t *testing.T) {
	r := New("team")
	r.Apply(model.CreatedEvent(msg(1, "hello", time.Now())))

	d := &scriptedDeleter{errs: []error{errs.NotFound("message 1 not found")}}
	if err := r.Delete(context.Background(), d, 1); err != nil {
		t.Fatalf("not-found delete should be success-equivalent, got %v", err)
	}
	if got := r.Messages(); len(got) != 0 {
		t.Fatalf("message still visible: %+v", got)
	}
}

func TestDeleteTwiceNeverSurfacesError(t *testing.T) {
	r := New("team")
	r.Apply(model.CreatedEvent(msg(1, "hello", time.Now())))

	// First call succeeds server-side; second comes back 404.
	d := &scriptedDeleter{errs: []error{nil, errs.NotFound("message 1 not found")}}
	ctx := context.Background()
	if err := r.Delete(ctx, d, 1); err != nil {
		t.Fatalf("first delete: %v", err)
	}
	if err := r.Delete(ctx, d, 1); err != nil {
		t.Fatalf("second delete must resolve as success, got %v", err)
	}
	if d.calls != 2 {
		t.Fatalf("expected 2 delete attempts, got %d", d.calls)
	}
}

func TestDeleteAlreadyGoneValidation(t *testing.T) {
	r := New("team")

	// Legacy routes report a missing message as a validation error.
	d := &scriptedDeleter{errs: []error{errs.Validation("message already deleted")}}
	if err := r.Delete(context.Background(), d, 1); err != nil {
		t.Fatalf("already-gone validation should be absorbed, got %v", err)
	}
}

func TestDeleteForbiddenSurfaces(t *testing.T) {
	r := New("team")
	r.Apply(model.CreatedEvent(msg(1, "not yours", time.Now())))

	d := &scriptedDeleter{errs: []error{errs.Forbidden("nope")}}
	err := r.Delete(context.Background(), d, 1)
	if !errs.IsForbidden(err) {
		t.Fatalf("expected forbidden surfaced, got %v", err)
	}
	// The message stays visible; the server refused.
	if got := r.Messages(); len(got) != 1 {
		t.Fatalf("forbidden delete removed the message locally")
	}
}

func TestDeleteOtherValidationSurfaces(t *testing.T) {
	r := New("team")
	d := &scriptedDeleter{errs: []error{errs.Validation("malformed message id")}}
	if err := r.Delete(context.Background(), d, 1); !errs.IsValidation(err) {
		t.Fatalf("unrelated validation error must surface, got %v", err)
	}
}
