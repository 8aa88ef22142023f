package apiclient

import (
	"context"
	"fmt"
	"net/http"
)

// MultiRouteDeleter is the migration-window adapter in front of the
// delete operation. It tries the primary route and falls back to the
// legacy verb-in-path alias only when the route itself is unsupported
// (405/501). Resource-level outcomes - success, 404, 403 - are
// authoritative from whichever route produced them, so semantics stay
// identical regardless of which route answered. The reconciler sees a
// single Delete and never learns routes exist at all.
type MultiRouteDeleter struct {
	client *Client
}

func NewMultiRouteDeleter(client *Client) *MultiRouteDeleter {
	return &MultiRouteDeleter{client: client}
}

func (d *MultiRouteDeleter) Delete(ctx context.Context, id int64) error {
	status, err := d.client.do(ctx, http.MethodDelete, fmt.Sprintf("/messages/%d", id), nil, nil)
	if !routeUnsupported(status) {
		return err
	}
	_, err = d.client.do(ctx, http.MethodPost, fmt.Sprintf("/messages/%d/delete", id), nil, nil)
	return err
}

func routeUnsupported(status int) bool {
	return status == http.StatusMethodNotAllowed || status == http.StatusNotImplemented
}
