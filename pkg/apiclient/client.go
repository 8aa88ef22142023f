// Package apiclient is the REST half of the client: snapshot fetch,
// optimistic send, delete, mention search and the unread probes. The
// live half is the reconciler's stream consumer.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/mahaj/streamfeed/pkg/directory"
	"github.com/mahaj/streamfeed/pkg/errs"
	"github.com/mahaj/streamfeed/pkg/model"
)

type Client struct {
	base  string
	token string
	http  *http.Client
}

func New(base, token string) *Client {
	return &Client{
		base:  base,
		token: token,
		http:  &http.Client{Timeout: 15 * time.Second},
	}
}

// Login mints a token via the development login endpoint.
func Login(base, userID string) (string, error) {
	body, _ := json.Marshal(map[string]string{"user_id": userID})
	resp, err := http.Post(base+"/login", "application/json", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("login failed: %s", string(b))
	}

	var out struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	return out.Token, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) (int, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return resp.StatusCode, errs.FromStatus(resp.StatusCode, errorBody(resp.Body))
	}
	if out != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, err
		}
	}
	return resp.StatusCode, nil
}

func errorBody(r io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(r, 4096))
	var body struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(b, &body) == nil && body.Error != "" {
		return body.Error
	}
	return string(b)
}

func (c *Client) ListMessages(ctx context.Context, conversationID string, limit int, before int64) ([]*model.Message, error) {
	q := url.Values{}
	q.Set("conversationId", conversationID)
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if before > 0 {
		q.Set("before", strconv.FormatInt(before, 10))
	}

	var out []*model.Message
	_, err := c.do(ctx, http.MethodGet, "/messages?"+q.Encode(), nil, &out)
	return out, err
}

func (c *Client) SendMessage(ctx context.Context, conversationID, text string, replyToID int64) (*model.Message, error) {
	body := map[string]any{"text": text, "conversationId": conversationID}
	if replyToID != 0 {
		body["replyToId"] = replyToID
	}

	var out model.Message
	if _, err := c.do(ctx, http.MethodPost, "/messages", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) SearchMentions(ctx context.Context, q string) ([]directory.Entry, error) {
	var out []directory.Entry
	_, err := c.do(ctx, http.MethodGet, "/messages/mentions?q="+url.QueryEscape(q), nil, &out)
	return out, err
}

// Latest probes the newest message of a conversation. ok is false for
// an empty conversation.
func (c *Client) Latest(ctx context.Context, conversationID string) (id int64, createdAt time.Time, ok bool, err error) {
	var out struct {
		ID        int64     `json:"id"`
		CreatedAt time.Time `json:"createdAt"`
	}
	status, err := c.do(ctx, http.MethodGet, "/messages/latest?conversationId="+url.QueryEscape(conversationID), nil, &out)
	if err != nil {
		return 0, time.Time{}, false, err
	}
	if status == http.StatusNoContent {
		return 0, time.Time{}, false, nil
	}
	return out.ID, out.CreatedAt, true, nil
}

func (c *Client) MarkRead(ctx context.Context, conversationID string, at time.Time) error {
	body := map[string]any{"conversationId": conversationID}
	if !at.IsZero() {
		body["at"] = at
	}
	_, err := c.do(ctx, http.MethodPost, "/conversations/read", body, nil)
	return err
}

func (c *Client) Unread(ctx context.Context, conversationIDs []string) (map[string]bool, error) {
	q := url.Values{}
	for i, id := range conversationIDs {
		if i == 0 {
			q.Set("ids", id)
		} else {
			q.Set("ids", q.Get("ids")+","+id)
		}
	}

	var out map[string]bool
	_, err := c.do(ctx, http.MethodGet, "/conversations/unread?"+q.Encode(), nil, &out)
	return out, err
}

// DeleteMessage calls the primary delete route only. Compatibility
// fallbacks live in MultiRouteDeleter.
func (c *Client) DeleteMessage(ctx context.Context, id int64) error {
	_, err := c.do(ctx, http.MethodDelete, fmt.Sprintf("/messages/%d", id), nil, nil)
	return err
}
