// Package client is a Go client for the share-car HTTP API.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/nongjianweihao/share-car/internal/api/respond"
	"github.com/nongjianweihao/share-car/internal/card"
	"github.com/nongjianweihao/share-car/internal/repository"
	"github.com/nongjianweihao/share-car/internal/state"
)

// Client talks to one share-car server.
type Client struct {
	http *resty.Client
}

// Option configures a Client during construction in New.
type Option func(*Client) error

// WithHTTPTimeout bounds every request. The value must be greater than zero.
func WithHTTPTimeout(d time.Duration) Option {
	return func(c *Client) error {
		if d <= 0 {
			return fmt.Errorf("http timeout must be > 0")
		}
		c.http.SetTimeout(d)
		return nil
	}
}

// New constructs a Client for baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("baseURL cannot be empty")
	}
	c := &Client{
		http: resty.New().
			SetBaseURL(baseURL).
			SetHeader("Accept", "application/json").
			SetTimeout(30 * time.Second),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

type cardList struct {
	Cards []card.Card `json:"cards"`
	Count int         `json:"count"`
}

// ListCards GET /api/cards
func (c *Client) ListCards(ctx context.Context, opts repository.SearchOptions) ([]card.Card, error) {
	q := url.Values{}
	if opts.Query != "" {
		q.Set("q", opts.Query)
	}
	for _, id := range opts.TagIDs {
		q.Add("tag", id)
	}
	for _, name := range opts.TagNames {
		q.Add("tagName", name)
	}
	if opts.SortBy != "" {
		q.Set("sort", string(opts.SortBy))
	}
	if opts.Direction != "" {
		q.Set("dir", string(opts.Direction))
	}
	if opts.IncludeArchived {
		q.Set("archived", strconv.FormatBool(true))
	}

	var out cardList
	resp, err := c.http.R().SetContext(ctx).SetQueryParamsFromValues(q).SetResult(&out).Get("/api/cards")
	if err := check(resp, err, "list cards"); err != nil {
		return nil, err
	}
	return out.Cards, nil
}

// GetCard GET /api/cards/{id}
func (c *Client) GetCard(ctx context.Context, id string) (card.Card, error) {
	var out card.Card
	resp, err := c.http.R().SetContext(ctx).SetPathParam("id", id).SetResult(&out).Get("/api/cards/{id}")
	if err := check(resp, err, "get card"); err != nil {
		return card.Card{}, err
	}
	return out, nil
}

// CreateCard POST /api/cards
func (c *Client) CreateCard(ctx context.Context, draft card.Draft) (card.Card, error) {
	var out card.Card
	resp, err := c.http.R().SetContext(ctx).SetBody(draft).SetResult(&out).Post("/api/cards")
	if err := check(resp, err, "create card"); err != nil {
		return card.Card{}, err
	}
	return out, nil
}

// UpdateCard PUT /api/cards/{id}
func (c *Client) UpdateCard(ctx context.Context, in card.Card) (card.Card, error) {
	var out card.Card
	resp, err := c.http.R().SetContext(ctx).SetPathParam("id", in.ID).SetBody(in).SetResult(&out).Put("/api/cards/{id}")
	if err := check(resp, err, "update card"); err != nil {
		return card.Card{}, err
	}
	return out, nil
}

// DeleteCard DELETE /api/cards/{id}
func (c *Client) DeleteCard(ctx context.Context, id string) error {
	resp, err := c.http.R().SetContext(ctx).SetPathParam("id", id).Delete("/api/cards/{id}")
	return check(resp, err, "delete card")
}

// ReplaceCards PUT /api/cards
func (c *Client) ReplaceCards(ctx context.Context, cards []card.Card) ([]card.Card, error) {
	if cards == nil {
		cards = []card.Card{}
	}
	var out cardList
	resp, err := c.http.R().SetContext(ctx).SetBody(cards).SetResult(&out).Put("/api/cards")
	if err := check(resp, err, "replace cards"); err != nil {
		return nil, err
	}
	return out.Cards, nil
}

// ShareHTML GET /api/cards/{id}/share.html
func (c *Client) ShareHTML(ctx context.Context, id string) ([]byte, error) {
	resp, err := c.http.R().SetContext(ctx).SetPathParam("id", id).Get("/api/cards/{id}/share.html")
	if err := check(resp, err, "share card"); err != nil {
		return nil, err
	}
	return resp.Body(), nil
}

// Export GET /api/export and returns the raw backup document.
func (c *Client) Export(ctx context.Context) ([]byte, error) {
	resp, err := c.http.R().SetContext(ctx).Get("/api/export")
	if err := check(resp, err, "export"); err != nil {
		return nil, err
	}
	return resp.Body(), nil
}

// Import POST /api/import with a backup document and returns how many
// cards it carried.
func (c *Client) Import(ctx context.Context, backup []byte) (int, error) {
	var out struct {
		Imported int `json:"imported"`
	}
	resp, err := c.http.R().SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(backup).
		SetResult(&out).
		Post("/api/import")
	if err := check(resp, err, "import"); err != nil {
		return 0, err
	}
	return out.Imported, nil
}

// State GET /api/state
func (c *Client) State(ctx context.Context) (state.State, error) {
	var out state.State
	resp, err := c.http.R().SetContext(ctx).SetResult(&out).Get("/api/state")
	if err := check(resp, err, "get state"); err != nil {
		return state.State{}, err
	}
	return out, nil
}

// Health GET /api/health and reports whether the server is healthy.
func (c *Client) Health(ctx context.Context) (bool, error) {
	var out struct {
		Status string `json:"status"`
	}
	resp, err := c.http.R().SetContext(ctx).SetResult(&out).Get("/api/health")
	if err := check(resp, err, "health"); err != nil {
		return false, err
	}
	return out.Status == "healthy", nil
}

// check turns transport failures and non-2xx responses into errors. API
// errors come back as the card package's typed errors where one applies.
func check(resp *resty.Response, err error, op string) error {
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if resp.IsSuccess() {
		return nil
	}

	msg := resp.String()
	var body respond.ErrorResponse
	if json.Unmarshal(resp.Body(), &body) == nil && body.Message != "" {
		msg = body.Message
	}
	switch resp.StatusCode() {
	case http.StatusBadRequest:
		return fmt.Errorf("%s: %w", op, card.NewValidationError("request", msg))
	case http.StatusNotFound:
		return fmt.Errorf("%s: %w", op, card.NewNotFoundError("id", msg))
	case http.StatusConflict:
		return fmt.Errorf("%s: %w", op, card.NewConflictError("id", msg))
	}
	return &StatusError{Op: op, Code: resp.StatusCode(), Message: msg}
}

// StatusError is any other non-2xx answer.
type StatusError struct {
	Op      string
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: status %d: %s", e.Op, e.Code, e.Message)
}
