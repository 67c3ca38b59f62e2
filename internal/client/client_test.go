package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nongjianweihao/share-car/internal/api"
	"github.com/nongjianweihao/share-car/internal/card"
	"github.com/nongjianweihao/share-car/internal/repository"
	"github.com/nongjianweihao/share-car/internal/state"
	"github.com/nongjianweihao/share-car/internal/storage/memory"
)

type alwaysHealthy struct{}

func (alwaysHealthy) IsHealthy() bool             { return true }
func (alwaysHealthy) Components() map[string]bool { return map[string]bool{"storage": true} }

func newServer(t *testing.T) *Client {
	t.Helper()
	t0 := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	seed := []card.Card{{
		ID:        "seeded",
		Title:     "速度训练",
		Blocks:    card.Blocks{},
		Tags:      []card.Tag{{ID: "speed", Name: "速度"}},
		CreatedAt: t0,
		UpdatedAt: t0,
	}}
	repo := repository.New(memory.New(), repository.WithSeed(seed))
	store := state.New(repo)
	require.NoError(t, store.Initialize(context.Background()))

	srv := httptest.NewServer(api.NewRouter(repo, store, alwaysHealthy{}, zerolog.Nop()))
	t.Cleanup(srv.Close)

	c, err := New(srv.URL, WithHTTPTimeout(5*time.Second))
	require.NoError(t, err)
	return c
}

func TestNewValidates(t *testing.T) {
	_, err := New("")
	assert.Error(t, err)
	_, err = New("http://localhost", WithHTTPTimeout(0))
	assert.Error(t, err)
}

func TestCardLifecycle(t *testing.T) {
	c := newServer(t)
	ctx := context.Background()

	cards, err := c.ListCards(ctx, repository.SearchOptions{TagIDs: []string{"speed"}})
	require.NoError(t, err)
	require.Len(t, cards, 1)
	assert.Equal(t, "seeded", cards[0].ID)

	created, err := c.CreateCard(ctx, card.Draft{Title: "新卡片", Blocks: card.Blocks{
		card.TextBlock{BlockBase: card.BlockBase{ID: "b"}, Text: "正文"},
	}})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	require.Len(t, created.Blocks, 1)

	got, err := c.GetCard(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "正文", got.Blocks[0].(card.TextBlock).Text)

	got.Title = "改名"
	updated, err := c.UpdateCard(ctx, got)
	require.NoError(t, err)
	assert.Equal(t, "改名", updated.Title)
	assert.True(t, updated.UpdatedAt.After(got.UpdatedAt))

	cards, err = c.ListCards(ctx, repository.SearchOptions{Query: "改", SortBy: repository.SortByTitle, Direction: repository.SortAsc})
	require.NoError(t, err)
	assert.Len(t, cards, 1)

	require.NoError(t, c.DeleteCard(ctx, created.ID))
	_, err = c.GetCard(ctx, created.ID)
	assert.True(t, card.IsNotFoundError(err))
}

func TestErrorMapping(t *testing.T) {
	c := newServer(t)
	ctx := context.Background()

	_, err := c.CreateCard(ctx, card.Draft{Title: " "})
	assert.True(t, card.IsValidationError(err), "%v", err)

	_, err = c.CreateCard(ctx, card.Draft{ID: "seeded", Title: "dup"})
	assert.True(t, card.IsConflictError(err), "%v", err)

	_, err = c.UpdateCard(ctx, card.Card{ID: "missing", Title: "x"})
	assert.True(t, card.IsNotFoundError(err), "%v", err)

	_, err = c.ListCards(ctx, repository.SearchOptions{SortBy: "color"})
	assert.True(t, card.IsValidationError(err), "%v", err)
}

func TestStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":"Service Unavailable","code":503,"message":"down"}`))
	}))
	defer srv.Close()

	c, err := New(srv.URL)
	require.NoError(t, err)
	_, err = c.State(context.Background())
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusServiceUnavailable, se.Code)
	assert.Equal(t, "down", se.Message)
}

func TestBulkAndBackup(t *testing.T) {
	c := newServer(t)
	ctx := context.Background()

	backup, err := c.Export(ctx)
	require.NoError(t, err)
	assert.Contains(t, string(backup), "seeded")

	cards, err := c.ReplaceCards(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, cards)

	n, err := c.Import(ctx, backup)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	st, err := c.State(ctx)
	require.NoError(t, err)
	require.Len(t, st.Cards, 1)
	assert.Equal(t, "seeded", st.Cards[0].ID)

	page, err := c.ShareHTML(ctx, "seeded")
	require.NoError(t, err)
	assert.Contains(t, string(page), "<h1>速度训练</h1>")

	healthy, err := c.Health(ctx)
	require.NoError(t, err)
	assert.True(t, healthy)
}
