package repository

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nongjianweihao/share-car/internal/card"
	"github.com/nongjianweihao/share-car/internal/seed"
	"github.com/nongjianweihao/share-car/internal/storage"
	"github.com/nongjianweihao/share-car/internal/storage/memory"
)

var t0 = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

// fakeClock returns a fixed time until advanced.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// flakyStorage fails loads or saves on demand.
type flakyStorage struct {
	storage.Storage
	failLoad, failSave bool
	saves              int
}

var errBackend = errors.New("backend unavailable")

func (f *flakyStorage) Load(ctx context.Context, key string) ([]byte, error) {
	if f.failLoad {
		return nil, errBackend
	}
	return f.Storage.Load(ctx, key)
}

func (f *flakyStorage) Save(ctx context.Context, key string, value []byte) error {
	if f.failSave {
		return errBackend
	}
	f.saves++
	return f.Storage.Save(ctx, key, value)
}

func newRepo(t *testing.T, opts ...Option) (*Repository, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: t0}
	base := []Option{WithSeed(nil), WithClock(clock.Now), WithIDGenerator(card.SequenceIDs("card_"))}
	return New(memory.New(), append(base, opts...)...), clock
}

func textBlock(id, text string) card.Block {
	return card.TextBlock{BlockBase: card.BlockBase{ID: id}, Text: text}
}

func TestCreateThenListRoundTrip(t *testing.T) {
	repo, _ := newRepo(t)
	ctx := context.Background()

	created, err := repo.CreateCard(ctx, card.Draft{
		Title:    "测试卡片",
		Summary:  "summary",
		Category: "运动",
		Blocks:   card.Blocks{textBlock("b1", "hello")},
		Tags:     []card.Tag{{ID: "t1", Name: "体能"}},
		Layout:   &card.LayoutStyle{Variant: "poster"},
		Metadata: map[string]any{"slug": "x"},
	})
	require.NoError(t, err)
	assert.Equal(t, "card_1", created.ID)
	assert.True(t, created.CreatedAt.Equal(t0))
	assert.True(t, created.UpdatedAt.Equal(t0))

	cards, err := repo.ListCards(ctx)
	require.NoError(t, err)
	require.Len(t, cards, 1)
	assert.Equal(t, created, cards[0])
	assert.Equal(t, "测试卡片", cards[0].Title)
	require.Len(t, cards[0].Blocks, 1)
	assert.Equal(t, "hello", cards[0].Blocks[0].(card.TextBlock).Text)
}

func TestCreateRejectsBlankTitle(t *testing.T) {
	repo, _ := newRepo(t)
	_, err := repo.CreateCard(context.Background(), card.Draft{Title: "  "})
	require.Error(t, err)
	assert.True(t, card.IsValidationError(err))

	created, err := repo.CreateCard(context.Background(), card.Draft{Title: "ok"})
	require.NoError(t, err)
	assert.Equal(t, "card_1", created.ID, "failed create must not consume an id")
}

func TestCreateAssignsUniqueIDs(t *testing.T) {
	repo, _ := newRepo(t, WithIDGenerator(card.DefaultIDs))
	ctx := context.Background()

	seen := map[string]bool{}
	for i := 0; i < 20; i++ {
		c, err := repo.CreateCard(ctx, card.Draft{Title: "card"})
		require.NoError(t, err)
		require.False(t, seen[c.ID], "duplicate id %s", c.ID)
		seen[c.ID] = true
	}
	cards, err := repo.ListCards(ctx)
	require.NoError(t, err)
	assert.Len(t, cards, 20)
}

func TestCreateSkipsGeneratedCollisions(t *testing.T) {
	ids := []string{"dup", "dup", "fresh"}
	i := 0
	gen := card.IDFunc(func() string { id := ids[i]; i++; return id })
	repo, _ := newRepo(t, WithIDGenerator(gen))
	ctx := context.Background()

	a, err := repo.CreateCard(ctx, card.Draft{Title: "a"})
	require.NoError(t, err)
	b, err := repo.CreateCard(ctx, card.Draft{Title: "b"})
	require.NoError(t, err)
	assert.Equal(t, "dup", a.ID)
	assert.Equal(t, "fresh", b.ID)
}

func TestCreateConflictOnSuppliedID(t *testing.T) {
	repo, _ := newRepo(t)
	ctx := context.Background()
	_, err := repo.CreateCard(ctx, card.Draft{ID: "x", Title: "first"})
	require.NoError(t, err)

	_, err = repo.CreateCard(ctx, card.Draft{ID: "x", Title: "second"})
	require.Error(t, err)
	assert.True(t, card.IsConflictError(err))

	got, err := repo.GetCard(ctx, "x")
	require.NoError(t, err)
	assert.Equal(t, "first", got.Title)
}

func TestCreateConflictOnPaddedSuppliedID(t *testing.T) {
	repo, _ := newRepo(t)
	ctx := context.Background()
	_, err := repo.CreateCard(ctx, card.Draft{ID: "x", Title: "first"})
	require.NoError(t, err)

	_, err = repo.CreateCard(ctx, card.Draft{ID: " x ", Title: "second"})
	require.Error(t, err)
	assert.True(t, card.IsConflictError(err))

	cards, err := repo.ListCards(ctx)
	require.NoError(t, err)
	require.Len(t, cards, 1)
	assert.Equal(t, "first", cards[0].Title)

	padded, err := repo.CreateCard(ctx, card.Draft{ID: "  y\t", Title: "third"})
	require.NoError(t, err)
	assert.Equal(t, "y", padded.ID)
	got, err := repo.GetCard(ctx, "y")
	require.NoError(t, err)
	assert.Equal(t, "third", got.Title)
}

func TestCreateKeepsSuppliedCreatedAt(t *testing.T) {
	repo, _ := newRepo(t)
	earlier := t0.Add(-48 * time.Hour)
	c, err := repo.CreateCard(context.Background(), card.Draft{Title: "x", CreatedAt: earlier, UpdatedAt: earlier})
	require.NoError(t, err)
	assert.True(t, c.CreatedAt.Equal(earlier))
	assert.True(t, c.UpdatedAt.Equal(t0), "updatedAt is always set by the repository")
}

func TestUpdateStrictlyIncreasesUpdatedAt(t *testing.T) {
	repo, clock := newRepo(t)
	ctx := context.Background()
	c, err := repo.CreateCard(ctx, card.Draft{Title: "v1"})
	require.NoError(t, err)

	// clock does not move
	c.Title = "v2"
	u1, err := repo.UpdateCard(ctx, c)
	require.NoError(t, err)
	assert.True(t, u1.UpdatedAt.After(c.UpdatedAt))

	u1.Title = "v3"
	u2, err := repo.UpdateCard(ctx, u1)
	require.NoError(t, err)
	assert.True(t, u2.UpdatedAt.After(u1.UpdatedAt))

	clock.Advance(time.Minute)
	u3, err := repo.UpdateCard(ctx, u2)
	require.NoError(t, err)
	assert.True(t, u3.UpdatedAt.Equal(t0.Add(time.Minute)))
	assert.False(t, u3.UpdatedAt.Before(u3.CreatedAt))

	got, err := repo.GetCard(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "v3", got.Title)
}

func TestUpdateMissingCardIsNotFound(t *testing.T) {
	repo, _ := newRepo(t)
	ctx := context.Background()
	_, err := repo.CreateCard(ctx, card.Draft{Title: "keep"})
	require.NoError(t, err)
	before, err := repo.ListCards(ctx)
	require.NoError(t, err)

	_, err = repo.UpdateCard(ctx, card.Card{ID: "does-not-exist", Title: "x"})
	require.Error(t, err)
	assert.True(t, card.IsNotFoundError(err))

	after, err := repo.ListCards(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestUpdateRejectsBlankTitle(t *testing.T) {
	repo, _ := newRepo(t)
	ctx := context.Background()
	c, err := repo.CreateCard(ctx, card.Draft{Title: "x"})
	require.NoError(t, err)

	c.Title = ""
	_, err = repo.UpdateCard(ctx, c)
	assert.True(t, card.IsValidationError(err))
}

func TestDeleteRemovesAndIgnoresMissing(t *testing.T) {
	st := &flakyStorage{Storage: memory.New()}
	clock := &fakeClock{now: t0}
	repo := New(st, WithSeed(nil), WithClock(clock.Now), WithIDGenerator(card.SequenceIDs("c")))
	ctx := context.Background()

	a, err := repo.CreateCard(ctx, card.Draft{Title: "a"})
	require.NoError(t, err)
	_, err = repo.CreateCard(ctx, card.Draft{Title: "b"})
	require.NoError(t, err)
	savesBefore := st.saves

	require.NoError(t, repo.DeleteCard(ctx, "does-not-exist"))
	assert.Equal(t, savesBefore, st.saves, "missing id must not rewrite storage")
	cards, err := repo.ListCards(ctx)
	require.NoError(t, err)
	assert.Len(t, cards, 2)

	require.NoError(t, repo.DeleteCard(ctx, a.ID))
	cards, err = repo.ListCards(ctx)
	require.NoError(t, err)
	require.Len(t, cards, 1)
	assert.Equal(t, "b", cards[0].Title)
	_, err = repo.GetCard(ctx, a.ID)
	assert.True(t, card.IsNotFoundError(err))
}

func TestArchivedCardsAreHiddenButKept(t *testing.T) {
	repo, clock := newRepo(t)
	ctx := context.Background()
	c, err := repo.CreateCard(ctx, card.Draft{Title: "old"})
	require.NoError(t, err)
	clock.Advance(time.Second)
	_, err = repo.CreateCard(ctx, card.Draft{Title: "new"})
	require.NoError(t, err)

	c.Archived = true
	_, err = repo.UpdateCard(ctx, c)
	require.NoError(t, err)

	cards, err := repo.ListCards(ctx)
	require.NoError(t, err)
	require.Len(t, cards, 1)
	assert.Equal(t, "new", cards[0].Title)

	got, err := repo.GetCard(ctx, c.ID)
	require.NoError(t, err)
	assert.True(t, got.Archived)

	all, err := repo.SearchCards(ctx, SearchOptions{IncludeArchived: true}, nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestListOrdersByUpdatedAtDesc(t *testing.T) {
	repo, clock := newRepo(t)
	ctx := context.Background()
	for _, title := range []string{"first", "second", "third"} {
		_, err := repo.CreateCard(ctx, card.Draft{Title: title})
		require.NoError(t, err)
		clock.Advance(time.Second)
	}
	cards, err := repo.ListCards(ctx)
	require.NoError(t, err)
	require.Len(t, cards, 3)
	assert.Equal(t, []string{"third", "second", "first"}, titles(cards))
}

func TestSeedingIsIdempotent(t *testing.T) {
	st := memory.New()
	ctx := context.Background()
	seeds := seed.MustCards()

	repo := New(st)
	first, err := repo.ListCards(ctx)
	require.NoError(t, err)
	second, err := repo.ListCards(ctx)
	require.NoError(t, err)
	assert.Len(t, first, len(seeds))
	assert.Equal(t, first, second)

	// A new instance over the populated storage does not reseed.
	again, err := New(st).ListCards(ctx)
	require.NoError(t, err)
	assert.Len(t, again, len(seeds))
}

func TestSeedingSkipsPopulatedCollection(t *testing.T) {
	st := memory.New()
	ctx := context.Background()

	plain := New(st, WithSeed(nil), WithIDGenerator(card.SequenceIDs("c")))
	_, err := plain.CreateCard(ctx, card.Draft{Title: "mine"})
	require.NoError(t, err)

	cards, err := New(st).ListCards(ctx)
	require.NoError(t, err)
	require.Len(t, cards, 1)
	assert.Equal(t, "mine", cards[0].Title)
}

func TestSeedingRetriesAfterReadFailure(t *testing.T) {
	st := &flakyStorage{Storage: memory.New(), failLoad: true}
	repo := New(st)
	ctx := context.Background()

	_, err := repo.ListCards(ctx)
	require.Error(t, err)
	assert.True(t, card.IsStorageError(err))
	assert.ErrorIs(t, err, errBackend)

	st.failLoad = false
	cards, err := repo.ListCards(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, cards)
}

func TestWriteFailureIsStorageError(t *testing.T) {
	st := &flakyStorage{Storage: memory.New()}
	repo := New(st, WithSeed(nil))
	ctx := context.Background()
	_, err := repo.ListCards(ctx)
	require.NoError(t, err)

	st.failSave = true
	_, err = repo.CreateCard(ctx, card.Draft{Title: "x"})
	require.Error(t, err)
	assert.True(t, card.IsStorageError(err))

	st.failSave = false
	cards, err := repo.ListCards(ctx)
	require.NoError(t, err)
	assert.Empty(t, cards)
}

func TestCorruptCollectionIsStorageError(t *testing.T) {
	st := memory.New()
	ctx := context.Background()
	require.NoError(t, st.Save(ctx, storage.DefaultKey, []byte("{not json")))

	_, err := New(st).ListCards(ctx)
	require.Error(t, err)
	assert.True(t, card.IsStorageError(err))

	raw, err := st.Load(ctx, storage.DefaultKey)
	require.NoError(t, err)
	assert.Equal(t, "{not json", string(raw), "corrupt payload must not be overwritten by seeding")
}

func TestSaveManyReplacesCollection(t *testing.T) {
	repo, clock := newRepo(t)
	ctx := context.Background()
	_, err := repo.CreateCard(ctx, card.Draft{Title: "gone"})
	require.NoError(t, err)

	older := card.Card{ID: "a", Title: "A", CreatedAt: t0, UpdatedAt: t0}
	newer := card.Card{ID: "b", Title: "B", CreatedAt: t0, UpdatedAt: t0.Add(time.Hour)}
	dup := card.Card{ID: "a", Title: "A again", CreatedAt: t0, UpdatedAt: t0}
	archived := card.Card{ID: "c", Title: "C", CreatedAt: t0, UpdatedAt: t0, Archived: true}
	clock.Advance(time.Hour)

	cards, err := repo.SaveMany(ctx, []card.Card{older, newer, dup, archived})
	require.NoError(t, err)
	assert.Equal(t, []string{"B", "A"}, titles(cards))

	all, err := repo.SearchCards(ctx, SearchOptions{IncludeArchived: true, SortBy: SortByTitle, Direction: SortAsc}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C"}, titles(all))
}

func TestSaveManyRejectsInvalidCardWithoutWriting(t *testing.T) {
	repo, _ := newRepo(t)
	ctx := context.Background()
	_, err := repo.CreateCard(ctx, card.Draft{Title: "keep"})
	require.NoError(t, err)

	_, err = repo.SaveMany(ctx, []card.Card{{ID: "a", Title: "ok"}, {ID: "b", Title: ""}})
	require.Error(t, err)
	assert.True(t, card.IsValidationError(err))

	cards, err := repo.ListCards(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"keep"}, titles(cards))
}

func TestConcurrentCreatesAreSerialized(t *testing.T) {
	repo, _ := newRepo(t, WithIDGenerator(card.DefaultIDs))
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.CreateCard(ctx, card.Draft{Title: "parallel"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	cards, err := repo.ListCards(ctx)
	require.NoError(t, err)
	assert.Len(t, cards, 16)
}

func TestStorageKey(t *testing.T) {
	repo := New(memory.New())
	assert.Equal(t, "share-car.cards", repo.StorageKey())
	assert.Equal(t, "other", New(memory.New(), WithKey("other")).StorageKey())
}

func titles(cards []card.Card) []string {
	out := make([]string, len(cards))
	for i, c := range cards {
		out[i] = c.Title
	}
	return out
}
