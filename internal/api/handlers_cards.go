package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/nongjianweihao/share-car/internal/api/respond"
	"github.com/nongjianweihao/share-car/internal/api/validate"
	"github.com/nongjianweihao/share-car/internal/card"
	"github.com/nongjianweihao/share-car/internal/export"
	"github.com/nongjianweihao/share-car/internal/repository"
	"github.com/nongjianweihao/share-car/internal/state"
)

// maxBodyBytes caps request bodies; imports carry whole collections.
const maxBodyBytes = 16 << 20

// CardReader is the read side the card handlers query directly.
type CardReader interface {
	GetCard(ctx context.Context, id string) (card.Card, error)
	SearchCards(ctx context.Context, opts repository.SearchOptions, source []card.Card) ([]card.Card, error)
}

// CardHandler serves card CRUD, bulk replace, share pages and backups.
// Writes go through the store so its subscribers see every change.
type CardHandler struct {
	cards CardReader
	store *state.Store
	log   zerolog.Logger
	now   func() time.Time
}

func NewCardHandler(cards CardReader, store *state.Store, log zerolog.Logger) *CardHandler {
	return &CardHandler{cards: cards, store: store, log: log, now: time.Now}
}

type cardList struct {
	Cards []card.Card `json:"cards"`
	Count int         `json:"count"`
}

// ListCards GET /api/cards?q=&tag=&tagName=&sort=&dir=&archived=
func (h *CardHandler) ListCards(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	sortBy, err := validate.SortField(q.Get("sort"))
	if err != nil {
		respond.WriteBadRequest(w, err.Error())
		return
	}
	dir, err := validate.Direction(q.Get("dir"))
	if err != nil {
		respond.WriteBadRequest(w, err.Error())
		return
	}
	archived, err := validate.Bool("archived", q.Get("archived"))
	if err != nil {
		respond.WriteBadRequest(w, err.Error())
		return
	}

	cards, err := h.cards.SearchCards(r.Context(), repository.SearchOptions{
		Query:           q.Get("q"),
		TagIDs:          q["tag"],
		TagNames:        q["tagName"],
		SortBy:          sortBy,
		Direction:       dir,
		IncludeArchived: archived,
	}, nil)
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, cardList{Cards: cards, Count: len(cards)})
}

// CreateCard POST /api/cards
func (h *CardHandler) CreateCard(w http.ResponseWriter, r *http.Request) {
	var draft card.Draft
	if err := decodeBody(w, r, &draft); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}
	created, err := h.store.CreateCard(r.Context(), draft)
	if err != nil && created.ID == "" {
		respond.WriteDomainError(w, err)
		return
	}
	if err != nil {
		// persisted; only the follow-up reload failed
		h.log.Warn().Err(err).Str("card_id", created.ID).Msg("store refresh after create failed")
	}
	respond.WriteJSON(w, http.StatusCreated, created)
}

// GetCard GET /api/cards/{id}
func (h *CardHandler) GetCard(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := validate.CardID(id); err != nil {
		respond.WriteBadRequest(w, err.Error())
		return
	}
	c, err := h.cards.GetCard(r.Context(), id)
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, c)
}

// UpdateCard PUT /api/cards/{id}
func (h *CardHandler) UpdateCard(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := validate.CardID(id); err != nil {
		respond.WriteBadRequest(w, err.Error())
		return
	}
	var c card.Card
	if err := decodeBody(w, r, &c); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}
	if err := validate.MatchingIDs(id, c.ID); err != nil {
		respond.WriteBadRequest(w, err.Error())
		return
	}
	c.ID = id
	updated, err := h.store.UpdateCard(r.Context(), c)
	if err != nil && updated.ID == "" {
		respond.WriteDomainError(w, err)
		return
	}
	if err != nil {
		h.log.Warn().Err(err).Str("card_id", id).Msg("store refresh after update failed")
	}
	respond.WriteJSON(w, http.StatusOK, updated)
}

// DeleteCard DELETE /api/cards/{id}
func (h *CardHandler) DeleteCard(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := validate.CardID(id); err != nil {
		respond.WriteBadRequest(w, err.Error())
		return
	}
	if err := h.store.DeleteCard(r.Context(), id); err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ReplaceCards PUT /api/cards
func (h *CardHandler) ReplaceCards(w http.ResponseWriter, r *http.Request) {
	var cards []card.Card
	if err := decodeBody(w, r, &cards); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}
	if err := h.store.SaveMany(r.Context(), cards); err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	saved := h.store.State().Cards
	respond.WriteJSON(w, http.StatusOK, cardList{Cards: saved, Count: len(saved)})
}

// ShareCard GET /api/cards/{id}/share.html
func (h *CardHandler) ShareCard(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := validate.CardID(id); err != nil {
		respond.WriteBadRequest(w, err.Error())
		return
	}
	c, err := h.cards.GetCard(r.Context(), id)
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	page, err := export.ShareHTML(c, time.Local)
	if err != nil {
		respond.WriteInternalError(w, err.Error())
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if r.URL.Query().Get("download") != "" {
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.ShareFileName(c)))
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(page)
}

// Export GET /api/export
func (h *CardHandler) Export(w http.ResponseWriter, r *http.Request) {
	cards, err := h.cards.SearchCards(r.Context(), repository.SearchOptions{IncludeArchived: true}, nil)
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	now := h.now()
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "share-car-"+now.Format("20060102-150405")+".json"))
	if err := export.WriteBackup(w, cards, now); err != nil {
		h.log.Error().Err(err).Msg("write backup failed")
	}
}

// Import POST /api/import
func (h *CardHandler) Import(w http.ResponseWriter, r *http.Request) {
	cards, err := export.ReadBackup(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	if err := h.store.SaveMany(r.Context(), cards); err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{"imported": len(cards)})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
}
