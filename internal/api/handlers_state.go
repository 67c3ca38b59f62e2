package api

import (
	"net/http"

	"github.com/nongjianweihao/share-car/internal/api/respond"
	"github.com/nongjianweihao/share-car/internal/card"
	"github.com/nongjianweihao/share-car/internal/state"
)

// StateHandler exposes the observable store: filters, selection and view
// preferences.
type StateHandler struct {
	store *state.Store
}

func NewStateHandler(store *state.Store) *StateHandler { return &StateHandler{store: store} }

// GetState GET /api/state
func (h *StateHandler) GetState(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSON(w, http.StatusOK, h.store.State())
}

// GetView GET /api/state/view
func (h *StateHandler) GetView(w http.ResponseWriter, r *http.Request) {
	cards := h.store.SortedView()
	respond.WriteJSON(w, http.StatusOK, cardList{Cards: cards, Count: len(cards)})
}

// SetQuery POST /api/state/query
func (h *StateHandler) SetQuery(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Query string `json:"query"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}
	if err := h.store.SetSearchQuery(r.Context(), req.Query); err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, h.store.State())
}

// SetTags POST /api/state/tags
func (h *StateHandler) SetTags(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TagIDs []string `json:"tagIds"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}
	if err := h.store.SetTagFilters(r.Context(), req.TagIDs); err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, h.store.State())
}

// Select POST /api/state/select
func (h *StateHandler) Select(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CardID string `json:"cardId"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}
	h.store.SelectCard(req.CardID)
	respond.WriteJSON(w, http.StatusOK, h.store.State())
}

// SetPreferences PUT /api/state/preferences. Omitted fields keep their value.
func (h *StateHandler) SetPreferences(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SortOrder *state.SortOrder  `json:"sortOrder"`
		Layout    *state.LayoutMode `json:"layout"`
		Theme     *state.Theme      `json:"theme"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}
	// validate everything before applying anything
	switch {
	case req.SortOrder != nil && !req.SortOrder.Valid():
		respond.WriteDomainError(w, card.NewValidationError("sortOrder", "unsupported sort order"))
		return
	case req.Layout != nil && !req.Layout.Valid():
		respond.WriteDomainError(w, card.NewValidationError("layout", "unsupported layout"))
		return
	case req.Theme != nil && !req.Theme.Valid():
		respond.WriteDomainError(w, card.NewValidationError("theme", "unsupported theme"))
		return
	}
	if req.SortOrder != nil {
		_ = h.store.SetSortOrder(*req.SortOrder)
	}
	if req.Layout != nil {
		_ = h.store.SetLayoutMode(*req.Layout)
	}
	if req.Theme != nil {
		_ = h.store.SetViewTheme(*req.Theme)
	}
	respond.WriteJSON(w, http.StatusOK, h.store.State().ViewPreferences)
}
