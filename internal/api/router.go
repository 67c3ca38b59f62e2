// Package api is the HTTP surface of the card store.
package api

import (
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/nongjianweihao/share-car/internal/api/recovery"
	"github.com/nongjianweihao/share-car/internal/state"
)

// NewRouter wires every route. Reads of single cards and filtered lists go
// to cards; everything that changes data goes through store.
func NewRouter(cards CardReader, store *state.Store, svcHealth ServiceHealth, log zerolog.Logger) *mux.Router {
	root := mux.NewRouter()
	root.Use(recovery.Middleware(log))

	// Cards
	c := NewCardHandler(cards, store, log)
	root.HandleFunc("/api/cards", c.ListCards).Methods("GET")
	root.HandleFunc("/api/cards", c.CreateCard).Methods("POST")
	root.HandleFunc("/api/cards", c.ReplaceCards).Methods("PUT")
	root.HandleFunc("/api/cards/{id}", c.GetCard).Methods("GET")
	root.HandleFunc("/api/cards/{id}", c.UpdateCard).Methods("PUT")
	root.HandleFunc("/api/cards/{id}", c.DeleteCard).Methods("DELETE")
	root.HandleFunc("/api/cards/{id}/share.html", c.ShareCard).Methods("GET")
	root.HandleFunc("/api/export", c.Export).Methods("GET")
	root.HandleFunc("/api/import", c.Import).Methods("POST")

	// Store state
	s := NewStateHandler(store)
	root.HandleFunc("/api/state", s.GetState).Methods("GET")
	root.HandleFunc("/api/state/view", s.GetView).Methods("GET")
	root.HandleFunc("/api/state/query", s.SetQuery).Methods("POST")
	root.HandleFunc("/api/state/tags", s.SetTags).Methods("POST")
	root.HandleFunc("/api/state/select", s.Select).Methods("POST")
	root.HandleFunc("/api/state/preferences", s.SetPreferences).Methods("PUT")

	// Live updates
	root.HandleFunc("/api/events", NewEventsHandler(store, log).Stream).Methods("GET")

	// Health
	root.HandleFunc("/api/health", NewHealthHandler(svcHealth).CheckHealth).Methods("GET")
	return root
}
