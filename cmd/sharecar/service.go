package main

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/nongjianweihao/share-car/internal/card"
	"github.com/nongjianweihao/share-car/internal/client"
	"github.com/nongjianweihao/share-car/internal/config"
	"github.com/nongjianweihao/share-car/internal/export"
	"github.com/nongjianweihao/share-car/internal/factory"
	"github.com/nongjianweihao/share-car/internal/repository"
	"github.com/nongjianweihao/share-car/internal/state"
	"github.com/nongjianweihao/share-car/internal/workspace"
)

// cardService is what the card commands need, served either straight from
// the configured storage or by a remote server.
type cardService interface {
	List(ctx context.Context, opts repository.SearchOptions) ([]card.Card, error)
	Get(ctx context.Context, id string) (card.Card, error)
	Delete(ctx context.Context, id string) error
	Export(ctx context.Context) ([]byte, error)
	Import(ctx context.Context, backup []byte) (int, error)
	Share(ctx context.Context, id string) ([]byte, error)
	Editor() workspace.Store
	Close() error
}

// openService returns the remote service when --api is set, the local one
// otherwise.
func openService(ctx context.Context) (cardService, error) {
	if apiURL != "" {
		c, err := client.New(apiURL)
		if err != nil {
			return nil, err
		}
		log.Debug().Str("api", apiURL).Msg("using remote service")
		return &remoteService{client: c}, nil
	}

	cfg, err := config.New()
	if err != nil {
		return nil, err
	}
	backend, err := factory.NewStorage(ctx, cfg, log.Logger)
	if err != nil {
		return nil, err
	}
	repo := repository.New(backend, repoOptions(cfg)...)
	return &localService{
		backend: backend,
		repo:    repo,
		store:   state.New(repo, state.WithLogger(log.Logger)),
	}, nil
}

func repoOptions(cfg *config.Config) []repository.Option {
	opts := []repository.Option{
		repository.WithKey(cfg.StorageKey),
		repository.WithLogger(log.Logger),
	}
	if !cfg.Seed {
		opts = append(opts, repository.WithSeed(nil))
	}
	return opts
}

type localService struct {
	backend factory.Backend
	repo    *repository.Repository
	store   *state.Store
}

func (s *localService) List(ctx context.Context, opts repository.SearchOptions) ([]card.Card, error) {
	return s.repo.SearchCards(ctx, opts, nil)
}

func (s *localService) Get(ctx context.Context, id string) (card.Card, error) {
	return s.repo.GetCard(ctx, id)
}

func (s *localService) Delete(ctx context.Context, id string) error {
	return s.store.DeleteCard(ctx, id)
}

func (s *localService) Export(ctx context.Context) ([]byte, error) {
	cards, err := s.repo.SearchCards(ctx, repository.SearchOptions{IncludeArchived: true}, nil)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := export.WriteBackup(&buf, cards, time.Now()); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (s *localService) Import(ctx context.Context, backup []byte) (int, error) {
	cards, err := export.ReadBackup(bytes.NewReader(backup))
	if err != nil {
		return 0, err
	}
	if err := s.store.SaveMany(ctx, cards); err != nil {
		return 0, err
	}
	return len(cards), nil
}

func (s *localService) Share(ctx context.Context, id string) ([]byte, error) {
	c, err := s.repo.GetCard(ctx, id)
	if err != nil {
		return nil, err
	}
	return export.ShareHTML(c, time.Local)
}

func (s *localService) Editor() workspace.Store { return s.store }

func (s *localService) Close() error { return s.backend.Close() }

type remoteService struct {
	client *client.Client
}

func (s *remoteService) List(ctx context.Context, opts repository.SearchOptions) ([]card.Card, error) {
	return s.client.ListCards(ctx, opts)
}

func (s *remoteService) Get(ctx context.Context, id string) (card.Card, error) {
	return s.client.GetCard(ctx, id)
}

func (s *remoteService) Delete(ctx context.Context, id string) error {
	return s.client.DeleteCard(ctx, id)
}

func (s *remoteService) Export(ctx context.Context) ([]byte, error) { return s.client.Export(ctx) }

func (s *remoteService) Import(ctx context.Context, backup []byte) (int, error) {
	return s.client.Import(ctx, backup)
}

func (s *remoteService) Share(ctx context.Context, id string) ([]byte, error) {
	return s.client.ShareHTML(ctx, id)
}

func (s *remoteService) Editor() workspace.Store { return remoteEditor{client: s.client} }

func (s *remoteService) Close() error { return nil }

// remoteEditor lets a workspace session save through the HTTP API. It
// holds no local state, so every save of a new draft is a create.
type remoteEditor struct {
	client *client.Client
}

func (remoteEditor) State() state.State { return state.State{} }

func (e remoteEditor) CreateCard(ctx context.Context, draft card.Draft) (card.Card, error) {
	return e.client.CreateCard(ctx, draft)
}

func (e remoteEditor) UpdateCard(ctx context.Context, c card.Card) (card.Card, error) {
	return e.client.UpdateCard(ctx, c)
}

func (e remoteEditor) DeleteCard(ctx context.Context, id string) error {
	return e.client.DeleteCard(ctx, id)
}

func (remoteEditor) SelectCard(string) {}

// withService opens the service, runs fn with a bounded context and closes it.
func withService(parent context.Context, fn func(ctx context.Context, svc cardService) error) error {
	ctx, cancel := context.WithTimeout(parent, 30*time.Second)
	defer cancel()

	svc, err := openService(ctx)
	if err != nil {
		return fmt.Errorf("open card service: %w", err)
	}
	defer func() {
		if err := svc.Close(); err != nil {
			log.Warn().Err(err).Msg("close card service")
		}
	}()
	return fn(ctx, svc)
}
