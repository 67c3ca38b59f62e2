package memory

import (
	"context"
	"testing"

	"github.com/nongjianweihao/share-car/internal/storage"
	"github.com/nongjianweihao/share-car/internal/storage/storagetest"
)

func TestMemoryStorage(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Storage { return New() })
}

func TestMemoryWatch(t *testing.T) {
	storagetest.RunWatch(t, func(t *testing.T) (storage.Backend, storage.Backend) {
		m := NewMedium()
		return m.Open(), m.Open()
	})
}

func TestMemoryClosed(t *testing.T) {
	s := New()
	_ = s.Close()
	if _, err := s.Load(context.Background(), "k"); err != storage.ErrClosed {
		t.Fatalf("Load after Close: %v", err)
	}
	if err := s.HealthPing(context.Background()); err != storage.ErrClosed {
		t.Fatalf("HealthPing after Close: %v", err)
	}
}
