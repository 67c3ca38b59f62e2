// Package storagetest is a compliance suite shared by every storage backend.
package storagetest

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/nongjianweihao/share-car/internal/storage"
)

// WaitTimeout bounds how long RunWatch waits for a change to arrive.
var WaitTimeout = 5 * time.Second

// Run exercises Load/Save semantics. makeStorage must return a clean, isolated
// backend; the suite uses unique keys so shared media are fine too.
func Run(t *testing.T, makeStorage func(t *testing.T) storage.Storage) {
	t.Helper()

	s := makeStorage(t)
	ctx := context.Background()
	key := "test-" + uuid.NewString()

	// Absent key
	got, err := s.Load(ctx, key)
	if err != nil {
		t.Fatalf("Load absent: %v", err)
	}
	if got != nil {
		t.Fatalf("Load absent: got %q, want nil", got)
	}

	// Save then Load
	v1 := []byte(`[{"id":"a"}]`)
	if err := s.Save(ctx, key, v1); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if got, err := s.Load(ctx, key); err != nil || !equalJSON(got, v1) {
		t.Fatalf("Load after Save: got=%s err=%v", got, err)
	}

	// Overwrite replaces wholesale
	v2 := []byte(`[]`)
	if err := s.Save(ctx, key, v2); err != nil {
		t.Fatalf("Save overwrite: %v", err)
	}
	if got, err := s.Load(ctx, key); err != nil || !equalJSON(got, v2) {
		t.Fatalf("Load after overwrite: got=%s err=%v", got, err)
	}

	// Keys are independent
	other := key + "-other"
	if got, err := s.Load(ctx, other); err != nil || got != nil {
		t.Fatalf("Load other key: got=%s err=%v", got, err)
	}

	// Returned bytes are not aliased to the stored value
	got, _ = s.Load(ctx, key)
	if len(got) > 0 {
		got[0] = 'X'
		again, _ := s.Load(ctx, key)
		if !equalJSON(again, v2) {
			t.Fatalf("Load result aliases stored value: %s", again)
		}
	}
}

// RunWatch checks that a write through one handle reaches a watcher on
// another handle, and that a handle never hears its own writes.
func RunWatch(t *testing.T, openPair func(t *testing.T) (writer, reader storage.Backend)) {
	t.Helper()

	writer, reader := openPair(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	key := "watch-" + uuid.NewString()

	foreign := make(chan storage.Change, 16)
	stopReader, err := reader.Watch(ctx, func(c storage.Change) { foreign <- c })
	if err != nil {
		t.Fatalf("reader Watch: %v", err)
	}
	defer stopReader()

	self := make(chan storage.Change, 16)
	stopWriter, err := writer.Watch(ctx, func(c storage.Change) { self <- c })
	if err != nil {
		t.Fatalf("writer Watch: %v", err)
	}
	defer stopWriter()

	if err := writer.Save(ctx, key, []byte(`[]`)); err != nil {
		t.Fatalf("Save: %v", err)
	}

	deadline := time.After(WaitTimeout)
wait:
	for {
		select {
		case c := <-foreign:
			if c.Key != key {
				continue
			}
			if c.Origin == "" {
				t.Fatalf("change without origin: %+v", c)
			}
			break wait
		case <-deadline:
			t.Fatalf("reader did not observe change to %s", key)
		}
	}

	// Give the writer's own watcher a moment; it must stay silent.
	select {
	case c := <-self:
		if c.Key == key {
			t.Fatalf("writer observed its own change: %+v", c)
		}
	case <-time.After(200 * time.Millisecond):
	}

	// After stop, no further callbacks.
	stopReader()
	if err := writer.Save(ctx, key, []byte(`[{"id":"late"}]`)); err != nil {
		t.Fatalf("Save after stop: %v", err)
	}
	select {
	case c := <-foreign:
		if c.Key == key {
			t.Fatalf("stopped watcher observed change: %+v", c)
		}
	case <-time.After(200 * time.Millisecond):
	}
}

func equalJSON(a, b []byte) bool {
	return bytes.Equal(compact(a), compact(b))
}

func compact(b []byte) []byte {
	out := make([]byte, 0, len(b))
	for _, c := range b {
		switch c {
		case ' ', '\n', '\t', '\r':
			continue
		}
		out = append(out, c)
	}
	return out
}
