package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nongjianweihao/share-car/internal/config"
	"github.com/nongjianweihao/share-car/internal/logger"
	"github.com/nongjianweihao/share-car/internal/storage/sqlite"
)

// startServe runs Serve in the background and returns its address, a stop
// func and the channel Serve's result arrives on.
func startServe(t *testing.T, cfg *config.Config) (string, context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	addrCh := make(chan string, 1)
	errCh := make(chan error, 1)
	go func() {
		errCh <- Serve(ctx, cfg, logger.NewWithWriter(io.Discard, "test"), func(addr string) { addrCh <- addr })
	}()

	select {
	case addr := <-addrCh:
		return addr, cancel, errCh
	case err := <-errCh:
		t.Fatalf("serve exited early: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not start")
	}
	return "", cancel, errCh
}

func waitStopped(t *testing.T, errCh <-chan error) {
	t.Helper()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(15 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func cardCount(t *testing.T, addr string) int {
	t.Helper()
	resp, err := http.Get("http://" + addr + "/api/cards")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body.Count
}

func TestServeAndShutdown(t *testing.T) {
	cfg := config.NewForTesting()
	cfg.HTTPPort = 0

	addr, stop, errCh := startServe(t, cfg)
	assert.Positive(t, cardCount(t, addr), "seeded collection is served")

	stop()
	waitStopped(t, errCh)
}

func TestServeWithUnwatchableStorage(t *testing.T) {
	cfg := config.NewForTesting()
	cfg.HTTPPort = 0
	cfg.StorageDriver = config.DriverSQLite
	cfg.SQLitePath = sqlite.MemoryPath
	cfg.Watch = true

	addr, stop, errCh := startServe(t, cfg)
	assert.Positive(t, cardCount(t, addr), "watch is skipped and the server still serves")

	stop()
	waitStopped(t, errCh)
}

func TestServeFailsOnUnknownDriver(t *testing.T) {
	cfg := config.NewForTesting()
	cfg.StorageDriver = "floppy"
	err := Serve(context.Background(), cfg, logger.NewWithWriter(io.Discard, "test"), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "floppy")
}
