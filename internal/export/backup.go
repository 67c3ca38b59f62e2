package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/nongjianweihao/share-car/internal/card"
)

// BackupVersion is written into every backup envelope.
const BackupVersion = 1

// Backup is the envelope of a collection export.
type Backup struct {
	Version    int             `json:"version"`
	ExportedAt time.Time       `json:"exportedAt"`
	Cards      json.RawMessage `json:"cards"`
}

// WriteBackup writes cards wrapped in a versioned envelope.
func WriteBackup(w io.Writer, cards []card.Card, exportedAt time.Time) error {
	payload, err := card.EncodeCollection(cards)
	if err != nil {
		return fmt.Errorf("encode backup: %w", err)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(Backup{Version: BackupVersion, ExportedAt: exportedAt.UTC(), Cards: payload}); err != nil {
		return fmt.Errorf("write backup: %w", err)
	}
	return nil
}

// ReadBackup reads a backup written by WriteBackup or a bare card array.
// Entries that are not valid cards are skipped.
func ReadBackup(r io.Reader) ([]card.Card, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read backup: %w", err)
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, card.NewValidationError("backup", "backup is empty")
	}

	payload := data
	if data[0] == '{' {
		var b Backup
		if err := json.Unmarshal(data, &b); err != nil {
			return nil, card.NewValidationError("backup", fmt.Sprintf("malformed backup: %v", err))
		}
		if b.Version > BackupVersion {
			return nil, card.NewValidationError("backup.version", fmt.Sprintf("unsupported backup version %d", b.Version))
		}
		if len(b.Cards) == 0 {
			return nil, card.NewValidationError("backup.cards", "backup has no cards field")
		}
		payload = b.Cards
	}

	cards, err := card.DecodeCollection(payload)
	if err != nil {
		return nil, card.NewValidationError("backup.cards", err.Error())
	}
	return cards, nil
}
