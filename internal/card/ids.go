package card

import (
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
)

// IDGenerator produces fresh card identifiers.
type IDGenerator interface {
	NewID() string
}

// IDFunc adapts a function to IDGenerator.
type IDFunc func() string

func (f IDFunc) NewID() string { return f() }

// DefaultIDs yields time-ordered ids of the form card_<uuidv7 hex>.
var DefaultIDs IDGenerator = IDFunc(func() string {
	return "card_" + strings.ReplaceAll(uuid.Must(uuid.NewV7()).String(), "-", "")
})

// NewBlockID returns a fresh block identifier.
func NewBlockID() string {
	return "block_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

// SequenceIDs returns a deterministic generator yielding prefix1, prefix2, ...
func SequenceIDs(prefix string) IDGenerator {
	var n atomic.Int64
	return IDFunc(func() string {
		return prefix + strconv.FormatInt(n.Add(1), 10)
	})
}
