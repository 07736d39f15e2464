// Package ids generates sortable unique identifiers for stored rows.
package ids

import (
	"crypto/rand"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	mu      sync.Mutex
	entropy = ulid.Monotonic(rand.Reader, 0)
)

// New returns a lower-case ULID. Values generated within the same
// millisecond remain strictly increasing.
func New() string {
	mu.Lock()
	defer mu.Unlock()
	id := ulid.MustNew(ulid.Timestamp(time.Now().UTC()), entropy)
	return strings.ToLower(id.String())
}
