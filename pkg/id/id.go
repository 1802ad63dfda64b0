// Package id issues time-sortable identifiers for cycles, paper orders and
// client order links.
package id

import (
	cryptoRand "crypto/rand"
	"encoding/binary"
	"io"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// orderLinkMax is the venue's limit on client order ids.
const orderLinkMax = 36

var (
	mu   sync.Mutex
	mono io.Reader
)

func init() {
	var seed int64
	_ = binary.Read(cryptoRand.Reader, binary.LittleEndian, &seed)
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	// Monotonic keeps ids minted in the same millisecond ordered.
	mono = ulid.Monotonic(rand.New(rand.NewSource(seed)), 0)
}

// New returns a ULID string.
func New() string {
	return NewAt(time.Now())
}

// NewAt returns a ULID stamped with t.
func NewAt(t time.Time) string {
	mu.Lock()
	defer mu.Unlock()

	u, err := ulid.New(ulid.Timestamp(t.UTC()), mono)
	if err != nil {
		// Only fails if the monotonic entropy overflows within one millisecond.
		return ulid.Make().String()
	}
	return u.String()
}

// OrderLink returns a client order id "<prefix>-<ulid>" that fits the venue limit.
func OrderLink(prefix string) string {
	s := New()
	if prefix == "" {
		return s
	}
	s = prefix + "-" + s
	if len(s) > orderLinkMax {
		s = s[len(s)-orderLinkMax:]
	}
	return s
}
