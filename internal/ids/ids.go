// Package ids generates identifiers for audit events and HTTP requests.
package ids

import (
	mathrand "math/rand"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/oklog/ulid/v2"
	"github.com/segmentio/ksuid"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(mathrand.New(mathrand.NewSource(time.Now().UnixNano())), 0)
)

// New returns a lexicographically sortable ULID.
func New() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// RequestIDs generates snowflake request ids for one node.
type RequestIDs struct {
	node *snowflake.Node
}

// NewRequestIDs creates a generator for nodeID (0..1023). An invalid node
// makes Next fall back to KSUIDs.
func NewRequestIDs(nodeID int64) *RequestIDs {
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return &RequestIDs{}
	}
	return &RequestIDs{node: node}
}

func (g *RequestIDs) Next() string {
	if g == nil || g.node == nil {
		return ksuid.New().String()
	}
	return g.node.Generate().String()
}
