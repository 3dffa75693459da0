// Package pipid defines the pip identifier type shared by the sealed-
// directory table, the fragment graph builder, and the cache lookup driver,
// along with the atomic generator the graph builder uses to assign fresh
// ids (§4.7: "assigns a fresh monotonically increasing pip id (atomic
// increment)").
package pipid

import (
	"fmt"
	"sync/atomic"

	"github.com/pipforge/pipcore/pkg/numeric"
)

// PipID is an opaque, monotonically increasing identifier for a pip. The
// zero value is reserved and never assigned by a Generator.
type PipID uint64

// Invalid is the reserved zero PipID, used as a sentinel for "no producer".
const Invalid PipID = 0

// Generator hands out fresh, monotonically increasing PipIDs. It is safe
// for concurrent use.
type Generator struct {
	next uint64
}

// NewGenerator creates a Generator whose first Next() call returns PipID 1.
func NewGenerator() *Generator {
	return &Generator{}
}

// Next atomically allocates and returns the next PipID. It panics if the
// counter has been exhausted, since wrapping back around to 0 would
// collide with Invalid and silently resurrect a stale pip identity.
func (g *Generator) Next() PipID {
	if atomic.LoadUint64(&g.next) == numeric.MaxUint64 {
		panic(fmt.Sprintf("pip id generator exhausted at %s", numeric.MaxUint64Description))
	}
	return PipID(atomic.AddUint64(&g.next, 1))
}
