// Package label defines the two kinds of globally unique handle the rest
// of deadval is built on: Label, assigned to every expression and
// module-expression occurrence, and Id, assigned to every bound name.
//
// Both are opaque comparable values so they can be used directly as map
// keys throughout internal/closure, internal/liveness and internal/depgraph.
package label

import "sync/atomic"

// Label is a globally unique handle for one occurrence of an expression
// or module-expression in the program being analyzed. Labels come from a
// run's shared Allocator: internal/preprocess takes one per node, and
// deadval.Analyze takes one more for the exception-flow node. They are
// immutable once handed out.
type Label struct {
	n uint64
}

// Valid reports whether l was returned by an Allocator (the zero Label
// is never produced by one).
func (l Label) Valid() bool { return l.n != 0 }

func (l Label) String() string {
	if !l.Valid() {
		return "L<invalid>"
	}
	return "L" + itoa(l.n)
}

// Allocator hands out fresh, process-wide unique Labels. The zero value
// is ready to use. Safe for concurrent use: internal/preprocess may run
// one goroutine per compilation unit (see config.Config.Parallel), and
// all goroutines share a single Allocator so labels never collide across
// units.
type Allocator struct {
	next atomic.Uint64
}

// New returns a fresh Label distinct from every Label previously
// returned by a.
func (a *Allocator) New() Label {
	return Label{n: a.next.Add(1)}
}

// Id is a bound-name identifier: a pair of the defining compilation
// unit's name and a stamp unique within that unit. Top-level module
// identifiers are additionally globally unique because Module is the
// full module path, not just its unqualified last component.
type Id struct {
	Module string
	Stamp  uint64
}

// Valid reports whether id was produced by an IdAllocator (or
// Synthesize); the zero Id is never one of those.
func (id Id) Valid() bool { return id.Stamp != 0 }

func (id Id) String() string {
	if !id.Valid() {
		return "Id<invalid>"
	}
	return id.Module + "#" + itoa(id.Stamp)
}

// IdAllocator hands out fresh Ids scoped to one compilation unit, for
// code that builds Ids without an artifact. The Ids of a loaded unit
// are not allocated here: artifact.Load builds each from the stamp its
// artifact carries.
type IdAllocator struct {
	module string
	next   uint64
}

// NewIdAllocator returns an allocator for the named compilation unit.
func NewIdAllocator(module string) *IdAllocator {
	return &IdAllocator{module: module}
}

// New returns a fresh Id local to this allocator's compilation unit.
func (a *IdAllocator) New() Id {
	a.next++
	return Id{Module: a.module, Stamp: a.next}
}

// Synthesize deterministically derives an Id for an external top-level
// module member that the current program never defines (e.g. a name
// imported from a module outside the analyzed set). Synthesized Ids are
// stable across runs for the same (module, name) pair because external
// symbols have no numeric stamp to assign — the name itself is the key.
func Synthesize(module, name string) Id {
	return Id{Module: module, Stamp: hashName(name)}
}

// SyntheticId derives an Id for a binding that has no source-level
// declaration of its own — a Fun node's implicit formal parameter — from
// the Label of the node that introduces it. Distinct Labels always yield
// distinct Ids; the high bit keeps synthetic stamps out of the range a
// real IdAllocator (which counts up from 1) could ever produce.
func (l Label) SyntheticId(module string) Id {
	return Id{Module: module, Stamp: l.n | (1 << 63)}
}

func hashName(s string) uint64 {
	// FNV-1a, 64-bit. Deterministic and collision-resistant enough for
	// a handful of externally-visible names per foreign module.
	const (
		offset64 = 14695981039346656037
		prime64  = 1099511628211
	)
	h := uint64(offset64)
	for i := 0; i < len(s); i++ {
		h ^= uint64(s[i])
		h *= prime64
	}
	if h == 0 {
		h = 1 // keep Valid() meaningful
	}
	return h
}

func itoa(n uint64) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}
