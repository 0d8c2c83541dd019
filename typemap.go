// Copyright 2026 ctflink. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package ctf

import "sync"

// mapKey is the normalized (source container, bare type index) pair a
// mappingTable is keyed by. Containers compare by identity; a plain Go
// map already hashes and equates a pointer-valued struct field
// correctly, which is exactly spec's design note: "provide a structural
// hash and equality over that pair without pointer arithmetic
// assumptions" -- no pointer subtraction or ordering is ever done, only
// identity comparison, which is what map[mapKey]mapEntry gives for
// free.
type mapKey struct {
	container *Container
	index     uint32
}

type mapEntry struct {
	container *Container
	index     uint32
}

// mappingTable is the per-destination-container type-mapping index of
// spec §4.1: "Record, for each destination container, which source
// (input container, type index) pairs are now represented by which
// destination type index." Every output Container lazily allocates one
// the first time a type is recorded into it.
type mappingTable struct {
	mu sync.Mutex
	m  map[mapKey]mapEntry
	// cap bounds the table to model spec's tolerated allocation
	// failure: "On allocation failure, silently drop the mapping...
	// correctness is preserved, only deduplication degrades." Go maps
	// do not fail allocation the way the original implementation's
	// malloc could; this cap is the closest honest analogue -- past
	// it, Record becomes a deliberate no-op instead of growing
	// unboundedly.
	cap int
}

// defaultMappingCapacity bounds a single container's type-mapping table.
// It is large enough that no realistic link exhausts it; it exists to
// give the "allocation failure is tolerated" rationale a concrete,
// testable behavior.
const defaultMappingCapacity = 1 << 20

func newMappingTable() *mappingTable {
	return &mappingTable{m: make(map[mapKey]mapEntry), cap: defaultMappingCapacity}
}

// normalizeMappingKey walks a (container, type reference) pair to the
// parent when the reference is parent-scoped, then reduces it to a bare
// index -- spec §4.1's Record/Lookup normalization step, shared by both.
func normalizeMappingKey(c *Container, ref TypeRef) (*Container, uint32) {
	return c.resolve(ref)
}

// recordMapping implements the type-mapping index's Record operation.
func recordMapping(srcC *Container, srcRef TypeRef, dstC *Container, dstRef TypeRef) {
	ns, ni := normalizeMappingKey(srcC, srcRef)
	nd, di := normalizeMappingKey(dstC, dstRef)

	if nd.typeIndex == nil {
		nd.typeIndex = newMappingTable()
	}
	tbl := nd.typeIndex

	tbl.mu.Lock()
	defer tbl.mu.Unlock()
	key := mapKey{ns, ni}
	if _, exists := tbl.m[key]; !exists && len(tbl.m) >= tbl.cap {
		// Allocation failure tolerated: drop the mapping. A later
		// duplicate type add will simply redo the work.
		return
	}
	tbl.m[key] = mapEntry{nd, di}
}

// lookupMapping implements the type-mapping index's Lookup operation:
// normalize src, try dstHint's own table, and on a miss retry in
// dstHint's parent (if any). Returns the container the mapping was
// actually found in and the bare destination index.
func lookupMapping(srcC *Container, srcRef TypeRef, dstHint *Container) (*Container, uint32, bool) {
	ns, ni := normalizeMappingKey(srcC, srcRef)
	key := mapKey{ns, ni}
	for hint := dstHint; hint != nil; hint = hint.parent {
		if hint.typeIndex != nil {
			hint.typeIndex.mu.Lock()
			e, found := hint.typeIndex.m[key]
			hint.typeIndex.mu.Unlock()
			if found {
				return e.container, e.index, true
			}
		}
	}
	return nil, 0, false
}
