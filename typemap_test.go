// Copyright 2026 ctflink. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package ctf

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRecordAndLookupMapping(t *testing.T) {
	src := NewContainer()
	dst := NewContainer()

	recordMapping(src, ChildType(3), dst, ChildType(7))

	foundC, foundIdx, ok := lookupMapping(src, ChildType(3), dst)
	assert.True(t, ok)
	assert.Same(t, dst, foundC)
	assert.Equal(t, uint32(7), foundIdx)
}

func TestLookupMappingMissReturnsFalse(t *testing.T) {
	src := NewContainer()
	dst := NewContainer()

	_, _, ok := lookupMapping(src, ChildType(1), dst)
	assert.False(t, ok)
}

func TestLookupMappingFallsBackToParent(t *testing.T) {
	src := NewContainer()
	parent := NewContainer()
	child := NewContainer()
	child.SetParent(parent)

	recordMapping(src, ChildType(2), parent, ChildType(9))

	foundC, foundIdx, ok := lookupMapping(src, ChildType(2), child)
	assert.True(t, ok, "a miss in child's own table must retry in its parent")
	assert.Same(t, parent, foundC)
	assert.Equal(t, uint32(9), foundIdx)
}

func TestRecordMappingNormalizesParentScopedKeys(t *testing.T) {
	srcParent := NewContainer()
	srcChild := NewContainer()
	srcChild.SetParent(srcParent)
	dst := NewContainer()

	recordMapping(srcChild, ParentType(4), dst, ChildType(11))

	// Looking the mapping up via the child with a parent-scoped ref, or
	// directly via the parent with a bare ref, must resolve identically:
	// both normalize to the same (srcParent, 4) key.
	_, idx1, ok1 := lookupMapping(srcChild, ParentType(4), dst)
	_, idx2, ok2 := lookupMapping(srcParent, ChildType(4), dst)
	assert.True(t, ok1)
	assert.True(t, ok2)
	assert.Equal(t, idx1, idx2)
}

func TestMappingTableCapacityToleratesOverflow(t *testing.T) {
	dst := NewContainer()
	dst.typeIndex = &mappingTable{m: make(map[mapKey]mapEntry), cap: 1}

	src1 := NewContainer()
	src2 := NewContainer()

	recordMapping(src1, ChildType(1), dst, ChildType(1))
	// Table is now at capacity; a second, distinct key is silently
	// dropped rather than growing past cap.
	recordMapping(src2, ChildType(1), dst, ChildType(2))

	_, _, ok := lookupMapping(src1, ChildType(1), dst)
	assert.True(t, ok, "the first recorded mapping survives")

	_, _, ok = lookupMapping(src2, ChildType(1), dst)
	assert.False(t, ok, "a mapping past capacity is dropped, not recorded")
}
