// Copyright 2026 ctflink. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package ctf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildArchive wires up main (the CTFMain member) plus any number of
// named CU members, parenting each CU member to main the way a real
// archive reader would.
func buildArchive(main *Container, cus map[string]*Container) *MemArchive {
	arc := NewMemArchive()
	arc.AddMember(CTFMain, main)
	for name, c := range cus {
		c.SetParent(main)
		arc.AddMember(name, c)
	}
	return arc
}

func TestLinkIdenticalMainsDedupeIntoShared(t *testing.T) {
	mkMain := func() *Container {
		m := NewContainer()
		m.DefineType(Type{Name: "int", Kind: KindInteger, Size: 4})
		return m
	}
	a1 := buildArchive(mkMain(), nil)
	a2 := buildArchive(mkMain(), nil)

	shared := NewContainer()
	l := NewLink(shared)
	require.NoError(t, l.AddInput("a", a1))
	require.NoError(t, l.AddInput("b", a2))
	require.NoError(t, l.Link(ShareUnconflicted))

	assert.Equal(t, 1, shared.NumTypes(), "identical named types across inputs dedupe to one")
	assert.Empty(t, l.Outputs(), "no conflict means no per-CU output is ever created")
}

func TestLinkConflictingMainFallsBackToPerCUOutput(t *testing.T) {
	m1 := NewContainer()
	m1.DefineType(Type{Name: "widget", Kind: KindStruct, Size: 4})
	m2 := NewContainer()
	m2.DefineType(Type{Name: "widget", Kind: KindStruct, Size: 8})

	a1 := buildArchive(m1, nil)
	a2 := buildArchive(m2, nil)

	shared := NewContainer()
	l := NewLink(shared)
	require.NoError(t, l.AddInput("a", a1))
	require.NoError(t, l.AddInput("b", a2))
	require.NoError(t, l.Link(ShareUnconflicted))

	assert.Equal(t, 1, shared.NumTypes(), "the first input's type wins the shared slot")
	require.Len(t, l.Outputs(), 1, "the conflicting input gets its own per-CU output")

	out, ok := l.Output(l.Outputs()[0])
	require.True(t, ok)
	require.Equal(t, 1, out.NumTypes())
	got, _ := out.TypeAt(1)
	assert.Equal(t, uint32(8), got.Size)
	assert.Same(t, shared, out.Parent())
}

func TestLinkVariableBoundInSharedIsVisibleToPerCUOutput(t *testing.T) {
	main := NewContainer()
	main.DefineType(Type{Name: "int", Kind: KindInteger, Size: 4})
	main.AddVariable("g_count", ChildType(1))

	// A second input forces a conflict so a per-CU output exists, giving
	// something to assert the variable resolves through.
	conflicting := NewContainer()
	conflicting.DefineType(Type{Name: "int", Kind: KindInteger, Size: 8})

	a1 := buildArchive(main, nil)
	a2 := buildArchive(conflicting, nil)

	shared := NewContainer()
	l := NewLink(shared)
	require.NoError(t, l.AddInput("a", a1))
	require.NoError(t, l.AddInput("b", a2))
	require.NoError(t, l.Link(ShareUnconflicted))

	ref, ok := shared.VariableType("g_count")
	require.True(t, ok)
	assert.False(t, ref.IsParent())

	out, ok := l.Output(l.Outputs()[0])
	require.True(t, ok)
	_, inCU := out.VariableType("g_count")
	assert.False(t, inCU, "the binding lives in shared only, not duplicated into the per-CU output")
	rc, ri := out.resolve(ParentType(ref.Index()))
	assert.Same(t, shared, rc)
	got, ok := rc.TypeAt(ri)
	require.True(t, ok)
	assert.Equal(t, uint32(4), got.Size, "resolved from the per-CU output through its parent")
}

func TestAddInputAfterOutputsExistIsRejected(t *testing.T) {
	main := NewContainer()
	main.DefineType(Type{Name: "widget", Kind: KindStruct, Size: 4})
	other := NewContainer()
	other.DefineType(Type{Name: "widget", Kind: KindStruct, Size: 8})

	shared := NewContainer()
	l := NewLink(shared)
	require.NoError(t, l.AddInput("a", buildArchive(main, nil)))
	require.NoError(t, l.AddInput("b", buildArchive(other, nil)))
	require.NoError(t, l.Link(ShareUnconflicted))
	require.NotEmpty(t, l.Outputs())

	err := l.AddInput("c", buildArchive(NewContainer(), nil))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrLateAdd)
}

func TestLinkShareDuplicatedIsRejectedWithoutMutation(t *testing.T) {
	main := NewContainer()
	main.DefineType(Type{Name: "int", Kind: KindInteger, Size: 4})

	shared := NewContainer()
	l := NewLink(shared)
	require.NoError(t, l.AddInput("a", buildArchive(main, nil)))

	err := l.Link(ShareDuplicated)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotImplemented)
	assert.Equal(t, 0, shared.NumTypes(), "a rejected Link call must not touch shared state")
	assert.Empty(t, l.Outputs())
}

func TestMergeArchiveSkipsMissingMainMember(t *testing.T) {
	arc := NewMemArchive()
	cu := NewContainer()
	cu.DefineType(Type{Name: "int", Kind: KindInteger, Size: 4})
	arc.AddMember("cu1", cu)

	shared := NewContainer()
	l := NewLink(shared)
	require.NoError(t, l.AddInput("a", arc))
	require.NoError(t, l.Link(ShareUnconflicted), "a missing CTFMain member is skipped, not an error")
	assert.Equal(t, 0, shared.NumTypes())
}
