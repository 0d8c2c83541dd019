// Copyright 2026 ctflink. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package ctf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddStrtabInternsIntoSharedAndPerCUOutputs(t *testing.T) {
	m1 := NewContainer()
	m1.DefineType(Type{Name: "widget", Kind: KindStruct, Size: 4})
	m2 := NewContainer()
	m2.DefineType(Type{Name: "widget", Kind: KindStruct, Size: 8})

	shared := NewContainer()
	l := NewLink(shared)
	require.NoError(t, l.AddInput("a", buildArchive(m1, nil)))
	require.NoError(t, l.AddInput("b", buildArchive(m2, nil)))
	require.NoError(t, l.Link(ShareUnconflicted))
	require.NotEmpty(t, l.Outputs(), "precondition: a per-CU output must exist to check fan-out")

	pairs := []struct {
		s   string
		off uint32
	}{
		{"foo.c", 16},
		{"bar.c", 32},
	}
	i := 0
	require.NoError(t, l.AddStrtab(func() (string, uint32, bool) {
		if i >= len(pairs) {
			return "", 0, false
		}
		p := pairs[i]
		i++
		return p.s, p.off, true
	}))

	s, ok := shared.ExternalString(16)
	require.True(t, ok)
	assert.Equal(t, "foo.c", s)

	out, _ := l.Output(l.Outputs()[0])
	s, ok = out.ExternalString(32)
	require.True(t, ok, "strings added after Link must fan out to per-CU outputs too")
	assert.Equal(t, "bar.c", s)
}

func TestAddStrtabEmptyProducerIsNoOp(t *testing.T) {
	shared := NewContainer()
	l := NewLink(shared)
	require.NoError(t, l.AddStrtab(func() (string, uint32, bool) { return "", 0, false }))
	_, ok := shared.ExternalString(0)
	assert.False(t, ok)
}
