// Copyright 2026 ctflink. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package ctf

// TypeRef is a packed reference to a type: the top bit records whether the
// index is scoped to the referencing container's parent rather than the
// container itself, and the remaining bits hold a 1-based type index.
//
// A zero TypeRef never denotes a real type (CTF, like the COFF symbol
// tables saferwall/pe parses, reserves index 0 as "no type"/"no symbol").
type TypeRef uint32

const parentScopeBit = uint32(1) << 31

// ChildType builds a reference to a type local to the referencing
// container.
func ChildType(index uint32) TypeRef { return TypeRef(index &^ parentScopeBit) }

// ParentType builds a reference to a type in the referencing container's
// parent.
func ParentType(index uint32) TypeRef { return TypeRef(index&^parentScopeBit) | TypeRef(parentScopeBit) }

// IsParent reports whether the reference is scoped to the parent
// container.
func (r TypeRef) IsParent() bool { return uint32(r)&parentScopeBit != 0 }

// Index returns the bare, unscoped type index.
func (r TypeRef) Index() uint32 { return uint32(r) &^ parentScopeBit }

// IsZero reports whether the reference denotes no type at all.
func (r TypeRef) IsZero() bool { return r.Index() == 0 }
