// Copyright 2026 ctflink. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package ctf

import (
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/ctflink/ctflink/internal/log"
)

// Kind identifies the shape of a Type. The real CTF format distinguishes
// many more encodings (bitfields, restrict qualifiers, forward
// declarations...); this engine only needs enough shape to detect
// structural conflicts and to let compound types reference their members,
// so it sticks to the handful of kinds a linker actually has to reason
// about.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindInteger
	KindFloat
	KindPointer
	KindArray
	KindFunction
	KindStruct
	KindUnion
	KindEnum
	KindTypedef
	KindVolatile
	KindConst
)

func (k Kind) String() string {
	names := [...]string{"unknown", "int", "float", "pointer", "array",
		"function", "struct", "union", "enum", "typedef", "volatile", "const"}
	if int(k) < len(names) {
		return names[k]
	}
	return "unknown"
}

// Member is one field of a struct or union type.
type Member struct {
	Name   string
	Type   TypeRef
	Offset uint32
}

// Type is the in-memory shape of one CTF type. Target is used by
// pointer/typedef/volatile/const (the pointee) and by array/function
// (the element/return type); Members is only meaningful for
// struct/union. ArraySize applies to KindArray only.
type Type struct {
	Name      string
	Kind      Kind
	Size      uint32
	Target    TypeRef
	Members   []Member
	ArraySize uint32
}

type nameKey struct {
	kind Kind
	name string
}

// namedEntry pairs a destination type index with a content hash of the
// type's structural signature, so AddType can reject most non-matches
// with a single xxhash comparison before falling back to the full
// signature string compare that actually decides conflict vs duplicate.
type namedEntry struct {
	index uint32
	hash  uint64
}

// Container is an in-memory CTF container: a type table, a variable
// table, a string-atom table, an optional external string table
// deduplicating against a host object's string section, an optional
// parent, a CU name, and (for link outputs) a type-mapping index. See
// spec's data model for the full description of these fields'
// semantics and lifecycles.
type Container struct {
	types   []Type
	byName  map[nameKey]namedEntry

	varOrder []string
	vars     map[string]TypeRef

	atomOrder []string
	atoms     map[string]uint32

	extStrings map[uint32]string

	parent *Container
	cuName string
	dirty  bool

	typeIndex *mappingTable

	lastErr error
}

// NewContainer creates an empty, writable container with no parent.
func NewContainer() *Container {
	log.Init()
	return &Container{}
}

// SetParent installs p as c's parent container. Per spec, every per-CU
// output container has the shared output as its parent, and no deeper
// nesting occurs in the merger's own use of this method -- but the field
// itself places no such restriction, since a caller-supplied shared
// output may already have a parent of its own (a nested link).
func (c *Container) SetParent(p *Container) { c.parent = p }

// Parent returns c's parent container, or nil if c is a root container.
func (c *Container) Parent() *Container { return c.parent }

// SetCUName records the compilation-unit name embedded in this
// container.
func (c *Container) SetCUName(name string) { c.cuName = name }

// CUName returns the compilation-unit name, if any.
func (c *Container) CUName() string { return c.cuName }

// Dirty reports whether c has type, variable, or string-table entries
// that have not yet been folded into final form by Update.
func (c *Container) Dirty() bool { return c.dirty }

// NumTypes returns the number of types local to c (not counting its
// parent's types).
func (c *Container) NumTypes() int { return len(c.types) }

// TypeAt returns the type at the given 1-based local index.
func (c *Container) TypeAt(index uint32) (Type, bool) {
	if index == 0 || int(index) > len(c.types) {
		return Type{}, false
	}
	return c.types[index-1], true
}

// resolve maps a TypeRef to the container and bare index it actually
// names, walking to the parent for a parent-scoped reference.
func (c *Container) resolve(ref TypeRef) (*Container, uint32) {
	if ref.IsParent() && c.parent != nil {
		return c.parent, ref.Index()
	}
	return c, ref.Index()
}

// DefineType appends a new type to c's own type table unconditionally,
// with no duplicate detection. This is how a source container (one that
// did not come through the link -- in the real system, decoded off a
// compilation unit's CTF section; here, built directly by a producer or
// a test) is populated; it is not part of the merger's add-type path,
// which always goes through AddType on the destination instead.
func (c *Container) DefineType(t Type) uint32 {
	c.types = append(c.types, t)
	idx := uint32(len(c.types))
	if t.Name != "" {
		c.rememberName(t.Name, t.Kind, idx)
	}
	c.dirty = true
	return idx
}

func (c *Container) rememberName(name string, kind Kind, idx uint32) {
	if c.byName == nil {
		c.byName = make(map[nameKey]namedEntry)
	}
	c.byName[nameKey{kind, name}] = namedEntry{index: idx, hash: c.hashSignature(idx)}
}

// signature renders a structural description of the type at idx,
// resolving any referenced types recursively (through this container or
// its parent) so that two structurally identical types compare equal
// even when their member/target indices differ numerically. visiting
// guards against the self-referential types real CTF allows (a struct
// containing a pointer to itself).
func (c *Container) signature(idx uint32, visiting map[*Container]map[uint32]bool) string {
	t, ok := c.TypeAt(idx)
	if !ok {
		return "?"
	}
	if visiting[c] == nil {
		visiting[c] = make(map[uint32]bool)
	}
	if visiting[c][idx] {
		return fmt.Sprintf("<cycle %s:%d>", t.Kind, idx)
	}
	visiting[c][idx] = true
	defer delete(visiting[c], idx)

	var b strings.Builder
	fmt.Fprintf(&b, "%s:%s:%d", t.Kind, t.Name, t.Size)
	if t.Kind == KindArray {
		fmt.Fprintf(&b, "[%d]", t.ArraySize)
	}
	if !t.Target.IsZero() {
		tc, ti := c.resolve(t.Target)
		b.WriteByte('>')
		b.WriteString(tc.signature(ti, visiting))
	}
	for _, m := range t.Members {
		mc, mi := c.resolve(m.Type)
		fmt.Fprintf(&b, "|%s@%d:%s", m.Name, m.Offset, mc.signature(mi, visiting))
	}
	return b.String()
}

func (c *Container) hashSignature(idx uint32) uint64 {
	return xxhash.Sum64String(c.signature(idx, map[*Container]map[uint32]bool{}))
}

// AddType is the collaborator operation spec calls "add a type from a
// source container to a destination container with duplicate
// detection": it adds the type at srcIdx in src to c, returning c's
// index for it.
//
// Named types dedupe against c's existing types of the same (Kind,
// Name): an xxhash content pre-check on the structural signature rules
// out most non-matches cheaply, and an exact signature compare decides
// the rest. A signature match returns the existing index (success, no
// new type created); a mismatch returns ErrConflict, which the merger
// treats as "fall back to a per-CU output" per spec's link-one-type
// protocol.
//
// Unnamed types are never deduplicated -- spec preserves this as a
// known, intentional limitation of the original rather than inventing
// improved semantics for it -- so they always append a fresh type and
// never conflict.
func (c *Container) AddType(src *Container, srcIdx uint32) (uint32, error) {
	t, ok := src.TypeAt(srcIdx)
	if !ok {
		return 0, &Error{Kind: KindFormat, Stage: "add type", Err: fmt.Errorf("source index %d out of range", srcIdx)}
	}

	if t.Name == "" {
		return c.translateAndAppend(t, src), nil
	}

	key := nameKey{t.Kind, t.Name}
	srcHash := src.hashSignature(srcIdx)
	if existing, found := c.byName[key]; found {
		if existing.hash == srcHash && c.signature(existing.index, map[*Container]map[uint32]bool{}) == src.signature(srcIdx, map[*Container]map[uint32]bool{}) {
			return existing.index, nil
		}
		return 0, ErrConflict
	}

	idx := c.translateAndAppend(t, src)
	if c.byName == nil {
		c.byName = make(map[nameKey]namedEntry)
	}
	c.byName[key] = namedEntry{index: idx, hash: srcHash}
	return idx, nil
}

// translateAndAppend copies t into c, remapping any Target/Member type
// references from src's index space into c's, via the type-mapping
// index (the referenced type must already have been added to c or an
// ancestor of c -- true for any well-ordered CU, where a compound type's
// members are only ever emitted after the types they reference).
func (c *Container) translateAndAppend(t Type, src *Container) uint32 {
	translated := t
	if !t.Target.IsZero() {
		translated.Target = c.translateRef(src, t.Target)
	}
	if len(t.Members) > 0 {
		translated.Members = make([]Member, len(t.Members))
		for i, m := range t.Members {
			translated.Members[i] = Member{Name: m.Name, Offset: m.Offset, Type: c.translateRef(src, m.Type)}
		}
	}
	c.types = append(c.types, translated)
	idx := uint32(len(c.types))
	c.dirty = true
	return idx
}

func (c *Container) translateRef(src *Container, ref TypeRef) TypeRef {
	refC, refIdx := src.resolve(ref)
	dstC, dstIdx, found := lookupMapping(refC, ChildType(refIdx), c)
	if !found {
		log.Warnf("ctf: could not translate type reference %s:%d while adding into %s; dropping to zero type",
			refC.cuName, refIdx, c.cuName)
		return ChildType(0)
	}
	if dstC == c {
		return ChildType(dstIdx)
	}
	return ParentType(dstIdx)
}

// VariableNames returns the names of variables defined directly in c, in
// the order they were added.
func (c *Container) VariableNames() []string {
	out := make([]string, len(c.varOrder))
	copy(out, c.varOrder)
	return out
}

// VariableType returns the type reference bound to name in c, if any.
func (c *Container) VariableType(name string) (TypeRef, bool) {
	ref, ok := c.vars[name]
	return ref, ok
}

// AddVariable binds name to ref in c. A second, differing binding for an
// already-bound name is rejected -- spec's tie-break: "a second
// assignment with a different type in the same container is disallowed
// by the underlying add operation."
func (c *Container) AddVariable(name string, ref TypeRef) error {
	if existing, ok := c.vars[name]; ok {
		if existing == ref {
			return nil
		}
		return &Error{Kind: KindFormat, Stage: "variable redefinition",
			Err: fmt.Errorf("variable %q already bound to a different type in %q", name, c.cuName)}
	}
	if c.vars == nil {
		c.vars = make(map[string]TypeRef)
	}
	c.vars[name] = ref
	c.varOrder = append(c.varOrder, name)
	c.dirty = true
	return nil
}

// AddExternalString records that s canonically lives at offset in the
// host's external string section, so CTF string references that match s
// resolve to offset instead of a fresh internal copy.
func (c *Container) AddExternalString(s string, offset uint32) {
	if c.extStrings == nil {
		c.extStrings = make(map[uint32]string)
	}
	c.extStrings[offset] = s
	c.dirty = true
}

// ExternalString returns the external string recorded at offset, if
// any.
func (c *Container) ExternalString(offset uint32) (string, bool) {
	s, ok := c.extStrings[offset]
	return s, ok
}

// internAtom assigns (or reuses) a small-integer offset for s in c's own
// string-atom table -- used by anything that needs to intern a string
// that is not one of the external strings added via AddExternalString.
func (c *Container) internAtom(s string) uint32 {
	if off, ok := c.atoms[s]; ok {
		return off
	}
	if c.atoms == nil {
		c.atoms = make(map[string]uint32)
	}
	off := uint32(len(c.atomOrder))
	c.atoms[s] = off
	c.atomOrder = append(c.atomOrder, s)
	c.dirty = true
	return off
}

// Update materializes c's dirty type/variable/string buffers into final
// form. In the full on-disk CTF format this recomputes the final byte
// layout and section offsets; decoding/encoding that format is out of
// this engine's scope (spec's non-goals), so here it is reduced to a
// consistency check (every variable's type reference must resolve) plus
// clearing the dirty flag. Type references held inside types (targets
// and struct/union members) are not checked.
func (c *Container) Update() error {
	for _, name := range c.varOrder {
		ref := c.vars[name]
		rc, ri := c.resolve(ref)
		if _, ok := rc.TypeAt(ri); !ok {
			err := &Error{Kind: KindFormat, Stage: "hash creation",
				Err: fmt.Errorf("variable %q refers to a missing type", name)}
			c.lastErr = err
			return err
		}
	}
	c.dirty = false
	return nil
}
