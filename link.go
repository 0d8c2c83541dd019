// Copyright 2026 ctflink. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package ctf

import "github.com/ctflink/ctflink/internal/log"

// Link is the link engine instance spec's programmatic surface (§6)
// operates on: a caller-owned, writable shared output container plus
// the registered input archives and the per-CU outputs created while
// merging them.
type Link struct {
	shared *Container

	inputs     map[string]Archive
	inputOrder []string

	outputs     map[string]*Container
	outputOrder []string

	linked bool
}

// NewLink creates a link engine around shared, the caller-owned output
// container that becomes the default archive member and the parent of
// every per-CU output.
func NewLink(shared *Container) *Link {
	log.Init()
	return &Link{shared: shared}
}

// Shared returns the engine's shared output container.
func (l *Link) Shared() *Container { return l.shared }

// Outputs returns the CU-member names of the per-CU output containers
// created so far, in creation order.
func (l *Link) Outputs() []string {
	out := make([]string, len(l.outputOrder))
	copy(out, l.outputOrder)
	return out
}

// Output returns the per-CU output container for cuMemberName, if one
// has been created.
func (l *Link) Output(cuMemberName string) (*Container, bool) {
	c, ok := l.outputs[cuMemberName]
	return c, ok
}

// AddInput registers an input archive under a unique name. Per spec
// §5's ordering invariant, once the output set has been populated (the
// first per-CU container created by a prior Link call), further
// AddInput calls are rejected with ErrLateAdd and leave state
// unchanged.
func (l *Link) AddInput(name string, archive Archive) error {
	if len(l.outputs) > 0 {
		return ErrLateAdd
	}
	if l.inputs == nil {
		l.inputs = make(map[string]Archive)
	}
	if _, exists := l.inputs[name]; !exists {
		l.inputOrder = append(l.inputOrder, name)
	}
	l.inputs[name] = archive
	return nil
}

// Link runs the merger across every registered input archive.
// ShareDuplicated is rejected immediately, before any input is touched,
// per spec §8: "Requesting share-duplicated mode returns
// not-yet-implemented without mutating state."
func (l *Link) Link(mode ShareMode) error {
	if mode == ShareDuplicated {
		return ErrNotImplemented
	}
	if err := l.runMerge(); err != nil {
		return err
	}
	l.linked = true
	return nil
}

// AddStrtab interns the producer's external strings into the shared
// output and every per-CU output that exists at call time. It may be
// called before or after Link, but per-CU outputs that a later Link
// creates do not receive strings interned earlier; calling it after
// Link and before Write reaches every output.
func (l *Link) AddStrtab(next StringProducer) error {
	l.internStrings(next)
	return nil
}

// ShuffleSyms is reserved in the surface contract and is intentionally
// a no-op (spec §9: the symbol-shuffled function/data section producer
// is explicitly out of scope; the entry point exists as a stub).
func (l *Link) ShuffleSyms(_ func() (name string, ok bool)) error {
	return nil
}

// Write finalizes every output container and emits the archive buffer.
// With no per-CU outputs, the shared container alone is emitted as a
// single-member archive; otherwise the shared output is emitted first
// under CTFMain, followed by each per-CU output under its CU-member
// name.
func (l *Link) Write(threshold uint32) ([]byte, error) {
	return l.WriteWith(DefaultArchiveWriter(threshold))
}

// WriteWith is Write, but with an explicit ArchiveWriter collaborator
// instead of the in-pack default -- the hook a real ELF/BFD-backed
// writer would plug into.
func (l *Link) WriteWith(writer ArchiveWriter) ([]byte, error) {
	if err := l.shared.Update(); err != nil {
		return nil, err
	}
	sharedBytes, err := l.shared.MarshalBinary()
	if err != nil {
		return nil, err
	}
	members := []ArMember{{Name: CTFMain, Data: sharedBytes}}

	for _, name := range l.outputOrder {
		out := l.outputs[name]
		if err := out.Update(); err != nil {
			return nil, err
		}
		b, err := out.MarshalBinary()
		if err != nil {
			return nil, err
		}
		members = append(members, ArMember{Name: name, Data: b})
	}

	buf, err := writer.Write(members)
	if err != nil {
		wrapped := &Error{Kind: KindFormat, Stage: "archive writing", Err: err}
		l.shared.lastErr = wrapped
		return nil, wrapped
	}
	return buf, nil
}
