// Copyright 2026 ctflink. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package ctf

import (
	"strings"

	"github.com/ctflink/ctflink/internal/log"
)

// CTFMain is the reserved name of an archive's default member -- the
// "hereafter CTF_MAIN" constant of spec's data model.
const CTFMain = ".ctf"

// ShareMode selects the link's conflict-resolution policy. Only
// ShareUnconflicted is implemented; requesting ShareDuplicated is
// rejected with ErrNotImplemented before any state is touched.
type ShareMode int

const (
	ShareUnconflicted ShareMode = iota
	ShareDuplicated
)

// runMerge drives spec §4.2's merger across every archive registered on
// l, in registration order.
func (l *Link) runMerge() error {
	for _, name := range l.inputOrder {
		arc := l.inputs[name]
		if err := l.mergeArchive(name, arc); err != nil {
			return err
		}
	}
	return nil
}

// mergeArchive implements the per-input-archive procedure of spec
// §4.2: open CTF_MAIN, process it as the main member, then walk the
// remaining members in archive order, skipping CTF_MAIN itself the
// second time around.
func (l *Link) mergeArchive(inputName string, arc Archive) error {
	main, err := arc.Member(CTFMain)
	if err != nil {
		if isKind(err, KindMemberNotFound) {
			log.Warnf("ctf: archive %q has no %s member, skipping", inputName, CTFMain)
			return nil
		}
		return err
	}

	arcname := CTFMain + "." + inputName
	if err := l.mergeMember(main, arcname, arcname, false); err != nil {
		return err
	}

	for _, memberName := range arc.Members() {
		if memberName == CTFMain {
			continue
		}
		member, err := arc.Member(memberName)
		if err != nil {
			return err
		}
		member.SetParent(main)
		cuName := strings.TrimPrefix(memberName, CTFMain+".")
		if err := l.mergeMember(member, memberName, cuName, true); err != nil {
			return err
		}
	}
	return nil
}

// mergeMember implements spec's per-member procedure: every type, then
// every variable, of one archive member.
func (l *Link) mergeMember(member *Container, arcname, cuName string, inInputCUFile bool) error {
	for idx := uint32(1); idx <= uint32(member.NumTypes()); idx++ {
		if err := l.linkOneType(member, idx, arcname, cuName, inInputCUFile); err != nil {
			return err
		}
	}
	for _, name := range member.VariableNames() {
		ref, _ := member.VariableType(name)
		if err := l.linkOneVariable(member, name, ref, arcname); err != nil {
			return err
		}
	}
	return nil
}

// outputFor returns the per-CU output container for arcname, creating
// it on first use: a fresh writable container parented to the shared
// output, named cuName, inserted into the link's output set. Creating
// the first per-CU output is also what gates further AddInput calls
// (spec §5: "once the output set has been populated... no further input
// archive may be added").
func (l *Link) outputFor(arcname, cuName string) *Container {
	if out, ok := l.outputs[arcname]; ok {
		return out
	}
	out := NewContainer()
	out.SetParent(l.shared)
	out.SetCUName(cuName)
	if l.outputs == nil {
		l.outputs = make(map[string]*Container)
	}
	l.outputs[arcname] = out
	l.outputOrder = append(l.outputOrder, arcname)
	return out
}

// linkOneType implements spec §4.2.1. A main-member type is attempted
// directly against the shared output first; a conflict (not any other
// failure) falls through to the per-CU output for arcname, creating it
// if needed. A non-main-member type skips the shared attempt entirely
// and goes straight to its arcname's per-CU output.
func (l *Link) linkOneType(member *Container, idx uint32, arcname, cuName string, inInputCUFile bool) error {
	if !inInputCUFile {
		dstIdx, err := l.shared.AddType(member, idx)
		switch {
		case err == nil:
			recordMapping(member, ChildType(idx), l.shared, ChildType(dstIdx))
			return nil
		case isKind(err, KindConflict):
			// fall through to per-CU placement below
		default:
			return err
		}
	}

	out := l.outputFor(arcname, cuName)
	dstIdx, err := out.AddType(member, idx)
	if err != nil {
		// A conflict here is "should be impossible": a fresh per-CU
		// container never already holds a type under this name.
		return &Error{Kind: KindFormat, Stage: "per-CU type add", Err: err}
	}
	recordMapping(member, ChildType(idx), out, ChildType(dstIdx))
	return nil
}

// linkOneVariable implements spec §4.2.2. childHint is the per-CU
// output for arcname if one has been created (i.e. some type from this
// member already conflicted), or the shared output otherwise -- in
// either case, a single typemap Lookup against childHint both "probes
// the parent" and "resolves in the child" from spec's two-step
// description, because Lookup already falls back from a hint to the
// hint's parent on a miss.
func (l *Link) linkOneVariable(member *Container, name string, srcRef TypeRef, arcname string) error {
	childHint := l.shared
	if out, ok := l.outputs[arcname]; ok {
		childHint = out
	}

	dstC, dstIdx, found := lookupMapping(member, srcRef, childHint)
	if !found {
		return &Error{Kind: KindInvalidMapping}
	}

	ref := ChildType(dstIdx)
	if dstC != childHint {
		ref = ParentType(dstIdx)
	}

	if existing, ok := childHint.VariableType(name); ok {
		if existing == ref {
			return nil
		}
		if dstC != childHint {
			// A differing binding already exists here and the new
			// reference points into the parent: the existing binding
			// is kept and the variable treated as already present,
			// rather than surfacing a redefinition. The parent's own
			// variable table is not consulted.
			return nil
		}
	}
	return childHint.AddVariable(name, ref)
}
