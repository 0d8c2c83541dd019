// Copyright 2026 ctflink. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package ctf

// StringProducer is the pull-style producer contract of spec §4.3: each
// call returns either a (string content, external offset) pair and true,
// or ("", 0, false) at end of stream. Implementations are invoked
// synchronously and must not call back into the engine.
type StringProducer func() (s string, offset uint32, ok bool)

// internStrings implements spec §4.3: every pair the producer yields is
// added to the shared output's external table and fanned out to every
// per-CU output that exists at the time of the call. Per-CU outputs
// created after the call (by a later Link) do not receive the strings,
// so every output learns them only when AddStrtab runs after Link and
// before Write; nothing in Link checks that ordering.
func (l *Link) internStrings(next StringProducer) {
	for {
		s, offset, ok := next()
		if !ok {
			return
		}
		l.shared.AddExternalString(s, offset)
		for _, out := range l.outputs {
			out.AddExternalString(s, offset)
		}
	}
}
