// Copyright 2026 ctflink. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

// Command ctflink drives the link engine from the command line: read
// one or more input archives, merge them under a share mode, and write
// the merged archive. It does not intern an external string table.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "ctflink:", err)
		os.Exit(1)
	}
}
