// Copyright 2026 ctflink. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"

	"github.com/edsrzf/mmap-go"
	"github.com/spf13/cobra"

	ctf "github.com/ctflink/ctflink"
	"github.com/ctflink/ctflink/internal/config"
	"github.com/ctflink/ctflink/internal/log"
)

var linkCmd = &cobra.Command{
	Use:   "link",
	Short: "Merge input archives and write the linked output archive",
	Example: `  ctflink link --input a.ctfa --input b.ctfa --output out.ctfa
  ctflink link -i a.ctfa -i b.ctfa --share-mode unconflicted`,
	RunE: runLink,
}

func init() {
	rootCmd.AddCommand(linkCmd)
	linkCmd.Flags().StringArrayP("input", "i", nil, "input archive path (repeatable)")
	linkCmd.Flags().String("output", "", "output archive path")
	linkCmd.Flags().String("share-mode", "", "conflict-resolution policy: unconflicted (default) or duplicated")
	linkCmd.Flags().Uint32("threshold", 0, "per-member compression threshold in bytes")

	_ = vip.BindPFlag("output", linkCmd.Flags().Lookup("output"))
	_ = vip.BindPFlag("share_mode", linkCmd.Flags().Lookup("share-mode"))
	_ = vip.BindPFlag("threshold", linkCmd.Flags().Lookup("threshold"))
}

// openArchive mmaps path read-only and decodes it as a ctflink archive.
// The mmap handle is the CLI's stand-in for the out-of-scope "open this
// archive via the object-format reader" step spec leaves to the caller.
func openArchive(path string) (ctf.Archive, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		return nil, err
	}
	defer m.Unmap()

	buf := make([]byte, len(m))
	copy(buf, m)

	return ctf.ReadArchive(buf)
}

func runLink(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(vip)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	log.SetDebug(cfg.Verbose)

	inputs, err := cmd.Flags().GetStringArray("input")
	if err != nil {
		return err
	}
	if len(inputs) == 0 {
		return fmt.Errorf("at least one --input archive is required")
	}

	mode := ctf.ShareUnconflicted
	if cfg.ShareMode == "duplicated" {
		mode = ctf.ShareDuplicated
	}

	shared := ctf.NewContainer()
	l := ctf.NewLink(shared)

	for _, path := range inputs {
		arc, err := openArchive(path)
		if err != nil {
			return fmt.Errorf("opening %s: %w", path, err)
		}
		if err := l.AddInput(path, arc); err != nil {
			return fmt.Errorf("registering %s: %w", path, err)
		}
	}

	if err := l.Link(mode); err != nil {
		return fmt.Errorf("linking: %w", err)
	}

	buf, err := l.Write(cfg.Threshold)
	if err != nil {
		return fmt.Errorf("writing archive: %w", err)
	}

	if err := os.WriteFile(cfg.Output, buf, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", cfg.Output, err)
	}

	log.Debugf("ctflink: wrote %s (%d bytes, %d per-CU outputs)", cfg.Output, len(buf), len(l.Outputs()))
	return nil
}
