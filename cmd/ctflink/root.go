// Copyright 2026 ctflink. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var vip = viper.New()

var rootCmd = &cobra.Command{
	Use:   "ctflink",
	Short: "Merge compact-type-format archives into one linked archive",
	Long: `ctflink merges the CTF containers carried by a set of per-compilation-unit
archives into a single output archive: a shared container holding every
type and variable binding that can be unified across inputs, plus one
per-CU container for whatever could not be.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().Bool("verbose", false, "enable debug logging")
	_ = vip.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
