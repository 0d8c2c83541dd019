// Copyright 2026 ctflink. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

// Package config loads ctflink's CLI configuration: the share-mode
// default, the archive-member compression threshold, and the output
// path, from flags, CTFLINK_-prefixed environment variables, and an
// optional ctflink.toml, in that priority order.
package config

import (
	"strings"

	"github.com/spf13/viper"
)

// Config is the resolved CLI configuration for one ctflink invocation.
type Config struct {
	ShareMode   string `mapstructure:"share_mode"`
	Threshold   uint32 `mapstructure:"threshold"`
	Output      string `mapstructure:"output"`
	Verbose     bool   `mapstructure:"verbose"`
}

// Load resolves a Config from Viper's merged view: flags bound via
// BindPFlag, then CTFLINK_* environment variables, then ctflink.toml in
// the working directory, then the defaults set here.
func Load(v *viper.Viper) (*Config, error) {
	v.SetDefault("share_mode", "unconflicted")
	v.SetDefault("threshold", uint32(4096))
	v.SetDefault("output", "out.ctfa")
	v.SetDefault("verbose", false)

	v.SetConfigName("ctflink")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // absent config file is not an error

	v.SetEnvPrefix("CTFLINK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, err
	}
	return &c, nil
}
