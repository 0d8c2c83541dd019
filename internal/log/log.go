// Copyright 2026 ctflink. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

// Package log provides the process-wide debug-print toggle spec calls
// for: "There is a process-wide debug-print toggle driven by the debug
// initialization routine; it is initialized lazily on first open. Model
// it as a process-scoped state with idempotent initialization."
package log

import (
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	once   sync.Once
	logger *logrus.Logger
)

// Init performs the lazy, idempotent process-wide setup. It is safe to
// call from every container/link entry point (NewContainer, NewLink,
// ...); only the first call has any effect.
func Init() {
	once.Do(func() {
		logger = logrus.New()
		logger.SetLevel(logrus.WarnLevel)
	})
}

// SetDebug flips the process-wide debug toggle. Once set, internal
// Warnf/Debugf calls made by the link engine are emitted at debug
// level and above.
func SetDebug(on bool) {
	Init()
	if on {
		logger.SetLevel(logrus.DebugLevel)
	} else {
		logger.SetLevel(logrus.WarnLevel)
	}
}

// Warnf logs a warning-level diagnostic -- used for the "logged and
// skipped"/"logged and continue" paths spec's error-handling design
// names (member-not-found, dropped type-reference translations, ...).
func Warnf(format string, args ...any) {
	Init()
	logger.Warnf(format, args...)
}

// Debugf logs a debug-level diagnostic, visible only once SetDebug(true)
// has been called.
func Debugf(format string, args ...any) {
	Init()
	logger.Debugf(format, args...)
}
