// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package scenery

import (
	"log/slog"

	"github.com/gogpu/scenery/internal/logging"
)

// SetLogger configures the logger for scenery and all its sub-packages.
// By default, scenery produces no log output. Pass nil to restore the
// silent default.
//
// SetLogger is safe for concurrent use.
//
// Log levels used by scenery:
//   - [slog.LevelDebug]: per-frame diagnostics (scene states, uploads)
//   - [slog.LevelInfo]: lifecycle and routing (displays, subscriptions)
//   - [slog.LevelWarn]: advisory diagnostics (stuck display, broken binary shader)
//   - [slog.LevelError]: routing failures and resources that cannot be loaded
//
// Example:
//
//	scenery.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	})))
func SetLogger(l *slog.Logger) {
	logging.Set(l)
}

// Logger returns the current logger used by scenery.
func Logger() *slog.Logger {
	return logging.Logger()
}
