// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

// Package logs wires the operational logger: a leveled text handler fanned
// out with a systemd journal handler when running as a service. Compiler
// diagnostics (file:line:col errors) do not go through here; they are part
// of the tool's output contract and print to stderr directly.
package logs

import (
	"io"
	"log/slog"
	"os"
	"path"
	"strings"

	slogmulti "github.com/samber/slog-multi"
	slogjournal "github.com/systemd/slog-journal"
)

var level = new(slog.LevelVar)

// SetLevel adjusts the level of every logger built by New.
func SetLevel(l slog.Level) {
	level.Set(l)
}

// New builds the operational logger writing to w.
func New(w io.Writer) *slog.Logger {
	var handlers []slog.Handler

	// Under a systemd service, terminal output would just duplicate the
	// journal.
	if !runningUnderSystemd() {
		handlers = append(handlers, slog.NewTextHandler(
			w,
			&slog.HandlerOptions{
				Level: level,
			},
		))
	}

	journalHandler, err := slogjournal.NewHandler(&slogjournal.Options{
		ReplaceGroup: func(key string) string {
			return journalKey(key)
		},
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			a.Key = journalKey(a.Key)
			return a
		},
	})
	if err == nil {
		handlers = append(handlers, journalHandler)
	}

	return slog.New(slogmulti.Fanout(handlers...))
}

// journalKey rewrites an attribute key to the journal's field constraints:
// uppercase letters, digits, and underscores only.
func journalKey(key string) string {
	var sb strings.Builder
	for _, r := range strings.ToUpper(key) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			sb.WriteRune(r)
		} else {
			sb.WriteByte('_')
		}
	}
	return sb.String()
}

// runningUnderSystemd reports whether the process lives in a systemd
// service cgroup.
func runningUnderSystemd() bool {
	contents, err := os.ReadFile("/proc/self/cgroup")
	if err != nil {
		return false
	}
	for _, line := range strings.Split(strings.TrimSpace(string(contents)), "\n") {
		fields := strings.SplitN(line, ":", 3)
		if len(fields) != 3 {
			continue
		}
		if strings.HasSuffix(path.Dir(fields[2]), ".service") {
			return true
		}
	}
	return false
}
