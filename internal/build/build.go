// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

// Package build models external toolchain commands, runs them to
// completion, and computes the command CRCs the artifact cache compares.
package build

import (
	"fmt"
	"hash/crc32"
	"log/slog"
	"os/exec"
	"strings"
)

// ProcessCommand is one external toolchain invocation. Arguments may
// contain substitution keys of the form {name}, filled at run time with
// e.g. {source}, {object}, {executable}.
type ProcessCommand struct {
	Executable string
	Arguments  []string
}

// IsSet reports whether the command has an executable configured.
func (c ProcessCommand) IsSet() bool {
	return c.Executable != ""
}

// Resolve substitutes {key} arguments from subs. An argument that is
// exactly a key expanding to the empty string is dropped; multi-valued
// keys (space-separated) expand to multiple arguments.
func (c ProcessCommand) Resolve(subs map[string]string) []string {
	resolved := make([]string, 0, len(c.Arguments))
	for _, arg := range c.Arguments {
		if strings.HasPrefix(arg, "{") && strings.HasSuffix(arg, "}") {
			value, ok := subs[arg[1:len(arg)-1]]
			if !ok {
				resolved = append(resolved, arg)
				continue
			}
			if value == "" {
				continue
			}
			resolved = append(resolved, strings.Fields(value)...)
			continue
		}
		resolved = append(resolved, arg)
	}
	return resolved
}

// CommandLine renders the exact command line string that CommandCrc hashes.
func CommandLine(executable string, arguments []string) string {
	return executable + " " + strings.Join(arguments, " ")
}

// CommandCrc computes the CRC-32 of the exact command used to produce an
// artifact. A mismatch against the cached value forces a rebuild, so
// changing commands invalidates old artifacts.
func CommandCrc(executable string, arguments []string) uint32 {
	return crc32.ChecksumIEEE([]byte(CommandLine(executable, arguments)))
}

// RunProcess runs one command to completion, synchronously. Cancellation
// mid-build is not supported. Output goes to the process's combined
// output; failures include it.
func RunProcess(logger *slog.Logger, executable string, arguments []string) error {
	logger.Info("running", "command", CommandLine(executable, arguments))
	cmd := exec.Command(executable, arguments...)
	combined, err := cmd.CombinedOutput()
	if len(combined) > 0 {
		logger.Info("process output", "command", executable, "output", string(combined))
	}
	if err != nil {
		return fmt.Errorf("%s failed: %w", CommandLine(executable, arguments), err)
	}
	return nil
}

// DefaultBuildCommand compiles one translation unit.
func DefaultBuildCommand() ProcessCommand {
	return ProcessCommand{
		Executable: "g++",
		Arguments:  []string{"-c", "{source}", "-o", "{object}"},
	}
}

// DefaultLinkCommand links built objects into an executable.
func DefaultLinkCommand() ProcessCommand {
	return ProcessCommand{
		Executable: "g++",
		Arguments:  []string{"{objects}", "-o", "{executable}"},
	}
}
