// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

// Command sxc transpiles parenthesized s-expression source into C/C++
// source and header files.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"nickandperla.net/sxc/internal/logs"
	"nickandperla.net/sxc/pkg/sxc"
)

func main() {
	var (
		cachePath   = flag.String("cache", "sxc-cache.db", "SQLite artifact cache path")
		configFiles = flag.String("config", "", "Comma-separated CUE config files")
		outputDir   = flag.String("output-dir", ".", "Directory for generated and built artifacts")
		doBuild     = flag.Bool("build", false, "Build the generated output with the configured toolchain")
		verbose     = flag.Bool("verbose", false, "Enable debug logging")
	)

	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Need to provide a file to parse")
		os.Exit(1)
	}
	filename := flag.Arg(0)

	if *verbose {
		logs.SetLevel(slog.LevelDebug)
	} else {
		logs.SetLevel(slog.LevelWarn)
	}
	logger := logs.New(os.Stderr)

	opts := []sxc.Option{
		sxc.WithSQLiteCache(*cachePath),
		sxc.WithOutputDir(*outputDir),
		sxc.WithLogger(logger),
	}
	if *configFiles != "" {
		opts = append(opts, sxc.WithConfigFiles(strings.Split(*configFiles, ",")...))
	}

	runtime, err := sxc.New(opts...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer runtime.Close()

	// Diagnostics print to stderr as they occur; the error here carries the
	// count.
	if err := runtime.TranspileFile(filename); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if *doBuild {
		builtOutputs, err := runtime.Build()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		for _, built := range builtOutputs {
			fmt.Println(built)
		}
	}
}
