// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

package store

import (
	"os"
	"testing"
)

func TestMemoryStore(t *testing.T) {
	s := NewMemory()
	defer s.Close()

	// Test SetCommandCrc and CommandCrc
	if err := s.SetCommandCrc("out/foo.o", 0xdeadbeef); err != nil {
		t.Fatalf("SetCommandCrc failed: %v", err)
	}

	crc, ok, err := s.CommandCrc("out/foo.o")
	if err != nil {
		t.Fatalf("CommandCrc failed: %v", err)
	}
	if !ok || crc != 0xdeadbeef {
		t.Errorf("expected 0xdeadbeef, got %#x (ok=%v)", crc, ok)
	}

	// Unknown artifact
	_, ok, err = s.CommandCrc("out/missing.o")
	if err != nil {
		t.Fatalf("CommandCrc failed: %v", err)
	}
	if ok {
		t.Error("expected ok=false for unknown artifact")
	}

	all, err := s.All()
	if err != nil {
		t.Fatalf("All failed: %v", err)
	}
	if len(all) != 1 || all["out/foo.o"] != 0xdeadbeef {
		t.Errorf("unexpected table: %v", all)
	}
}

func TestSQLiteStore(t *testing.T) {
	// Create temp file
	f, err := os.CreateTemp("", "sxc-test-*.db")
	if err != nil {
		t.Fatalf("Failed to create temp file: %v", err)
	}
	path := f.Name()
	f.Close()
	defer os.Remove(path)

	s, err := NewSQLite(path)
	if err != nil {
		t.Fatalf("Failed to create SQLite store: %v", err)
	}

	if err := s.SetCommandCrc("out/foo.o", 12345); err != nil {
		t.Fatalf("SetCommandCrc failed: %v", err)
	}
	// Overwrite
	if err := s.SetCommandCrc("out/foo.o", 67890); err != nil {
		t.Fatalf("SetCommandCrc overwrite failed: %v", err)
	}

	crc, ok, err := s.CommandCrc("out/foo.o")
	if err != nil {
		t.Fatalf("CommandCrc failed: %v", err)
	}
	if !ok || crc != 67890 {
		t.Errorf("expected 67890, got %d (ok=%v)", crc, ok)
	}

	// Close and reopen to verify persistence
	s.Close()

	s2, err := NewSQLite(path)
	if err != nil {
		t.Fatalf("Failed to reopen SQLite store: %v", err)
	}
	defer s2.Close()

	crc, ok, err = s2.CommandCrc("out/foo.o")
	if err != nil {
		t.Fatalf("CommandCrc after reopen failed: %v", err)
	}
	if !ok || crc != 67890 {
		t.Errorf("expected 67890 after reopen, got %d (ok=%v)", crc, ok)
	}
}

func TestSQLiteMetadata(t *testing.T) {
	f, err := os.CreateTemp("", "sxc-test-*.db")
	if err != nil {
		t.Fatalf("Failed to create temp file: %v", err)
	}
	path := f.Name()
	f.Close()
	defer os.Remove(path)

	s, err := NewSQLite(path)
	if err != nil {
		t.Fatalf("Failed to create SQLite store: %v", err)
	}
	defer s.Close()

	version, err := s.GetMetadata("schema_version")
	if err != nil {
		t.Fatalf("GetMetadata failed: %v", err)
	}
	if version != SchemaVersion {
		t.Errorf("expected schema version %s, got %s", SchemaVersion, version)
	}

	if err := s.SetMetadata("last_build", "ok"); err != nil {
		t.Fatalf("SetMetadata failed: %v", err)
	}
	got, err := s.GetMetadata("last_build")
	if err != nil {
		t.Fatalf("GetMetadata failed: %v", err)
	}
	if got != "ok" {
		t.Errorf("expected 'ok', got '%s'", got)
	}
}
