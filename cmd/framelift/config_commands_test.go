package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestConfigInitWritesSample(t *testing.T) {
	target := filepath.Join(t.TempDir(), "config.toml")

	cmd := newConfigInitCommand()
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetArgs([]string{"--path", target})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("config init failed: %v", err)
	}

	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("sample config not written: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("sample config is empty")
	}
}

func TestConfigInitRefusesExistingFile(t *testing.T) {
	target := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(target, []byte("# keep"), 0o644); err != nil {
		t.Fatalf("seed config: %v", err)
	}

	cmd := newConfigInitCommand()
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetArgs([]string{"--path", target})
	if err := cmd.Execute(); err == nil {
		t.Fatal("init over an existing file must fail without --overwrite")
	}

	data, err := os.ReadFile(target)
	if err != nil || string(data) != "# keep" {
		t.Fatalf("existing config was modified: %q err=%v", data, err)
	}
}
