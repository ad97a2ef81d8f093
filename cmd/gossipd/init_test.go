package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestRunInitWritesConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gossipd.yaml")

	code, exited := captureExit(func() {
		runInit([]string{"--config", path})
	})
	if exited {
		t.Fatalf("runInit exited unexpectedly with code %d", code)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("expected config written: %v", err)
	}
	if len(data) == 0 {
		t.Fatalf("expected non-empty config")
	}
}

func TestRunInitRefusesOverwriteWithoutForce(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gossipd.yaml")
	if err := os.WriteFile(path, []byte("existing"), 0600); err != nil {
		t.Fatalf("seed existing file: %v", err)
	}

	code, exited := captureExit(func() {
		runInit([]string{"--config", path})
	})
	if !exited || code != 1 {
		t.Fatalf("expected exit(1) for existing file, got exited=%v code=%d", exited, code)
	}

	data, _ := os.ReadFile(path)
	if string(data) != "existing" {
		t.Fatalf("expected existing file left untouched")
	}
}

func TestRunInitForceOverwrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gossipd.yaml")
	if err := os.WriteFile(path, []byte("existing"), 0600); err != nil {
		t.Fatalf("seed existing file: %v", err)
	}

	code, exited := captureExit(func() {
		runInit([]string{"--config", path, "--force"})
	})
	if exited {
		t.Fatalf("runInit exited unexpectedly with code %d", code)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read overwritten config: %v", err)
	}
	if string(data) == "existing" {
		t.Fatalf("expected file overwritten")
	}
}
