package voiceasset

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeVoiceFile(t *testing.T, dir, name string, rows int) {
	t.Helper()
	raw := encodeFloat32LE(floatSlice(rows*vectorDim, 0.1))
	if err := os.WriteFile(filepath.Join(dir, name+".bin"), raw, 0o644); err != nil {
		t.Fatalf("write voice file: %v", err)
	}
}

func TestNewManagerLoadsVoices(t *testing.T) {
	dir := t.TempDir()
	writeVoiceFile(t, dir, "af_heart", 510)
	writeVoiceFile(t, dir, "am_fenrir", 512)

	m, err := NewManager(dir)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	names := m.List()
	if len(names) != 2 {
		t.Fatalf("List() = %v, want 2 entries", names)
	}
	if _, ok := m.Get("af_heart"); !ok {
		t.Error("expected af_heart to be loadable")
	}
}

func TestNewManagerFailsWithNoVoices(t *testing.T) {
	dir := t.TempDir()
	if _, err := NewManager(dir); err == nil {
		t.Error("expected an error when the voices dir is empty")
	}
}

func TestNewManagerSkipsBadVoicesButKeepsGoodOnes(t *testing.T) {
	dir := t.TempDir()
	writeVoiceFile(t, dir, "good", 4)
	if err := os.WriteFile(filepath.Join(dir, "bad.bin"), []byte{1, 2, 3}, 0o644); err != nil {
		t.Fatalf("write bad voice: %v", err)
	}

	m, err := NewManager(dir)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	if _, ok := m.Get("good"); !ok {
		t.Error("expected good voice to load")
	}
	if _, ok := m.Get("bad"); ok {
		t.Error("expected bad voice to be skipped")
	}
}

func TestAddCustomAndDeleteCustom(t *testing.T) {
	dir := t.TempDir()
	writeVoiceFile(t, dir, "seed", 2)

	m, err := NewManager(dir)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	if err := m.AddCustom("mine", floatSlice(3*vectorDim, 0.2)); err != nil {
		t.Fatalf("AddCustom: %v", err)
	}
	if _, ok := m.Get("mine"); !ok {
		t.Error("expected mine to be retrievable after AddCustom")
	}
	if _, err := os.Stat(m.CombinedPath()); err != nil {
		t.Errorf("expected combined archive to exist: %v", err)
	}

	removed, err := m.DeleteCustom("mine")
	if err != nil {
		t.Fatalf("DeleteCustom: %v", err)
	}
	if !removed {
		t.Error("expected DeleteCustom to report removal")
	}
	if _, ok := m.Get("mine"); ok {
		t.Error("expected mine to be gone after DeleteCustom")
	}
}

func TestAddCustomRejectsBadName(t *testing.T) {
	dir := t.TempDir()
	writeVoiceFile(t, dir, "seed", 2)
	m, err := NewManager(dir)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	if err := m.AddCustom("bad name!", floatSlice(vectorDim, 0.1)); err == nil {
		t.Error("expected an error for an invalid voice name")
	}
}

func TestEnsureCombinedRegeneratesWhenStale(t *testing.T) {
	dir := t.TempDir()
	writeVoiceFile(t, dir, "seed", 2)
	m, err := NewManager(dir)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	if _, err := m.Combine(); err != nil {
		t.Fatalf("Combine: %v", err)
	}

	time.Sleep(10 * time.Millisecond)
	writeVoiceFile(t, dir, "seed", 2) // touches mtime

	path, err := m.EnsureCombined()
	if err != nil {
		t.Fatalf("EnsureCombined: %v", err)
	}
	if path != m.CombinedPath() {
		t.Errorf("path = %q, want %q", path, m.CombinedPath())
	}
}
