package main

import (
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/example/go-pocket-tts/internal/config"
)

func writeTestVoiceBin(t *testing.T, dir, name string, rows int) {
	t.Helper()

	buf := make([]byte, rows*256*4)
	for i := range rows * 256 {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(0.1))
	}

	if err := os.WriteFile(filepath.Join(dir, name+".bin"), buf, 0o644); err != nil {
		t.Fatalf("write voice file: %v", err)
	}
}

func withVoicesConfig(t *testing.T, dir string) func() {
	t.Helper()
	orig := activeCfg
	activeCfg = config.Config{
		Paths: config.PathsConfig{ModelPath: "/some/model/path"},
		Voice: config.VoiceConfig{VoicesDir: dir},
	}
	return func() { activeCfg = orig }
}

func TestOpenVoiceManager_MissingVoicesDir(t *testing.T) {
	restore := withVoicesConfig(t, "")
	defer restore()

	if _, err := openVoiceManager(); err == nil {
		t.Fatal("expected error when voices_dir is unset")
	}
}

func TestVoicesListCmd_ListsLoadedVoices(t *testing.T) {
	dir := t.TempDir()
	writeTestVoiceBin(t, dir, "af_heart", 510)
	restore := withVoicesConfig(t, dir)
	defer restore()

	cmd := newVoicesListCmd()
	cmd.SetArgs(nil)
	if err := cmd.Execute(); err != nil {
		t.Fatalf("list command failed: %v", err)
	}
}

func TestVoicesCombineCmd_WritesArchive(t *testing.T) {
	dir := t.TempDir()
	writeTestVoiceBin(t, dir, "af_heart", 510)
	restore := withVoicesConfig(t, dir)
	defer restore()

	cmd := newVoicesCombineCmd()
	cmd.SetArgs(nil)
	if err := cmd.Execute(); err != nil {
		t.Fatalf("combine command failed: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, "combined_voices.npz")); err != nil {
		t.Errorf("expected combined archive to exist: %v", err)
	}
}

func TestVoicesDeleteCmd_NotFoundIsNotAnError(t *testing.T) {
	dir := t.TempDir()
	writeTestVoiceBin(t, dir, "af_heart", 510)
	restore := withVoicesConfig(t, dir)
	defer restore()

	cmd := newVoicesDeleteCmd()
	cmd.SetArgs([]string{"nonexistent-voice"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("delete command failed: %v", err)
	}
}

func TestVoicesBlendCmd_RejectsMalformedRecipe(t *testing.T) {
	dir := t.TempDir()
	writeTestVoiceBin(t, dir, "af_heart", 510)
	restore := withVoicesConfig(t, dir)
	defer restore()

	cmd := newVoicesBlendCmd()
	cmd.SetArgs([]string{"af_heart-no-weight"})
	if err := cmd.Execute(); err == nil {
		t.Fatal("expected error for malformed NAME=WEIGHT recipe")
	}
}

func TestVoicesBlendCmd_BlendsKnownVoices(t *testing.T) {
	dir := t.TempDir()
	writeTestVoiceBin(t, dir, "af_heart", 510)
	writeTestVoiceBin(t, dir, "am_adam", 510)
	restore := withVoicesConfig(t, dir)
	defer restore()

	cmd := newVoicesBlendCmd()
	cmd.SetArgs([]string{"af_heart=0.5", "am_adam=0.5"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("blend command failed: %v", err)
	}
}

func TestVoicesBlendCmd_UnknownVoiceErrors(t *testing.T) {
	dir := t.TempDir()
	writeTestVoiceBin(t, dir, "af_heart", 510)
	restore := withVoicesConfig(t, dir)
	defer restore()

	cmd := newVoicesBlendCmd()
	cmd.SetArgs([]string{"af_heart=1.0", "xx_unknown=1.0"})
	if err := cmd.Execute(); err == nil {
		t.Fatal("expected error for unknown voice in blend recipe")
	}
}
