package voiceasset

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Manager discovers, validates, loads, and indexes voice style tensors,
// and supports combining, adding, and deleting voices at runtime.
type Manager struct {
	dir             string
	useCombinedFile bool
	log             *slog.Logger

	mu     sync.RWMutex
	byName map[string]*Asset
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the structured logger used for warnings (e.g. the
// single-vector tiling fallback).
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.log = l }
}

// WithCombinedFile toggles maintenance of the combined_voices archive.
func WithCombinedFile(enabled bool) Option {
	return func(m *Manager) { m.useCombinedFile = enabled }
}

// NewManager builds a Manager rooted at dir and loads every "*.bin" voice
// file found there. Fatal only if zero voices load successfully.
func NewManager(dir string, opts ...Option) (*Manager, error) {
	m := &Manager{dir: dir, useCombinedFile: true, log: slog.Default(), byName: map[string]*Asset{}}
	for _, opt := range opts {
		opt(m)
	}

	files, err := filepath.Glob(filepath.Join(dir, "*.bin"))
	if err != nil {
		return nil, fmt.Errorf("voiceasset: glob voices dir: %w", err)
	}

	var loadErrs []string
	for _, f := range files {
		name := strings.TrimSuffix(filepath.Base(f), ".bin")
		if err := ValidateName(name); err != nil {
			loadErrs = append(loadErrs, err.Error())
			continue
		}
		raw, err := os.ReadFile(f)
		if err != nil {
			loadErrs = append(loadErrs, err.Error())
			continue
		}
		asset, err := LoadFromBytes(name, raw, func(msg string) { m.log.Warn(msg) })
		if err != nil {
			loadErrs = append(loadErrs, err.Error())
			continue
		}
		m.byName[name] = asset
	}

	if len(m.byName) == 0 {
		return nil, fmt.Errorf("voiceasset: no voices loaded from %s: %s", dir, strings.Join(loadErrs, "; "))
	}
	for _, e := range loadErrs {
		m.log.Warn("voiceasset: voice failed to load", "error", e)
	}

	return m, nil
}

// List returns the names of all loaded voices, sorted.
func (m *Manager) List() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.byName))
	for n := range m.byName {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Get returns the named asset, or (nil, false) if unknown.
func (m *Manager) Get(name string) (*Asset, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.byName[name]
	return a, ok
}

// AddCustom validates and persists a new (N,256) voice, then recombines.
func (m *Manager) AddCustom(name string, matrix []float32) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	if len(matrix)%vectorDim != 0 || len(matrix) == 0 {
		return fmt.Errorf("%w: %s: %d floats is not a multiple of %d", ErrInvalidShape, name, len(matrix), vectorDim)
	}

	path := filepath.Join(m.dir, name+".bin")
	if err := os.WriteFile(path, encodeFloat32LE(matrix), 0o644); err != nil {
		return fmt.Errorf("voiceasset: write %s: %w", path, err)
	}

	asset := &Asset{Name: name, Rows: len(matrix) / vectorDim, Matrix: matrix}
	m.mu.Lock()
	m.byName[name] = asset
	m.mu.Unlock()

	if m.useCombinedFile {
		if _, err := m.Combine(); err != nil {
			return fmt.Errorf("voiceasset: recombine after add: %w", err)
		}
	}
	return nil
}

// DeleteCustom removes a voice's backing file. Idempotent: reports whether
// a file was actually removed.
func (m *Manager) DeleteCustom(name string) (bool, error) {
	path := filepath.Join(m.dir, name+".bin")
	m.mu.Lock()
	_, existed := m.byName[name]
	delete(m.byName, name)
	m.mu.Unlock()

	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("voiceasset: delete %s: %w", path, err)
	}

	if existed && m.useCombinedFile {
		if _, err := m.Combine(); err != nil {
			return true, fmt.Errorf("voiceasset: recombine after delete: %w", err)
		}
	}
	return true, nil
}

// CombinedPath is where Combine writes the named-array archive.
func (m *Manager) CombinedPath() string {
	return filepath.Join(m.dir, "combined_voices.npz")
}

// IndexPath is where Combine writes the {name: ordinal} index.
func (m *Manager) IndexPath() string {
	return filepath.Join(m.dir, "voice_index.json")
}

// Combine produces the combined archive. This stays live as a compatibility
// path for acoustic-model loaders that require a single container, not as a
// migration to individual-file-only loading.
func (m *Manager) Combine() (string, error) {
	m.mu.RLock()
	assets := make(map[string]*Asset, len(m.byName))
	for k, v := range m.byName {
		assets[k] = v
	}
	m.mu.RUnlock()

	if len(assets) == 0 {
		return "", fmt.Errorf("voiceasset: no voices to combine")
	}
	return writeCombinedArchive(m.CombinedPath(), m.IndexPath(), assets)
}

// EnsureCombined regenerates the combined archive if it is missing or any
// constituent .bin file's mtime exceeds the archive's mtime.
func (m *Manager) EnsureCombined() (string, error) {
	archivePath := m.CombinedPath()
	info, err := os.Stat(archivePath)
	if err != nil {
		return m.Combine()
	}

	files, _ := filepath.Glob(filepath.Join(m.dir, "*.bin"))
	for _, f := range files {
		fi, err := os.Stat(f)
		if err != nil {
			continue
		}
		if fi.ModTime().After(info.ModTime()) {
			return m.Combine()
		}
	}
	return archivePath, nil
}
