package voiceasset

import (
	"archive/zip"
	"encoding/json"
	"fmt"
	"os"
	"sort"
)

// writeCombinedArchive packs every asset's raw float32 buffer into a single
// zip container (the .npz format is itself a zip of named arrays), alongside
// a JSON index mapping voice name to its ordinal position. This keeps the
// combined-file compatibility path alive for loaders that expect one
// container instead of many per-voice files.
func writeCombinedArchive(archivePath, indexPath string, assets map[string]*Asset) (string, error) {
	names := make([]string, 0, len(assets))
	for n := range assets {
		names = append(names, n)
	}
	sort.Strings(names)

	f, err := os.Create(archivePath)
	if err != nil {
		return "", fmt.Errorf("voiceasset: create %s: %w", archivePath, err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	index := make(map[string]int, len(names))
	for i, name := range names {
		index[name] = i
		w, err := zw.Create(name + ".bin")
		if err != nil {
			zw.Close()
			return "", fmt.Errorf("voiceasset: add %s to archive: %w", name, err)
		}
		if _, err := w.Write(encodeFloat32LE(assets[name].Matrix)); err != nil {
			zw.Close()
			return "", fmt.Errorf("voiceasset: write %s into archive: %w", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return "", fmt.Errorf("voiceasset: finalize archive: %w", err)
	}

	idxData, err := json.MarshalIndent(index, "", "  ")
	if err != nil {
		return "", fmt.Errorf("voiceasset: marshal index: %w", err)
	}
	if err := os.WriteFile(indexPath, idxData, 0o644); err != nil {
		return "", fmt.Errorf("voiceasset: write index: %w", err)
	}

	return archivePath, nil
}

// readCombinedIndex loads the {name: ordinal} index written by
// writeCombinedArchive.
func readCombinedIndex(indexPath string) (map[string]int, error) {
	data, err := os.ReadFile(indexPath)
	if err != nil {
		return nil, err
	}
	var index map[string]int
	if err := json.Unmarshal(data, &index); err != nil {
		return nil, fmt.Errorf("voiceasset: parse index: %w", err)
	}
	return index, nil
}
