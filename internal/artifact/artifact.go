// Package artifact reads and writes the JSON files passed between stages.
package artifact

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// ReadJSON decodes the artifact at path into a value of type T
func ReadJSON[T any](path string) (T, error) {
	var v T

	data, err := os.ReadFile(path)
	if err != nil {
		return v, fmt.Errorf("read artifact: %w", err)
	}

	if err := json.Unmarshal(data, &v); err != nil {
		return v, fmt.Errorf("decode artifact %s: %w", path, err)
	}

	return v, nil
}

// WriteJSON encodes v with two-space indentation and atomically replaces path.
// Readers never observe a partially written artifact.
func WriteJSON[T any](path string, v T) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode artifact: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create artifact dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp artifact: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp artifact: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync temp artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp artifact: %w", err)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		return fmt.Errorf("chmod artifact: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replace artifact: %w", err)
	}

	return nil
}

// SidecarPath derives a companion artifact path: "out/test_cases.json" with
// suffix "gaps" becomes "out/test_cases.gaps.json".
func SidecarPath(path, suffix string) string {
	ext := filepath.Ext(path)
	base := path[:len(path)-len(ext)]
	if ext == "" {
		ext = ".json"
	}
	return base + "." + suffix + ext
}
