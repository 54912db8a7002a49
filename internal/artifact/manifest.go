// Package artifact persists and loads the chunk/vector artifact pair.
//
// An artifact generation is three files in one directory: a SQLite chunk
// database, a raw float32 vector matrix, and manifest.json describing both.
// The manifest rename is the commit point: readers resolve the data files
// through it, so a crash mid-write leaves the previous generation intact
// and loadable.
package artifact

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ManifestVersion is bumped when the on-disk layout changes incompatibly.
const ManifestVersion = 1

// ManifestName is the file name of the manifest inside the artifact directory.
const ManifestName = "manifest.json"

// ErrMissing is returned when no committed artifact exists in the directory.
var ErrMissing = errors.New("artifact not found")

// InconsistencyError reports a chunk store and vector index that disagree
// on entry count. The pair is rejected as a whole; a partial artifact is
// never served.
type InconsistencyError struct {
	Chunks  int
	Vectors int
}

func (e *InconsistencyError) Error() string {
	return fmt.Sprintf("artifact inconsistent: %d chunks but %d vectors", e.Chunks, e.Vectors)
}

// ChunkingParams records the chunking configuration the artifact was built
// with, so a rebuild can detect configuration drift.
type ChunkingParams struct {
	SizeTokens    int `json:"size_tokens"`
	OverlapTokens int `json:"overlap_tokens"`
	UnitsPerToken int `json:"units_per_token"`
}

// Manifest describes one committed artifact generation.
type Manifest struct {
	Version    int            `json:"version"`
	Generation uint64         `json:"generation"`
	CreatedAt  time.Time      `json:"created_at"`
	ChunksFile string         `json:"chunks_file"`
	VectorFile string         `json:"vector_file"`
	ChunkCount int            `json:"chunk_count"`
	Dimensions int            `json:"dimensions"`
	Model      string         `json:"model"`
	Corpus     string         `json:"corpus_fingerprint"`
	Chunking   ChunkingParams `json:"chunking"`
}

// ReadManifest loads and validates the manifest from an artifact directory.
// Returns ErrMissing when the manifest does not exist.
func ReadManifest(dir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: no %s in %s", ErrMissing, ManifestName, dir)
		}
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	if m.Version != ManifestVersion {
		return nil, fmt.Errorf("unsupported manifest version %d (want %d)", m.Version, ManifestVersion)
	}
	if m.ChunksFile == "" || m.VectorFile == "" {
		return nil, errors.New("manifest missing data file references")
	}
	if m.ChunkCount <= 0 || m.Dimensions <= 0 {
		return nil, fmt.Errorf("manifest has invalid shape: count=%d dim=%d", m.ChunkCount, m.Dimensions)
	}
	return &m, nil
}

// writeManifest commits the manifest atomically: write a temp file in the
// same directory, fsync, then rename over the final name.
func writeManifest(dir string, m *Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ManifestName+".tmp-*")
	if err != nil {
		return fmt.Errorf("create manifest temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() { _ = os.Remove(tmpPath) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write manifest: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync manifest: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close manifest: %w", err)
	}

	if err := os.Rename(tmpPath, filepath.Join(dir, ManifestName)); err != nil {
		return fmt.Errorf("commit manifest: %w", err)
	}
	return nil
}
