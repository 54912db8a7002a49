package artifact

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // pure Go SQLite driver, no CGO

	"github.com/Aman-CERP/ragmcp/internal/chunk"
	"github.com/Aman-CERP/ragmcp/internal/index"
)

const chunkSchema = `
CREATE TABLE IF NOT EXISTS chunks (
	id         INTEGER PRIMARY KEY,
	body       TEXT    NOT NULL,
	start_rune INTEGER NOT NULL,
	end_rune   INTEGER NOT NULL
);
`

// SaveInfo carries the build metadata recorded in the manifest.
type SaveInfo struct {
	Model    string
	Corpus   string
	Chunking ChunkingParams
}

// Loaded is a fully validated artifact ready to serve queries.
type Loaded struct {
	Manifest *Manifest
	Chunks   []chunk.Chunk
	Index    *index.Flat
}

// Store reads and writes artifact generations in one directory.
type Store struct {
	dir    string
	logger *slog.Logger
}

// NewStore creates a store for the given artifact directory.
func NewStore(dir string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{dir: dir, logger: logger.With(slog.String("component", "artifact"))}
}

// Dir returns the artifact directory.
func (s *Store) Dir() string { return s.dir }

// ManifestPath returns the path of the committed manifest.
func (s *Store) ManifestPath() string { return filepath.Join(s.dir, ManifestName) }

// Save writes chunks and index as a new generation and commits it by
// renaming the manifest into place. The data files are generation-named,
// so an interrupted save never touches the committed generation.
func (s *Store) Save(ctx context.Context, chunks []chunk.Chunk, idx *index.Flat, info SaveInfo) (*Manifest, error) {
	if len(chunks) == 0 {
		return nil, index.ErrEmptyCorpus
	}
	if idx.Count() != len(chunks) {
		return nil, &InconsistencyError{Chunks: len(chunks), Vectors: idx.Count()}
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create artifact directory: %w", err)
	}

	var gen uint64 = 1
	prev, err := ReadManifest(s.dir)
	switch {
	case err == nil:
		gen = prev.Generation + 1
	case isMissing(err):
		prev = nil
	default:
		// A corrupt manifest should not block rebuilding; start over.
		s.logger.Warn("ignoring unreadable manifest", slog.String("error", err.Error()))
		prev = nil
	}

	m := &Manifest{
		Version:    ManifestVersion,
		Generation: gen,
		CreatedAt:  time.Now().UTC(),
		ChunksFile: fmt.Sprintf("chunks-%d.db", gen),
		VectorFile: fmt.Sprintf("vectors-%d.f32", gen),
		ChunkCount: len(chunks),
		Dimensions: idx.Dimension(),
		Model:      info.Model,
		Corpus:     info.Corpus,
		Chunking:   info.Chunking,
	}

	if err := s.writeChunks(ctx, filepath.Join(s.dir, m.ChunksFile), chunks); err != nil {
		return nil, err
	}
	if err := s.writeVectors(filepath.Join(s.dir, m.VectorFile), idx); err != nil {
		return nil, err
	}
	if err := writeManifest(s.dir, m); err != nil {
		return nil, err
	}

	s.logger.Info("artifact committed",
		slog.Uint64("generation", gen),
		slog.Int("chunks", m.ChunkCount),
		slog.Int("dimensions", m.Dimensions),
		slog.String("model", m.Model))

	if prev != nil {
		s.removeGeneration(prev)
	}
	return m, nil
}

// Load reads the committed artifact and verifies the pair is consistent.
func (s *Store) Load(ctx context.Context) (*Loaded, error) {
	m, err := ReadManifest(s.dir)
	if err != nil {
		return nil, err
	}

	chunks, err := s.readChunks(ctx, filepath.Join(s.dir, m.ChunksFile))
	if err != nil {
		return nil, err
	}

	idx, err := s.readVectors(filepath.Join(s.dir, m.VectorFile), m.Dimensions)
	if err != nil {
		return nil, err
	}

	if len(chunks) != idx.Count() {
		return nil, &InconsistencyError{Chunks: len(chunks), Vectors: idx.Count()}
	}
	if len(chunks) != m.ChunkCount {
		return nil, fmt.Errorf("manifest claims %d chunks, store has %d", m.ChunkCount, len(chunks))
	}

	s.logger.Info("artifact loaded",
		slog.Uint64("generation", m.Generation),
		slog.Int("chunks", len(chunks)),
		slog.Int("dimensions", idx.Dimension()))
	return &Loaded{Manifest: m, Chunks: chunks, Index: idx}, nil
}

func (s *Store) writeChunks(ctx context.Context, path string, chunks []chunk.Chunk) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("open chunk store: %w", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, chunkSchema); err != nil {
		return fmt.Errorf("create chunk schema: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin chunk write: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO chunks (id, body, start_rune, end_rune) VALUES (?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("prepare chunk insert: %w", err)
	}
	defer stmt.Close()

	for _, c := range chunks {
		if _, err := stmt.ExecContext(ctx, c.ID, c.Text, c.Start, c.End); err != nil {
			return fmt.Errorf("insert chunk %d: %w", c.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit chunk write: %w", err)
	}
	return nil
}

func (s *Store) readChunks(ctx context.Context, path string) ([]chunk.Chunk, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: chunk store %s", ErrMissing, filepath.Base(path))
	}

	db, err := sql.Open("sqlite", path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("open chunk store: %w", err)
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx,
		"SELECT id, body, start_rune, end_rune FROM chunks ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("query chunks: %w", err)
	}
	defer rows.Close()

	var chunks []chunk.Chunk
	for rows.Next() {
		var c chunk.Chunk
		if err := rows.Scan(&c.ID, &c.Text, &c.Start, &c.End); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		chunks = append(chunks, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read chunks: %w", err)
	}
	return chunks, nil
}

func (s *Store) writeVectors(path string, idx *index.Flat) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create vector file: %w", err)
	}
	defer f.Close()

	if _, err := idx.WriteTo(f); err != nil {
		return err
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("sync vector file: %w", err)
	}
	return nil
}

func (s *Store) readVectors(path string, dim int) (*index.Flat, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: vector file %s", ErrMissing, filepath.Base(path))
		}
		return nil, fmt.Errorf("open vector file: %w", err)
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat vector file: %w", err)
	}
	rowBytes := int64(dim) * 4
	if rowBytes == 0 || fi.Size()%rowBytes != 0 {
		return nil, fmt.Errorf("vector file %s has %d bytes, not a multiple of %d",
			filepath.Base(path), fi.Size(), rowBytes)
	}

	return index.ReadFlat(f, int(fi.Size()/rowBytes), dim)
}

// removeGeneration deletes a superseded generation's data files. Failures
// only leak disk space, so they are logged and ignored.
func (s *Store) removeGeneration(m *Manifest) {
	for _, name := range []string{m.ChunksFile, m.VectorFile} {
		if name == "" {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !os.IsNotExist(err) {
			s.logger.Warn("could not remove old generation file",
				slog.String("file", name),
				slog.String("error", err.Error()))
		}
	}
}

func isMissing(err error) bool {
	return errors.Is(err, ErrMissing)
}
