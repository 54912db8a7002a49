// Package corpus consolidates a directory of plain-text documents into the
// single normalized text the chunker operates on.
//
// Files are concatenated in sorted path order so the consolidated text, the
// chunk ids derived from it, and the corpus fingerprint are reproducible
// across runs and machines.
package corpus

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// Corpus is the consolidated, normalized source text for one index build.
type Corpus struct {
	// Text is the normalized consolidated text.
	Text string
	// Files lists the source files in consolidation order.
	Files []string
	// Fingerprint is the sha256 hex digest of Text. It is recorded in the
	// artifact manifest as the corpus identity marker.
	Fingerprint string
}

// Load walks dir for .txt files, consolidates them in sorted order, and
// normalizes the result. An empty corpus (no files, or only empty files)
// yields a Corpus with empty Text; the caller decides whether that is fatal.
func Load(dir string) (*Corpus, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if strings.EqualFold(filepath.Ext(path), ".txt") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk corpus dir %s: %w", dir, err)
	}
	// WalkDir visits lexically, but be explicit: ordering is a build invariant.
	sort.Strings(files)

	var sb strings.Builder
	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		sb.Write(data)
		sb.WriteString("\n\n")
	}

	text := Normalize(sb.String())
	return &Corpus{
		Text:        text,
		Files:       files,
		Fingerprint: Fingerprint(text),
	}, nil
}

// Normalization rules, in application order. These reproduce the cleanup
// the ingestion pipeline applies to OCR/extracted book text.
var (
	// Three or more newlines (with intervening whitespace) collapse to a
	// paragraph break.
	reExcessNewlines = regexp.MustCompile(`(\n\s*){3,}`)
	// Words hyphenated across a line break are re-joined.
	reHyphenBreak = regexp.MustCompile(`-\n`)
	// No space before sentence punctuation.
	reSpacePunct = regexp.MustCompile(`\s+([.,!?])`)
	// Runs of spaces/tabs collapse to a single space; newlines survive.
	reSpaceRuns = regexp.MustCompile(`[ \t]{2,}`)
)

// Normalize applies the corpus cleanup rules and trims outer whitespace.
func Normalize(text string) string {
	text = reExcessNewlines.ReplaceAllString(text, "\n\n")
	text = reHyphenBreak.ReplaceAllString(text, "")
	text = reSpacePunct.ReplaceAllString(text, "$1")
	text = reSpaceRuns.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// Fingerprint returns the sha256 hex digest of text.
func Fingerprint(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
