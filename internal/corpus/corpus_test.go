package corpus

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "collapses excess newlines",
			in:   "one\n\n\n\ntwo",
			want: "one\n\ntwo",
		},
		{
			name: "heals hyphenation across line breaks",
			in:   "long-\nsword",
			want: "longsword",
		},
		{
			name: "strips space before punctuation",
			in:   "roll a d20 , then add modifiers .",
			want: "roll a d20, then add modifiers.",
		},
		{
			name: "collapses space runs but keeps newlines",
			in:   "a  \t b\nc",
			want: "a b\nc",
		},
		{
			name: "trims outer whitespace",
			in:   "\n\n  text  \n",
			want: "text",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestLoad_SortedConsolidation(t *testing.T) {
	// Given: txt files in two directories plus a file to ignore
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.txt"), []byte("beta"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("alpha"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sub", "c.txt"), []byte("gamma"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.md"), []byte("ignored"), 0o644))

	// When: I load the corpus
	c, err := Load(dir)
	require.NoError(t, err)

	// Then: files are consolidated in sorted path order, .md skipped
	assert.Equal(t, "alpha\n\nbeta\n\ngamma", c.Text)
	require.Len(t, c.Files, 3)
	assert.Equal(t, "a.txt", filepath.Base(c.Files[0]))

	// And: loading again yields the identical fingerprint
	c2, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, c.Fingerprint, c2.Fingerprint)
}

func TestLoad_EmptyDirectory(t *testing.T) {
	c, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, c.Text)
	assert.Empty(t, c.Files)
}

func TestFingerprint_Deterministic(t *testing.T) {
	assert.Equal(t, Fingerprint("abc"), Fingerprint("abc"))
	assert.NotEqual(t, Fingerprint("abc"), Fingerprint("abd"))
}
