package fsutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTree(t *testing.T, paths ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, p := range paths {
		full := filepath.Join(dir, filepath.FromSlash(p))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte("{}"), 0o644))
	}
	return dir
}

func TestExpandPatternsLiteral(t *testing.T) {
	dir := writeTree(t, "a.json")
	path := filepath.Join(dir, "a.json")

	out, err := ExpandPatterns([]string{path})
	require.NoError(t, err)
	assert.Equal(t, []string{path}, out)

	_, err = ExpandPatterns([]string{filepath.Join(dir, "missing.json")})
	require.Error(t, err)

	_, err = ExpandPatterns([]string{dir})
	require.Error(t, err, "directories need a glob")
}

func TestExpandPatternsGlob(t *testing.T) {
	dir := writeTree(t, "a.json", "sub/b.json", "sub/deep/c.json", "sub/skip.txt")

	out, err := ExpandPatterns([]string{filepath.Join(dir, "**", "*.json")})
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "a.json"),
		filepath.Join(dir, "sub", "b.json"),
		filepath.Join(dir, "sub", "deep", "c.json"),
	}, out)
}

func TestExpandPatternsNoMatches(t *testing.T) {
	dir := writeTree(t, "a.json")
	_, err := ExpandPatterns([]string{filepath.Join(dir, "*.png")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "matched no files")
}

func TestExpandPatternsDeduplicates(t *testing.T) {
	dir := writeTree(t, "a.json")
	path := filepath.Join(dir, "a.json")

	out, err := ExpandPatterns([]string{path, filepath.Join(dir, "*.json")})
	require.NoError(t, err)
	assert.Equal(t, []string{path}, out)
}

func TestFindFilesByExtension(t *testing.T) {
	dir := writeTree(t, "one.hcl", "nested/two.hcl", "nested/other.json")

	files, err := FindFilesByExtension(dir, ".hcl")
	require.NoError(t, err)
	assert.Len(t, files, 2)

	_, err = FindFilesByExtension(dir, "")
	require.Error(t, err)
}
