package bsdiff

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiffThenApplyYieldsOriginalNewContents(t *testing.T) {
	dir := t.TempDir()
	oldPath := filepath.Join(dir, "old.bin")
	newPath := filepath.Join(dir, "new.bin")
	outPath := filepath.Join(dir, "out.bin")

	oldContent := bytes.Repeat([]byte("the quick brown fox jumps over the lazy dog. "), 200)
	newContent := append(append([]byte{}, oldContent...), []byte("...and a few extra bytes appended at the end.")...)

	require.NoError(t, os.WriteFile(oldPath, oldContent, 0o644))
	require.NoError(t, os.WriteFile(newPath, newContent, 0o644))

	var patch bytes.Buffer
	require.NoError(t, Diff(oldPath, newPath, &patch))

	require.NoError(t, Apply(oldPath, bytes.NewReader(patch.Bytes()), outPath))

	got, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.Equal(t, newContent, got)
}

func TestApplyLeavesBaseFileUntouched(t *testing.T) {
	dir := t.TempDir()
	oldPath := filepath.Join(dir, "old.bin")
	newPath := filepath.Join(dir, "new.bin")
	outPath := filepath.Join(dir, "out.bin")

	oldContent := []byte("version one of the file")
	newContent := []byte("version two of the file, a bit longer")
	require.NoError(t, os.WriteFile(oldPath, oldContent, 0o644))
	require.NoError(t, os.WriteFile(newPath, newContent, 0o644))

	var patch bytes.Buffer
	require.NoError(t, Diff(oldPath, newPath, &patch))
	require.NoError(t, Apply(oldPath, bytes.NewReader(patch.Bytes()), outPath))

	stillThere, err := os.ReadFile(oldPath)
	require.NoError(t, err)
	assert.Equal(t, oldContent, stillThere, "Apply must not mutate the base file")
}
