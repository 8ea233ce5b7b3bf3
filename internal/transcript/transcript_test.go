package transcript

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTranscript(t *testing.T, baseDir, projectPath, id, content string) string {
	t.Helper()
	dir := filepath.Join(baseDir, pathToDirName(projectPath))
	require.NoError(t, os.MkdirAll(dir, 0o755))
	path := filepath.Join(dir, id+".jsonl")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func pathToDirName(projectPath string) string {
	out := make([]byte, len(projectPath))
	for i := 0; i < len(projectPath); i++ {
		if projectPath[i] == '/' {
			out[i] = '-'
		} else {
			out[i] = projectPath[i]
		}
	}
	return string(out)
}

func TestList_NewestFirst(t *testing.T) {
	baseDir := t.TempDir()
	store := NewStoreAt(baseDir)

	older := writeTranscript(t, baseDir, "/home/me/proj", "aaa", "{}\n")
	writeTranscript(t, baseDir, "/home/me/proj", "bbb", "{}\n")
	// Not a transcript; ignored.
	writeTranscript(t, baseDir, "/home/me/proj", "notes", "")
	require.NoError(t, os.Rename(
		filepath.Join(filepath.Dir(older), "notes.jsonl"),
		filepath.Join(filepath.Dir(older), "notes.txt")))

	// Force distinct mtimes.
	past := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(older, past, past))

	ids, err := store.List("/home/me/proj")
	require.NoError(t, err)
	assert.Equal(t, []string{"bbb", "aaa"}, ids)
}

func TestList_MissingProjectDir(t *testing.T) {
	store := NewStoreAt(t.TempDir())

	ids, err := store.List("/never/ran/here")
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestLoad_FiltersConversationEntries(t *testing.T) {
	baseDir := t.TempDir()
	store := NewStoreAt(baseDir)

	content := `{"type":"summary","summary":"a session"}
{"type":"user","uuid":"u1","timestamp":"2026-08-30T10:00:00Z","message":{"role":"user","content":"fix the bug"}}
not json at all
{"type":"assistant","uuid":"a1","timestamp":"2026-08-30T10:00:05Z","message":{"role":"assistant","model":"some-model","content":[{"type":"text","text":"on it"}]}}
{"type":"user","message":{"role":"user","content":""}}
{"type":"assistant","message":{"role":"assistant","content":[{"type":"text","text":"done"}]}}
`
	writeTranscript(t, baseDir, "/home/me/proj", "sess1", content)

	entries, err := store.Load("/home/me/proj", "sess1")
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.Equal(t, "u1", entries[0].ID)
	assert.Equal(t, "user", entries[0].Type)
	assert.Equal(t, "fix the bug", entries[0].Content)

	assert.Equal(t, "a1", entries[1].ID)
	assert.Equal(t, "some-model", entries[1].Model)
	blocks, ok := entries[1].Content.([]map[string]any)
	require.True(t, ok)
	require.Len(t, blocks, 1)
	assert.Equal(t, "on it", blocks[0]["text"])

	// No uuid: ID falls back to <type>-<line index>.
	assert.Equal(t, "assistant-5", entries[2].ID)
}

func TestLoad_MissingTranscript(t *testing.T) {
	store := NewStoreAt(t.TempDir())

	_, err := store.Load("/home/me/proj", "missing")
	require.Error(t, err)
	assert.True(t, os.IsNotExist(err))
}

func TestLoad_EmptyFile(t *testing.T) {
	baseDir := t.TempDir()
	store := NewStoreAt(baseDir)
	writeTranscript(t, baseDir, "/home/me/proj", "empty", "")

	entries, err := store.Load("/home/me/proj", "empty")
	require.NoError(t, err)
	assert.Empty(t, entries)
}
