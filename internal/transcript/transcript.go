// Package transcript reads the agent's on-disk session logs. The agent
// writes one JSONL file per conversation under ~/.claude/projects, in a
// directory derived from the working directory it ran in.
package transcript

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Entry is one conversation message from a transcript file.
type Entry struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	Content   any    `json:"content"`
	Timestamp string `json:"timestamp,omitempty"`
	Model     string `json:"model,omitempty"`
}

// Store reads transcripts below a base directory.
type Store struct {
	baseDir string
}

// NewStore creates a Store rooted at ~/.claude/projects.
func NewStore() (*Store, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return &Store{baseDir: filepath.Join(home, ".claude", "projects")}, nil
}

// NewStoreAt creates a Store rooted at an explicit directory.
func NewStoreAt(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

// projectDir maps a working directory to the agent's log directory for it:
// every "/" in the path becomes "-".
func (s *Store) projectDir(projectPath string) string {
	return filepath.Join(s.baseDir, strings.ReplaceAll(projectPath, "/", "-"))
}

// List returns the transcript IDs for a project, newest first by file
// modification time. A project with no logs yields an empty list.
func (s *Store) List(projectPath string) ([]string, error) {
	dir := s.projectDir(projectPath)
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}

	type fileInfo struct {
		id      string
		modTime int64
	}
	var files []fileInfo
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".jsonl") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, fileInfo{
			id:      strings.TrimSuffix(name, ".jsonl"),
			modTime: info.ModTime().UnixNano(),
		})
	}

	sort.Slice(files, func(i, j int) bool { return files[i].modTime > files[j].modTime })
	ids := make([]string, 0, len(files))
	for _, f := range files {
		ids = append(ids, f.id)
	}
	return ids, nil
}

// transcriptLine is the subset of a raw log line we read.
type transcriptLine struct {
	Type      string `json:"type"`
	UUID      string `json:"uuid"`
	Timestamp string `json:"timestamp"`
	Message   struct {
		Content json.RawMessage `json:"content"`
		Model   string          `json:"model"`
	} `json:"message"`
}

// Load parses one transcript, keeping user and assistant messages that carry
// content. Malformed lines are skipped; the agent appends to these files
// while we read them.
func (s *Store) Load(projectPath, id string) ([]Entry, error) {
	path := filepath.Join(s.projectDir(projectPath), id+".jsonl")
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = file.Close()
	}()

	var out []Entry
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)
	index := 0
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		index++
		if line == "" {
			continue
		}

		var raw transcriptLine
		if err := json.Unmarshal([]byte(line), &raw); err != nil {
			continue
		}
		if raw.Type != "user" && raw.Type != "assistant" {
			continue
		}
		content := extractContent(raw.Message.Content)
		if content == nil {
			continue
		}

		entryID := raw.UUID
		if entryID == "" {
			entryID = fmt.Sprintf("%s-%d", raw.Type, index-1)
		}
		out = append(out, Entry{
			ID:        entryID,
			Type:      raw.Type,
			Content:   content,
			Timestamp: raw.Timestamp,
			Model:     raw.Message.Model,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if out == nil {
		out = []Entry{}
	}
	return out, nil
}

// extractContent accepts a plain string or a list of content blocks; both
// shapes appear in the logs. Nil means the line carries nothing worth showing.
func extractContent(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}

	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		if text == "" {
			return nil
		}
		return text
	}

	var blocks []map[string]any
	if err := json.Unmarshal(raw, &blocks); err == nil {
		if len(blocks) == 0 {
			return nil
		}
		return blocks
	}
	return nil
}
