// Package transcript keeps the committed transcript log.
package transcript

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/afero"
)

// Entry is one committed transcript.
type Entry struct {
	Take      string    `json:"take"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Store appends entries to a TSV log and keeps the last few in memory.
type Store struct {
	fs   afero.Fs
	path string
	tail int

	mu     sync.Mutex
	recent []Entry
}

// New returns a store writing to path on fs. A tail below 1 keeps one entry.
func New(fs afero.Fs, path string, tail int) *Store {
	if tail < 1 {
		tail = 1
	}
	return &Store{fs: fs, path: path, tail: tail, recent: make([]Entry, 0, tail)}
}

// NewOS returns a store on the real filesystem.
func NewOS(path string, tail int) *Store {
	return New(afero.NewOsFs(), path, tail)
}

// Append records e in memory and on disk. Tabs and newlines in the text are
// flattened so each entry stays on one line.
func (s *Store) Append(e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recent = append(s.recent, e)
	if len(s.recent) > s.tail {
		s.recent = s.recent[len(s.recent)-s.tail:]
	}

	if err := s.fs.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	f, err := s.fs.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	text := strings.NewReplacer("\t", " ", "\n", " ", "\r", " ").Replace(e.Text)
	if _, err := fmt.Fprintf(f, "%s\t%s\t%s\n", e.Timestamp.Format(time.RFC3339), e.Take, text); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// Recent returns a copy of the in-memory tail, oldest first.
func (s *Store) Recent() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, len(s.recent))
	copy(out, s.recent)
	return out
}

// ReadLast parses the last n entries from the log. n below 1 reads them all.
func (s *Store) ReadLast(n int) ([]Entry, error) {
	data, err := afero.ReadFile(s.fs, s.path)
	if err != nil {
		return nil, err
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if n > 0 && len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	out := make([]Entry, 0, len(lines))
	for _, l := range lines {
		parts := strings.SplitN(l, "\t", 3)
		if len(parts) != 3 {
			continue
		}
		ts, err := time.Parse(time.RFC3339, parts[0])
		if err != nil {
			continue
		}
		out = append(out, Entry{Timestamp: ts, Take: parts[1], Text: parts[2]})
	}
	return out, nil
}
