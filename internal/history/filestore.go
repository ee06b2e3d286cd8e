package history

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

const runsIndexFile = "runs.json"

// FileStore keeps one JSON document per test under dir plus a
// runs.json index of run summaries. Documents are rewritten atomically
// on every Record.
type FileStore struct {
	dir string
	mu  sync.Mutex
}

func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating history dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) Record(ctx context.Context, entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.readTest(entry.TestName)
	if err != nil {
		return err
	}

	// Storage order keeps timestamps non-decreasing; a clock that
	// stepped backwards is clamped to the previous entry.
	if n := len(entries); n > 0 && entry.Timestamp.Before(entries[n-1].Timestamp) {
		entry.Timestamp = entries[n-1].Timestamp
	}

	entries = append(entries, entry)
	entries = prune(entries, time.Now())

	if err := s.writeJSON(s.testPath(entry.TestName), entries); err != nil {
		return err
	}

	return s.updateIndex(entry)
}

func (s *FileStore) History(ctx context.Context, testName string) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readTest(testName)
}

func (s *FileStore) Tests(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	files, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("reading history dir: %w", err)
	}

	var names []string
	for _, f := range files {
		name := f.Name()
		if f.IsDir() || name == runsIndexFile || !strings.HasSuffix(name, ".json") {
			continue
		}
		names = append(names, strings.TrimSuffix(name, ".json"))
	}

	sort.Strings(names)
	return names, nil
}

func (s *FileStore) readTest(testName string) ([]Entry, error) {
	data, err := os.ReadFile(s.testPath(testName))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading history for %s: %w", testName, err)
	}

	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decoding history for %s: %w", testName, err)
	}
	return entries, nil
}

func (s *FileStore) updateIndex(entry Entry) error {
	var index []RunSummary

	data, err := os.ReadFile(filepath.Join(s.dir, runsIndexFile))
	if err == nil {
		if err := json.Unmarshal(data, &index); err != nil {
			return fmt.Errorf("decoding runs index: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("reading runs index: %w", err)
	}

	index = append(index, RunSummary{
		TestName:   entry.TestName,
		Timestamp:  entry.Timestamp,
		Commit:     entry.Metadata.Commit,
		Branch:     entry.Metadata.Branch,
		Passed:     entry.Validation.Passed,
		Violations: len(entry.Validation.Violations),
	})

	if len(index) > RetentionCap {
		index = index[len(index)-RetentionCap:]
	}

	return s.writeJSON(filepath.Join(s.dir, runsIndexFile), index)
}

func (s *FileStore) writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", filepath.Base(path), err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replacing %s: %w", filepath.Base(path), err)
	}
	return nil
}

// testPath flattens a test name into a safe file name.
func (s *FileStore) testPath(testName string) string {
	safe := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-' || r == '_' || r == '.':
			return r
		default:
			return '_'
		}
	}, testName)

	return filepath.Join(s.dir, safe+".json")
}
