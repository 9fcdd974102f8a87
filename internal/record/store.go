package record

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// ErrRecordNotFound is returned when a record doesn't exist.
var ErrRecordNotFound = errors.New("record not found")

const extension = ".msgpack"

// Store manages record persistence.
type Store struct {
	Dir string // Base directory for records
}

// NewStore creates a store with the given directory.
func NewStore(dir string) *Store {
	return &Store{Dir: dir}
}

// DefaultDir returns the default record directory (~/.pyenvdelta/records).
func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".pyenvdelta/records"
	}
	return filepath.Join(home, ".pyenvdelta", "records")
}

// ResolveDir returns the record directory from env var or default.
func ResolveDir(environ []string) string {
	for _, env := range environ {
		if dir, ok := strings.CutPrefix(env, "PYENVDELTA_RECORD_DIR="); ok && dir != "" {
			return dir
		}
	}
	return DefaultDir()
}

// Save stores a record, returns the file path.
func (s *Store) Save(rec Record) (string, error) {
	if err := os.MkdirAll(s.Dir, 0755); err != nil {
		return "", err
	}

	data, err := msgpack.Marshal(&rec)
	if err != nil {
		return "", err
	}

	path := s.Path(rec.ID)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", err
	}
	return path, nil
}

// Load retrieves a record by ID.
func (s *Store) Load(id string) (Record, error) {
	rec, err := readRecord(s.Path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return Record{}, ErrRecordNotFound
		}
		return Record{}, err
	}
	return rec, nil
}

// List returns all stored records as summaries, newest first.
func (s *Store) List() ([]Summary, error) {
	records, err := s.readAll()
	if err != nil {
		return nil, err
	}

	summaries := make([]Summary, 0, len(records))
	for _, r := range records {
		summaries = append(summaries, r.rec.summary())
	}
	sort.SliceStable(summaries, func(i, j int) bool {
		return summaries[i].Timestamp.After(summaries[j].Timestamp)
	})
	return summaries, nil
}

// Delete removes a record by ID.
func (s *Store) Delete(id string) error {
	err := os.Remove(s.Path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return ErrRecordNotFound
		}
		return err
	}
	return nil
}

// Prune removes records older than the given duration.
// Returns the number of records deleted.
func (s *Store) Prune(olderThan time.Duration) (int, error) {
	records, err := s.readAll()
	if err != nil {
		return 0, err
	}

	cutoff := time.Now().Add(-olderThan)
	deleted := 0
	for _, r := range records {
		if r.rec.Timestamp.Before(cutoff) {
			if err := os.Remove(r.path); err == nil {
				deleted++
			}
		}
	}
	return deleted, nil
}

// Exists checks if a record exists.
func (s *Store) Exists(id string) bool {
	_, err := os.Stat(s.Path(id))
	return err == nil
}

// Path returns the file path for a record ID.
// Replaces ':' with '_' for filesystem compatibility.
func (s *Store) Path(id string) string {
	return filepath.Join(s.Dir, strings.ReplaceAll(id, ":", "_")+extension)
}

type storedRecord struct {
	path string
	rec  Record
}

// readAll decodes every record file, skipping unreadable ones.
func (s *Store) readAll() ([]storedRecord, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var out []storedRecord
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), extension) {
			continue
		}
		path := filepath.Join(s.Dir, entry.Name())
		rec, err := readRecord(path)
		if err != nil {
			continue
		}
		out = append(out, storedRecord{path: path, rec: rec})
	}
	return out, nil
}

func readRecord(path string) (Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Record{}, err
	}
	var rec Record
	if err := msgpack.Unmarshal(data, &rec); err != nil {
		return Record{}, err
	}
	return rec, nil
}
