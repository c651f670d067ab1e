// Package localstore persists guest data as JSON files on disk, one file
// per guest. It is the local counterpart of the SQLite-backed adapter
// used for registered users.
package localstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/challengerdaily/challengerdaily/internal/logbook"
)

// Store manages per-guest JSON files under a single directory.
type Store struct {
	dir string
	mu  sync.Mutex
}

// New creates the store, making the directory if needed.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create local store dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

// ForOwner returns an adapter reading and writing the owner's file.
func (s *Store) ForOwner(ownerID string) logbook.Adapter {
	return &fileAdapter{store: s, path: s.pathFor(ownerID)}
}

// Remove deletes the owner's file. Missing files are not an error.
func (s *Store) Remove(ownerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.pathFor(ownerID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove guest file: %w", err)
	}
	return nil
}

func (s *Store) pathFor(ownerID string) string {
	// Owner IDs are "guest:<uuid>" or "user:<n>"; keep only safe runes.
	name := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, ownerID)
	return filepath.Join(s.dir, name+".json")
}

type fileAdapter struct {
	store *Store
	path  string
}

func (a *fileAdapter) Load(key string) ([]byte, bool, error) {
	a.store.mu.Lock()
	defer a.store.mu.Unlock()

	doc, err := a.read()
	if err != nil {
		return nil, false, err
	}
	raw, ok := doc[key]
	if !ok {
		return nil, false, nil
	}
	return raw, true, nil
}

func (a *fileAdapter) Save(key string, data []byte) error {
	a.store.mu.Lock()
	defer a.store.mu.Unlock()

	doc, err := a.read()
	if err != nil {
		return err
	}
	doc[key] = append([]byte(nil), data...)

	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode guest file: %w", err)
	}

	// Write-then-rename so a crash never leaves a torn file.
	tmp := a.path + ".tmp"
	if err := os.WriteFile(tmp, out, 0o600); err != nil {
		return fmt.Errorf("write guest file: %w", err)
	}
	if err := os.Rename(tmp, a.path); err != nil {
		return fmt.Errorf("replace guest file: %w", err)
	}
	return nil
}

func (a *fileAdapter) read() (map[string]json.RawMessage, error) {
	data, err := os.ReadFile(a.path)
	if os.IsNotExist(err) {
		return make(map[string]json.RawMessage), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read guest file: %w", err)
	}
	doc := make(map[string]json.RawMessage)
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse guest file: %w", err)
	}
	return doc, nil
}
