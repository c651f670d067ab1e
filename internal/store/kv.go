package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/challengerdaily/challengerdaily/internal/logbook"
)

// KVStore is per-owner key/value storage over SQLite. It backs the log
// engine's adapter for registered users and holds per-owner settings such
// as the accelerated-mode flag.
type KVStore struct {
	db *sql.DB
}

func NewKVStore(db *sql.DB) *KVStore {
	return &KVStore{db: db}
}

func (s *KVStore) Get(ownerID, key string) ([]byte, bool, error) {
	var value []byte
	err := s.db.QueryRow(
		`SELECT value FROM owner_storage WHERE owner_id = ? AND key = ?`,
		ownerID, key,
	).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get %q for %q: %w", key, ownerID, err)
	}
	return value, true, nil
}

func (s *KVStore) Set(ownerID, key string, value []byte) error {
	_, err := s.db.Exec(
		`INSERT INTO owner_storage (owner_id, key, value, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(owner_id, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		ownerID, key, value, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("set %q for %q: %w", key, ownerID, err)
	}
	return nil
}

func (s *KVStore) DeleteOwner(ownerID string) error {
	_, err := s.db.Exec(`DELETE FROM owner_storage WHERE owner_id = ?`, ownerID)
	if err != nil {
		return fmt.Errorf("delete storage for %q: %w", ownerID, err)
	}
	return nil
}

// ForOwner returns a logbook adapter bound to one owner.
func (s *KVStore) ForOwner(ownerID string) logbook.Adapter {
	return &kvAdapter{store: s, ownerID: ownerID}
}

type kvAdapter struct {
	store   *KVStore
	ownerID string
}

func (a *kvAdapter) Load(key string) ([]byte, bool, error) {
	return a.store.Get(a.ownerID, key)
}

func (a *kvAdapter) Save(key string, data []byte) error {
	return a.store.Set(a.ownerID, key, data)
}
