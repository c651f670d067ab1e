package store

import (
	"database/sql"
	"fmt"

	"github.com/challengerdaily/challengerdaily/internal/model"
)

type ChallengeStore struct {
	db *sql.DB
}

func NewChallengeStore(db *sql.DB) *ChallengeStore {
	return &ChallengeStore{db: db}
}

func scanChallenge(scanner interface{ Scan(...any) error }) (*model.Challenge, error) {
	var c model.Challenge
	err := scanner.Scan(&c.ID, &c.OwnerID, &c.Title, &c.Days, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

const challengeCols = `id, owner_id, title, days, created_at, updated_at`

func (s *ChallengeStore) Create(ownerID, title string, days int) (*model.Challenge, error) {
	result, err := s.db.Exec(
		`INSERT INTO challenges (owner_id, title, days) VALUES (?, ?, ?)`,
		ownerID, title, days,
	)
	if err != nil {
		return nil, fmt.Errorf("insert challenge: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id, ownerID)
}

// GetByID is owner-scoped: another owner's challenge reads as absent.
func (s *ChallengeStore) GetByID(id int64, ownerID string) (*model.Challenge, error) {
	row := s.db.QueryRow(`SELECT `+challengeCols+` FROM challenges WHERE id = ? AND owner_id = ?`, id, ownerID)
	c, err := scanChallenge(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get challenge: %w", err)
	}
	return c, nil
}

func (s *ChallengeStore) ListByOwner(ownerID string) ([]model.Challenge, error) {
	rows, err := s.db.Query(
		`SELECT `+challengeCols+` FROM challenges WHERE owner_id = ? ORDER BY created_at DESC, id DESC`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("list challenges: %w", err)
	}
	defer rows.Close()

	var challenges []model.Challenge
	for rows.Next() {
		c, err := scanChallenge(rows)
		if err != nil {
			return nil, fmt.Errorf("scan challenge: %w", err)
		}
		challenges = append(challenges, *c)
	}
	return challenges, rows.Err()
}

func (s *ChallengeStore) CountByOwner(ownerID string) (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM challenges WHERE owner_id = ?`, ownerID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count challenges: %w", err)
	}
	return n, nil
}

// UpdateTitle renames a challenge. Days and created_at are immutable after
// creation.
func (s *ChallengeStore) UpdateTitle(id int64, ownerID, title string) (*model.Challenge, error) {
	_, err := s.db.Exec(
		`UPDATE challenges SET title = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ? AND owner_id = ?`,
		title, id, ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("update challenge: %w", err)
	}
	return s.GetByID(id, ownerID)
}

func (s *ChallengeStore) Delete(id int64, ownerID string) error {
	_, err := s.db.Exec(`DELETE FROM challenges WHERE id = ? AND owner_id = ?`, id, ownerID)
	if err != nil {
		return fmt.Errorf("delete challenge: %w", err)
	}
	return nil
}
