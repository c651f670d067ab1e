package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/challengerdaily/challengerdaily/internal/model"
)

type AccountStore struct {
	db *sql.DB
}

func NewAccountStore(db *sql.DB) *AccountStore {
	return &AccountStore{db: db}
}

const accountCols = `owner_id, upgraded, upgraded_at, stripe_customer_id, first_seen_at, updated_at`

func scanAccount(scanner interface{ Scan(...any) error }) (*model.Account, error) {
	var a model.Account
	var upgraded int
	var upgradedAt sql.NullTime
	err := scanner.Scan(&a.OwnerID, &upgraded, &upgradedAt, &a.StripeCustomerID, &a.FirstSeenAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	a.Upgraded = upgraded != 0
	if upgradedAt.Valid {
		a.UpgradedAt = &upgradedAt.Time
	}
	return &a, nil
}

// GetOrCreate returns the owner's account, creating a fresh trial account
// on first sight.
func (s *AccountStore) GetOrCreate(ownerID string) (*model.Account, error) {
	a, err := s.Get(ownerID)
	if err != nil {
		return nil, err
	}
	if a != nil {
		return a, nil
	}

	_, err = s.db.Exec(`INSERT OR IGNORE INTO accounts (owner_id) VALUES (?)`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("insert account: %w", err)
	}
	return s.Get(ownerID)
}

func (s *AccountStore) Get(ownerID string) (*model.Account, error) {
	row := s.db.QueryRow(`SELECT `+accountCols+` FROM accounts WHERE owner_id = ?`, ownerID)
	a, err := scanAccount(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	return a, nil
}

// MarkUpgraded flips the account to the paid tier. Idempotent: a webhook
// retry re-marks without changing the original upgrade time.
func (s *AccountStore) MarkUpgraded(ownerID string) error {
	_, err := s.db.Exec(
		`UPDATE accounts
		 SET upgraded = 1,
		     upgraded_at = COALESCE(upgraded_at, ?),
		     updated_at = ?
		 WHERE owner_id = ?`,
		time.Now().UTC(), time.Now().UTC(), ownerID,
	)
	if err != nil {
		return fmt.Errorf("mark upgraded: %w", err)
	}
	return nil
}

func (s *AccountStore) SetStripeCustomerID(ownerID, customerID string) error {
	_, err := s.db.Exec(
		`UPDATE accounts SET stripe_customer_id = ?, updated_at = ? WHERE owner_id = ?`,
		customerID, time.Now().UTC(), ownerID,
	)
	if err != nil {
		return fmt.Errorf("set stripe customer: %w", err)
	}
	return nil
}

// GetByStripeCustomerID resolves a webhook's customer back to an owner.
func (s *AccountStore) GetByStripeCustomerID(customerID string) (*model.Account, error) {
	row := s.db.QueryRow(`SELECT `+accountCols+` FROM accounts WHERE stripe_customer_id = ?`, customerID)
	a, err := scanAccount(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get account by customer: %w", err)
	}
	return a, nil
}
