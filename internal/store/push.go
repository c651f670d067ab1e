package store

import (
	"database/sql"
	"fmt"

	"github.com/challengerdaily/challengerdaily/internal/model"
)

type PushStore struct {
	db *sql.DB
}

func NewPushStore(db *sql.DB) *PushStore {
	return &PushStore{db: db}
}

const pushCols = `id, owner_id, endpoint, p256dh_key, auth_key, device_name, created_at`

func scanSubscription(scanner interface{ Scan(...any) error }) (*model.PushSubscription, error) {
	var sub model.PushSubscription
	err := scanner.Scan(&sub.ID, &sub.OwnerID, &sub.Endpoint, &sub.P256dhKey, &sub.AuthKey, &sub.DeviceName, &sub.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// CreateSubscription upserts by endpoint: re-subscribing the same browser
// refreshes its keys instead of duplicating the row.
func (s *PushStore) CreateSubscription(ownerID, endpoint, p256dh, auth, deviceName string) (*model.PushSubscription, error) {
	result, err := s.db.Exec(
		`INSERT INTO push_subscriptions (owner_id, endpoint, p256dh_key, auth_key, device_name)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(endpoint) DO UPDATE SET owner_id = excluded.owner_id, p256dh_key = excluded.p256dh_key, auth_key = excluded.auth_key, device_name = excluded.device_name`,
		ownerID, endpoint, p256dh, auth, deviceName,
	)
	if err != nil {
		return nil, fmt.Errorf("create push subscription: %w", err)
	}
	id, _ := result.LastInsertId()

	// LastInsertId may be 0 on conflict update; re-query by endpoint
	if id == 0 {
		return s.getByEndpoint(endpoint)
	}
	return s.GetByID(id, ownerID)
}

func (s *PushStore) GetByID(id int64, ownerID string) (*model.PushSubscription, error) {
	row := s.db.QueryRow(
		`SELECT `+pushCols+` FROM push_subscriptions WHERE id = ? AND owner_id = ?`,
		id, ownerID,
	)
	sub, err := scanSubscription(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get push subscription: %w", err)
	}
	return sub, nil
}

func (s *PushStore) getByEndpoint(endpoint string) (*model.PushSubscription, error) {
	row := s.db.QueryRow(`SELECT `+pushCols+` FROM push_subscriptions WHERE endpoint = ?`, endpoint)
	sub, err := scanSubscription(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get push subscription by endpoint: %w", err)
	}
	return sub, nil
}

func (s *PushStore) ListByOwner(ownerID string) ([]model.PushSubscription, error) {
	rows, err := s.db.Query(
		`SELECT `+pushCols+` FROM push_subscriptions WHERE owner_id = ? ORDER BY created_at DESC`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("list push subscriptions: %w", err)
	}
	defer rows.Close()
	return collectSubscriptions(rows)
}

// ListOwnerIDs returns distinct owners holding at least one subscription.
func (s *PushStore) ListOwnerIDs() ([]string, error) {
	rows, err := s.db.Query(`SELECT DISTINCT owner_id FROM push_subscriptions`)
	if err != nil {
		return nil, fmt.Errorf("list push owners: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan owner id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *PushStore) DeleteSubscription(id int64, ownerID string) error {
	_, err := s.db.Exec(`DELETE FROM push_subscriptions WHERE id = ? AND owner_id = ?`, id, ownerID)
	if err != nil {
		return fmt.Errorf("delete push subscription: %w", err)
	}
	return nil
}

// DeleteByEndpoint removes a subscription the push service reported gone.
func (s *PushStore) DeleteByEndpoint(endpoint string) error {
	_, err := s.db.Exec(`DELETE FROM push_subscriptions WHERE endpoint = ?`, endpoint)
	if err != nil {
		return fmt.Errorf("delete push subscription by endpoint: %w", err)
	}
	return nil
}

// WasSent reports whether a notification was already recorded for this
// owner, type and reference.
func (s *PushStore) WasSent(ownerID, notifType, refID string) (bool, error) {
	var count int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM notifications_sent WHERE owner_id = ? AND notif_type = ? AND ref_id = ?`,
		ownerID, notifType, refID,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check notification sent: %w", err)
	}
	return count > 0, nil
}

// RecordSent marks a notification as delivered so the scheduler never
// repeats it.
func (s *PushStore) RecordSent(ownerID, notifType, refID string) error {
	_, err := s.db.Exec(
		`INSERT OR IGNORE INTO notifications_sent (owner_id, notif_type, ref_id) VALUES (?, ?, ?)`,
		ownerID, notifType, refID,
	)
	if err != nil {
		return fmt.Errorf("record notification sent: %w", err)
	}
	return nil
}

func collectSubscriptions(rows *sql.Rows) ([]model.PushSubscription, error) {
	var subs []model.PushSubscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("scan push subscription: %w", err)
		}
		subs = append(subs, *sub)
	}
	return subs, rows.Err()
}
