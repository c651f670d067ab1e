package model

import "time"

// Account tracks the upgrade state for an owner (registered user or guest).
// Owners start on a time-limited trial; a one-time payment upgrades them
// permanently.
type Account struct {
	OwnerID          string     `json:"owner_id"`
	Upgraded         bool       `json:"upgraded"`
	UpgradedAt       *time.Time `json:"upgraded_at,omitempty"`
	StripeCustomerID string     `json:"-"`
	FirstSeenAt      time.Time  `json:"first_seen_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}
