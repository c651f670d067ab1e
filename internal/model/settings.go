package model

import "time"

// Setting is a per-owner key/value pair. The accelerated-mode flag is
// stored here under its own key so it survives across sessions.
type Setting struct {
	OwnerID   string    `json:"owner_id"`
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}
