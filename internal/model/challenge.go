package model

import "time"

// Challenge is a user-defined habit goal: a title plus a target duration
// in days. Days is fixed at creation; CreatedAt anchors all calendar
// projections for the challenge.
type Challenge struct {
	ID        int64     `json:"id"`
	OwnerID   string    `json:"owner_id"`
	Title     string    `json:"title"`
	Days      int       `json:"days"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
