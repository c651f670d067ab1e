package model

import "time"

// LogEntry records that a challenge was (or was not) completed in one
// period. Status false means "explicitly marked missed", which is distinct
// from having no entry at all for a period.
type LogEntry struct {
	// Date is the logged instant. Timestamp caches the same instant in
	// unix milliseconds and is used for ordering.
	Date      time.Time `json:"date"`
	Status    bool      `json:"status"`
	Timestamp int64     `json:"timestamp"`
	// ID is assigned only when the entry is backed by the remote store.
	ID *int64 `json:"id,omitempty"`
}

// ChallengeLogGroup holds all log entries for one challenge, newest-first.
// At most one group exists per challenge ID, and at most one entry per
// period within a group.
type ChallengeLogGroup struct {
	ChallengeID   int64      `json:"challenge_id"`
	ChallengeName string     `json:"challenge_name"`
	Logs          []LogEntry `json:"logs"`
}
