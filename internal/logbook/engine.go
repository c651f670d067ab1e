// Package logbook implements the progress-log engine: one log entry per
// challenge per period, with calendar projections from a challenge's
// creation instant to now.
package logbook

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/challengerdaily/challengerdaily/internal/model"
	"github.com/challengerdaily/challengerdaily/internal/period"
)

// Engine owns the in-memory log groups for one owner and writes through
// its adapter after every mutation. Operations are safe for concurrent
// use; each runs to completion under the engine lock, so a duplicate
// check and its insert can never interleave.
type Engine struct {
	mu      sync.Mutex
	adapter Adapter
	clock   func() time.Time
	mode    period.Mode
	groups  []model.ChallengeLogGroup
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock injects a time source. Tests pin now to fixed values.
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) { e.clock = clock }
}

// WithMode sets the period granularity, overriding any persisted mode.
func WithMode(m period.Mode) Option {
	return func(e *Engine) { e.mode = m }
}

// New creates an engine backed by adapter, loading any previously
// persisted groups and mode.
func New(adapter Adapter, opts ...Option) (*Engine, error) {
	e := &Engine{
		adapter: adapter,
		clock:   time.Now,
		mode:    period.ModeNormal,
	}

	if data, ok, err := adapter.Load(modeKey); err != nil {
		return nil, fmt.Errorf("load mode: %w", err)
	} else if ok {
		e.mode = period.ParseMode(string(data))
	}

	if data, ok, err := adapter.Load(groupsKey); err != nil {
		return nil, fmt.Errorf("load groups: %w", err)
	} else if ok {
		if err := json.Unmarshal(data, &e.groups); err != nil {
			return nil, fmt.Errorf("decode groups: %w", err)
		}
	}

	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Mode returns the current period granularity.
func (e *Engine) Mode() period.Mode {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.mode
}

// SetMode switches period granularity and persists the flag. Previously
// stored entries are untouched; only future key computations and
// projection stepping change.
func (e *Engine) SetMode(m period.Mode) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.mode = m
	if err := e.adapter.Save(modeKey, []byte(m)); err != nil {
		return fmt.Errorf("persist mode: %w", err)
	}
	return nil
}

// AddLog records a completion (or an explicit miss) for the current
// period. It returns accepted=false, with no mutation and no write, when
// an entry already occupies the current period. A non-nil error reports a
// failed durability write; the in-memory mutation has already been
// applied and accepted is still true.
func (e *Engine) AddLog(challengeID int64, challengeName string, status bool) (accepted bool, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.clock()
	key := period.Key(now, e.mode)

	if i := e.groupIndex(challengeID); i >= 0 {
		for _, entry := range e.groups[i].Logs {
			if period.Key(entry.Date, e.mode) == key {
				return false, nil
			}
		}
	}

	entry := model.LogEntry{
		Date:      now,
		Status:    status,
		Timestamp: now.UnixMilli(),
	}

	// Index stays valid even when the creation write fails; the error is
	// carried through so callers can observe the divergence.
	i, err := e.getOrCreateGroup(challengeID, challengeName)
	// Newest-first
	e.groups[i].Logs = append([]model.LogEntry{entry}, e.groups[i].Logs...)

	if perr := e.persist(); perr != nil {
		return true, perr
	}
	return true, err
}

// LogsCount returns the number of completed (status=true) entries for the
// challenge. Absent group yields 0. Explicit misses are excluded from the
// progress numerator.
func (e *Engine) LogsCount(challengeID int64) int {
	e.mu.Lock()
	defer e.mu.Unlock()

	i := e.groupIndex(challengeID)
	if i < 0 {
		return 0
	}
	count := 0
	for _, entry := range e.groups[i].Logs {
		if entry.Status {
			count++
		}
	}
	return count
}

// HasLoggedInCurrentPeriod reports whether a completed entry exists for
// the challenge in the period containing now.
func (e *Engine) HasLoggedInCurrentPeriod(challengeID int64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	i := e.groupIndex(challengeID)
	if i < 0 {
		return false
	}
	key := period.Key(e.clock(), e.mode)
	for _, entry := range e.groups[i].Logs {
		if entry.Status && period.Key(entry.Date, e.mode) == key {
			return true
		}
	}
	return false
}

// Group returns a copy of the challenge's log group, or nil when absent.
func (e *Engine) Group(challengeID int64) *model.ChallengeLogGroup {
	e.mu.Lock()
	defer e.mu.Unlock()

	i := e.groupIndex(challengeID)
	if i < 0 {
		return nil
	}
	g := e.groups[i]
	g.Logs = append([]model.LogEntry(nil), g.Logs...)
	return &g
}

// RenameGroup updates the denormalized challenge name on the group. No-op
// when the group is absent.
func (e *Engine) RenameGroup(challengeID int64, newName string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	i := e.groupIndex(challengeID)
	if i < 0 {
		return nil
	}
	e.groups[i].ChallengeName = newName
	return e.persist()
}

// RemoveGroup deletes the challenge's group and all contained entries.
// Idempotent: removing an absent group changes nothing and issues no
// write.
func (e *Engine) RemoveGroup(challengeID int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	i := e.groupIndex(challengeID)
	if i < 0 {
		return nil
	}
	e.groups = append(e.groups[:i], e.groups[i+1:]...)
	return e.persist()
}

// getOrCreateGroup returns the index of the challenge's group, creating
// and persisting an empty one when absent.
func (e *Engine) getOrCreateGroup(challengeID int64, challengeName string) (int, error) {
	if i := e.groupIndex(challengeID); i >= 0 {
		return i, nil
	}
	e.groups = append(e.groups, model.ChallengeLogGroup{
		ChallengeID:   challengeID,
		ChallengeName: challengeName,
	})
	return len(e.groups) - 1, e.persist()
}

func (e *Engine) groupIndex(challengeID int64) int {
	for i := range e.groups {
		if e.groups[i].ChallengeID == challengeID {
			return i
		}
	}
	return -1
}

func (e *Engine) persist() error {
	data, err := json.Marshal(e.groups)
	if err != nil {
		return fmt.Errorf("encode groups: %w", err)
	}
	if err := e.adapter.Save(groupsKey, data); err != nil {
		return fmt.Errorf("persist groups: %w", err)
	}
	return nil
}
