package logbook

import (
	"errors"
	"testing"
	"time"

	"github.com/challengerdaily/challengerdaily/internal/period"
)

type mapAdapter struct {
	data     map[string][]byte
	failSave bool
	saves    int
}

func newMapAdapter() *mapAdapter {
	return &mapAdapter{data: make(map[string][]byte)}
}

func (a *mapAdapter) Load(key string) ([]byte, bool, error) {
	data, ok := a.data[key]
	return data, ok, nil
}

func (a *mapAdapter) Save(key string, data []byte) error {
	if a.failSave {
		return errors.New("disk full")
	}
	a.saves++
	a.data[key] = append([]byte(nil), data...)
	return nil
}

func newTestEngine(t *testing.T, now *time.Time) (*Engine, *mapAdapter) {
	t.Helper()
	adapter := newMapAdapter()
	e, err := New(adapter, WithClock(func() time.Time { return *now }))
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return e, adapter
}

func TestAddLogOncePerPeriod(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	e, _ := newTestEngine(t, &now)

	accepted, err := e.AddLog(1, "Read daily", true)
	if err != nil {
		t.Fatalf("add log: %v", err)
	}
	if !accepted {
		t.Fatal("first log of a new challenge must be accepted")
	}

	// Same day, later hour
	now = time.Date(2026, 3, 1, 21, 30, 0, 0, time.UTC)
	accepted, err = e.AddLog(1, "Read daily", true)
	if err != nil {
		t.Fatalf("add duplicate: %v", err)
	}
	if accepted {
		t.Error("second log in the same period must be rejected")
	}
	if got := e.LogsCount(1); got != 1 {
		t.Errorf("count = %d, want 1", got)
	}

	// Next day succeeds again
	now = time.Date(2026, 3, 2, 7, 0, 0, 0, time.UTC)
	accepted, _ = e.AddLog(1, "Read daily", true)
	if !accepted {
		t.Error("log on a new day must be accepted")
	}
	if got := e.LogsCount(1); got != 2 {
		t.Errorf("count = %d, want 2", got)
	}
}

func TestRejectedAddLogHasNoSideEffects(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	e, adapter := newTestEngine(t, &now)

	if _, err := e.AddLog(1, "Read daily", true); err != nil {
		t.Fatalf("add log: %v", err)
	}
	savesBefore := adapter.saves

	accepted, err := e.AddLog(1, "Read daily", true)
	if accepted || err != nil {
		t.Fatalf("accepted = %v, err = %v; want rejection without error", accepted, err)
	}
	if adapter.saves != savesBefore {
		t.Error("rejected log must not issue a durability write")
	}
}

func TestLogsCountExcludesMisses(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	e, _ := newTestEngine(t, &now)

	e.AddLog(1, "Run", true)
	now = now.AddDate(0, 0, 1)
	e.AddLog(1, "Run", false) // explicitly marked missed
	now = now.AddDate(0, 0, 1)
	e.AddLog(1, "Run", true)

	if got := e.LogsCount(1); got != 2 {
		t.Errorf("count = %d, want 2 (misses excluded)", got)
	}
	if g := e.Group(1); len(g.Logs) != 3 {
		t.Errorf("logs length = %d, want 3", len(g.Logs))
	}
}

func TestLogsCountAbsentGroup(t *testing.T) {
	now := time.Now()
	e, _ := newTestEngine(t, &now)

	if got := e.LogsCount(42); got != 0 {
		t.Errorf("count = %d, want 0 for absent group", got)
	}
}

func TestHasLoggedInCurrentPeriod(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	e, _ := newTestEngine(t, &now)

	if e.HasLoggedInCurrentPeriod(1) {
		t.Error("absent group should report false")
	}

	e.AddLog(1, "Run", true)
	if !e.HasLoggedInCurrentPeriod(1) {
		t.Error("expected true after logging today")
	}

	now = now.AddDate(0, 0, 1)
	if e.HasLoggedInCurrentPeriod(1) {
		t.Error("yesterday's log should not count for today")
	}
}

func TestMissDoesNotCountAsLogged(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	e, _ := newTestEngine(t, &now)

	e.AddLog(1, "Run", false)
	if e.HasLoggedInCurrentPeriod(1) {
		t.Error("a status=false entry must not count as logged")
	}
	// The period is still occupied, though.
	accepted, _ := e.AddLog(1, "Run", true)
	if accepted {
		t.Error("period occupied by a miss must still reject new entries")
	}
}

func TestLogsAreNewestFirst(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	e, _ := newTestEngine(t, &now)

	e.AddLog(1, "Run", true)
	now = now.AddDate(0, 0, 1)
	e.AddLog(1, "Run", true)

	g := e.Group(1)
	if len(g.Logs) != 2 {
		t.Fatalf("logs length = %d, want 2", len(g.Logs))
	}
	if !g.Logs[0].Date.After(g.Logs[1].Date) {
		t.Error("expected newest entry first")
	}
	if g.Logs[0].Timestamp != g.Logs[0].Date.UnixMilli() {
		t.Error("timestamp must cache the entry date")
	}
}

func TestAcceleratedMode(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	adapter := newMapAdapter()
	e, err := New(adapter,
		WithClock(func() time.Time { return now }),
		WithMode(period.ModeAccelerated),
	)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	e.AddLog(1, "Drink water", true)
	accepted, _ := e.AddLog(1, "Drink water", true)
	if accepted {
		t.Error("same minute must reject")
	}

	now = now.Add(time.Minute)
	accepted, _ = e.AddLog(1, "Drink water", true)
	if !accepted {
		t.Error("next minute must accept")
	}
}

func TestModeSwitchLeavesEntriesUntouched(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	e, _ := newTestEngine(t, &now)

	e.AddLog(1, "Run", true)
	before := e.Group(1).Logs[0]

	if err := e.SetMode(period.ModeAccelerated); err != nil {
		t.Fatalf("set mode: %v", err)
	}

	after := e.Group(1).Logs[0]
	if !before.Date.Equal(after.Date) || before.Status != after.Status || before.Timestamp != after.Timestamp {
		t.Error("mode switch must not alter stored entries")
	}

	// Granularity changed for future computations: a new minute accepts.
	now = now.Add(time.Minute)
	accepted, _ := e.AddLog(1, "Run", true)
	if !accepted {
		t.Error("accelerated mode should bucket by minute after the switch")
	}
}

func TestModePersistsAcrossEngines(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	adapter := newMapAdapter()
	e, _ := New(adapter, WithClock(func() time.Time { return now }))

	if err := e.SetMode(period.ModeAccelerated); err != nil {
		t.Fatalf("set mode: %v", err)
	}

	reloaded, err := New(adapter, WithClock(func() time.Time { return now }))
	if err != nil {
		t.Fatalf("reload engine: %v", err)
	}
	if reloaded.Mode() != period.ModeAccelerated {
		t.Errorf("mode = %q, want accelerated after reload", reloaded.Mode())
	}
}

func TestRemoveGroupIdempotent(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	e, adapter := newTestEngine(t, &now)

	e.AddLog(1, "Run", true)
	if err := e.RemoveGroup(1); err != nil {
		t.Fatalf("remove group: %v", err)
	}
	if e.Group(1) != nil {
		t.Error("expected group gone after removal")
	}

	savesBefore := adapter.saves
	if err := e.RemoveGroup(1); err != nil {
		t.Fatalf("second remove: %v", err)
	}
	if adapter.saves != savesBefore {
		t.Error("removing an absent group must not issue a write")
	}
	if got := e.LogsCount(1); got != 0 {
		t.Errorf("count after removal = %d, want 0", got)
	}
}

func TestRenameGroup(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	e, _ := newTestEngine(t, &now)

	e.AddLog(1, "Old name", true)
	now = now.AddDate(0, 0, 1)
	e.AddLog(1, "Old name", false)

	before := e.Group(1)
	if err := e.RenameGroup(1, "New name"); err != nil {
		t.Fatalf("rename: %v", err)
	}

	after := e.Group(1)
	if after.ChallengeName != "New name" {
		t.Errorf("name = %q, want %q", after.ChallengeName, "New name")
	}
	if len(after.Logs) != len(before.Logs) {
		t.Errorf("logs length changed: %d -> %d", len(before.Logs), len(after.Logs))
	}
	for i := range after.Logs {
		if !after.Logs[i].Date.Equal(before.Logs[i].Date) ||
			after.Logs[i].Status != before.Logs[i].Status ||
			after.Logs[i].Timestamp != before.Logs[i].Timestamp {
			t.Errorf("log[%d] mutated by rename", i)
		}
	}
}

func TestRenameAbsentGroupIsNoOp(t *testing.T) {
	now := time.Now()
	e, adapter := newTestEngine(t, &now)

	if err := e.RenameGroup(99, "whatever"); err != nil {
		t.Fatalf("rename absent: %v", err)
	}
	if adapter.saves != 0 {
		t.Error("renaming an absent group must not issue a write")
	}
}

func TestAddLogSurvivesWriteFailure(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	e, adapter := newTestEngine(t, &now)

	adapter.failSave = true
	accepted, err := e.AddLog(1, "Run", true)
	if !accepted {
		t.Error("in-memory mutation must be applied before the write")
	}
	if err == nil {
		t.Error("failed write must be observable")
	}
	// Engine state already reflects the mutation.
	if got := e.LogsCount(1); got != 1 {
		t.Errorf("count = %d, want 1", got)
	}
	if !e.HasLoggedInCurrentPeriod(1) {
		t.Error("expected logged state despite write failure")
	}
}

func TestGroupsReloadFromAdapter(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	adapter := newMapAdapter()
	e, _ := New(adapter, WithClock(func() time.Time { return now }))

	e.AddLog(7, "Stretch", true)
	now = now.AddDate(0, 0, 1)
	e.AddLog(7, "Stretch", true)

	reloaded, err := New(adapter, WithClock(func() time.Time { return now }))
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got := reloaded.LogsCount(7); got != 2 {
		t.Errorf("count after reload = %d, want 2", got)
	}
	g := reloaded.Group(7)
	if g == nil || g.ChallengeName != "Stretch" {
		t.Fatalf("group = %+v, want name Stretch", g)
	}
}

func TestManagerCachesPerOwner(t *testing.T) {
	adapters := make(map[string]*mapAdapter)
	m := NewManager(func(owner string) Adapter {
		a := newMapAdapter()
		adapters[owner] = a
		return a
	}, nil)

	a1, err := m.Engine("user:1")
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	a2, _ := m.Engine("user:1")
	if a1 != a2 {
		t.Error("expected cached engine for same owner")
	}

	b, _ := m.Engine("guest:abc")
	if a1 == b {
		t.Error("expected distinct engines per owner")
	}
	if len(adapters) != 2 {
		t.Errorf("adapters created = %d, want 2", len(adapters))
	}

	m.Evict("user:1")
	a3, _ := m.Engine("user:1")
	if a1 == a3 {
		t.Error("expected fresh engine after eviction")
	}
}
