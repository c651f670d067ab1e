package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/challengerdaily/challengerdaily/internal/logbook"
	"github.com/challengerdaily/challengerdaily/internal/model"
)

func TestCreateLogOncePerPeriod(t *testing.T) {
	_, cs, lm := setupHandlerEnv(t)
	h := NewLogHandler(cs, lm, nil, slog.Default())

	ch, _ := cs.Create("user:1", "Run daily", 30)

	req := withID(authedRequest("POST", "/api/challenges/1/logs", strings.NewReader(`{"status":true}`), "user:1"), ch.ID)
	rec := httptest.NewRecorder()
	h.CreateLog(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("first log: status = %d, want %d", rec.Code, http.StatusCreated)
	}
	var entry model.LogEntry
	if err := json.NewDecoder(rec.Body).Decode(&entry); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !entry.Status {
		t.Error("expected completed entry")
	}

	// Same period → rejected
	req = withID(authedRequest("POST", "/api/challenges/1/logs", strings.NewReader(`{"status":true}`), "user:1"), ch.ID)
	rec = httptest.NewRecorder()
	h.CreateLog(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate log: status = %d, want %d", rec.Code, http.StatusConflict)
	}
	var errResp map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&errResp); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if errResp["error"] != "already logged this period" {
		t.Errorf("error = %q, want %q", errResp["error"], "already logged this period")
	}
}

func TestCreateLogDefaultsToCompleted(t *testing.T) {
	_, cs, lm := setupHandlerEnv(t)
	h := NewLogHandler(cs, lm, nil, slog.Default())

	ch, _ := cs.Create("user:1", "Read", 30)

	req := withID(authedRequest("POST", "/api/challenges/1/logs", strings.NewReader(`{}`), "user:1"), ch.ID)
	rec := httptest.NewRecorder()
	h.CreateLog(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusCreated)
	}
	var entry model.LogEntry
	json.NewDecoder(rec.Body).Decode(&entry)
	if !entry.Status {
		t.Error("omitted status should default to completed")
	}
}

func TestCreateLogUnknownChallenge(t *testing.T) {
	_, cs, lm := setupHandlerEnv(t)
	h := NewLogHandler(cs, lm, nil, slog.Default())

	req := withID(authedRequest("POST", "/api/challenges/9/logs", strings.NewReader(`{}`), "user:1"), 9)
	rec := httptest.NewRecorder()
	h.CreateLog(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestProgress(t *testing.T) {
	_, cs, lm := setupHandlerEnv(t)
	logs := NewLogHandler(cs, lm, nil, slog.Default())

	ch, _ := cs.Create("user:1", "Stretch", 10)
	engine, _ := lm.Engine("user:1")
	engine.AddLog(ch.ID, ch.Title, true)

	req := withID(authedRequest("GET", "/api/challenges/1/progress", nil, "user:1"), ch.ID)
	rec := httptest.NewRecorder()
	logs.Progress(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	var got progressResponse
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Count != 1 {
		t.Errorf("count = %d, want 1", got.Count)
	}
	if got.Percent != 10 {
		t.Errorf("percent = %v, want 10", got.Percent)
	}
	if len(got.Dense) != 1 {
		t.Errorf("dense length = %d, want 1 (one period since creation)", len(got.Dense))
	}
	if len(got.Dense) == 1 && got.Dense[0] != 1 {
		t.Errorf("dense[0] = %d, want 1", got.Dense[0])
	}
}

func TestProgressMissExcluded(t *testing.T) {
	_, cs, lm := setupHandlerEnv(t)
	logs := NewLogHandler(cs, lm, nil, slog.Default())

	ch, _ := cs.Create("user:1", "Meditate", 10)
	engine, _ := lm.Engine("user:1")
	engine.AddLog(ch.ID, ch.Title, false) // explicit miss

	req := withID(authedRequest("GET", "/api/challenges/1/progress", nil, "user:1"), ch.ID)
	rec := httptest.NewRecorder()
	logs.Progress(rec, req)

	var got progressResponse
	json.NewDecoder(rec.Body).Decode(&got)
	if got.Count != 0 {
		t.Errorf("count = %d, want 0 (miss must not count)", got.Count)
	}
}

func TestCalendar(t *testing.T) {
	_, cs, lm := setupHandlerEnv(t)
	logs := NewLogHandler(cs, lm, nil, slog.Default())

	ch, _ := cs.Create("user:1", "Walk", 10)
	engine, _ := lm.Engine("user:1")
	engine.AddLog(ch.ID, ch.Title, true)

	req := withID(authedRequest("GET", "/api/challenges/1/calendar", nil, "user:1"), ch.ID)
	rec := httptest.NewRecorder()
	logs.Calendar(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	var cells []logbook.CalendarCell
	if err := json.NewDecoder(rec.Body).Decode(&cells); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(cells) != 1 {
		t.Fatalf("cells = %d, want 1", len(cells))
	}
	if !cells[0].HasLog {
		t.Error("expected today's cell to carry the log")
	}
	if !cells[0].IsToday {
		t.Error("expected today's cell to be marked current")
	}
}
