package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/challengerdaily/challengerdaily/internal/auth"
	"github.com/challengerdaily/challengerdaily/internal/database"
	"github.com/challengerdaily/challengerdaily/internal/logbook"
	"github.com/challengerdaily/challengerdaily/internal/model"
	"github.com/challengerdaily/challengerdaily/internal/store"
)

func setupHandlerEnv(t *testing.T) (*sql.DB, *store.ChallengeStore, *logbook.Manager) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("enable foreign keys: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	kv := store.NewKVStore(db)
	manager := logbook.NewManager(func(ownerID string) logbook.Adapter {
		return kv.ForOwner(ownerID)
	}, nil)
	return db, store.NewChallengeStore(db), manager
}

func authedRequest(method, path string, body io.Reader, ownerID string) *http.Request {
	req := httptest.NewRequest(method, path, body)
	ctx := auth.WithIdentity(context.Background(), auth.Identity{OwnerID: ownerID})
	return req.WithContext(ctx)
}

func withID(req *http.Request, id int64) *http.Request {
	req.SetPathValue("id", strconv.FormatInt(id, 10))
	return req
}

func TestCreateChallenge(t *testing.T) {
	_, cs, lm := setupHandlerEnv(t)
	h := NewChallengeHandler(cs, lm, nil, slog.Default())

	req := authedRequest("POST", "/api/challenges", strings.NewReader(`{"title":"Run daily","days":30}`), "user:1")
	rec := httptest.NewRecorder()
	h.Create(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusCreated)
	}
	var got model.Challenge
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Title != "Run daily" {
		t.Errorf("title = %q, want %q", got.Title, "Run daily")
	}
	if got.Days != 30 {
		t.Errorf("days = %d, want 30", got.Days)
	}
	if got.OwnerID != "user:1" {
		t.Errorf("owner = %q, want user:1", got.OwnerID)
	}
}

func TestCreateChallengeValidation(t *testing.T) {
	_, cs, lm := setupHandlerEnv(t)
	h := NewChallengeHandler(cs, lm, nil, slog.Default())

	cases := []struct {
		name string
		body string
	}{
		{"missing title", `{"days":30}`},
		{"blank title", `{"title":"   ","days":30}`},
		{"zero days", `{"title":"x","days":0}`},
		{"negative days", `{"title":"x","days":-5}`},
		{"bad json", `{`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := authedRequest("POST", "/api/challenges", strings.NewReader(tc.body), "user:1")
			rec := httptest.NewRecorder()
			h.Create(rec, req)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
			}
		})
	}
}

func TestListChallengesOwnerScoped(t *testing.T) {
	_, cs, lm := setupHandlerEnv(t)
	h := NewChallengeHandler(cs, lm, nil, slog.Default())

	cs.Create("user:1", "Mine", 10)
	cs.Create("guest:abc", "Theirs", 10)

	req := authedRequest("GET", "/api/challenges", nil, "user:1")
	rec := httptest.NewRecorder()
	h.List(rec, req)

	var got []model.Challenge
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("challenges = %d, want 1", len(got))
	}
	if got[0].Title != "Mine" {
		t.Errorf("title = %q, want %q", got[0].Title, "Mine")
	}
}

func TestGetChallengeNotFound(t *testing.T) {
	_, cs, lm := setupHandlerEnv(t)
	h := NewChallengeHandler(cs, lm, nil, slog.Default())

	req := withID(authedRequest("GET", "/api/challenges/99", nil, "user:1"), 99)
	rec := httptest.NewRecorder()
	h.Get(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestGetChallengeForeignOwner(t *testing.T) {
	_, cs, lm := setupHandlerEnv(t)
	h := NewChallengeHandler(cs, lm, nil, slog.Default())

	ch, _ := cs.Create("guest:abc", "Theirs", 10)

	req := withID(authedRequest("GET", "/api/challenges/1", nil, "user:1"), ch.ID)
	rec := httptest.NewRecorder()
	h.Get(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d (foreign challenge hidden)", rec.Code, http.StatusNotFound)
	}
}

func TestUpdateChallengePropagatesRename(t *testing.T) {
	_, cs, lm := setupHandlerEnv(t)
	h := NewChallengeHandler(cs, lm, nil, slog.Default())

	ch, _ := cs.Create("user:1", "Old name", 10)
	engine, _ := lm.Engine("user:1")
	engine.AddLog(ch.ID, ch.Title, true)

	req := withID(authedRequest("PUT", "/api/challenges/1", strings.NewReader(`{"title":"New name"}`), "user:1"), ch.ID)
	rec := httptest.NewRecorder()
	h.Update(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	group := engine.Group(ch.ID)
	if group == nil {
		t.Fatal("expected log group to survive rename")
	}
	if group.ChallengeName != "New name" {
		t.Errorf("group name = %q, want %q", group.ChallengeName, "New name")
	}
	if len(group.Logs) != 1 {
		t.Errorf("logs = %d, want 1 (rename must not drop entries)", len(group.Logs))
	}
}

func TestDeleteChallengeCascadesToLogs(t *testing.T) {
	_, cs, lm := setupHandlerEnv(t)
	h := NewChallengeHandler(cs, lm, nil, slog.Default())

	ch, _ := cs.Create("user:1", "Doomed", 10)
	engine, _ := lm.Engine("user:1")
	engine.AddLog(ch.ID, ch.Title, true)

	req := withID(authedRequest("DELETE", "/api/challenges/1", nil, "user:1"), ch.ID)
	rec := httptest.NewRecorder()
	h.Delete(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNoContent)
	}

	gone, _ := cs.GetByID(ch.ID, "user:1")
	if gone != nil {
		t.Error("challenge should be deleted")
	}
	if engine.Group(ch.ID) != nil {
		t.Error("log group should cascade with the challenge")
	}
}

func TestDeleteChallengeNotFound(t *testing.T) {
	_, cs, lm := setupHandlerEnv(t)
	h := NewChallengeHandler(cs, lm, nil, slog.Default())

	req := withID(authedRequest("DELETE", "/api/challenges/42", nil, "user:1"), 42)
	rec := httptest.NewRecorder()
	h.Delete(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}
