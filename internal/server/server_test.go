package server

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/challengerdaily/challengerdaily/internal/database"
	"github.com/challengerdaily/challengerdaily/internal/localstore"
	"github.com/challengerdaily/challengerdaily/internal/model"
)

func setupTestServer(t *testing.T) http.Handler {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("enable foreign keys: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	guests, err := localstore.New(t.TempDir())
	if err != nil {
		t.Fatalf("guest store: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := New(db, guests, Config{}, logger)
	return srv.Router()
}

func TestHealth(t *testing.T) {
	router := setupTestServer(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	var got map[string]string
	json.NewDecoder(rec.Body).Decode(&got)
	if got["status"] != "ok" {
		t.Errorf("status = %q, want ok", got["status"])
	}
}

func TestGuestGetsCookieAndCanLog(t *testing.T) {
	router := setupTestServer(t)

	// First request provisions a guest identity
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("POST", "/api/challenges",
		strings.NewReader(`{"title":"Run daily","days":30}`)))

	if rec.Code != http.StatusCreated {
		t.Fatalf("create: status = %d, want %d: %s", rec.Code, http.StatusCreated, rec.Body)
	}
	cookies := rec.Result().Cookies()
	if len(cookies) == 0 {
		t.Fatal("expected a guest cookie on first contact")
	}

	var ch model.Challenge
	if err := json.NewDecoder(rec.Body).Decode(&ch); err != nil {
		t.Fatalf("decode: %v", err)
	}

	// Same guest logs progress
	req := httptest.NewRequest("POST", "/api/challenges/1/logs", strings.NewReader(`{}`))
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("log: status = %d, want %d: %s", rec.Code, http.StatusCreated, rec.Body)
	}

	// A fresh client with no cookie is a different guest and sees nothing
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/api/challenges", nil))
	var list []model.Challenge
	json.NewDecoder(rec.Body).Decode(&list)
	if len(list) != 0 {
		t.Errorf("new guest sees %d challenges, want 0", len(list))
	}
}

func TestRegisteredUserFlow(t *testing.T) {
	router := setupTestServer(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("POST", "/api/register",
		strings.NewReader(`{"email":"alice@example.com","password":"hunter2hunter2"}`)))
	if rec.Code != http.StatusCreated {
		t.Fatalf("register: status = %d: %s", rec.Code, rec.Body)
	}
	cookies := rec.Result().Cookies()

	req := httptest.NewRequest("POST", "/api/challenges",
		strings.NewReader(`{"title":"Read","days":10}`))
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: status = %d: %s", rec.Code, rec.Body)
	}

	var ch model.Challenge
	json.NewDecoder(rec.Body).Decode(&ch)
	if !strings.HasPrefix(ch.OwnerID, "user:") {
		t.Errorf("owner = %q, want user: prefix", ch.OwnerID)
	}
}

func TestBackupRequiresRegisteredUser(t *testing.T) {
	router := setupTestServer(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/api/backup/status", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("guest backup status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}
