package store

import (
	"testing"
	"time"
)

func TestAccountGetOrCreate(t *testing.T) {
	as := NewAccountStore(setupTestDB(t))

	a, err := as.GetOrCreate("guest:abc")
	if err != nil {
		t.Fatalf("get or create: %v", err)
	}
	if a.Upgraded {
		t.Error("new account should not be upgraded")
	}
	if a.FirstSeenAt.IsZero() {
		t.Error("first_seen_at should be set")
	}

	again, err := as.GetOrCreate("guest:abc")
	if err != nil {
		t.Fatalf("second get or create: %v", err)
	}
	if !again.FirstSeenAt.Equal(a.FirstSeenAt) {
		t.Error("first_seen_at must not change on re-read")
	}
}

func TestAccountMarkUpgraded(t *testing.T) {
	as := NewAccountStore(setupTestDB(t))

	as.GetOrCreate("user:1")
	if err := as.MarkUpgraded("user:1"); err != nil {
		t.Fatalf("mark upgraded: %v", err)
	}

	a, _ := as.Get("user:1")
	if !a.Upgraded {
		t.Error("expected upgraded")
	}
	if a.UpgradedAt == nil {
		t.Fatal("upgraded_at should be set")
	}
	first := *a.UpgradedAt

	// Webhook retry keeps the original upgrade time
	time.Sleep(10 * time.Millisecond)
	if err := as.MarkUpgraded("user:1"); err != nil {
		t.Fatalf("re-mark: %v", err)
	}
	a, _ = as.Get("user:1")
	if !a.UpgradedAt.Equal(first) {
		t.Errorf("upgraded_at changed on retry: %v -> %v", first, a.UpgradedAt)
	}
}

func TestAccountStripeCustomerLookup(t *testing.T) {
	as := NewAccountStore(setupTestDB(t))

	as.GetOrCreate("user:1")
	if err := as.SetStripeCustomerID("user:1", "cus_123"); err != nil {
		t.Fatalf("set customer: %v", err)
	}

	a, err := as.GetByStripeCustomerID("cus_123")
	if err != nil {
		t.Fatalf("get by customer: %v", err)
	}
	if a == nil || a.OwnerID != "user:1" {
		t.Fatalf("a = %+v, want owner user:1", a)
	}

	missing, err := as.GetByStripeCustomerID("cus_nope")
	if err != nil {
		t.Fatalf("get missing: %v", err)
	}
	if missing != nil {
		t.Error("expected nil for unknown customer")
	}
}
