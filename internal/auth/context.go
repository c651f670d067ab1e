package auth

import (
	"context"
	"strconv"
)

type contextKey struct{}

// Identity is the resolved caller: a registered user (session cookie) or
// a guest (guest cookie). OwnerID is the string every store keys data by.
type Identity struct {
	OwnerID   string
	UserID    int64 // 0 for guests
	SessionID int64 // 0 for guests
	Guest     bool
}

// UserOwnerID builds the owner key for a registered user.
func UserOwnerID(userID int64) string {
	return "user:" + strconv.FormatInt(userID, 10)
}

// GuestOwnerID builds the owner key for a guest.
func GuestOwnerID(guestID string) string {
	return "guest:" + guestID
}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(contextKey{}).(Identity)
	return id, ok
}

// OwnerID returns the caller's owner key, or "" when unauthenticated.
func OwnerID(ctx context.Context) string {
	id, ok := FromContext(ctx)
	if !ok {
		return ""
	}
	return id.OwnerID
}

func UserID(ctx context.Context) int64 {
	id, ok := FromContext(ctx)
	if !ok {
		return 0
	}
	return id.UserID
}

func IsGuest(ctx context.Context) bool {
	id, ok := FromContext(ctx)
	if !ok {
		return false
	}
	return id.Guest
}
