package middleware

import (
	"net/http"
	"time"

	"github.com/challengerdaily/challengerdaily/internal/auth"
	"github.com/challengerdaily/challengerdaily/internal/store"

	"github.com/google/uuid"
)

const (
	sessionCookieName = "challenger_session"
	guestCookieName   = "challenger_guest"
)

// ResolveIdentity populates the request identity. A valid session cookie
// wins; otherwise the caller operates as a guest, receiving a fresh guest
// cookie on first contact. Handlers never see an anonymous request.
func ResolveIdentity(sessionStore *store.SessionStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cookie, err := r.Cookie(sessionCookieName); err == nil && cookie.Value != "" {
				sess, err := sessionStore.GetByToken(cookie.Value)
				if err == nil && sess != nil {
					id := auth.Identity{
						OwnerID:   auth.UserOwnerID(sess.UserID),
						UserID:    sess.UserID,
						SessionID: sess.ID,
					}
					next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), id)))
					return
				}
			}

			guestID := ""
			if cookie, err := r.Cookie(guestCookieName); err == nil {
				guestID = cookie.Value
			}
			if guestID == "" {
				guestID = uuid.NewString()
				http.SetCookie(w, &http.Cookie{
					Name:     guestCookieName,
					Value:    guestID,
					Path:     "/",
					Expires:  time.Now().Add(365 * 24 * time.Hour),
					HttpOnly: true,
					SameSite: http.SameSiteLaxMode,
				})
			}

			id := auth.Identity{
				OwnerID: auth.GuestOwnerID(guestID),
				Guest:   true,
			}
			next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), id)))
		})
	}
}

// RequireUser rejects guests with 401; used for routes that only make
// sense for registered accounts.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := auth.FromContext(r.Context())
		if !ok || id.Guest {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error":"login required"}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}
