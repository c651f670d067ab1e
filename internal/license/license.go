package license

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/challengerdaily/challengerdaily/internal/auth"
	"github.com/challengerdaily/challengerdaily/internal/store"
)

const DefaultTrialDays = 14

// Config holds trial and upgrade-token configuration.
type Config struct {
	TrialDays int
	JWTSecret string
}

// Access is the result of a trial/upgrade check for one owner.
type Access struct {
	Upgraded      bool `json:"upgraded"`
	TrialDaysLeft int  `json:"trial_days_left"`
	Expired       bool `json:"expired"`
}

// Service decides whether an owner may keep writing data: upgraded
// accounts always can, trial accounts until TrialDays after first sight.
type Service struct {
	accounts  *store.AccountStore
	trialDays int
	secret    []byte
	now       func() time.Time
}

func NewService(accounts *store.AccountStore, cfg Config) *Service {
	if cfg.TrialDays <= 0 {
		cfg.TrialDays = DefaultTrialDays
	}
	return &Service{
		accounts:  accounts,
		trialDays: cfg.TrialDays,
		secret:    []byte(cfg.JWTSecret),
		now:       time.Now,
	}
}

// Check returns the owner's access state, creating a trial account on
// first sight.
func (s *Service) Check(ownerID string) (Access, error) {
	account, err := s.accounts.GetOrCreate(ownerID)
	if err != nil {
		return Access{}, fmt.Errorf("check access: %w", err)
	}
	if account.Upgraded {
		return Access{Upgraded: true}, nil
	}

	trialEnd := account.FirstSeenAt.Add(time.Duration(s.trialDays) * 24 * time.Hour)
	left := int(trialEnd.Sub(s.now()).Hours() / 24)
	if left < 0 {
		left = 0
	}
	return Access{
		TrialDaysLeft: left,
		Expired:       !s.now().Before(trialEnd),
	}, nil
}

// upgradeClaims carries the owner being upgraded. Minted after a
// successful payment, redeemed once to mark the account upgraded.
type upgradeClaims struct {
	jwt.RegisteredClaims
	OwnerID string `json:"owner_id"`
}

const upgradeTokenTTL = 24 * time.Hour

// MintUpgradeToken issues a short-lived token binding a completed
// payment to an owner.
func (s *Service) MintUpgradeToken(ownerID string) (string, error) {
	now := s.now()
	claims := upgradeClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   ownerID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(upgradeTokenTTL)),
		},
		OwnerID: ownerID,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign upgrade token: %w", err)
	}
	return signed, nil
}

var ErrInvalidToken = errors.New("invalid upgrade token")

// VerifyUpgradeToken validates a token and returns the owner it was
// minted for.
func (s *Service) VerifyUpgradeToken(tokenString string) (string, error) {
	var claims upgradeClaims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(func() time.Time { return s.now() }))
	if err != nil || !token.Valid {
		return "", ErrInvalidToken
	}
	if claims.OwnerID == "" {
		return "", ErrInvalidToken
	}
	return claims.OwnerID, nil
}

// RequireActive gates mutating requests: once the trial is over and the
// account is not upgraded, writes get 402 while reads stay open.
func (s *Service) RequireActive(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		default:
			next.ServeHTTP(w, r)
			return
		}

		ownerID := auth.OwnerID(r.Context())
		if ownerID == "" {
			next.ServeHTTP(w, r)
			return
		}
		access, err := s.Check(ownerID)
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		if access.Expired {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusPaymentRequired)
			w.Write([]byte(`{"error":"trial expired"}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}
