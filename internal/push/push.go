package push

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/sethvargo/go-retry"

	"github.com/challengerdaily/challengerdaily/internal/model"
)

// ErrExpired is returned when a push subscription is no longer valid (410 Gone).
var ErrExpired = errors.New("push subscription expired")

// Payload is the JSON sent to the push service.
type Payload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	URL   string `json:"url,omitempty"`
	Tag   string `json:"tag,omitempty"`
}

// Config holds VAPID configuration.
type Config struct {
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	Subscriber      string
}

// Service handles sending web push notifications.
type Service struct {
	publicKey  string
	privateKey string
	subscriber string
}

// NewService creates a push service with VAPID keys.
func NewService(cfg Config) *Service {
	if cfg.Subscriber == "" {
		cfg.Subscriber = "mailto:noreply@challengerdaily.app"
	}
	return &Service{
		publicKey:  cfg.VAPIDPublicKey,
		privateKey: cfg.VAPIDPrivateKey,
		subscriber: cfg.Subscriber,
	}
}

// Enabled reports whether VAPID keys are configured.
func (s *Service) Enabled() bool {
	return s.publicKey != "" && s.privateKey != ""
}

// VAPIDPublicKey returns the VAPID public key for client-side subscription.
func (s *Service) VAPIDPublicKey() string {
	return s.publicKey
}

// Send delivers a push notification, retrying transient push-service
// failures with fibonacci backoff. A 410 returns ErrExpired so callers
// can drop the subscription.
func (s *Service) Send(ctx context.Context, sub *model.PushSubscription, payload Payload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	backoff := retry.WithMaxRetries(3, retry.NewFibonacci(500*time.Millisecond))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		resp, err := webpush.SendNotification(data, &webpush.Subscription{
			Endpoint: sub.Endpoint,
			Keys: webpush.Keys{
				P256dh: sub.P256dhKey,
				Auth:   sub.AuthKey,
			},
		}, &webpush.Options{
			VAPIDPublicKey:  s.publicKey,
			VAPIDPrivateKey: s.privateKey,
			Subscriber:      s.subscriber,
			TTL:             86400,
		})
		if err != nil {
			return retry.RetryableError(fmt.Errorf("send push: %w", err))
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusGone:
			return ErrExpired
		case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
			return retry.RetryableError(fmt.Errorf("push service returned %d", resp.StatusCode))
		case resp.StatusCode >= 400:
			return fmt.Errorf("push service returned %d", resp.StatusCode)
		}
		return nil
	})
}

// GenerateVAPIDKeys generates a new ECDSA P-256 key pair for VAPID.
func GenerateVAPIDKeys() (publicKey, privateKey string, err error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return "", "", fmt.Errorf("generate ECDSA key: %w", err)
	}

	pubBytes := elliptic.Marshal(elliptic.P256(), key.PublicKey.X, key.PublicKey.Y)
	publicKey = base64.RawURLEncoding.EncodeToString(pubBytes)
	privateKey = base64.RawURLEncoding.EncodeToString(key.D.Bytes())

	return publicKey, privateKey, nil
}
