package billing

import (
	"fmt"

	stripe "github.com/stripe/stripe-go/v82"
	checksession "github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/customer"
	"github.com/stripe/stripe-go/v82/webhook"
)

type Config struct {
	SecretKey     string
	WebhookSecret string
	PriceID       string
	SuccessURL    string
	CancelURL     string
}

// Client wraps the Stripe API for the one-time lifetime upgrade.
type Client struct {
	cfg Config
}

func NewClient(cfg Config) *Client {
	stripe.Key = cfg.SecretKey
	return &Client{cfg: cfg}
}

// Enabled reports whether Stripe credentials are configured. Without
// them the app runs trial-only.
func (c *Client) Enabled() bool {
	return c.cfg.SecretKey != ""
}

// CreateCustomer creates a Stripe customer and returns the customer ID.
func (c *Client) CreateCustomer(email string) (string, error) {
	params := &stripe.CustomerParams{
		Email: stripe.String(email),
	}
	cust, err := customer.New(params)
	if err != nil {
		return "", fmt.Errorf("create stripe customer: %w", err)
	}
	return cust.ID, nil
}

// CreateCheckoutSession starts a one-time payment checkout for the
// upgrade. The owner ID travels in ClientReferenceID so the webhook can
// resolve who paid.
func (c *Client) CreateCheckoutSession(ownerID, customerID string) (string, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		ClientReferenceID: stripe.String(ownerID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(c.cfg.PriceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(c.cfg.SuccessURL),
		CancelURL:  stripe.String(c.cfg.CancelURL),
	}
	if customerID != "" {
		params.Customer = stripe.String(customerID)
	}
	sess, err := checksession.New(params)
	if err != nil {
		return "", fmt.Errorf("create checkout session: %w", err)
	}
	return sess.URL, nil
}

// ConstructWebhookEvent verifies the signature and returns the parsed event.
func (c *Client) ConstructWebhookEvent(payload []byte, sigHeader string) (stripe.Event, error) {
	return webhook.ConstructEvent(payload, sigHeader, c.cfg.WebhookSecret)
}
