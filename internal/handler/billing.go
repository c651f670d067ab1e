package handler

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	stripe "github.com/stripe/stripe-go/v82"

	"github.com/challengerdaily/challengerdaily/internal/auth"
	"github.com/challengerdaily/challengerdaily/internal/billing"
	"github.com/challengerdaily/challengerdaily/internal/license"
	"github.com/challengerdaily/challengerdaily/internal/store"
)

type BillingHandler struct {
	client   *billing.Client
	accounts *store.AccountStore
	users    *store.UserStore
	license  *license.Service
	logger   *slog.Logger
}

func NewBillingHandler(bc *billing.Client, as *store.AccountStore, us *store.UserStore, ls *license.Service, logger *slog.Logger) *BillingHandler {
	return &BillingHandler{
		client:   bc,
		accounts: as,
		users:    us,
		license:  ls,
		logger:   logger,
	}
}

// Checkout starts a one-time payment session for the lifetime upgrade.
func (h *BillingHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	if !h.client.Enabled() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "billing not configured"})
		return
	}

	id, _ := auth.FromContext(r.Context())

	account, err := h.accounts.GetOrCreate(id.OwnerID)
	if err != nil {
		h.logger.Error("get account", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	if account.Upgraded {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "already upgraded"})
		return
	}

	// Registered users get a Stripe customer so receipts reach their inbox
	customerID := account.StripeCustomerID
	if customerID == "" && !id.Guest {
		user, err := h.users.GetByID(id.UserID)
		if err == nil && user != nil {
			customerID, err = h.client.CreateCustomer(user.Email)
			if err != nil {
				h.logger.Error("create stripe customer", "error", err)
			} else if err := h.accounts.SetStripeCustomerID(id.OwnerID, customerID); err != nil {
				h.logger.Error("save stripe customer", "error", err)
			}
		}
	}

	url, err := h.client.CreateCheckoutSession(id.OwnerID, customerID)
	if err != nil {
		h.logger.Error("create checkout session", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to start checkout"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}

// Webhook handles Stripe events. checkout.session.completed marks the
// paying owner upgraded.
func (h *BillingHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 65536))
	if err != nil {
		http.Error(w, "read body", http.StatusBadRequest)
		return
	}

	event, err := h.client.ConstructWebhookEvent(body, r.Header.Get("Stripe-Signature"))
	if err != nil {
		http.Error(w, "invalid signature", http.StatusBadRequest)
		return
	}

	if event.Type == "checkout.session.completed" {
		h.handleCheckoutCompleted(event)
	}

	w.WriteHeader(http.StatusOK)
}

func (h *BillingHandler) handleCheckoutCompleted(event stripe.Event) {
	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		h.logger.Error("webhook: unmarshal checkout session", "error", err)
		return
	}

	ownerID := sess.ClientReferenceID
	if ownerID == "" {
		h.logger.Error("webhook: checkout session missing client reference")
		return
	}

	if _, err := h.accounts.GetOrCreate(ownerID); err != nil {
		h.logger.Error("webhook: get account", "owner", ownerID, "error", err)
		return
	}
	if err := h.accounts.MarkUpgraded(ownerID); err != nil {
		h.logger.Error("webhook: mark upgraded", "owner", ownerID, "error", err)
		return
	}
	if sess.Customer != nil {
		if err := h.accounts.SetStripeCustomerID(ownerID, sess.Customer.ID); err != nil {
			h.logger.Error("webhook: save stripe customer", "owner", ownerID, "error", err)
		}
	}

	h.logger.Info("checkout completed", "owner", ownerID)
}

type accountResponse struct {
	OwnerID      string `json:"owner_id"`
	Guest        bool   `json:"guest"`
	Access       license.Access `json:"access"`
	UpgradeToken string         `json:"upgrade_token,omitempty"`
}

// Account reports the caller's trial/upgrade state. Upgraded owners also
// receive a portable upgrade token they can redeem elsewhere.
func (h *BillingHandler) Account(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())

	access, err := h.license.Check(id.OwnerID)
	if err != nil {
		h.logger.Error("check access", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	resp := accountResponse{
		OwnerID: id.OwnerID,
		Guest:   id.Guest,
		Access:  access,
	}
	if access.Upgraded {
		token, err := h.license.MintUpgradeToken(id.OwnerID)
		if err != nil {
			h.logger.Error("mint upgrade token", "error", err)
		} else {
			resp.UpgradeToken = token
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// Redeem applies an upgrade token to the calling owner. Covers the guest
// who paid on one device and wants the upgrade on another.
func (h *BillingHandler) Redeem(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())

	var req struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Token == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "token is required"})
		return
	}

	mintedFor, err := h.license.VerifyUpgradeToken(req.Token)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid upgrade token"})
		return
	}

	// The minting owner must actually be upgraded
	source, err := h.accounts.Get(mintedFor)
	if err != nil {
		h.logger.Error("redeem lookup", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	if source == nil || !source.Upgraded {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid upgrade token"})
		return
	}

	if _, err := h.accounts.GetOrCreate(id.OwnerID); err != nil {
		h.logger.Error("redeem account", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	if err := h.accounts.MarkUpgraded(id.OwnerID); err != nil {
		h.logger.Error("redeem mark upgraded", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"upgraded": true})
}
