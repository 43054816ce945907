package handlers

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"tipbox/internal/payments"
	"tipbox/internal/store"
)

// MonthlyRate is the flat subscription price per month, in currency units.
const MonthlyRate = 100

type SubscriptionHandler struct {
	Ledger   store.Ledger
	Gateway  payments.Gateway
	Simulate bool
}

func NewSubscriptionHandler(ledger store.Ledger, gateway payments.Gateway, simulate bool) *SubscriptionHandler {
	return &SubscriptionHandler{Ledger: ledger, Gateway: gateway, Simulate: simulate}
}

type SubscribeRequest struct {
	DurationMonths int `json:"duration_months" binding:"omitempty,gte=1"`
}

// extendPaidUntil computes the new paid-through date. A renewal made
// before expiry keeps the remaining paid time (extends from the existing
// date); a renewal after expiry starts fresh from today.
func extendPaidUntil(existing *time.Time, now time.Time, months int) time.Time {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	from := today
	if existing != nil && existing.After(from) {
		from = *existing
	}
	return from.AddDate(0, months, 0)
}

func (h *SubscriptionHandler) Subscribe(c *gin.Context) {
	userID := c.GetInt("userID")

	var req SubscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}
	months := req.DurationMonths
	if months == 0 {
		months = 1
	}
	amount := int64(MonthlyRate * months)

	var existing *time.Time
	current, err := h.Ledger.GetSubscriptionByUserID(userID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		log.Println("Failed to load subscription:", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error."})
		return
	}
	if current != nil {
		existing = &current.PaidUntil
	}

	paidUntil := extendPaidUntil(existing, time.Now(), months)

	if h.Simulate {
		txnID := payments.NewSimulatedTxnID(payments.KindSubscription)
		sub, err := h.Ledger.UpsertSubscription(userID, amount, paidUntil, true, txnID)
		if err != nil {
			log.Println("Failed to upsert subscription:", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error."})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"success":         true,
			"txn_id":          txnID,
			"subscription_id": sub.ID,
			"amount":          amount,
			"paid_until":      sub.PaidUntil,
		})
		return
	}

	// Gateway path: the row is written deactivated and only the webhook
	// reconciler, after verification, flips it active.
	txnID := payments.NewTxnID(payments.KindSubscription, userID)
	user, err := h.Ledger.GetUserByID(userID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	checkout, err := h.Gateway.CreateCheckout(txnID, amount, user.DisplayName)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Payment gateway error."})
		return
	}

	sub, err := h.Ledger.UpsertSubscription(userID, amount, paidUntil, false, txnID)
	if err != nil {
		log.Println("Failed to upsert subscription:", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error."})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":         true,
		"txn_id":          txnID,
		"subscription_id": sub.ID,
		"amount":          amount,
		"paid_until":      sub.PaidUntil,
		"payment_url":     checkout.RedirectURL,
	})
}

// GetMySubscription returns the caller's subscription row, if any.
func (h *SubscriptionHandler) GetMySubscription(c *gin.Context) {
	userID := c.GetInt("userID")

	sub, err := h.Ledger.GetSubscriptionByUserID(userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "No subscription yet"})
			return
		}
		log.Println("Failed to load subscription:", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error."})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"subscription":        sub,
		"accepting_donations": sub.AcceptingAt(time.Now()),
	})
}
