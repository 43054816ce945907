package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"tipbox/internal/payments"
	"tipbox/internal/store"
	ws "tipbox/internal/websocket"
)

// WebhookHandler reconciles gateway callbacks. Deliveries may arrive out
// of order, duplicated, or not at all; every branch below is safe to
// replay.
type WebhookHandler struct {
	Ledger  store.Ledger
	Gateway payments.Gateway
	Hub     *ws.Hub
}

func NewWebhookHandler(ledger store.Ledger, gateway payments.Gateway, hub *ws.Hub) *WebhookHandler {
	return &WebhookHandler{Ledger: ledger, Gateway: gateway, Hub: hub}
}

// PaymentNotification is the callback body. Only TransactionID is used;
// the status and amount the gateway POSTs are advisory and never trusted.
type PaymentNotification struct {
	TransactionID string `json:"transaction_id" binding:"required"`
	Status        string `json:"status"`
	Amount        int64  `json:"amount"`
}

func (h *WebhookHandler) HandlePaymentNotification(c *gin.Context) {
	var notification PaymentNotification
	if err := c.ShouldBindJSON(&notification); err != nil {
		log.Println("Failed to bind payment notification:", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid notification format"})
		return
	}

	txnID := notification.TransactionID
	kind := payments.KindOf(txnID)
	if kind == payments.KindUnknown {
		log.Println("Notification for unroutable transaction id:", txnID)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown transaction id"})
		return
	}

	// Re-verify against the gateway; the callback body is not a source
	// of truth.
	verified, err := h.Gateway.Verify(txnID)
	if err != nil {
		log.Println("Failed to verify transaction with gateway:", err)
		c.JSON(http.StatusNotFound, gin.H{"error": "Transaction not found or API error"})
		return
	}

	if verified.Outcome == payments.OutcomePending {
		log.Println("Received non-settled transaction status:", verified.RawStatus)
		c.JSON(http.StatusOK, gin.H{"success": true, "status": "ok (not settled)"})
		return
	}

	switch kind {
	case payments.KindDonation:
		h.reconcileDonation(c, txnID, verified)
	case payments.KindSubscription:
		h.reconcileSubscription(c, txnID, verified)
	}
}

func (h *WebhookHandler) reconcileDonation(c *gin.Context, txnID string, verified *payments.VerifyResult) {
	if verified.Outcome == payments.OutcomeFailed {
		// No credit was applied at intake, so failing is a pure status flip.
		if _, err := h.Ledger.FailDonation(txnID); err != nil {
			log.Println("Failed to mark donation failed:", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "status": "ok (failed)"})
		return
	}

	donation, applied, err := h.Ledger.SettleDonation(txnID, verified.PaymentID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			log.Println("Failed to find donation by txn_id:", txnID)
			c.JSON(http.StatusNotFound, gin.H{"error": "Donation not found"})
			return
		}
		log.Println("Failed to settle donation:", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}
	if !applied {
		log.Println("Duplicate webhook, already settled:", txnID)
		c.JSON(http.StatusOK, gin.H{"success": true, "status": "ok (duplicate)"})
		return
	}

	log.Printf("SUCCESS: Settled donation %s for creator %d", txnID, donation.CreatorID)

	donorName := "Anonymous"
	if !donation.IsAnonymous && donation.DonorName.Valid {
		donorName = donation.DonorName.String
	}
	h.Hub.BroadcastAlert <- ws.DonationAlert{
		TargetCreatorID: donation.CreatorID,
		DonorName:       donorName,
		Amount:          donation.Amount,
		Message:         donation.Message.String,
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *WebhookHandler) reconcileSubscription(c *gin.Context, txnID string, verified *payments.VerifyResult) {
	var applied bool
	var err error
	if verified.Outcome == payments.OutcomeFailed {
		applied, err = h.Ledger.DeactivateSubscriptionByTxnID(txnID)
	} else {
		applied, err = h.Ledger.ActivateSubscriptionByTxnID(txnID)
	}
	if err != nil {
		log.Println("Failed to update subscription status:", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}
	if !applied {
		log.Println("Duplicate or stale subscription webhook:", txnID)
		c.JSON(http.StatusOK, gin.H{"success": true, "status": "ok (duplicate)"})
		return
	}

	log.Printf("SUCCESS: Reconciled subscription payment %s (%s)", txnID, verified.Outcome)
	c.JSON(http.StatusOK, gin.H{"success": true})
}
