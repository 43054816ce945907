package handlers

import (
	"database/sql"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"tipbox/internal/models"
	"tipbox/internal/payments"
	"tipbox/internal/store"
	ws "tipbox/internal/websocket"
)

type DonationHandler struct {
	Ledger  store.Ledger
	Gateway payments.Gateway
	Hub     *ws.Hub
	// Simulate selects the instant-settle path (testing/demo deployments).
	// It is configuration, never request input.
	Simulate bool
}

func NewDonationHandler(ledger store.Ledger, gateway payments.Gateway, hub *ws.Hub, simulate bool) *DonationHandler {
	return &DonationHandler{Ledger: ledger, Gateway: gateway, Hub: hub, Simulate: simulate}
}

type CreateDonationRequest struct {
	Amount      int64  `json:"amount" binding:"required,gte=10"`
	DonorName   string `json:"donor_name"`
	DonorEmail  string `json:"donor_email" binding:"omitempty,email"`
	Message     string `json:"message"`
	IsAnonymous bool   `json:"is_anonymous"`
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func (h *DonationHandler) CreateDonation(c *gin.Context) {
	// Get username and validate request
	username := c.Param("username")
	var req CreateDonationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	creator, err := h.Ledger.GetUserByUsername(username)
	if err != nil || creator.Role != models.RoleCreator {
		log.Println("Failed to find creator:", username)
		c.JSON(http.StatusNotFound, gin.H{"error": "Creator not found"})
		return
	}

	// Donations to an inactive creator are rejected, never silently taken.
	sub, err := h.Ledger.GetSubscriptionByUserID(creator.ID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		log.Println("Failed to load subscription for creator:", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error."})
		return
	}
	if !sub.AcceptingAt(time.Now()) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Creator is not accepting donations right now"})
		return
	}

	donorName := req.DonorName
	donorEmail := req.DonorEmail
	if req.IsAnonymous {
		donorName = ""
		donorEmail = ""
	}

	displayName := donorName
	if displayName == "" {
		displayName = "Anonymous"
	}

	if h.Simulate {
		h.settleInstantly(c, creator, &req, donorName, donorEmail, displayName)
		return
	}

	// Gateway path: checkout first, so a rejected initiation leaves no
	// orphaned row; the credit is deferred to the webhook reconciler.
	txnID := payments.NewTxnID(payments.KindDonation, creator.ID)
	checkout, err := h.Gateway.CreateCheckout(txnID, req.Amount, displayName)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Payment gateway error."})
		return
	}

	donation := &models.Donation{
		CreatorID:     creator.ID,
		Amount:        req.Amount,
		DonorName:     nullString(donorName),
		DonorEmail:    nullString(donorEmail),
		Message:       nullString(req.Message),
		IsAnonymous:   req.IsAnonymous,
		PaymentStatus: models.PaymentPending,
		TxnID:         txnID,
		PaymentID:     nullString(checkout.PaymentID),
	}
	id, err := h.Ledger.CreateDonation(donation)
	if err != nil {
		log.Println("Failed to create pending donation:", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error."})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"txn_id":      txnID,
		"donation_id": id,
		"payment_url": checkout.RedirectURL,
	})
}

// GetMyDonations lists the caller's received donations, newest first.
func (h *DonationHandler) GetMyDonations(c *gin.Context) {
	userID := c.GetInt("userID")

	donations, err := h.Ledger.ListDonationsByCreator(userID, false)
	if err != nil {
		log.Println("Failed to get donations:", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not fetch donations"})
		return
	}

	c.JSON(http.StatusOK, donations)
}

func (h *DonationHandler) settleInstantly(c *gin.Context, creator *models.User, req *CreateDonationRequest, donorName, donorEmail, displayName string) {
	txnID := payments.NewSimulatedTxnID(payments.KindDonation)
	donation := &models.Donation{
		CreatorID:     creator.ID,
		Amount:        req.Amount,
		DonorName:     nullString(donorName),
		DonorEmail:    nullString(donorEmail),
		Message:       nullString(req.Message),
		IsAnonymous:   req.IsAnonymous,
		PaymentStatus: models.PaymentCompleted,
		TxnID:         txnID,
	}

	id, err := h.Ledger.CreateSettledDonation(donation)
	if err != nil {
		log.Println("Failed to settle simulated donation:", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error."})
		return
	}

	h.Hub.BroadcastAlert <- ws.DonationAlert{
		TargetCreatorID: creator.ID,
		DonorName:       displayName,
		Amount:          req.Amount,
		Message:         req.Message,
	}

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"txn_id":      txnID,
		"donation_id": id,
	})
}
