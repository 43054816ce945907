package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"tipbox/internal/models"
	"tipbox/internal/store"
)

type WithdrawalHandler struct {
	Ledger store.Ledger
}

func NewWithdrawalHandler(ledger store.Ledger) *WithdrawalHandler {
	return &WithdrawalHandler{Ledger: ledger}
}

type CreateWithdrawalRequest struct {
	Amount            int64  `json:"amount" binding:"required,gt=0"`
	Method            string `json:"method" binding:"required,oneof=bkash nagad bank"`
	BankName          string `json:"bank_name"`
	BankAccountName   string `json:"bank_account_name"`
	BankAccountNumber string `json:"bank_account_number"`
}

func (h *WithdrawalHandler) CreateWithdrawal(c *gin.Context) {
	userID := c.GetInt("userID")

	var req CreateWithdrawalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}
	if req.Method == models.MethodBank &&
		(req.BankName == "" || req.BankAccountName == "" || req.BankAccountNumber == "") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Bank withdrawals require bank_name, bank_account_name and bank_account_number"})
		return
	}

	withdrawal := &models.Withdrawal{
		UserID:            userID,
		Amount:            req.Amount,
		Method:            req.Method,
		BankName:          nullString(req.BankName),
		BankAccountName:   nullString(req.BankAccountName),
		BankAccountNumber: nullString(req.BankAccountNumber),
		Status:            models.WithdrawalPending,
	}

	// The hold is a guarded debit: the balance check happens inside the
	// store at execution time, not against a value read earlier.
	id, err := h.Ledger.CreateWithdrawalHold(withdrawal)
	if err != nil {
		if errors.Is(err, store.ErrInsufficientBalance) {
			available := int64(0)
			if user, uerr := h.Ledger.GetUserByID(userID); uerr == nil {
				available = user.CurrentAmount
			}
			c.JSON(http.StatusBadRequest, gin.H{
				"error":             "Insufficient balance",
				"available_balance": available,
			})
			return
		}
		log.Println("Failed to create withdrawal hold:", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error."})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "withdrawal_id": id})
}

func (h *WithdrawalHandler) GetMyWithdrawals(c *gin.Context) {
	userID := c.GetInt("userID")

	withdrawals, err := h.Ledger.ListWithdrawalsByUser(userID)
	if err != nil {
		log.Println("Failed to list withdrawals:", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not fetch withdrawals"})
		return
	}

	c.JSON(http.StatusOK, withdrawals)
}

// ListPendingWithdrawals is the admin review queue.
func (h *WithdrawalHandler) ListPendingWithdrawals(c *gin.Context) {
	withdrawals, err := h.Ledger.ListPendingWithdrawals()
	if err != nil {
		log.Println("Failed to list pending withdrawals:", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not fetch withdrawals"})
		return
	}

	c.JSON(http.StatusOK, withdrawals)
}

type ProcessWithdrawalRequest struct {
	Action string `json:"action" binding:"required,oneof=approve reject"`
}

// ProcessWithdrawal approves or rejects a pending request. Rejection
// restores the held amount; both actions are no-ops on an already
// processed request.
func (h *WithdrawalHandler) ProcessWithdrawal(c *gin.Context) {
	var uri struct {
		ID int `uri:"id" binding:"required"`
	}
	if err := c.ShouldBindUri(&uri); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid withdrawal id"})
		return
	}

	var req ProcessWithdrawalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	var applied bool
	var err error
	if req.Action == "approve" {
		applied, err = h.Ledger.ApproveWithdrawal(uri.ID)
	} else {
		applied, err = h.Ledger.RejectWithdrawal(uri.ID)
	}
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Withdrawal not found"})
			return
		}
		log.Println("Failed to process withdrawal:", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error."})
		return
	}
	if !applied {
		c.JSON(http.StatusConflict, gin.H{"error": "Withdrawal already processed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}
