package store

import (
	"errors"
	"time"

	"tipbox/internal/models"
)

var (
	ErrNotFound            = errors.New("record not found")
	ErrDuplicate           = errors.New("record already exists")
	ErrInsufficientBalance = errors.New("insufficient balance")
)

// Ledger is the persistence boundary for the money core. Balance mutations
// are conditional arithmetic updates with a non-negative guard, never
// read-then-write, so concurrent donations and withdrawals for the same
// creator cannot overdraw or lose updates.
type Ledger interface {
	// Users
	CreateUser(u *models.User) (int, error)
	GetUserByID(id int) (*models.User, error)
	GetUserByEmail(email string) (*models.User, error)
	GetUserByUsername(username string) (*models.User, error)
	GetUserByWidgetToken(token string) (*models.User, error)
	UpdateUserProfile(u *models.User) error

	// Subscriptions (at most one row per user)
	GetSubscriptionByUserID(userID int) (*models.Subscription, error)
	UpsertSubscription(userID int, amount int64, paidUntil time.Time, isActive bool, txnID string) (*models.Subscription, error)
	ActivateSubscriptionByTxnID(txnID string) (bool, error)
	DeactivateSubscriptionByTxnID(txnID string) (bool, error)

	// Donations
	CreateDonation(d *models.Donation) (int, error)
	// CreateSettledDonation inserts an already-completed donation and
	// credits the creator in one transaction (instant-settle path).
	CreateSettledDonation(d *models.Donation) (int, error)
	GetDonationByTxnID(txnID string) (*models.Donation, error)
	ListDonationsByCreator(creatorID int, completedOnly bool) ([]models.Donation, error)
	// SettleDonation flips pending -> completed and credits the creator in
	// one transaction. The flip is guarded on the pending status, so a
	// replayed settlement reports applied=false and credits nothing.
	SettleDonation(txnID, paymentID string) (d *models.Donation, applied bool, err error)
	FailDonation(txnID string) (applied bool, err error)

	// Withdrawals
	// CreateWithdrawalHold inserts a pending withdrawal and debits the
	// balance as one unit; if the guarded debit cannot be applied the
	// request does not survive and ErrInsufficientBalance is returned.
	CreateWithdrawalHold(w *models.Withdrawal) (int, error)
	ListWithdrawalsByUser(userID int) ([]models.Withdrawal, error)
	ListPendingWithdrawals() ([]models.Withdrawal, error)
	ApproveWithdrawal(id int) (applied bool, err error)
	// RejectWithdrawal flips pending -> rejected and restores the held
	// amount to the creator's balance. Guarded on the pending status so a
	// repeated reject cannot double-restore.
	RejectWithdrawal(id int) (applied bool, err error)
}
