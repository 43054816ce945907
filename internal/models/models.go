package models

import (
	"database/sql"
	"time"
)

// We use 'db' tags for sqlx to automatically map
// the database column names (snake_case) to our Go fields (CamelCase).

// Roles a user can hold. A fresh signup defaults to RoleDonator.
const (
	RoleCreator = "creator"
	RoleDonator = "donator"
	RoleAdmin   = "admin"
)

// Donation payment lifecycle. Pending donations are settled (or failed)
// exclusively by the webhook reconciler; the simulated path inserts them
// already completed.
const (
	PaymentPending   = "pending"
	PaymentCompleted = "completed"
	PaymentFailed    = "failed"
)

// Withdrawal request lifecycle.
const (
	WithdrawalPending  = "pending"
	WithdrawalApproved = "approved"
	WithdrawalRejected = "rejected"
)

// Withdrawal payout methods.
const (
	MethodBkash = "bkash"
	MethodNagad = "nagad"
	MethodBank  = "bank"
)

// User is a principal: creator, donator or admin. CurrentAmount is the
// accumulated withdrawable balance in whole currency units and must never
// go negative; every mutation of it is a conditional update in the store.
type User struct {
	ID            int            `db:"id" json:"id"`
	Email         string         `db:"email" json:"email"`
	PasswordHash  string         `db:"password_hash" json:"-"`
	Username      string         `db:"username" json:"username"`
	DisplayName   string         `db:"display_name" json:"display_name"`
	Bio           sql.NullString `db:"bio" json:"bio"`
	AvatarURL     sql.NullString `db:"avatar_url" json:"avatar_url"`
	CoverURL      sql.NullString `db:"cover_url" json:"cover_url"`
	Role          string         `db:"role" json:"role"`
	CurrentAmount int64          `db:"current_amount" json:"current_amount"`
	GoalAmount    int64          `db:"goal_amount" json:"goal_amount"`
	WidgetToken   string         `db:"widget_token" json:"-"`
	CreatedAt     time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at" json:"updated_at"`
}

// Subscription is the creator's platform subscription, one row per user.
// IsActive and PaidUntil gate donations independently: both must hold.
type Subscription struct {
	ID               int            `db:"id" json:"id"`
	UserID           int            `db:"user_id" json:"user_id"`
	Amount           int64          `db:"amount" json:"amount"`
	PaidUntil        time.Time      `db:"paid_until" json:"paid_until"`
	IsActive         bool           `db:"is_active" json:"is_active"`
	LastPaymentTxnID sql.NullString `db:"last_payment_txn_id" json:"-"`
	CreatedAt        time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time      `db:"updated_at" json:"updated_at"`
}

// AcceptingAt reports whether the creator behind this subscription may
// receive donations at the given time. The time must be server time,
// never client supplied. Comparison is date-granular: a subscription paid
// through today still counts.
func (s *Subscription) AcceptingAt(now time.Time) bool {
	if s == nil || !s.IsActive {
		return false
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return !s.PaidUntil.Before(today)
}

// Donation is a single pledge from a supporter to a creator. Identity
// fields are immutable after insert; only PaymentStatus changes, and only
// through the reconciler (or immediately on the simulated path).
type Donation struct {
	ID            int            `db:"id" json:"id"`
	CreatorID     int            `db:"creator_id" json:"creator_id"`
	Amount        int64          `db:"amount" json:"amount"`
	DonorName     sql.NullString `db:"donor_name" json:"donor_name"`
	DonorEmail    sql.NullString `db:"donor_email" json:"-"`
	Message       sql.NullString `db:"message" json:"message"`
	IsAnonymous   bool           `db:"is_anonymous" json:"is_anonymous"`
	PaymentStatus string         `db:"payment_status" json:"payment_status"`
	TxnID         string         `db:"txn_id" json:"txn_id"`
	PaymentID     sql.NullString `db:"payment_id" json:"-"`
	CreatedAt     time.Time      `db:"created_at" json:"created_at"`
}

// Withdrawal is a creator's cash-out request. The amount is held (debited
// from the balance) before the row is considered durable; a rejected
// request restores the hold.
type Withdrawal struct {
	ID                int            `db:"id" json:"id"`
	UserID            int            `db:"user_id" json:"user_id"`
	Amount            int64          `db:"amount" json:"amount"`
	Method            string         `db:"method" json:"method"`
	BankName          sql.NullString `db:"bank_name" json:"bank_name"`
	BankAccountName   sql.NullString `db:"bank_account_name" json:"bank_account_name"`
	BankAccountNumber sql.NullString `db:"bank_account_number" json:"bank_account_number"`
	Status            string         `db:"status" json:"status"`
	ProcessedAt       sql.NullTime   `db:"processed_at" json:"processed_at"`
	CreatedAt         time.Time      `db:"created_at" json:"created_at"`
}
