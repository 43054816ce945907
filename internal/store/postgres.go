package store

import (
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"

	"tipbox/internal/models"
)

// PostgresLedger is the sqlx-backed Ledger used in production. The backend
// connects with the service credential, so row ownership is enforced here
// through explicit WHERE clauses rather than database policies.
type PostgresLedger struct {
	DB *sqlx.DB
}

func NewPostgresLedger(db *sqlx.DB) *PostgresLedger {
	return &PostgresLedger{DB: db}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func (l *PostgresLedger) CreateUser(u *models.User) (int, error) {
	query := `
		INSERT INTO users (email, password_hash, username, display_name, role, widget_token)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`
	var id int
	err := l.DB.Get(&id, query, u.Email, u.PasswordHash, u.Username, u.DisplayName, u.Role, u.WidgetToken)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, ErrDuplicate
		}
		return 0, err
	}
	return id, nil
}

func (l *PostgresLedger) getUser(query string, arg any) (*models.User, error) {
	var u models.User
	err := l.DB.Get(&u, query, arg)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (l *PostgresLedger) GetUserByID(id int) (*models.User, error) {
	return l.getUser(`SELECT * FROM users WHERE id = $1`, id)
}

func (l *PostgresLedger) GetUserByEmail(email string) (*models.User, error) {
	return l.getUser(`SELECT * FROM users WHERE email = $1`, email)
}

func (l *PostgresLedger) GetUserByUsername(username string) (*models.User, error) {
	return l.getUser(`SELECT * FROM users WHERE username = $1`, username)
}

func (l *PostgresLedger) GetUserByWidgetToken(token string) (*models.User, error) {
	return l.getUser(`SELECT * FROM users WHERE widget_token = $1`, token)
}

func (l *PostgresLedger) UpdateUserProfile(u *models.User) error {
	query := `
		UPDATE users
		SET display_name = $1, bio = $2, goal_amount = $3,
		    avatar_url = $4, cover_url = $5, updated_at = now()
		WHERE id = $6
	`
	res, err := l.DB.Exec(query, u.DisplayName, u.Bio, u.GoalAmount, u.AvatarURL, u.CoverURL, u.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

// adjustBalance is the single write path for current_amount. The guard in
// the WHERE clause makes the floor check and the arithmetic one atomic
// statement, closing the read-then-write race.
func adjustBalance(e execer, userID int, delta int64) error {
	query := `
		UPDATE users
		SET current_amount = current_amount + $1, updated_at = now()
		WHERE id = $2 AND current_amount + $1 >= 0
	`
	res, err := e.Exec(query, delta, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrInsufficientBalance
	}
	return nil
}

func (l *PostgresLedger) GetSubscriptionByUserID(userID int) (*models.Subscription, error) {
	var s models.Subscription
	err := l.DB.Get(&s, `SELECT * FROM subscriptions WHERE user_id = $1`, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}

// UpsertSubscription keeps exactly one row per user: an existing row is
// extended in place, never duplicated.
func (l *PostgresLedger) UpsertSubscription(userID int, amount int64, paidUntil time.Time, isActive bool, txnID string) (*models.Subscription, error) {
	query := `
		INSERT INTO subscriptions (user_id, amount, paid_until, is_active, last_payment_txn_id)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id) DO UPDATE
		SET amount = EXCLUDED.amount,
		    paid_until = EXCLUDED.paid_until,
		    is_active = EXCLUDED.is_active,
		    last_payment_txn_id = EXCLUDED.last_payment_txn_id,
		    updated_at = now()
		RETURNING *
	`
	var s models.Subscription
	if err := l.DB.Get(&s, query, userID, amount, paidUntil, isActive, txnID); err != nil {
		return nil, err
	}
	return &s, nil
}

func (l *PostgresLedger) setSubscriptionActive(txnID string, active bool) (bool, error) {
	query := `
		UPDATE subscriptions
		SET is_active = $1, updated_at = now()
		WHERE last_payment_txn_id = $2 AND is_active <> $1
	`
	res, err := l.DB.Exec(query, active, txnID)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (l *PostgresLedger) ActivateSubscriptionByTxnID(txnID string) (bool, error) {
	return l.setSubscriptionActive(txnID, true)
}

func (l *PostgresLedger) DeactivateSubscriptionByTxnID(txnID string) (bool, error) {
	return l.setSubscriptionActive(txnID, false)
}

const insertDonation = `
	INSERT INTO donations
	  (creator_id, amount, donor_name, donor_email, message, is_anonymous,
	   payment_status, txn_id, payment_id)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	RETURNING id
`

func (l *PostgresLedger) CreateDonation(d *models.Donation) (int, error) {
	var id int
	err := l.DB.Get(&id, insertDonation,
		d.CreatorID, d.Amount, d.DonorName, d.DonorEmail, d.Message, d.IsAnonymous,
		d.PaymentStatus, d.TxnID, d.PaymentID)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, ErrDuplicate
		}
		return 0, err
	}
	return id, nil
}

func (l *PostgresLedger) CreateSettledDonation(d *models.Donation) (int, error) {
	tx, err := l.DB.Beginx()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var id int
	err = tx.Get(&id, insertDonation,
		d.CreatorID, d.Amount, d.DonorName, d.DonorEmail, d.Message, d.IsAnonymous,
		d.PaymentStatus, d.TxnID, d.PaymentID)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, ErrDuplicate
		}
		return 0, err
	}

	if err := adjustBalance(tx, d.CreatorID, d.Amount); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return id, nil
}

func (l *PostgresLedger) GetDonationByTxnID(txnID string) (*models.Donation, error) {
	var d models.Donation
	err := l.DB.Get(&d, `SELECT * FROM donations WHERE txn_id = $1`, txnID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &d, nil
}

func (l *PostgresLedger) ListDonationsByCreator(creatorID int, completedOnly bool) ([]models.Donation, error) {
	query := `SELECT * FROM donations WHERE creator_id = $1 ORDER BY created_at DESC`
	if completedOnly {
		query = `SELECT * FROM donations WHERE creator_id = $1 AND payment_status = 'completed' ORDER BY created_at DESC`
	}
	donations := []models.Donation{}
	if err := l.DB.Select(&donations, query, creatorID); err != nil {
		return nil, err
	}
	return donations, nil
}

// SettleDonation is where the gateway-path balance credit happens, exactly
// once: the status flip is guarded on 'pending', and the credit rides the
// same transaction, so a replayed webhook cannot double-credit.
func (l *PostgresLedger) SettleDonation(txnID, paymentID string) (*models.Donation, bool, error) {
	tx, err := l.DB.Beginx()
	if err != nil {
		return nil, false, err
	}
	defer tx.Rollback()

	var d models.Donation
	err = tx.Get(&d, `SELECT * FROM donations WHERE txn_id = $1 FOR UPDATE`, txnID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, ErrNotFound
		}
		return nil, false, err
	}

	if d.PaymentStatus != models.PaymentPending {
		return &d, false, nil
	}

	query := `
		UPDATE donations SET payment_status = 'completed', payment_id = $1
		WHERE txn_id = $2 AND payment_status = 'pending'
	`
	res, err := tx.Exec(query, paymentID, txnID)
	if err != nil {
		return nil, false, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &d, false, nil
	}

	if err := adjustBalance(tx, d.CreatorID, d.Amount); err != nil {
		return nil, false, err
	}

	if err := tx.Commit(); err != nil {
		return nil, false, err
	}

	d.PaymentStatus = models.PaymentCompleted
	return &d, true, nil
}

func (l *PostgresLedger) FailDonation(txnID string) (bool, error) {
	query := `
		UPDATE donations SET payment_status = 'failed'
		WHERE txn_id = $1 AND payment_status = 'pending'
	`
	res, err := l.DB.Exec(query, txnID)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// CreateWithdrawalHold inserts the request and debits the hold in one
// transaction. If the guarded debit fails, the rollback removes the row:
// a request whose funds could not be held must not exist.
func (l *PostgresLedger) CreateWithdrawalHold(w *models.Withdrawal) (int, error) {
	tx, err := l.DB.Beginx()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var id int
	query := `
		INSERT INTO withdrawals
		  (user_id, amount, method, bank_name, bank_account_name, bank_account_number, status)
		VALUES ($1, $2, $3, $4, $5, $6, 'pending')
		RETURNING id
	`
	err = tx.Get(&id, query, w.UserID, w.Amount, w.Method, w.BankName, w.BankAccountName, w.BankAccountNumber)
	if err != nil {
		return 0, err
	}

	if err := adjustBalance(tx, w.UserID, -w.Amount); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return id, nil
}

func (l *PostgresLedger) ListWithdrawalsByUser(userID int) ([]models.Withdrawal, error) {
	withdrawals := []models.Withdrawal{}
	query := `SELECT * FROM withdrawals WHERE user_id = $1 ORDER BY created_at DESC`
	if err := l.DB.Select(&withdrawals, query, userID); err != nil {
		return nil, err
	}
	return withdrawals, nil
}

func (l *PostgresLedger) ListPendingWithdrawals() ([]models.Withdrawal, error) {
	withdrawals := []models.Withdrawal{}
	query := `SELECT * FROM withdrawals WHERE status = 'pending' ORDER BY created_at ASC`
	if err := l.DB.Select(&withdrawals, query); err != nil {
		return nil, err
	}
	return withdrawals, nil
}

func (l *PostgresLedger) ApproveWithdrawal(id int) (bool, error) {
	query := `
		UPDATE withdrawals SET status = 'approved', processed_at = now()
		WHERE id = $1 AND status = 'pending'
	`
	res, err := l.DB.Exec(query, id)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// RejectWithdrawal restores the held amount. The status guard means a
// repeated reject flips nothing and credits nothing.
func (l *PostgresLedger) RejectWithdrawal(id int) (bool, error) {
	tx, err := l.DB.Beginx()
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	var w models.Withdrawal
	err = tx.Get(&w, `SELECT * FROM withdrawals WHERE id = $1 FOR UPDATE`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, ErrNotFound
		}
		return false, err
	}
	if w.Status != models.WithdrawalPending {
		return false, nil
	}

	query := `
		UPDATE withdrawals SET status = 'rejected', processed_at = now()
		WHERE id = $1 AND status = 'pending'
	`
	if _, err := tx.Exec(query, id); err != nil {
		return false, err
	}

	if err := adjustBalance(tx, w.UserID, w.Amount); err != nil {
		return false, err
	}

	if err := tx.Commit(); err != nil {
		return false, err
	}
	return true, nil
}
