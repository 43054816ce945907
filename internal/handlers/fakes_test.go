package handlers

import (
	"database/sql"
	"errors"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"tipbox/internal/models"
	"tipbox/internal/payments"
	"tipbox/internal/store"
	ws "tipbox/internal/websocket"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// memoryLedger is an in-memory store.Ledger for handler tests. The mutex
// makes the balance guard atomic, mirroring the conditional UPDATE the
// Postgres implementation uses.
type memoryLedger struct {
	mu             sync.Mutex
	users          map[int]*models.User
	subs           map[int]*models.Subscription
	donations      map[string]*models.Donation
	withdrawals    map[int]*models.Withdrawal
	nextUser       int
	nextSub        int
	nextDonation   int
	nextWithdrawal int
}

func newMemoryLedger() *memoryLedger {
	return &memoryLedger{
		users:       make(map[int]*models.User),
		subs:        make(map[int]*models.Subscription),
		donations:   make(map[string]*models.Donation),
		withdrawals: make(map[int]*models.Withdrawal),
	}
}

func (m *memoryLedger) addUser(u models.User) *models.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextUser++
	u.ID = m.nextUser
	stored := u
	m.users[u.ID] = &stored
	return &u
}

func (m *memoryLedger) addSubscription(s models.Subscription) *models.Subscription {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextSub++
	s.ID = m.nextSub
	stored := s
	m.subs[s.UserID] = &stored
	return &s
}

func (m *memoryLedger) balance(userID int) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.users[userID].CurrentAmount
}

func (m *memoryLedger) CreateUser(u *models.User) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Email == u.Email || existing.Username == u.Username {
			return 0, store.ErrDuplicate
		}
	}
	m.nextUser++
	u.ID = m.nextUser
	clone := *u
	m.users[u.ID] = &clone
	return u.ID, nil
}

func (m *memoryLedger) GetUserByID(id int) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	clone := *u
	return &clone, nil
}

func (m *memoryLedger) findUser(match func(*models.User) bool) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if match(u) {
			clone := *u
			return &clone, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *memoryLedger) GetUserByEmail(email string) (*models.User, error) {
	return m.findUser(func(u *models.User) bool { return u.Email == email })
}

func (m *memoryLedger) GetUserByUsername(username string) (*models.User, error) {
	return m.findUser(func(u *models.User) bool { return u.Username == username })
}

func (m *memoryLedger) GetUserByWidgetToken(token string) (*models.User, error) {
	return m.findUser(func(u *models.User) bool { return u.WidgetToken == token })
}

func (m *memoryLedger) UpdateUserProfile(u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.users[u.ID]
	if !ok {
		return store.ErrNotFound
	}
	existing.DisplayName = u.DisplayName
	existing.Bio = u.Bio
	existing.GoalAmount = u.GoalAmount
	existing.AvatarURL = u.AvatarURL
	existing.CoverURL = u.CoverURL
	return nil
}

func (m *memoryLedger) adjustLocked(userID int, delta int64) error {
	u, ok := m.users[userID]
	if !ok || u.CurrentAmount+delta < 0 {
		return store.ErrInsufficientBalance
	}
	u.CurrentAmount += delta
	return nil
}

func (m *memoryLedger) GetSubscriptionByUserID(userID int) (*models.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.subs[userID]
	if !ok {
		return nil, store.ErrNotFound
	}
	clone := *s
	return &clone, nil
}

func (m *memoryLedger) UpsertSubscription(userID int, amount int64, paidUntil time.Time, isActive bool, txnID string) (*models.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.subs[userID]
	if !ok {
		m.nextSub++
		s = &models.Subscription{ID: m.nextSub, UserID: userID}
		m.subs[userID] = s
	}
	s.Amount = amount
	s.PaidUntil = paidUntil
	s.IsActive = isActive
	s.LastPaymentTxnID = sql.NullString{String: txnID, Valid: true}
	clone := *s
	return &clone, nil
}

func (m *memoryLedger) setSubscriptionActive(txnID string, active bool) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.subs {
		if s.LastPaymentTxnID.Valid && s.LastPaymentTxnID.String == txnID {
			if s.IsActive == active {
				return false, nil
			}
			s.IsActive = active
			return true, nil
		}
	}
	return false, nil
}

func (m *memoryLedger) ActivateSubscriptionByTxnID(txnID string) (bool, error) {
	return m.setSubscriptionActive(txnID, true)
}

func (m *memoryLedger) DeactivateSubscriptionByTxnID(txnID string) (bool, error) {
	return m.setSubscriptionActive(txnID, false)
}

func (m *memoryLedger) CreateDonation(d *models.Donation) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.donations[d.TxnID]; exists {
		return 0, store.ErrDuplicate
	}
	m.nextDonation++
	d.ID = m.nextDonation
	clone := *d
	m.donations[d.TxnID] = &clone
	return d.ID, nil
}

func (m *memoryLedger) CreateSettledDonation(d *models.Donation) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.donations[d.TxnID]; exists {
		return 0, store.ErrDuplicate
	}
	if err := m.adjustLocked(d.CreatorID, d.Amount); err != nil {
		return 0, err
	}
	m.nextDonation++
	d.ID = m.nextDonation
	clone := *d
	m.donations[d.TxnID] = &clone
	return d.ID, nil
}

func (m *memoryLedger) GetDonationByTxnID(txnID string) (*models.Donation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.donations[txnID]
	if !ok {
		return nil, store.ErrNotFound
	}
	clone := *d
	return &clone, nil
}

func (m *memoryLedger) ListDonationsByCreator(creatorID int, completedOnly bool) ([]models.Donation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Donation{}
	for _, d := range m.donations {
		if d.CreatorID != creatorID {
			continue
		}
		if completedOnly && d.PaymentStatus != models.PaymentCompleted {
			continue
		}
		out = append(out, *d)
	}
	return out, nil
}

func (m *memoryLedger) SettleDonation(txnID, paymentID string) (*models.Donation, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.donations[txnID]
	if !ok {
		return nil, false, store.ErrNotFound
	}
	if d.PaymentStatus != models.PaymentPending {
		clone := *d
		return &clone, false, nil
	}
	if err := m.adjustLocked(d.CreatorID, d.Amount); err != nil {
		return nil, false, err
	}
	d.PaymentStatus = models.PaymentCompleted
	d.PaymentID.String = paymentID
	d.PaymentID.Valid = true
	clone := *d
	return &clone, true, nil
}

func (m *memoryLedger) FailDonation(txnID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.donations[txnID]
	if !ok || d.PaymentStatus != models.PaymentPending {
		return false, nil
	}
	d.PaymentStatus = models.PaymentFailed
	return true, nil
}

func (m *memoryLedger) CreateWithdrawalHold(w *models.Withdrawal) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.adjustLocked(w.UserID, -w.Amount); err != nil {
		return 0, err
	}
	m.nextWithdrawal++
	w.ID = m.nextWithdrawal
	clone := *w
	m.withdrawals[w.ID] = &clone
	return w.ID, nil
}

func (m *memoryLedger) ListWithdrawalsByUser(userID int) ([]models.Withdrawal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Withdrawal{}
	for _, w := range m.withdrawals {
		if w.UserID == userID {
			out = append(out, *w)
		}
	}
	return out, nil
}

func (m *memoryLedger) ListPendingWithdrawals() ([]models.Withdrawal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Withdrawal{}
	for _, w := range m.withdrawals {
		if w.Status == models.WithdrawalPending {
			out = append(out, *w)
		}
	}
	return out, nil
}

func (m *memoryLedger) ApproveWithdrawal(id int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.withdrawals[id]
	if !ok {
		return false, store.ErrNotFound
	}
	if w.Status != models.WithdrawalPending {
		return false, nil
	}
	w.Status = models.WithdrawalApproved
	w.ProcessedAt.Time = time.Now()
	w.ProcessedAt.Valid = true
	return true, nil
}

func (m *memoryLedger) RejectWithdrawal(id int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.withdrawals[id]
	if !ok {
		return false, store.ErrNotFound
	}
	if w.Status != models.WithdrawalPending {
		return false, nil
	}
	w.Status = models.WithdrawalRejected
	w.ProcessedAt.Time = time.Now()
	w.ProcessedAt.Valid = true
	if err := m.adjustLocked(w.UserID, w.Amount); err != nil {
		return false, err
	}
	return true, nil
}

// fakeGateway scripts checkout and verification outcomes per txn id.
type fakeGateway struct {
	mu          sync.Mutex
	failNext    bool
	outcomes    map[string]payments.Outcome
	checkouts   []string
	verifyCalls []string
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{outcomes: make(map[string]payments.Outcome)}
}

func (g *fakeGateway) setOutcome(txnID string, outcome payments.Outcome) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.outcomes[txnID] = outcome
}

func (g *fakeGateway) CreateCheckout(txnID string, amount int64, customerName string) (*payments.CheckoutResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failNext {
		g.failNext = false
		return nil, errors.New("gateway rejected checkout")
	}
	g.checkouts = append(g.checkouts, txnID)
	return &payments.CheckoutResult{
		RedirectURL: "https://pay.example/" + txnID,
		PaymentID:   "pay-" + txnID,
	}, nil
}

func (g *fakeGateway) Verify(txnID string) (*payments.VerifyResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.verifyCalls = append(g.verifyCalls, txnID)
	outcome, ok := g.outcomes[txnID]
	if !ok {
		return nil, errors.New("unknown transaction")
	}
	return &payments.VerifyResult{Outcome: outcome, PaymentID: "pay-" + txnID}, nil
}

// identityMiddleware stands in for the JWT middleware in handler tests.
func identityMiddleware(userID int, role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("userID", userID)
		c.Set("userRole", role)
		c.Next()
	}
}

func newTestHub() *ws.Hub {
	hub := ws.NewHub()
	go hub.Run()
	return hub
}
