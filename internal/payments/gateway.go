package payments

// Outcome is the verified settlement state of a transaction. Only the
// verification call produces one; webhook payload fields never do.
type Outcome string

const (
	OutcomeSettled Outcome = "settled"
	OutcomePending Outcome = "pending"
	OutcomeFailed  Outcome = "failed"
)

// CheckoutResult is returned by a successful checkout initiation.
type CheckoutResult struct {
	RedirectURL string
	PaymentID   string
}

// VerifyResult is the trusted settlement state fetched from the gateway.
type VerifyResult struct {
	Outcome   Outcome
	PaymentID string
	RawStatus string
}

// Gateway initiates hosted checkout sessions and verifies transaction
// settlement. The reconciler must call Verify for every webhook delivery;
// the callback body alone is never authoritative.
type Gateway interface {
	CreateCheckout(txnID string, amount int64, customerName string) (*CheckoutResult, error)
	Verify(txnID string) (*VerifyResult, error)
}
