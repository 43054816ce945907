package payments

import (
	"errors"
	"log"

	"github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/coreapi"
	"github.com/midtrans/midtrans-go/snap"
)

// MidtransGateway implements Gateway against the Midtrans sandbox/production
// APIs: Snap for hosted checkout, Core API for the verification call.
type MidtransGateway struct {
	SnapClient snap.Client
	CoreClient coreapi.Client
}

func NewMidtransGateway(serverKey string) *MidtransGateway {
	var s snap.Client
	s.New(serverKey, midtrans.Sandbox)

	var c coreapi.Client
	c.New(serverKey, midtrans.Sandbox)

	return &MidtransGateway{SnapClient: s, CoreClient: c}
}

func (g *MidtransGateway) CreateCheckout(txnID string, amount int64, customerName string) (*CheckoutResult, error) {
	snapReq := &snap.Request{
		TransactionDetails: midtrans.TransactionDetails{
			OrderID:  txnID,
			GrossAmt: amount,
		},
		CustomerDetail: &midtrans.CustomerDetails{
			FName: customerName,
		},
	}

	snapResp, err := g.SnapClient.CreateTransaction(snapReq)
	if snapResp == nil {
		log.Println("Failed to create Midtrans transaction (nil response):", err)
		return nil, errors.New("payment gateway rejected checkout")
	}
	if err != nil {
		// Midtrans sometimes returns a usable response alongside an error.
		log.Printf("Midtrans returned a valid response but also a non-nil error: %v", err)
	}

	return &CheckoutResult{
		RedirectURL: snapResp.RedirectURL,
		PaymentID:   snapResp.Token,
	}, nil
}

func (g *MidtransGateway) Verify(txnID string) (*VerifyResult, error) {
	apiResp, err := g.CoreClient.CheckTransaction(txnID)
	if apiResp == nil {
		log.Println("Failed to verify transaction (nil response) with Midtrans Core API:", err)
		return nil, errors.New("transaction not found or gateway API error")
	}
	if err != nil {
		log.Printf("Midtrans Core API returned a valid response but also a non-nil error: %v", err)
	}

	result := &VerifyResult{
		PaymentID: apiResp.TransactionID,
		RawStatus: apiResp.TransactionStatus,
	}
	switch apiResp.TransactionStatus {
	case "settlement", "capture":
		result.Outcome = OutcomeSettled
	case "pending", "authorize":
		result.Outcome = OutcomePending
	default:
		// deny, cancel, expire, failure
		result.Outcome = OutcomeFailed
	}
	return result, nil
}
