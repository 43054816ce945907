package payments

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Kind tags a transaction id so the webhook reconciler can route purely
// by string prefix, without an entity lookup.
type Kind string

const (
	KindDonation     Kind = "DON"
	KindSubscription Kind = "SUB"
	KindUnknown      Kind = ""
)

// NewTxnID builds the correlation id handed to the gateway at checkout,
// e.g. "DON_17_1725012345678901234". The nanosecond timestamp keeps two
// quick attempts for the same entity distinct.
func NewTxnID(kind Kind, entityID int) string {
	return string(kind) + "_" + strconv.Itoa(entityID) + "_" + strconv.FormatInt(time.Now().UnixNano(), 10)
}

// NewSimulatedTxnID builds the id used on the instant-settle path,
// e.g. "DON_1725012345_9f1c2d3e".
func NewSimulatedTxnID(kind Kind) string {
	suffix := strings.Split(uuid.NewString(), "-")[0]
	return string(kind) + "_" + strconv.FormatInt(time.Now().Unix(), 10) + "_" + suffix
}

// KindOf routes a transaction id by its prefix. Anything that is not a
// donation or subscription id maps to KindUnknown.
func KindOf(txnID string) Kind {
	switch {
	case strings.HasPrefix(txnID, string(KindDonation)+"_"):
		return KindDonation
	case strings.HasPrefix(txnID, string(KindSubscription)+"_"):
		return KindSubscription
	default:
		return KindUnknown
	}
}
