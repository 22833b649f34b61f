// Package model defines the core data structures exchanged between the
// marketplace SDK components: payment models discovered on-chain, signing
// modes, request descriptors and their submission/delivery records.
package model

import (
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// PaymentModel identifies the payment mechanics a target mech requires.
// It is discovered via a read-only call against the mech contract and is
// never chosen by the caller.
type PaymentModel uint8

const (
	// PaymentNative pays per request with the chain's native currency,
	// attached as transaction value.
	PaymentNative PaymentModel = iota
	// PaymentTokenA pays per request with the primary ERC-20 token.
	PaymentTokenA
	// PaymentTokenB pays per request with the secondary ERC-20 token.
	PaymentTokenB
	// PaymentSubscriptionNative consumes a native-settled subscription credit.
	PaymentSubscriptionNative
	// PaymentSubscriptionToken consumes a token-settled subscription credit.
	PaymentSubscriptionToken
)

// Valid reports whether m is one of the known payment models.
func (m PaymentModel) Valid() bool {
	return m <= PaymentSubscriptionToken
}

// Subscription reports whether m is a subscription-based model.
func (m PaymentModel) Subscription() bool {
	return m == PaymentSubscriptionNative || m == PaymentSubscriptionToken
}

func (m PaymentModel) String() string {
	switch m {
	case PaymentNative:
		return "native"
	case PaymentTokenA:
		return "token-a"
	case PaymentTokenB:
		return "token-b"
	case PaymentSubscriptionNative:
		return "subscription-native"
	case PaymentSubscriptionToken:
		return "subscription-token"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(m))
	}
}

// SigningMode selects how submission transactions are signed. It is fixed
// for the lifetime of a session.
type SigningMode uint8

const (
	// SigningDirect signs transactions directly with the caller's key.
	SigningDirect SigningMode = iota
	// SigningMultisig relays calls through a smart-contract multisig wallet.
	SigningMultisig
)

func (s SigningMode) String() string {
	switch s {
	case SigningDirect:
		return "direct"
	case SigningMultisig:
		return "multisig"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

// RequestDescriptor describes one logical task request before submission.
// MetadataID is filled once the payload has been stored; it is derived from
// the content, so descriptors with identical content share an identical ID.
type RequestDescriptor struct {
	Prompt     string
	Tool       string
	Target     common.Address
	Model      PaymentModel
	MetadataID string
}

// requestPayload is the canonical on-storage form of a request. Field order
// is fixed so identical content marshals to identical bytes.
type requestPayload struct {
	Prompt string `json:"prompt"`
	Tool   string `json:"tool"`
}

// Payload returns the canonical JSON bytes stored in the metadata store.
// The encoding is deterministic: two descriptors with the same prompt and
// tool produce byte-identical payloads and therefore the same content ID.
func (r *RequestDescriptor) Payload() ([]byte, error) {
	return json.Marshal(requestPayload{Prompt: r.Prompt, Tool: r.Tool})
}

// SubmittedRequest records a request once its submission transaction has
// been mined. The request ID is assigned by the chain.
type SubmittedRequest struct {
	RequestID *big.Int
	TxHash    common.Hash
	Timestamp time.Time
}

// DeliveryResult is the chain-recorded completion of a request. It is
// read-only once observed; the watcher deduplicates by request ID, so every
// submitted request acquires at most one result.
type DeliveryResult struct {
	RequestID *big.Int
	ResultID  string
	Mech      common.Address
}
