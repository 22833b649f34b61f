// Package payment implements the per-model payment strategies used when
// submitting marketplace requests: native value transfer, ERC-20 token
// settlement (with allowance preparation), and subscription entitlements.
// The model is discovered on-chain; the factory maps it to exactly one
// strategy.
package payment

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/valory-xyz/mech-sdk-go/pkg/model"
)

// ErrUnknownModel is returned by the factory for a payment model outside
// the closed set. It indicates a configuration/contract mismatch.
var ErrUnknownModel = errors.New("unknown payment model")

// FundsCause classifies why a balance check failed, for caller messaging.
type FundsCause string

const (
	CauseNone                FundsCause = ""
	CauseNoFunds             FundsCause = "no-funds"
	CauseNoAllowance         FundsCause = "no-allowance"
	CauseNoSubscription      FundsCause = "no-subscription"
	CauseExpiredSubscription FundsCause = "expired-subscription"
)

// InsufficientFundsError reports that a payer cannot satisfy the payment
// obligation for a request. It is raised before anything is submitted, so
// no transaction is wasted.
type InsufficientFundsError struct {
	Model     model.PaymentModel
	Cause     FundsCause
	Required  *big.Int
	Available *big.Int
}

func (e *InsufficientFundsError) Error() string {
	if e.Required != nil && e.Available != nil {
		return fmt.Sprintf("insufficient funds (%s, %s): need %s, have %s",
			e.Model, e.Cause, e.Required, e.Available)
	}
	return fmt.Sprintf("insufficient funds (%s, %s)", e.Model, e.Cause)
}

// ChainReader is the read-only chain surface strategies consume. It is
// satisfied by *blockchain.EVMClient and fakeable in tests.
type ChainReader interface {
	NativeBalance(ctx context.Context, addr common.Address) (*big.Int, error)
	TokenBalance(ctx context.Context, token, owner common.Address) (*big.Int, error)
	TokenAllowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error)
	SubscriptionState(ctx context.Context, subscription, subscriber common.Address) (credits, expiration *big.Int, err error)
}

// CallExecutor is the transaction surface PrepareIfNeeded uses to submit
// preparatory transactions (ERC-20 approvals). Satisfied by the executor
// package's implementations.
type CallExecutor interface {
	ExecuteCall(ctx context.Context, to common.Address, data []byte, value *big.Int) (common.Hash, error)
}

// Strategy decides affordability per payment model and performs any
// preparatory step before submission. It is independent of the signing
// mode: the payer address always comes from the executor above it.
type Strategy interface {
	// Model returns the payment model this strategy handles.
	Model() model.PaymentModel
	// CheckBalance reports whether payer can satisfy amount. Insufficiency
	// is a false return, not an error; errors are chain-read failures.
	// The boundary is inclusive: available == required is sufficient.
	CheckBalance(ctx context.Context, payer common.Address, amount *big.Int) (bool, error)
	// FailureCause classifies the most recent failed CheckBalance, for
	// caller messaging. CauseNone when the last check passed.
	FailureCause() FundsCause
	// PrepareIfNeeded performs the preparatory transaction required before
	// submission, if any. A nil hash means nothing was needed. Token models
	// issue an allowance approval only when the current allowance is below
	// amount; other models never prepare.
	PrepareIfNeeded(ctx context.Context, payer, spender common.Address, amount *big.Int, exec CallExecutor) (*common.Hash, error)
	// SubmissionValue returns the native value to attach to the request
	// transaction: the full amount for native models, zero otherwise.
	SubmissionValue(amount *big.Int) *big.Int
}

// Addresses carries the externally supplied contract addresses strategies
// read against.
type Addresses struct {
	TokenA             common.Address
	TokenB             common.Address
	SubscriptionNative common.Address
	SubscriptionToken  common.Address
}

// NewStrategy returns the strategy handling the given payment model. The
// model set is closed; anything else is ErrUnknownModel.
func NewStrategy(pm model.PaymentModel, reader ChainReader, addrs Addresses) (Strategy, error) {
	switch pm {
	case model.PaymentNative:
		return &nativeStrategy{reader: reader}, nil
	case model.PaymentTokenA:
		return &tokenStrategy{reader: reader, token: addrs.TokenA, pm: pm}, nil
	case model.PaymentTokenB:
		return &tokenStrategy{reader: reader, token: addrs.TokenB, pm: pm}, nil
	case model.PaymentSubscriptionNative:
		return newSubscriptionStrategy(reader, addrs.SubscriptionNative, pm), nil
	case model.PaymentSubscriptionToken:
		return newSubscriptionStrategy(reader, addrs.SubscriptionToken, pm), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownModel, pm)
	}
}
