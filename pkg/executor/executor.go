// Package executor abstracts how request transactions reach the chain:
// either signed directly by the configured EOA, or routed through a
// multisig wallet that the EOA owns. Payment strategies and the request
// orchestrator submit calls through the Executor interface and never
// know which mode is active.
package executor

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/valory-xyz/mech-sdk-go/pkg/model"
)

// ConfigurationError reports a signing mode that cannot operate with the
// supplied configuration, e.g. multisig mode without a wallet address.
type ConfigurationError struct {
	Mode    model.SigningMode
	Missing string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("signing mode %s requires %s", e.Mode, e.Missing)
}

// Backend is the chain surface executors need to build, sign and
// broadcast transactions. Satisfied by *ethclient.Client.
type Backend interface {
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	ChainID(ctx context.Context) (*big.Int, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
}

// Executor submits a single contract call and returns its transaction
// hash. Submission is one transaction per call; retries are the caller's
// decision, never the executor's.
type Executor interface {
	// ExecuteCall sends data to the given contract with the given native
	// value (nil means zero) and returns the broadcast transaction hash.
	ExecuteCall(ctx context.Context, to common.Address, data []byte, value *big.Int) (common.Hash, error)
	// SenderAddress is the address payment obligations are charged
	// against: the EOA in direct mode, the wallet in multisig mode.
	SenderAddress() common.Address
	// RequireConfiguration reports whether the executor has everything it
	// needs to submit, as a ConfigurationError when it does not.
	RequireConfiguration() error
}

// NewExecutor returns the executor for the given signing mode. The
// multisig address is only consulted in multisig mode and must be
// non-zero there.
func NewExecutor(mode model.SigningMode, backend Backend, signer *Signer, multisigAddr common.Address) (Executor, error) {
	if signer == nil {
		return nil, &ConfigurationError{Mode: mode, Missing: "a signing key"}
	}
	switch mode {
	case model.SigningDirect:
		return NewDirect(backend, signer), nil
	case model.SigningMultisig:
		if multisigAddr == (common.Address{}) {
			return nil, &ConfigurationError{Mode: mode, Missing: "a multisig wallet address"}
		}
		return NewMultisig(backend, signer, multisigAddr), nil
	default:
		return nil, &ConfigurationError{Mode: mode, Missing: "a known signing mode"}
	}
}
