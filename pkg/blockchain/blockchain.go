// Package blockchain provides the chain gateway used by the marketplace SDK
// on EVM chains. It wraps an Ethereum client with generic read-only contract
// calls, receipt polling, bounded log filtering for delivery watching, and
// the minimal contract ABIs the SDK needs (marketplace, mech, ERC-20,
// balance tracker, subscription).
package blockchain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"
)

// SubmissionError reports a chain-level rejection of a transaction (nonce
// conflict, gas, revert, node refusal). The SDK never retries these
// internally; the caller decides.
type SubmissionError struct {
	Op  string
	Err error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("submission failed (%s): %v", e.Op, e.Err)
}

func (e *SubmissionError) Unwrap() error { return e.Err }

// EVMClient holds a connected ethclient.Client and implements the read,
// receipt and log operations the SDK components consume.
type EVMClient struct {
	Client *ethclient.Client
}

// Dial connects to an Ethereum RPC endpoint and returns a ready client.
func Dial(ctx context.Context, endpoint string) (*EVMClient, error) {
	client, err := ethclient.DialContext(ctx, endpoint)
	if err != nil {
		zap.L().Error("Failed to dial Ethereum endpoint", zap.String("endpoint", endpoint), zap.Error(err))
		return nil, err
	}
	return &EVMClient{Client: client}, nil
}

// Close releases the underlying RPC connection.
func (evm *EVMClient) Close() {
	if evm.Client != nil {
		evm.Client.Close()
	}
}

// CallReadOnly performs an eth_call against addr using the parsed ABI,
// packing args and unpacking the raw return values.
func (evm *EVMClient) CallReadOnly(ctx context.Context, addr common.Address, parsedABI abi.ABI, method string, args ...any) ([]any, error) {
	input, err := parsedABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	msg := ethereum.CallMsg{To: &addr, Data: input}
	output, err := evm.Client.CallContract(ctx, msg, nil)
	if err != nil {
		zap.L().Error("eth_call failed",
			zap.String("contract", addr.Hex()),
			zap.String("method", method),
			zap.Error(err))
		return nil, err
	}
	values, err := parsedABI.Unpack(method, output)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	return values, nil
}

// LatestBlock returns the current chain tip block number.
func (evm *EVMClient) LatestBlock(ctx context.Context) (uint64, error) {
	header, err := evm.Client.HeaderByNumber(ctx, nil)
	if err != nil {
		zap.L().Error("failed to get last block number", zap.Error(err))
		return 0, err
	}
	return header.Number.Uint64(), nil
}

// ChainID returns the connected chain's ID.
func (evm *EVMClient) ChainID(ctx context.Context) (*big.Int, error) {
	return evm.Client.ChainID(ctx)
}

// maxReceiptBackoff caps the sleep between receipt polls.
const maxReceiptBackoff = 16 * time.Second

// WaitForTransaction polls for a transaction receipt with exponential
// backoff until the receipt is available, the wait window elapses, or the
// context is done. A non-zero timeout bounds the whole wait, so an unmined
// transaction surfaces as context.DeadlineExceeded instead of blocking the
// caller. A reverted transaction is reported as a SubmissionError.
func (evm *EVMClient) WaitForTransaction(ctx context.Context, txHash common.Hash, timeout time.Duration) (*types.Receipt, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	backoff := time.Second
	for {
		receipt, err := evm.Client.TransactionReceipt(ctx, txHash)
		switch {
		case err == nil:
			if receipt.Status == types.ReceiptStatusFailed {
				return nil, &SubmissionError{Op: "receipt", Err: fmt.Errorf("tx reverted: %s", txHash)}
			}
			return receipt, nil
		case errors.Is(err, ethereum.NotFound):
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, fmt.Errorf("no receipt for %s: %w", txHash, ctx.Err())
			}
			if backoff < maxReceiptBackoff {
				backoff *= 2
			}
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return nil, fmt.Errorf("no receipt for %s: %w", txHash, err)
		default:
			return nil, fmt.Errorf("receipt error: %w", err)
		}
	}
}

// FilterLogs returns logs emitted by addr with the given topic0 in the
// inclusive block range [from, to].
func (evm *EVMClient) FilterLogs(ctx context.Context, addr common.Address, topic0 common.Hash, from, to uint64) ([]types.Log, error) {
	query := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(from),
		ToBlock:   new(big.Int).SetUint64(to),
		Addresses: []common.Address{addr},
		Topics:    [][]common.Hash{{topic0}},
	}
	return evm.Client.FilterLogs(ctx, query)
}
