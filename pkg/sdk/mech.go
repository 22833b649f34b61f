package sdk

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/valory-xyz/mech-sdk-go/pkg/blockchain"
	"github.com/valory-xyz/mech-sdk-go/pkg/config"
	"github.com/valory-xyz/mech-sdk-go/pkg/executor"
	"github.com/valory-xyz/mech-sdk-go/pkg/model"
	"github.com/valory-xyz/mech-sdk-go/pkg/payment"
	"github.com/valory-xyz/mech-sdk-go/pkg/storage"
	"github.com/valory-xyz/mech-sdk-go/pkg/watcher"
)

// chainClient is the chain surface the request flow consumes. Satisfied
// by *blockchain.EVMClient; test doubles implement it directly.
type chainClient interface {
	payment.ChainReader

	PaymentModelOf(ctx context.Context, mech common.Address) (model.PaymentModel, error)
	PriceOf(ctx context.Context, mech common.Address) (*big.Int, error)
	PrepaidBalance(ctx context.Context, tracker, requester common.Address) (*big.Int, error)
	WaitForTransaction(ctx context.Context, txHash common.Hash, timeout time.Duration) (*types.Receipt, error)
	LatestBlock(ctx context.Context) (uint64, error)
	DeliveryLogs(ctx context.Context, marketplace common.Address, from, to uint64) ([]model.DeliveryResult, error)
}

// MechClient submits requests to one mech and collects their results. It
// is safe for concurrent use; the underlying executor serializes nonce
// handling.
type MechClient struct {
	chain          chainClient
	store          storage.Store
	exec           executor.Executor
	marketplace    common.Address
	mech           common.Address
	payAddrs       payment.Addresses
	balanceTracker common.Address
	maxSpend       *big.Int // wei, nil means uncapped
	timeouts       config.Timeouts
}

// deadlineCtx bounds one chain interaction. A zero duration leaves the
// parent context untouched.
func deadlineCtx(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d == 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d)
}

// SendResult is the outcome of one SendRequest call. Results and
// Contents are keyed by decimal request ID; both may be partial when the
// watch window closed early, and Contents omits entries whose result
// payload could not be fetched.
type SendResult struct {
	TxHash   common.Hash
	Requests []model.SubmittedRequest
	Results  map[string]model.DeliveryResult
	Contents map[string][]byte
}

type sendOptions struct {
	prepaid     bool
	withoutWait bool
	timeout     time.Duration
}

// RequestOption tweaks a single SendRequest call.
type RequestOption func(*sendOptions)

// WithPrepaid submits against the requester's balance-tracker deposit
// instead of paying with the transaction itself.
func WithPrepaid() RequestOption {
	return func(o *sendOptions) { o.prepaid = true }
}

// WithTimeout overrides the configured delivery watch window.
func WithTimeout(d time.Duration) RequestOption {
	return func(o *sendOptions) { o.timeout = d }
}

// WithoutWait returns right after the request transaction is broadcast:
// no receipt wait, no request IDs, no delivery watching.
func WithoutWait() RequestOption {
	return func(o *sendOptions) { o.withoutWait = true }
}

// SendRequest stores the request payloads, verifies affordability under
// the mech's payment model, submits one batched request transaction and
// watches for deliveries. On a delivery timeout the returned error is a
// *watcher.DeliveryTimeoutError and the SendResult still carries
// everything that did arrive.
func (mc *MechClient) SendRequest(ctx context.Context, descriptors []model.RequestDescriptor, opts ...RequestOption) (*SendResult, error) {
	if len(descriptors) == 0 {
		return nil, errors.New("at least one request descriptor is required")
	}

	o := sendOptions{timeout: mc.timeouts.DeliveryWatch}
	for _, opt := range opts {
		opt(&o)
	}

	logger := zap.L().With(
		zap.String("trace_id", uuid.NewString()),
		zap.String("mech", mc.mech.Hex()))

	if err := mc.exec.RequireConfiguration(); err != nil {
		return nil, err
	}

	rctx, cancel := deadlineCtx(ctx, mc.timeouts.ChainRead)
	pm, err := mc.chain.PaymentModelOf(rctx, mc.mech)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve payment model: %w", err)
	}
	logger.Info("Resolved payment model", zap.String("model", pm.String()))

	if o.prepaid && pm.Subscription() {
		return nil, fmt.Errorf("prepaid submission is not available for the %s payment model", pm)
	}

	digests, err := mc.uploadPayloads(ctx, descriptors, logger)
	if err != nil {
		return nil, err
	}

	strategy, err := payment.NewStrategy(pm, mc.chain, mc.payAddrs)
	if err != nil {
		return nil, err
	}

	rctx, cancel = deadlineCtx(ctx, mc.timeouts.ChainRead)
	price, err := mc.chain.PriceOf(rctx, mc.mech)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("failed to read mech price: %w", err)
	}
	total := new(big.Int).Mul(price, big.NewInt(int64(len(descriptors))))
	payer := mc.exec.SenderAddress()

	data, value, err := mc.prepareSubmission(ctx, strategy, pm, payer, total, digests, o.prepaid, logger)
	if err != nil {
		return nil, err
	}
	if mc.maxSpend != nil && value != nil && value.Cmp(mc.maxSpend) > 0 {
		return nil, fmt.Errorf("submission value %s exceeds the configured max spend of %s",
			blockchain.WeiToNative(value), blockchain.WeiToNative(mc.maxSpend))
	}

	sctx, cancel := deadlineCtx(ctx, mc.timeouts.ChainSubmit)
	txHash, err := mc.exec.ExecuteCall(sctx, mc.marketplace, data, value)
	cancel()
	if err != nil {
		return nil, err
	}
	logger.Info("Submitted request transaction", zap.String("tx", txHash.Hex()))

	if o.withoutWait {
		return &SendResult{TxHash: txHash}, nil
	}

	receipt, err := mc.chain.WaitForTransaction(ctx, txHash, mc.timeouts.ReceiptWait)
	if err != nil {
		return nil, err
	}

	ids := blockchain.RequestIDsFromReceipt(receipt, mc.marketplace)
	if len(ids) == 0 {
		return nil, fmt.Errorf("transaction %s emitted no request events", txHash)
	}
	requests := make([]model.SubmittedRequest, 0, len(ids))
	for _, id := range ids {
		requests = append(requests, model.SubmittedRequest{
			RequestID: id,
			TxHash:    txHash,
			Timestamp: time.Now(),
		})
		logger.Info("Request included", zap.String("request_id", id.String()))
	}

	w := watcher.NewWatcher(mc.chain, mc.marketplace, receipt.BlockNumber.Uint64(), mc.timeouts.DeliveryPoll)
	results, watchErr := w.Watch(ctx, ids, o.timeout)

	return &SendResult{
		TxHash:   txHash,
		Requests: requests,
		Results:  results,
		Contents: mc.fetchContents(ctx, results, logger),
	}, watchErr
}

// uploadPayloads stores every descriptor payload and returns the 32-byte
// content digests submitted on-chain. Descriptor MetadataID fields are
// filled in place.
func (mc *MechClient) uploadPayloads(ctx context.Context, descriptors []model.RequestDescriptor, logger *zap.Logger) ([][32]byte, error) {
	digests := make([][32]byte, 0, len(descriptors))
	for i := range descriptors {
		payload, err := descriptors[i].Payload()
		if err != nil {
			return nil, fmt.Errorf("failed to encode request payload: %w", err)
		}
		id, err := mc.store.Put(ctx, payload)
		if err != nil {
			return nil, err
		}
		descriptors[i].MetadataID = id

		digest, err := storage.DigestFromID(id)
		if err != nil {
			return nil, err
		}
		digests = append(digests, digest)
		logger.Debug("Stored request payload", zap.String("metadata_id", id))
	}
	return digests, nil
}

// prepareSubmission runs the affordability check and any preparatory
// transaction, then returns the marketplace call data and native value
// for the submission itself.
func (mc *MechClient) prepareSubmission(ctx context.Context, strategy payment.Strategy, pm model.PaymentModel, payer common.Address, total *big.Int, digests [][32]byte, prepaid bool, logger *zap.Logger) ([]byte, *big.Int, error) {
	if prepaid {
		rctx, cancel := deadlineCtx(ctx, mc.timeouts.ChainRead)
		deposit, err := mc.chain.PrepaidBalance(rctx, mc.balanceTracker, payer)
		cancel()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read prepaid deposit: %w", err)
		}
		if deposit.Cmp(total) < 0 {
			return nil, nil, &payment.InsufficientFundsError{
				Model:     pm,
				Cause:     payment.CauseNoFunds,
				Required:  total,
				Available: deposit,
			}
		}
		data, err := blockchain.PackRequestPrepaid(mc.mech, digests)
		if err != nil {
			return nil, nil, err
		}
		return data, nil, nil
	}

	rctx, cancel := deadlineCtx(ctx, mc.timeouts.ChainRead)
	ok, err := strategy.CheckBalance(rctx, payer, total)
	cancel()
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		return nil, nil, &payment.InsufficientFundsError{
			Model:    pm,
			Cause:    strategy.FailureCause(),
			Required: total,
		}
	}

	sctx, cancel := deadlineCtx(ctx, mc.timeouts.ChainSubmit)
	prepHash, err := strategy.PrepareIfNeeded(sctx, payer, mc.marketplace, total, mc.exec)
	cancel()
	if err != nil {
		return nil, nil, err
	}
	if prepHash != nil {
		if _, err := mc.chain.WaitForTransaction(ctx, *prepHash, mc.timeouts.ReceiptWait); err != nil {
			return nil, nil, err
		}
		logger.Info("Preparatory transaction mined", zap.String("tx", prepHash.Hex()))
	}

	data, err := blockchain.PackRequest(mc.mech, digests)
	if err != nil {
		return nil, nil, err
	}
	return data, strategy.SubmissionValue(total), nil
}

// fetchContents retrieves the result payloads for delivered requests.
// Retrieval is tolerant: a failed fetch is logged and the entry omitted,
// the other results are still returned.
func (mc *MechClient) fetchContents(ctx context.Context, results map[string]model.DeliveryResult, logger *zap.Logger) map[string][]byte {
	contents := make(map[string][]byte, len(results))
	for id, result := range results {
		content, err := mc.store.Get(ctx, result.ResultID)
		if err != nil {
			logger.Warn("Failed to fetch result content",
				zap.String("request_id", id),
				zap.String("result_id", result.ResultID),
				zap.Error(err))
			continue
		}
		contents[id] = content
	}
	return contents
}
