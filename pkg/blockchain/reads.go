package blockchain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"github.com/valory-xyz/mech-sdk-go/pkg/model"
	"github.com/valory-xyz/mech-sdk-go/pkg/storage"
)

// PaymentModelOf discovers the payment model a mech requires via its
// paymentType view. The caller never chooses the model.
func (evm *EVMClient) PaymentModelOf(ctx context.Context, mech common.Address) (model.PaymentModel, error) {
	values, err := evm.CallReadOnly(ctx, mech, MechABI, "paymentType")
	if err != nil {
		return 0, err
	}
	raw, ok := values[0].(uint8)
	if !ok {
		return 0, fmt.Errorf("unexpected paymentType return type %T", values[0])
	}
	pm := model.PaymentModel(raw)
	if !pm.Valid() {
		return 0, fmt.Errorf("mech %s reports unknown payment model %d", mech.Hex(), raw)
	}
	zap.L().Debug("Resolved payment model", zap.String("mech", mech.Hex()), zap.Stringer("model", pm))
	return pm, nil
}

// PriceOf returns the per-request price the mech charges, in the smallest
// unit of whatever the payment model settles in.
func (evm *EVMClient) PriceOf(ctx context.Context, mech common.Address) (*big.Int, error) {
	values, err := evm.CallReadOnly(ctx, mech, MechABI, "price")
	if err != nil {
		return nil, err
	}
	price, ok := values[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected price return type %T", values[0])
	}
	return price, nil
}

// NativeBalance returns the native-currency balance of addr.
func (evm *EVMClient) NativeBalance(ctx context.Context, addr common.Address) (*big.Int, error) {
	return evm.Client.BalanceAt(ctx, addr, nil)
}

// TokenBalance returns the ERC-20 balance of owner on the given token.
func (evm *EVMClient) TokenBalance(ctx context.Context, token, owner common.Address) (*big.Int, error) {
	values, err := evm.CallReadOnly(ctx, token, ERC20ABI, "balanceOf", owner)
	if err != nil {
		return nil, err
	}
	return asBigInt(values[0])
}

// TokenAllowance returns the ERC-20 allowance from owner to spender.
func (evm *EVMClient) TokenAllowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error) {
	values, err := evm.CallReadOnly(ctx, token, ERC20ABI, "allowance", owner, spender)
	if err != nil {
		return nil, err
	}
	return asBigInt(values[0])
}

// PrepaidBalance returns the pre-funded balance the tracker contract holds
// for the requester.
func (evm *EVMClient) PrepaidBalance(ctx context.Context, tracker, requester common.Address) (*big.Int, error) {
	values, err := evm.CallReadOnly(ctx, tracker, BalanceTrackerABI, "balanceOf", requester)
	if err != nil {
		return nil, err
	}
	return asBigInt(values[0])
}

// SubscriptionState reads the remaining credits and the expiration unix
// timestamp of subscriber's entitlement on the subscription contract.
func (evm *EVMClient) SubscriptionState(ctx context.Context, subscription, subscriber common.Address) (credits, expiration *big.Int, err error) {
	values, err := evm.CallReadOnly(ctx, subscription, SubscriptionABI, "creditsOf", subscriber)
	if err != nil {
		return nil, nil, err
	}
	credits, err = asBigInt(values[0])
	if err != nil {
		return nil, nil, err
	}
	values, err = evm.CallReadOnly(ctx, subscription, SubscriptionABI, "expirationOf", subscriber)
	if err != nil {
		return nil, nil, err
	}
	expiration, err = asBigInt(values[0])
	if err != nil {
		return nil, nil, err
	}
	return credits, expiration, nil
}

// RequestIDsFromReceipt extracts the chain-assigned request IDs from the
// Request events the marketplace emitted in the submission transaction, in
// log order (one per descriptor in a batch).
func RequestIDsFromReceipt(receipt *types.Receipt, marketplace common.Address) []*big.Int {
	var ids []*big.Int
	for _, log := range receipt.Logs {
		if log.Address != marketplace || len(log.Topics) < 2 || log.Topics[0] != RequestEventID {
			continue
		}
		ids = append(ids, new(big.Int).SetBytes(log.Topics[1].Bytes()))
	}
	return ids
}

// ParseDeliverLog decodes one marketplace Deliver event into a
// DeliveryResult. The delivery data payload carries the result content ID,
// either printable or as a raw on-chain digest.
func ParseDeliverLog(log types.Log) (model.DeliveryResult, error) {
	if len(log.Topics) < 3 || log.Topics[0] != DeliverEventID {
		return model.DeliveryResult{}, fmt.Errorf("log is not a Deliver event")
	}
	values, err := MarketplaceABI.Unpack("Deliver", log.Data)
	if err != nil {
		return model.DeliveryResult{}, fmt.Errorf("unpack Deliver: %w", err)
	}
	payload, ok := values[0].([]byte)
	if !ok {
		return model.DeliveryResult{}, fmt.Errorf("unexpected Deliver data type %T", values[0])
	}
	return model.DeliveryResult{
		RequestID: new(big.Int).SetBytes(log.Topics[1].Bytes()),
		ResultID:  resultContentID(payload),
		Mech:      common.BytesToAddress(log.Topics[2].Bytes()),
	}, nil
}

// resultContentID renders a delivery payload as a fetchable content ID.
// Mechs publish either the printable CID itself or its raw 32-byte
// sha2-256 digest; the digest form is reconstructed into a CID.
func resultContentID(payload []byte) string {
	if len(payload) == 32 {
		var digest [32]byte
		copy(digest[:], payload)
		if id, err := storage.IDFromDigest(digest); err == nil {
			return id
		}
	}
	return string(payload)
}

// DeliveryLogs scans marketplace Deliver events in [from, to] and decodes
// them. Undecodable entries are logged and skipped rather than failing the
// whole scan.
func (evm *EVMClient) DeliveryLogs(ctx context.Context, marketplace common.Address, from, to uint64) ([]model.DeliveryResult, error) {
	logs, err := evm.FilterLogs(ctx, marketplace, DeliverEventID, from, to)
	if err != nil {
		return nil, err
	}
	results := make([]model.DeliveryResult, 0, len(logs))
	for _, log := range logs {
		res, err := ParseDeliverLog(log)
		if err != nil {
			zap.L().Warn("Skipping undecodable Deliver log",
				zap.Uint64("block", log.BlockNumber),
				zap.Error(err))
			continue
		}
		results = append(results, res)
	}
	return results, nil
}

func asBigInt(v any) (*big.Int, error) {
	b, ok := v.(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected return type %T, want *big.Int", v)
	}
	return b, nil
}
