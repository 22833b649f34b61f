package payment

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/valory-xyz/mech-sdk-go/pkg/model"
)

// nativeStrategy settles per request with the chain's native currency,
// attached as transaction value. No preparatory step exists.
type nativeStrategy struct {
	reader    ChainReader
	lastCause FundsCause
}

func (s *nativeStrategy) Model() model.PaymentModel { return model.PaymentNative }

func (s *nativeStrategy) CheckBalance(ctx context.Context, payer common.Address, amount *big.Int) (bool, error) {
	balance, err := s.reader.NativeBalance(ctx, payer)
	if err != nil {
		return false, err
	}
	if balance.Cmp(amount) < 0 {
		s.lastCause = CauseNoFunds
		zap.L().Debug("Native balance insufficient",
			zap.String("payer", payer.Hex()),
			zap.String("balance", balance.String()),
			zap.String("required", amount.String()))
		return false, nil
	}
	s.lastCause = CauseNone
	return true, nil
}

func (s *nativeStrategy) FailureCause() FundsCause { return s.lastCause }

func (s *nativeStrategy) PrepareIfNeeded(ctx context.Context, payer, spender common.Address, amount *big.Int, exec CallExecutor) (*common.Hash, error) {
	return nil, nil
}

func (s *nativeStrategy) SubmissionValue(amount *big.Int) *big.Int {
	return new(big.Int).Set(amount)
}
