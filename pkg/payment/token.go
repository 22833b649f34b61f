package payment

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/valory-xyz/mech-sdk-go/pkg/blockchain"
	"github.com/valory-xyz/mech-sdk-go/pkg/model"
)

// tokenStrategy settles per request with an ERC-20 token. The only
// difference between the primary and secondary token models is the token
// contract address.
type tokenStrategy struct {
	reader    ChainReader
	token     common.Address
	pm        model.PaymentModel
	lastCause FundsCause
}

func (s *tokenStrategy) Model() model.PaymentModel { return s.pm }

func (s *tokenStrategy) CheckBalance(ctx context.Context, payer common.Address, amount *big.Int) (bool, error) {
	balance, err := s.reader.TokenBalance(ctx, s.token, payer)
	if err != nil {
		return false, err
	}
	if balance.Cmp(amount) < 0 {
		s.lastCause = CauseNoFunds
		zap.L().Debug("Token balance insufficient",
			zap.String("token", s.token.Hex()),
			zap.String("payer", payer.Hex()),
			zap.String("balance", balance.String()),
			zap.String("required", amount.String()))
		return false, nil
	}
	s.lastCause = CauseNone
	return true, nil
}

func (s *tokenStrategy) FailureCause() FundsCause { return s.lastCause }

// PrepareIfNeeded issues an allowance approval only when the current
// allowance is below amount; an allowance that already covers it (boundary
// inclusive) is left untouched. The approval is for the maximum amount so
// subsequent requests skip this step entirely.
func (s *tokenStrategy) PrepareIfNeeded(ctx context.Context, payer, spender common.Address, amount *big.Int, exec CallExecutor) (*common.Hash, error) {
	allowance, err := s.reader.TokenAllowance(ctx, s.token, payer, spender)
	if err != nil {
		return nil, err
	}
	if allowance.Cmp(amount) >= 0 {
		zap.L().Debug("Allowance already sufficient, skipping approval",
			zap.String("allowance", allowance.String()),
			zap.String("required", amount.String()))
		return nil, nil
	}

	data, err := blockchain.PackApprove(spender, blockchain.MaxUint256)
	if err != nil {
		return nil, err
	}
	txHash, err := exec.ExecuteCall(ctx, s.token, data, nil)
	if err != nil {
		return nil, err
	}
	zap.L().Info("Submitted allowance approval",
		zap.String("token", s.token.Hex()),
		zap.String("spender", spender.Hex()),
		zap.String("tx", txHash.Hex()))
	return &txHash, nil
}

func (s *tokenStrategy) SubmissionValue(amount *big.Int) *big.Int {
	return big.NewInt(0)
}
