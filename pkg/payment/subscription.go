package payment

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/valory-xyz/mech-sdk-go/pkg/model"
)

// subscriptionStrategy checks a valid, unexpired, unconsumed entitlement
// instead of a spendable balance. The amount passed to CheckBalance is the
// number of credits the request batch consumes.
type subscriptionStrategy struct {
	reader       ChainReader
	subscription common.Address
	pm           model.PaymentModel
	lastCause    FundsCause
	now          func() time.Time
}

func newSubscriptionStrategy(reader ChainReader, subscription common.Address, pm model.PaymentModel) *subscriptionStrategy {
	return &subscriptionStrategy{
		reader:       reader,
		subscription: subscription,
		pm:           pm,
		now:          time.Now,
	}
}

func (s *subscriptionStrategy) Model() model.PaymentModel { return s.pm }

func (s *subscriptionStrategy) CheckBalance(ctx context.Context, payer common.Address, amount *big.Int) (bool, error) {
	credits, expiration, err := s.reader.SubscriptionState(ctx, s.subscription, payer)
	if err != nil {
		return false, err
	}

	// No entitlement was ever purchased: both fields are zero.
	if credits.Sign() == 0 && expiration.Sign() == 0 {
		s.lastCause = CauseNoSubscription
		zap.L().Debug("No subscription found", zap.String("payer", payer.Hex()))
		return false, nil
	}

	nowUnix := big.NewInt(s.now().Unix())
	if expiration.Cmp(nowUnix) <= 0 || credits.Cmp(amount) < 0 {
		s.lastCause = CauseExpiredSubscription
		zap.L().Debug("Subscription expired or exhausted",
			zap.String("payer", payer.Hex()),
			zap.String("credits", credits.String()),
			zap.String("required", amount.String()),
			zap.String("expiration", expiration.String()))
		return false, nil
	}

	s.lastCause = CauseNone
	return true, nil
}

func (s *subscriptionStrategy) FailureCause() FundsCause { return s.lastCause }

func (s *subscriptionStrategy) PrepareIfNeeded(ctx context.Context, payer, spender common.Address, amount *big.Int, exec CallExecutor) (*common.Hash, error) {
	return nil, nil
}

func (s *subscriptionStrategy) SubmissionValue(amount *big.Int) *big.Int {
	return big.NewInt(0)
}
