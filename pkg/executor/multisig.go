package executor

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/valory-xyz/mech-sdk-go/pkg/blockchain"
	"github.com/valory-xyz/mech-sdk-go/pkg/model"
)

// Multisig routes calls through a wallet contract the signing EOA owns.
// The inner call (target, data, value) is wrapped in an execTransaction
// envelope; the wallet itself pays, so the outer transaction carries no
// value and SenderAddress reports the wallet, not the EOA.
type Multisig struct {
	inner  *Direct
	wallet common.Address
}

func NewMultisig(backend Backend, signer *Signer, wallet common.Address) *Multisig {
	return &Multisig{inner: NewDirect(backend, signer), wallet: wallet}
}

func (m *Multisig) SenderAddress() common.Address { return m.wallet }

func (m *Multisig) RequireConfiguration() error {
	if m.wallet == (common.Address{}) {
		return &ConfigurationError{Mode: model.SigningMultisig, Missing: "a multisig wallet address"}
	}
	return m.inner.RequireConfiguration()
}

func (m *Multisig) ExecuteCall(ctx context.Context, to common.Address, data []byte, value *big.Int) (common.Hash, error) {
	if value == nil {
		value = big.NewInt(0)
	}

	envelope, err := blockchain.MultisigABI.Pack("execTransaction",
		to,
		value,
		data,
		uint8(0),       // operation: plain call
		big.NewInt(0),  // safeTxGas
		big.NewInt(0),  // baseGas
		big.NewInt(0),  // gasPrice
		common.Address{},
		common.Address{},
		approvedHashSignature(m.inner.SenderAddress()),
	)
	if err != nil {
		return common.Hash{}, &blockchain.SubmissionError{Op: "pack exec transaction", Err: err}
	}

	txHash, err := m.inner.ExecuteCall(ctx, m.wallet, envelope, nil)
	if err != nil {
		return common.Hash{}, err
	}
	zap.L().Debug("Routed call through multisig",
		zap.String("wallet", m.wallet.Hex()),
		zap.String("target", to.Hex()),
		zap.String("tx", txHash.Hex()))
	return txHash, nil
}

// approvedHashSignature encodes the sender-is-owner signature form: the
// owner address in r, zero s, and v = 1. The wallet accepts it when the
// transaction sender is that owner, so no off-chain signature is needed.
func approvedHashSignature(owner common.Address) []byte {
	sig := make([]byte, 65)
	copy(sig[12:32], owner.Bytes())
	sig[64] = 1
	return sig
}
