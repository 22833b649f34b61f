package executor

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	"github.com/valory-xyz/mech-sdk-go/pkg/blockchain"
	"github.com/valory-xyz/mech-sdk-go/pkg/model"
)

// Signer bundles a private key with its derived address.
type Signer struct {
	key  *ecdsa.PrivateKey
	addr common.Address
}

func NewSigner(key *ecdsa.PrivateKey) *Signer {
	return &Signer{key: key, addr: crypto.PubkeyToAddress(key.PublicKey)}
}

// Address returns the EOA address of the signing key.
func (s *Signer) Address() common.Address { return s.addr }

// Direct signs transactions with the configured EOA key and broadcasts
// them itself. The mutex serializes nonce acquisition through broadcast,
// so concurrent callers never race on the account nonce.
type Direct struct {
	backend Backend
	signer  *Signer

	mu      sync.Mutex
	chainID *big.Int
}

func NewDirect(backend Backend, signer *Signer) *Direct {
	return &Direct{backend: backend, signer: signer}
}

func (d *Direct) SenderAddress() common.Address { return d.signer.addr }

func (d *Direct) RequireConfiguration() error {
	if d.signer == nil || d.signer.key == nil {
		return &ConfigurationError{Mode: model.SigningDirect, Missing: "a signing key"}
	}
	return nil
}

func (d *Direct) ExecuteCall(ctx context.Context, to common.Address, data []byte, value *big.Int) (common.Hash, error) {
	if value == nil {
		value = big.NewInt(0)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.chainID == nil {
		chainID, err := d.backend.ChainID(ctx)
		if err != nil {
			return common.Hash{}, &blockchain.SubmissionError{Op: "chain id", Err: err}
		}
		d.chainID = chainID
	}

	nonce, err := d.backend.PendingNonceAt(ctx, d.signer.addr)
	if err != nil {
		return common.Hash{}, &blockchain.SubmissionError{Op: "pending nonce", Err: err}
	}

	head, err := d.backend.HeaderByNumber(ctx, nil)
	if err != nil {
		return common.Hash{}, &blockchain.SubmissionError{Op: "head header", Err: err}
	}
	gasTipCap, err := d.backend.SuggestGasTipCap(ctx)
	if err != nil {
		return common.Hash{}, &blockchain.SubmissionError{Op: "gas tip", Err: err}
	}
	gasFeeCap := new(big.Int).Set(gasTipCap)
	if head.BaseFee != nil {
		// Double the base fee so the transaction survives moderate fee
		// growth between estimation and inclusion.
		gasFeeCap.Add(gasFeeCap, new(big.Int).Mul(head.BaseFee, big.NewInt(2)))
	}

	gasLimit, err := d.backend.EstimateGas(ctx, ethereum.CallMsg{
		From:  d.signer.addr,
		To:    &to,
		Value: value,
		Data:  data,
	})
	if err != nil {
		return common.Hash{}, &blockchain.SubmissionError{Op: "estimate gas", Err: err}
	}

	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   d.chainID,
		Nonce:     nonce,
		GasTipCap: gasTipCap,
		GasFeeCap: gasFeeCap,
		Gas:       gasLimit,
		To:        &to,
		Value:     value,
		Data:      data,
	})
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(d.chainID), d.signer.key)
	if err != nil {
		return common.Hash{}, &blockchain.SubmissionError{Op: "sign", Err: err}
	}
	if err := d.backend.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, &blockchain.SubmissionError{Op: "send", Err: err}
	}

	zap.L().Debug("Broadcast transaction",
		zap.String("tx", signed.Hash().Hex()),
		zap.String("to", to.Hex()),
		zap.Uint64("nonce", nonce))
	return signed.Hash(), nil
}
