package blockchain

import (
	"crypto/ecdsa"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// MaxUint256 is the maximum uint256 value (2^256 - 1). Used for "unlimited"
// ERC-20 allowances so repeated requests don't need repeated approvals.
var MaxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

// nativeDecimals is the decimal precision of the chain's native currency.
const nativeDecimals = 18

// ParsePrivateKeyECDSA parses a hex-encoded ECDSA private key and returns
// the corresponding Ethereum address together with the private key object.
func ParsePrivateKeyECDSA(privateKey string) (common.Address, *ecdsa.PrivateKey, error) {
	privateKeyECDSA, err := crypto.HexToECDSA(privateKey)
	if err != nil {
		return common.Address{}, nil, err
	}

	publicKey := privateKeyECDSA.Public()
	publicKeyECDSA, ok := publicKey.(*ecdsa.PublicKey)
	if !ok {
		return common.Address{}, nil, errors.New("failed to get public key")
	}

	address := crypto.PubkeyToAddress(*publicKeyECDSA)
	return address, privateKeyECDSA, nil
}

// NativeToWei converts a human-denominated native amount (e.g. "0.01") to
// wei (18 decimals). Fractions below one wei are truncated.
func NativeToWei(amount decimal.Decimal) *big.Int {
	mul := decimal.New(1, nativeDecimals)
	wei := new(big.Int)
	wei.SetString(amount.Mul(mul).Truncate(0).String(), 10)
	return wei
}

// WeiToNative converts a wei amount into the human-denominated native
// currency as a decimal with 18 digits of precision.
func WeiToNative(wei *big.Int) decimal.Decimal {
	num, err := decimal.NewFromString(wei.String())
	if err != nil {
		zap.L().Error("Failed to convert wei to decimal", zap.Error(err))
		return decimal.Zero
	}
	return num.DivRound(decimal.New(1, nativeDecimals), nativeDecimals)
}
