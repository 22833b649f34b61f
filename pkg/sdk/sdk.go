// Package sdk exposes the high-level marketplace SDK entry points. It
// wires together blockchain access (marketplace/mech contracts), IPFS
// storage, payment strategies, transaction executors, and the delivery
// watcher behind a per-mech client.
package sdk

import (
	"context"
	"fmt"
	"math/big"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/valory-xyz/mech-sdk-go/pkg/blockchain"
	"github.com/valory-xyz/mech-sdk-go/pkg/config"
	"github.com/valory-xyz/mech-sdk-go/pkg/executor"
	"github.com/valory-xyz/mech-sdk-go/pkg/model"
	"github.com/valory-xyz/mech-sdk-go/pkg/payment"
	"github.com/valory-xyz/mech-sdk-go/pkg/storage"
)

// MarketplaceSDK is the public interface for constructing per-mech
// clients and releasing resources.
type MarketplaceSDK interface {
	// NewMechClient creates a client bound to one mech. The signing mode
	// decides whether requests are signed directly by the configured EOA
	// or routed through the configured multisig wallet.
	NewMechClient(mechAddr common.Address, mode model.SigningMode) (*MechClient, error)

	// Close releases resources associated with the SDK instance.
	Close()
}

// init configures a default global zap logger for the SDK. Applications
// may replace it with zap.ReplaceGlobals(...) if they need custom logging.
func init() {
	c := zap.Config{
		Level:            zap.NewAtomicLevelAt(zap.InfoLevel),
		Development:      false,
		Encoding:         "console",
		EncoderConfig:    zap.NewDevelopmentEncoderConfig(),
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := c.Build()
	if err != nil {
		panic(err)
	}
	zap.ReplaceGlobals(logger)
}

// Core is the concrete SDK implementation. It embeds the initialized EVM
// client, the storage client and the runtime configuration.
type Core struct {
	evm   *blockchain.EVMClient
	store *storage.Client
	*config.Config
	signer *executor.Signer
}

// GetEvm returns the EVM client for advanced operations beyond the
// request flow.
func (c *Core) GetEvm() *blockchain.EVMClient {
	return c.evm
}

// NewSDK initializes the SDK Core with validated configuration and
// connected Ethereum and IPFS clients. It applies default timeout values
// and aborts the process if the configuration is invalid or the clients
// cannot be initialized.
func NewSDK(cfg *config.Config) MarketplaceSDK {
	if err := cfg.Validate(); err != nil {
		zap.L().Fatal("Invalid config", zap.Error(err))
	}

	cfg.Timeouts = cfg.Timeouts.WithDefaults()

	storageClient, err := storage.NewClient(cfg.IpfsURL, cfg.GatewayURL)
	if err != nil {
		zap.L().Error("Init storage client failed", zap.Error(err))
		os.Exit(-1)
	}

	dialCtx, cancel := context.WithTimeout(context.Background(), cfg.Timeouts.Dial)
	defer cancel()
	evmClient, err := blockchain.Dial(dialCtx, cfg.RPCAddr)
	if err != nil {
		zap.L().Error("Init ethereum client failed", zap.Error(err))
		os.Exit(-1)
	}

	var signer *executor.Signer
	address, prvKey, err := blockchain.ParsePrivateKeyECDSA(cfg.PrivateKey)
	if err != nil {
		zap.L().Warn("some methods disabled: private key parsing failed", zap.Error(err))
	} else {
		signer = executor.NewSigner(prvKey)
	}

	if cfg.Debug {
		zap.L().Debug("signer address", zap.String("addr", address.Hex()))
	}

	return &Core{
		evm:    evmClient,
		store:  storageClient,
		Config: cfg,
		signer: signer,
	}
}

// NewMechClient creates a request client bound to one mech address.
func (c *Core) NewMechClient(mechAddr common.Address, mode model.SigningMode) (*MechClient, error) {
	exec, err := executor.NewExecutor(mode, c.evm.Client, c.signer, common.HexToAddress(c.MultisigAddr))
	if err != nil {
		return nil, err
	}

	var maxSpend *big.Int
	if c.MaxSpend != "" {
		amount, err := decimal.NewFromString(c.MaxSpend)
		if err != nil {
			return nil, fmt.Errorf("invalid max_spend %q: %w", c.MaxSpend, err)
		}
		maxSpend = blockchain.NativeToWei(amount)
	}

	return &MechClient{
		chain:       c.evm,
		store:       c.store,
		exec:        exec,
		marketplace: common.HexToAddress(c.MarketplaceAddr),
		mech:        mechAddr,
		payAddrs: payment.Addresses{
			TokenA:             common.HexToAddress(c.Contracts.TokenA),
			TokenB:             common.HexToAddress(c.Contracts.TokenB),
			SubscriptionNative: common.HexToAddress(c.Contracts.SubscriptionNative),
			SubscriptionToken:  common.HexToAddress(c.Contracts.SubscriptionToken),
		},
		balanceTracker: common.HexToAddress(c.Contracts.BalanceTracker),
		maxSpend:       maxSpend,
		timeouts:       c.Timeouts,
	}, nil
}

// Close shuts down underlying network clients (e.g., Ethereum RPC).
func (c *Core) Close() {
	c.evm.Close()
}
