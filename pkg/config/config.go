// Package config defines the runtime configuration for the SDK, including
// network settings, the RPC endpoint, marketplace and payment contract
// addresses, storage gateways, and operation timeouts. It also provides
// validation, defaulting, and YAML file loading helpers.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Config holds all SDK settings required to initialize blockchain and
// storage clients. Use Validate to fill implicit defaults and to check
// for required fields.
type Config struct {
	// Network selects the target chain (chain ID and human-readable name).
	Network Network `json:"network" yaml:"network"`
	// RPCAddr is the Ethereum RPC/WS endpoint URL (required).
	RPCAddr string `json:"rpc_addr" yaml:"rpc_addr" validate:"required"`
	// PrivateKey is the hex-encoded ECDSA private key used for signed
	// operations (optional if you only do read-only operations).
	PrivateKey string `json:"private_key" yaml:"private_key"`
	// MarketplaceAddr is the request marketplace contract (required).
	MarketplaceAddr string `json:"marketplace_addr" yaml:"marketplace_addr" validate:"required,eth_addr"`
	// MultisigAddr is the wallet contract used in multisig signing mode.
	MultisigAddr string `json:"multisig_addr" yaml:"multisig_addr" validate:"omitempty,eth_addr"`
	// Contracts holds the per-payment-model contract addresses.
	Contracts Contracts `json:"contracts" yaml:"contracts"`
	// IpfsURL is the HTTP API endpoint of the IPFS node used to store and
	// read request/result content.
	// Default: https://ipfs.autonolas.tech:443
	IpfsURL string `json:"ipfs_url" yaml:"ipfs_url"`
	// GatewayURL is the HTTP gateway used as a read fallback when the
	// IPFS API is unavailable.
	// Default: https://gateway.autonolas.tech/ipfs/
	GatewayURL string `json:"gateway_url" yaml:"gateway_url"`
	// MaxSpend optionally caps the native value a single request
	// submission may attach, denominated in whole native units
	// (e.g. "0.25"). Empty means no cap.
	MaxSpend string `json:"max_spend" yaml:"max_spend"`
	// Debug enables verbose logging.
	Debug bool `json:"debug" yaml:"debug"`
	// Timeouts configures per-operation timeouts. See Timeouts.WithDefaults.
	Timeouts Timeouts `json:"timeouts" yaml:"timeouts"`
}

// Contracts carries the payment-model contract addresses. Only the
// addresses for models actually used need to be set; submitting against
// a mech whose model has no configured address fails at request time.
type Contracts struct {
	TokenA             string `json:"token_a" yaml:"token_a" validate:"omitempty,eth_addr"`
	TokenB             string `json:"token_b" yaml:"token_b" validate:"omitempty,eth_addr"`
	SubscriptionNative string `json:"subscription_native" yaml:"subscription_native" validate:"omitempty,eth_addr"`
	SubscriptionToken  string `json:"subscription_token" yaml:"subscription_token" validate:"omitempty,eth_addr"`
	BalanceTracker     string `json:"balance_tracker" yaml:"balance_tracker" validate:"omitempty,eth_addr"`
}

// Network describes a blockchain network (chain ID and name). ChainID is
// used for EIP-155 signing; Name is informational.
type Network struct {
	ChainID string `json:"chain_id" yaml:"chain_id"`
	Name    string `json:"network_name" yaml:"network_name"`
}

// Gnosis is a predefined Network for Gnosis Chain, where the marketplace
// contracts are deployed.
var Gnosis = Network{
	ChainID: "100",
	Name:    "gnosis",
}

// Main is a predefined Network for Ethereum mainnet.
var Main = Network{
	ChainID: "1",
	Name:    "main",
}

// Timeouts controls SDK operation deadlines.
// Zero values will be replaced by sane defaults in WithDefaults.
type Timeouts struct {
	Dial          time.Duration `json:"dial" yaml:"dial"`                     // Web3/IPFS dial
	ChainRead     time.Duration `json:"chain_read" yaml:"chain_read"`         // eth_call, balance etc
	ChainSubmit   time.Duration `json:"chain_submit" yaml:"chain_submit"`     // send tx
	ReceiptWait   time.Duration `json:"receipt_wait" yaml:"receipt_wait"`     // wait tx inclusion
	DeliveryWatch time.Duration `json:"delivery_watch" yaml:"delivery_watch"` // overall delivery window
	DeliveryPoll  time.Duration `json:"delivery_poll" yaml:"delivery_poll"`   // watcher poll interval
}

// UnmarshalYAML accepts durations in time.ParseDuration form ("90s",
// "2m"), which yaml.v3 does not decode into time.Duration on its own.
func (t *Timeouts) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		Dial          string `yaml:"dial"`
		ChainRead     string `yaml:"chain_read"`
		ChainSubmit   string `yaml:"chain_submit"`
		ReceiptWait   string `yaml:"receipt_wait"`
		DeliveryWatch string `yaml:"delivery_watch"`
		DeliveryPoll  string `yaml:"delivery_poll"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}

	parse := func(s string, dst *time.Duration) error {
		if s == "" {
			return nil
		}
		d, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", s, err)
		}
		*dst = d
		return nil
	}

	for _, field := range []struct {
		raw string
		dst *time.Duration
	}{
		{raw.Dial, &t.Dial},
		{raw.ChainRead, &t.ChainRead},
		{raw.ChainSubmit, &t.ChainSubmit},
		{raw.ReceiptWait, &t.ReceiptWait},
		{raw.DeliveryWatch, &t.DeliveryWatch},
		{raw.DeliveryPoll, &t.DeliveryPoll},
	} {
		if err := parse(field.raw, field.dst); err != nil {
			return err
		}
	}
	return nil
}

var validate = validator.New()

// Validate normalizes the configuration by applying implicit defaults for
// IpfsURL, GatewayURL and Network (defaults to Gnosis), then checks the
// required fields and address formats.
func (c *Config) Validate() error {
	if c.IpfsURL == "" {
		c.IpfsURL = "https://ipfs.autonolas.tech:443"
	}

	if c.GatewayURL == "" {
		c.GatewayURL = "https://gateway.autonolas.tech/ipfs/"
	}

	if c.Network.ChainID == "" {
		c.Network = Gnosis
	}

	if c.MaxSpend != "" {
		if _, err := decimal.NewFromString(c.MaxSpend); err != nil {
			return fmt.Errorf("invalid configuration: max_spend: %w", err)
		}
	}

	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	return nil
}

// Load reads a YAML configuration file, validates it and applies
// defaults.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// WithDefaults returns a copy of t with zero values replaced by defaults:
//
//	Dial:          5s
//	ChainRead:     12s
//	ChainSubmit:   25s
//	ReceiptWait:   90s
//	DeliveryWatch: 300s
//	DeliveryPoll:  5s
func (t Timeouts) WithDefaults() Timeouts {
	tt := t
	if tt.Dial == 0 {
		tt.Dial = 5 * time.Second
	}
	if tt.ChainRead == 0 {
		tt.ChainRead = 12 * time.Second
	}
	if tt.ChainSubmit == 0 {
		tt.ChainSubmit = 25 * time.Second
	}
	if tt.ReceiptWait == 0 {
		tt.ReceiptWait = 90 * time.Second
	}
	if tt.DeliveryWatch == 0 {
		tt.DeliveryWatch = 300 * time.Second
	}
	if tt.DeliveryPoll == 0 {
		tt.DeliveryPoll = 5 * time.Second
	}
	return tt
}
