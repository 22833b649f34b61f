package blockchain

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// Minimal ABI fragments for the contracts the SDK talks to. The SDK carries
// these inline instead of generated bindings: the call surface is small and
// every call goes through the generic pack/call/unpack path.
const (
	marketplaceABIJSON = `[
		{"type":"function","name":"request","stateMutability":"payable","inputs":[{"name":"mech","type":"address"},{"name":"requestDatas","type":"bytes32[]"}],"outputs":[{"name":"requestIds","type":"uint256[]"}]},
		{"type":"function","name":"requestPrepaid","stateMutability":"nonpayable","inputs":[{"name":"mech","type":"address"},{"name":"requestDatas","type":"bytes32[]"}],"outputs":[{"name":"requestIds","type":"uint256[]"}]},
		{"type":"event","name":"Request","inputs":[{"name":"requestId","type":"uint256","indexed":true},{"name":"requester","type":"address","indexed":true},{"name":"requestData","type":"bytes32","indexed":false}],"anonymous":false},
		{"type":"event","name":"Deliver","inputs":[{"name":"requestId","type":"uint256","indexed":true},{"name":"mech","type":"address","indexed":true},{"name":"deliveryData","type":"bytes","indexed":false}],"anonymous":false}
	]`

	mechABIJSON = `[
		{"type":"function","name":"paymentType","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint8"}]},
		{"type":"function","name":"price","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]}
	]`

	erc20ABIJSON = `[
		{"type":"function","name":"balanceOf","stateMutability":"view","inputs":[{"name":"owner","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
		{"type":"function","name":"allowance","stateMutability":"view","inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
		{"type":"function","name":"approve","stateMutability":"nonpayable","inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]}
	]`

	balanceTrackerABIJSON = `[
		{"type":"function","name":"balanceOf","stateMutability":"view","inputs":[{"name":"requester","type":"address"}],"outputs":[{"name":"","type":"uint256"}]}
	]`

	subscriptionABIJSON = `[
		{"type":"function","name":"creditsOf","stateMutability":"view","inputs":[{"name":"subscriber","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
		{"type":"function","name":"expirationOf","stateMutability":"view","inputs":[{"name":"subscriber","type":"address"}],"outputs":[{"name":"","type":"uint256"}]}
	]`

	multisigABIJSON = `[
		{"type":"function","name":"execTransaction","stateMutability":"payable","inputs":[{"name":"to","type":"address"},{"name":"value","type":"uint256"},{"name":"data","type":"bytes"},{"name":"operation","type":"uint8"},{"name":"safeTxGas","type":"uint256"},{"name":"baseGas","type":"uint256"},{"name":"gasPrice","type":"uint256"},{"name":"gasToken","type":"address"},{"name":"refundReceiver","type":"address"},{"name":"signatures","type":"bytes"}],"outputs":[{"name":"success","type":"bool"}]}
	]`
)

// Parsed ABIs, shared by all clients. Parsing happens once at init; the
// fragments are compile-time constants, so a parse failure is a programming
// error and panics.
var (
	MarketplaceABI    = mustParseABI(marketplaceABIJSON)
	MechABI           = mustParseABI(mechABIJSON)
	ERC20ABI          = mustParseABI(erc20ABIJSON)
	BalanceTrackerABI = mustParseABI(balanceTrackerABIJSON)
	SubscriptionABI   = mustParseABI(subscriptionABIJSON)
	MultisigABI       = mustParseABI(multisigABIJSON)
)

// Event topic hashes used when filtering marketplace logs.
var (
	RequestEventID = MarketplaceABI.Events["Request"].ID
	DeliverEventID = MarketplaceABI.Events["Deliver"].ID
)

func mustParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(err)
	}
	return parsed
}

// PackApprove returns ERC-20 approve call data for (spender, amount).
func PackApprove(spender common.Address, amount *big.Int) ([]byte, error) {
	return ERC20ABI.Pack("approve", spender, amount)
}

// PackRequest returns marketplace request call data for (mech, requestDatas).
func PackRequest(mech common.Address, requestDatas [][32]byte) ([]byte, error) {
	return MarketplaceABI.Pack("request", mech, requestDatas)
}

// PackRequestPrepaid returns marketplace requestPrepaid call data. The
// prepaid path debits the requester's pre-funded balance instead of moving
// value or tokens with the transaction.
func PackRequestPrepaid(mech common.Address, requestDatas [][32]byte) ([]byte, error) {
	return MarketplaceABI.Pack("requestPrepaid", mech, requestDatas)
}
