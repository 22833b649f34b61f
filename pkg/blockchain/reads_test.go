package blockchain

import (
	"crypto/sha256"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/valory-xyz/mech-sdk-go/pkg/storage"
)

func deliverLog(t *testing.T, marketplace common.Address, requestID *big.Int, mech common.Address, payload []byte) types.Log {
	t.Helper()
	data, err := MarketplaceABI.Events["Deliver"].Inputs.NonIndexed().Pack(payload)
	if err != nil {
		t.Fatalf("failed to pack Deliver data: %v", err)
	}
	return types.Log{
		Address: marketplace,
		Topics: []common.Hash{
			DeliverEventID,
			common.BigToHash(requestID),
			common.BytesToHash(mech.Bytes()),
		},
		Data: data,
	}
}

func TestParseDeliverLog(t *testing.T) {
	marketplace := common.HexToAddress("0x1111111111111111111111111111111111111111")
	mech := common.HexToAddress("0x2222222222222222222222222222222222222222")
	log := deliverLog(t, marketplace, big.NewInt(7), mech, []byte("bafyresult"))

	res, err := ParseDeliverLog(log)
	if err != nil {
		t.Fatalf("ParseDeliverLog failed: %v", err)
	}
	if res.RequestID.Cmp(big.NewInt(7)) != 0 {
		t.Fatalf("unexpected request id: %s", res.RequestID)
	}
	if res.ResultID != "bafyresult" {
		t.Fatalf("unexpected result id: %q", res.ResultID)
	}
	if res.Mech != mech {
		t.Fatalf("unexpected mech: %s", res.Mech.Hex())
	}
}

func TestParseDeliverLog_DigestPayload(t *testing.T) {
	marketplace := common.HexToAddress("0x1111111111111111111111111111111111111111")
	mech := common.HexToAddress("0x2222222222222222222222222222222222222222")
	digest := sha256.Sum256([]byte("delivered result content"))
	log := deliverLog(t, marketplace, big.NewInt(8), mech, digest[:])

	res, err := ParseDeliverLog(log)
	if err != nil {
		t.Fatalf("ParseDeliverLog failed: %v", err)
	}
	want, err := storage.IDFromDigest(digest)
	if err != nil {
		t.Fatalf("IDFromDigest failed: %v", err)
	}
	if res.ResultID != want {
		t.Fatalf("result id = %q, want CID %q", res.ResultID, want)
	}
	// The reconstructed ID must round-trip back to the on-chain digest.
	back, err := storage.DigestFromID(res.ResultID)
	if err != nil {
		t.Fatalf("DigestFromID failed: %v", err)
	}
	if back != digest {
		t.Fatal("reconstructed content id does not carry the original digest")
	}
}

func TestParseDeliverLog_WrongEvent(t *testing.T) {
	log := types.Log{Topics: []common.Hash{RequestEventID, {}, {}}}
	if _, err := ParseDeliverLog(log); err == nil {
		t.Fatal("expected error for non-Deliver log")
	}
}

func TestRequestIDsFromReceipt(t *testing.T) {
	marketplace := common.HexToAddress("0x1111111111111111111111111111111111111111")
	requester := common.HexToAddress("0x3333333333333333333333333333333333333333")

	requestLog := func(id int64) *types.Log {
		return &types.Log{
			Address: marketplace,
			Topics: []common.Hash{
				RequestEventID,
				common.BigToHash(big.NewInt(id)),
				common.BytesToHash(requester.Bytes()),
			},
		}
	}

	receipt := &types.Receipt{Logs: []*types.Log{
		requestLog(10),
		// Log from an unrelated contract must be ignored.
		{
			Address: common.HexToAddress("0x4444444444444444444444444444444444444444"),
			Topics:  []common.Hash{RequestEventID, common.BigToHash(big.NewInt(99)), {}},
		},
		requestLog(11),
		requestLog(12),
	}}

	ids := RequestIDsFromReceipt(receipt, marketplace)
	if len(ids) != 3 {
		t.Fatalf("expected 3 request ids, got %d", len(ids))
	}
	for i, want := range []int64{10, 11, 12} {
		if ids[i].Cmp(big.NewInt(want)) != 0 {
			t.Fatalf("ids[%d] = %s, want %d", i, ids[i], want)
		}
	}
}

func TestPackApprove(t *testing.T) {
	spender := common.HexToAddress("0x5555555555555555555555555555555555555555")
	data, err := PackApprove(spender, big.NewInt(100))
	if err != nil {
		t.Fatalf("PackApprove failed: %v", err)
	}
	// 4-byte selector + two 32-byte words.
	if len(data) != 4+32+32 {
		t.Fatalf("unexpected call data length: %d", len(data))
	}
}

func TestPackRequest(t *testing.T) {
	mech := common.HexToAddress("0x6666666666666666666666666666666666666666")
	datas := [][32]byte{{1}, {2}}

	packed, err := PackRequest(mech, datas)
	if err != nil {
		t.Fatalf("PackRequest failed: %v", err)
	}
	prepaid, err := PackRequestPrepaid(mech, datas)
	if err != nil {
		t.Fatalf("PackRequestPrepaid failed: %v", err)
	}
	if len(packed) == 0 || len(prepaid) == 0 {
		t.Fatal("expected non-empty call data")
	}
	if string(packed[:4]) == string(prepaid[:4]) {
		t.Fatal("request and requestPrepaid must have distinct selectors")
	}
}
