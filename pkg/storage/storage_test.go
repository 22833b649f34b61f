package storage

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"testing"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
)

type fetcherFunc func(ctx context.Context, id string) ([]byte, error)

func (f fetcherFunc) Fetch(ctx context.Context, id string) ([]byte, error) { return f(ctx, id) }

type uploaderFunc func(ctx context.Context, data []byte) (string, error)

func (f uploaderFunc) Upload(ctx context.Context, data []byte) (string, error) { return f(ctx, data) }

type gatewayFunc func(endpoint, id string) ([]byte, error)

func (f gatewayFunc) Fetch(endpoint, id string) ([]byte, error) { return f(endpoint, id) }

// contentAddressingUploader mimics IPFS addressing: the returned ID is a
// pure function of the content.
func contentAddressingUploader() ipfsUploader {
	return uploaderFunc(func(_ context.Context, data []byte) (string, error) {
		digest := sha256.Sum256(data)
		mh, err := multihash.Encode(digest[:], multihash.SHA2_256)
		if err != nil {
			return "", err
		}
		return cid.NewCidV1(cid.Raw, mh).String(), nil
	})
}

func TestPutIdenticalContentYieldsIdenticalID(t *testing.T) {
	c := &Client{uploader: contentAddressingUploader()}

	first, err := c.Put(context.Background(), []byte("same payload"))
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	second, err := c.Put(context.Background(), []byte("same payload"))
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if first != second {
		t.Fatalf("identical content produced different IDs: %s vs %s", first, second)
	}

	other, err := c.Put(context.Background(), []byte("different payload"))
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if other == first {
		t.Fatal("different content must produce a different ID")
	}
}

func TestPutWrapsError(t *testing.T) {
	c := &Client{uploader: uploaderFunc(func(context.Context, []byte) (string, error) {
		return "", fmt.Errorf("node down")
	})}

	_, err := c.Put(context.Background(), []byte("x"))
	var storeErr *MetadataStoreError
	if !errors.As(err, &storeErr) {
		t.Fatalf("expected MetadataStoreError, got %v", err)
	}
	if storeErr.Op != "put" {
		t.Fatalf("unexpected op: %s", storeErr.Op)
	}
}

func TestGetFallsBackToGateway(t *testing.T) {
	gatewayCalled := false
	c := &Client{
		GatewayURL: "https://gw/",
		fetcher: fetcherFunc(func(context.Context, string) ([]byte, error) {
			return nil, fmt.Errorf("api unreachable")
		}),
		gateway: gatewayFunc(func(endpoint, id string) ([]byte, error) {
			gatewayCalled = true
			if endpoint != "https://gw/" {
				t.Fatalf("unexpected endpoint: %s", endpoint)
			}
			return []byte("from gateway"), nil
		}),
	}

	data, err := c.Get(context.Background(), "bafytest")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(data) != "from gateway" {
		t.Fatalf("unexpected data: %q", data)
	}
	if !gatewayCalled {
		t.Fatal("expected gateway fallback to be used")
	}
}

func TestGetErrorWithoutGateway(t *testing.T) {
	c := &Client{
		fetcher: fetcherFunc(func(context.Context, string) ([]byte, error) {
			return nil, fmt.Errorf("api unreachable")
		}),
		gateway: gatewayFunc(func(string, string) ([]byte, error) {
			t.Fatal("gateway must not be called when unconfigured")
			return nil, nil
		}),
	}

	_, err := c.Get(context.Background(), "bafytest")
	var storeErr *MetadataStoreError
	if !errors.As(err, &storeErr) {
		t.Fatalf("expected MetadataStoreError, got %v", err)
	}
	if storeErr.Op != "get" {
		t.Fatalf("unexpected op: %s", storeErr.Op)
	}
}

func TestDigestRoundTrip(t *testing.T) {
	var digest [32]byte
	for i := range digest {
		digest[i] = byte(i)
	}

	id, err := IDFromDigest(digest)
	if err != nil {
		t.Fatalf("IDFromDigest failed: %v", err)
	}
	back, err := DigestFromID(id)
	if err != nil {
		t.Fatalf("DigestFromID failed: %v", err)
	}
	if back != digest {
		t.Fatal("digest round trip mismatch")
	}
}

func TestDigestFromID_Invalid(t *testing.T) {
	if _, err := DigestFromID("definitely not a cid"); err == nil {
		t.Fatal("expected error for invalid CID")
	}
}

func TestFormatHash(t *testing.T) {
	if got := FormatHash("ipfs://Qm-AbC=123!?#"); got != "QmAbC=123" {
		t.Fatalf("FormatHash returned %q", got)
	}
}
