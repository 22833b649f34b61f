// Package storage implements the content-addressed metadata store used by
// the marketplace SDK. Request payloads and delivered results live in IPFS;
// identifiers are CIDs, so storing identical content twice yields the same
// identifier and costs nothing extra. Reads go through the Kubo HTTP API
// with an optional HTTP gateway fallback.
package storage

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
)

// IpfsPrefix is the URI scheme prefix recognized for IPFS content.
const IpfsPrefix = "ipfs://"

// Store is the interface the orchestrator consumes: store opaque content
// and get back a content-derived identifier, or retrieve by identifier.
type Store interface {
	Put(ctx context.Context, data []byte) (string, error)
	Get(ctx context.Context, id string) ([]byte, error)
}

// MetadataStoreError reports a failed store interaction.
type MetadataStoreError struct {
	Op  string // "put" or "get"
	ID  string // content ID, when known
	Err error
}

func (e *MetadataStoreError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("metadata store %s %s: %v", e.Op, e.ID, e.Err)
	}
	return fmt.Sprintf("metadata store %s: %v", e.Op, e.Err)
}

func (e *MetadataStoreError) Unwrap() error { return e.Err }

// DigestFromID converts a content ID (CID) into the 32-byte multihash
// digest submitted on-chain as request data.
func DigestFromID(id string) ([32]byte, error) {
	var digest [32]byte
	c, err := cid.Parse(FormatHash(id))
	if err != nil {
		return digest, &MetadataStoreError{Op: "digest", ID: id, Err: err}
	}
	decoded, err := multihash.Decode(c.Hash())
	if err != nil {
		return digest, &MetadataStoreError{Op: "digest", ID: id, Err: err}
	}
	if len(decoded.Digest) != 32 {
		return digest, &MetadataStoreError{Op: "digest", ID: id,
			Err: fmt.Errorf("unsupported digest length %d", len(decoded.Digest))}
	}
	copy(digest[:], decoded.Digest)
	return digest, nil
}

// IDFromDigest reconstructs a CIDv1 (raw codec, sha2-256) content ID from a
// 32-byte on-chain digest, such as the payload of a delivery event.
func IDFromDigest(digest [32]byte) (string, error) {
	mh, err := multihash.Encode(digest[:], multihash.SHA2_256)
	if err != nil {
		return "", &MetadataStoreError{Op: "digest", Err: err}
	}
	return cid.NewCidV1(cid.Raw, mh).String(), nil
}

// FormatHash strips the ipfs:// prefix and any non-alphanumeric characters
// (except '=') from the supplied identifier, producing a clean CID string.
func FormatHash(hash string) string {
	hash = strings.Replace(hash, IpfsPrefix, "", -1)
	hash = removeSpecialCharacters(hash)
	return hash
}

func removeSpecialCharacters(pString string) string {
	reg := regexp.MustCompile("[^a-zA-Z0-9=]")
	return reg.ReplaceAllString(pString, "")
}
