package utils

import (
	"github.com/google/uuid"
	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multicodec"
	"github.com/multiformats/go-multihash"
)

// CalculateCid returns the CIDv1 (raw codec, sha2-256) of content. It names a
// payload in the logs of both ends of a transfer.
func CalculateCid(content []byte) (cid.Cid, error) {
	pref := cid.Prefix{
		Version:  1,
		Codec:    uint64(multicodec.Raw),
		MhType:   multihash.SHA2_256,
		MhLength: -1, // default length
	}

	contentCid, err := pref.Sum(content)
	if err != nil {
		return cid.Undef, err
	}

	return contentCid, nil
}

// PayloadId is CalculateCid as a string, or "-" when it cannot be computed.
func PayloadId(content []byte) string {
	c, err := CalculateCid(content)
	if err != nil {
		return "-"
	}
	return c.String()
}

// GenerateKey derives a fresh store key from base, e.g. files_to_receive:<uuid>.
func GenerateKey(base string) string {
	return base + ":" + uuid.New().String()
}

func GenerateTraceId() string {
	return uuid.New().String()
}
