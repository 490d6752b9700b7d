package publisher

import (
	"fmt"
	"strings"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
)

// ComputeCID returns the CIDv1 (raw codec, sha2-256) of data.
func ComputeCID(data []byte) (cid.Cid, error) {
	sum, err := multihash.Sum(data, multihash.SHA2_256, -1)
	if err != nil {
		return cid.Undef, err
	}
	return cid.NewCidV1(cid.Raw, sum), nil
}

// ParseCID validates raw as a CID and returns its canonical string form.
func ParseCID(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("publisher: cid is required")
	}
	parsed, err := cid.Decode(raw)
	if err != nil {
		return "", fmt.Errorf("publisher: invalid cid %q: %w", raw, err)
	}
	return parsed.String(), nil
}

// GatewayURI builds <gateway>/ipfs/<cid>.
func GatewayURI(gateway string, contentID string) string {
	gateway = strings.TrimRight(strings.TrimSpace(gateway), "/")
	return gateway + "/ipfs/" + contentID
}
