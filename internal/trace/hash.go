package trace

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/roach88/shade/internal/wire"
)

// Domain prefixes for content digests. The version suffix leaves room for
// a future algorithm change.
const (
	DomainExchange = "shade/exchange/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// ExchangeDigest computes the digest of a command/response pair. Sequence
// and thread are excluded: two runs that send the same commands and get the
// same answers have the same digests.
func ExchangeDigest(cmd *wire.ExecCommand, resp *wire.Response) (string, error) {
	c, err := Command(cmd)
	if err != nil {
		return "", fmt.Errorf("ExchangeDigest: %w", err)
	}
	r, err := Response(resp)
	if err != nil {
		return "", fmt.Errorf("ExchangeDigest: %w", err)
	}
	canonical, err := MarshalCanonical(Object{"command": c, "response": r})
	if err != nil {
		return "", fmt.Errorf("ExchangeDigest: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainExchange, canonical), nil
}

// Digest decodes a raw pair and returns its digest.
func Digest(codec wire.Codec, request, response []byte) (string, error) {
	cmd, resp, err := Decode(codec, request, response)
	if err != nil {
		return "", err
	}
	return ExchangeDigest(cmd, resp)
}
