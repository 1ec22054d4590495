package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content digests.
// Version suffix enables future algorithm migration.
const (
	DomainBuilding = "brickbook/building/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte (0x00) separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// BuildingDigest computes a content digest over a record's attributes,
// read-only keys included. Two reads return the same digest only if nothing
// about the record changed, so it serves as an HTTP entity tag.
func BuildingDigest(b Building) (string, error) {
	canonical, err := MarshalCanonical(b.Attributes())
	if err != nil {
		return "", fmt.Errorf("BuildingDigest: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainBuilding, canonical), nil
}
