package model

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// The version suffix leaves room for a future algorithm change.
const (
	DomainPayload  = "learnsync/payload/v1"
	DomainConflict = "learnsync/conflict/v1"
)

// hashWithDomain computes SHA256(domain || 0x00 || data).
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Fingerprint returns a stable hash of a payload's canonical JSON.
// Two payloads with equal fingerprints are semantically equal.
func Fingerprint(p Payload) (string, error) {
	if p == nil {
		p = Payload{}
	}
	canonical, err := MarshalCanonical(p)
	if err != nil {
		return "", fmt.Errorf("fingerprint: %w", err)
	}
	return hashWithDomain(DomainPayload, canonical), nil
}

// ConflictID derives the id of the conflict between a queued item and a
// remote record. Detecting the same divergence twice yields the same id,
// which keeps the conflict log idempotent.
func ConflictID(itemID string, remote Payload) (string, error) {
	fp, err := Fingerprint(remote)
	if err != nil {
		return "", fmt.Errorf("conflict id: %w", err)
	}
	canonical, err := MarshalCanonical(map[string]any{
		"item_id": itemID,
		"remote":  fp,
	})
	if err != nil {
		return "", fmt.Errorf("conflict id: %w", err)
	}
	return hashWithDomain(DomainConflict, canonical), nil
}

// PayloadsEqual reports whether a and b have the same canonical form.
// Payloads that cannot be canonicalized are never equal.
func PayloadsEqual(a, b Payload) bool {
	fa, err := Fingerprint(a)
	if err != nil {
		return false
	}
	fb, err := Fingerprint(b)
	if err != nil {
		return false
	}
	return fa == fb
}
