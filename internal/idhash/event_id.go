package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ComputeEventID computes a deterministic event identifier using SHA256.
// Formula: SHA256(signature|wallet|mint|leg_index)
// Returns hex-encoded hash (64 characters).
func ComputeEventID(signature, wallet, mint string, legIndex int) string {
	data := fmt.Sprintf("%s|%s|%s|%d", signature, wallet, mint, legIndex)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}

// ComputeLotID computes a deterministic lot identifier using SHA256.
// Formula: SHA256(wallet|mint|seq)
// Returns hex-encoded hash (64 characters).
func ComputeLotID(wallet, mint string, seq int64) string {
	data := fmt.Sprintf("%s|%s|%d", wallet, mint, seq)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
