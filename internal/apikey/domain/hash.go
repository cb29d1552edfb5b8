package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// HashAPIKey hashes the raw API key using the same strategy as key creation.
func HashAPIKey(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// MaskKey renders the stored hint the way the dashboard lists keys.
func MaskKey(keyID, hint string) string {
	return "sk_" + strings.ToLower(strings.TrimPrefix(keyID, "key_")) + "_..." + hint
}
