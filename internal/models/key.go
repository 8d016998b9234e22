package models

import (
	"crypto/sha1"
	"encoding/hex"
)

// Key returns a stable file-safe identifier for a paper URL.
func Key(url string) string {
	sum := sha1.Sum([]byte(url))
	return hex.EncodeToString(sum[:])
}
