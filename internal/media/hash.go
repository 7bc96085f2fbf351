package media

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// ContentHash returns the hex-encoded SHA-256 of data.
func ContentHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Filename derives the upload name from content bytes and extension. Equal
// bytes always produce equal names.
func Filename(data []byte, ext string) string {
	ext = strings.TrimPrefix(strings.TrimSpace(ext), ".")
	if ext == "" {
		ext = fallbackExt
	}
	return ContentHash(data) + "." + ext
}
