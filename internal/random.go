// Package internal holds helpers shared by the authgate packages and not
// part of the public API.
package internal

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

// NewSessionID returns a 128-bit random identifier encoded as unpadded
// URL-safe base64, suitable for cookie values.
func NewSessionID() (string, error) {
	var buf [16]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", fmt.Errorf("random source: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf[:]), nil
}

// NewVerificationToken returns a 256-bit random token encoded as 64 hex
// characters. Hex keeps the token safe to embed in URLs and mail bodies
// without further escaping.
func NewVerificationToken() (string, error) {
	var buf [32]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", fmt.Errorf("random source: %w", err)
	}
	return hex.EncodeToString(buf[:]), nil
}
