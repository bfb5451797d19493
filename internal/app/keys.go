package app

import (
	"encoding/base64"
	"fmt"
	"strings"
)

const (
	vapidPublicKeyBytes  = 65
	vapidPrivateKeyBytes = 32
)

// DecodeKey decodes a VAPID key. Browsers and webpush tooling emit unpadded base64url,
// but padded and standard alphabets are accepted too.
func DecodeKey(value string) ([]byte, error) {
	v := strings.TrimSpace(value)
	if v == "" {
		return nil, fmt.Errorf("key value is empty")
	}

	for _, enc := range []*base64.Encoding{
		base64.RawURLEncoding,
		base64.URLEncoding,
		base64.RawStdEncoding,
		base64.StdEncoding,
	} {
		if decoded, err := enc.DecodeString(v); err == nil {
			return decoded, nil
		}
	}

	return nil, fmt.Errorf("key is not base64 encoded")
}

// KeyByteLength returns the decoded byte length of a key string, or 0 when it is empty.
func KeyByteLength(value string) (int, error) {
	if strings.TrimSpace(value) == "" {
		return 0, nil
	}
	decoded, err := DecodeKey(value)
	if err != nil {
		return 0, err
	}
	return len(decoded), nil
}

// ValidateVAPIDKeys checks that the pair looks like an uncompressed P-256 public key and
// its 32 byte private scalar.
func ValidateVAPIDKeys(publicKey, privateKey string) error {
	pub, err := DecodeKey(publicKey)
	if err != nil {
		return fmt.Errorf("vapid public key: %w", err)
	}
	if len(pub) != vapidPublicKeyBytes || pub[0] != 0x04 {
		return fmt.Errorf("vapid public key must be an uncompressed P-256 point (%d bytes), got %d", vapidPublicKeyBytes, len(pub))
	}

	length, err := KeyByteLength(privateKey)
	if err != nil {
		return fmt.Errorf("vapid private key: %w", err)
	}
	if length != vapidPrivateKeyBytes {
		return fmt.Errorf("vapid private key must be %d bytes, got %d", vapidPrivateKeyBytes, length)
	}
	return nil
}
