package app

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/studytrack/notifyd/internal/push"
)

func TestDecodeKeyAcceptsBase64Variants(t *testing.T) {
	raw := make([]byte, 32)
	for i := range raw {
		raw[i] = byte(250 - i)
	}

	for _, enc := range []*base64.Encoding{
		base64.RawURLEncoding,
		base64.URLEncoding,
		base64.StdEncoding,
	} {
		decoded, err := DecodeKey(enc.EncodeToString(raw))
		require.NoError(t, err)
		require.Equal(t, raw, decoded)
	}
}

func TestDecodeKeyRejectsGarbage(t *testing.T) {
	_, err := DecodeKey("")
	require.Error(t, err)

	_, err = DecodeKey("not base64 at all!")
	require.Error(t, err)
}

func TestKeyByteLength(t *testing.T) {
	length, err := KeyByteLength("   ")
	require.NoError(t, err)
	require.Zero(t, length)

	length, err = KeyByteLength(base64.RawURLEncoding.EncodeToString(make([]byte, 32)))
	require.NoError(t, err)
	require.Equal(t, 32, length)
}

func TestValidateVAPIDKeys(t *testing.T) {
	public, private, err := push.GenerateVAPIDKeys()
	require.NoError(t, err)
	require.NoError(t, ValidateVAPIDKeys(public, private))

	require.Error(t, ValidateVAPIDKeys(private, private))
	require.Error(t, ValidateVAPIDKeys(public, public))
	require.Error(t, ValidateVAPIDKeys("", private))
}
