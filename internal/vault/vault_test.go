package vault

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const mnemonic = "legal winner thank year wave sausage worth useful legal winner thank yellow"

func TestDecryptRoundTrip(t *testing.T) {
	blob, err := Encrypt(mnemonic, "314159")
	require.NoError(t, err)

	got, err := Decrypt(blob, "314159")
	require.NoError(t, err)
	assert.Equal(t, mnemonic, got)
}

func TestDecryptWrongPIN(t *testing.T) {
	blob, err := Encrypt(mnemonic, "314159")
	require.NoError(t, err)

	got, err := Decrypt(blob, "000000")
	require.ErrorIs(t, err, ErrInvalidSecret)
	assert.Empty(t, got, "no partial plaintext on a failed open")
}

func TestDecryptTamperedBlob(t *testing.T) {
	blob, err := Encrypt(mnemonic, "314159")
	require.NoError(t, err)
	blob[len(blob)-1] ^= 0xff

	_, err = Decrypt(blob, "314159")
	require.ErrorIs(t, err, ErrInvalidSecret)
}

func TestDecryptTruncatedBlob(t *testing.T) {
	_, err := Decrypt([]byte{0x01, 0x02}, "314159")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidSecret)
}

func TestEncryptUsesFreshSaltAndNonce(t *testing.T) {
	a, err := Encrypt(mnemonic, "314159")
	require.NoError(t, err)
	b, err := Encrypt(mnemonic, "314159")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}
