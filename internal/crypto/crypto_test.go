package crypto

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func testKey() []byte {
	return bytes.Repeat([]byte{0x42}, 32)
}

func TestNewEncryptorKeyLength(t *testing.T) {
	_, err := NewEncryptor([]byte("too short"))
	require.ErrorIs(t, err, ErrInvalidKey)

	_, err = NewEncryptor(testKey())
	require.NoError(t, err)
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	enc, err := NewEncryptor(testKey())
	require.NoError(t, err)

	ciphertext, err := enc.Encrypt([]byte("sk-secret-api-key"))
	require.NoError(t, err)
	require.NotEqual(t, []byte("sk-secret-api-key"), ciphertext)

	plaintext, err := enc.Decrypt(ciphertext)
	require.NoError(t, err)
	require.Equal(t, []byte("sk-secret-api-key"), plaintext)
}

func TestEncryptIsNonDeterministic(t *testing.T) {
	enc, err := NewEncryptor(testKey())
	require.NoError(t, err)

	a, err := enc.Encrypt([]byte("same value"))
	require.NoError(t, err)
	b, err := enc.Encrypt([]byte("same value"))
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}

func TestDecryptWrongKey(t *testing.T) {
	enc, err := NewEncryptor(testKey())
	require.NoError(t, err)
	other, err := NewEncryptor(bytes.Repeat([]byte{0x13}, 32))
	require.NoError(t, err)

	ciphertext, err := enc.Encrypt([]byte("secret"))
	require.NoError(t, err)

	_, err = other.Decrypt(ciphertext)
	require.ErrorIs(t, err, ErrDecryptionFailed)
}

func TestDecryptTruncated(t *testing.T) {
	enc, err := NewEncryptor(testKey())
	require.NoError(t, err)

	_, err = enc.Decrypt([]byte{0x01, 0x02})
	require.ErrorIs(t, err, ErrInvalidCiphertext)
}

func TestStringRoundTrip(t *testing.T) {
	enc, err := NewEncryptor(testKey())
	require.NoError(t, err)

	encoded, err := enc.EncryptString("postgres://app:hunter2@db/prod")
	require.NoError(t, err)
	require.NotContains(t, encoded, "hunter2")

	decoded, err := enc.DecryptString(encoded)
	require.NoError(t, err)
	require.Equal(t, "postgres://app:hunter2@db/prod", decoded)

	_, err = enc.DecryptString("not base64 !!!")
	require.ErrorIs(t, err, ErrInvalidCiphertext)
}
