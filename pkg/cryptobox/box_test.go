package cryptobox

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	key := make([]byte, keySize)
	for i := range key {
		key[i] = byte(i)
	}
	b, err := NewFromKey(key)
	require.NoError(t, err)

	plaintext := []byte("the quick brown fox")
	ciphertext, err := b.Encrypt(plaintext)
	require.NoError(t, err)
	require.NotEqual(t, plaintext, ciphertext)

	decrypted, err := b.Decrypt(ciphertext)
	require.NoError(t, err)
	require.Equal(t, plaintext, decrypted)
}

func TestStringRoundTrip(t *testing.T) {
	key := make([]byte, keySize)
	b, err := NewFromKey(key)
	require.NoError(t, err)

	s := "早上喝了一杯咖啡"
	ct, err := b.EncryptString(s)
	require.NoError(t, err)
	pt, err := b.DecryptString(ct)
	require.NoError(t, err)
	require.Equal(t, s, pt)
}

func TestOpenGeneratesAndReloadsKeyFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sub", "key")

	b1, err := Open(path)
	require.NoError(t, err)

	b2, err := Open(path)
	require.NoError(t, err)

	ct, err := b1.Encrypt([]byte("hello"))
	require.NoError(t, err)
	pt, err := b2.Decrypt(ct)
	require.NoError(t, err)
	require.Equal(t, "hello", string(pt))
}

func TestDecryptRejectsShortCiphertext(t *testing.T) {
	b, err := NewFromKey(make([]byte, keySize))
	require.NoError(t, err)
	_, err = b.Decrypt([]byte("short"))
	require.Error(t, err)
}

func TestDecryptRejectsWrongKey(t *testing.T) {
	b1, err := NewFromKey(make([]byte, keySize))
	require.NoError(t, err)
	key2 := make([]byte, keySize)
	key2[0] = 1
	b2, err := NewFromKey(key2)
	require.NoError(t, err)

	ct, err := b1.Encrypt([]byte("secret"))
	require.NoError(t, err)
	_, err = b2.Decrypt(ct)
	require.Error(t, err)
}
