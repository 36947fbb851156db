// Package cryptobox provides symmetric at-rest encryption for raw memory
// content and backup exports, backed by an install-scoped key file.
package cryptobox

import (
	"crypto/rand"
	"encoding/base64"
	"os"
	"path/filepath"
	"unicode/utf8"

	"golang.org/x/crypto/nacl/secretbox"

	"github.com/kittclouds/memoria/pkg/memerr"
)

const (
	keySize   = 32
	nonceSize = 24

	// DefaultKeyFileName is the conventional key file name inside an
	// install's data directory.
	DefaultKeyFileName = ".memoria_key"
)

// Box performs XSalsa20-Poly1305 (NaCl secretbox) symmetric encryption
// using a single install-wide key loaded from, or generated into, a key
// file with owner-only permissions.
type Box struct {
	key [keySize]byte
}

// Open loads the key at path, generating and persisting a new one if the
// file does not yet exist. The key file is written with 0400 permissions
// on POSIX systems; an existing file with looser permissions is accepted
// as-is (tightening it is a deployment concern, not this package's).
func Open(path string) (*Box, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, memerr.Wrap(memerr.KindEncryption, "read key file", err)
		}
		return generate(path)
	}
	return load(raw)
}

func load(raw []byte) (*Box, error) {
	decoded, err := base64.StdEncoding.DecodeString(string(raw))
	if err != nil {
		return nil, memerr.Wrap(memerr.KindEncryption, "malformed key file", err)
	}
	if len(decoded) != keySize {
		return nil, memerr.New(memerr.KindEncryption, "key file has wrong length")
	}
	b := &Box{}
	copy(b.key[:], decoded)
	return b, nil
}

func generate(path string) (*Box, error) {
	b := &Box{}
	if _, err := rand.Read(b.key[:]); err != nil {
		return nil, memerr.Wrap(memerr.KindEncryption, "generate key", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, memerr.Wrap(memerr.KindEncryption, "create key directory", err)
		}
	}
	encoded := base64.StdEncoding.EncodeToString(b.key[:])
	if err := os.WriteFile(path, []byte(encoded), 0o400); err != nil {
		return nil, memerr.Wrap(memerr.KindEncryption, "write key file", err)
	}
	return b, nil
}

// NewFromKey builds a Box from an already-loaded 32-byte key, for tests
// and for the encrypted-export path where the key is supplied directly.
func NewFromKey(key []byte) (*Box, error) {
	if len(key) != keySize {
		return nil, memerr.New(memerr.KindEncryption, "key must be 32 bytes")
	}
	b := &Box{}
	copy(b.key[:], key)
	return b, nil
}

// Encrypt seals plaintext into a nonce-prefixed ciphertext.
func (b *Box) Encrypt(plaintext []byte) ([]byte, error) {
	var nonce [nonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, memerr.Wrap(memerr.KindEncryption, "generate nonce", err)
	}
	out := secretbox.Seal(nonce[:], plaintext, &nonce, &b.key)
	return out, nil
}

// Decrypt opens a nonce-prefixed ciphertext produced by Encrypt.
func (b *Box) Decrypt(ciphertext []byte) ([]byte, error) {
	if len(ciphertext) < nonceSize {
		return nil, memerr.New(memerr.KindEncryption, "ciphertext too short")
	}
	var nonce [nonceSize]byte
	copy(nonce[:], ciphertext[:nonceSize])
	plaintext, ok := secretbox.Open(nil, ciphertext[nonceSize:], &nonce, &b.key)
	if !ok {
		return nil, memerr.New(memerr.KindEncryption, "decryption failed: invalid key or corrupt ciphertext")
	}
	return plaintext, nil
}

// EncryptString is a convenience wrapper for the common text case, used
// by the Raw Memory Store when an owner's install has encryption on.
func (b *Box) EncryptString(plaintext string) ([]byte, error) {
	return b.Encrypt([]byte(plaintext))
}

// DecryptString reverses EncryptString, returning an encryption-kind error
// (not a panic) if the decrypted bytes are not valid UTF-8.
func (b *Box) DecryptString(ciphertext []byte) (string, error) {
	raw, err := b.Decrypt(ciphertext)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(raw) {
		return "", memerr.New(memerr.KindEncryption, "decrypted payload is not valid UTF-8")
	}
	return string(raw), nil
}
