package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"io"

	"github.com/rotisserie/eris"
	"golang.org/x/crypto/argon2"
)

const (
	saltLength = 16
	keyLength  = 32

	// Argon2id parameters: 3 passes over 64 MiB with 4 lanes.
	argonTime    = 3
	argonMemory  = 64 * 1024
	argonThreads = 4
)

// deriveKey derives a symmetric key from the operator passphrase and salt
// using Argon2id.
func deriveKey(passphrase string, salt []byte) []byte {
	return argon2.IDKey([]byte(passphrase), salt, argonTime, argonMemory, argonThreads, keyLength)
}

// newSalt generates a random KDF salt.
func newSalt() ([]byte, error) {
	salt := make([]byte, saltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, eris.Wrap(err, "vault: generate salt")
	}
	return salt, nil
}

// seal encrypts plaintext with AES-256-GCM. The nonce is prepended to the
// ciphertext.
func seal(key, plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, eris.Wrap(err, "vault: create cipher")
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, eris.Wrap(err, "vault: create gcm")
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, eris.Wrap(err, "vault: generate nonce")
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

// open decrypts a sealed blob produced by seal.
func open(key, sealed []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, eris.Wrap(err, "vault: create cipher")
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, eris.Wrap(err, "vault: create gcm")
	}
	if len(sealed) < gcm.NonceSize() {
		return nil, eris.New("vault: sealed blob too short")
	}
	nonce, ciphertext := sealed[:gcm.NonceSize()], sealed[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, eris.Wrap(err, "vault: decrypt")
	}
	return plaintext, nil
}
