package auth

import (
	"bytes"
	"encoding/base64"

	"github.com/gtank/cryptopasta"
	"github.com/pkg/errors"
)

// sealedPrefix marks a session file encrypted with a passphrase
var sealedPrefix = []byte("pennywise-sealed:")

// sealKey derives the 32 byte AES key from a passphrase
func sealKey(passphrase string) *[32]byte {
	key := &[32]byte{}
	copy(key[:], cryptopasta.Hash("pennywise session", []byte(passphrase)))
	return key
}

// seal encrypts plaintext with AES-GCM and base64 encodes it
func seal(plaintext []byte, passphrase string) ([]byte, error) {
	ciphertext, err := cryptopasta.Encrypt(plaintext, sealKey(passphrase))
	if err != nil {
		return nil, errors.Wrap(err, "failed to encrypt session")
	}
	out := make([]byte, 0, len(sealedPrefix)+base64.RawURLEncoding.EncodedLen(len(ciphertext)))
	out = append(out, sealedPrefix...)
	return append(out, base64.RawURLEncoding.EncodeToString(ciphertext)...), nil
}

// unseal reverses seal. Data without the prefix is returned unchanged so
// plain session files keep working after a key is configured.
func unseal(data []byte, passphrase string) ([]byte, error) {
	if !isSealed(data) {
		return data, nil
	}
	if passphrase == "" {
		return nil, errors.New("session file is encrypted but no session key is configured")
	}
	ciphertext, err := base64.RawURLEncoding.DecodeString(string(bytes.TrimSpace(data[len(sealedPrefix):])))
	if err != nil {
		return nil, errors.Wrap(err, "failed to decode session")
	}
	plaintext, err := cryptopasta.Decrypt(ciphertext, sealKey(passphrase))
	if err != nil {
		return nil, errors.Wrap(err, "failed to decrypt session, wrong session key?")
	}
	return plaintext, nil
}

func isSealed(data []byte) bool {
	return bytes.HasPrefix(data, sealedPrefix)
}
