package tenancy

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/nacl/secretbox"
)

const nonceSize = 24

var errSealedTooShort = errors.New("sealed value too short")

// Sealer encrypts tenant database passwords at rest. The output is the
// random nonce followed by the secretbox ciphertext.
type Sealer struct {
	key *[32]byte
}

// NewSealer builds a sealer over a 32 byte key.
func NewSealer(key *[32]byte) *Sealer {
	return &Sealer{key: key}
}

func (s *Sealer) Seal(plain string) ([]byte, error) {
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, fmt.Errorf("read nonce: %w", err)
	}
	return secretbox.Seal(nonce[:], []byte(plain), &nonce, s.key), nil
}

func (s *Sealer) Open(sealed []byte) (string, error) {
	if len(sealed) < nonceSize+secretbox.Overhead {
		return "", errSealedTooShort
	}
	var nonce [nonceSize]byte
	copy(nonce[:], sealed[:nonceSize])
	plain, ok := secretbox.Open(nil, sealed[nonceSize:], &nonce, s.key)
	if !ok {
		return "", errors.New("sealed value failed authentication")
	}
	return string(plain), nil
}
