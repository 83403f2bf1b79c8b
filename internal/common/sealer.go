package common

import (
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/nacl/secretbox"
)

const nonceSize = 24

var ErrUnsealable = errors.New("sealed value cannot be opened")

// Sealer encrypts values kept at rest with a key derived from a shared secret.
// A nil *Sealer passes values through unchanged.
type Sealer struct {
	key [32]byte
}

func NewSealer(secret string) (*Sealer, error) {
	if secret == "" {
		return nil, errors.New("sealer: secret must be provided")
	}

	s := &Sealer{}
	r := hkdf.New(sha256.New, []byte(secret), nil, []byte("blogclient session token"))
	if _, err := io.ReadFull(r, s.key[:]); err != nil {
		return nil, fmt.Errorf("sealer: derive key: %w", err)
	}

	return s, nil
}

func (s *Sealer) Seal(plain []byte) ([]byte, error) {
	if s == nil {
		return plain, nil
	}

	var nonce [nonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, fmt.Errorf("sealer: generate nonce: %w", err)
	}

	return secretbox.Seal(nonce[:], plain, &nonce, &s.key), nil
}

func (s *Sealer) Open(sealed []byte) ([]byte, error) {
	if s == nil {
		return sealed, nil
	}

	if len(sealed) < nonceSize+secretbox.Overhead {
		return nil, ErrUnsealable
	}

	var nonce [nonceSize]byte
	copy(nonce[:], sealed[:nonceSize])

	plain, ok := secretbox.Open(nil, sealed[nonceSize:], &nonce, &s.key)
	if !ok {
		return nil, ErrUnsealable
	}

	return plain, nil
}
