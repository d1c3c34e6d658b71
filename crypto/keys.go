// Copyright 2024 The netharness Authors
// This file is part of the netharness library.
//
// The netharness library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The netharness library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the netharness library. If not, see <http://www.gnu.org/licenses/>.

// Package crypto generates the node identities used by a test network.
//
// Every identity is either an Ed25519 or a secp256k1 key pair. Public keys are
// rendered as account identifiers: a two hex digit scheme tag followed by the
// lowercase hex of the raw public key bytes.
package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"github.com/btcsuite/btcd/btcec/v2"
)

// Scheme identifies the signature scheme of a key.
type Scheme byte

const (
	Ed25519   Scheme = 0x01
	Secp256k1 Scheme = 0x02
)

const (
	// SecretKeyLength is the raw length of secret keys of both schemes.
	SecretKeyLength = 32

	ed25519PublicKeyLength   = ed25519.PublicKeySize
	secp256k1PublicKeyLength = btcec.PubKeyBytesLenCompressed
)

var (
	ErrUnknownScheme    = errors.New("unknown key scheme")
	ErrInvalidKeyLength = errors.New("invalid key length")
	ErrInvalidKey       = errors.New("invalid key")
)

// ParseScheme returns the scheme with the given name.
func ParseScheme(name string) (Scheme, error) {
	switch name {
	case "ed25519", "01":
		return Ed25519, nil
	case "secp256k1", "02":
		return Secp256k1, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownScheme, name)
}

func (s Scheme) String() string {
	switch s {
	case Ed25519:
		return "ed25519"
	case Secp256k1:
		return "secp256k1"
	default:
		return fmt.Sprintf("scheme(%d)", byte(s))
	}
}

// Tag returns the two hex digit prefix used in account identifiers.
func (s Scheme) Tag() string {
	return fmt.Sprintf("%02x", byte(s))
}

// PublicKey is the public half of a node identity. The zero value is not a
// valid key.
type PublicKey struct {
	scheme Scheme
	raw    []byte // 32 byte point for ed25519, compressed SEC1 point for secp256k1
}

// SecretKey is the secret half of a node identity.
type SecretKey struct {
	scheme Scheme
	raw    []byte // ed25519 seed or secp256k1 scalar
}

// Scheme returns the signature scheme of the key.
func (k PublicKey) Scheme() Scheme { return k.scheme }

// Bytes returns a copy of the raw public key bytes.
func (k PublicKey) Bytes() []byte { return append([]byte(nil), k.raw...) }

// Hex returns the account identifier of the key.
func (k PublicKey) Hex() string {
	return k.scheme.Tag() + hex.EncodeToString(k.raw)
}

func (k PublicKey) String() string { return k.Hex() }

// Equal reports whether both keys hold the same scheme and bytes.
func (k PublicKey) Equal(other PublicKey) bool {
	return k.scheme == other.scheme && string(k.raw) == string(other.raw)
}

// Scheme returns the signature scheme of the key.
func (k SecretKey) Scheme() Scheme { return k.scheme }

// Bytes returns a copy of the raw secret key bytes.
func (k SecretKey) Bytes() []byte { return append([]byte(nil), k.raw...) }

// Public derives the public key belonging to k.
func (k SecretKey) Public() PublicKey {
	switch k.scheme {
	case Ed25519:
		priv := ed25519.NewKeyFromSeed(k.raw)
		return PublicKey{scheme: Ed25519, raw: []byte(priv.Public().(ed25519.PublicKey))}
	case Secp256k1:
		_, pub := btcec.PrivKeyFromBytes(k.raw)
		return PublicKey{scheme: Secp256k1, raw: pub.SerializeCompressed()}
	default:
		return PublicKey{}
	}
}

// NewSecretKey wraps raw secret key bytes of the given scheme.
func NewSecretKey(scheme Scheme, raw []byte) (SecretKey, error) {
	if len(raw) != SecretKeyLength {
		return SecretKey{}, fmt.Errorf("%w: %s secret key has %d bytes, want %d", ErrInvalidKeyLength, scheme, len(raw), SecretKeyLength)
	}
	switch scheme {
	case Ed25519:
	case Secp256k1:
		if !validScalar(raw) {
			return SecretKey{}, fmt.Errorf("%w: secp256k1 scalar out of range", ErrInvalidKey)
		}
	default:
		return SecretKey{}, fmt.Errorf("%w: %d", ErrUnknownScheme, byte(scheme))
	}
	return SecretKey{scheme: scheme, raw: append([]byte(nil), raw...)}, nil
}

// NewPublicKey wraps raw public key bytes of the given scheme.
func NewPublicKey(scheme Scheme, raw []byte) (PublicKey, error) {
	switch scheme {
	case Ed25519:
		if len(raw) != ed25519PublicKeyLength {
			return PublicKey{}, fmt.Errorf("%w: ed25519 public key has %d bytes", ErrInvalidKeyLength, len(raw))
		}
	case Secp256k1:
		pub, err := btcec.ParsePubKey(raw)
		if err != nil {
			return PublicKey{}, fmt.Errorf("%w: %v", ErrInvalidKey, err)
		}
		raw = pub.SerializeCompressed()
	default:
		return PublicKey{}, fmt.Errorf("%w: %d", ErrUnknownScheme, byte(scheme))
	}
	return PublicKey{scheme: scheme, raw: append([]byte(nil), raw...)}, nil
}

// GenerateKey creates a key pair of a scheme picked with equal probability.
// A nil reader means crypto/rand.
func GenerateKey(r io.Reader) (PublicKey, SecretKey, error) {
	if r == nil {
		r = rand.Reader
	}
	var pick [1]byte
	if _, err := io.ReadFull(r, pick[:]); err != nil {
		return PublicKey{}, SecretKey{}, err
	}
	scheme := Ed25519
	if pick[0]&1 == 1 {
		scheme = Secp256k1
	}
	return GenerateKeyOf(scheme, r)
}

// GenerateKeyOf creates a key pair of the given scheme.
func GenerateKeyOf(scheme Scheme, r io.Reader) (PublicKey, SecretKey, error) {
	if r == nil {
		r = rand.Reader
	}
	raw := make([]byte, SecretKeyLength)
	switch scheme {
	case Ed25519:
		if _, err := io.ReadFull(r, raw); err != nil {
			return PublicKey{}, SecretKey{}, err
		}
	case Secp256k1:
		for {
			if _, err := io.ReadFull(r, raw); err != nil {
				return PublicKey{}, SecretKey{}, err
			}
			if validScalar(raw) {
				break
			}
		}
	default:
		return PublicKey{}, SecretKey{}, fmt.Errorf("%w: %d", ErrUnknownScheme, byte(scheme))
	}
	sk := SecretKey{scheme: scheme, raw: raw}
	return sk.Public(), sk, nil
}

// validScalar reports whether b is a secp256k1 scalar in [1, n-1].
func validScalar(b []byte) bool {
	var s btcec.ModNScalar
	overflow := s.SetByteSlice(b)
	return !overflow && !s.IsZero()
}
