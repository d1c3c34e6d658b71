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

package crypto

import (
	encoding_asn1 "encoding/asn1"
	"errors"
	"fmt"

	"golang.org/x/crypto/cryptobyte"
	"golang.org/x/crypto/cryptobyte/asn1"
)

var (
	oidEd25519     = encoding_asn1.ObjectIdentifier{1, 3, 101, 112}
	oidSecp256k1   = encoding_asn1.ObjectIdentifier{1, 3, 132, 0, 10}
	oidECPublicKey = encoding_asn1.ObjectIdentifier{1, 2, 840, 10045, 2, 1}

	tagECParameters = asn1.Tag(0).ContextSpecific().Constructed()
)

var ErrMalformedDER = errors.New("malformed DER key")

// EncodeSecretDER encodes sk as PKCS#8 (Ed25519, RFC 8410) or as a SEC1
// ECPrivateKey (secp256k1).
func EncodeSecretDER(sk SecretKey) ([]byte, error) {
	if len(sk.raw) != SecretKeyLength {
		return nil, fmt.Errorf("%w: %s secret key has %d bytes", ErrInvalidKeyLength, sk.scheme, len(sk.raw))
	}
	var b cryptobyte.Builder
	switch sk.scheme {
	case Ed25519:
		b.AddASN1(asn1.SEQUENCE, func(b *cryptobyte.Builder) {
			b.AddASN1Int64(0)
			b.AddASN1(asn1.SEQUENCE, func(b *cryptobyte.Builder) {
				b.AddASN1ObjectIdentifier(oidEd25519)
			})
			b.AddASN1(asn1.OCTET_STRING, func(b *cryptobyte.Builder) {
				b.AddASN1OctetString(sk.raw)
			})
		})
	case Secp256k1:
		b.AddASN1(asn1.SEQUENCE, func(b *cryptobyte.Builder) {
			b.AddASN1Int64(1)
			b.AddASN1OctetString(sk.raw)
			b.AddASN1(tagECParameters, func(b *cryptobyte.Builder) {
				b.AddASN1ObjectIdentifier(oidSecp256k1)
			})
		})
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownScheme, byte(sk.scheme))
	}
	return b.Bytes()
}

// DecodeSecretDER parses a key produced by EncodeSecretDER. The scheme is
// derived from the structure version and the algorithm identifier.
func DecodeSecretDER(der []byte) (SecretKey, error) {
	var (
		input   = cryptobyte.String(der)
		seq     cryptobyte.String
		version int64
	)
	if !input.ReadASN1(&seq, asn1.SEQUENCE) || !input.Empty() {
		return SecretKey{}, fmt.Errorf("%w: not a single sequence", ErrMalformedDER)
	}
	if !seq.ReadASN1Integer(&version) {
		return SecretKey{}, fmt.Errorf("%w: missing version", ErrMalformedDER)
	}
	switch version {
	case 0:
		var (
			alg, outer, raw cryptobyte.String
			oid             encoding_asn1.ObjectIdentifier
		)
		if !seq.ReadASN1(&alg, asn1.SEQUENCE) || !alg.ReadASN1ObjectIdentifier(&oid) {
			return SecretKey{}, fmt.Errorf("%w: missing algorithm identifier", ErrMalformedDER)
		}
		if !oid.Equal(oidEd25519) {
			return SecretKey{}, fmt.Errorf("%w: algorithm %v", ErrUnknownScheme, oid)
		}
		if !seq.ReadASN1(&outer, asn1.OCTET_STRING) || !outer.ReadASN1(&raw, asn1.OCTET_STRING) {
			return SecretKey{}, fmt.Errorf("%w: missing private key", ErrMalformedDER)
		}
		return NewSecretKey(Ed25519, raw)

	case 1:
		var (
			raw, params cryptobyte.String
			oid         encoding_asn1.ObjectIdentifier
		)
		if !seq.ReadASN1(&raw, asn1.OCTET_STRING) {
			return SecretKey{}, fmt.Errorf("%w: missing private key", ErrMalformedDER)
		}
		if !seq.ReadASN1(&params, tagECParameters) || !params.ReadASN1ObjectIdentifier(&oid) {
			return SecretKey{}, fmt.Errorf("%w: missing curve parameters", ErrMalformedDER)
		}
		if !oid.Equal(oidSecp256k1) {
			return SecretKey{}, fmt.Errorf("%w: curve %v", ErrUnknownScheme, oid)
		}
		return NewSecretKey(Secp256k1, raw)

	default:
		return SecretKey{}, fmt.Errorf("%w: version %d", ErrMalformedDER, version)
	}
}

// EncodePublicDER encodes pk as a SubjectPublicKeyInfo structure.
func EncodePublicDER(pk PublicKey) ([]byte, error) {
	var b cryptobyte.Builder
	switch pk.scheme {
	case Ed25519:
		b.AddASN1(asn1.SEQUENCE, func(b *cryptobyte.Builder) {
			b.AddASN1(asn1.SEQUENCE, func(b *cryptobyte.Builder) {
				b.AddASN1ObjectIdentifier(oidEd25519)
			})
			b.AddASN1BitString(pk.raw)
		})
	case Secp256k1:
		b.AddASN1(asn1.SEQUENCE, func(b *cryptobyte.Builder) {
			b.AddASN1(asn1.SEQUENCE, func(b *cryptobyte.Builder) {
				b.AddASN1ObjectIdentifier(oidECPublicKey)
				b.AddASN1ObjectIdentifier(oidSecp256k1)
			})
			b.AddASN1BitString(pk.raw)
		})
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownScheme, byte(pk.scheme))
	}
	return b.Bytes()
}

// DecodePublicDER parses a SubjectPublicKeyInfo produced by EncodePublicDER.
func DecodePublicDER(der []byte) (PublicKey, error) {
	var (
		input    = cryptobyte.String(der)
		seq, alg cryptobyte.String
		oid      encoding_asn1.ObjectIdentifier
		bits     []byte
	)
	if !input.ReadASN1(&seq, asn1.SEQUENCE) || !input.Empty() {
		return PublicKey{}, fmt.Errorf("%w: not a single sequence", ErrMalformedDER)
	}
	if !seq.ReadASN1(&alg, asn1.SEQUENCE) || !alg.ReadASN1ObjectIdentifier(&oid) {
		return PublicKey{}, fmt.Errorf("%w: missing algorithm identifier", ErrMalformedDER)
	}
	if !seq.ReadASN1BitStringAsBytes(&bits) {
		return PublicKey{}, fmt.Errorf("%w: missing public key", ErrMalformedDER)
	}
	switch {
	case oid.Equal(oidEd25519):
		return NewPublicKey(Ed25519, bits)
	case oid.Equal(oidECPublicKey):
		var curve encoding_asn1.ObjectIdentifier
		if !alg.ReadASN1ObjectIdentifier(&curve) || !curve.Equal(oidSecp256k1) {
			return PublicKey{}, fmt.Errorf("%w: curve %v", ErrUnknownScheme, curve)
		}
		return NewPublicKey(Secp256k1, bits)
	default:
		return PublicKey{}, fmt.Errorf("%w: algorithm %v", ErrUnknownScheme, oid)
	}
}
