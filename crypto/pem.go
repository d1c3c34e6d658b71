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
	"encoding/pem"
	"errors"
	"fmt"
	"os"
)

const (
	pemPKCS8  = "PRIVATE KEY"
	pemEC     = "EC PRIVATE KEY"
	pemPublic = "PUBLIC KEY"
)

var ErrNoPEMBlock = errors.New("no PEM block found")

// EncodeSecretPEM wraps the DER encoding of sk into a PEM container labelled
// "PRIVATE KEY" for Ed25519 and "EC PRIVATE KEY" for secp256k1.
func EncodeSecretPEM(sk SecretKey) ([]byte, error) {
	der, err := EncodeSecretDER(sk)
	if err != nil {
		return nil, err
	}
	label := pemPKCS8
	if sk.scheme == Secp256k1 {
		label = pemEC
	}
	return pem.EncodeToMemory(&pem.Block{Type: label, Bytes: der}), nil
}

// DecodeSecretPEM is the inverse of EncodeSecretPEM.
func DecodeSecretPEM(data []byte) (SecretKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return SecretKey{}, ErrNoPEMBlock
	}
	sk, err := DecodeSecretDER(block.Bytes)
	if err != nil {
		return SecretKey{}, err
	}
	want := pemPKCS8
	if sk.scheme == Secp256k1 {
		want = pemEC
	}
	if block.Type != want {
		return SecretKey{}, fmt.Errorf("unexpected PEM label %q for %s key", block.Type, sk.scheme)
	}
	return sk, nil
}

// EncodePublicPEM wraps the SubjectPublicKeyInfo of pk into a "PUBLIC KEY"
// PEM container.
func EncodePublicPEM(pk PublicKey) ([]byte, error) {
	der, err := EncodePublicDER(pk)
	if err != nil {
		return nil, err
	}
	return pem.EncodeToMemory(&pem.Block{Type: pemPublic, Bytes: der}), nil
}

// DecodePublicPEM is the inverse of EncodePublicPEM.
func DecodePublicPEM(data []byte) (PublicKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return PublicKey{}, ErrNoPEMBlock
	}
	if block.Type != pemPublic {
		return PublicKey{}, fmt.Errorf("unexpected PEM label %q", block.Type)
	}
	return DecodePublicDER(block.Bytes)
}

// SaveSecretKey writes sk to file as PEM, readable by the owner only.
func SaveSecretKey(file string, sk SecretKey) error {
	data, err := EncodeSecretPEM(sk)
	if err != nil {
		return err
	}
	return os.WriteFile(file, data, 0600)
}

// SavePublicKey writes pk to file as PEM.
func SavePublicKey(file string, pk PublicKey) error {
	data, err := EncodePublicPEM(pk)
	if err != nil {
		return err
	}
	return os.WriteFile(file, data, 0644)
}

// LoadSecretKey reads a PEM encoded secret key from file.
func LoadSecretKey(file string) (SecretKey, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return SecretKey{}, err
	}
	return DecodeSecretPEM(data)
}
