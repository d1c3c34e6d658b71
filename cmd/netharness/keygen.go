// Copyright 2024 The netharness Authors
// This file is part of netharness.
//
// netharness is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// netharness is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with netharness. If not, see <http://www.gnu.org/licenses/>.

package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/netharness/netharness/crypto"
	"github.com/netharness/netharness/log"
)

var (
	schemeFlag = &cli.StringFlag{
		Name:  "scheme",
		Usage: "Key scheme (ed25519 or secp256k1), random if not given",
	}
	outDirFlag = &cli.StringFlag{
		Name:  "out",
		Usage: "Directory receiving secret_key.pem and public_key.pem",
	}
	inspectFlag = &cli.StringFlag{
		Name:  "inspect",
		Usage: "Print the account id of an existing secret key file instead",
	}
)

var keygenCommand = &cli.Command{
	Action: keygen,
	Name:   "keygen",
	Usage:  "Generate a node identity",
	Flags:  []cli.Flag{schemeFlag, outDirFlag, inspectFlag},
	Description: `
Generate a key pair the way node identities are generated for a network. The
account id is printed on the first line. Without --out the secret key PEM is
printed as well.`,
}

func keygen(ctx *cli.Context) error {
	w := ctx.App.Writer
	if file := ctx.String(inspectFlag.Name); file != "" {
		if ctx.IsSet(schemeFlag.Name) || ctx.IsSet(outDirFlag.Name) {
			return errors.New("--inspect cannot be combined with key generation flags")
		}
		sk, err := crypto.LoadSecretKey(file)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s\t%s\n", sk.Public().Hex(), sk.Scheme())
		return nil
	}

	var (
		pk  crypto.PublicKey
		sk  crypto.SecretKey
		err error
	)
	if name := ctx.String(schemeFlag.Name); name != "" {
		scheme, perr := crypto.ParseScheme(name)
		if perr != nil {
			return perr
		}
		pk, sk, err = crypto.GenerateKeyOf(scheme, nil)
	} else {
		pk, sk, err = crypto.GenerateKey(nil)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%s\t%s\n", pk.Hex(), pk.Scheme())

	dir := ctx.String(outDirFlag.Name)
	if dir == "" {
		pem, err := crypto.EncodeSecretPEM(sk)
		if err != nil {
			return err
		}
		_, err = w.Write(pem)
		return err
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}
	secret, public := filepath.Join(dir, "secret_key.pem"), filepath.Join(dir, "public_key.pem")
	if err := crypto.SaveSecretKey(secret, sk); err != nil {
		return err
	}
	if err := crypto.SavePublicKey(public, pk); err != nil {
		return err
	}
	log.Info("Wrote key pair", "secret", secret, "public", public)
	return nil
}
