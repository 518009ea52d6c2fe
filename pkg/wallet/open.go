/*
Copyright 2020 IBM All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package wallet

import (
	"path"

	"github.com/hashicorp/vault/api"
	"github.com/pkg/errors"

	"github.com/hyperledger/fabric-asset-transfer-go/pkg/config"
)

// Open returns the wallet configured by ws. For filesystem wallets dir is the
// wallet directory; for Vault wallets it is appended to the configured path.
func Open(ws config.WalletSettings, dir string) (*Wallet, error) {
	switch ws.Type {
	case config.WalletMemory, "":
		return NewInMemoryWallet(), nil
	case config.WalletFilesystem:
		return NewFileSystemWallet(dir)
	case config.WalletVault:
		var vc *api.Config
		if ws.Vault.Address != "" {
			vc = api.DefaultConfig()
			vc.Address = ws.Vault.Address
		}
		return NewVaultWallet(path.Join(ws.Vault.Path, path.Base(dir)), ws.Vault.Token, vc)
	default:
		return nil, errors.Errorf("unsupported wallet type [%s]", ws.Type)
	}
}
