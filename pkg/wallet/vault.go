/*
Copyright 2020 IBM All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package wallet

import (
	"encoding/json"
	"path"

	"github.com/hashicorp/vault/api"
	"github.com/pkg/errors"
)

const defaultVaultMount = "secret"

// vaultStore keeps identities in a Vault KV version 2 secrets engine.
type vaultStore struct {
	mount  string
	path   string
	client *api.Logical
}

// NewVaultWallet creates an instance of a wallet, backed by key/values in Vault.
// Identities are written under <mount>/data/<path>/<label>.
func NewVaultWallet(walletPath, token string, vaultConfig *api.Config) (*Wallet, error) {
	if walletPath == "" {
		return nil, errors.New("wallet path is empty")
	}
	if token == "" {
		return nil, errors.New("token is empty")
	}
	if vaultConfig == nil {
		vaultConfig = &api.Config{Address: "http://localhost:8200"}
	}

	client, err := api.NewClient(vaultConfig)
	if err != nil {
		return nil, errors.Wrap(err, "can't create Vault client")
	}
	client.SetToken(token)

	return New(&vaultStore{mount: defaultVaultMount, path: walletPath, client: client.Logical()}), nil
}

func (vs *vaultStore) dataPath(label string) string {
	return path.Join(vs.mount, "data", vs.path, label)
}

func (vs *vaultStore) metadataPath(label string) string {
	return path.Join(vs.mount, "metadata", vs.path, label)
}

// Put an identity into the wallet.
func (vs *vaultStore) Put(label string, content []byte) error {
	var data map[string]interface{}
	if err := json.Unmarshal(content, &data); err != nil {
		return errors.Wrap(err, "can't decode identity for Vault")
	}
	if _, err := vs.client.Write(vs.dataPath(label), map[string]interface{}{"data": data}); err != nil {
		return errors.Wrap(err, "can't write value to Vault")
	}
	return nil
}

// Get an identity from the wallet.
func (vs *vaultStore) Get(label string) ([]byte, error) {
	secret, err := vs.client.Read(vs.dataPath(label))
	if err != nil {
		return nil, errors.Wrap(err, "can't read value from Vault")
	}
	if secret == nil || secret.Data["data"] == nil {
		return nil, nil
	}

	serializedIdentity, err := json.Marshal(secret.Data["data"])
	if err != nil {
		return nil, errors.Wrap(err, "can't serialize identity")
	}
	return serializedIdentity, nil
}

// Remove an identity from the wallet. If the identity does not exist, this method does nothing.
func (vs *vaultStore) Remove(label string) error {
	if !vs.Exists(label) {
		return nil
	}
	if _, err := vs.client.Delete(vs.metadataPath(label)); err != nil {
		return errors.Wrap(err, "can't delete value from Vault")
	}
	return nil
}

// Exists tests the existence of an identity in the wallet.
func (vs *vaultStore) Exists(label string) bool {
	content, err := vs.Get(label)
	return err == nil && content != nil
}

// List all of the labels in the wallet.
func (vs *vaultStore) List() ([]string, error) {
	secret, err := vs.client.List(path.Join(vs.mount, "metadata", vs.path))
	if err != nil {
		return nil, errors.Wrap(err, "can't list values from Vault")
	}
	if secret == nil {
		return nil, nil
	}

	keys, ok := secret.Data["keys"].([]interface{})
	if !ok {
		return nil, errors.New("can't cast keys returned by Vault to an array")
	}

	labels := make([]string, 0, len(keys))
	for _, key := range keys {
		label, ok := key.(string)
		if !ok {
			return nil, errors.New("can't cast key returned by Vault to string")
		}
		labels = append(labels, label)
	}
	return labels, nil
}
