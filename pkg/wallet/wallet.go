/*
Copyright 2020 IBM All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package wallet caches enrolled identities so that a user registered once with
// an organization's certificate authority is never enrolled again.
package wallet

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// Store is the interface for implementations that provide backing storage for identities in a wallet.
// To create a new backing store, implement all the methods defined in this interface and provide
// a factory method that wraps an instance of this in a new Wallet object. E.g:
//
//	  func NewMyWallet() *Wallet {
//		   store := &myWalletStore{ }
//		   return New(store)
//	  }
type Store interface {
	Put(label string, stream []byte) error
	Get(label string) ([]byte, error)
	List() ([]string, error)
	Exists(label string) bool
	Remove(label string) error
}

// A Wallet stores identity information used to connect to the ledger.
// Instances are created using factory methods on the implementing objects.
type Wallet struct {
	store Store
}

// New creates an instance of a wallet, backed by the supplied store.
func New(store Store) *Wallet {
	return &Wallet{store}
}

// Put an identity into the wallet
//
//	Parameters:
//	label specifies the name to be associated with the identity.
//	id specifies the identity to store in the wallet.
func (w *Wallet) Put(label string, id Identity) error {
	content, err := id.toJSON()
	if err != nil {
		return err
	}

	return w.store.Put(label, content)
}

// Get an identity from the wallet. The implementation class of the identity object will vary depending on its type.
//
//	Parameters:
//	label specifies the name of the identity in the wallet.
//
//	Returns:
//	The identity object.
func (w *Wallet) Get(label string) (Identity, error) {
	content, err := w.store.Get(label)
	if err != nil {
		return nil, err
	}
	if content == nil {
		return nil, errors.Errorf("label doesn't exist: %s", label)
	}

	var data map[string]interface{}
	if err := json.Unmarshal(content, &data); err != nil {
		return nil, errors.Wrap(err, "Invalid identity format")
	}

	idType, ok := data["type"].(string)
	if !ok {
		return nil, errors.New("Invalid identity format: missing type property")
	}

	var id Identity
	switch idType {
	case x509Type:
		id = &X509Identity{}
	default:
		return nil, errors.New("Invalid identity format: unsupported identity type: " + idType)
	}

	return id.fromJSON(content)
}

// GetX509 returns the X.509 identity stored under label.
func (w *Wallet) GetX509(label string) (*X509Identity, error) {
	id, err := w.Get(label)
	if err != nil {
		return nil, err
	}
	x, ok := id.(*X509Identity)
	if !ok {
		return nil, errors.Errorf("identity %s is not an X.509 identity", label)
	}
	return x, nil
}

// List returns the labels of all identities in the wallet.
func (w *Wallet) List() ([]string, error) {
	return w.store.List()
}

// Exists tests whether the wallet contains an identity for the given label.
func (w *Wallet) Exists(label string) bool {
	return w.store.Exists(label)
}

// Remove an identity from the wallet. If the identity does not exist, this method does nothing.
func (w *Wallet) Remove(label string) error {
	return w.store.Remove(label)
}
