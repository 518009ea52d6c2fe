/*
Copyright 2020 IBM All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package wallet

import (
	"sort"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperledger/fabric-asset-transfer-go/pkg/config"
)

type walletGenerator = func(t *testing.T) (*Wallet, error)

func testWalletSuite(t *testing.T, gen walletGenerator) {
	tests := []struct {
		title string
		run   func(t *testing.T, wallet *Wallet)
	}{
		{"testInsertionAndExistence", testInsertionAndExistence},
		{"testNonExistence", testNonExistence},
		{"testLookupNonExist", testLookupNonExist},
		{"testInsertionAndLookup", testInsertionAndLookup},
		{"testOverwrite", testOverwrite},
		{"testContentsOfWallet", testContentsOfWallet},
		{"testRemovalFromWallet", testRemovalFromWallet},
		{"testRemoveNonExist", testRemoveNonExist},
		{"testPutInvalidID", testPutInvalidID},
	}
	for _, test := range tests {
		t.Run(test.title, func(t *testing.T) {
			wallet, err := gen(t)
			require.NoError(t, err, "Failed to create the wallet instance")
			test.run(t, wallet)
		})
	}
}

func testInsertionAndExistence(t *testing.T, wallet *Wallet) {
	require.NoError(t, wallet.Put("appleUser", NewX509Identity("AppleMSP", "testCert", "testPrivKey")))
	assert.True(t, wallet.Exists("appleUser"), "Expected appleUser to be in wallet")
}

func testNonExistence(t *testing.T, wallet *Wallet) {
	assert.False(t, wallet.Exists("appleUser"), "Expected appleUser to not be in wallet")
}

func testLookupNonExist(t *testing.T, wallet *Wallet) {
	_, err := wallet.Get("appleUser")
	assert.Error(t, err, "Expected error for appleUser not in wallet")
}

func testInsertionAndLookup(t *testing.T, wallet *Wallet) {
	require.NoError(t, wallet.Put("appleUser", NewX509Identity("AppleMSP", "testCert", "testPrivKey")))
	entry, err := wallet.GetX509("appleUser")
	require.NoError(t, err, "Failed to lookup identity")
	assert.Equal(t, x509Type, entry.idType())
	assert.Equal(t, "AppleMSP", entry.MSPID())
	assert.Equal(t, "testCert", entry.Certificate())
	assert.Equal(t, "testPrivKey", entry.Key())
}

func testOverwrite(t *testing.T, wallet *Wallet) {
	require.NoError(t, wallet.Put("appleUser", NewX509Identity("AppleMSP", "a much longer first certificate", "key")))
	require.NoError(t, wallet.Put("appleUser", NewX509Identity("AppleMSP", "short", "key")))
	entry, err := wallet.GetX509("appleUser")
	require.NoError(t, err)
	assert.Equal(t, "short", entry.Certificate())
}

func testContentsOfWallet(t *testing.T, wallet *Wallet) {
	contents, _ := wallet.List()
	assert.Empty(t, contents, "Wallet should be empty")

	require.NoError(t, wallet.Put("appleUser", NewX509Identity("AppleMSP", "testCert", "testPrivKey")))
	require.NoError(t, wallet.Put("fiservUser", NewX509Identity("FiservMSP", "testCert", "testPrivKey")))
	contents, err := wallet.List()
	require.NoError(t, err)
	sort.Strings(contents)
	assert.Equal(t, []string{"appleUser", "fiservUser"}, contents)
}

func testRemovalFromWallet(t *testing.T, wallet *Wallet) {
	require.NoError(t, wallet.Put("label1", NewX509Identity("AppleMSP", "testCert1", "testPrivKey")))
	require.NoError(t, wallet.Put("label2", NewX509Identity("AppleMSP", "testCert2", "testPrivKey")))
	require.NoError(t, wallet.Put("label3", NewX509Identity("AppleMSP", "testCert3", "testPrivKey")))
	require.NoError(t, wallet.Remove("label2"))
	contents, err := wallet.List()
	require.NoError(t, err)
	sort.Strings(contents)
	assert.Equal(t, []string{"label1", "label3"}, contents)
}

func testRemoveNonExist(t *testing.T, wallet *Wallet) {
	assert.NoError(t, wallet.Remove("label1"), "Remove should not throw error for non-existent label")
}

func testPutInvalidID(t *testing.T, wallet *Wallet) {
	assert.Error(t, wallet.Put("label4", &badIdentity{}))
	assert.Error(t, wallet.Put("label5", NewX509Identity("", "", "")))
}

func TestInMemoryWalletSuite(t *testing.T) {
	testWalletSuite(t, func(t *testing.T) (*Wallet, error) {
		return NewInMemoryWallet(), nil
	})
}

func TestFileSystemWalletSuite(t *testing.T) {
	testWalletSuite(t, func(t *testing.T) (*Wallet, error) {
		return NewFileSystemWallet(t.TempDir())
	})
}

func TestGetFromCorruptWallet(t *testing.T) {
	wallet := New(&corruptStore{content: `{"type":"X.509","credentials":"corrupt"}`})
	_, err := wallet.Get("user")
	assert.Error(t, err, "Get should throw error for corrupt entry")

	wallet = New(&corruptStore{content: `{"credentials":{}}`})
	_, err = wallet.Get("user")
	assert.EqualError(t, err, "Invalid identity format: missing type property")

	wallet = New(&corruptStore{content: `{"type":"HSM-X.509"}`})
	_, err = wallet.Get("user")
	assert.EqualError(t, err, "Invalid identity format: unsupported identity type: HSM-X.509")

	wallet = New(&corruptStore{content: `not json`})
	_, err = wallet.Get("user")
	assert.Error(t, err)
}

func TestOpen(t *testing.T) {
	w, err := Open(config.WalletSettings{Type: config.WalletMemory}, "")
	require.NoError(t, err)
	assert.NotNil(t, w)

	dir := t.TempDir()
	w, err = Open(config.WalletSettings{Type: config.WalletFilesystem}, dir)
	require.NoError(t, err)
	require.NoError(t, w.Put("admin", NewX509Identity("AppleMSP", "cert", "key")))
	assert.FileExists(t, dir+"/admin.id")

	_, err = Open(config.WalletSettings{Type: config.WalletVault}, dir)
	assert.EqualError(t, err, "token is empty")

	_, err = Open(config.WalletSettings{Type: "hsm"}, dir)
	assert.Error(t, err)
}

type badIdentity struct{}

func (id *badIdentity) idType() string {
	return "bad"
}

func (id *badIdentity) mspID() string {
	return "mspid"
}

func (id *badIdentity) toJSON() ([]byte, error) {
	return nil, errors.New("toJSON error")
}

func (id *badIdentity) fromJSON(data []byte) (Identity, error) {
	return nil, errors.New("fromJSON error")
}

type corruptStore struct {
	content string
}

func (cs *corruptStore) Put(label string, stream []byte) error {
	return nil
}

func (cs *corruptStore) Get(label string) ([]byte, error) {
	return []byte(cs.content), nil
}

func (cs *corruptStore) List() ([]string, error) {
	return nil, nil
}

func (cs *corruptStore) Exists(label string) bool {
	return false
}

func (cs *corruptStore) Remove(label string) error {
	return nil
}
