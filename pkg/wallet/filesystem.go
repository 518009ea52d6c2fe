/*
Copyright 2020 IBM All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package wallet

import (
	"os"
	"path/filepath"
	"strings"
)

const dataFileExtension = ".id"

type fileSystemStore struct {
	path string
}

// NewFileSystemWallet creates an instance of a wallet, backed by files on the filesystem.
// Each identity is held in <label>.id under path.
func NewFileSystemWallet(path string) (*Wallet, error) {
	cleanPath := filepath.Clean(path)
	if err := os.MkdirAll(cleanPath, 0750); err != nil {
		return nil, err
	}
	return New(&fileSystemStore{cleanPath}), nil
}

func (fsw *fileSystemStore) pathname(label string) string {
	return filepath.Clean(filepath.Join(fsw.path, label) + dataFileExtension)
}

// Put an identity into the wallet.
func (fsw *fileSystemStore) Put(label string, content []byte) error {
	return os.WriteFile(fsw.pathname(label), content, 0600)
}

// Get an identity from the wallet.
func (fsw *fileSystemStore) Get(label string) ([]byte, error) {
	return os.ReadFile(fsw.pathname(label))
}

// Remove an identity from the wallet. If the identity does not exist, this method does nothing.
func (fsw *fileSystemStore) Remove(label string) error {
	err := os.Remove(fsw.pathname(label))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Exists tests the existence of an identity in the wallet.
func (fsw *fileSystemStore) Exists(label string) bool {
	_, err := os.Stat(fsw.pathname(label))
	return err == nil
}

// List all of the labels in the wallet.
func (fsw *fileSystemStore) List() ([]string, error) {
	files, err := os.ReadDir(fsw.path)
	if err != nil {
		return nil, err
	}

	var labels []string
	for _, file := range files {
		name := file.Name()
		if !file.IsDir() && filepath.Ext(name) == dataFileExtension {
			labels = append(labels, strings.TrimSuffix(name, dataFileExtension))
		}
	}
	return labels, nil
}
