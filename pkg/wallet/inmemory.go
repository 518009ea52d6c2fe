/*
Copyright 2020 IBM All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package wallet

import (
	"sort"
	"sync"
)

type inMemoryStore struct {
	mutex   sync.RWMutex
	storage map[string][]byte
}

// NewInMemoryWallet creates an instance of a wallet, held in memory.
// This implementation is not backed by a persistent store.
func NewInMemoryWallet() *Wallet {
	return New(&inMemoryStore{storage: make(map[string][]byte)})
}

func (s *inMemoryStore) Put(label string, content []byte) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.storage[label] = append([]byte(nil), content...)
	return nil
}

func (s *inMemoryStore) Get(label string) ([]byte, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	content, ok := s.storage[label]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), content...), nil
}

func (s *inMemoryStore) Remove(label string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	delete(s.storage, label)
	return nil
}

func (s *inMemoryStore) Exists(label string) bool {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	_, ok := s.storage[label]
	return ok
}

func (s *inMemoryStore) List() ([]string, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	labels := make([]string, 0, len(s.storage))
	for label := range s.storage {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels, nil
}
