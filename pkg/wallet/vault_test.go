/*
Copyright 2020 IBM All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package wallet

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/hashicorp/vault/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	vaultPath = "test"
	token     = "root"
)

// fakeVault implements the subset of the KV version 2 HTTP API used by the wallet.
type fakeVault struct {
	mutex   sync.Mutex
	secrets map[string]interface{}
}

func (f *fakeVault) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	p := strings.TrimPrefix(r.URL.Path, "/v1/secret/")
	kind, key := p, ""
	if i := strings.Index(p, "/"); i >= 0 {
		kind, key = p[:i], p[i+1:]
	}

	isList := r.Method == "LIST" || r.URL.Query().Get("list") == "true"
	switch {
	case isList && kind == "metadata":
		var keys []string
		for k := range f.secrets {
			if strings.HasPrefix(k, key+"/") {
				keys = append(keys, strings.TrimPrefix(k, key+"/"))
			}
		}
		if len(keys) == 0 {
			notFound(w)
			return
		}
		sort.Strings(keys)
		writeJSON(w, map[string]interface{}{"data": map[string]interface{}{"keys": keys}})
	case (r.Method == http.MethodPut || r.Method == http.MethodPost) && kind == "data":
		var body map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		f.secrets[key] = body["data"]
		writeJSON(w, map[string]interface{}{"data": map[string]interface{}{"version": 1}})
	case r.Method == http.MethodGet && kind == "data":
		data, ok := f.secrets[key]
		if !ok {
			notFound(w)
			return
		}
		writeJSON(w, map[string]interface{}{"data": map[string]interface{}{"data": data}})
	case r.Method == http.MethodDelete && kind == "metadata":
		delete(f.secrets, key)
		writeJSON(w, map[string]interface{}{})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func notFound(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusNotFound)
	_, _ = w.Write([]byte(`{"errors":[]}`))
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func TestVaultWalletSuite(t *testing.T) {
	testWalletSuite(t, func(t *testing.T) (*Wallet, error) {
		server := httptest.NewServer(&fakeVault{secrets: make(map[string]interface{})})
		t.Cleanup(server.Close)

		cfg := api.DefaultConfig()
		cfg.Address = server.URL
		cfg.MaxRetries = 0
		return NewVaultWallet(vaultPath, token, cfg)
	})
}

func TestVaultWalletArguments(t *testing.T) {
	_, err := NewVaultWallet("", token, nil)
	assert.EqualError(t, err, "wallet path is empty")

	_, err = NewVaultWallet(vaultPath, "", nil)
	assert.EqualError(t, err, "token is empty")

	w, err := NewVaultWallet(vaultPath, token, nil)
	require.NoError(t, err)
	assert.NotNil(t, w)
}
