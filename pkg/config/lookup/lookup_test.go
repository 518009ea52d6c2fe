/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package lookup

import (
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapBackend map[string]interface{}

func (m mapBackend) Lookup(key string) (interface{}, bool) {
	v, ok := m[key]
	return v, ok
}

var backend = mapBackend{
	"key.bool.true":     true,
	"key.bool.false":    "false",
	"key.bool.invalid":  "maybe",
	"key.string":        "Apple",
	"key.int":           "42",
	"key.duration":      "3s",
	"key.slice":         []interface{}{"a", "b"},
	"key.org":           map[string]interface{}{"mspid": "AppleMSP", "timeout": "2s", "peers": "p0,p1"},
	"key.only.override": "override",
}

func TestGetters(t *testing.T) {
	testLookup := New(backend)
	assert.True(t, testLookup.GetBool("key.bool.true"))
	assert.False(t, testLookup.GetBool("key.bool.false"))
	assert.False(t, testLookup.GetBool("key.bool.invalid"))
	assert.False(t, testLookup.GetBool("key.bool.notexisting"))
	assert.Equal(t, "Apple", testLookup.GetString("key.string"))
	assert.Equal(t, "apple", testLookup.GetLowerString("key.string"))
	assert.Equal(t, "", testLookup.GetString("key.notexisting"))
	assert.Equal(t, 42, testLookup.GetInt("key.int"))
	assert.Equal(t, 0, testLookup.GetInt("key.notexisting"))
	assert.Equal(t, 3*time.Second, testLookup.GetDuration("key.duration"))
	assert.Equal(t, time.Duration(0), testLookup.GetDuration("key.notexisting"))
	assert.Equal(t, []string{"a", "b"}, testLookup.GetStringSlice("key.slice"))
	assert.Nil(t, testLookup.GetStringSlice("key.notexisting"))
}

func TestMultipleBackends(t *testing.T) {
	first := mapBackend{"key.string": "Fiserv"}
	testLookup := New(nil, first, backend)
	assert.Equal(t, "Fiserv", testLookup.GetString("key.string"))
	assert.Equal(t, "override", testLookup.GetString("key.only.override"))
}

type orgConfig struct {
	MSPID   string `mapstructure:"mspid"`
	Timeout time.Duration
	Peers   []string
}

func TestUnmarshalKey(t *testing.T) {
	testLookup := New(backend)

	var oc orgConfig
	require.NoError(t, testLookup.UnmarshalKey("key.org", &oc))
	assert.Equal(t, orgConfig{MSPID: "AppleMSP", Timeout: 2 * time.Second, Peers: []string{"p0", "p1"}}, oc)

	var missing orgConfig
	require.NoError(t, testLookup.UnmarshalKey("key.notexisting", &missing))
	assert.Equal(t, orgConfig{}, missing)
}

func TestUnmarshalWithHook(t *testing.T) {
	upper := func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if from.Kind() == reflect.String && to.Kind() == reflect.String {
			return strings.ToUpper(data.(string)), nil
		}
		return data, nil
	}

	var oc orgConfig
	require.NoError(t, New(backend).UnmarshalKey("key.org", &oc, WithUnmarshalHookFunction(mapstructure.DecodeHookFuncType(upper))))
	assert.Equal(t, "APPLEMSP", oc.MSPID)
}
