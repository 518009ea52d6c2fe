/*
Copyright 2020 IBM All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package transient encodes the private, transaction-scoped payloads attached
// to a single ledger call. Payload entries are never written to public state;
// the contract uses them to compute or check private derivatives such as
// hashes.
package transient

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"sort"

	uuid "github.com/hashicorp/go-uuid"
	"github.com/pkg/errors"

	"github.com/hyperledger/fabric-asset-transfer-go/pkg/common/errors/status"
)

// Transient map keys understood by the asset transfer contracts.
const (
	KeyAssetProperties = "asset_properties"
	KeyAssetPrice      = "asset_price"
	KeyAssetOwner      = "asset_owner"
	KeyAssetValue      = "asset_value"
	KeyAssetDelete     = "asset_delete"
	KeyAgreementDelete = "agreement_delete"
)

// Payload is the opaque transient map attached to one submission.
type Payload map[string][]byte

// Keys returns the sorted keys of the payload.
func (p Payload) Keys() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Clone returns a deep copy of the payload.
func (p Payload) Clone() Payload {
	if p == nil {
		return nil
	}
	c := make(Payload, len(p))
	for k, v := range p {
		c[k] = append([]byte(nil), v...)
	}
	return c
}

// AssetProperties are the private attributes of an asset.
type AssetProperties struct {
	ObjectType string `json:"object_type"`
	AssetID    string `json:"asset_id"`
	Color      string `json:"color"`
	Size       int    `json:"size"`
	// AppraisedValue is optional.
	AppraisedValue int    `json:"appraised_value,omitempty"`
	Salt           string `json:"salt"`
}

// AssetDetails are the properties of an asset kept in private data
// collections. Color and size are shared with every member; the appraised
// value stays in the owner's collection.
type AssetDetails struct {
	ObjectType     string `json:"objectType"`
	AssetID        string `json:"assetID"`
	Color          string `json:"color"`
	Size           int    `json:"size"`
	AppraisedValue int    `json:"appraisedValue"`
}

// AssetPrice is one side of a transfer agreement.
type AssetPrice struct {
	AssetID string `json:"asset_id"`
	Price   int    `json:"price"`
	TradeID string `json:"trade_id"`
}

// AssetOwner names the prospective buyer of an asset.
type AssetOwner struct {
	AssetID  string `json:"assetID"`
	BuyerMSP string `json:"buyerMSP"`
}

// AssetValue carries an appraised value, agreed by a buyer or held by the
// owner.
type AssetValue struct {
	AssetID        string `json:"assetID"`
	AppraisedValue int    `json:"appraisedValue"`
}

// AssetRef identifies an asset, used by deletion payloads.
type AssetRef struct {
	AssetID string `json:"assetID"`
}

// Fields is the typed content of a payload. Nil members are absent.
// Properties and Details share a key; at most one may be set.
type Fields struct {
	Properties      *AssetProperties
	Details         *AssetDetails
	Price           *AssetPrice
	Owner           *AssetOwner
	Value           *AssetValue
	AssetDelete     *AssetRef
	AgreementDelete *AssetRef
}

type entry struct {
	key    string
	value  interface{}
	target func(f *Fields) interface{}
}

func (f *Fields) entries() []entry {
	return []entry{
		{KeyAssetProperties, f.Properties, func(f *Fields) interface{} { f.Properties = &AssetProperties{}; return f.Properties }},
		{KeyAssetProperties, f.Details, func(f *Fields) interface{} { f.Details = &AssetDetails{}; return f.Details }},
		{KeyAssetPrice, f.Price, func(f *Fields) interface{} { f.Price = &AssetPrice{}; return f.Price }},
		{KeyAssetOwner, f.Owner, func(f *Fields) interface{} { f.Owner = &AssetOwner{}; return f.Owner }},
		{KeyAssetValue, f.Value, func(f *Fields) interface{} { f.Value = &AssetValue{}; return f.Value }},
		{KeyAssetDelete, f.AssetDelete, func(f *Fields) interface{} { f.AssetDelete = &AssetRef{}; return f.AssetDelete }},
		{KeyAgreementDelete, f.AgreementDelete, func(f *Fields) interface{} { f.AgreementDelete = &AssetRef{}; return f.AgreementDelete }},
	}
}

// Encode serializes the present field sets into a payload.
func Encode(f Fields) (Payload, error) {
	p := Payload{}
	for _, e := range f.entries() {
		if isNil(e.value) {
			continue
		}
		if _, dup := p[e.key]; dup {
			return nil, decodeError(errors.Errorf("more than one field set for %s", e.key))
		}
		if err := validate(e.key, e.value); err != nil {
			return nil, err
		}
		b, err := json.Marshal(e.value)
		if err != nil {
			return nil, decodeError(errors.Wrapf(err, "marshal %s", e.key))
		}
		p[e.key] = b
	}
	return p, nil
}

// Decode parses a payload back into typed field sets. Unknown keys, unknown
// fields and malformed JSON fail with a PayloadDecodeFailed status. A key
// shared by several field sets decodes into the first one that accepts it.
func Decode(p Payload) (Fields, error) {
	var f Fields
	known := map[string][]func(f *Fields) interface{}{}
	for _, e := range f.entries() {
		known[e.key] = append(known[e.key], e.target)
	}

	for _, key := range p.Keys() {
		targets, ok := known[key]
		if !ok {
			return Fields{}, decodeError(errors.Errorf("unknown transient key [%s]", key))
		}
		var first error
		for _, target := range targets {
			next := f
			err := decodeInto(key, p[key], target(&next))
			if err == nil {
				f, first = next, nil
				break
			}
			if first == nil {
				first = err
			}
		}
		if first != nil {
			return Fields{}, first
		}
	}
	return f, nil
}

func decodeInto(key string, b []byte, v interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return decodeError(errors.Wrapf(err, "invalid %s", key))
	}
	return validate(key, v)
}

func validate(key string, v interface{}) error {
	var missing string
	switch t := v.(type) {
	case *AssetProperties:
		switch {
		case t.AssetID == "":
			missing = "asset_id"
		case t.ObjectType == "":
			missing = "object_type"
		case t.Salt == "":
			missing = "salt"
		}
	case *AssetDetails:
		switch {
		case t.ObjectType == "":
			missing = "objectType"
		case t.AssetID == "":
			missing = "assetID"
		case t.Color == "":
			missing = "color"
		case t.Size <= 0:
			return decodeError(errors.Errorf("%s: size must be positive", key))
		case t.AppraisedValue <= 0:
			return decodeError(errors.Errorf("%s: appraisedValue must be positive", key))
		}
	case *AssetPrice:
		switch {
		case t.AssetID == "":
			missing = "asset_id"
		case t.TradeID == "":
			missing = "trade_id"
		case t.Price <= 0:
			return decodeError(errors.Errorf("%s: price must be positive", key))
		}
	case *AssetOwner:
		switch {
		case t.AssetID == "":
			missing = "assetID"
		case t.BuyerMSP == "":
			missing = "buyerMSP"
		}
	case *AssetValue:
		switch {
		case t.AssetID == "":
			missing = "assetID"
		case t.AppraisedValue <= 0:
			return decodeError(errors.Errorf("%s: appraisedValue must be positive", key))
		}
	case *AssetRef:
		if t.AssetID == "" {
			missing = "assetID"
		}
	}
	if missing != "" {
		return decodeError(errors.Errorf("%s: %s is required", key, missing))
	}
	return nil
}

func isNil(v interface{}) bool {
	switch t := v.(type) {
	case *AssetProperties:
		return t == nil
	case *AssetDetails:
		return t == nil
	case *AssetPrice:
		return t == nil
	case *AssetOwner:
		return t == nil
	case *AssetValue:
		return t == nil
	case *AssetRef:
		return t == nil
	}
	return v == nil
}

func decodeError(err error) error {
	return status.New(status.WorkflowStatus, status.PayloadDecodeFailed.ToInt32(), err.Error(), nil)
}

// NewSalt returns a random hex salt for private properties.
func NewSalt() (string, error) {
	b, err := uuid.GenerateRandomBytes(16)
	if err != nil {
		return "", errors.Wrap(err, "generate salt")
	}
	return hex.EncodeToString(b), nil
}
