/*
Copyright 2020 IBM All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package wallet

import (
	"encoding/json"

	"github.com/pkg/errors"
)

const x509Type = "X.509"

// Identity represents a specific identity format
type Identity interface {
	idType() string
	mspID() string
	toJSON() ([]byte, error)
	fromJSON(data []byte) (Identity, error)
}

// X509Identity represents an X509 identity
type X509Identity struct {
	Version     int         `json:"version"`
	MspID       string      `json:"mspId"`
	IDType      string      `json:"type"`
	Credentials credentials `json:"credentials"`
}

type credentials struct {
	Certificate string `json:"certificate"`
	Key         string `json:"privateKey"`
}

// NewX509Identity creates an X509 identity for storage in a wallet
func NewX509Identity(mspid string, cert string, key string) *X509Identity {
	return &X509Identity{1, mspid, x509Type, credentials{cert, key}}
}

func (x *X509Identity) idType() string {
	return x509Type
}

func (x *X509Identity) mspID() string {
	return x.MspID
}

// MSPID returns the MSP ID the identity belongs to
func (x *X509Identity) MSPID() string {
	return x.MspID
}

// Certificate returns the X509 certificate PEM
func (x *X509Identity) Certificate() string {
	return x.Credentials.Certificate
}

// Key returns the private key PEM
func (x *X509Identity) Key() string {
	return x.Credentials.Key
}

func (x *X509Identity) toJSON() ([]byte, error) {
	if x.MspID == "" || x.Credentials.Certificate == "" {
		return nil, errors.New("X.509 identity requires an MSP ID and a certificate")
	}
	return json.Marshal(x)
}

func (x *X509Identity) fromJSON(data []byte) (Identity, error) {
	if err := json.Unmarshal(data, x); err != nil {
		return nil, errors.Wrap(err, "Invalid X.509 identity")
	}
	return x, nil
}
