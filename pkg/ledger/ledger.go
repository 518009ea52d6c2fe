/*
Copyright 2020 IBM All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package ledger is the uniform client facade over the external ledger
// service. Submissions block until commit or failure and are never retried;
// every failure is classified into a workflow status so that denied
// endorsements and price mismatches surface as first-class outcomes.
package ledger

import (
	"context"

	"github.com/hyperledger/fabric-asset-transfer-go/pkg/org"
	"github.com/hyperledger/fabric-asset-transfer-go/pkg/transient"
	"github.com/hyperledger/fabric-asset-transfer-go/pkg/wallet"
)

// Identity is the credential a session connects with.
type Identity struct {
	Org org.Org
	// Label is the wallet label of the identity, usually the user ID.
	Label string
	// Credential is the enrolled X.509 identity.
	Credential *wallet.X509Identity
}

// DiscoveryOptions control how a session finds endorsing peers.
type DiscoveryOptions struct {
	Enabled     bool
	AsLocalhost bool
}

//go:generate mockgen -destination mocks/mockledger.gen.go -package mocks . Session,Connector

// Session is one organization's connection to the ledger service.
type Session interface {
	// Submit executes, endorses and commits a transaction. A nil
	// endorsingOrgs lets discovery choose the endorsers.
	Submit(ctx context.Context, chaincode, txName string, args []string, payload transient.Payload, endorsingOrgs []org.Org) ([]byte, error)
	// Evaluate executes a read-only query on the session's own organization.
	Evaluate(ctx context.Context, chaincode, txName string, args []string, payload transient.Payload) ([]byte, error)
	// Close releases the connection.
	Close() error
}

// Connector opens sessions against the ledger service.
type Connector interface {
	Connect(ctx context.Context, id Identity, opts DiscoveryOptions) (Session, error)
}
