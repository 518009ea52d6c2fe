/*
Copyright 2020 IBM All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package ledger

import (
	"time"

	"github.com/hyperledger/fabric-asset-transfer-go/pkg/endorsement"
	"github.com/hyperledger/fabric-asset-transfer-go/pkg/org"
	"github.com/hyperledger/fabric-asset-transfer-go/pkg/transient"
)

type callOptions struct {
	payload transient.Payload
	scope   endorsement.Scope
}

// Option is a functional option for a single Submit or Evaluate call.
type Option = func(*callOptions) error

// WithTransient sets the transient data attached to this call only. The
// payload is copied when the option is built.
func WithTransient(payload transient.Payload) Option {
	p := payload.Clone()
	return func(o *callOptions) error {
		o.payload = p
		return nil
	}
}

// WithEndorsingOrgs restricts endorsement to the peers of the given organizations.
func WithEndorsingOrgs(orgs ...org.Org) Option {
	return func(o *callOptions) error {
		o.scope = endorsement.Orgs(orgs...)
		return nil
	}
}

// WithDiscovery lets the network choose the endorsing organizations.
func WithDiscovery() Option {
	return func(o *callOptions) error {
		o.scope = endorsement.Discovery()
		return nil
	}
}

// WithScope applies a resolved endorsement scope.
func WithScope(scope endorsement.Scope) Option {
	return func(o *callOptions) error {
		o.scope = scope
		return nil
	}
}

type clientOptions struct {
	timeout time.Duration
	metrics *ClientMetrics
}

// ClientOption is a functional option for NewClient.
type ClientOption = func(*clientOptions)

// WithTimeout bounds every call made by the client.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(o *clientOptions) {
		o.timeout = timeout
	}
}

// WithMetrics records call metrics.
func WithMetrics(m *ClientMetrics) ClientOption {
	return func(o *clientOptions) {
		o.metrics = m
	}
}
