/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package endorsement decides which organizations must endorse each asset
// transition, based on the asset's owner, its state-based endorsement
// override and the acting organization.
package endorsement

import (
	"strings"

	"github.com/hyperledger/fabric-asset-transfer-go/pkg/org"
)

// Kind is an asset lifecycle transition.
type Kind int

// Transition kinds
const (
	Create Kind = iota + 1
	Update
	ChangeDescription
	ListForSale
	AgreeToSell
	AgreeToBuy
	WithdrawAgreement
	Verify
	Transfer
	Delete
	Read
)

var kindNames = map[Kind]string{
	Create:            "Create",
	Update:            "Update",
	ChangeDescription: "ChangeDescription",
	ListForSale:       "ListForSale",
	AgreeToSell:       "AgreeToSell",
	AgreeToBuy:        "AgreeToBuy",
	WithdrawAgreement: "WithdrawAgreement",
	Verify:            "Verify",
	Transfer:          "Transfer",
	Delete:            "Delete",
	Read:              "Read",
}

// Kinds returns every transition kind.
func Kinds() []Kind {
	return []Kind{Create, Update, ChangeDescription, ListForSale, AgreeToSell, AgreeToBuy,
		WithdrawAgreement, Verify, Transfer, Delete, Read}
}

func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return "Unknown"
}

// IsQuery reports whether the transition is an org-local evaluation.
func (k Kind) IsQuery() bool {
	return k == Verify || k == Read
}

// Scope is the endorsement scope of one submission: an explicit
// organization set, network discovery, or none for evaluations.
type Scope struct {
	orgs      []org.Org
	discovery bool
}

// Orgs returns a scope restricted to the given organizations.
func Orgs(orgs ...org.Org) Scope {
	return Scope{orgs: org.Set(orgs...)}
}

// Discovery returns a scope that lets the network choose the endorsers.
func Discovery() Scope {
	return Scope{discovery: true}
}

// None returns the empty scope used by evaluations.
func None() Scope {
	return Scope{}
}

// Organizations returns the explicit endorsing organizations, if any.
func (s Scope) Organizations() []org.Org {
	return append([]org.Org(nil), s.orgs...)
}

// IsDiscovery reports whether endorsers are left to discovery.
func (s Scope) IsDiscovery() bool {
	return s.discovery
}

// IsNone reports whether the scope carries no endorsement instruction.
func (s Scope) IsNone() bool {
	return !s.discovery && len(s.orgs) == 0
}

// Equal reports whether both scopes give the same instruction.
func (s Scope) Equal(o Scope) bool {
	return s.discovery == o.discovery && org.Equal(s.orgs, o.orgs)
}

func (s Scope) String() string {
	switch {
	case s.discovery:
		return "discovery"
	case len(s.orgs) == 0:
		return "none"
	default:
		return "{" + strings.Join(org.Strings(s.orgs...), ",") + "}"
	}
}
