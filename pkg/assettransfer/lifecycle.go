/*
Copyright 2020 IBM All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package assettransfer

import (
	"github.com/hyperledger/fabric-asset-transfer-go/pkg/endorsement"
	"github.com/hyperledger/fabric-asset-transfer-go/pkg/org"
)

// State is the lifecycle phase of an asset as seen by the orchestrator.
type State int

// Lifecycle states
const (
	Nonexistent State = iota
	Owned
	ForSale
	SaleAgreed
	BuyAgreed
	Transferred
	Deleted
)

var stateNames = map[State]string{
	Nonexistent: "Nonexistent",
	Owned:       "Owned",
	ForSale:     "ForSale",
	SaleAgreed:  "SaleAgreed",
	BuyAgreed:   "BuyAgreed",
	Transferred: "Transferred",
	Deleted:     "Deleted",
}

func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return "Unknown"
}

// Exists reports whether the asset is on the ledger in this state.
func (s State) Exists() bool {
	return s != Nonexistent && s != Deleted
}

var live = []State{Owned, ForSale, SaleAgreed, BuyAgreed, Transferred}

// transitions lists the states each transition may start from.
var transitions = map[endorsement.Kind][]State{
	endorsement.Create:            {Nonexistent, Deleted},
	endorsement.Update:            live,
	endorsement.ChangeDescription: live,
	endorsement.ListForSale:       live,
	endorsement.AgreeToSell:       live,
	endorsement.AgreeToBuy:        live,
	endorsement.Verify:            live,
	endorsement.Transfer:          live,
	endorsement.Delete:            live,
	endorsement.WithdrawAgreement: {SaleAgreed, BuyAgreed},
}

// Legal reports whether kind may be attempted in state s.
func Legal(kind endorsement.Kind, s State) bool {
	for _, from := range transitions[kind] {
		if from == s {
			return true
		}
	}
	return false
}

// Record is the orchestrator's view of one asset's lifecycle. It only
// changes after a transition commits.
type Record struct {
	AssetID    string
	State      State
	Owner      org.Org
	Override   []org.Org
	Attributes Attributes
	// Private is the private record, when this process created or read it.
	Private *PrivateRecord
	Sale    *TransferAgreement
	Bid     *TransferAgreement
}

func (r *Record) clone() *Record {
	c := *r
	c.Override = append([]org.Org(nil), r.Override...)
	if r.Private != nil {
		p := *r.Private
		c.Private = &p
	}
	if r.Sale != nil {
		s := *r.Sale
		c.Sale = &s
	}
	if r.Bid != nil {
		b := *r.Bid
		c.Bid = &b
	}
	return &c
}

// agreementState returns the state implied by the outstanding agreements.
func (r *Record) agreementState(latest Role) State {
	switch {
	case latest == Seller && r.Sale != nil:
		return SaleAgreed
	case latest == Buyer && r.Bid != nil:
		return BuyAgreed
	case r.Bid != nil:
		return BuyAgreed
	case r.Sale != nil:
		return SaleAgreed
	default:
		return Owned
	}
}

// Expectation returns what every organization should observe for the asset.
func (r *Record) Expectation() Expectation {
	if !r.State.Exists() {
		return Expectation{Absent: true}
	}
	attrs := r.Attributes
	exp := Expectation{Owner: r.Owner, Attributes: &attrs, PrivateOwner: r.Owner}
	if r.Bid != nil && r.Bid.ProposingOrg != r.Owner {
		exp.PrivateProspect = r.Bid.ProposingOrg
	}
	return exp
}

// Expectation is the state an asset should present to every organization.
type Expectation struct {
	// Absent expects the asset not to exist.
	Absent bool
	// Owner is the expected owner organization. Unknown skips the check.
	Owner org.Org
	// Attributes are the expected public attributes. Nil skips the check.
	Attributes *Attributes
	// PrivateOwner is the only organization expected to read private data.
	// Unknown skips the private visibility check.
	PrivateOwner org.Org
	// PrivateProspect may also hold private data: a buyer that stored its
	// agreed value. Unknown allows no one else.
	PrivateProspect org.Org
}
