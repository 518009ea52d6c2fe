/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package endorsement

import (
	"github.com/pkg/errors"

	"github.com/hyperledger/fabric-asset-transfer-go/pkg/common/logging"
	"github.com/hyperledger/fabric-asset-transfer-go/pkg/org"
)

var logger = logging.NewLogger("assettransfer/endorsement")

// Request describes a transition and the asset metadata it depends on.
type Request struct {
	Kind Kind
	// Actor is the organization submitting the transition.
	Actor org.Org
	// Owner is the asset's current owner. Unused by Create.
	Owner org.Org
	// Override is the asset's state-based endorsement set, if any.
	Override []org.Org
	// NewOwner is the prospective owner of a Transfer.
	NewOwner org.Org
}

// Resolver computes endorsement scopes against a chaincode-wide default policy.
type Resolver struct {
	policy *Policy
}

// NewResolver returns a resolver for a chaincode whose default endorsement
// policy is policy.
func NewResolver(policy *Policy) *Resolver {
	return &Resolver{policy: policy}
}

// Policy returns the chaincode-wide default policy.
func (r *Resolver) Policy() *Policy {
	return r.policy
}

// Resolve returns the minimal endorsement scope for the request.
//
// Extra endorsements from organizations outside the returned set are assumed
// harmless: the ledger validates that the required endorsements are present
// and ignores the others.
func (r *Resolver) Resolve(req Request) (Scope, error) {
	scope, err := r.resolve(req)
	if err != nil {
		return Scope{}, errors.WithMessagef(err, "cannot resolve endorsement scope for %s", req.Kind)
	}
	logger.Debugf("Endorsement scope for %s by %s: %s", req.Kind, req.Actor, scope)
	return scope, nil
}

func (r *Resolver) resolve(req Request) (Scope, error) {
	switch req.Kind {
	case Create:
		if !req.Actor.Valid() {
			return Scope{}, errors.New("creating organization is required")
		}
		// a new key has no override yet, so the default policy applies
		if r.policy.SatisfiedBy(req.Actor) {
			return Orgs(req.Actor), nil
		}
		return Discovery(), nil

	case Update, ChangeDescription, ListForSale, Delete:
		return r.ownerScope(req)

	case AgreeToSell, AgreeToBuy, WithdrawAgreement:
		if !req.Actor.Valid() {
			return Scope{}, errors.New("acting organization is required")
		}
		return Orgs(req.Actor), nil

	case Transfer:
		owners, err := r.ownerScope(req)
		if err != nil {
			return Scope{}, err
		}
		if !req.NewOwner.Valid() {
			return Scope{}, errors.New("prospective owner is required")
		}
		if req.NewOwner == req.Owner {
			return Scope{}, errors.Errorf("asset is already owned by %s", req.Owner)
		}
		return Orgs(append(owners.Organizations(), req.NewOwner)...), nil

	case Verify, Read:
		return None(), nil

	default:
		return Scope{}, errors.Errorf("unknown transition kind %d", int(req.Kind))
	}
}

func (r *Resolver) ownerScope(req Request) (Scope, error) {
	if override := org.Set(req.Override...); len(override) > 0 {
		return Orgs(override...), nil
	}
	if !req.Owner.Valid() {
		return Scope{}, errors.New("current owner is required")
	}
	return Orgs(req.Owner), nil
}
