/*
Copyright 2020 IBM All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package scenario

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/hyperledger/fabric-asset-transfer-go/pkg/assettransfer"
	"github.com/hyperledger/fabric-asset-transfer-go/pkg/common/errors/status"
	"github.com/hyperledger/fabric-asset-transfer-go/pkg/org"
)

// SBE returns the state-based endorsement flow: the asset may only be
// updated with the endorsement of its owner, and ownership moves the
// endorsement policy to the new owner.
func SBE(o *assettransfer.Orchestrator, opts ...Option) (*Scenario, error) {
	s, err := newScenario(NameSBE, assettransfer.DialectSBE, o, opts)
	if err != nil {
		return nil, err
	}
	a, b, id := s.owner, s.buyer, s.assetID

	update := func(actor org.Org, value int, scope ...org.Org) transitionFunc {
		return func(ctx context.Context, expect assettransfer.TransitionOption) (*assettransfer.Outcome, error) {
			opt := assettransfer.WithDiscovery()
			if len(scope) > 0 {
				opt = assettransfer.WithEndorsingOrgs(scope...)
			}
			return o.Update(ctx, actor, id, value, opt, expect)
		}
	}
	remove := func(actor org.Org) transitionFunc {
		return func(ctx context.Context, expect assettransfer.TransitionOption) (*assettransfer.Outcome, error) {
			return o.Delete(ctx, actor, id, assettransfer.WithEndorsingOrgs(actor), expect)
		}
	}

	s.steps = []*Step{
		transition(fmt.Sprintf("%s creates %s with value 100 endorsed by discovery", a, id), status.OK,
			func(ctx context.Context, expect assettransfer.TransitionOption) (*assettransfer.Outcome, error) {
				return o.Create(ctx, a, id, assettransfer.Attributes{Owner: "Tom", Value: 100}, nil, assettransfer.WithDiscovery(), expect)
			}),
		check(fmt.Sprintf("both organizations read value 100 owned by %s", a), s.expectValue(a, 100)),
		transition(fmt.Sprintf("%s updates the value to 200 endorsed by %s", a, a), status.OK, update(a, 200, a)),
		transition(fmt.Sprintf("%s updates the value to 300 endorsed by discovery", a), status.OK, update(a, 300)),
		transition(fmt.Sprintf("%s updates the value to 400 endorsed by discovery", b), status.OK, update(b, 400)),
		transition(fmt.Sprintf("%s updates the value to 500 endorsed by %s only", b, b), status.EndorsementDenied, update(b, 500, b)),
		check("the value remains 400", s.expectValue(a, 400)),
		transition(fmt.Sprintf("%s transfers %s to %s endorsed by %s", a, id, b, a), status.OK,
			func(ctx context.Context, expect assettransfer.TransitionOption) (*assettransfer.Outcome, error) {
				return o.Transfer(ctx, a, id, b, "Michel", assettransfer.WithEndorsingOrgs(a), expect)
			}),
		transition(fmt.Sprintf("%s updates the value to 600 endorsed by %s", b, b), status.OK, update(b, 600, b)),
		transition(fmt.Sprintf("%s updates the value to 700 endorsed by %s", a, a), status.EndorsementDenied, update(a, 700, a)),
		check(fmt.Sprintf("both organizations read value 600 owned by %s", b), s.expectValue(b, 600)),
		transition(fmt.Sprintf("%s deletes %s endorsed by %s", a, id, a), status.EndorsementDenied, remove(a)),
		transition(fmt.Sprintf("%s deletes %s endorsed by %s", b, id, b), status.OK, remove(b)),
		check(fmt.Sprintf("%s no longer exists", id), s.expectAbsent()),
	}
	return s, nil
}

// Secured returns the secured agreement flow: private properties stay in the
// owner's collection, and the asset only moves once seller and buyer agreed
// on the same price.
func Secured(o *assettransfer.Orchestrator, opts ...Option) (*Scenario, error) {
	s, err := newScenario(NameSecured, assettransfer.DialectSecured, o, opts)
	if err != nil {
		return nil, err
	}
	a, b, id := s.owner, s.buyer, s.assetID
	private, err := assettransfer.NewPrivateRecord(id, "blue", 35, 0)
	if err != nil {
		return nil, err
	}

	describe := func(actor org.Org, description string, scope ...org.Org) transitionFunc {
		return func(ctx context.Context, expect assettransfer.TransitionOption) (*assettransfer.Outcome, error) {
			opts := []assettransfer.TransitionOption{expect}
			if len(scope) > 0 {
				opts = append(opts, assettransfer.WithEndorsingOrgs(scope...))
			}
			return o.ChangeDescription(ctx, actor, id, description, opts...)
		}
	}
	sell := func(price int) transitionFunc {
		return func(ctx context.Context, expect assettransfer.TransitionOption) (*assettransfer.Outcome, error) {
			return o.AgreeToSell(ctx, a, id, price, "", expect)
		}
	}
	transfer := func(actor org.Org, scope ...org.Org) transitionFunc {
		return func(ctx context.Context, expect assettransfer.TransitionOption) (*assettransfer.Outcome, error) {
			opts := []assettransfer.TransitionOption{expect}
			if len(scope) > 0 {
				opts = append(opts, assettransfer.WithEndorsingOrgs(scope...))
			}
			return o.Transfer(ctx, actor, id, b, "", opts...)
		}
	}

	s.steps = []*Step{
		transition(fmt.Sprintf("%s creates %s with private properties", a, id), status.OK,
			func(ctx context.Context, expect assettransfer.TransitionOption) (*assettransfer.Outcome, error) {
				return o.Create(ctx, a, id, assettransfer.Attributes{Description: fmt.Sprintf("Asset %s owned by %s is not for sale", id, a)}, private, expect)
			}),
		check(fmt.Sprintf("only %s reads the private properties", a), s.expectPrivate(a, private)),
		transition(fmt.Sprintf("%s lists %s for sale", a, id), status.OK,
			func(ctx context.Context, expect assettransfer.TransitionOption) (*assettransfer.Outcome, error) {
				return o.ListForSale(ctx, a, id, expect)
			}),
		transition(fmt.Sprintf("%s changes the description endorsed by %s", b, b), status.EndorsementDenied,
			describe(b, fmt.Sprintf("Asset %s owned by %s is NOT for sale", id, b), b)),
		transition(fmt.Sprintf("%s changes the description endorsed by %s", b, a), status.EndorsementDenied,
			describe(b, fmt.Sprintf("Asset %s owned by %s is NOT for sale", id, b), a)),
		transition(fmt.Sprintf("%s agrees to sell for 110", a), status.OK, sell(110)),
		transition(fmt.Sprintf("%s verifies the private properties shared by %s", b, a), status.OK,
			func(ctx context.Context, expect assettransfer.TransitionOption) (*assettransfer.Outcome, error) {
				verified, outcome, err := o.Verify(ctx, b, id, private, expect)
				if err == nil && !verified {
					return nil, violation("private properties of %s do not match their hash on the ledger", id)
				}
				return outcome, err
			}),
		transition(fmt.Sprintf("%s agrees to buy for 100", b), status.OK,
			func(ctx context.Context, expect assettransfer.TransitionOption) (*assettransfer.Outcome, error) {
				return o.AgreeToBuy(ctx, b, id, 100, "", expect)
			}),
		transition(fmt.Sprintf("%s transfers %s at mismatched prices", a, id), status.PriceMismatch, transfer(a)),
		check(fmt.Sprintf("%s still owns %s", a, id), s.expectOwner(a)),
		transition(fmt.Sprintf("%s agrees to sell for 100", a), status.OK, sell(100)),
		transition(fmt.Sprintf("%s transfers %s it does not own", b, id), status.EndorsementDenied, transfer(b)),
		transition(fmt.Sprintf("%s transfers %s to %s endorsed by %s and %s", a, id, b, a, b), status.OK, transfer(a, a, b)),
		check(fmt.Sprintf("only %s reads the private properties", b), s.expectPrivate(b, private)),
		transition(fmt.Sprintf("%s changes the description", b), status.OK,
			describe(b, fmt.Sprintf("Asset %s owned by %s is not for sale", id, b))),
	}
	return s, nil
}

// Private returns the private data flow: the asset lives in a collection
// shared by both organizations, its appraised value in the owner's own
// collection. The buyer agrees by storing the same value in its collection,
// and the contract compares the two hashes before handing the asset over.
func Private(o *assettransfer.Orchestrator, opts ...Option) (*Scenario, error) {
	s, err := newScenario(NamePrivate, assettransfer.DialectPrivate, o, opts)
	if err != nil {
		return nil, err
	}
	a, b, id := s.owner, s.buyer, s.assetID
	value := &assettransfer.PrivateRecord{AssetID: id, AppraisedValue: 100}

	transfer := func(actor org.Org) transitionFunc {
		return func(ctx context.Context, expect assettransfer.TransitionOption) (*assettransfer.Outcome, error) {
			return o.Transfer(ctx, actor, id, b, "", expect)
		}
	}
	agree := func(ctx context.Context, expect assettransfer.TransitionOption) (*assettransfer.Outcome, error) {
		return o.AgreeToBuy(ctx, b, id, value.AppraisedValue, "", expect)
	}

	s.steps = []*Step{
		transition(fmt.Sprintf("%s creates %s with appraised value 100", a, id), status.OK,
			func(ctx context.Context, expect assettransfer.TransitionOption) (*assettransfer.Outcome, error) {
				return o.Create(ctx, a, id, assettransfer.Attributes{}, &assettransfer.PrivateRecord{Color: "green", Size: 20, AppraisedValue: 100}, expect)
			}),
		check(fmt.Sprintf("only %s reads the appraised value", a), s.expectPrivate(a, value)),
		transition(fmt.Sprintf("%s transfers %s before %s agreed", a, id, b), status.PriceMismatch, transfer(a)),
		transition(fmt.Sprintf("%s agrees to buy for 100", b), status.OK, agree),
		transition(fmt.Sprintf("%s withdraws its agreement", b), status.OK,
			func(ctx context.Context, expect assettransfer.TransitionOption) (*assettransfer.Outcome, error) {
				return o.WithdrawAgreement(ctx, b, id, expect)
			}),
		transition(fmt.Sprintf("%s transfers %s after the agreement was withdrawn", a, id), status.PriceMismatch, transfer(a)),
		transition(fmt.Sprintf("%s agrees to buy for 100 again", b), status.OK, agree),
		transition(fmt.Sprintf("%s deletes %s it does not own", b, id), status.EndorsementDenied,
			func(ctx context.Context, expect assettransfer.TransitionOption) (*assettransfer.Outcome, error) {
				return o.Delete(ctx, b, id, expect)
			}),
		transition(fmt.Sprintf("%s transfers %s it does not own", b, id), status.EndorsementDenied, transfer(b)),
		transition(fmt.Sprintf("%s transfers %s to %s", a, id, b), status.OK, transfer(a)),
		check(fmt.Sprintf("both organizations read %s owned by %s", id, b), s.expectOwner(b)),
		check(fmt.Sprintf("only %s reads the appraised value", b), s.expectPrivate(b, value)),
		transition(fmt.Sprintf("%s deletes %s", b, id), status.OK,
			func(ctx context.Context, expect assettransfer.TransitionOption) (*assettransfer.Outcome, error) {
				return o.Delete(ctx, b, id, expect)
			}),
		check(fmt.Sprintf("%s no longer exists", id), s.expectAbsent()),
	}
	return s, nil
}

func (s *Scenario) expectValue(owner org.Org, value int) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		for _, viewer := range []org.Org{s.owner, s.buyer} {
			asset, err := s.o.Read(ctx, viewer, s.assetID)
			if err != nil {
				return err
			}
			if asset.OwnerOrg != owner || asset.Attributes.Value != value {
				return violation("%s reads %s owned by %s with value %d, expected %s and %d",
					viewer, s.assetID, asset.OwnerOrg, asset.Attributes.Value, owner, value)
			}
		}
		return nil
	}
}

func (s *Scenario) expectOwner(owner org.Org) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		for _, viewer := range []org.Org{s.owner, s.buyer} {
			asset, err := s.o.Read(ctx, viewer, s.assetID)
			if err != nil {
				return err
			}
			if asset.OwnerOrg != owner {
				return violation("%s reads %s owned by %s, expected %s", viewer, s.assetID, asset.OwnerOrg, owner)
			}
		}
		return nil
	}
}

func (s *Scenario) expectAbsent() func(ctx context.Context) error {
	return func(ctx context.Context) error {
		for _, viewer := range []org.Org{s.owner, s.buyer} {
			_, err := s.o.Read(ctx, viewer, s.assetID)
			switch {
			case status.Is(err, status.NotFound):
			case err != nil:
				return err
			default:
				return violation("%s still reads deleted asset %s", viewer, s.assetID)
			}
		}
		return nil
	}
}

func (s *Scenario) expectPrivate(holder org.Org, expected *assettransfer.PrivateRecord) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		for _, viewer := range []org.Org{s.owner, s.buyer} {
			got, err := s.o.ReadPrivate(ctx, viewer, s.assetID)
			if err != nil {
				return errors.WithMessagef(err, "private read by %s failed", viewer)
			}
			switch {
			case viewer == holder && got == nil:
				return violation("%s cannot read its private properties of %s", viewer, s.assetID)
			case viewer == holder && *got != *expected:
				return violation("%s reads private properties %+v, expected %+v", viewer, *got, *expected)
			case viewer != holder && got != nil:
				return violation("%s reads private properties of %s owned by %s", viewer, s.assetID, holder)
			}
		}
		return nil
	}
}
