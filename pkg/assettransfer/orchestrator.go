/*
Copyright 2020 IBM All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package assettransfer drives assets through their lifecycle across
// organizations. Every transition is checked against the lifecycle table,
// endorsed by the scope the endorsement resolver computes and submitted
// through the acting organization's own ledger client. A failed submission
// never changes the orchestrator's view of the asset.
package assettransfer

import (
	"context"
	"fmt"
	"sync"
	"time"

	uuid "github.com/hashicorp/go-uuid"
	"github.com/pkg/errors"

	"github.com/hyperledger/fabric-asset-transfer-go/pkg/common/errors/status"
	"github.com/hyperledger/fabric-asset-transfer-go/pkg/common/logging"
	"github.com/hyperledger/fabric-asset-transfer-go/pkg/endorsement"
	"github.com/hyperledger/fabric-asset-transfer-go/pkg/ledger"
	"github.com/hyperledger/fabric-asset-transfer-go/pkg/org"
	"github.com/hyperledger/fabric-asset-transfer-go/pkg/transient"
)

var logger = logging.NewLogger("assettransfer/orchestrator")

// LedgerClient is one organization's connection to the contract.
type LedgerClient interface {
	Org() org.Org
	Submit(ctx context.Context, txName string, args []string, opts ...ledger.Option) ([]byte, error)
	Evaluate(ctx context.Context, txName string, args []string, opts ...ledger.Option) ([]byte, error)
}

// Orchestrator coordinates asset transitions across organizations.
type Orchestrator struct {
	dialect  Dialect
	clients  map[org.Org]LedgerClient
	resolver *endorsement.Resolver
	recorder Recorder
	checker  ConsistencyChecker

	mu      sync.Mutex
	records map[string]*Record
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithPolicy overrides the dialect's chaincode-wide endorsement policy.
func WithPolicy(policy *endorsement.Policy) Option {
	return func(o *Orchestrator) {
		if policy != nil {
			o.resolver = endorsement.NewResolver(policy)
		}
	}
}

// WithRecorder reports every transition outcome to r.
func WithRecorder(r Recorder) Option {
	return func(o *Orchestrator) {
		o.recorder = r
	}
}

// WithConsistencyChecker asserts cross-organization consistency after every
// submitted transition.
func WithConsistencyChecker(c ConsistencyChecker) Option {
	return func(o *Orchestrator) {
		o.checker = c
	}
}

// New returns an orchestrator acting through the given per-organization clients.
func New(dialect Dialect, clients []LedgerClient, opts ...Option) (*Orchestrator, error) {
	if dialect == nil {
		return nil, errors.New("contract dialect is required")
	}
	if len(clients) == 0 {
		return nil, errors.New("at least one ledger client is required")
	}
	o := &Orchestrator{
		dialect:  dialect,
		clients:  make(map[org.Org]LedgerClient, len(clients)),
		resolver: endorsement.NewResolver(dialect.DefaultPolicy()),
		records:  make(map[string]*Record),
	}
	for _, c := range clients {
		if _, exists := o.clients[c.Org()]; exists {
			return nil, errors.Errorf("duplicate ledger client for %s", c.Org())
		}
		o.clients[c.Org()] = c
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Dialect returns the contract dialect.
func (o *Orchestrator) Dialect() Dialect {
	return o.dialect
}

// Record returns the orchestrator's view of an asset.
func (o *Orchestrator) Record(assetID string) (*Record, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	r, ok := o.records[assetID]
	if !ok {
		return nil, false
	}
	return r.clone(), true
}

type transitionOptions struct {
	scope    *endorsement.Scope
	expected status.Code
}

// TransitionOption adjusts a single transition.
type TransitionOption func(*transitionOptions)

// WithEndorsingOrgs submits with the given endorsers instead of the resolved scope.
func WithEndorsingOrgs(orgs ...org.Org) TransitionOption {
	return func(o *transitionOptions) {
		s := endorsement.Orgs(orgs...)
		o.scope = &s
	}
}

// WithDiscovery lets the network choose the endorsers instead of the resolved scope.
func WithDiscovery() TransitionOption {
	return func(o *transitionOptions) {
		s := endorsement.Discovery()
		o.scope = &s
	}
}

// Expect declares the status the caller expects, for example
// EndorsementDenied in a negative scenario step.
func Expect(code status.Code) TransitionOption {
	return func(o *transitionOptions) {
		o.expected = code
	}
}

// Create issues a new asset owned by the actor. An empty asset ID is
// replaced by a random one, reported in the outcome.
func (o *Orchestrator) Create(ctx context.Context, actor org.Org, assetID string, attrs Attributes, private *PrivateRecord, opts ...TransitionOption) (*Outcome, error) {
	if assetID == "" {
		id, err := NewAssetID()
		if err != nil {
			return nil, err
		}
		assetID = id
	}
	if private != nil {
		p := *private
		if p.AssetID == "" {
			p.AssetID = assetID
		}
		if p.AssetID != assetID {
			return nil, errors.Errorf("private record is for asset %s, not %s", p.AssetID, assetID)
		}
		private = &p
	}
	p := &Params{AssetID: assetID, Actor: actor, Attributes: attrs, Private: private}
	return o.submit(ctx, endorsement.Create, p, opts, nil, func(r *Record) {
		*r = Record{
			AssetID:    assetID,
			State:      Owned,
			Owner:      actor,
			Override:   []org.Org{actor},
			Attributes: attrs,
			Private:    private,
		}
	})
}

// Update sets the appraised value of an asset.
func (o *Orchestrator) Update(ctx context.Context, actor org.Org, assetID string, value int, opts ...TransitionOption) (*Outcome, error) {
	p := &Params{AssetID: assetID, Actor: actor, Attributes: Attributes{Value: value}}
	return o.submit(ctx, endorsement.Update, p, opts, nil, func(r *Record) {
		r.Attributes.Value = value
	})
}

// ChangeDescription sets the public description of an asset.
func (o *Orchestrator) ChangeDescription(ctx context.Context, actor org.Org, assetID, description string, opts ...TransitionOption) (*Outcome, error) {
	p := &Params{AssetID: assetID, Actor: actor, Attributes: Attributes{Description: description}}
	return o.submit(ctx, endorsement.ChangeDescription, p, opts, nil, func(r *Record) {
		r.Attributes.Description = description
	})
}

// ListForSale announces publicly that the asset is for sale.
func (o *Orchestrator) ListForSale(ctx context.Context, actor org.Org, assetID string, opts ...TransitionOption) (*Outcome, error) {
	p := &Params{AssetID: assetID, Actor: actor}
	prepare := func(ctx context.Context, r *Record, p *Params) error {
		p.Attributes.Description = fmt.Sprintf("Asset %s owned by %s is for sale", assetID, r.Owner)
		return nil
	}
	return o.submit(ctx, endorsement.ListForSale, p, opts, prepare, func(r *Record) {
		r.Attributes.Description = p.Attributes.Description
		if r.State == Owned || r.State == Transferred {
			r.State = ForSale
		}
	})
}

// AgreeToSell records the owner's asking price. An empty trade ID reuses
// the buyer's, or a new one is generated.
func (o *Orchestrator) AgreeToSell(ctx context.Context, actor org.Org, assetID string, price int, tradeID string, opts ...TransitionOption) (*Outcome, error) {
	return o.agree(ctx, endorsement.AgreeToSell, Seller, actor, assetID, price, tradeID, opts)
}

// AgreeToBuy records a bid for the asset. An empty trade ID reuses the
// seller's, or a new one is generated.
func (o *Orchestrator) AgreeToBuy(ctx context.Context, actor org.Org, assetID string, price int, tradeID string, opts ...TransitionOption) (*Outcome, error) {
	return o.agree(ctx, endorsement.AgreeToBuy, Buyer, actor, assetID, price, tradeID, opts)
}

func (o *Orchestrator) agree(ctx context.Context, kind endorsement.Kind, role Role, actor org.Org, assetID string, price int, tradeID string, opts []TransitionOption) (*Outcome, error) {
	p := &Params{AssetID: assetID, Actor: actor}
	prepare := func(ctx context.Context, r *Record, p *Params) error {
		if tradeID == "" {
			counterpart := r.Bid
			if role == Buyer {
				counterpart = r.Sale
			}
			if counterpart != nil {
				tradeID = counterpart.TradeID
			} else {
				id, err := uuid.GenerateUUID()
				if err != nil {
					return errors.Wrap(err, "failed to generate trade ID")
				}
				tradeID = id
			}
		}
		p.Agreement = &TransferAgreement{AssetID: assetID, Price: price, TradeID: tradeID, ProposingOrg: actor, Role: role}
		return nil
	}
	return o.submit(ctx, kind, p, opts, prepare, func(r *Record) {
		if role == Seller {
			r.Sale = p.Agreement
		} else {
			r.Bid = p.Agreement
		}
		r.State = r.agreementState(role)
	})
}

// WithdrawAgreement removes the actor's outstanding agreements on the asset.
func (o *Orchestrator) WithdrawAgreement(ctx context.Context, actor org.Org, assetID string, opts ...TransitionOption) (*Outcome, error) {
	p := &Params{AssetID: assetID, Actor: actor}
	return o.submit(ctx, endorsement.WithdrawAgreement, p, opts, nil, func(r *Record) {
		if r.Sale != nil && r.Sale.ProposingOrg == actor {
			r.Sale = nil
		}
		if r.Bid != nil && r.Bid.ProposingOrg == actor {
			r.Bid = nil
		}
		r.State = r.agreementState(0)
	})
}

// Transfer hands the asset to newOwner. Contracts that require agreements
// are only called when the known sale and bid agree on price and trade ID;
// the ledger checks again. newOwnerName is recorded by contracts that keep
// a holder name.
func (o *Orchestrator) Transfer(ctx context.Context, actor org.Org, assetID string, newOwner org.Org, newOwnerName string, opts ...TransitionOption) (*Outcome, error) {
	if newOwnerName == "" {
		newOwnerName = newOwner.String()
	}
	p := &Params{AssetID: assetID, Actor: actor, NewOwner: newOwner, NewOwnerName: newOwnerName}
	var prepare func(ctx context.Context, r *Record, p *Params) error
	switch roles := o.dialect.Agreements(); {
	case hasRole(roles, Seller):
		prepare = o.prepareTransfer
	case hasRole(roles, Buyer):
		prepare = o.prepareBuyerTransfer
	}
	return o.submit(ctx, endorsement.Transfer, p, opts, prepare, func(r *Record) {
		r.State = Transferred
		r.Owner = newOwner
		r.Override = []org.Org{newOwner}
		r.Attributes.Owner = newOwnerName
		r.Sale, r.Bid = nil, nil
	})
}

func (o *Orchestrator) prepareTransfer(ctx context.Context, r *Record, p *Params) error {
	client := o.clients[p.Actor]

	p.Private = r.Private
	if p.Private == nil {
		private, err := o.readPrivate(ctx, client, p.AssetID)
		if err != nil {
			return err
		}
		if private == nil {
			return errors.Errorf("private properties of asset %s are not known to %s", p.AssetID, p.Actor)
		}
		p.Private = private
	}

	sale := r.Sale
	if sale == nil {
		a, err := o.readAgreement(ctx, client, p.AssetID, Seller)
		if err != nil {
			return err
		}
		sale = a
	}
	if sale == nil {
		return status.Errorf(status.PriceMismatch, "seller price for %s does not exist", p.AssetID)
	}
	if bid := r.Bid; bid != nil && (bid.Price != sale.Price || bid.TradeID != sale.TradeID) {
		return status.Errorf(status.PriceMismatch, "seller price %d and buyer price %d for asset %s do not match", sale.Price, bid.Price, p.AssetID)
	}
	p.Agreement = sale
	return nil
}

// prepareBuyerTransfer checks the bid of a contract that keeps buyer
// agreements only. The contract compares the appraised values itself; a bid
// whose price is known locally is checked first.
func (o *Orchestrator) prepareBuyerTransfer(ctx context.Context, r *Record, p *Params) error {
	bid := r.Bid
	if bid == nil {
		a, err := o.readAgreement(ctx, o.clients[p.Actor], p.AssetID, Buyer)
		if err != nil {
			return err
		}
		bid = a
	}
	if bid == nil || bid.ProposingOrg != p.NewOwner {
		return status.Errorf(status.PriceMismatch, "%s has not agreed to buy asset %s", p.NewOwner, p.AssetID)
	}
	if r.Private != nil && bid.Price > 0 && bid.Price != r.Private.AppraisedValue {
		return status.Errorf(status.PriceMismatch, "appraised value %d and bid price %d for asset %s do not match", r.Private.AppraisedValue, bid.Price, p.AssetID)
	}
	p.Agreement = bid
	return nil
}

func hasRole(roles []Role, role Role) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}

// Delete removes the asset.
func (o *Orchestrator) Delete(ctx context.Context, actor org.Org, assetID string, opts ...TransitionOption) (*Outcome, error) {
	p := &Params{AssetID: assetID, Actor: actor}
	return o.submit(ctx, endorsement.Delete, p, opts, nil, func(r *Record) {
		*r = Record{AssetID: assetID, State: Deleted}
	})
}

// Verify checks private properties against the hash the ledger keeps for the
// owner, without learning the owner's data. A nil record verifies the
// properties this orchestrator created the asset with.
func (o *Orchestrator) Verify(ctx context.Context, actor org.Org, assetID string, private *PrivateRecord, opts ...TransitionOption) (bool, *Outcome, error) {
	topts := transitionOpts(opts)
	outcome := &Outcome{AssetID: assetID, Kind: endorsement.Verify, Actor: actor, Scope: endorsement.None(), Expected: topts.expected, Time: time.Now()}

	verified, err := func() (bool, error) {
		client, err := o.client(actor)
		if err != nil {
			return false, err
		}
		r, err := o.load(ctx, client, assetID)
		if err != nil {
			return false, err
		}
		if !Legal(endorsement.Verify, r.State) {
			return false, invalidTransition(endorsement.Verify, r)
		}
		if private == nil {
			private = r.Private
		}
		inv, err := o.dialect.Transition(endorsement.Verify, &Params{AssetID: assetID, Actor: actor, Private: private})
		if err != nil {
			return false, err
		}
		payload, err := transient.Encode(inv.Fields)
		if err != nil {
			return false, err
		}
		result, err := client.Evaluate(ctx, inv.Function, inv.Args, ledger.WithTransient(payload))
		if err != nil {
			return false, err
		}
		var ok bool
		if err := unmarshal(result, &ok); err != nil {
			return false, err
		}
		return ok, nil
	}()

	o.finish(ctx, outcome, err)
	if err != nil {
		return false, outcome, err
	}
	logger.Infof("Verify of asset %s by %s: %t", assetID, actor, verified)
	return verified, outcome, nil
}

type prepareFunc func(ctx context.Context, r *Record, p *Params) error

// submit runs one transition: legality, scope, payload, submission, and on
// success the update of the record.
func (o *Orchestrator) submit(ctx context.Context, kind endorsement.Kind, p *Params, opts []TransitionOption, prepare prepareFunc, apply func(r *Record)) (*Outcome, error) {
	topts := transitionOpts(opts)
	outcome := &Outcome{AssetID: p.AssetID, Kind: kind, Actor: p.Actor, Expected: topts.expected, Time: time.Now()}

	var r *Record
	submitted := false
	err := func() error {
		client, err := o.client(p.Actor)
		if err != nil {
			return err
		}
		if r, err = o.load(ctx, client, p.AssetID); err != nil {
			return err
		}
		if !Legal(kind, r.State) {
			return invalidTransition(kind, r)
		}

		scope, err := o.scope(kind, r, p, topts)
		if err != nil {
			return err
		}
		outcome.Scope = scope

		if prepare != nil {
			if err := prepare(ctx, r, p); err != nil {
				return err
			}
		}
		inv, err := o.dialect.Transition(kind, p)
		if err != nil {
			return err
		}
		payload, err := transient.Encode(inv.Fields)
		if err != nil {
			return err
		}

		logger.Infof("%s of asset %s by %s, endorsed by %s", kind, p.AssetID, p.Actor, scope)
		submitted = true
		_, err = client.Submit(ctx, inv.Function, inv.Args, ledger.WithTransient(payload), ledger.WithScope(scope))
		return err
	}()

	if err == nil {
		updated := r.clone()
		apply(updated)
		updated.Attributes = o.dialect.Stored(updated.Attributes)
		o.store(updated)
		r = updated
	}
	o.finish(ctx, outcome, err)

	if o.checker != nil && submitted {
		if cerr := o.checker.Assert(ctx, p.AssetID, r.Expectation()); cerr != nil {
			logger.Errorf("Consistency check after %s of asset %s failed: %s", kind, p.AssetID, cerr)
			return outcome, cerr
		}
	}
	if err != nil {
		return outcome, err
	}
	return outcome, nil
}

func (o *Orchestrator) scope(kind endorsement.Kind, r *Record, p *Params, topts *transitionOptions) (endorsement.Scope, error) {
	if topts.scope != nil {
		return *topts.scope, nil
	}
	scope, err := o.resolver.Resolve(endorsement.Request{
		Kind:     kind,
		Actor:    p.Actor,
		Owner:    r.Owner,
		Override: r.Override,
		NewOwner: p.NewOwner,
	})
	if err != nil {
		return endorsement.Scope{}, status.New(status.WorkflowStatus, status.InvalidTransition.ToInt32(), err.Error(), nil)
	}
	if _, ok := o.dialect.(actorEndorsed); ok && !scope.IsNone() {
		return endorsement.Orgs(p.Actor), nil
	}
	return scope, nil
}

// finish completes the outcome, logs it and hands it to the recorder.
func (o *Orchestrator) finish(ctx context.Context, outcome *Outcome, err error) {
	outcome.Duration = time.Since(outcome.Time)
	outcome.Code = status.CodeOf(err)
	if err != nil {
		outcome.Reason = reason(err)
	}

	switch {
	case outcome.Succeeded():
		logger.Infof("%s of asset %s by %s succeeded", outcome.Kind, outcome.AssetID, outcome.Actor)
	case outcome.Passed():
		logger.Infof("%s of asset %s by %s failed as expected with %s: %s", outcome.Kind, outcome.AssetID, outcome.Actor, outcome.Code, outcome.Reason)
	default:
		logger.Warnf("%s of asset %s by %s failed with %s: %s", outcome.Kind, outcome.AssetID, outcome.Actor, outcome.Code, outcome.Reason)
	}

	if o.recorder != nil {
		if rerr := o.recorder.Record(ctx, outcome); rerr != nil {
			logger.Warnf("Failed to record outcome of %s of asset %s: %s", outcome.Kind, outcome.AssetID, rerr)
		}
	}
}

func (o *Orchestrator) client(actor org.Org) (LedgerClient, error) {
	c, ok := o.clients[actor]
	if !ok {
		return nil, status.Errorf(status.SetupFailed, "no ledger client for organization %s", actor)
	}
	return c, nil
}

// load returns a copy of the asset's record, reading the asset from the
// ledger when this orchestrator has not seen it yet.
func (o *Orchestrator) load(ctx context.Context, client LedgerClient, assetID string) (*Record, error) {
	if assetID == "" {
		return nil, status.Errorf(status.InvalidTransition, "asset ID is required")
	}
	if r, ok := o.Record(assetID); ok {
		return r, nil
	}

	asset, err := o.read(ctx, client, assetID)
	switch {
	case status.Is(err, status.NotFound):
		return &Record{AssetID: assetID, State: Nonexistent}, nil
	case err != nil:
		return nil, err
	}
	r := &Record{
		AssetID:    asset.ID,
		State:      Owned,
		Owner:      asset.OwnerOrg,
		Override:   asset.EndorsementOverride,
		Attributes: asset.Attributes,
	}
	for _, role := range o.dialect.Agreements() {
		a, err := o.readAgreement(ctx, client, assetID, role)
		if err != nil {
			return nil, err
		}
		if role == Seller {
			r.Sale = a
		} else {
			r.Bid = a
		}
	}
	r.State = r.agreementState(0)
	o.store(r.clone())
	return r, nil
}

func (o *Orchestrator) store(r *Record) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.records[r.AssetID] = r
}

func transitionOpts(opts []TransitionOption) *transitionOptions {
	o := &transitionOptions{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func invalidTransition(kind endorsement.Kind, r *Record) error {
	return status.Errorf(status.InvalidTransition, "%s is not allowed for asset %s in state %s", kind, r.AssetID, r.State)
}

func reason(err error) string {
	if s, ok := status.FromError(err); ok {
		return s.Message
	}
	return err.Error()
}

// NewAssetID returns a random asset key.
func NewAssetID() (string, error) {
	id, err := uuid.GenerateUUID()
	if err != nil {
		return "", errors.Wrap(err, "failed to generate asset ID")
	}
	return "asset-" + id[:8], nil
}
