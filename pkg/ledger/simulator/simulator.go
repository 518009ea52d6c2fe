/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package simulator is an in-process stand-in for the ledger service. It
// keeps a shared world state, per-organization implicit private data
// collections with publicly visible hashes, and state-based endorsement
// policies per key. Submissions execute the chaincode on the peer of every
// endorsing organization and commit only when the write sets agree and the
// endorsements satisfy every policy the write set touches.
package simulator

import (
	"bytes"
	"context"
	"crypto/sha256"
	"sort"
	"sync"

	uuid "github.com/hashicorp/go-uuid"
	"github.com/pkg/errors"

	"github.com/hyperledger/fabric-asset-transfer-go/pkg/common/errors/status"
	"github.com/hyperledger/fabric-asset-transfer-go/pkg/common/logging"
	"github.com/hyperledger/fabric-asset-transfer-go/pkg/endorsement"
	"github.com/hyperledger/fabric-asset-transfer-go/pkg/ledger"
	"github.com/hyperledger/fabric-asset-transfer-go/pkg/org"
	"github.com/hyperledger/fabric-asset-transfer-go/pkg/transient"
)

var logger = logging.NewLogger("assettransfer/simulator")

// Chaincode is a contract deployed on the simulated channel.
type Chaincode interface {
	Invoke(stub Stub, fcn string, args []string) ([]byte, error)
}

// Network is a simulated channel shared by every organization.
type Network struct {
	mu         sync.RWMutex
	policies   map[string]*endorsement.Policy
	chaincodes map[string]Chaincode
	world      *worldState
	height     uint64
}

// Option configures a Network.
type Option func(*Network)

// WithChaincode deploys cc under name with the given chaincode-wide
// endorsement policy.
func WithChaincode(name string, cc Chaincode, policy *endorsement.Policy) Option {
	return func(n *Network) {
		n.chaincodes[name] = cc
		n.policies[name] = policy
	}
}

// New creates a network. Without options the sbe contract is deployed with
// a policy requiring every organization, the secured and private contracts
// with a policy requiring any organization.
func New(opts ...Option) *Network {
	n := &Network{
		policies:   make(map[string]*endorsement.Policy),
		chaincodes: make(map[string]Chaincode),
		world:      newWorldState(),
	}
	if len(opts) == 0 {
		opts = []Option{
			WithChaincode("sbe", NewSBE(), endorsement.AllOf(org.All()...)),
			WithChaincode("secured", NewSecured(), endorsement.AnyOf(org.All()...)),
			WithChaincode("private", NewPrivate(), endorsement.AnyOf(org.All()...)),
		}
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Height returns the number of committed transactions.
func (n *Network) Height() uint64 {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.height
}

// Connect opens a session for the given identity.
func (n *Network) Connect(ctx context.Context, id ledger.Identity, _ ledger.DiscoveryOptions) (ledger.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, "connect aborted")
	}
	if !id.Org.Valid() {
		return nil, errors.Errorf("invalid organization for identity %s", id.Label)
	}
	if id.Credential == nil {
		return nil, errors.Errorf("identity %s has no credential", id.Label)
	}
	if id.Credential.MSPID() != id.Org.MSPID() {
		return nil, errors.Errorf("identity %s belongs to %s, not %s", id.Label, id.Credential.MSPID(), id.Org.MSPID())
	}
	logger.Debugf("Session opened for %s@%s", id.Label, id.Org)
	return &session{network: n, org: id.Org, label: id.Label}, nil
}

func (n *Network) chaincode(name string) (Chaincode, *endorsement.Policy, error) {
	cc, ok := n.chaincodes[name]
	if !ok {
		return nil, nil, errors.Errorf("chaincode %s is not deployed", name)
	}
	return cc, n.policies[name], nil
}

// endorse executes the proposal on the peer of every given organization.
// Any failing endorser fails the proposal.
func (n *Network) endorse(cc Chaincode, txID string, s *session, fcn string, args []string, payload transient.Payload, peers []org.Org) ([]byte, *rwset, error) {
	var result []byte
	var agreed *rwset
	for _, peer := range peers {
		stub := &txStub{txID: txID, clientID: clientID(s.org, s.label), client: s.org, peer: peer, transient: payload.Clone(), world: n.world, writes: newRWSet()}
		res, err := cc.Invoke(stub, fcn, args)
		if err != nil {
			return nil, nil, errors.WithMessagef(status.NewFromChaincodeError(500, err.Error()),
				"endorsement failed on peer0.%s", peer.Domain())
		}
		if agreed == nil {
			agreed, result = stub.writes, res
			continue
		}
		if !agreed.equal(stub.writes) || !bytes.Equal(result, res) {
			return nil, nil, errors.Errorf("ProposalResponsePayloads do not match for transaction %s", txID)
		}
	}
	return result, agreed, nil
}

// validate checks the endorsements of a write set the way the committing
// peers do.
func (n *Network) validate(policy *endorsement.Policy, writes *rwset, endorsers []org.Org) error {
	keys := sortedKeys(writes.public)
	for k := range writes.policies {
		if _, ok := writes.public[k]; !ok {
			keys = append(keys, k)
		}
	}
	for _, key := range keys {
		if required, ok := n.world.policies[key]; ok && n.world.state[key] != nil {
			for _, o := range required {
				if !org.Contains(endorsers, o) {
					return errors.Errorf("key %s requires endorsement by %v", key, org.MSPIDs(required...))
				}
			}
			continue
		}
		if policy != nil && !policy.SatisfiedBy(endorsers...) {
			return errors.Errorf("endorsements of %v do not satisfy policy %s", org.MSPIDs(endorsers...), policy)
		}
	}
	for collection := range writes.private {
		members, err := collectionMembers(collection)
		if err != nil {
			return err
		}
		if !containsAny(endorsers, members) {
			return errors.Errorf("writes to collection %s require endorsement by one of %v", collection, org.MSPIDs(members...))
		}
	}
	return nil
}

func containsAny(orgs, candidates []org.Org) bool {
	for _, o := range candidates {
		if org.Contains(orgs, o) {
			return true
		}
	}
	return false
}

// discoveryLayouts lists the endorser sets tried when the caller leaves the
// choice to discovery: the client's own organization, then everyone.
func discoveryLayouts(client org.Org) [][]org.Org {
	return [][]org.Org{{client}, org.All()}
}

type session struct {
	network *Network
	org     org.Org
	label   string

	mu     sync.Mutex
	closed bool
}

func (s *session) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return errors.Wrap(err, "request aborted")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("gateway is closed")
	}
	return nil
}

func (s *session) Submit(ctx context.Context, chaincode, txName string, args []string, payload transient.Payload, endorsingOrgs []org.Org) ([]byte, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}

	n := s.network
	n.mu.Lock()
	defer n.mu.Unlock()

	cc, policy, err := n.chaincode(chaincode)
	if err != nil {
		return nil, err
	}
	txID, err := uuid.GenerateUUID()
	if err != nil {
		return nil, errors.Wrap(err, "failed to generate transaction ID")
	}

	layouts := discoveryLayouts(s.org)
	if endorsingOrgs != nil {
		peers := org.Set(endorsingOrgs...)
		if len(peers) == 0 {
			return nil, errors.New("no endorsing organizations given")
		}
		layouts = [][]org.Org{peers}
	}

	var lastErr error
	for _, peers := range layouts {
		result, writes, err := n.endorse(cc, txID, s, txName, args, payload, peers)
		if err != nil {
			lastErr = err
			continue
		}
		if err := n.validate(policy, writes, peers); err != nil {
			lastErr = errors.Errorf("transaction %s failed to commit with status code 10 (ENDORSEMENT_POLICY_FAILURE): %s", txID, err)
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrapf(err, "transaction %s not committed", txID)
		}
		n.world.apply(writes)
		n.height++
		logger.Debugf("Committed %s %s by %s endorsed by %v at height %d", txID, txName, s.org, peers, n.height)
		return result, nil
	}
	logger.Debugf("Transaction %s %s by %s rejected: %s", txID, txName, s.org, lastErr)
	return nil, lastErr
}

func (s *session) Evaluate(ctx context.Context, chaincode, txName string, args []string, payload transient.Payload) ([]byte, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}

	n := s.network
	n.mu.RLock()
	defer n.mu.RUnlock()

	cc, _, err := n.chaincode(chaincode)
	if err != nil {
		return nil, err
	}
	stub := &txStub{clientID: clientID(s.org, s.label), client: s.org, peer: s.org, transient: payload.Clone(), world: n.world, writes: newRWSet()}
	res, err := cc.Invoke(stub, txName, args)
	if err != nil {
		return nil, errors.WithMessagef(status.NewFromChaincodeError(500, err.Error()),
			"evaluate failed on peer0.%s", s.org.Domain())
	}
	return res, nil
}

func (s *session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

type worldState struct {
	state    map[string][]byte
	policies map[string][]org.Org
	private  map[string]map[string][]byte
	hashes   map[string]map[string][]byte
}

func newWorldState() *worldState {
	return &worldState{
		state:    make(map[string][]byte),
		policies: make(map[string][]org.Org),
		private:  make(map[string]map[string][]byte),
		hashes:   make(map[string]map[string][]byte),
	}
}

func (w *worldState) keys() []string {
	keys := make([]string, 0, len(w.state))
	for k := range w.state {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (w *worldState) apply(s *rwset) {
	for k, wr := range s.public {
		if wr.delete {
			delete(w.state, k)
			delete(w.policies, k)
			continue
		}
		w.state[k] = wr.value
	}
	for k, orgs := range s.policies {
		w.policies[k] = orgs
	}
	for c, writes := range s.private {
		if w.private[c] == nil {
			w.private[c] = make(map[string][]byte)
			w.hashes[c] = make(map[string][]byte)
		}
		for k, wr := range writes {
			if wr.delete {
				delete(w.private[c], k)
				delete(w.hashes[c], k)
				continue
			}
			sum := sha256.Sum256(wr.value)
			w.private[c][k] = wr.value
			w.hashes[c][k] = sum[:]
		}
	}
}
