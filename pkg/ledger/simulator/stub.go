/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package simulator

import (
	"bytes"
	"crypto/sha256"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/pkg/errors"

	"github.com/hyperledger/fabric-asset-transfer-go/pkg/org"
	"github.com/hyperledger/fabric-asset-transfer-go/pkg/transient"
)

const (
	minUnicodeRuneValue   = 0            // U+0000
	maxUnicodeRuneValue   = utf8.MaxRune // U+10FFFF - maximum (and unallocated) code point
	compositeKeyNamespace = "\x00"
)

// KV is a key and value returned by a range query.
type KV struct {
	Key   string
	Value []byte
}

// Stub is the chaincode's view of one endorsement. Reads observe committed
// state only; writes are collected into the proposal's write set.
type Stub interface {
	TxID() string
	// ClientID is the submitting identity, x509::<subject>::<issuer>.
	ClientID() string
	// ClientOrg is the organization of the submitting identity.
	ClientOrg() org.Org
	// PeerOrg is the organization of the endorsing peer.
	PeerOrg() org.Org
	Transient() transient.Payload

	GetState(key string) ([]byte, error)
	PutState(key string, value []byte) error
	DelState(key string) error
	GetStateByRange(startKey, endKey string) ([]KV, error)
	// SetStateValidationParameter requires every one of orgs to endorse
	// future writes of key.
	SetStateValidationParameter(key string, orgs ...org.Org) error

	GetPrivateData(collection, key string) ([]byte, error)
	GetPrivateDataHash(collection, key string) ([]byte, error)
	GetPrivateDataByRange(collection, startKey, endKey string) ([]KV, error)
	PutPrivateData(collection, key string, value []byte) error
	DelPrivateData(collection, key string) error

	CreateCompositeKey(objectType string, attributes []string) (string, error)
}

type write struct {
	value  []byte
	delete bool
}

// rwset is the write set produced by one endorsement.
type rwset struct {
	public   map[string]write
	policies map[string][]org.Org
	private  map[string]map[string]write
}

func newRWSet() *rwset {
	return &rwset{
		public:   make(map[string]write),
		policies: make(map[string][]org.Org),
		private:  make(map[string]map[string]write),
	}
}

// digest summarises the write set. Private values are represented by their
// hashes, as peers of other organizations only ever see those.
func (s *rwset) digest() []byte {
	h := sha256.New()
	for _, k := range sortedKeys(s.public) {
		w := s.public[k]
		h.Write([]byte("pub\x00" + k + "\x00"))
		if w.delete {
			h.Write([]byte("\x01"))
		} else {
			h.Write(w.value)
		}
	}
	policyKeys := make([]string, 0, len(s.policies))
	for k := range s.policies {
		policyKeys = append(policyKeys, k)
	}
	sort.Strings(policyKeys)
	for _, k := range policyKeys {
		h.Write([]byte("ep\x00" + k + "\x00" + strings.Join(org.MSPIDs(s.policies[k]...), ",")))
	}
	collections := make([]string, 0, len(s.private))
	for c := range s.private {
		collections = append(collections, c)
	}
	sort.Strings(collections)
	for _, c := range collections {
		for _, k := range sortedKeys(s.private[c]) {
			w := s.private[c][k]
			h.Write([]byte("pvt\x00" + c + "\x00" + k + "\x00"))
			if w.delete {
				h.Write([]byte("\x01"))
			} else {
				sum := sha256.Sum256(w.value)
				h.Write(sum[:])
			}
		}
	}
	return h.Sum(nil)
}

func (s *rwset) equal(o *rwset) bool {
	return bytes.Equal(s.digest(), o.digest())
}

func (s *rwset) empty() bool {
	return len(s.public) == 0 && len(s.policies) == 0 && len(s.private) == 0
}

func sortedKeys(m map[string]write) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// txStub executes one proposal on one organization's peer.
type txStub struct {
	txID      string
	clientID  string
	client    org.Org
	peer      org.Org
	transient transient.Payload
	world     *worldState
	writes    *rwset
}

var _ Stub = (*txStub)(nil)

func (s *txStub) TxID() string {
	return s.txID
}

func (s *txStub) ClientID() string {
	return s.clientID
}

func (s *txStub) ClientOrg() org.Org {
	return s.client
}

func (s *txStub) PeerOrg() org.Org {
	return s.peer
}

func (s *txStub) Transient() transient.Payload {
	return s.transient
}

func (s *txStub) GetState(key string) ([]byte, error) {
	if key == "" {
		return nil, errors.New("key must not be an empty string")
	}
	return s.world.state[key], nil
}

func (s *txStub) PutState(key string, value []byte) error {
	if key == "" {
		return errors.New("key must not be an empty string")
	}
	if len(value) == 0 {
		return s.DelState(key)
	}
	s.writes.public[key] = write{value: append([]byte(nil), value...)}
	return nil
}

func (s *txStub) DelState(key string) error {
	if key == "" {
		return errors.New("key must not be an empty string")
	}
	s.writes.public[key] = write{delete: true}
	return nil
}

func (s *txStub) GetStateByRange(startKey, endKey string) ([]KV, error) {
	if strings.HasPrefix(startKey, compositeKeyNamespace) || strings.HasPrefix(endKey, compositeKeyNamespace) {
		return nil, errors.New("range query keys must be simple keys")
	}
	var kvs []KV
	for _, k := range s.world.keys() {
		if strings.HasPrefix(k, compositeKeyNamespace) {
			continue
		}
		if k < startKey || (endKey != "" && k >= endKey) {
			continue
		}
		kvs = append(kvs, KV{Key: k, Value: s.world.state[k]})
	}
	return kvs, nil
}

func (s *txStub) SetStateValidationParameter(key string, orgs ...org.Org) error {
	set := org.Set(orgs...)
	if len(set) == 0 {
		return errors.Errorf("no valid organizations for the endorsement policy of key %s", key)
	}
	s.writes.policies[key] = set
	return nil
}

func (s *txStub) GetPrivateData(collection, key string) ([]byte, error) {
	if err := s.member(collection); err != nil {
		return nil, err
	}
	return s.world.private[collection][key], nil
}

func (s *txStub) GetPrivateDataHash(collection, key string) ([]byte, error) {
	if _, err := collectionMembers(collection); err != nil {
		return nil, err
	}
	return s.world.hashes[collection][key], nil
}

func (s *txStub) GetPrivateDataByRange(collection, startKey, endKey string) ([]KV, error) {
	if err := s.member(collection); err != nil {
		return nil, err
	}
	data := s.world.private[collection]
	keys := make([]string, 0, len(data))
	for k := range data {
		if strings.HasPrefix(k, compositeKeyNamespace) || k < startKey || (endKey != "" && k >= endKey) {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	kvs := make([]KV, 0, len(keys))
	for _, k := range keys {
		kvs = append(kvs, KV{Key: k, Value: data[k]})
	}
	return kvs, nil
}

// member fails unless the endorsing peer holds the collection.
func (s *txStub) member(collection string) error {
	members, err := collectionMembers(collection)
	if err != nil {
		return err
	}
	if !org.Contains(members, s.peer) {
		return errors.Errorf("peer of %s is not a member of collection %s, private data is not available", s.peer.MSPID(), collection)
	}
	return nil
}

func (s *txStub) PutPrivateData(collection, key string, value []byte) error {
	if _, err := collectionMembers(collection); err != nil {
		return err
	}
	if len(value) == 0 {
		return errors.Errorf("private data of key %s must not be empty", key)
	}
	s.privateWrites(collection)[key] = write{value: append([]byte(nil), value...)}
	return nil
}

func (s *txStub) DelPrivateData(collection, key string) error {
	if _, err := collectionMembers(collection); err != nil {
		return err
	}
	s.privateWrites(collection)[key] = write{delete: true}
	return nil
}

func (s *txStub) privateWrites(collection string) map[string]write {
	m, ok := s.writes.private[collection]
	if !ok {
		m = make(map[string]write)
		s.writes.private[collection] = m
	}
	return m
}

func (s *txStub) CreateCompositeKey(objectType string, attributes []string) (string, error) {
	if err := validateCompositeKeyAttribute(objectType); err != nil {
		return "", err
	}
	ck := compositeKeyNamespace + objectType + string(rune(minUnicodeRuneValue))
	for _, att := range attributes {
		if err := validateCompositeKeyAttribute(att); err != nil {
			return "", err
		}
		ck += att + string(rune(minUnicodeRuneValue))
	}
	return ck, nil
}

func validateCompositeKeyAttribute(str string) error {
	for _, r := range str {
		if r == minUnicodeRuneValue || r == maxUnicodeRuneValue {
			return errors.Errorf("input contains unicode %#U starting at position [0]. %#U and %#U are not allowed in the input attribute of a composite key",
				r, minUnicodeRuneValue, maxUnicodeRuneValue)
		}
	}
	return nil
}

// collectionMembers resolves the organizations holding a collection: the
// owner of an implicit or per-organization collection, or every organization
// for the shared asset collection.
func collectionMembers(collection string) ([]org.Org, error) {
	if collection == assetCollection {
		return org.All(), nil
	}
	for _, o := range org.All() {
		if o.ImplicitCollection() == collection || o.PrivateCollection() == collection {
			return []org.Org{o}, nil
		}
	}
	return nil, errors.Errorf("collection %s is not defined", collection)
}

// clientID renders the identity of a member the way the contract API does.
func clientID(o org.Org, label string) string {
	return "x509::CN=" + label + ",OU=client,O=" + o.Domain() + "::CN=" + o.CAName() + ",O=" + o.Domain()
}
