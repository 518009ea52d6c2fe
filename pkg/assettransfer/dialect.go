/*
Copyright 2020 IBM All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package assettransfer

import (
	"encoding/json"
	"strconv"

	"github.com/pkg/errors"

	"github.com/hyperledger/fabric-asset-transfer-go/pkg/common/errors/status"
	"github.com/hyperledger/fabric-asset-transfer-go/pkg/endorsement"
	"github.com/hyperledger/fabric-asset-transfer-go/pkg/org"
	"github.com/hyperledger/fabric-asset-transfer-go/pkg/transient"
)

// Dialect names
const (
	DialectSBE     = "sbe"
	DialectSecured = "secured"
	DialectPrivate = "private"
)

// ErrUnsupported is returned when the contract has no function for an operation.
var ErrUnsupported = status.New(status.WorkflowStatus, status.Unsupported.ToInt32(),
	"operation is not supported by the contract", nil)

// Query is a read-only contract operation.
type Query int

// Queries
const (
	QueryAsset Query = iota + 1
	QueryPrivate
	QuerySalePrice
	QueryBidPrice
	QueryRange
)

// Params carry the inputs of one operation. Each dialect reads the fields it needs.
type Params struct {
	AssetID    string
	Actor      org.Org
	Attributes Attributes
	Private    *PrivateRecord
	Agreement  *TransferAgreement
	NewOwner   org.Org
	// NewOwnerName is the holder name recorded by contracts that keep one.
	NewOwnerName string
	// RangeStart and RangeEnd bound a range query; empty means open.
	RangeStart string
	RangeEnd   string
}

// Invocation is a chaincode function call.
type Invocation struct {
	Function string
	Args     []string
	Fields   transient.Fields
}

// Dialect maps lifecycle operations onto the functions of one contract.
type Dialect interface {
	Name() string
	// DefaultPolicy is the chaincode-wide endorsement policy the contract is
	// deployed with.
	DefaultPolicy() *endorsement.Policy
	// Agreements lists the roles whose agreements the contract keeps. It is
	// empty when transfers need no agreement.
	Agreements() []Role
	// Stored returns the attributes the contract keeps on the ledger.
	Stored(a Attributes) Attributes
	Transition(kind endorsement.Kind, p *Params) (*Invocation, error)
	Query(q Query, p *Params) (*Invocation, error)
	DecodeAsset(payload []byte) (*Asset, error)
	DecodeAssets(payload []byte) ([]*Asset, error)
	// DecodePrivate decodes the result of QueryPrivate.
	DecodePrivate(payload []byte) (*PrivateRecord, error)
	// DecodeAgreement decodes the result of QuerySalePrice or QueryBidPrice
	// evaluated by reader.
	DecodeAgreement(payload []byte, reader org.Org, role Role) (*TransferAgreement, error)
}

// actorEndorsed is implemented by dialects whose contract runs every
// transition on the acting organization's peers alone and checks ownership
// against the submitting identity.
type actorEndorsed interface {
	actorEndorsed()
}

// NewDialect returns the dialect with the given name.
func NewDialect(name string) (Dialect, error) {
	switch name {
	case DialectSBE:
		return SBE(), nil
	case DialectSecured:
		return Secured(), nil
	case DialectPrivate:
		return Private(), nil
	default:
		return nil, errors.Errorf("unknown contract dialect [%s]: dialect must be one of %s, %s, %s", name, DialectSBE, DialectSecured, DialectPrivate)
	}
}

func unsupported(dialect string, op interface{}) error {
	return errors.WithMessagef(ErrUnsupported, "%s: %v", dialect, op)
}

type sbeDialect struct{}

// SBE returns the dialect of the state-based endorsement contract. Every
// asset key carries a policy naming its owning organization; the contract
// itself performs no ownership checks.
func SBE() Dialect {
	return sbeDialect{}
}

func (sbeDialect) Name() string { return DialectSBE }

func (sbeDialect) DefaultPolicy() *endorsement.Policy { return endorsement.AllOf(org.All()...) }

func (sbeDialect) Agreements() []Role { return nil }

func (sbeDialect) Stored(a Attributes) Attributes {
	return Attributes{Owner: a.Owner, Value: a.Value}
}

func (d sbeDialect) Transition(kind endorsement.Kind, p *Params) (*Invocation, error) {
	switch kind {
	case endorsement.Create:
		owner := p.Attributes.Owner
		if owner == "" {
			return nil, errors.New("owner name is required")
		}
		return &Invocation{Function: "CreateAsset", Args: []string{p.AssetID, strconv.Itoa(p.Attributes.Value), owner}}, nil
	case endorsement.Update:
		return &Invocation{Function: "UpdateAsset", Args: []string{p.AssetID, strconv.Itoa(p.Attributes.Value)}}, nil
	case endorsement.Transfer:
		name := p.NewOwnerName
		if name == "" {
			name = p.NewOwner.String()
		}
		return &Invocation{Function: "TransferAsset", Args: []string{p.AssetID, name, p.NewOwner.MSPID()}}, nil
	case endorsement.Delete:
		return &Invocation{Function: "DeleteAsset", Args: []string{p.AssetID}}, nil
	default:
		return nil, unsupported(d.Name(), kind)
	}
}

func (d sbeDialect) Query(q Query, p *Params) (*Invocation, error) {
	switch q {
	case QueryAsset:
		return &Invocation{Function: "ReadAsset", Args: []string{p.AssetID}}, nil
	case QueryRange:
		return &Invocation{Function: "GetAssetByRange", Args: []string{p.RangeStart, p.RangeEnd}}, nil
	default:
		return nil, unsupported(d.Name(), q)
	}
}

type sbeAsset struct {
	ID       string `json:"ID"`
	Value    int    `json:"Value"`
	Owner    string `json:"Owner"`
	OwnerOrg string `json:"OwnerOrg"`
}

func (a *sbeAsset) asset() (*Asset, error) {
	owner, err := org.FromMSPID(a.OwnerOrg)
	if err != nil {
		return nil, err
	}
	return &Asset{
		ID:                  a.ID,
		OwnerOrg:            owner,
		Attributes:          Attributes{Owner: a.Owner, Value: a.Value},
		EndorsementOverride: []org.Org{owner},
	}, nil
}

func (sbeDialect) DecodeAsset(payload []byte) (*Asset, error) {
	var a sbeAsset
	if err := json.Unmarshal(payload, &a); err != nil {
		return nil, errors.Wrap(err, "failed to decode asset")
	}
	return validated(a.asset())
}

func (sbeDialect) DecodeAssets(payload []byte) ([]*Asset, error) {
	var list []*sbeAsset
	if err := json.Unmarshal(payload, &list); err != nil {
		return nil, errors.Wrap(err, "failed to decode assets")
	}
	assets := make([]*Asset, 0, len(list))
	for _, a := range list {
		asset, err := validated(a.asset())
		if err != nil {
			return nil, err
		}
		assets = append(assets, asset)
	}
	return assets, nil
}

type securedDialect struct{}

// Secured returns the dialect of the secured agreement contract. Private
// properties and prices travel as transient data and are kept in implicit
// collections; the contract checks ownership itself.
func Secured() Dialect {
	return securedDialect{}
}

func (securedDialect) Name() string { return DialectSecured }

func (securedDialect) DefaultPolicy() *endorsement.Policy { return endorsement.AnyOf(org.All()...) }

func (securedDialect) Agreements() []Role { return []Role{Seller, Buyer} }

func (securedDialect) Stored(a Attributes) Attributes {
	return Attributes{Description: a.Description}
}

func (d securedDialect) Transition(kind endorsement.Kind, p *Params) (*Invocation, error) {
	switch kind {
	case endorsement.Create:
		if p.Private == nil {
			return nil, errors.New("private properties are required")
		}
		return &Invocation{
			Function: "CreateAsset",
			Args:     []string{p.AssetID, p.Attributes.Description},
			Fields:   transient.Fields{Properties: p.Private.Properties()},
		}, nil
	case endorsement.ChangeDescription, endorsement.ListForSale:
		return &Invocation{Function: "ChangePublicDescription", Args: []string{p.AssetID, p.Attributes.Description}}, nil
	case endorsement.AgreeToSell, endorsement.AgreeToBuy:
		if p.Agreement == nil {
			return nil, errors.New("agreement is required")
		}
		fn := "AgreeToSell"
		if kind == endorsement.AgreeToBuy {
			fn = "AgreeToBuy"
		}
		return &Invocation{Function: fn, Args: []string{p.AssetID}, Fields: transient.Fields{Price: p.Agreement.price()}}, nil
	case endorsement.Verify:
		if p.Private == nil {
			return nil, errors.New("private properties are required")
		}
		return &Invocation{Function: "VerifyAssetProperties", Args: []string{p.AssetID}, Fields: transient.Fields{Properties: p.Private.Properties()}}, nil
	case endorsement.Transfer:
		if p.Private == nil || p.Agreement == nil {
			return nil, errors.New("private properties and agreed price are required")
		}
		return &Invocation{
			Function: "TransferAsset",
			Args:     []string{p.AssetID, p.NewOwner.MSPID()},
			Fields:   transient.Fields{Properties: p.Private.Properties(), Price: p.Agreement.price()},
		}, nil
	case endorsement.Delete:
		return &Invocation{Function: "DeleteAsset", Args: []string{p.AssetID}}, nil
	case endorsement.WithdrawAgreement:
		return &Invocation{Function: "DeleteTransferAgreement", Args: []string{p.AssetID}}, nil
	default:
		return nil, unsupported(d.Name(), kind)
	}
}

func (d securedDialect) Query(q Query, p *Params) (*Invocation, error) {
	switch q {
	case QueryAsset:
		return &Invocation{Function: "ReadAsset", Args: []string{p.AssetID}}, nil
	case QueryPrivate:
		return &Invocation{Function: "GetAssetPrivateProperties", Args: []string{p.AssetID}}, nil
	case QuerySalePrice:
		return &Invocation{Function: "GetAssetSalesPrice", Args: []string{p.AssetID}}, nil
	case QueryBidPrice:
		return &Invocation{Function: "GetAssetBidPrice", Args: []string{p.AssetID}}, nil
	case QueryRange:
		return &Invocation{Function: "GetAssetByRange", Args: []string{p.RangeStart, p.RangeEnd}}, nil
	default:
		return nil, unsupported(d.Name(), q)
	}
}

type securedAsset struct {
	ObjectType        string `json:"objectType"`
	ID                string `json:"assetID"`
	OwnerOrg          string `json:"ownerOrg"`
	PublicDescription string `json:"publicDescription"`
}

func (a *securedAsset) asset() (*Asset, error) {
	owner, err := org.FromMSPID(a.OwnerOrg)
	if err != nil {
		return nil, err
	}
	return &Asset{
		ID:                  a.ID,
		OwnerOrg:            owner,
		Attributes:          Attributes{Description: a.PublicDescription},
		EndorsementOverride: []org.Org{owner},
	}, nil
}

func (securedDialect) DecodeAsset(payload []byte) (*Asset, error) {
	var a securedAsset
	if err := json.Unmarshal(payload, &a); err != nil {
		return nil, errors.Wrap(err, "failed to decode asset")
	}
	return validated(a.asset())
}

func (securedDialect) DecodeAssets(payload []byte) ([]*Asset, error) {
	var list []*securedAsset
	if err := json.Unmarshal(payload, &list); err != nil {
		return nil, errors.Wrap(err, "failed to decode assets")
	}
	assets := make([]*Asset, 0, len(list))
	for _, a := range list {
		asset, err := validated(a.asset())
		if err != nil {
			return nil, err
		}
		assets = append(assets, asset)
	}
	return assets, nil
}

func (d sbeDialect) DecodePrivate([]byte) (*PrivateRecord, error) {
	return nil, unsupported(d.Name(), QueryPrivate)
}

func (d sbeDialect) DecodeAgreement([]byte, org.Org, Role) (*TransferAgreement, error) {
	return nil, unsupported(d.Name(), QuerySalePrice)
}

func (securedDialect) DecodePrivate(payload []byte) (*PrivateRecord, error) {
	fields, err := transient.Decode(transient.Payload{transient.KeyAssetProperties: payload})
	if err != nil {
		return nil, errors.WithMessage(err, "invalid private properties")
	}
	if fields.Properties == nil {
		return nil, errors.New("invalid private properties")
	}
	return privateRecordFrom(fields.Properties), nil
}

// DecodeAgreement decodes a price read from the reader's own collection.
func (securedDialect) DecodeAgreement(payload []byte, reader org.Org, role Role) (*TransferAgreement, error) {
	fields, err := transient.Decode(transient.Payload{transient.KeyAssetPrice: payload})
	if err != nil {
		return nil, errors.WithMessage(err, "invalid price")
	}
	return agreementFrom(fields.Price, reader, role), nil
}

func validated(a *Asset, err error) (*Asset, error) {
	if err != nil {
		return nil, errors.WithMessage(err, "invalid asset")
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}
	return a, nil
}

func (q Query) String() string {
	switch q {
	case QueryAsset:
		return "ReadAsset"
	case QueryPrivate:
		return "ReadPrivate"
	case QuerySalePrice:
		return "ReadSalePrice"
	case QueryBidPrice:
		return "ReadBidPrice"
	case QueryRange:
		return "List"
	default:
		return "Unknown"
	}
}
