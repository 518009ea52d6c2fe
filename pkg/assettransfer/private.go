/*
Copyright 2020 IBM All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package assettransfer

import (
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/hyperledger/fabric-asset-transfer-go/pkg/endorsement"
	"github.com/hyperledger/fabric-asset-transfer-go/pkg/org"
	"github.com/hyperledger/fabric-asset-transfer-go/pkg/transient"
)

type privateDialect struct{}

// Private returns the dialect of the private data contract. Assets live in a
// collection shared by every organization and are owned by the client
// identity that created them. Appraised values stay in per-organization
// collections; a buyer agrees by storing the same value in its own, and the
// contract compares the hashes on transfer.
func Private() Dialect {
	return privateDialect{}
}

func (privateDialect) actorEndorsed() {}

func (privateDialect) Name() string { return DialectPrivate }

func (privateDialect) DefaultPolicy() *endorsement.Policy { return endorsement.AnyOf(org.All()...) }

func (privateDialect) Agreements() []Role { return []Role{Buyer} }

func (privateDialect) Stored(Attributes) Attributes { return Attributes{} }

func (d privateDialect) Transition(kind endorsement.Kind, p *Params) (*Invocation, error) {
	switch kind {
	case endorsement.Create:
		if p.Private == nil {
			return nil, errors.New("private properties are required")
		}
		return &Invocation{Function: "CreateAsset", Fields: transient.Fields{Details: &transient.AssetDetails{
			ObjectType:     "asset",
			AssetID:        p.AssetID,
			Color:          p.Private.Color,
			Size:           p.Private.Size,
			AppraisedValue: p.Private.AppraisedValue,
		}}}, nil
	case endorsement.AgreeToBuy:
		if p.Agreement == nil {
			return nil, errors.New("agreement is required")
		}
		return &Invocation{Function: "AgreeToTransfer", Fields: transient.Fields{Value: &transient.AssetValue{
			AssetID:        p.AssetID,
			AppraisedValue: p.Agreement.Price,
		}}}, nil
	case endorsement.Transfer:
		if !p.NewOwner.Valid() {
			return nil, errors.New("new owner organization is required")
		}
		return &Invocation{Function: "TransferAsset", Fields: transient.Fields{Owner: &transient.AssetOwner{
			AssetID:  p.AssetID,
			BuyerMSP: p.NewOwner.MSPID(),
		}}}, nil
	case endorsement.Delete:
		return &Invocation{Function: "DeleteAsset", Fields: transient.Fields{AssetDelete: &transient.AssetRef{AssetID: p.AssetID}}}, nil
	case endorsement.WithdrawAgreement:
		return &Invocation{Function: "DeleteTranferAgreement", Fields: transient.Fields{AgreementDelete: &transient.AssetRef{AssetID: p.AssetID}}}, nil
	default:
		return nil, unsupported(d.Name(), kind)
	}
}

func (d privateDialect) Query(q Query, p *Params) (*Invocation, error) {
	switch q {
	case QueryAsset:
		return &Invocation{Function: "ReadAsset", Args: []string{p.AssetID}}, nil
	case QueryPrivate:
		return &Invocation{Function: "ReadAssetPrivateDetails", Args: []string{p.Actor.PrivateCollection(), p.AssetID}}, nil
	case QueryBidPrice:
		return &Invocation{Function: "ReadTransferAgreement", Args: []string{p.AssetID}}, nil
	case QueryRange:
		return &Invocation{Function: "GetAssetByRange", Args: []string{p.RangeStart, p.RangeEnd}}, nil
	default:
		return nil, unsupported(d.Name(), q)
	}
}

type sharedAsset struct {
	ObjectType string `json:"objectType"`
	ID         string `json:"assetID"`
	Color      string `json:"color"`
	Size       int    `json:"size"`
	Owner      string `json:"owner"`
}

func (a *sharedAsset) asset() (*Asset, error) {
	owner, err := org.FromClientID(a.Owner)
	if err != nil {
		return nil, err
	}
	return &Asset{ID: a.ID, OwnerOrg: owner}, nil
}

func (privateDialect) DecodeAsset(payload []byte) (*Asset, error) {
	var a sharedAsset
	if err := json.Unmarshal(payload, &a); err != nil {
		return nil, errors.Wrap(err, "failed to decode asset")
	}
	return validated(a.asset())
}

func (privateDialect) DecodeAssets(payload []byte) ([]*Asset, error) {
	var list []*sharedAsset
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

// DecodePrivate returns the appraised value the reader's collection holds.
// Color and size are public in this contract and are left out.
func (privateDialect) DecodePrivate(payload []byte) (*PrivateRecord, error) {
	fields, err := transient.Decode(transient.Payload{transient.KeyAssetValue: payload})
	if err != nil {
		return nil, errors.WithMessage(err, "invalid appraised value")
	}
	if fields.Value == nil {
		return nil, errors.New("invalid appraised value")
	}
	return &PrivateRecord{AssetID: fields.Value.AssetID, AppraisedValue: fields.Value.AppraisedValue}, nil
}

// DecodeAgreement returns the buyer's agreement as any member sees it. The
// agreed value is private to the buyer, so the price is left zero.
func (d privateDialect) DecodeAgreement(payload []byte, _ org.Org, role Role) (*TransferAgreement, error) {
	if role != Buyer {
		return nil, unsupported(d.Name(), QuerySalePrice)
	}
	var a struct {
		ID      string `json:"assetID"`
		BuyerID string `json:"buyerID"`
	}
	if err := json.Unmarshal(payload, &a); err != nil {
		return nil, errors.Wrap(err, "failed to decode transfer agreement")
	}
	buyer, err := org.FromClientID(a.BuyerID)
	if err != nil {
		return nil, err
	}
	return &TransferAgreement{AssetID: a.ID, ProposingOrg: buyer, Role: Buyer}, nil
}
