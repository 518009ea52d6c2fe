/*
Copyright 2020 IBM All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package assettransfer

import (
	"crypto/sha256"
	"encoding/json"
	"strings"

	"github.com/pkg/errors"

	"github.com/hyperledger/fabric-asset-transfer-go/pkg/org"
	"github.com/hyperledger/fabric-asset-transfer-go/pkg/transient"
)

// Attributes are the public fields of an asset. A contract stores only the
// fields it knows; the others stay zero.
type Attributes struct {
	// Owner is the name of the holder.
	Owner string `json:"owner,omitempty" yaml:"owner,omitempty"`
	// Value is the appraised value.
	Value int `json:"value,omitempty" yaml:"value,omitempty"`
	// Description is the public description.
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// Asset is the ledger-visible view of an asset.
type Asset struct {
	ID         string     `json:"id"`
	OwnerOrg   org.Org    `json:"ownerOrg"`
	Attributes Attributes `json:"attributes"`
	// EndorsementOverride is the key-level endorsement set, if any.
	EndorsementOverride []org.Org `json:"endorsementOverride,omitempty"`
}

// Validate checks the decoded asset.
func (a *Asset) Validate() error {
	if a.ID == "" {
		return errors.New("asset ID is required")
	}
	if !a.OwnerOrg.Valid() {
		return errors.Errorf("asset %s has an unknown owner organization", a.ID)
	}
	for _, o := range a.EndorsementOverride {
		if !o.Valid() {
			return errors.Errorf("asset %s has an unknown endorsing organization", a.ID)
		}
	}
	return nil
}

// PrivateRecord holds the private properties of an asset, kept in the
// implicit collection of the owning organization.
type PrivateRecord struct {
	AssetID        string `json:"assetID"`
	Color          string `json:"color,omitempty"`
	Size           int    `json:"size,omitempty"`
	AppraisedValue int    `json:"appraisedValue,omitempty"`
	// Salt makes the record's hash unguessable.
	Salt string `json:"salt"`
}

// NewPrivateRecord returns a record with a fresh salt.
func NewPrivateRecord(assetID, color string, size, appraisedValue int) (*PrivateRecord, error) {
	salt, err := transient.NewSalt()
	if err != nil {
		return nil, err
	}
	return &PrivateRecord{AssetID: assetID, Color: color, Size: size, AppraisedValue: appraisedValue, Salt: salt}, nil
}

func privateRecordFrom(p *transient.AssetProperties) *PrivateRecord {
	return &PrivateRecord{AssetID: p.AssetID, Color: p.Color, Size: p.Size, AppraisedValue: p.AppraisedValue, Salt: p.Salt}
}

// Properties returns the transient field set carrying the record.
func (r *PrivateRecord) Properties() *transient.AssetProperties {
	return &transient.AssetProperties{
		ObjectType:     "asset_properties",
		AssetID:        r.AssetID,
		Color:          r.Color,
		Size:           r.Size,
		AppraisedValue: r.AppraisedValue,
		Salt:           r.Salt,
	}
}

// Hash returns the SHA-256 hash of the record's canonical encoding, the
// value the ledger keeps for counterparties to verify against.
func (r *PrivateRecord) Hash() ([]byte, error) {
	b, err := json.Marshal(r.Properties())
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode private record")
	}
	sum := sha256.Sum256(b)
	return sum[:], nil
}

// Role is the side of a transfer agreement.
type Role int

// Agreement roles
const (
	Seller Role = iota + 1
	Buyer
)

func (r Role) String() string {
	switch r {
	case Seller:
		return "Seller"
	case Buyer:
		return "Buyer"
	default:
		return "Unknown"
	}
}

// ParseRole parses "seller" or "buyer", ignoring case.
func ParseRole(s string) (Role, error) {
	switch {
	case strings.EqualFold(s, "seller"), strings.EqualFold(s, "sell"):
		return Seller, nil
	case strings.EqualFold(s, "buyer"), strings.EqualFold(s, "buy"):
		return Buyer, nil
	default:
		return 0, errors.Errorf("unknown agreement role [%s]: role must be seller or buyer", s)
	}
}

// TransferAgreement is one organization's agreement to sell or buy an asset
// at a price.
type TransferAgreement struct {
	AssetID      string  `json:"assetID"`
	Price        int     `json:"price"`
	TradeID      string  `json:"tradeID"`
	ProposingOrg org.Org `json:"proposingOrg"`
	Role         Role    `json:"role"`
}

func (a *TransferAgreement) price() *transient.AssetPrice {
	return &transient.AssetPrice{AssetID: a.AssetID, Price: a.Price, TradeID: a.TradeID}
}

func agreementFrom(p *transient.AssetPrice, proposer org.Org, role Role) *TransferAgreement {
	return &TransferAgreement{AssetID: p.AssetID, Price: p.Price, TradeID: p.TradeID, ProposingOrg: proposer, Role: role}
}
