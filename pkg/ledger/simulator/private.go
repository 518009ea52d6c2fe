/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package simulator

import (
	"bytes"
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/hyperledger/fabric-asset-transfer-go/pkg/org"
	"github.com/hyperledger/fabric-asset-transfer-go/pkg/transient"
)

const (
	assetCollection             = "assetCollection"
	transferAgreementObjectType = "transferAgreement"
)

// privateAsset is the record every member reads from the shared collection.
type privateAsset struct {
	ObjectType string `json:"objectType"`
	ID         string `json:"assetID"`
	Color      string `json:"color"`
	Size       int    `json:"size"`
	Owner      string `json:"owner"`
}

// privateDetails is what an organization's own collection holds for an
// asset: the owner's appraised value, or the value a buyer agreed to.
type privateDetails struct {
	ID             string `json:"assetID"`
	AppraisedValue int    `json:"appraisedValue"`
}

type transferAgreement struct {
	ID      string `json:"assetID"`
	BuyerID string `json:"buyerID"`
}

// NewPrivate returns the private data contract. Assets live in a collection
// shared by every organization and are owned by a client identity. Appraised
// values stay in per-organization collections; a transfer compares the hashes
// of the owner's and the buyer's values.
func NewPrivate() Chaincode {
	c := &privateContract{}
	return &contract{
		name: "private",
		functions: map[string]function{
			"CreateAsset":             c.createAsset,
			"AgreeToTransfer":         c.agreeToTransfer,
			"TransferAsset":           c.transferAsset,
			"DeleteAsset":             c.deleteAsset,
			"DeleteTranferAgreement":  c.deleteTransferAgreement,
			"ReadAsset":               c.readAsset,
			"ReadAssetPrivateDetails": c.readAssetPrivateDetails,
			"ReadTransferAgreement":   c.readTransferAgreement,
			"GetAssetByRange":         c.getAssetByRange,
		},
	}
}

type privateContract struct{}

// createAsset with transient asset_properties.
func (c *privateContract) createAsset(stub Stub, args []string) ([]byte, error) {
	if err := expectArgs(args, 0); err != nil {
		return nil, err
	}
	fields, err := transientFields(stub, transient.KeyAssetProperties)
	if err != nil {
		return nil, err
	}
	details := fields.Details
	if details == nil {
		return nil, errors.New("asset_properties must carry objectType, assetID, color, size and appraisedValue")
	}
	existing, err := stub.GetPrivateData(assetCollection, details.AssetID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get asset")
	}
	if existing != nil {
		return nil, errors.Errorf("this asset already exists: %s", details.AssetID)
	}
	if err := verifyClientOrgMatchesPeerOrg(stub); err != nil {
		return nil, errors.WithMessage(err, "CreateAsset cannot be performed")
	}

	asset := &privateAsset{
		ObjectType: details.ObjectType,
		ID:         details.AssetID,
		Color:      details.Color,
		Size:       details.Size,
		Owner:      stub.ClientID(),
	}
	if err := c.put(stub, asset); err != nil {
		return nil, err
	}
	return nil, c.putDetails(stub, stub.ClientOrg(), &privateDetails{ID: details.AssetID, AppraisedValue: details.AppraisedValue})
}

// agreeToTransfer with transient asset_value records the buyer's value in
// its own collection and the buyer's identity in the shared one.
func (c *privateContract) agreeToTransfer(stub Stub, args []string) ([]byte, error) {
	if err := expectArgs(args, 0); err != nil {
		return nil, err
	}
	fields, err := transientFields(stub, transient.KeyAssetValue)
	if err != nil {
		return nil, err
	}
	value := fields.Value
	asset, err := c.read(stub, value.AssetID)
	if err != nil {
		return nil, err
	}
	if asset == nil {
		return nil, errors.Errorf("%s does not exist", value.AssetID)
	}
	if asset.Owner == stub.ClientID() {
		return nil, errors.Errorf("a client cannot agree to buy asset %s it already owns", value.AssetID)
	}
	if err := verifyClientOrgMatchesPeerOrg(stub); err != nil {
		return nil, errors.WithMessage(err, "AgreeToTransfer cannot be performed")
	}
	if err := c.putDetails(stub, stub.ClientOrg(), &privateDetails{ID: value.AssetID, AppraisedValue: value.AppraisedValue}); err != nil {
		return nil, err
	}
	key, err := c.agreementKey(stub, value.AssetID)
	if err != nil {
		return nil, err
	}
	return nil, stub.PutPrivateData(assetCollection, key, []byte(stub.ClientID()))
}

// transferAsset with transient asset_owner hands the asset to the buyer
// that agreed to the owner's appraised value.
func (c *privateContract) transferAsset(stub Stub, args []string) ([]byte, error) {
	if err := expectArgs(args, 0); err != nil {
		return nil, err
	}
	fields, err := transientFields(stub, transient.KeyAssetOwner)
	if err != nil {
		return nil, err
	}
	owner := fields.Owner
	buyer, err := parseOrg(owner.BuyerMSP)
	if err != nil {
		return nil, err
	}
	asset, err := c.read(stub, owner.AssetID)
	if err != nil {
		return nil, err
	}
	if asset == nil {
		return nil, errors.Errorf("%s does not exist", owner.AssetID)
	}
	if err := verifyClientOrgMatchesPeerOrg(stub); err != nil {
		return nil, errors.WithMessage(err, "TransferAsset cannot be performed")
	}
	if err := c.verifyAgreement(stub, asset, buyer); err != nil {
		return nil, errors.WithMessage(err, "failed transfer verification")
	}
	agreement, err := c.agreement(stub, asset.ID)
	if err != nil {
		return nil, err
	}
	if agreement == nil {
		return nil, errors.Errorf("BuyerID not found in TransferAgreement for %s", asset.ID)
	}

	asset.Owner = agreement.BuyerID
	if err := c.put(stub, asset); err != nil {
		return nil, err
	}
	if err := stub.DelPrivateData(stub.ClientOrg().PrivateCollection(), asset.ID); err != nil {
		return nil, err
	}
	key, err := c.agreementKey(stub, asset.ID)
	if err != nil {
		return nil, err
	}
	return nil, stub.DelPrivateData(assetCollection, key)
}

func (c *privateContract) verifyAgreement(stub Stub, asset *privateAsset, buyer org.Org) error {
	if asset.Owner != stub.ClientID() {
		return errors.New("submitting client identity does not own the asset")
	}
	ownerCollection := stub.ClientOrg().PrivateCollection()
	ownerHash, err := stub.GetPrivateDataHash(ownerCollection, asset.ID)
	if err != nil {
		return errors.Wrapf(err, "failed to read asset private properties hash from seller's collection")
	}
	if ownerHash == nil {
		return errors.Errorf("hash of appraised value for %s does not exist in collection %s", asset.ID, ownerCollection)
	}
	buyerCollection := buyer.PrivateCollection()
	buyerHash, err := stub.GetPrivateDataHash(buyerCollection, asset.ID)
	if err != nil {
		return errors.Wrapf(err, "failed to read asset private properties hash from buyer's collection")
	}
	if buyerHash == nil {
		return errors.Errorf("hash of appraised value for %s does not exist in collection %s, buyer has not agreed to transfer", asset.ID, buyerCollection)
	}
	if !bytes.Equal(ownerHash, buyerHash) {
		return errors.Errorf("hash for appraised value for owner %x does not match value for buyer %x", ownerHash, buyerHash)
	}
	return nil
}

// deleteAsset with transient asset_delete removes the asset and the owner's
// appraised value.
func (c *privateContract) deleteAsset(stub Stub, args []string) ([]byte, error) {
	if err := expectArgs(args, 0); err != nil {
		return nil, err
	}
	fields, err := transientFields(stub, transient.KeyAssetDelete)
	if err != nil {
		return nil, err
	}
	id := fields.AssetDelete.AssetID
	if err := verifyClientOrgMatchesPeerOrg(stub); err != nil {
		return nil, errors.WithMessage(err, "DeleteAsset cannot be performed")
	}
	asset, err := c.read(stub, id)
	if err != nil {
		return nil, err
	}
	if asset == nil {
		return nil, errors.Errorf("asset not found: %s", id)
	}
	ownerCollection := stub.ClientOrg().PrivateCollection()
	details, err := stub.GetPrivateData(ownerCollection, id)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read asset from owner's collection")
	}
	if details == nil || asset.Owner != stub.ClientID() {
		return nil, errors.Errorf("asset not found in owner's private collection %s: %s", ownerCollection, id)
	}
	if err := stub.DelPrivateData(assetCollection, id); err != nil {
		return nil, err
	}
	return nil, stub.DelPrivateData(ownerCollection, id)
}

// deleteTransferAgreement with transient agreement_delete withdraws the
// client's agreement to buy.
func (c *privateContract) deleteTransferAgreement(stub Stub, args []string) ([]byte, error) {
	if err := expectArgs(args, 0); err != nil {
		return nil, err
	}
	fields, err := transientFields(stub, transient.KeyAgreementDelete)
	if err != nil {
		return nil, err
	}
	id := fields.AgreementDelete.AssetID
	if err := verifyClientOrgMatchesPeerOrg(stub); err != nil {
		return nil, errors.WithMessage(err, "DeleteTranferAgreement cannot be performed")
	}
	agreement, err := c.agreement(stub, id)
	if err != nil {
		return nil, err
	}
	if agreement == nil || agreement.BuyerID != stub.ClientID() {
		return nil, errors.Errorf("no transfer agreement for asset %s by the client", id)
	}
	if err := stub.DelPrivateData(stub.ClientOrg().PrivateCollection(), id); err != nil {
		return nil, err
	}
	key, err := c.agreementKey(stub, id)
	if err != nil {
		return nil, err
	}
	return nil, stub.DelPrivateData(assetCollection, key)
}

// readAsset returns an empty result for a missing asset.
func (c *privateContract) readAsset(stub Stub, args []string) ([]byte, error) {
	if err := expectArgs(args, 1); err != nil {
		return nil, err
	}
	b, err := stub.GetPrivateData(assetCollection, args[0])
	if err != nil {
		return nil, errors.Wrap(err, "failed to read asset")
	}
	return b, nil
}

// readAssetPrivateDetails(collection, assetID) returns an empty result when
// the collection holds nothing for the asset.
func (c *privateContract) readAssetPrivateDetails(stub Stub, args []string) ([]byte, error) {
	if err := expectArgs(args, 2); err != nil {
		return nil, err
	}
	b, err := stub.GetPrivateData(args[0], args[1])
	if err != nil {
		return nil, errors.Wrap(err, "failed to read asset details")
	}
	return b, nil
}

func (c *privateContract) readTransferAgreement(stub Stub, args []string) ([]byte, error) {
	if err := expectArgs(args, 1); err != nil {
		return nil, err
	}
	agreement, err := c.agreement(stub, args[0])
	if err != nil {
		return nil, err
	}
	if agreement == nil {
		return nil, errors.Errorf("TransferAgreement for %s does not exist", args[0])
	}
	return marshal(agreement)
}

func (c *privateContract) getAssetByRange(stub Stub, args []string) ([]byte, error) {
	if err := expectArgs(args, 2); err != nil {
		return nil, err
	}
	kvs, err := stub.GetPrivateDataByRange(assetCollection, args[0], args[1])
	if err != nil {
		return nil, err
	}
	assets := []*privateAsset{}
	for _, kv := range kvs {
		var a privateAsset
		if err := json.Unmarshal(kv.Value, &a); err != nil {
			return nil, errors.Wrapf(err, "failed to unmarshal asset %s", kv.Key)
		}
		assets = append(assets, &a)
	}
	return marshal(assets)
}

func (c *privateContract) read(stub Stub, id string) (*privateAsset, error) {
	b, err := stub.GetPrivateData(assetCollection, id)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read asset")
	}
	if b == nil {
		return nil, nil
	}
	var a privateAsset
	if err := json.Unmarshal(b, &a); err != nil {
		return nil, errors.Wrapf(err, "failed to unmarshal asset %s", id)
	}
	return &a, nil
}

func (c *privateContract) put(stub Stub, a *privateAsset) error {
	b, err := json.Marshal(a)
	if err != nil {
		return errors.Wrapf(err, "failed to marshal asset %s", a.ID)
	}
	return stub.PutPrivateData(assetCollection, a.ID, b)
}

func (c *privateContract) putDetails(stub Stub, o org.Org, d *privateDetails) error {
	b, err := json.Marshal(d)
	if err != nil {
		return errors.Wrapf(err, "failed to marshal details of asset %s", d.ID)
	}
	return stub.PutPrivateData(o.PrivateCollection(), d.ID, b)
}

func (c *privateContract) agreementKey(stub Stub, id string) (string, error) {
	key, err := stub.CreateCompositeKey(transferAgreementObjectType, []string{id})
	if err != nil {
		return "", errors.Wrap(err, "failed to create composite key")
	}
	return key, nil
}

func (c *privateContract) agreement(stub Stub, id string) (*transferAgreement, error) {
	key, err := c.agreementKey(stub, id)
	if err != nil {
		return nil, err
	}
	buyer, err := stub.GetPrivateData(assetCollection, key)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read transfer agreement")
	}
	if buyer == nil {
		return nil, nil
	}
	return &transferAgreement{ID: id, BuyerID: string(buyer)}, nil
}

// transientFields decodes the field set under key.
func transientFields(stub Stub, key string) (transient.Fields, error) {
	v, err := transientValue(stub, key)
	if err != nil {
		return transient.Fields{}, err
	}
	f, err := transient.Decode(transient.Payload{key: v})
	if err != nil {
		return transient.Fields{}, errors.WithMessagef(err, "invalid %s", key)
	}
	return f, nil
}
