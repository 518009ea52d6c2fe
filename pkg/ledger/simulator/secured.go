/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package simulator

import (
	"bytes"
	"crypto/sha256"
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/hyperledger/fabric-asset-transfer-go/pkg/org"
	"github.com/hyperledger/fabric-asset-transfer-go/pkg/transient"
)

const (
	typeAssetForSale = "S"
	typeAssetBid     = "B"
)

// securedAsset is the public record of the secured agreement contract.
type securedAsset struct {
	ObjectType        string `json:"objectType"`
	ID                string `json:"assetID"`
	OwnerOrg          string `json:"ownerOrg"`
	PublicDescription string `json:"publicDescription"`
}

// NewSecured returns the secured agreement contract. Private properties and
// prices live in the implicit collection of the organization that owns or
// bids for the asset; transfers compare their public hashes.
func NewSecured() Chaincode {
	c := &securedContract{}
	return &contract{
		name: "secured",
		functions: map[string]function{
			"CreateAsset":               c.createAsset,
			"ReadAsset":                 c.readAsset,
			"ChangePublicDescription":   c.changePublicDescription,
			"AgreeToSell":               c.agreeToSell,
			"AgreeToBuy":                c.agreeToBuy,
			"VerifyAssetProperties":     c.verifyAssetProperties,
			"GetAssetPrivateProperties": c.getAssetPrivateProperties,
			"GetAssetSalesPrice":        c.getAssetSalesPrice,
			"GetAssetBidPrice":          c.getAssetBidPrice,
			"TransferAsset":             c.transferAsset,
			"DeleteAsset":               c.deleteAsset,
			"DeleteTransferAgreement":   c.deleteTransferAgreement,
			"GetAssetByRange":           c.getAssetByRange,
		},
	}
}

type securedContract struct{}

// createAsset(assetID, publicDescription) with transient asset_properties.
func (c *securedContract) createAsset(stub Stub, args []string) ([]byte, error) {
	if err := expectArgs(args, 2); err != nil {
		return nil, err
	}
	id := args[0]
	props, err := transientField(stub, transient.KeyAssetProperties)
	if err != nil {
		return nil, err
	}
	existing, err := stub.GetState(id)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, errors.Errorf("the asset %s already exists", id)
	}

	client := stub.ClientOrg()
	asset := securedAsset{ObjectType: "asset", ID: id, OwnerOrg: client.MSPID(), PublicDescription: args[1]}
	if err := c.put(stub, &asset); err != nil {
		return nil, err
	}
	if err := stub.SetStateValidationParameter(id, client); err != nil {
		return nil, err
	}
	if err := verifyClientOrgMatchesPeerOrg(stub); err != nil {
		return nil, err
	}
	return nil, stub.PutPrivateData(client.ImplicitCollection(), id, props)
}

func (c *securedContract) readAsset(stub Stub, args []string) ([]byte, error) {
	if err := expectArgs(args, 1); err != nil {
		return nil, err
	}
	return c.get(stub, args[0])
}

// changePublicDescription(assetID, newDescription) is only allowed to the owner.
func (c *securedContract) changePublicDescription(stub Stub, args []string) ([]byte, error) {
	if err := expectArgs(args, 2); err != nil {
		return nil, err
	}
	asset, err := c.read(stub, args[0])
	if err != nil {
		return nil, err
	}
	if client := stub.ClientOrg().MSPID(); client != asset.OwnerOrg {
		return nil, errors.Errorf("a client from %s cannot update the description of a asset owned by %s", client, asset.OwnerOrg)
	}
	asset.PublicDescription = args[1]
	return nil, c.put(stub, asset)
}

func (c *securedContract) agreeToSell(stub Stub, args []string) ([]byte, error) {
	if err := expectArgs(args, 1); err != nil {
		return nil, err
	}
	asset, err := c.read(stub, args[0])
	if err != nil {
		return nil, err
	}
	if client := stub.ClientOrg().MSPID(); client != asset.OwnerOrg {
		return nil, errors.Errorf("a client from %s cannot sell an asset owned by %s", client, asset.OwnerOrg)
	}
	return nil, c.agreeToPrice(stub, asset.ID, typeAssetForSale)
}

func (c *securedContract) agreeToBuy(stub Stub, args []string) ([]byte, error) {
	if err := expectArgs(args, 1); err != nil {
		return nil, err
	}
	asset, err := c.read(stub, args[0])
	if err != nil {
		return nil, err
	}
	if client := stub.ClientOrg().MSPID(); client == asset.OwnerOrg {
		return nil, errors.Errorf("a client from %s cannot buy an asset it already owns", client)
	}
	return nil, c.agreeToPrice(stub, asset.ID, typeAssetBid)
}

func (c *securedContract) agreeToPrice(stub Stub, id, priceType string) error {
	price, err := transientField(stub, transient.KeyAssetPrice)
	if err != nil {
		return err
	}
	if err := verifyClientOrgMatchesPeerOrg(stub); err != nil {
		return err
	}
	key, err := stub.CreateCompositeKey(priceType, []string{id})
	if err != nil {
		return errors.Wrap(err, "failed to create composite key")
	}
	return stub.PutPrivateData(stub.ClientOrg().ImplicitCollection(), key, price)
}

// verifyAssetProperties compares the hash of the passed properties with the
// hash held for the owner's collection. Returns a JSON boolean.
func (c *securedContract) verifyAssetProperties(stub Stub, args []string) ([]byte, error) {
	if err := expectArgs(args, 1); err != nil {
		return nil, err
	}
	props, err := transientField(stub, transient.KeyAssetProperties)
	if err != nil {
		return nil, err
	}
	asset, err := c.read(stub, args[0])
	if err != nil {
		return nil, err
	}
	owner, err := parseOrg(asset.OwnerOrg)
	if err != nil {
		return nil, err
	}
	onChain, err := stub.GetPrivateDataHash(owner.ImplicitCollection(), asset.ID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read asset private properties hash")
	}
	if onChain == nil {
		return nil, errors.Errorf("asset private properties hash does not exist: %s", asset.ID)
	}
	sum := sha256.Sum256(props)
	return marshal(bytes.Equal(sum[:], onChain))
}

func (c *securedContract) getAssetPrivateProperties(stub Stub, args []string) ([]byte, error) {
	if err := expectArgs(args, 1); err != nil {
		return nil, err
	}
	props, err := stub.GetPrivateData(stub.ClientOrg().ImplicitCollection(), args[0])
	if err != nil {
		return nil, errors.Wrap(err, "failed to read asset private properties")
	}
	if props == nil {
		return nil, errors.Errorf("asset private details does not exist in client org's collection: %s", args[0])
	}
	return props, nil
}

func (c *securedContract) getAssetSalesPrice(stub Stub, args []string) ([]byte, error) {
	if err := expectArgs(args, 1); err != nil {
		return nil, err
	}
	return c.getAssetPrice(stub, args[0], typeAssetForSale)
}

func (c *securedContract) getAssetBidPrice(stub Stub, args []string) ([]byte, error) {
	if err := expectArgs(args, 1); err != nil {
		return nil, err
	}
	return c.getAssetPrice(stub, args[0], typeAssetBid)
}

func (c *securedContract) getAssetPrice(stub Stub, id, priceType string) ([]byte, error) {
	key, err := stub.CreateCompositeKey(priceType, []string{id})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create composite key")
	}
	price, err := stub.GetPrivateData(stub.ClientOrg().ImplicitCollection(), key)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read asset price")
	}
	if price == nil {
		return nil, errors.Errorf("asset price does not exist: %s", id)
	}
	return price, nil
}

// transferAsset(assetID, buyerOrg) with transient asset_properties and
// asset_price. Both parties must have agreed to the same price and trade ID.
func (c *securedContract) transferAsset(stub Stub, args []string) ([]byte, error) {
	if err := expectArgs(args, 2); err != nil {
		return nil, err
	}
	props, err := transientField(stub, transient.KeyAssetProperties)
	if err != nil {
		return nil, err
	}
	price, err := transientField(stub, transient.KeyAssetPrice)
	if err != nil {
		return nil, err
	}
	asset, err := c.read(stub, args[0])
	if err != nil {
		return nil, err
	}
	buyer, err := parseOrg(args[1])
	if err != nil {
		return nil, err
	}
	if err := c.verifyTransferConditions(stub, asset, buyer, props, price); err != nil {
		return nil, errors.WithMessage(err, "failed transfer verification")
	}

	seller, err := parseOrg(asset.OwnerOrg)
	if err != nil {
		return nil, err
	}
	asset.OwnerOrg = buyer.MSPID()
	if err := c.put(stub, asset); err != nil {
		return nil, err
	}
	if err := stub.SetStateValidationParameter(asset.ID, buyer); err != nil {
		return nil, err
	}
	if err := stub.PutPrivateData(buyer.ImplicitCollection(), asset.ID, props); err != nil {
		return nil, err
	}
	if err := stub.DelPrivateData(seller.ImplicitCollection(), asset.ID); err != nil {
		return nil, err
	}
	saleKey, _ := stub.CreateCompositeKey(typeAssetForSale, []string{asset.ID})
	if err := stub.DelPrivateData(seller.ImplicitCollection(), saleKey); err != nil {
		return nil, err
	}
	bidKey, _ := stub.CreateCompositeKey(typeAssetBid, []string{asset.ID})
	return nil, stub.DelPrivateData(buyer.ImplicitCollection(), bidKey)
}

func (c *securedContract) verifyTransferConditions(stub Stub, asset *securedAsset, buyer org.Org, props, price []byte) error {
	if client := stub.ClientOrg().MSPID(); client != asset.OwnerOrg {
		return errors.Errorf("a client from %s cannot transfer a asset owned by %s", client, asset.OwnerOrg)
	}
	if buyer.MSPID() == asset.OwnerOrg {
		return errors.Errorf("asset %s is already owned by %s", asset.ID, asset.OwnerOrg)
	}
	seller, err := parseOrg(asset.OwnerOrg)
	if err != nil {
		return err
	}

	propsHash := sha256.Sum256(props)
	onChain, err := stub.GetPrivateDataHash(seller.ImplicitCollection(), asset.ID)
	if err != nil {
		return errors.Wrap(err, "failed to read asset private properties hash")
	}
	if onChain == nil {
		return errors.Errorf("asset private properties hash does not exist: %s", asset.ID)
	}
	if !bytes.Equal(propsHash[:], onChain) {
		return errors.Errorf("hash %x for passed immutable properties %s does not match on-chain hash %x", propsHash, props, onChain)
	}

	priceHash := sha256.Sum256(price)
	saleKey, err := stub.CreateCompositeKey(typeAssetForSale, []string{asset.ID})
	if err != nil {
		return errors.Wrap(err, "failed to create composite key")
	}
	sellerHash, err := stub.GetPrivateDataHash(seller.ImplicitCollection(), saleKey)
	if err != nil {
		return errors.Wrap(err, "failed to read seller price hash")
	}
	if sellerHash == nil {
		return errors.Errorf("seller price for %s does not exist", asset.ID)
	}
	if !bytes.Equal(priceHash[:], sellerHash) {
		return errors.Errorf("hash %x for passed price JSON %s does not match on-chain hash %x, seller hasn't agreed to the passed trade id and price", priceHash, price, sellerHash)
	}

	bidKey, err := stub.CreateCompositeKey(typeAssetBid, []string{asset.ID})
	if err != nil {
		return errors.Wrap(err, "failed to create composite key")
	}
	buyerHash, err := stub.GetPrivateDataHash(buyer.ImplicitCollection(), bidKey)
	if err != nil {
		return errors.Wrap(err, "failed to read buyer price hash")
	}
	if buyerHash == nil {
		return errors.Errorf("buyer price for %s does not exist", asset.ID)
	}
	if !bytes.Equal(priceHash[:], buyerHash) {
		return errors.Errorf("hash %x for passed price JSON %s does not match on-chain hash %x, buyer hasn't agreed to the passed trade id and price", priceHash, price, buyerHash)
	}
	return nil
}

// deleteAsset removes the public record and the owner's private properties.
func (c *securedContract) deleteAsset(stub Stub, args []string) ([]byte, error) {
	if err := expectArgs(args, 1); err != nil {
		return nil, err
	}
	asset, err := c.read(stub, args[0])
	if err != nil {
		return nil, err
	}
	if client := stub.ClientOrg().MSPID(); client != asset.OwnerOrg {
		return nil, errors.Errorf("a client from %s cannot delete an asset owned by %s", client, asset.OwnerOrg)
	}
	if err := verifyClientOrgMatchesPeerOrg(stub); err != nil {
		return nil, err
	}
	if err := stub.DelState(asset.ID); err != nil {
		return nil, err
	}
	collection := stub.ClientOrg().ImplicitCollection()
	if err := stub.DelPrivateData(collection, asset.ID); err != nil {
		return nil, err
	}
	saleKey, _ := stub.CreateCompositeKey(typeAssetForSale, []string{asset.ID})
	return nil, stub.DelPrivateData(collection, saleKey)
}

// deleteTransferAgreement withdraws the client's sale and bid prices.
func (c *securedContract) deleteTransferAgreement(stub Stub, args []string) ([]byte, error) {
	if err := expectArgs(args, 1); err != nil {
		return nil, err
	}
	if err := verifyClientOrgMatchesPeerOrg(stub); err != nil {
		return nil, err
	}
	collection := stub.ClientOrg().ImplicitCollection()
	found := false
	for _, priceType := range []string{typeAssetForSale, typeAssetBid} {
		key, err := stub.CreateCompositeKey(priceType, []string{args[0]})
		if err != nil {
			return nil, errors.Wrap(err, "failed to create composite key")
		}
		existing, err := stub.GetPrivateData(collection, key)
		if err != nil {
			return nil, err
		}
		if existing == nil {
			continue
		}
		found = true
		if err := stub.DelPrivateData(collection, key); err != nil {
			return nil, err
		}
	}
	if !found {
		return nil, errors.Errorf("no transfer agreement for asset %s in collection %s", args[0], collection)
	}
	return nil, nil
}

func (c *securedContract) getAssetByRange(stub Stub, args []string) ([]byte, error) {
	if err := expectArgs(args, 2); err != nil {
		return nil, err
	}
	kvs, err := stub.GetStateByRange(args[0], args[1])
	if err != nil {
		return nil, err
	}
	assets := []*securedAsset{}
	for _, kv := range kvs {
		var a securedAsset
		if err := json.Unmarshal(kv.Value, &a); err != nil {
			return nil, errors.Wrapf(err, "failed to unmarshal asset %s", kv.Key)
		}
		assets = append(assets, &a)
	}
	return marshal(assets)
}

func (c *securedContract) get(stub Stub, id string) ([]byte, error) {
	b, err := stub.GetState(id)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read asset %s", id)
	}
	if b == nil {
		return nil, errors.Errorf("the asset %s does not exist", id)
	}
	return b, nil
}

func (c *securedContract) read(stub Stub, id string) (*securedAsset, error) {
	b, err := c.get(stub, id)
	if err != nil {
		return nil, err
	}
	var a securedAsset
	if err := json.Unmarshal(b, &a); err != nil {
		return nil, errors.Wrapf(err, "failed to unmarshal asset %s", id)
	}
	return &a, nil
}

func (c *securedContract) put(stub Stub, a *securedAsset) error {
	b, err := json.Marshal(a)
	if err != nil {
		return errors.Wrapf(err, "failed to marshal asset %s", a.ID)
	}
	return stub.PutState(a.ID, b)
}

// transientField returns the raw bytes of a transient key after checking
// that they decode as the expected field set.
func transientField(stub Stub, key string) ([]byte, error) {
	v, err := transientValue(stub, key)
	if err != nil {
		return nil, err
	}
	if _, err := transient.Decode(transient.Payload{key: v}); err != nil {
		return nil, errors.WithMessagef(err, "invalid %s", key)
	}
	return v, nil
}
