/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package simulator

import (
	"encoding/json"
	"strconv"

	"github.com/pkg/errors"
)

// sbeAsset is the public record of the state-based endorsement contract.
type sbeAsset struct {
	ID       string `json:"ID"`
	Value    int    `json:"Value"`
	Owner    string `json:"Owner"`
	OwnerOrg string `json:"OwnerOrg"`
}

// NewSBE returns the state-based endorsement contract: every asset key
// carries an endorsement policy naming its owning organization.
func NewSBE() Chaincode {
	c := &sbeContract{}
	return &contract{
		name: "sbe",
		functions: map[string]function{
			"CreateAsset":     c.createAsset,
			"ReadAsset":       c.readAsset,
			"UpdateAsset":     c.updateAsset,
			"TransferAsset":   c.transferAsset,
			"DeleteAsset":     c.deleteAsset,
			"GetAssetByRange": c.getAssetByRange,
		},
	}
}

type sbeContract struct{}

// createAsset(assetID, value, owner) creates an asset owned by the client's org.
func (c *sbeContract) createAsset(stub Stub, args []string) ([]byte, error) {
	if err := expectArgs(args, 3); err != nil {
		return nil, err
	}
	id := args[0]
	value, err := strconv.Atoi(args[1])
	if err != nil {
		return nil, errors.Errorf("invalid value %s for asset %s", args[1], id)
	}
	existing, err := stub.GetState(id)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, errors.Errorf("the asset %s already exists", id)
	}

	asset := sbeAsset{ID: id, Value: value, Owner: args[2], OwnerOrg: stub.ClientOrg().MSPID()}
	if err := c.put(stub, &asset); err != nil {
		return nil, err
	}
	return nil, stub.SetStateValidationParameter(id, stub.ClientOrg())
}

func (c *sbeContract) readAsset(stub Stub, args []string) ([]byte, error) {
	if err := expectArgs(args, 1); err != nil {
		return nil, err
	}
	return c.get(stub, args[0])
}

// updateAsset(assetID, newValue). Only the key's endorsement policy guards it.
func (c *sbeContract) updateAsset(stub Stub, args []string) ([]byte, error) {
	if err := expectArgs(args, 2); err != nil {
		return nil, err
	}
	asset, err := c.read(stub, args[0])
	if err != nil {
		return nil, err
	}
	value, err := strconv.Atoi(args[1])
	if err != nil {
		return nil, errors.Errorf("invalid value %s for asset %s", args[1], args[0])
	}
	asset.Value = value
	return nil, c.put(stub, asset)
}

// transferAsset(assetID, newOwner, newOwnerOrg) hands the asset and its
// endorsement policy to the new owning organization.
func (c *sbeContract) transferAsset(stub Stub, args []string) ([]byte, error) {
	if err := expectArgs(args, 3); err != nil {
		return nil, err
	}
	asset, err := c.read(stub, args[0])
	if err != nil {
		return nil, err
	}
	newOrg, err := parseOrg(args[2])
	if err != nil {
		return nil, err
	}
	asset.Owner = args[1]
	asset.OwnerOrg = newOrg.MSPID()
	if err := c.put(stub, asset); err != nil {
		return nil, err
	}
	return nil, stub.SetStateValidationParameter(asset.ID, newOrg)
}

func (c *sbeContract) deleteAsset(stub Stub, args []string) ([]byte, error) {
	if err := expectArgs(args, 1); err != nil {
		return nil, err
	}
	if _, err := c.read(stub, args[0]); err != nil {
		return nil, err
	}
	return nil, stub.DelState(args[0])
}

func (c *sbeContract) getAssetByRange(stub Stub, args []string) ([]byte, error) {
	if err := expectArgs(args, 2); err != nil {
		return nil, err
	}
	kvs, err := stub.GetStateByRange(args[0], args[1])
	if err != nil {
		return nil, err
	}
	assets := []*sbeAsset{}
	for _, kv := range kvs {
		var a sbeAsset
		if err := json.Unmarshal(kv.Value, &a); err != nil {
			return nil, errors.Wrapf(err, "failed to unmarshal asset %s", kv.Key)
		}
		assets = append(assets, &a)
	}
	return marshal(assets)
}

func (c *sbeContract) get(stub Stub, id string) ([]byte, error) {
	b, err := stub.GetState(id)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read asset %s", id)
	}
	if b == nil {
		return nil, errors.Errorf("the asset %s does not exist", id)
	}
	return b, nil
}

func (c *sbeContract) read(stub Stub, id string) (*sbeAsset, error) {
	b, err := c.get(stub, id)
	if err != nil {
		return nil, err
	}
	var a sbeAsset
	if err := json.Unmarshal(b, &a); err != nil {
		return nil, errors.Wrapf(err, "failed to unmarshal asset %s", id)
	}
	return &a, nil
}

func (c *sbeContract) put(stub Stub, a *sbeAsset) error {
	b, err := json.Marshal(a)
	if err != nil {
		return errors.Wrapf(err, "failed to marshal asset %s", a.ID)
	}
	return stub.PutState(a.ID, b)
}
