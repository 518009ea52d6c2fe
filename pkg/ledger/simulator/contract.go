/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package simulator

import (
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/hyperledger/fabric-asset-transfer-go/pkg/org"
)

type function func(stub Stub, args []string) ([]byte, error)

// contract dispatches invocations to its functions by name.
type contract struct {
	name      string
	functions map[string]function
}

func (c *contract) Invoke(stub Stub, fcn string, args []string) ([]byte, error) {
	f, ok := c.functions[fcn]
	if !ok {
		return nil, errors.Errorf("function %s not found in contract %s", fcn, c.name)
	}
	return f(stub, args)
}

func expectArgs(args []string, n int) error {
	if len(args) != n {
		return errors.Errorf("incorrect number of arguments: expecting %d, got %d", n, len(args))
	}
	return nil
}

func marshal(v interface{}) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal result")
	}
	return b, nil
}

func transientValue(stub Stub, key string) ([]byte, error) {
	v, ok := stub.Transient()[key]
	if !ok || len(v) == 0 {
		return nil, errors.Errorf("%s key not found in the transient map", key)
	}
	return v, nil
}

// verifyClientOrgMatchesPeerOrg guards reads and writes of the client's
// implicit collection, which is only held by the client's own peers.
func verifyClientOrgMatchesPeerOrg(stub Stub) error {
	if stub.ClientOrg() != stub.PeerOrg() {
		return errors.Errorf("client from org %s is not authorized to read or write private data from an org %s peer",
			stub.ClientOrg().MSPID(), stub.PeerOrg().MSPID())
	}
	return nil
}

func parseOrg(mspID string) (org.Org, error) {
	o, err := org.Parse(mspID)
	if err != nil {
		return org.Unknown, errors.Errorf("invalid organization %s", mspID)
	}
	return o, nil
}
