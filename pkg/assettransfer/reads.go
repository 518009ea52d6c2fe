/*
Copyright 2020 IBM All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package assettransfer

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/hyperledger/fabric-asset-transfer-go/pkg/common/errors/status"
	"github.com/hyperledger/fabric-asset-transfer-go/pkg/org"
)

// Read returns the asset as the actor's organization sees it. A missing
// asset fails with NotFound.
func (o *Orchestrator) Read(ctx context.Context, actor org.Org, assetID string) (*Asset, error) {
	client, err := o.client(actor)
	if err != nil {
		return nil, err
	}
	return o.read(ctx, client, assetID)
}

// ReadPrivate returns the private record the actor's organization holds for
// the asset, or nil when it holds none.
func (o *Orchestrator) ReadPrivate(ctx context.Context, actor org.Org, assetID string) (*PrivateRecord, error) {
	client, err := o.client(actor)
	if err != nil {
		return nil, err
	}
	return o.readPrivate(ctx, client, assetID)
}

// ReadAgreement returns the actor's own agreement on the asset, or nil when
// it has not agreed.
func (o *Orchestrator) ReadAgreement(ctx context.Context, actor org.Org, assetID string, role Role) (*TransferAgreement, error) {
	client, err := o.client(actor)
	if err != nil {
		return nil, err
	}
	return o.readAgreement(ctx, client, assetID, role)
}

// List returns the assets whose keys fall in [start, end). Empty bounds are open.
func (o *Orchestrator) List(ctx context.Context, actor org.Org, start, end string) ([]*Asset, error) {
	client, err := o.client(actor)
	if err != nil {
		return nil, err
	}
	inv, err := o.dialect.Query(QueryRange, &Params{Actor: actor, RangeStart: start, RangeEnd: end})
	if err != nil {
		return nil, err
	}
	result, err := client.Evaluate(ctx, inv.Function, inv.Args)
	if err != nil {
		return nil, err
	}
	return o.dialect.DecodeAssets(result)
}

func (o *Orchestrator) read(ctx context.Context, client LedgerClient, assetID string) (*Asset, error) {
	inv, err := o.dialect.Query(QueryAsset, &Params{AssetID: assetID})
	if err != nil {
		return nil, err
	}
	result, err := client.Evaluate(ctx, inv.Function, inv.Args)
	if err != nil {
		return nil, err
	}
	if len(result) == 0 {
		return nil, status.Errorf(status.NotFound, "the asset %s does not exist", assetID)
	}
	return o.dialect.DecodeAsset(result)
}

func (o *Orchestrator) readPrivate(ctx context.Context, client LedgerClient, assetID string) (*PrivateRecord, error) {
	result, err := o.evaluateOptional(ctx, client, QueryPrivate, assetID)
	if err != nil || result == nil {
		return nil, err
	}
	private, err := o.dialect.DecodePrivate(result)
	if err != nil {
		return nil, errors.WithMessagef(err, "asset %s", assetID)
	}
	return private, nil
}

func (o *Orchestrator) readAgreement(ctx context.Context, client LedgerClient, assetID string, role Role) (*TransferAgreement, error) {
	q := QuerySalePrice
	if role == Buyer {
		q = QueryBidPrice
	}
	result, err := o.evaluateOptional(ctx, client, q, assetID)
	if err != nil || result == nil {
		return nil, err
	}
	agreement, err := o.dialect.DecodeAgreement(result, client.Org(), role)
	if err != nil {
		return nil, errors.WithMessagef(err, "asset %s", assetID)
	}
	return agreement, nil
}

// evaluateOptional evaluates a query whose absence, or denial, means empty.
func (o *Orchestrator) evaluateOptional(ctx context.Context, client LedgerClient, q Query, assetID string) ([]byte, error) {
	inv, err := o.dialect.Query(q, &Params{AssetID: assetID, Actor: client.Org()})
	if err != nil {
		return nil, err
	}
	result, err := client.Evaluate(ctx, inv.Function, inv.Args)
	switch {
	case status.Is(err, status.NotFound), status.Is(err, status.AccessDenied):
		logger.Debugf("%s of asset %s by %s is empty: %s", q, assetID, client.Org(), err)
		return nil, nil
	case err != nil:
		return nil, err
	case len(result) == 0:
		return nil, nil
	}
	return result, nil
}

func unmarshal(payload []byte, v interface{}) error {
	if err := json.Unmarshal(payload, v); err != nil {
		return errors.Wrap(err, "failed to decode contract response")
	}
	return nil
}
