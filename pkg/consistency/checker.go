/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package consistency reads an asset as every organization and reports where
// their views diverge from each other or from the expected record.
package consistency

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/hyperledger/fabric-asset-transfer-go/pkg/assettransfer"
	"github.com/hyperledger/fabric-asset-transfer-go/pkg/common/errors/multi"
	"github.com/hyperledger/fabric-asset-transfer-go/pkg/common/errors/status"
	"github.com/hyperledger/fabric-asset-transfer-go/pkg/common/logging"
	"github.com/hyperledger/fabric-asset-transfer-go/pkg/ledger"
	"github.com/hyperledger/fabric-asset-transfer-go/pkg/org"
)

var logger = logging.NewLogger("assettransfer/consistency")

// Reader is the read side of an organization's ledger client.
type Reader interface {
	Org() org.Org
	Evaluate(ctx context.Context, txName string, args []string, opts ...ledger.Option) ([]byte, error)
}

// View is the asset as one organization observes it.
type View struct {
	Org org.Org
	// Asset is nil when the organization does not see the asset.
	Asset *assettransfer.Asset
	// Private reports whether the organization holds private properties.
	Private bool
}

// Report lists every organization's view and the divergences found.
type Report struct {
	AssetID     string
	Views       []*View
	Divergences []error
}

// Consistent reports whether no divergence was found.
func (r *Report) Consistent() bool {
	return len(r.Divergences) == 0
}

// Err returns a ConsistencyViolation carrying the divergences, or nil.
func (r *Report) Err() error {
	if r.Consistent() {
		return nil
	}
	divergences := multi.New(r.Divergences...)
	return status.New(status.WorkflowStatus, status.ConsistencyViolation.ToInt32(),
		fmt.Sprintf("asset %s is inconsistent: %s", r.AssetID, divergences), []interface{}{divergences})
}

// Checker compares the views of an asset across organizations.
type Checker struct {
	dialect assettransfer.Dialect
	readers []Reader
	private bool
}

// New returns a checker reading through one client per organization.
func New(dialect assettransfer.Dialect, readers ...Reader) (*Checker, error) {
	if dialect == nil {
		return nil, errors.New("dialect is required")
	}
	if len(readers) == 0 {
		return nil, errors.New("at least one reader is required")
	}
	_, err := dialect.Query(assettransfer.QueryPrivate, &assettransfer.Params{})
	return &Checker{dialect: dialect, readers: readers, private: !status.Is(err, status.Unsupported)}, nil
}

// Check reads the asset as every organization concurrently and compares the
// views. Divergences are returned in the report along with a
// ConsistencyViolation error. A failed read is returned as is.
func (c *Checker) Check(ctx context.Context, assetID string, exp assettransfer.Expectation) (*Report, error) {
	views := make([]*View, len(c.readers))
	g, gctx := errgroup.WithContext(ctx)
	for i, r := range c.readers {
		i, r := i, r
		g.Go(func() error {
			v, err := c.view(gctx, r, assetID)
			if err != nil {
				return errors.WithMessagef(err, "read of asset %s by %s failed", assetID, r.Org())
			}
			views[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report := &Report{AssetID: assetID, Views: views}
	report.Divergences = append(report.Divergences, compare(views)...)
	report.Divergences = append(report.Divergences, c.expect(views, exp)...)
	if report.Consistent() {
		logger.Debugf("asset %s is consistent across %d organizations", assetID, len(views))
		return report, nil
	}
	logger.Warnf("asset %s has %d divergences", assetID, len(report.Divergences))
	return report, report.Err()
}

// Assert fails with a ConsistencyViolation unless every organization observes
// the expected state.
func (c *Checker) Assert(ctx context.Context, assetID string, exp assettransfer.Expectation) error {
	_, err := c.Check(ctx, assetID, exp)
	return err
}

func (c *Checker) view(ctx context.Context, r Reader, assetID string) (*View, error) {
	v := &View{Org: r.Org()}
	payload, err := c.evaluate(ctx, r, assettransfer.QueryAsset, assetID)
	if err != nil {
		return nil, err
	}
	if payload != nil {
		if v.Asset, err = c.dialect.DecodeAsset(payload); err != nil {
			return nil, err
		}
	}
	if c.private {
		payload, err := c.evaluate(ctx, r, assettransfer.QueryPrivate, assetID)
		if err != nil {
			return nil, err
		}
		v.Private = payload != nil
	}
	return v, nil
}

// evaluate returns nil when the organization has nothing to show.
func (c *Checker) evaluate(ctx context.Context, r Reader, q assettransfer.Query, assetID string) ([]byte, error) {
	inv, err := c.dialect.Query(q, &assettransfer.Params{AssetID: assetID, Actor: r.Org()})
	if err != nil {
		return nil, err
	}
	payload, err := r.Evaluate(ctx, inv.Function, inv.Args)
	switch {
	case status.Is(err, status.NotFound), status.Is(err, status.AccessDenied):
		return nil, nil
	case err != nil:
		return nil, err
	case len(payload) == 0:
		return nil, nil
	}
	return payload, nil
}

func compare(views []*View) []error {
	var divergences []error
	base := views[0]
	for _, v := range views[1:] {
		switch {
		case (base.Asset == nil) != (v.Asset == nil):
			divergences = append(divergences, errors.Errorf("%s sees the asset: %t, %s sees the asset: %t",
				base.Org, base.Asset != nil, v.Org, v.Asset != nil))
		case base.Asset == nil:
		case base.Asset.OwnerOrg != v.Asset.OwnerOrg:
			divergences = append(divergences, errors.Errorf("%s sees owner %s, %s sees owner %s",
				base.Org, base.Asset.OwnerOrg, v.Org, v.Asset.OwnerOrg))
		case base.Asset.Attributes != v.Asset.Attributes:
			divergences = append(divergences, errors.Errorf("%s sees %+v, %s sees %+v",
				base.Org, base.Asset.Attributes, v.Org, v.Asset.Attributes))
		}
	}
	return divergences
}

func (c *Checker) expect(views []*View, exp assettransfer.Expectation) []error {
	var divergences []error
	for _, v := range views {
		if exp.Absent {
			if v.Asset != nil {
				divergences = append(divergences, errors.Errorf("%s sees asset %s which should not exist", v.Org, v.Asset.ID))
			}
			if v.Private {
				divergences = append(divergences, errors.Errorf("%s holds private properties of a missing asset", v.Org))
			}
			continue
		}
		if v.Asset == nil {
			divergences = append(divergences, errors.Errorf("%s does not see the asset", v.Org))
			continue
		}
		if exp.Owner.Valid() && v.Asset.OwnerOrg != exp.Owner {
			divergences = append(divergences, errors.Errorf("%s sees owner %s, expected %s", v.Org, v.Asset.OwnerOrg, exp.Owner))
		}
		if exp.Attributes != nil && v.Asset.Attributes != *exp.Attributes {
			divergences = append(divergences, errors.Errorf("%s sees %+v, expected %+v", v.Org, v.Asset.Attributes, *exp.Attributes))
		}
		if !c.private || !exp.PrivateOwner.Valid() {
			continue
		}
		switch {
		case v.Org == exp.PrivateOwner && !v.Private:
			divergences = append(divergences, errors.Errorf("owner %s does not hold the private properties", v.Org))
		case v.Org != exp.PrivateOwner && v.Org != exp.PrivateProspect && v.Private:
			divergences = append(divergences, errors.Errorf("%s holds private properties of an asset owned by %s", v.Org, exp.PrivateOwner))
		}
	}
	return divergences
}
