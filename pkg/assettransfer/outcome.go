/*
Copyright 2020 IBM All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package assettransfer

import (
	"context"
	"time"

	"github.com/hyperledger/fabric-asset-transfer-go/pkg/common/errors/status"
	"github.com/hyperledger/fabric-asset-transfer-go/pkg/endorsement"
	"github.com/hyperledger/fabric-asset-transfer-go/pkg/org"
)

// Outcome is the result of one transition attempt.
type Outcome struct {
	AssetID string
	Kind    endorsement.Kind
	Actor   org.Org
	// Scope is the endorsement scope the transition was submitted with.
	Scope endorsement.Scope
	// Expected is the status the caller expected. OK unless set with Expect.
	Expected status.Code
	Code     status.Code
	// Reason is the raw reason reported by the ledger, empty on success.
	Reason   string
	Time     time.Time
	Duration time.Duration
}

// Succeeded reports whether the transition committed.
func (o *Outcome) Succeeded() bool {
	return o.Code == status.OK
}

// Passed reports whether the transition ended with the expected status.
func (o *Outcome) Passed() bool {
	return o.Code == o.Expected
}

// Recorder receives every transition outcome.
type Recorder interface {
	Record(ctx context.Context, outcome *Outcome) error
}

// ConsistencyChecker asserts that every organization observes the expected
// state of an asset.
type ConsistencyChecker interface {
	Assert(ctx context.Context, assetID string, exp Expectation) error
}
