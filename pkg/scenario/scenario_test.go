/*
Copyright 2020 IBM All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package scenario_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperledger/fabric-asset-transfer-go/pkg/assettransfer"
	"github.com/hyperledger/fabric-asset-transfer-go/pkg/common/errors/status"
	"github.com/hyperledger/fabric-asset-transfer-go/pkg/consistency"
	"github.com/hyperledger/fabric-asset-transfer-go/pkg/journal"
	"github.com/hyperledger/fabric-asset-transfer-go/pkg/ledger"
	"github.com/hyperledger/fabric-asset-transfer-go/pkg/ledger/simulator"
	"github.com/hyperledger/fabric-asset-transfer-go/pkg/msp"
	"github.com/hyperledger/fabric-asset-transfer-go/pkg/org"
	"github.com/hyperledger/fabric-asset-transfer-go/pkg/scenario"
	"github.com/hyperledger/fabric-asset-transfer-go/pkg/wallet"
)

func orchestrator(t *testing.T, dialect assettransfer.Dialect, j journal.Journal) *assettransfer.Orchestrator {
	ctx := context.Background()
	network := simulator.New()
	registrar := msp.NewRegistrar(simulator.NewCA(), wallet.NewInMemoryWallet())

	var clients []assettransfer.LedgerClient
	var readers []consistency.Reader
	for _, o := range org.All() {
		cred, err := registrar.Enroll(ctx, o, "appUser", "")
		require.NoError(t, err)
		client, err := ledger.Connect(ctx, network, ledger.Identity{Org: o, Label: "appUser", Credential: cred},
			ledger.DiscoveryOptions{Enabled: true}, dialect.Name())
		require.NoError(t, err)
		t.Cleanup(func() { client.Close() })
		clients = append(clients, client)
		readers = append(readers, client)
	}
	checker, err := consistency.New(dialect, readers...)
	require.NoError(t, err)
	o, err := assettransfer.New(dialect, clients,
		assettransfer.WithRecorder(j), assettransfer.WithConsistencyChecker(checker))
	require.NoError(t, err)
	return o
}

func codes(result *scenario.Result) []string {
	var codes []string
	for _, s := range result.Steps {
		codes = append(codes, s.Code)
	}
	return codes
}

func TestSBE(t *testing.T) {
	j := journal.NewMemory()
	s, err := scenario.New(scenario.NameSBE, orchestrator(t, assettransfer.SBE(), j), scenario.WithAssetID("asset-42"))
	require.NoError(t, err)
	assert.Equal(t, "asset-42", s.AssetID())

	result := s.Run(context.Background())
	require.NoError(t, result.Err())
	assert.True(t, result.Passed())
	assert.Zero(t, result.Skipped)
	assert.Equal(t, []string{
		"OK", "OK", "OK", "OK", "OK",
		"ENDORSEMENT_DENIED", "OK", "OK", "OK",
		"ENDORSEMENT_DENIED", "OK",
		"ENDORSEMENT_DENIED", "OK", "OK",
	}, codes(result))
	assert.Equal(t, "{Fiserv}", result.Steps[5].Scope)
	assert.NotEmpty(t, result.Steps[5].Reason)

	report, err := journal.Summarize(context.Background(), j)
	require.NoError(t, err)
	assert.Equal(t, 10, report.Total, "checks are not transitions")
	assert.True(t, report.OK())
}

func TestSecured(t *testing.T) {
	j := journal.NewMemory()
	s, err := scenario.New(scenario.NameSecured, orchestrator(t, assettransfer.Secured(), j))
	require.NoError(t, err)
	assert.Regexp(t, `^asset-`, s.AssetID())

	result := s.Run(context.Background())
	require.NoError(t, result.Err())
	assert.Equal(t, []string{
		"OK", "OK", "OK",
		"ENDORSEMENT_DENIED", "ENDORSEMENT_DENIED",
		"OK", "OK", "OK",
		"PRICE_MISMATCH", "OK", "OK",
		"ENDORSEMENT_DENIED", "OK", "OK", "OK",
	}, codes(result))

	report, err := journal.Summarize(context.Background(), j)
	require.NoError(t, err)
	assert.Equal(t, 12, report.Total)
	assert.True(t, report.OK())

	var buf bytes.Buffer
	require.NoError(t, result.WriteYAML(&buf))
	assert.Contains(t, buf.String(), "scenario: secured")
	assert.Contains(t, buf.String(), "code: PRICE_MISMATCH")
}

func TestPrivate(t *testing.T) {
	j := journal.NewMemory()
	s, err := scenario.New(scenario.NamePrivate, orchestrator(t, assettransfer.Private(), j), scenario.WithAssetID("asset-p"))
	require.NoError(t, err)

	result := s.Run(context.Background())
	require.NoError(t, result.Err())
	assert.Equal(t, []string{
		"OK", "OK", "PRICE_MISMATCH",
		"OK", "OK", "PRICE_MISMATCH", "OK",
		"ENDORSEMENT_DENIED", "ENDORSEMENT_DENIED",
		"OK", "OK", "OK", "OK", "OK",
	}, codes(result))
	assert.Equal(t, "{Fiserv}", result.Steps[3].Scope, "the buyer endorses its own agreement")
	assert.Equal(t, "{Apple}", result.Steps[9].Scope)

	report, err := journal.Summarize(context.Background(), j)
	require.NoError(t, err)
	assert.Equal(t, 10, report.Total)
	assert.True(t, report.OK())
}

func TestAbortOnUnexpectedOutcome(t *testing.T) {
	o := orchestrator(t, assettransfer.SBE(), journal.NewMemory())
	ctx := context.Background()
	_, err := o.Create(ctx, org.Apple, "asset-1", assettransfer.Attributes{Owner: "Ana", Value: 1}, nil)
	require.NoError(t, err)

	s, err := scenario.SBE(o, scenario.WithAssetID("asset-1"))
	require.NoError(t, err)
	result := s.Run(ctx)
	require.Error(t, result.Err())
	assert.False(t, result.Passed())
	require.Len(t, result.Steps, 1)
	assert.Equal(t, "INVALID_TRANSITION", result.Steps[0].Code)
	assert.Equal(t, len(s.Steps())-1, result.Skipped)
	assert.Contains(t, result.Err().Error(), `failed at step "Apple creates asset-1`)
	assert.Equal(t, status.InvalidTransition, status.CodeOf(result.Err()))
}

func TestReversedOrgs(t *testing.T) {
	s, err := scenario.SBE(orchestrator(t, assettransfer.SBE(), journal.NewMemory()), scenario.WithOrgs(org.Fiserv, org.Apple))
	require.NoError(t, err)
	result := s.Run(context.Background())
	require.NoError(t, result.Err())
	assert.Equal(t, "Fiserv", result.Steps[0].Actor)
}

func TestNewErrors(t *testing.T) {
	o := orchestrator(t, assettransfer.SBE(), journal.NewMemory())

	_, err := scenario.New("auction", o)
	assert.Error(t, err)
	_, err = scenario.New(scenario.NameSecured, o)
	assert.Error(t, err, "the orchestrator speaks the sbe dialect")
	_, err = scenario.SBE(o, scenario.WithOrgs(org.Apple, org.Apple))
	assert.Error(t, err)
	_, err = scenario.SBE(nil)
	assert.Error(t, err)
}
