/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package commands

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/hyperledger/fabric-asset-transfer-go/pkg/assettransfer"
	"github.com/hyperledger/fabric-asset-transfer-go/pkg/common/errors/multi"
	"github.com/hyperledger/fabric-asset-transfer-go/pkg/common/errors/status"
	"github.com/hyperledger/fabric-asset-transfer-go/pkg/common/logging"
	"github.com/hyperledger/fabric-asset-transfer-go/pkg/config"
	"github.com/hyperledger/fabric-asset-transfer-go/pkg/consistency"
	"github.com/hyperledger/fabric-asset-transfer-go/pkg/endorsement"
	"github.com/hyperledger/fabric-asset-transfer-go/pkg/journal"
	"github.com/hyperledger/fabric-asset-transfer-go/pkg/ledger"
	"github.com/hyperledger/fabric-asset-transfer-go/pkg/ledger/fabric"
	"github.com/hyperledger/fabric-asset-transfer-go/pkg/ledger/simulator"
	"github.com/hyperledger/fabric-asset-transfer-go/pkg/msp"
	"github.com/hyperledger/fabric-asset-transfer-go/pkg/org"
	"github.com/hyperledger/fabric-asset-transfer-go/pkg/wallet"
)

var logger = logging.NewLogger("assettransfer/cli")

// environment holds everything built from the settings for one invocation.
type environment struct {
	settings  *config.Settings
	dialect   assettransfer.Dialect
	policy    *endorsement.Policy
	connector ledger.Connector
	ca        msp.CA
	registry  *prometheus.Registry
	metrics   *ledger.ClientMetrics

	registrars map[org.Org]*msp.Registrar
	journal    journal.Journal
	closers    []func() error
}

func loadSettings(f *globalFlags) (*config.Settings, error) {
	provider := config.FromDefaults()
	if f.config != "" {
		provider = config.FromFile(f.config)
	}
	s, err := config.Load(provider)
	if err != nil {
		return nil, err
	}
	if f.ledger != "" {
		s.Ledger.Mode = strings.ToLower(f.ledger)
	}
	if f.dialect != "" {
		dialect := strings.ToLower(f.dialect)
		if s.Chaincode.Name == s.Chaincode.Dialect {
			s.Chaincode.Name = dialect
		}
		s.Chaincode.Dialect = dialect
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func newEnvironment(f *globalFlags) (*environment, error) {
	s, err := loadSettings(f)
	if err != nil {
		return nil, setupFailed(err, "invalid configuration")
	}
	dialect, err := assettransfer.NewDialect(s.Chaincode.Dialect)
	if err != nil {
		return nil, setupFailed(err, "invalid configuration")
	}
	policy := dialect.DefaultPolicy()
	if s.Chaincode.Policy != "" {
		if policy, err = endorsement.NewPolicy(s.Chaincode.Policy); err != nil {
			return nil, setupFailed(err, "invalid chaincode.policy")
		}
	}

	e := &environment{
		settings:   s,
		dialect:    dialect,
		policy:     policy,
		registry:   prometheus.NewRegistry(),
		registrars: make(map[org.Org]*msp.Registrar),
	}
	if e.metrics, err = ledger.NewClientMetrics(e.registry); err != nil {
		return nil, err
	}

	switch s.Ledger.Mode {
	case config.LedgerModeSimulator:
		e.connector = simulator.New(simulator.WithChaincode(s.Chaincode.Name, simulatorChaincode(dialect), policy))
		e.ca = simulator.NewCA()
	case config.LedgerModeFabric:
		e.connector = fabric.NewConnector(s)
		ca := fabric.NewCA(s)
		e.ca = ca
		e.closers = append(e.closers, func() error {
			ca.Close()
			return nil
		})
	}
	logger.Debugf("Using the %s ledger with chaincode %s (%s, policy %s)", s.Ledger.Mode, s.Chaincode.Name, dialect.Name(), policy)
	return e, nil
}

func simulatorChaincode(d assettransfer.Dialect) simulator.Chaincode {
	switch d.Name() {
	case assettransfer.DialectSecured:
		return simulator.NewSecured()
	case assettransfer.DialectPrivate:
		return simulator.NewPrivate()
	default:
		return simulator.NewSBE()
	}
}

// Close releases everything opened by the environment, most recent first.
func (e *environment) Close() error {
	var errs []error
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	e.closers = nil
	return multi.New(errs...)
}

// registrar returns the organization's registrar over its configured wallet.
func (e *environment) registrar(o org.Org) (*msp.Registrar, error) {
	if r, ok := e.registrars[o]; ok {
		return r, nil
	}
	w, err := wallet.Open(e.settings.Wallet, e.settings.Org(o).Wallet)
	if err != nil {
		return nil, setupFailed(err, "failed to open the wallet of %s", o)
	}
	r := msp.NewRegistrar(e.ca, w)
	e.registrars[o] = r
	return r, nil
}

// client enrolls userID with the organization if needed and connects it.
func (e *environment) client(ctx context.Context, o org.Org, userID string) (*ledger.Client, error) {
	r, err := e.registrar(o)
	if err != nil {
		return nil, err
	}
	cred, err := r.Enroll(ctx, o, userID, e.settings.Org(o).Affiliation)
	if err != nil {
		return nil, err
	}
	client, err := ledger.Connect(ctx, e.connector,
		ledger.Identity{Org: o, Label: userID, Credential: cred},
		ledger.DiscoveryOptions{Enabled: e.settings.Discovery.Enabled, AsLocalhost: e.settings.Discovery.AsLocalhost},
		e.settings.Chaincode.Name,
		ledger.WithTimeout(e.settings.Ledger.Timeout),
		ledger.WithMetrics(e.metrics),
	)
	if err != nil {
		return nil, err
	}
	e.closers = append(e.closers, client.Close)
	return client, nil
}

// outcomes returns the configured journal, opening it on first use.
func (e *environment) outcomes() (journal.Journal, error) {
	if e.journal != nil {
		return e.journal, nil
	}
	j, err := journal.Open(e.settings.Journal.Path)
	if err != nil {
		return nil, setupFailed(err, "failed to open the journal")
	}
	e.journal = j
	e.closers = append(e.closers, j.Close)
	return j, nil
}

// orchestrator connects userID of each organization. With every
// organization connected the consistency checker runs after each transition.
func (e *environment) orchestrator(ctx context.Context, userID string, orgs ...org.Org) (*assettransfer.Orchestrator, error) {
	j, err := e.outcomes()
	if err != nil {
		return nil, err
	}
	var clients []assettransfer.LedgerClient
	var readers []consistency.Reader
	for _, o := range org.Set(orgs...) {
		client, err := e.client(ctx, o, userID)
		if err != nil {
			return nil, err
		}
		clients = append(clients, client)
		readers = append(readers, client)
	}

	opts := []assettransfer.Option{assettransfer.WithPolicy(e.policy), assettransfer.WithRecorder(j)}
	if len(readers) == len(org.All()) {
		checker, err := consistency.New(e.dialect, readers...)
		if err != nil {
			return nil, err
		}
		opts = append(opts, assettransfer.WithConsistencyChecker(checker))
	}
	return assettransfer.New(e.dialect, clients, opts...)
}

// withEnvironment builds the environment, runs fn and releases it.
func withEnvironment(cmd *cobra.Command, f *globalFlags, fn func(ctx context.Context, e *environment) error) (err error) {
	e, err := newEnvironment(f)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := e.Close(); cerr != nil {
			logger.Warnf("Failed to release resources: %s", cerr)
		}
	}()
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return fn(ctx, e)
}

func setupFailed(err error, format string, args ...interface{}) error {
	return status.New(status.WorkflowStatus, status.SetupFailed.ToInt32(),
		errors.WithMessagef(err, format, args...).Error(), nil)
}

func parseOrg(name string) (org.Org, error) {
	o, err := org.Parse(name)
	if err != nil {
		return org.Unknown, errors.WithMessage(err, "invalid organization")
	}
	return o, nil
}
