/*
Copyright 2020 IBM All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package fabric connects the ledger facade and the enrollment registrar to
// a Hyperledger Fabric network through the Fabric gateway and CA clients.
package fabric

import (
	"context"
	"os"
	"strconv"
	"strings"
	"time"

	fabconfig "github.com/hyperledger/fabric-sdk-go/pkg/core/config"
	"github.com/hyperledger/fabric-sdk-go/pkg/gateway"
	"github.com/pkg/errors"

	"github.com/hyperledger/fabric-asset-transfer-go/pkg/common/logging"
	"github.com/hyperledger/fabric-asset-transfer-go/pkg/config"
	"github.com/hyperledger/fabric-asset-transfer-go/pkg/ledger"
	"github.com/hyperledger/fabric-asset-transfer-go/pkg/org"
	"github.com/hyperledger/fabric-asset-transfer-go/pkg/transient"
)

var logger = logging.NewLogger("assettransfer/fabric")

const localhostEnvVarName = "DISCOVERY_AS_LOCALHOST"

// Connector opens gateway sessions described by the configured connection
// profiles.
type Connector struct {
	settings *config.Settings
}

var _ ledger.Connector = (*Connector)(nil)

// NewConnector returns a connector for the given settings.
func NewConnector(settings *config.Settings) *Connector {
	return &Connector{settings: settings}
}

// Connect opens a gateway connection for the identity's organization and
// binds it to the configured channel.
func (c *Connector) Connect(ctx context.Context, id ledger.Identity, opts ledger.DiscoveryOptions) (ledger.Session, error) {
	if id.Credential == nil {
		return nil, errors.Errorf("identity %s has no credential", id.Label)
	}
	profile := c.settings.Org(id.Org).ConnectionProfile
	if profile == "" {
		return nil, errors.Errorf("no connection profile configured for %s", id.Org)
	}
	if _, err := os.Stat(profile); err != nil {
		return nil, errors.Wrapf(err, "connection profile of %s", id.Org)
	}
	if err := os.Setenv(localhostEnvVarName, strconv.FormatBool(opts.AsLocalhost)); err != nil {
		return nil, errors.Wrap(err, "failed to set discovery mode")
	}

	wallet := gateway.NewInMemoryWallet()
	if err := wallet.Put(id.Label, gateway.NewX509Identity(id.Credential.MSPID(), id.Credential.Certificate(), id.Credential.Key())); err != nil {
		return nil, errors.Wrap(err, "failed to load identity into gateway wallet")
	}

	conn, err := dial(ctx, func() (*connection, error) {
		gw, err := gateway.Connect(
			gateway.WithConfig(fabconfig.FromFile(profile)),
			gateway.WithIdentity(wallet, id.Label),
			gateway.WithTimeout(c.settings.Ledger.Timeout),
		)
		if err != nil {
			return nil, errors.Wrap(err, "failed to connect to gateway")
		}
		network, err := gw.GetNetwork(c.settings.Channel)
		if err != nil {
			gw.Close()
			return nil, errors.Wrapf(err, "failed to get network %s", c.settings.Channel)
		}
		return &connection{gw: gw, network: network}, nil
	}, (*connection).close)
	if err != nil {
		return nil, err
	}
	logger.Infof("Connected to channel %s as %s@%s", c.settings.Channel, id.Label, id.Org)
	return &session{gw: conn.gw, network: conn.network, peers: c.peers}, nil
}

type connection struct {
	gw      *gateway.Gateway
	network *gateway.Network
}

func (c *connection) close() {
	if c.gw != nil {
		c.gw.Close()
	}
}

// dial runs open in the background until it returns or ctx is done. A
// connection that opens after ctx is done is passed to release.
func dial(ctx context.Context, open func() (*connection, error), release func(*connection)) (*connection, error) {
	type result struct {
		conn *connection
		err  error
	}
	done := make(chan result, 1)
	go func() {
		conn, err := open()
		done <- result{conn, err}
	}()

	select {
	case <-ctx.Done():
		go func() {
			if r := <-done; r.conn != nil {
				logger.Debugf("Closing gateway connection opened after connect was aborted")
				release(r.conn)
			}
		}()
		return nil, errors.Wrap(ctx.Err(), "connect aborted")
	case r := <-done:
		return r.conn, r.err
	}
}

// peers returns the endorsing peer names of an organization: the configured
// ones, or the test network's first peer.
func (c *Connector) peers(o org.Org) []string {
	if p := c.settings.Org(o).Peers; len(p) > 0 {
		return p
	}
	return []string{"peer0." + o.Domain()}
}

type session struct {
	gw      *gateway.Gateway
	network *gateway.Network
	peers   func(o org.Org) []string
}

func (s *session) Submit(ctx context.Context, chaincode, txName string, args []string, payload transient.Payload, endorsingOrgs []org.Org) ([]byte, error) {
	var opts []gateway.TransactionOption
	if len(payload) > 0 {
		opts = append(opts, gateway.WithTransient(payload))
	}
	if endorsingOrgs != nil {
		var peers []string
		for _, o := range endorsingOrgs {
			peers = append(peers, s.peers(o)...)
		}
		opts = append(opts, gateway.WithEndorsingPeers(peers...))
	}
	txn, err := s.network.GetContract(chaincode).CreateTransaction(txName, opts...)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create transaction %s", txName)
	}
	return await(ctx, func() ([]byte, error) { return txn.Submit(args...) })
}

func (s *session) Evaluate(ctx context.Context, chaincode, txName string, args []string, payload transient.Payload) ([]byte, error) {
	var opts []gateway.TransactionOption
	if len(payload) > 0 {
		opts = append(opts, gateway.WithTransient(payload))
	}
	txn, err := s.network.GetContract(chaincode).CreateTransaction(txName, opts...)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create transaction %s", txName)
	}
	return await(ctx, func() ([]byte, error) { return txn.Evaluate(args...) })
}

func (s *session) Close() error {
	s.gw.Close()
	return nil
}

// await runs a blocking gateway call and gives up when ctx is done. The
// gateway has no cancellation, so an abandoned submission may still commit.
func await(ctx context.Context, call func() ([]byte, error)) ([]byte, error) {
	type result struct {
		payload []byte
		err     error
	}
	done := make(chan result, 1)
	start := time.Now()
	go func() {
		payload, err := call()
		done <- result{payload, err}
	}()
	select {
	case <-ctx.Done():
		return nil, errors.Wrapf(ctx.Err(), "no response after %s", time.Since(start).Round(time.Millisecond))
	case r := <-done:
		if r.err != nil && strings.Contains(r.err.Error(), "DeadlineExceeded") {
			return nil, errors.Wrap(context.DeadlineExceeded, r.err.Error())
		}
		return r.payload, r.err
	}
}
