/*
Copyright 2020 IBM All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package ledger

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/hyperledger/fabric-asset-transfer-go/pkg/common/errors/status"
	"github.com/hyperledger/fabric-asset-transfer-go/pkg/common/logging"
	"github.com/hyperledger/fabric-asset-transfer-go/pkg/org"
)

var logger = logging.NewLogger("assettransfer/ledger")

// Client submits and evaluates transactions of one chaincode on behalf of one
// organization.
type Client struct {
	org       org.Org
	chaincode string
	session   Session
	options   clientOptions
}

// NewClient wraps an open session.
func NewClient(o org.Org, chaincode string, session Session, opts ...ClientOption) *Client {
	c := &Client{org: o, chaincode: chaincode, session: session}
	for _, opt := range opts {
		opt(&c.options)
	}
	return c
}

// Connect opens a session with the given connector and wraps it in a Client.
func Connect(ctx context.Context, connector Connector, id Identity, discovery DiscoveryOptions, chaincode string, opts ...ClientOption) (*Client, error) {
	session, err := connector.Connect(ctx, id, discovery)
	if err != nil {
		return nil, status.New(status.WorkflowStatus, status.SetupFailed.ToInt32(),
			errors.WithMessagef(err, "failed to connect as %s@%s", id.Label, id.Org).Error(), nil)
	}
	logger.Infof("Connected to the ledger as %s@%s", id.Label, id.Org)
	return NewClient(id.Org, chaincode, session, opts...), nil
}

// Org returns the organization the client acts for.
func (c *Client) Org() org.Org {
	return c.org
}

// Chaincode returns the name of the chaincode the client calls.
func (c *Client) Chaincode() string {
	return c.chaincode
}

// Submit executes a transaction and waits for it to commit. Errors are
// *status.Status values with codes EndorsementDenied, PriceMismatch,
// LedgerUnavailable or Timeout.
func (c *Client) Submit(ctx context.Context, txName string, args []string, opts ...Option) ([]byte, error) {
	o, err := applyOptions(opts)
	if err != nil {
		return nil, err
	}
	var endorsingOrgs []org.Org
	if !o.scope.IsDiscovery() {
		endorsingOrgs = o.scope.Organizations()
	}

	logger.Infof("Submit %s%v as %s, endorsed by %s, transient %v", txName, args, c.org, o.scope, o.payload.Keys())
	start := time.Now()

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	result, err := c.session.Submit(ctx, c.chaincode, txName, args, o.payload, endorsingOrgs)
	err = classify(submitCall, err)
	c.options.metrics.observeExecution(c.org, c.chaincode, txName, start, err)
	if err != nil {
		logger.Warnf("Submit %s as %s failed: %s", txName, c.org, err)
		return nil, err
	}

	logger.Infof("Submit %s as %s committed", txName, c.org)
	return result, nil
}

// Evaluate runs a read-only query on the client's own organization. Errors
// are *status.Status values with codes NotFound, AccessDenied,
// LedgerUnavailable or Timeout.
func (c *Client) Evaluate(ctx context.Context, txName string, args []string, opts ...Option) ([]byte, error) {
	o, err := applyOptions(opts)
	if err != nil {
		return nil, err
	}

	logger.Debugf("Evaluate %s%v as %s", txName, args, c.org)
	start := time.Now()

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	result, err := c.session.Evaluate(ctx, c.chaincode, txName, args, o.payload)
	err = classify(evaluateCall, err)
	c.options.metrics.observeQuery(c.org, c.chaincode, txName, start, err)
	if err != nil {
		logger.Debugf("Evaluate %s as %s failed: %s", txName, c.org, err)
		return nil, err
	}
	return result, nil
}

// Close releases the underlying session.
func (c *Client) Close() error {
	logger.Debugf("Closing ledger session of %s", c.org)
	return c.session.Close()
}

func applyOptions(opts []Option) (*callOptions, error) {
	o := &callOptions{}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, errors.WithMessage(err, "invalid call option")
		}
	}
	return o, nil
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.options.timeout > 0 {
		return context.WithTimeout(ctx, c.options.timeout)
	}
	return context.WithCancel(ctx)
}
