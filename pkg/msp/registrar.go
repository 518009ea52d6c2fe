/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package msp enrolls organization members with their certificate authority
// and caches the resulting credentials in a wallet. Enrollment is idempotent:
// an identity already in the wallet is returned without contacting the CA.
package msp

import (
	"context"
	"strings"

	"github.com/pkg/errors"

	"github.com/hyperledger/fabric-asset-transfer-go/pkg/common/errors/retry"
	"github.com/hyperledger/fabric-asset-transfer-go/pkg/common/errors/status"
	"github.com/hyperledger/fabric-asset-transfer-go/pkg/common/logging"
	"github.com/hyperledger/fabric-asset-transfer-go/pkg/org"
	"github.com/hyperledger/fabric-asset-transfer-go/pkg/wallet"
)

var logger = logging.NewLogger("assettransfer/msp")

const (
	// DefaultAdminID is the bootstrap identity of every test network CA.
	DefaultAdminID = "admin"
	// DefaultAdminSecret is the bootstrap secret of every test network CA.
	DefaultAdminSecret = "adminpw"
)

// ErrAlreadyRegistered is returned by a CA when the enrollment ID exists.
var ErrAlreadyRegistered = errors.New("identity is already registered")

// RegistrationRequest defines the attributes required to register a user with the CA
type RegistrationRequest struct {
	// Name is the unique name of the identity
	Name string
	// Type of identity being registered (e.g. "peer, app, user")
	Type string
	// MaxEnrollments is the number of times the secret can be reused to enroll.
	// if omitted, this defaults to max_enrollments configured on the server
	MaxEnrollments int
	// The identity's affiliation e.g. org1.department1
	Affiliation string
	// Secret is an optional password. If not specified,
	// a random secret is generated. In both cases, the secret
	// is returned from registration.
	Secret string
}

// CA is an organization's certificate authority.
type CA interface {
	// Register registers a new identity and returns its enrollment secret.
	Register(ctx context.Context, o org.Org, request *RegistrationRequest) (string, error)
	// Enroll issues a certificate and private key for a registered identity.
	Enroll(ctx context.Context, o org.Org, enrollmentID, secret string) (*wallet.X509Identity, error)
}

// Label returns the wallet label of a member of an organization.
func Label(o org.Org, userID string) string {
	return userID + "@" + o.String()
}

// Registrar enrolls admins and users and caches their identities.
type Registrar struct {
	ca     CA
	wallet *wallet.Wallet
	opts   options
}

type options struct {
	adminID     string
	adminSecret string
	secret      func(userID string) string
	retry       retry.Opts
}

// Option configures a Registrar.
type Option func(*options)

// WithAdmin sets the bootstrap admin credentials.
func WithAdmin(id, secret string) Option {
	return func(o *options) {
		o.adminID = id
		o.adminSecret = secret
	}
}

// WithUserSecret sets how enrollment secrets of registered users are chosen.
// Without it the CA generates the secret, and a user the CA already knows
// cannot be enrolled again.
func WithUserSecret(secret func(userID string) string) Option {
	return func(o *options) {
		o.secret = secret
	}
}

// WithRetry sets the retry options for CA calls.
func WithRetry(opts retry.Opts) Option {
	return func(o *options) {
		o.retry = opts
	}
}

// NewRegistrar returns a registrar for the given CA and wallet.
func NewRegistrar(ca CA, w *wallet.Wallet, opts ...Option) *Registrar {
	r := &Registrar{
		ca:     ca,
		wallet: w,
		opts: options{
			adminID:     DefaultAdminID,
			adminSecret: DefaultAdminSecret,
			retry:       retry.DefaultOpts,
		},
	}
	for _, opt := range opts {
		opt(&r.opts)
	}
	return r
}

// EnrollAdmin enrolls the organization's bootstrap admin.
func (r *Registrar) EnrollAdmin(ctx context.Context, o org.Org) (*wallet.X509Identity, error) {
	label := Label(o, r.opts.adminID)
	if id, ok := r.cached(label); ok {
		logger.Infof("An identity for the admin user %s already exists in the wallet", label)
		return id, nil
	}

	id, err := r.enroll(ctx, o, r.opts.adminID, r.opts.adminSecret)
	if err != nil {
		return nil, setupFailed(err, "failed to enroll admin user %s", label)
	}
	if err := r.wallet.Put(label, id); err != nil {
		return nil, setupFailed(err, "failed to store admin user %s", label)
	}
	logger.Infof("Successfully enrolled admin user %s and imported it into the wallet", label)
	return id, nil
}

// Enroll registers and enrolls a user of the organization. A user already in
// the wallet is returned as is. A user already known to the CA is enrolled
// again only when its secret was chosen with WithUserSecret.
func (r *Registrar) Enroll(ctx context.Context, o org.Org, userID, affiliation string) (*wallet.X509Identity, error) {
	if userID == "" {
		return nil, status.Errorf(status.SetupFailed, "user ID is required")
	}
	label := Label(o, userID)
	if id, ok := r.cached(label); ok {
		logger.Infof("An identity for the user %s already exists in the wallet", label)
		return id, nil
	}

	if _, err := r.EnrollAdmin(ctx, o); err != nil {
		return nil, err
	}
	if affiliation == "" {
		affiliation = o.Affiliation()
	}

	var secret string
	if r.opts.secret != nil {
		secret = r.opts.secret(userID)
	}
	request := &RegistrationRequest{Name: userID, Type: "client", Affiliation: affiliation, Secret: secret}
	v, err := r.invoke(ctx, func() (interface{}, error) {
		return r.ca.Register(ctx, o, request)
	})
	switch {
	case err == nil:
		logger.Debugf("Registered user %s", label)
		if issued := v.(string); issued != "" {
			secret = issued
		}
	case isAlreadyRegistered(err) && r.opts.secret != nil:
		logger.Infof("User %s is already registered, enrolling with its secret", label)
	case isAlreadyRegistered(err):
		return nil, setupFailed(err, "user %s is registered with the CA but missing from the wallet", label)
	default:
		return nil, setupFailed(err, "failed to register user %s", label)
	}
	if secret == "" {
		return nil, status.Errorf(status.SetupFailed, "the CA returned no enrollment secret for user %s", label)
	}

	id, err := r.enroll(ctx, o, userID, secret)
	if err != nil {
		return nil, setupFailed(err, "failed to enroll user %s", label)
	}
	if err := r.wallet.Put(label, id); err != nil {
		return nil, setupFailed(err, "failed to store user %s", label)
	}
	logger.Infof("Successfully registered and enrolled user %s and imported it into the wallet", label)
	return id, nil
}

// Identity returns a cached identity without contacting the CA.
func (r *Registrar) Identity(o org.Org, userID string) (*wallet.X509Identity, error) {
	label := Label(o, userID)
	id, ok := r.cached(label)
	if !ok {
		return nil, status.Errorf(status.SetupFailed,
			"an identity for the user %s does not exist in the wallet, register the user first", label)
	}
	return id, nil
}

func (r *Registrar) cached(label string) (*wallet.X509Identity, bool) {
	if !r.wallet.Exists(label) {
		return nil, false
	}
	id, err := r.wallet.GetX509(label)
	if err != nil {
		logger.Warnf("Ignoring unreadable wallet entry %s: %s", label, err)
		return nil, false
	}
	return id, true
}

func (r *Registrar) enroll(ctx context.Context, o org.Org, enrollmentID, secret string) (*wallet.X509Identity, error) {
	v, err := r.invoke(ctx, func() (interface{}, error) {
		return r.ca.Enroll(ctx, o, enrollmentID, secret)
	})
	if err != nil {
		return nil, err
	}
	id := v.(*wallet.X509Identity)
	if id.MSPID() != o.MSPID() {
		return nil, errors.Errorf("CA issued an identity for %s, expected %s", id.MSPID(), o.MSPID())
	}
	return id, nil
}

func (r *Registrar) invoke(ctx context.Context, invocation retry.Invocation) (interface{}, error) {
	invoker := retry.NewInvoker(retry.New(r.opts.retry),
		retry.WithBeforeRetry(func(err error) {
			logger.Warnf("Retrying CA request: %s", err)
		}))
	return invoker.Invoke(ctx, invocation)
}

func isAlreadyRegistered(err error) bool {
	return errors.Cause(err) == ErrAlreadyRegistered || strings.Contains(err.Error(), "is already registered")
}

func setupFailed(err error, format string, args ...interface{}) error {
	if status.Is(err, status.SetupFailed) {
		return err
	}
	return status.New(status.WorkflowStatus, status.SetupFailed.ToInt32(),
		errors.WithMessagef(err, format, args...).Error(), nil)
}
