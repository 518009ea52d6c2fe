/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package simulator

import (
	"context"
	"crypto/x509"
	"sync"

	"github.com/cloudflare/cfssl/csr"
	"github.com/cloudflare/cfssl/helpers"
	"github.com/cloudflare/cfssl/initca"
	"github.com/cloudflare/cfssl/signer"
	"github.com/cloudflare/cfssl/signer/local"
	uuid "github.com/hashicorp/go-uuid"
	"github.com/pkg/errors"

	"github.com/hyperledger/fabric-asset-transfer-go/pkg/msp"
	"github.com/hyperledger/fabric-asset-transfer-go/pkg/org"
	"github.com/hyperledger/fabric-asset-transfer-go/pkg/wallet"
)

// CA is a development certificate authority with one self-signed root per
// organization. Each root is created on first use.
type CA struct {
	mu         sync.Mutex
	roots      map[org.Org]*local.Signer
	registered map[org.Org]map[string]string
}

var _ msp.CA = (*CA)(nil)

// NewCA returns a CA with the bootstrap admin registered for every organization.
func NewCA() *CA {
	ca := &CA{
		roots:      make(map[org.Org]*local.Signer),
		registered: make(map[org.Org]map[string]string),
	}
	for _, o := range org.All() {
		ca.registered[o] = map[string]string{msp.DefaultAdminID: msp.DefaultAdminSecret}
	}
	return ca
}

// Register records the identity and returns its secret.
func (ca *CA) Register(ctx context.Context, o org.Org, request *msp.RegistrationRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if request == nil || request.Name == "" {
		return "", errors.New("request.Name is required")
	}
	ca.mu.Lock()
	defer ca.mu.Unlock()

	ids, ok := ca.registered[o]
	if !ok {
		return "", errors.Errorf("no CA configured for organization %s", o)
	}
	if _, exists := ids[request.Name]; exists {
		return "", errors.WithMessagef(msp.ErrAlreadyRegistered, "identity '%s'", request.Name)
	}
	secret := request.Secret
	if secret == "" {
		generated, err := uuid.GenerateUUID()
		if err != nil {
			return "", errors.Wrap(err, "failed to generate enrollment secret")
		}
		secret = generated
	}
	ids[request.Name] = secret
	return secret, nil
}

// Enroll issues a client certificate signed by the organization's root.
func (ca *CA) Enroll(ctx context.Context, o org.Org, enrollmentID, secret string) (*wallet.X509Identity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ca.mu.Lock()
	defer ca.mu.Unlock()

	ids, ok := ca.registered[o]
	if !ok {
		return nil, errors.Errorf("no CA configured for organization %s", o)
	}
	if want, ok := ids[enrollmentID]; !ok || want != secret {
		return nil, errors.Errorf("authentication failure for identity '%s'", enrollmentID)
	}

	root, err := ca.root(o)
	if err != nil {
		return nil, err
	}
	csrPEM, key, err := csr.ParseRequest(&csr.CertificateRequest{
		CN:         enrollmentID,
		Names:      []csr.Name{{O: o.Domain(), OU: "client"}},
		KeyRequest: csr.NewKeyRequest(),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to generate key for %s", enrollmentID)
	}
	cert, err := root.Sign(signer.SignRequest{Request: string(csrPEM)})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to sign certificate for %s", enrollmentID)
	}
	return wallet.NewX509Identity(o.MSPID(), string(cert), string(key)), nil
}

// root returns the organization's signer. Callers hold ca.mu.
func (ca *CA) root(o org.Org) (*local.Signer, error) {
	if s, ok := ca.roots[o]; ok {
		return s, nil
	}
	certPEM, _, keyPEM, err := initca.New(&csr.CertificateRequest{
		CN:         o.CAName(),
		Names:      []csr.Name{{O: o.Domain()}},
		KeyRequest: csr.NewKeyRequest(),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to initialize CA %s", o.CAName())
	}
	cert, err := helpers.ParseCertificatePEM(certPEM)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse CA certificate")
	}
	key, err := helpers.ParsePrivateKeyPEM(keyPEM)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse CA key")
	}
	s, err := local.NewSigner(key, cert, signer.DefaultSigAlgo(key), nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create CA signer")
	}
	ca.roots[o] = s
	logger.Debugf("Initialized development CA %s", o.CAName())
	return s, nil
}

// RootCertificate returns the organization's root certificate.
func (ca *CA) RootCertificate(o org.Org) (*x509.Certificate, error) {
	ca.mu.Lock()
	defer ca.mu.Unlock()
	s, err := ca.root(o)
	if err != nil {
		return nil, err
	}
	return s.Certificate("", "")
}
