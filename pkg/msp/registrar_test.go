/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package msp_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperledger/fabric-asset-transfer-go/pkg/common/errors/retry"
	"github.com/hyperledger/fabric-asset-transfer-go/pkg/common/errors/status"
	"github.com/hyperledger/fabric-asset-transfer-go/pkg/ledger/simulator"
	"github.com/hyperledger/fabric-asset-transfer-go/pkg/msp"
	"github.com/hyperledger/fabric-asset-transfer-go/pkg/org"
	"github.com/hyperledger/fabric-asset-transfer-go/pkg/wallet"
)

var fastRetry = retry.Opts{
	Attempts:       3,
	InitialBackoff: time.Millisecond,
	MaxBackoff:     5 * time.Millisecond,
	BackoffFactor:  2,
}

// flakyCA fails the first failures calls of each kind with an unavailable status.
type flakyCA struct {
	mu        sync.Mutex
	failures  int
	registers int
	enrolls   int
	register  error
}

func (ca *flakyCA) Register(ctx context.Context, o org.Org, request *msp.RegistrationRequest) (string, error) {
	ca.mu.Lock()
	defer ca.mu.Unlock()
	ca.registers++
	if ca.registers <= ca.failures {
		return "", status.Errorf(status.LedgerUnavailable, "connection refused")
	}
	if ca.register != nil {
		return "", ca.register
	}
	if request.Secret != "" {
		return request.Secret, nil
	}
	return "issued", nil
}

func (ca *flakyCA) Enroll(ctx context.Context, o org.Org, enrollmentID, secret string) (*wallet.X509Identity, error) {
	ca.mu.Lock()
	defer ca.mu.Unlock()
	ca.enrolls++
	if ca.enrolls <= ca.failures {
		return nil, status.Errorf(status.LedgerUnavailable, "connection refused")
	}
	return wallet.NewX509Identity(o.MSPID(), "cert:"+enrollmentID+":"+secret, "key"), nil
}

func TestEnroll(t *testing.T) {
	w := wallet.NewInMemoryWallet()
	r := msp.NewRegistrar(simulator.NewCA(), w)

	id, err := r.Enroll(context.Background(), org.Apple, "appUser", "")
	require.NoError(t, err)
	assert.Equal(t, "AppleMSP", id.MSPID())
	assert.Contains(t, id.Certificate(), "BEGIN CERTIFICATE")
	assert.Contains(t, id.Key(), "PRIVATE KEY")

	assert.True(t, w.Exists("admin@Apple"))
	assert.True(t, w.Exists("appUser@Apple"))
	assert.False(t, w.Exists("appUser@Fiserv"))

	again, err := r.Enroll(context.Background(), org.Apple, "appUser", "")
	require.NoError(t, err)
	assert.Equal(t, id.Certificate(), again.Certificate())

	cached, err := r.Identity(org.Apple, "appUser")
	require.NoError(t, err)
	assert.Equal(t, id.Certificate(), cached.Certificate())
}

func TestEnrollAlreadyRegistered(t *testing.T) {
	ca := simulator.NewCA()

	_, err := msp.NewRegistrar(ca, wallet.NewInMemoryWallet()).Enroll(context.Background(), org.Fiserv, "appUser", "")
	require.NoError(t, err)

	// A fresh wallet forgets the identity but the CA still knows it.
	_, err = msp.NewRegistrar(ca, wallet.NewInMemoryWallet()).Enroll(context.Background(), org.Fiserv, "appUser", "")
	require.Error(t, err)
	assert.True(t, status.Is(err, status.SetupFailed))
	assert.Contains(t, err.Error(), "missing from the wallet")
}

func TestEnrollWithUserSecret(t *testing.T) {
	ca := simulator.NewCA()
	secret := msp.WithUserSecret(func(userID string) string { return userID + "-secret" })

	_, err := msp.NewRegistrar(ca, wallet.NewInMemoryWallet(), secret).Enroll(context.Background(), org.Fiserv, "appUser", "")
	require.NoError(t, err)

	id, err := msp.NewRegistrar(ca, wallet.NewInMemoryWallet(), secret).Enroll(context.Background(), org.Fiserv, "appUser", "")
	require.NoError(t, err)
	assert.Equal(t, "FiservMSP", id.MSPID())

	_, err = ca.Enroll(context.Background(), org.Fiserv, "appUser", "appUserpw")
	assert.Error(t, err)
}

func TestEnrollUsesIssuedSecret(t *testing.T) {
	ca := &flakyCA{}
	r := msp.NewRegistrar(ca, wallet.NewInMemoryWallet())

	id, err := r.Enroll(context.Background(), org.Apple, "appUser", "")
	require.NoError(t, err)
	assert.Equal(t, "cert:appUser:issued", id.Certificate())

	_, err = msp.NewRegistrar(&emptySecretCA{}, wallet.NewInMemoryWallet()).Enroll(context.Background(), org.Apple, "appUser", "")
	require.Error(t, err)
	assert.True(t, status.Is(err, status.SetupFailed))
}

// emptySecretCA registers identities without returning a secret.
type emptySecretCA struct {
	flakyCA
}

func (ca *emptySecretCA) Register(ctx context.Context, o org.Org, request *msp.RegistrationRequest) (string, error) {
	return "", nil
}

func TestEnrollRetriesUnavailableCA(t *testing.T) {
	ca := &flakyCA{failures: 2}
	r := msp.NewRegistrar(ca, wallet.NewInMemoryWallet(), msp.WithRetry(fastRetry))

	id, err := r.Enroll(context.Background(), org.Apple, "appUser", "")
	require.NoError(t, err)
	assert.Equal(t, "cert:appUser:issued", id.Certificate())
	assert.Equal(t, 3, ca.registers)
}

func TestEnrollFailures(t *testing.T) {
	_, err := msp.NewRegistrar(&flakyCA{}, wallet.NewInMemoryWallet()).Enroll(context.Background(), org.Apple, "", "")
	assert.True(t, status.Is(err, status.SetupFailed))

	ca := &flakyCA{failures: 10}
	_, err = msp.NewRegistrar(ca, wallet.NewInMemoryWallet(), msp.WithRetry(fastRetry)).Enroll(context.Background(), org.Apple, "appUser", "")
	require.Error(t, err)
	assert.True(t, status.Is(err, status.SetupFailed))
	assert.Contains(t, err.Error(), "admin@Apple")

	ca = &flakyCA{register: errors.New("affiliation not found")}
	_, err = msp.NewRegistrar(ca, wallet.NewInMemoryWallet(), msp.WithRetry(fastRetry)).Enroll(context.Background(), org.Apple, "appUser", "")
	require.Error(t, err)
	assert.True(t, status.Is(err, status.SetupFailed))
	assert.Contains(t, err.Error(), "affiliation not found")
	assert.Equal(t, 1, ca.registers)

	ca = &flakyCA{register: errors.WithMessage(msp.ErrAlreadyRegistered, "identity 'appUser'")}
	_, err = msp.NewRegistrar(ca, wallet.NewInMemoryWallet()).Enroll(context.Background(), org.Apple, "appUser", "")
	assert.True(t, status.Is(err, status.SetupFailed))
	_, err = msp.NewRegistrar(ca, wallet.NewInMemoryWallet(),
		msp.WithUserSecret(func(string) string { return "known" })).Enroll(context.Background(), org.Apple, "appUser", "")
	assert.NoError(t, err)
}

func TestIdentityNotEnrolled(t *testing.T) {
	r := msp.NewRegistrar(simulator.NewCA(), wallet.NewInMemoryWallet())
	_, err := r.Identity(org.Apple, "appUser")
	require.Error(t, err)
	assert.True(t, status.Is(err, status.SetupFailed))
	assert.Contains(t, err.Error(), "appUser@Apple")
}

func TestAdminOptions(t *testing.T) {
	ca := simulator.NewCA()
	r := msp.NewRegistrar(ca, wallet.NewInMemoryWallet(), msp.WithAdmin("root", "rootpw"), msp.WithRetry(fastRetry))
	_, err := r.EnrollAdmin(context.Background(), org.Apple)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "authentication failure")
}
