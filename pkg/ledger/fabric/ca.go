/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package fabric

import (
	"context"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"sync"

	camsp "github.com/hyperledger/fabric-sdk-go/pkg/client/msp"
	"github.com/hyperledger/fabric-sdk-go/pkg/core/config"
	"github.com/hyperledger/fabric-sdk-go/pkg/core/cryptosuite"
	"github.com/hyperledger/fabric-sdk-go/pkg/fabsdk"
	"github.com/pkg/errors"

	"github.com/hyperledger/fabric-asset-transfer-go/pkg/common/errors/status"
	settings "github.com/hyperledger/fabric-asset-transfer-go/pkg/config"
	"github.com/hyperledger/fabric-asset-transfer-go/pkg/msp"
	"github.com/hyperledger/fabric-asset-transfer-go/pkg/org"
	"github.com/hyperledger/fabric-asset-transfer-go/pkg/wallet"
)

// CA reaches each organization's Fabric CA through the SDK described by the
// organization's connection profile.
type CA struct {
	settings *settings.Settings

	mu   sync.Mutex
	sdks map[org.Org]*fabsdk.FabricSDK
}

var _ msp.CA = (*CA)(nil)

// NewCA returns a CA client for the given settings. SDK instances are
// created on first use.
func NewCA(s *settings.Settings) *CA {
	return &CA{settings: s, sdks: make(map[org.Org]*fabsdk.FabricSDK)}
}

// Register registers an identity with the organization's CA.
func (ca *CA) Register(ctx context.Context, o org.Org, request *msp.RegistrationRequest) (string, error) {
	if request == nil {
		return "", errors.New("registration request is required")
	}
	client, _, err := ca.client(o)
	if err != nil {
		return "", err
	}
	return call(ctx, func() (string, error) {
		secret, err := client.Register(&camsp.RegistrationRequest{
			Name:           request.Name,
			Type:           request.Type,
			MaxEnrollments: request.MaxEnrollments,
			Affiliation:    request.Affiliation,
			CAName:         ca.caName(o),
			Secret:         request.Secret,
		})
		if err != nil && strings.Contains(err.Error(), "is already registered") {
			return "", errors.WithMessage(msp.ErrAlreadyRegistered, err.Error())
		}
		return secret, classifyCAError(err)
	})
}

// Enroll enrolls the identity and reads its certificate and private key back
// from the SDK's credential stores.
func (ca *CA) Enroll(ctx context.Context, o org.Org, enrollmentID, secret string) (*wallet.X509Identity, error) {
	client, keyStore, err := ca.client(o)
	if err != nil {
		return nil, err
	}
	_, err = call(ctx, func() (string, error) {
		return "", classifyCAError(client.Enroll(enrollmentID, camsp.WithSecret(secret)))
	})
	if err != nil {
		return nil, err
	}

	signingIdentity, err := client.GetSigningIdentity(enrollmentID)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get signing identity for %s", enrollmentID)
	}
	key, err := readPrivateKey(keyStore, signingIdentity.PrivateKey().SKI())
	if err != nil {
		return nil, err
	}
	return wallet.NewX509Identity(o.MSPID(), string(signingIdentity.EnrollmentCertificate()), string(key)), nil
}

// Close releases every SDK instance.
func (ca *CA) Close() {
	ca.mu.Lock()
	defer ca.mu.Unlock()
	for o, sdk := range ca.sdks {
		sdk.Close()
		delete(ca.sdks, o)
	}
}

func (ca *CA) client(o org.Org) (*camsp.Client, string, error) {
	ca.mu.Lock()
	defer ca.mu.Unlock()

	sdk, ok := ca.sdks[o]
	if !ok {
		profile := ca.settings.Org(o).ConnectionProfile
		if profile == "" {
			return nil, "", errors.Errorf("no connection profile configured for %s", o)
		}
		var err error
		sdk, err = fabsdk.New(config.FromFile(profile))
		if err != nil {
			return nil, "", errors.Wrapf(err, "failed to create SDK for %s", o)
		}
		ca.sdks[o] = sdk
	}

	client, err := camsp.New(sdk.Context(), camsp.WithOrg(o.String()))
	if err != nil {
		return nil, "", errors.Wrapf(err, "failed to create CA client for %s", o)
	}
	backend, err := sdk.Config()
	if err != nil {
		return nil, "", errors.Wrap(err, "failed to read SDK configuration")
	}
	return client, cryptosuite.ConfigFromBackend(backend).KeyStorePath(), nil
}

func (ca *CA) caName(o org.Org) string {
	if name := ca.settings.Org(o).CA; name != "" {
		return name
	}
	return o.CAName()
}

// readPrivateKey reads a key written by the SDK's file key store, which names
// files after the hex encoded subject key identifier.
func readPrivateKey(keyStore string, ski []byte) ([]byte, error) {
	if len(ski) == 0 {
		return nil, errors.New("signing identity has no subject key identifier")
	}
	path := filepath.Join(keyStore, hex.EncodeToString(ski)+"_sk")
	key, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read private key %s", path)
	}
	return key, nil
}

// classifyCAError marks transport failures so that the registrar retries them.
func classifyCAError(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	for _, fragment := range []string{"connection refused", "no such host", "i/o timeout", "EOF"} {
		if strings.Contains(msg, fragment) {
			return status.New(status.WorkflowStatus, status.LedgerUnavailable.ToInt32(), msg, nil)
		}
	}
	return err
}

func call(ctx context.Context, fn func() (string, error)) (string, error) {
	type result struct {
		value string
		err   error
	}
	done := make(chan result, 1)
	go func() {
		v, err := fn()
		done <- result{v, err}
	}()
	select {
	case <-ctx.Done():
		return "", errors.Wrap(ctx.Err(), "CA request aborted")
	case r := <-done:
		return r.value, r.err
	}
}
