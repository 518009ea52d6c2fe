/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package fabric

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperledger/fabric-asset-transfer-go/pkg/common/errors/status"
	"github.com/hyperledger/fabric-asset-transfer-go/pkg/config"
	"github.com/hyperledger/fabric-asset-transfer-go/pkg/ledger"
	"github.com/hyperledger/fabric-asset-transfer-go/pkg/msp"
	"github.com/hyperledger/fabric-asset-transfer-go/pkg/org"
	"github.com/hyperledger/fabric-asset-transfer-go/pkg/wallet"
)

func testSettings() *config.Settings {
	return &config.Settings{
		Channel: "mychannel",
		Organizations: map[org.Org]config.OrgSettings{
			org.Apple:  {MSPID: "AppleMSP", Peers: []string{"peer0.apple.example.com", "peer1.apple.example.com"}},
			org.Fiserv: {MSPID: "FiservMSP", CA: "ca-fiserv"},
		},
		Ledger: config.LedgerSettings{Timeout: time.Second},
	}
}

func TestConnectValidation(t *testing.T) {
	c := NewConnector(testSettings())
	id := ledger.Identity{Org: org.Apple, Label: "appUser"}

	_, err := c.Connect(context.Background(), id, ledger.DiscoveryOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "has no credential")

	id.Credential = wallet.NewX509Identity("AppleMSP", "cert", "key")
	_, err = c.Connect(context.Background(), id, ledger.DiscoveryOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no connection profile configured for Apple")

	s := testSettings()
	apple := s.Organizations[org.Apple]
	apple.ConnectionProfile = filepath.Join(t.TempDir(), "missing.yaml")
	s.Organizations[org.Apple] = apple
	_, err = NewConnector(s).Connect(context.Background(), id, ledger.DiscoveryOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection profile of Apple")
}

func TestPeers(t *testing.T) {
	c := NewConnector(testSettings())
	assert.Equal(t, []string{"peer0.apple.example.com", "peer1.apple.example.com"}, c.peers(org.Apple))
	assert.Equal(t, []string{"peer0.fiserv.example.com"}, c.peers(org.Fiserv))
}

func TestCAName(t *testing.T) {
	ca := NewCA(testSettings())
	assert.Equal(t, "ca.apple.example.com", ca.caName(org.Apple))
	assert.Equal(t, "ca-fiserv", ca.caName(org.Fiserv))

	_, err := ca.Register(context.Background(), org.Apple, &msp.RegistrationRequest{Name: "appUser"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no connection profile configured for Apple")
}

func TestReadPrivateKey(t *testing.T) {
	dir := t.TempDir()
	ski := []byte{0xca, 0xfe}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cafe_sk"), []byte("PEM"), 0600))

	key, err := readPrivateKey(dir, ski)
	require.NoError(t, err)
	assert.Equal(t, "PEM", string(key))

	_, err = readPrivateKey(dir, []byte{0xbe, 0xef})
	assert.Error(t, err)

	_, err = readPrivateKey(dir, nil)
	assert.Error(t, err)
}

func TestClassifyCAError(t *testing.T) {
	assert.NoError(t, classifyCAError(nil))

	err := classifyCAError(errors.New("dial tcp 127.0.0.1:7054: connect: connection refused"))
	assert.True(t, status.Is(err, status.LedgerUnavailable))

	err = classifyCAError(errors.New("Authentication failure"))
	assert.False(t, status.Is(err, status.LedgerUnavailable))
}

func TestAwait(t *testing.T) {
	payload, err := await(context.Background(), func() ([]byte, error) { return []byte("ok"), nil })
	require.NoError(t, err)
	assert.Equal(t, "ok", string(payload))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	block := make(chan struct{})
	defer close(block)
	_, err = await(ctx, func() ([]byte, error) {
		<-block
		return nil, nil
	})
	assert.Equal(t, context.DeadlineExceeded, errors.Cause(err))

	_, err = await(context.Background(), func() ([]byte, error) {
		return nil, errors.New("rpc error: code = DeadlineExceeded desc = context deadline exceeded")
	})
	assert.Equal(t, context.DeadlineExceeded, errors.Cause(err))
}

func TestDialClosesLateConnection(t *testing.T) {
	conn, err := dial(context.Background(), func() (*connection, error) { return &connection{}, nil }, func(*connection) {
		t.Fatal("an awaited connection must not be released")
	})
	require.NoError(t, err)
	assert.NotNil(t, conn)

	ctx, cancel := context.WithCancel(context.Background())
	opened := make(chan struct{})
	released := make(chan *connection, 1)
	late := &connection{}
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	_, err = dial(ctx, func() (*connection, error) {
		<-ctx.Done()
		<-opened
		return late, nil
	}, func(c *connection) { released <- c })
	assert.Equal(t, context.Canceled, errors.Cause(err))

	close(opened)
	select {
	case c := <-released:
		assert.Same(t, late, c)
	case <-time.After(time.Second):
		t.Fatal("connection opened after abort was not released")
	}

	ctx, cancel = context.WithCancel(context.Background())
	cancel()
	fail := make(chan struct{})
	_, err = dial(ctx, func() (*connection, error) {
		defer close(fail)
		return nil, errors.New("refused")
	}, func(*connection) { t.Error("a failed connection must not be released") })
	require.Error(t, err)
	<-fail
}
