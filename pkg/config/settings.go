/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package config

import (
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/hyperledger/fabric-asset-transfer-go/pkg/common/logging"
	"github.com/hyperledger/fabric-asset-transfer-go/pkg/config/lookup"
	"github.com/hyperledger/fabric-asset-transfer-go/pkg/org"
)

// Ledger modes
const (
	LedgerModeFabric    = "fabric"
	LedgerModeSimulator = "simulator"
)

// Wallet store types
const (
	WalletFilesystem = "filesystem"
	WalletMemory     = "memory"
	WalletVault      = "vault"
)

var defaults = map[string]interface{}{
	"channel":               "mychannel",
	"chaincode.dialect":     "sbe",
	"ledger.mode":           LedgerModeSimulator,
	"ledger.timeout":        "30s",
	"wallet.type":           WalletMemory,
	"wallet.path":           "wallet",
	"wallet.vault.path":     "assettransfer",
	"logging.level":         "info",
	"discovery.enabled":     true,
	"discovery.asLocalhost": true,
}

// Settings is the typed view of the configuration.
type Settings struct {
	Channel       string
	Chaincode     ChaincodeSettings
	Organizations map[org.Org]OrgSettings
	Wallet        WalletSettings
	Ledger        LedgerSettings
	Discovery     DiscoverySettings
	Journal       JournalSettings
	Operations    OperationsSettings
	Logging       LoggingSettings
}

// ChaincodeSettings selects the deployed contract.
type ChaincodeSettings struct {
	// Name of the deployed chaincode. Defaults to the dialect name.
	Name string
	// Dialect is the contract flavour: sbe, secured or private.
	Dialect string
	// Policy is the chaincode-wide endorsement policy expression over MSP IDs.
	// Empty means the dialect's default.
	Policy string
}

// OrgSettings holds per-organization connection and identity settings.
type OrgSettings struct {
	MSPID             string `mapstructure:"mspid"`
	ConnectionProfile string `mapstructure:"connectionProfile"`
	CA                string `mapstructure:"ca"`
	Affiliation       string `mapstructure:"affiliation"`
	Peers             []string
	// Wallet overrides wallet.path for this organization.
	Wallet string
}

// WalletSettings selects the identity store.
type WalletSettings struct {
	Type  string
	Path  string
	Vault VaultSettings
}

// VaultSettings configures the Vault wallet store.
type VaultSettings struct {
	Address string
	Token   string
	Path    string
}

// LedgerSettings selects the ledger implementation.
type LedgerSettings struct {
	Mode    string
	Timeout time.Duration
}

// DiscoverySettings are passed to the ledger connector.
type DiscoverySettings struct {
	Enabled     bool
	AsLocalhost bool `mapstructure:"asLocalhost"`
}

// JournalSettings configures the outcome journal. An empty path keeps
// outcomes in memory.
type JournalSettings struct {
	Path string
}

// OperationsSettings configures the operations HTTP server. An empty
// address disables it.
type OperationsSettings struct {
	ListenAddress string `mapstructure:"listenAddress"`
}

// LoggingSettings configures module log levels.
type LoggingSettings struct {
	Level string
}

// Load reads the configuration from the given provider, fills per-organization
// defaults, validates it and applies the logging level.
func Load(provider Provider) (*Settings, error) {
	backends, err := provider()
	if err != nil {
		return nil, err
	}
	l := lookup.New(backends...)

	s := &Settings{
		Channel:       l.GetString("channel"),
		Organizations: make(map[org.Org]OrgSettings),
	}
	sections := map[string]interface{}{
		"chaincode":  &s.Chaincode,
		"wallet":     &s.Wallet,
		"ledger":     &s.Ledger,
		"discovery":  &s.Discovery,
		"journal":    &s.Journal,
		"operations": &s.Operations,
		"logging":    &s.Logging,
	}
	for key, target := range sections {
		if err := l.UnmarshalKey(key, target); err != nil {
			return nil, errors.Wrapf(err, "invalid %s configuration", key)
		}
	}
	// defaults are not visible to UnmarshalKey when the section is absent
	s.Ledger.Mode = l.GetLowerString("ledger.mode")
	s.Ledger.Timeout = l.GetDuration("ledger.timeout")
	s.Wallet.Type = l.GetLowerString("wallet.type")
	s.Wallet.Path = SubstPath(l.GetString("wallet.path"))
	s.Chaincode.Dialect = l.GetLowerString("chaincode.dialect")
	s.Logging.Level = l.GetString("logging.level")
	s.Journal.Path = SubstPath(s.Journal.Path)

	if err := loadOrganizations(l, s); err != nil {
		return nil, err
	}
	if s.Chaincode.Name == "" {
		s.Chaincode.Name = s.Chaincode.Dialect
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}

	if err := logging.ApplySpec(s.Logging.Level); err != nil {
		return nil, errors.WithMessage(err, "invalid logging.level")
	}
	return s, nil
}

func loadOrganizations(l *lookup.ConfigLookup, s *Settings) error {
	raw := map[string]OrgSettings{}
	if err := l.UnmarshalKey("organizations", &raw); err != nil {
		return errors.Wrap(err, "invalid organizations configuration")
	}
	for name, oc := range raw {
		o, err := org.Parse(name)
		if err != nil {
			return errors.WithMessage(err, "invalid organizations configuration")
		}
		s.Organizations[o] = oc
	}
	for _, o := range org.All() {
		oc := s.Organizations[o]
		if oc.MSPID == "" {
			oc.MSPID = o.MSPID()
		}
		if oc.CA == "" {
			oc.CA = o.CAName()
		}
		if oc.Affiliation == "" {
			oc.Affiliation = o.Affiliation()
		}
		if len(oc.Peers) == 0 {
			oc.Peers = []string{"peer0." + o.Domain()}
		}
		if oc.Wallet == "" {
			oc.Wallet = s.Wallet.Path
		}
		oc.Wallet = SubstPath(oc.Wallet)
		oc.ConnectionProfile = SubstPath(oc.ConnectionProfile)
		s.Organizations[o] = oc
	}
	return nil
}

// Validate checks the settings for unsupported values.
func (s *Settings) Validate() error {
	if s.Channel == "" {
		return errors.New("channel is required")
	}
	switch s.Ledger.Mode {
	case LedgerModeFabric, LedgerModeSimulator:
	default:
		return errors.Errorf("unsupported ledger.mode [%s]", s.Ledger.Mode)
	}
	switch s.Wallet.Type {
	case WalletFilesystem, WalletMemory:
	case WalletVault:
		if s.Wallet.Vault.Token == "" {
			return errors.New("wallet.vault.token is required for the vault wallet")
		}
	default:
		return errors.Errorf("unsupported wallet.type [%s]", s.Wallet.Type)
	}
	if s.Ledger.Timeout <= 0 {
		return errors.New("ledger.timeout must be positive")
	}
	if s.Ledger.Mode == LedgerModeFabric {
		for _, o := range org.All() {
			if s.Organizations[o].ConnectionProfile == "" {
				return errors.Errorf("organizations.%s.connectionProfile is required in fabric mode", strings.ToLower(o.String()))
			}
		}
	}
	return nil
}

// Org returns the settings of the given organization.
func (s *Settings) Org(o org.Org) OrgSettings {
	return s.Organizations[o]
}
