/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package config loads the asset transfer client configuration from YAML or
// JSON sources with environment variable overrides.
package config

import (
	"bytes"
	"io"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/hyperledger/fabric-asset-transfer-go/pkg/common/logging"
	"github.com/hyperledger/fabric-asset-transfer-go/pkg/config/lookup"
)

var logger = logging.NewLogger("assettransfer/config")

const (
	cmdRoot = "ASSET_TRANSFER"
)

type options struct {
	envPrefix string
	defaults  map[string]interface{}
}

// Option configures the package.
type Option func(opts *options) error

// Provider produces the configuration backends.
type Provider func() ([]lookup.Backend, error)

// FromReader loads configuration from in.
// configType can be "json" or "yaml".
func FromReader(in io.Reader, configType string, opts ...Option) Provider {
	return func() ([]lookup.Backend, error) {
		return initFromReader(in, configType, opts...)
	}
}

// FromFile reads from named config file
func FromFile(name string, opts ...Option) Provider {
	return func() ([]lookup.Backend, error) {
		if name == "" {
			return nil, errors.New("filename is required")
		}

		backend, err := newBackend(opts...)
		if err != nil {
			return nil, err
		}

		backend.configViper.SetConfigFile(name)
		if err := backend.configViper.MergeInConfig(); err != nil {
			return nil, errors.Wrapf(err, "loading config file failed: %s", name)
		}
		logger.Debugf("Loaded configuration from %s", name)

		return []lookup.Backend{backend}, nil
	}
}

// FromRaw will initialize the configs from a byte array
func FromRaw(configBytes []byte, configType string, opts ...Option) Provider {
	return func() ([]lookup.Backend, error) {
		return initFromReader(bytes.NewBuffer(configBytes), configType, opts...)
	}
}

// FromDefaults returns a provider containing only the built-in defaults and
// environment overrides.
func FromDefaults(opts ...Option) Provider {
	return func() ([]lookup.Backend, error) {
		backend, err := newBackend(opts...)
		if err != nil {
			return nil, err
		}
		return []lookup.Backend{backend}, nil
	}
}

func initFromReader(in io.Reader, configType string, opts ...Option) ([]lookup.Backend, error) {
	if configType == "" {
		return nil, errors.New("empty config type")
	}

	backend, err := newBackend(opts...)
	if err != nil {
		return nil, err
	}

	// viper must know the type to unmarshal a reader
	backend.configViper.SetConfigType(configType)
	if err := backend.configViper.MergeConfig(in); err != nil {
		return nil, errors.Wrap(err, "reading config failed")
	}

	return []lookup.Backend{backend}, nil
}

// WithEnvPrefix defines the prefix for environment variable overrides.
// See viper SetEnvPrefix for more information.
func WithEnvPrefix(prefix string) Option {
	return func(opts *options) error {
		if prefix == "" {
			return errors.New("env prefix must not be empty")
		}
		opts.envPrefix = prefix
		return nil
	}
}

// WithDefault sets a default value for key, overriding the built-in default.
func WithDefault(key string, value interface{}) Option {
	return func(opts *options) error {
		opts.defaults[key] = value
		return nil
	}
}

func newBackend(opts ...Option) (*defConfigBackend, error) {
	o := options{
		envPrefix: cmdRoot,
		defaults:  map[string]interface{}{},
	}
	for k, v := range defaults {
		o.defaults[k] = v
	}

	for _, option := range opts {
		if err := option(&o); err != nil {
			return nil, errors.WithMessage(err, "Error in options passed to create new config backend")
		}
	}

	v := newViper(o.envPrefix)
	for k, val := range o.defaults {
		v.SetDefault(k, val)
	}

	return &defConfigBackend{configViper: v}, nil
}

func newViper(cmdRootPrefix string) *viper.Viper {
	myViper := viper.New()
	myViper.SetEnvPrefix(cmdRootPrefix)
	myViper.AutomaticEnv()
	myViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	return myViper
}

// defConfigBackend represents the default config backend
type defConfigBackend struct {
	configViper *viper.Viper
}

// Lookup gets the config item value by Key
func (c *defConfigBackend) Lookup(key string) (interface{}, bool) {
	value := c.configViper.Get(key)
	if value == nil {
		return nil, false
	}
	return value, true
}
