/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package logging

import (
	"bytes"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var moduleName = "module-xyz"
var moduleName2 = "module-xyz-deftest"

func resetLoggerInstance() {
	loggerProviderInstance = nil
	loggerProviderOnce = sync.Once{}
	moduleLevels.reset()
}

func TestLoggingWithZapProvider(t *testing.T) {
	var buf bytes.Buffer
	resetLoggerInstance()
	Initialize(NewZapProvider(&buf))

	logger := NewLogger(moduleName)
	logger.Infof("submitting %s", "CreateAsset")
	assert.Contains(t, buf.String(), "INFO")
	assert.Contains(t, buf.String(), moduleName)
	assert.Contains(t, buf.String(), "submitting CreateAsset")

	buf.Reset()
	logger.Debug("hidden")
	assert.Empty(t, buf.String(), "debug output is off at the default INFO level")

	SetLevel(moduleName, DEBUG)
	logger.Debug("visible", 42)
	assert.Contains(t, buf.String(), "visible 42")

	buf.Reset()
	logger2 := NewLogger(moduleName2)
	logger2.Warnf("denied: %s", "policy failure")
	logger2.Errorf("boom")
	assert.Contains(t, buf.String(), "WARN")
	assert.Contains(t, buf.String(), "denied: policy failure")
	assert.Contains(t, buf.String(), "ERROR")
}

func TestLevels(t *testing.T) {
	resetLoggerInstance()

	assert.Equal(t, INFO, GetLevel("any"))
	SetLevel("", WARNING)
	assert.Equal(t, WARNING, GetLevel("any"))
	assert.False(t, IsEnabledFor("any", INFO))
	SetLevel("any", DEBUG)
	assert.True(t, IsEnabledFor("any", DEBUG))
	assert.Equal(t, "WARNING", WARNING.String())
	assert.Equal(t, "UNKNOWN", Level(17).String())
}

func TestLogLevel(t *testing.T) {
	for s, want := range map[string]Level{"debug": DEBUG, "INFO": INFO, "warn": WARNING, "Warning": WARNING, "error": ERROR, "critical": CRITICAL} {
		l, err := LogLevel(s)
		require.NoError(t, err)
		assert.Equal(t, want, l, s)
	}
	_, err := LogLevel("chatty")
	assert.Error(t, err)
}

func TestApplySpec(t *testing.T) {
	resetLoggerInstance()

	require.NoError(t, ApplySpec("assettransfer/ledger,assettransfer/scenario=debug:warning"))
	assert.Equal(t, DEBUG, GetLevel("assettransfer/ledger"))
	assert.Equal(t, DEBUG, GetLevel("assettransfer/scenario"))
	assert.Equal(t, WARNING, GetLevel("assettransfer/journal"))

	assert.Error(t, ApplySpec("x=loud"))
}
