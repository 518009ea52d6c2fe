/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package operations

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperledger/fabric-asset-transfer-go/pkg/assettransfer"
	"github.com/hyperledger/fabric-asset-transfer-go/pkg/common/errors/status"
	"github.com/hyperledger/fabric-asset-transfer-go/pkg/endorsement"
	"github.com/hyperledger/fabric-asset-transfer-go/pkg/journal"
	"github.com/hyperledger/fabric-asset-transfer-go/pkg/org"
)

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealth(t *testing.T) {
	healthy := true
	s := New(Options{HealthChecks: map[string]HealthCheck{
		"ledger": func(context.Context) error {
			if healthy {
				return nil
			}
			return errors.New("gateway is closed")
		},
	}})

	rec := get(t, s.Handler(), "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"OK"}`, rec.Body.String())

	healthy = false
	rec = get(t, s.Handler(), "/healthz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"status":"Service Unavailable","failed_checks":{"ledger":"gateway is closed"}}`, rec.Body.String())
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "transitions_total", Help: "transitions"})
	reg.MustRegister(counter)
	counter.Add(3)

	rec := get(t, New(Options{Gatherer: reg}).Handler(), "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "transitions_total 3")
}

func TestOutcomes(t *testing.T) {
	j := journal.NewMemory()
	require.NoError(t, j.Record(context.Background(), &assettransfer.Outcome{
		AssetID: "asset-1", Kind: endorsement.Update, Actor: org.Fiserv, Scope: endorsement.Orgs(org.Fiserv),
		Expected: status.EndorsementDenied, Code: status.EndorsementDenied, Time: time.Now(),
	}))

	rec := get(t, New(Options{Journal: j}).Handler(), "/outcomes")
	require.Equal(t, http.StatusOK, rec.Code)
	var report journal.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, 1, report.Total)
	assert.Equal(t, 1, report.Passed)
	require.Len(t, report.Entries, 1)
	assert.Equal(t, "{Fiserv}", report.Entries[0].Scope)

	rec = get(t, New(Options{}).Handler(), "/outcomes")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"total":0`)
}

type brokenJournal struct{ journal.Journal }

func (brokenJournal) Entries(context.Context) ([]*journal.Entry, error) {
	return nil, errors.New("database is locked")
}

func TestOutcomesFailure(t *testing.T) {
	rec := get(t, New(Options{Journal: brokenJournal{}}).Handler(), "/outcomes")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "database is locked")
}

func TestStartStop(t *testing.T) {
	s := New(Options{})
	assert.Error(t, s.Start(), "no listen address")

	s = New(Options{ListenAddress: "127.0.0.1:0"})
	require.NoError(t, s.Start())
	assert.Error(t, s.Start(), "already started")

	resp, err := http.Get("http://" + s.Addr() + "/healthz")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"OK"}`, string(body))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
	assert.Empty(t, s.Addr())
	require.NoError(t, s.Stop(ctx))
}
