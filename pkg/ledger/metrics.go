/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package ledger

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hyperledger/fabric-asset-transfer-go/pkg/common/errors/status"
	"github.com/hyperledger/fabric-asset-transfer-go/pkg/org"
)

const namespace = "assettransfer"

var (
	callLabels = []string{"org", "chaincode", "fcn"}
	failLabels = []string{"org", "chaincode", "fcn", "fail"}
)

// ClientMetrics contains the metrics recorded by ledger clients
type ClientMetrics struct {
	QueriesReceived    *prometheus.CounterVec
	QueriesFailed      *prometheus.CounterVec
	QueryDuration      *prometheus.HistogramVec
	ExecutionsReceived *prometheus.CounterVec
	ExecutionsFailed   *prometheus.CounterVec
	ExecutionDuration  *prometheus.HistogramVec
}

// NewClientMetrics builds a new instance of ClientMetrics and registers it
// with reg when reg is not nil.
func NewClientMetrics(reg prometheus.Registerer) (*ClientMetrics, error) {
	m := &ClientMetrics{
		QueriesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "queries_received",
			Help:      "The number of ledger evaluations received.",
		}, callLabels),
		QueriesFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "queries_failed",
			Help:      "The number of ledger evaluations that failed, by status code.",
		}, failLabels),
		QueryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "query_duration_seconds",
			Help:      "The time to complete a ledger evaluation.",
			Buckets:   prometheus.DefBuckets,
		}, callLabels),
		ExecutionsReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "executions_received",
			Help:      "The number of ledger submissions received.",
		}, callLabels),
		ExecutionsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "executions_failed",
			Help:      "The number of ledger submissions that failed, by status code.",
		}, failLabels),
		ExecutionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "execution_duration_seconds",
			Help:      "The time to complete a ledger submission, including commit.",
			Buckets:   prometheus.DefBuckets,
		}, callLabels),
	}

	if reg == nil {
		return m, nil
	}
	for _, c := range []prometheus.Collector{m.QueriesReceived, m.QueriesFailed, m.QueryDuration,
		m.ExecutionsReceived, m.ExecutionsFailed, m.ExecutionDuration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *ClientMetrics) observeExecution(o org.Org, chaincode, fcn string, start time.Time, err error) {
	if m == nil {
		return
	}
	m.ExecutionsReceived.WithLabelValues(o.String(), chaincode, fcn).Inc()
	m.ExecutionDuration.WithLabelValues(o.String(), chaincode, fcn).Observe(time.Since(start).Seconds())
	if err != nil {
		m.ExecutionsFailed.WithLabelValues(o.String(), chaincode, fcn, status.CodeOf(err).String()).Inc()
	}
}

func (m *ClientMetrics) observeQuery(o org.Org, chaincode, fcn string, start time.Time, err error) {
	if m == nil {
		return
	}
	m.QueriesReceived.WithLabelValues(o.String(), chaincode, fcn).Inc()
	m.QueryDuration.WithLabelValues(o.String(), chaincode, fcn).Observe(time.Since(start).Seconds())
	if err != nil {
		m.QueriesFailed.WithLabelValues(o.String(), chaincode, fcn, status.CodeOf(err).String()).Inc()
	}
}
