/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package operations serves the health, metrics and outcome endpoints of a
// running asset transfer process.
package operations

import (
	"context"
	"net"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hyperledger/fabric-asset-transfer-go/pkg/common/logging"
	"github.com/hyperledger/fabric-asset-transfer-go/pkg/journal"
)

var logger = logging.NewLogger("assettransfer/operations")

// HealthCheck reports an unhealthy dependency.
type HealthCheck func(ctx context.Context) error

// Options configures the operations system.
type Options struct {
	ListenAddress string
	// Gatherer defaults to the default prometheus registry.
	Gatherer prometheus.Gatherer
	// Journal backs /outcomes. Without one the endpoint reports nothing.
	Journal journal.Journal
	// HealthChecks run on every /healthz request.
	HealthChecks map[string]HealthCheck
}

// System is the operations HTTP server.
type System struct {
	opts     Options
	engine   *gin.Engine
	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
}

// New returns a system with its routes registered. It does not listen until
// Start is called.
func New(opts Options) *System {
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &System{opts: opts, engine: engine}
	engine.GET("/healthz", s.health)
	engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})))
	engine.GET("/outcomes", s.outcomes)
	return s
}

// Handler returns the HTTP handler serving every route.
func (s *System) Handler() http.Handler {
	return s.engine
}

// Start listens on the configured address and serves in the background.
func (s *System) Start() error {
	if s.opts.ListenAddress == "" {
		return errors.New("missing operations listenAddress option")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.server != nil {
		return errors.New("operations system already started")
	}
	listener, err := net.Listen("tcp", s.opts.ListenAddress)
	if err != nil {
		return errors.Wrapf(err, "failed to listen on %s", s.opts.ListenAddress)
	}
	s.listener = listener
	s.server = &http.Server{Handler: s.engine}
	go func(server *http.Server) {
		if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
			logger.Warnf("operations server stopped: %s", err)
		}
	}(s.server)
	logger.Infof("operations system listening on %s", listener.Addr())
	return nil
}

// Addr returns the address the system listens on, or empty when stopped.
func (s *System) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop shuts the server down, waiting for in-flight requests until ctx is done.
func (s *System) Stop(ctx context.Context) error {
	s.mu.Lock()
	server := s.server
	s.server, s.listener = nil, nil
	s.mu.Unlock()
	if server == nil {
		return nil
	}
	return errors.Wrap(server.Shutdown(ctx), "failed to stop operations system")
}

type healthStatus struct {
	Status       string            `json:"status"`
	FailedChecks map[string]string `json:"failed_checks,omitempty"`
}

func (s *System) health(c *gin.Context) {
	failed := map[string]string{}
	for name, check := range s.opts.HealthChecks {
		if err := check(c.Request.Context()); err != nil {
			failed[name] = err.Error()
		}
	}
	if len(failed) > 0 {
		logger.Warnf("health check failed: %v", failed)
		c.JSON(http.StatusServiceUnavailable, healthStatus{Status: "Service Unavailable", FailedChecks: failed})
		return
	}
	c.JSON(http.StatusOK, healthStatus{Status: "OK"})
}

func (s *System) outcomes(c *gin.Context) {
	if s.opts.Journal == nil {
		c.JSON(http.StatusOK, journal.NewReport(nil))
		return
	}
	report, err := journal.Summarize(c.Request.Context(), s.opts.Journal)
	if err != nil {
		logger.Errorf("failed to read journal: %s", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, report)
}
