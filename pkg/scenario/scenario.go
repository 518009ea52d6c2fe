/*
Copyright 2020 IBM All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package scenario runs scripted asset transfer flows between two
// organizations. Every step declares the status it expects, so denied
// endorsements and price mismatches are ordinary passing steps. A step that
// ends otherwise aborts the flow.
package scenario

import (
	"context"
	"io"

	"github.com/pkg/errors"
	yaml "gopkg.in/yaml.v2"

	"github.com/hyperledger/fabric-asset-transfer-go/pkg/assettransfer"
	"github.com/hyperledger/fabric-asset-transfer-go/pkg/common/errors/status"
	"github.com/hyperledger/fabric-asset-transfer-go/pkg/common/logging"
	"github.com/hyperledger/fabric-asset-transfer-go/pkg/org"
)

var logger = logging.NewLogger("assettransfer/scenario")

const (
	// NameSBE is the state-based endorsement flow.
	NameSBE = "sbe"
	// NameSecured is the secured agreement flow.
	NameSecured = "secured"
	// NamePrivate is the private data flow.
	NamePrivate = "private"
)

// Names returns the names of the available scenarios.
func Names() []string {
	return []string{NameSBE, NameSecured, NamePrivate}
}

// Step is one scripted action.
type Step struct {
	Name     string
	Expected status.Code
	run      func(ctx context.Context) (*assettransfer.Outcome, error)
}

// StepResult is the recorded result of a step.
type StepResult struct {
	Name     string `json:"name" yaml:"name"`
	Actor    string `json:"actor,omitempty" yaml:"actor,omitempty"`
	Scope    string `json:"scope,omitempty" yaml:"scope,omitempty"`
	Expected string `json:"expected" yaml:"expected"`
	Code     string `json:"code" yaml:"code"`
	Reason   string `json:"reason,omitempty" yaml:"reason,omitempty"`
	Passed   bool   `json:"passed" yaml:"passed"`
}

// Result is the report of a scenario run.
type Result struct {
	Scenario string        `json:"scenario" yaml:"scenario"`
	AssetID  string        `json:"assetId" yaml:"assetId"`
	Steps    []*StepResult `json:"steps" yaml:"steps"`
	// Skipped counts the steps not run after a failed step.
	Skipped int `json:"skipped" yaml:"skipped"`
	err     error
}

// Passed reports whether every step ended as expected.
func (r *Result) Passed() bool {
	return r.err == nil
}

// Err returns why the run failed, or nil.
func (r *Result) Err() error {
	return r.err
}

// WriteYAML writes the report as YAML.
func (r *Result) WriteYAML(w io.Writer) error {
	b, err := yaml.Marshal(r)
	if err != nil {
		return errors.Wrap(err, "failed to encode scenario result")
	}
	_, err = w.Write(b)
	return errors.Wrap(err, "failed to write scenario result")
}

// Option configures a scenario.
type Option func(s *Scenario)

// WithAssetID sets the asset key. A random key is used otherwise.
func WithAssetID(id string) Option {
	return func(s *Scenario) {
		s.assetID = id
	}
}

// WithOrgs sets the initial owner and the buyer of the asset.
func WithOrgs(owner, buyer org.Org) Option {
	return func(s *Scenario) {
		s.owner, s.buyer = owner, buyer
	}
}

// Scenario is an ordered list of steps over one asset.
type Scenario struct {
	name    string
	o       *assettransfer.Orchestrator
	assetID string
	owner   org.Org
	buyer   org.Org
	steps   []*Step
}

// New returns the named scenario.
func New(name string, o *assettransfer.Orchestrator, opts ...Option) (*Scenario, error) {
	switch name {
	case NameSBE:
		return SBE(o, opts...)
	case NameSecured:
		return Secured(o, opts...)
	case NamePrivate:
		return Private(o, opts...)
	default:
		return nil, errors.Errorf("unknown scenario [%s], expected one of %v", name, Names())
	}
}

func newScenario(name, dialect string, o *assettransfer.Orchestrator, opts []Option) (*Scenario, error) {
	if o == nil {
		return nil, errors.New("orchestrator is required")
	}
	if o.Dialect().Name() != dialect {
		return nil, errors.Errorf("scenario %s needs the %s contract, the orchestrator uses %s", name, dialect, o.Dialect().Name())
	}
	s := &Scenario{name: name, o: o, owner: org.Apple, buyer: org.Fiserv}
	for _, opt := range opts {
		opt(s)
	}
	if !s.owner.Valid() || !s.buyer.Valid() || s.owner == s.buyer {
		return nil, errors.Errorf("scenario %s needs two distinct organizations, got %s and %s", name, s.owner, s.buyer)
	}
	if s.assetID == "" {
		id, err := assettransfer.NewAssetID()
		if err != nil {
			return nil, err
		}
		s.assetID = id
	}
	return s, nil
}

// Name returns the scenario name.
func (s *Scenario) Name() string {
	return s.name
}

// AssetID returns the key of the asset the scenario drives.
func (s *Scenario) AssetID() string {
	return s.assetID
}

// Steps returns the scripted steps.
func (s *Scenario) Steps() []*Step {
	return append([]*Step(nil), s.steps...)
}

// Run executes the steps in order and stops at the first step that does not
// end with its expected status.
func (s *Scenario) Run(ctx context.Context) *Result {
	result := &Result{Scenario: s.name, AssetID: s.assetID}
	logger.Infof("running scenario %s on asset %s", s.name, s.assetID)
	for i, step := range s.steps {
		logger.Infof("--> %s", step.Name)
		outcome, err := step.run(ctx)
		sr, code := stepResult(step, outcome, err)
		result.Steps = append(result.Steps, sr)
		if sr.Passed {
			if code != status.OK {
				logger.Infof("*** %s as expected: %s", code, sr.Reason)
			}
			continue
		}

		result.Skipped = len(s.steps) - i - 1
		if err == nil {
			err = errors.Errorf("ended with %s", code)
		}
		result.err = errors.WithMessagef(err, "scenario %s failed at step %q, expected %s", s.name, step.Name, step.Expected)
		logger.Errorf("%s", result.err)
		return result
	}
	logger.Infof("scenario %s passed %d steps", s.name, len(result.Steps))
	return result
}

func stepResult(step *Step, outcome *assettransfer.Outcome, err error) (*StepResult, status.Code) {
	sr := &StepResult{Name: step.Name, Expected: step.Expected.String()}
	code := status.CodeOf(err)
	if err != nil {
		sr.Reason = err.Error()
	}
	if outcome != nil {
		sr.Actor = outcome.Actor.String()
		sr.Scope = outcome.Scope.String()
		// a consistency violation overrides the outcome of the transition
		if code != status.ConsistencyViolation {
			code = outcome.Code
			sr.Reason = outcome.Reason
		}
	}
	sr.Code = code.String()
	sr.Passed = code == step.Expected
	return sr, code
}

type transitionFunc func(ctx context.Context, expect assettransfer.TransitionOption) (*assettransfer.Outcome, error)

func transition(name string, expected status.Code, fn transitionFunc) *Step {
	return &Step{
		Name:     name,
		Expected: expected,
		run: func(ctx context.Context) (*assettransfer.Outcome, error) {
			return fn(ctx, assettransfer.Expect(expected))
		},
	}
}

func check(name string, fn func(ctx context.Context) error) *Step {
	return &Step{
		Name:     name,
		Expected: status.OK,
		run: func(ctx context.Context) (*assettransfer.Outcome, error) {
			return nil, fn(ctx)
		},
	}
}

func violation(format string, args ...interface{}) error {
	return status.Errorf(status.ConsistencyViolation, format, args...)
}
