/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package endorsement

import (
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"github.com/Knetic/govaluate"
	"github.com/pkg/errors"

	"github.com/hyperledger/fabric-asset-transfer-go/pkg/org"
)

const (
	gateAnd   = "And"
	gateOr    = "Or"
	gateOutOf = "OutOf"

	// Majority requires more than half of all organizations.
	Majority = "MAJORITY"
)

var (
	principalRegex = regexp.MustCompile(`^([[:alnum:].-]+)[.](admin|member|client|peer)$`)
	noParamRegex   = regexp.MustCompile(`^No parameter '([^']+)' found[.]$`)
)

// Policy is a signature policy over organizations, written in the channel
// policy language: AND('AppleMSP.peer','FiservMSP.peer'), OR(...), OutOf(n, ...)
// or MAJORITY.
type Policy struct {
	text string
}

// NewPolicy parses and validates a policy string.
func NewPolicy(text string) (*Policy, error) {
	text = strings.TrimSpace(text)
	if strings.EqualFold(text, Majority) {
		text = majority()
	}
	p := &Policy{text: text}
	if _, err := p.eval(nil); err != nil {
		return nil, errors.WithMessagef(err, "invalid endorsement policy [%s]", text)
	}
	return p, nil
}

// MustPolicy is like NewPolicy but panics on an invalid policy.
func MustPolicy(text string) *Policy {
	p, err := NewPolicy(text)
	if err != nil {
		panic(err)
	}
	return p
}

// AllOf returns the policy requiring every given organization. It panics
// when no organization is given.
func AllOf(orgs ...org.Org) *Policy {
	return MustPolicy(gate("AND", orgs))
}

// AnyOf returns the policy requiring one of the given organizations. It
// panics when no organization is given.
func AnyOf(orgs ...org.Org) *Policy {
	return MustPolicy(gate("OR", orgs))
}

func gate(name string, orgs []org.Org) string {
	if len(org.Set(orgs...)) == 0 {
		panic(errors.Errorf("%s policy requires at least one organization", name))
	}
	principals := make([]string, 0, len(orgs))
	for _, o := range org.Set(orgs...) {
		principals = append(principals, fmt.Sprintf("'%s.peer'", o.MSPID()))
	}
	return name + "(" + strings.Join(principals, ",") + ")"
}

func majority() string {
	all := org.All()
	principals := make([]string, 0, len(all))
	for _, o := range all {
		principals = append(principals, fmt.Sprintf("'%s.peer'", o.MSPID()))
	}
	return fmt.Sprintf("OutOf(%d, %s)", len(all)/2+1, strings.Join(principals, ","))
}

func (p *Policy) String() string {
	return p.text
}

// SatisfiedBy reports whether endorsements from the given organizations satisfy the policy.
func (p *Policy) SatisfiedBy(orgs ...org.Org) bool {
	ok, err := p.eval(orgs)
	return err == nil && ok
}

func (p *Policy) eval(orgs []org.Org) (bool, error) {
	signed := make(map[string]bool, len(orgs))
	for _, o := range orgs {
		signed[o.MSPID()] = true
	}

	principal := func(arg interface{}) (bool, error) {
		switch t := arg.(type) {
		case bool:
			return t, nil
		case string:
			m := principalRegex.FindStringSubmatch(t)
			if m == nil {
				return false, errors.Errorf("error parsing principal %s", t)
			}
			if _, err := org.FromMSPID(m[1]); err != nil {
				return false, err
			}
			return signed[m[1]], nil
		default:
			return false, errors.Errorf("unexpected type %s", reflect.TypeOf(arg))
		}
	}

	outof := func(args ...interface{}) (interface{}, error) {
		if len(args) < 2 {
			return nil, errors.Errorf("expected at least two arguments to OutOf, given %d", len(args))
		}
		var n int
		switch t := args[0].(type) {
		case float64:
			n = int(t)
		case string:
			v, err := strconv.Atoi(t)
			if err != nil {
				return nil, errors.Errorf("invalid OutOf threshold %s", t)
			}
			n = v
		default:
			return nil, errors.Errorf("unexpected type %s", reflect.TypeOf(args[0]))
		}
		if n < 0 || n > len(args)-1 {
			return nil, errors.Errorf("invalid t-out-of-n predicate, t %d, n %d", n, len(args)-1)
		}
		count := 0
		for _, arg := range args[1:] {
			ok, err := principal(arg)
			if err != nil {
				return nil, err
			}
			if ok {
				count++
			}
		}
		return count >= n, nil
	}
	and := func(args ...interface{}) (interface{}, error) {
		return outof(append([]interface{}{float64(len(args))}, args...)...)
	}
	or := func(args ...interface{}) (interface{}, error) {
		return outof(append([]interface{}{float64(1)}, args...)...)
	}

	functions := map[string]govaluate.ExpressionFunction{}
	for name, fn := range map[string]govaluate.ExpressionFunction{gateAnd: and, gateOr: or, gateOutOf: outof} {
		functions[name] = fn
		functions[strings.ToLower(name)] = fn
		functions[strings.ToUpper(name)] = fn
	}

	expr, err := govaluate.NewEvaluableExpressionWithFunctions(p.text, functions)
	if err != nil {
		return false, err
	}
	res, err := expr.Evaluate(map[string]interface{}{})
	if err != nil {
		if m := noParamRegex.FindStringSubmatch(err.Error()); len(m) == 2 {
			return false, errors.Errorf("unrecognized token '%s' in policy string", m[1])
		}
		return false, err
	}
	ok, isBool := res.(bool)
	if !isBool {
		return false, errors.Errorf("policy does not evaluate to a gate: %v", res)
	}
	return ok, nil
}
