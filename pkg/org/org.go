/*
Copyright 2020 IBM All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package org defines the closed set of organizations that take part in the
// asset transfer network. Every endorsement decision is expressed in terms of
// these values, never free-form strings.
package org

import (
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// Org identifies a participating organization.
type Org int

const (
	// Unknown is the zero value and never a valid participant.
	Unknown Org = iota
	// Apple is the first organization of the test network.
	Apple
	// Fiserv is the second organization of the test network.
	Fiserv
)

var names = map[Org]string{
	Apple:  "Apple",
	Fiserv: "Fiserv",
}

// All returns every participating organization in declaration order.
func All() []Org {
	return []Org{Apple, Fiserv}
}

// Valid reports whether o is one of the participating organizations.
func (o Org) Valid() bool {
	_, ok := names[o]
	return ok
}

func (o Org) String() string {
	if n, ok := names[o]; ok {
		return n
	}
	return "Unknown"
}

// MSPID returns the membership service provider ID of the organization.
func (o Org) MSPID() string {
	if !o.Valid() {
		return ""
	}
	return o.String() + "MSP"
}

// Domain returns the DNS domain used by the organization's nodes.
func (o Org) Domain() string {
	return strings.ToLower(o.String()) + ".example.com"
}

// CAName returns the name of the organization's certificate authority.
func (o Org) CAName() string {
	return "ca." + o.Domain()
}

// Affiliation returns the default affiliation used to register users.
func (o Org) Affiliation() string {
	return strings.ToLower(o.String()) + ".department1"
}

// ImplicitCollection returns the name of the organization's implicit private data collection.
func (o Org) ImplicitCollection() string {
	return "_implicit_org_" + o.MSPID()
}

// PrivateCollection returns the name of the organization's collection in
// contracts that define one explicitly.
func (o Org) PrivateCollection() string {
	return o.MSPID() + "PrivateCollection"
}

// FromClientID returns the organization whose CA issued the client identity
// x509::<subject>::<issuer>.
func FromClientID(id string) (Org, error) {
	parts := strings.Split(id, "::")
	if len(parts) != 3 || parts[0] != "x509" {
		return Unknown, errors.Errorf("invalid client identity [%s]", id)
	}
	for _, attr := range strings.Split(parts[2], ",") {
		cn := strings.TrimPrefix(strings.TrimSpace(attr), "CN=")
		for _, o := range All() {
			if cn == o.CAName() {
				return o, nil
			}
		}
	}
	return Unknown, errors.Errorf("client identity [%s] was not issued by a known CA", id)
}

// Parse returns the organization matching name. The match is case-insensitive
// and accepts both the short name ("apple") and the MSP ID ("AppleMSP").
func Parse(name string) (Org, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	for _, o := range All() {
		if n == strings.ToLower(o.String()) || n == strings.ToLower(o.MSPID()) {
			return o, nil
		}
	}
	return Unknown, errors.Errorf("unknown organization [%s]: org must be one of %s", name, strings.Join(Names(), ", "))
}

// FromMSPID returns the organization owning the given MSP ID.
func FromMSPID(mspID string) (Org, error) {
	for _, o := range All() {
		if o.MSPID() == mspID {
			return o, nil
		}
	}
	return Unknown, errors.Errorf("unknown MSP ID [%s]", mspID)
}

// Names returns the short names of all organizations.
func Names() []string {
	return Strings(All()...)
}

// Strings maps the given organizations to their short names.
func Strings(orgs ...Org) []string {
	n := make([]string, 0, len(orgs))
	for _, o := range orgs {
		n = append(n, o.String())
	}
	return n
}

// MSPIDs maps the given organizations to their MSP IDs.
func MSPIDs(orgs ...Org) []string {
	ids := make([]string, 0, len(orgs))
	for _, o := range orgs {
		ids = append(ids, o.MSPID())
	}
	return ids
}

// Set returns the given organizations sorted and without duplicates.
// Invalid values are dropped.
func Set(orgs ...Org) []Org {
	seen := make(map[Org]bool, len(orgs))
	var set []Org
	for _, o := range orgs {
		if !o.Valid() || seen[o] {
			continue
		}
		seen[o] = true
		set = append(set, o)
	}
	sort.Slice(set, func(i, j int) bool { return set[i] < set[j] })
	return set
}

// Contains reports whether o is a member of orgs.
func Contains(orgs []Org, o Org) bool {
	for _, m := range orgs {
		if m == o {
			return true
		}
	}
	return false
}

// Equal reports whether a and b contain the same organizations.
func Equal(a, b []Org) bool {
	sa, sb := Set(a...), Set(b...)
	if len(sa) != len(sb) {
		return false
	}
	for i := range sa {
		if sa[i] != sb[i] {
			return false
		}
	}
	return true
}

// MarshalText encodes the organization as its short name.
func (o Org) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// UnmarshalText parses a short name or MSP ID.
func (o *Org) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*o = parsed
	return nil
}
