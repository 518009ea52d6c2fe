/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package journal records the outcome of every asset transition so that runs
// can be reported and inspected after the fact.
package journal

import (
	"context"
	"sync"
	"time"

	"github.com/hyperledger/fabric-asset-transfer-go/pkg/assettransfer"
	"github.com/hyperledger/fabric-asset-transfer-go/pkg/common/logging"
)

var logger = logging.NewLogger("assettransfer/journal")

// Entry is the stored form of a transition outcome.
type Entry struct {
	AssetID  string        `json:"assetId" yaml:"assetId"`
	Kind     string        `json:"kind" yaml:"kind"`
	Actor    string        `json:"actor" yaml:"actor"`
	Scope    string        `json:"scope" yaml:"scope"`
	Expected string        `json:"expected" yaml:"expected"`
	Code     string        `json:"code" yaml:"code"`
	Reason   string        `json:"reason,omitempty" yaml:"reason,omitempty"`
	Time     time.Time     `json:"time" yaml:"time"`
	Duration time.Duration `json:"duration" yaml:"duration"`
}

// NewEntry converts an outcome.
func NewEntry(o *assettransfer.Outcome) *Entry {
	return &Entry{
		AssetID:  o.AssetID,
		Kind:     o.Kind.String(),
		Actor:    o.Actor.String(),
		Scope:    o.Scope.String(),
		Expected: o.Expected.String(),
		Code:     o.Code.String(),
		Reason:   o.Reason,
		Time:     o.Time.UTC(),
		Duration: o.Duration,
	}
}

// Passed reports whether the transition ended with the expected status.
func (e *Entry) Passed() bool {
	return e.Code == e.Expected
}

// Journal stores outcomes in the order they were recorded.
type Journal interface {
	assettransfer.Recorder
	Entries(ctx context.Context) ([]*Entry, error)
	Close() error
}

// Open returns a SQLite journal at path, or an in-memory journal when path
// is empty.
func Open(path string) (Journal, error) {
	if path == "" {
		return NewMemory(), nil
	}
	return OpenSQLite(path)
}

// Memory keeps entries in memory.
type Memory struct {
	mu      sync.RWMutex
	entries []*Entry
}

// NewMemory returns an empty in-memory journal.
func NewMemory() *Memory {
	return &Memory{}
}

// Record appends the outcome.
func (m *Memory) Record(_ context.Context, o *assettransfer.Outcome) error {
	e := NewEntry(o)
	m.mu.Lock()
	m.entries = append(m.entries, e)
	m.mu.Unlock()
	logger.Debugf("recorded %s of %s: %s", e.Kind, e.AssetID, e.Code)
	return nil
}

// Entries returns a copy of the recorded entries.
func (m *Memory) Entries(context.Context) ([]*Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entries := make([]*Entry, len(m.entries))
	for i, e := range m.entries {
		c := *e
		entries[i] = &c
	}
	return entries, nil
}

// Close is a no-op.
func (m *Memory) Close() error {
	return nil
}
