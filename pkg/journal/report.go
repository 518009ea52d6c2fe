/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package journal

import (
	"context"
	"fmt"
	"io"

	"github.com/pkg/errors"
	yaml "gopkg.in/yaml.v2"
)

// Report summarizes recorded entries.
type Report struct {
	Total   int      `json:"total" yaml:"total"`
	Passed  int      `json:"passed" yaml:"passed"`
	Failed  int      `json:"failed" yaml:"failed"`
	Entries []*Entry `json:"entries" yaml:"entries"`
}

// NewReport counts passed and failed entries.
func NewReport(entries []*Entry) *Report {
	r := &Report{Total: len(entries), Entries: entries}
	for _, e := range entries {
		if e.Passed() {
			r.Passed++
		} else {
			r.Failed++
		}
	}
	return r
}

// Summarize reports on every entry of the journal.
func Summarize(ctx context.Context, j Journal) (*Report, error) {
	entries, err := j.Entries(ctx)
	if err != nil {
		return nil, err
	}
	return NewReport(entries), nil
}

// OK reports whether every entry passed.
func (r *Report) OK() bool {
	return r.Failed == 0
}

func (r *Report) String() string {
	return fmt.Sprintf("%d transitions, %d passed, %d failed", r.Total, r.Passed, r.Failed)
}

// WriteYAML writes the report as YAML.
func (r *Report) WriteYAML(w io.Writer) error {
	b, err := yaml.Marshal(r)
	if err != nil {
		return errors.Wrap(err, "failed to encode report")
	}
	_, err = w.Write(b)
	return errors.Wrap(err, "failed to write report")
}
