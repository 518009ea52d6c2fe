/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package multi is an error type that holds multiple errors. These errors
// typically originate from operations that fan out to several organizations.
// For example, a consistency check that reads an asset as both organizations
// returns a multi error when both views disagree with the expected record.
package multi

import (
	"fmt"
	"strings"
)

// Errors is used to represent multiple errors
type Errors []error

// New Errors object with the given errors. Only non-nil errors are added.
func New(errs ...error) error {
	var m Errors
	for _, err := range errs {
		m = m.add(err)
	}
	return m.ToError()
}

// Append error to Errors. If the first arg is not an Errors object, one will be created
func Append(errs error, err error) error {
	m, ok := errs.(Errors)
	if !ok {
		return New(errs, err)
	}
	return m.add(err).ToError()
}

func (errs Errors) add(err error) Errors {
	if err == nil {
		return errs
	}
	if nested, ok := err.(Errors); ok {
		return append(errs, nested...)
	}
	return append(errs, err)
}

// ToError converts Errors to the error interface
// returns nil if no errors are present, a single error object if only one is present
func (errs Errors) ToError() error {
	switch len(errs) {
	case 0:
		return nil
	case 1:
		return errs[0]
	default:
		return errs
	}
}

// Unwrap returns the contained errors so that errors.Is and errors.As can inspect them.
func (errs Errors) Unwrap() []error {
	return errs
}

// Messages returns the message of every contained error
func (errs Errors) Messages() []string {
	msgs := make([]string, 0, len(errs))
	for _, err := range errs {
		msgs = append(msgs, err.Error())
	}
	return msgs
}

// Error implements the error interface to return a string representation of Errors
func (errs Errors) Error() string {
	switch len(errs) {
	case 0:
		return ""
	case 1:
		return errs[0].Error()
	default:
		return fmt.Sprintf("%d errors occurred: %s", len(errs), strings.Join(errs.Messages(), " - "))
	}
}
