/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package status

import (
	"strconv"

	grpcCodes "google.golang.org/grpc/codes"
)

// Code represents a status code
type Code uint32

const (
	// OK is returned on success.
	OK Code = 0

	// Unknown represents status codes that are uncategorized or unknown
	Unknown Code = 1

	// SetupFailed is returned when identity enrollment or connection setup fails.
	// Setup failures abort the whole run.
	SetupFailed Code = 2

	// EndorsementDenied is returned when the ledger refuses a submission because the
	// required organizations did not (or could not) endorse it.
	EndorsementDenied Code = 3

	// PriceMismatch is returned when transfer preconditions are unmet: the seller and
	// buyer agreements are missing or disagree on the price.
	PriceMismatch Code = 4

	// ConsistencyViolation is returned when organizations observe divergent state
	ConsistencyViolation Code = 5

	// PayloadDecodeFailed is returned when transient data is malformed
	PayloadDecodeFailed Code = 6

	// LedgerUnavailable is returned when the ledger service cannot be reached
	LedgerUnavailable Code = 7

	// Timeout operation timed out
	Timeout Code = 8

	// NotFound is returned when an evaluated key does not exist
	NotFound Code = 9

	// AccessDenied is returned when an organization reads data it is not entitled to
	AccessDenied Code = 10

	// MultipleErrors multiple errors occurred
	MultipleErrors Code = 11

	// InvalidTransition is returned when a transition is not legal in the asset's current state
	InvalidTransition Code = 12

	// Unsupported is returned when the deployed contract has no function for a transition
	Unsupported Code = 13
)

// CodeName maps the codes in this packages to human-readable strings
var CodeName = map[int32]string{
	0:  "OK",
	1:  "UNKNOWN",
	2:  "SETUP_FAILED",
	3:  "ENDORSEMENT_DENIED",
	4:  "PRICE_MISMATCH",
	5:  "CONSISTENCY_VIOLATION",
	6:  "PAYLOAD_DECODE_FAILED",
	7:  "LEDGER_UNAVAILABLE",
	8:  "TIMEOUT",
	9:  "NOT_FOUND",
	10: "ACCESS_DENIED",
	11: "MULTIPLE_ERRORS",
	12: "INVALID_TRANSITION",
	13: "UNSUPPORTED",
}

// ToInt32 cast to int32
func (c Code) ToInt32() int32 {
	return int32(c)
}

// String representation of the code
func (c Code) String() string {
	if s, ok := CodeName[c.ToInt32()]; ok {
		return s
	}
	return strconv.Itoa(int(c))
}

// ParseCode returns the code with the given name, or Unknown.
func ParseCode(name string) Code {
	for c, n := range CodeName {
		if n == name {
			return Code(c)
		}
	}
	return Unknown
}

// ToCode cast to a status code
func ToCode(c int32) Code {
	return Code(c)
}

// ToGRPCStatusCode cast to gRPC status code
func ToGRPCStatusCode(c int32) grpcCodes.Code {
	return grpcCodes.Code(c)
}
