/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package status defines metadata for errors returned by the asset transfer
// client. This information is used by the orchestrator and by callers to decide
// whether an error is an expected business outcome (a denied endorsement, a
// price mismatch) or a fault.
// Status codes are divided by group, where each group represents the component
// that produced them.
package status

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/hyperledger/fabric-asset-transfer-go/pkg/common/errors/multi"
	grpcstatus "google.golang.org/grpc/status"
)

// Status provides additional information about an unsuccessful operation.
// Essentially, this object contains metadata about an error.
type Status struct {
	// Group status group
	Group Group
	// Code status code
	Code int32
	// Message status message
	Message string
	// Details any additional status details
	Details []interface{}
}

// Group of status to help users infer status codes from various components
type Group int32

const (
	// UnknownStatus unknown status group
	UnknownStatus Group = iota

	// GRPCTransportStatus is the status associated with requests made over
	// gRPC connections. Codes are gRPC codes.
	GRPCTransportStatus

	// EndorserStatus status returned when proposal endorsement fails
	EndorserStatus
	// CommitStatus status returned when a transaction fails validation at commit
	CommitStatus
	// ChaincodeStatus defines the status codes returned by chaincode
	ChaincodeStatus
	// ClientStatus is a generic client status
	ClientStatus
	// WorkflowStatus status produced by the orchestration layer
	WorkflowStatus
)

// GroupName maps the groups in this packages to human-readable strings
var GroupName = map[int32]string{
	0: "Unknown",
	1: "gRPC Transport Status",
	2: "Endorser Status",
	3: "Commit Status",
	4: "Chaincode Status",
	5: "Client Status",
	6: "Workflow Status",
}

func (g Group) String() string {
	if s, ok := GroupName[int32(g)]; ok {
		return s
	}
	return UnknownStatus.String()
}

// FromError returns a Status representing err if available,
// otherwise it returns nil, false.
func FromError(err error) (s *Status, ok bool) {
	if err == nil {
		return &Status{Code: int32(OK)}, true
	}
	if s, ok := err.(*Status); ok {
		return s, true
	}
	unwrappedErr := errors.Cause(err)
	if s, ok := unwrappedErr.(*Status); ok {
		return s, true
	}
	if m, ok := unwrappedErr.(multi.Errors); ok {
		// Return all of the errors in the details
		var errors []interface{}
		for _, err := range m {
			errors = append(errors, err)
		}
		return New(ClientStatus, MultipleErrors.ToInt32(), m.Error(), errors), true
	}

	return nil, false
}

// CodeOf returns the status code carried by err. gRPC transport statuses and
// errors without status report Unknown.
func CodeOf(err error) Code {
	s, ok := FromError(err)
	if !ok || s.Group == GRPCTransportStatus {
		return Unknown
	}
	return ToCode(s.Code)
}

// Is reports whether err carries the given status code.
func Is(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}

func (s *Status) Error() string {
	return fmt.Sprintf("%s Code: (%d) %s. Description: %s", s.Group.String(), s.Code, s.codeString(), s.Message)
}

func (s *Status) codeString() string {
	switch s.Group {
	case GRPCTransportStatus:
		return ToGRPCStatusCode(s.Code).String()
	default:
		return ToCode(s.Code).String()
	}
}

// New returns a Status with the given parameters
func New(group Group, code int32, msg string, details []interface{}) *Status {
	return &Status{Group: group, Code: code, Message: msg, Details: details}
}

// Errorf returns a workflow Status with a formatted message
func Errorf(code Code, format string, args ...interface{}) *Status {
	return New(WorkflowStatus, code.ToInt32(), fmt.Sprintf(format, args...), nil)
}

// NewFromGRPCStatus new Status from gRPC status response
func NewFromGRPCStatus(s *grpcstatus.Status) *Status {
	if s == nil {
		return nil
	}
	details := make([]interface{}, len(s.Proto().Details))
	for i, detail := range s.Proto().Details {
		details[i] = detail
	}

	return &Status{Group: GRPCTransportStatus, Code: s.Proto().Code,
		Message: s.Message(), Details: details}
}

// NewFromChaincodeError returns Status when a chaincode error occurs
func NewFromChaincodeError(code int, message string) *Status {
	return &Status{Group: ChaincodeStatus, Code: int32(code),
		Message: message, Details: nil}
}
