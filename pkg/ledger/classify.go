/*
Copyright 2020 IBM All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package ledger

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	grpcCodes "google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"

	"github.com/hyperledger/fabric-asset-transfer-go/pkg/common/errors/status"
)

type callKind int

const (
	submitCall callKind = iota
	evaluateCall
)

// reason fragments reported by peers and contracts, matched case-insensitively
var (
	priceReasons = []string{
		"price does not match", "prices do not match", "price mismatch",
		"hasn't agreed", "has not agreed", "sale price", "bid price", "appraised value",
	}
	unavailableReasons = []string{
		"connection refused", "connection error", "unavailable", "no such host",
		"failed to connect", "transport is closing", "gateway is closed",
	}
	notFoundReasons = []string{"does not exist", "not found", "no asset"}
	deniedReasons   = []string{
		"not authorized", "access denied", "permission denied", "is not the owner",
		"does not have permission", "forbidden", "cannot read", "not a member",
	}
)

// classify maps a session error onto the workflow status taxonomy. The raw
// reason is kept as the status message.
func classify(kind callKind, err error) error {
	if err == nil {
		return nil
	}
	raw := err.Error()

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return newStatus(status.Timeout, raw)
	}

	if s, ok := status.FromError(err); ok {
		switch s.Group {
		case status.WorkflowStatus:
			return s
		case status.GRPCTransportStatus:
			if code, ok := fromGRPC(grpcCodes.Code(s.Code)); ok {
				return newStatus(code, raw)
			}
		}
	}
	if s, ok := grpcstatus.FromError(errors.Cause(err)); ok && s.Code() != grpcCodes.Unknown {
		if code, ok := fromGRPC(s.Code()); ok {
			return newStatus(code, raw)
		}
	}

	lower := strings.ToLower(raw)
	switch {
	case containsAny(lower, unavailableReasons):
		return newStatus(status.LedgerUnavailable, raw)
	case kind == evaluateCall && containsAny(lower, deniedReasons):
		return newStatus(status.AccessDenied, raw)
	case kind == evaluateCall && containsAny(lower, notFoundReasons):
		return newStatus(status.NotFound, raw)
	case kind == submitCall && strings.Contains(lower, "transfer") && containsAny(lower, priceReasons):
		return newStatus(status.PriceMismatch, raw)
	case kind == submitCall:
		// the peer refused to endorse, or the committed transaction failed validation
		return newStatus(status.EndorsementDenied, raw)
	default:
		return newStatus(status.Unknown, raw)
	}
}

func fromGRPC(c grpcCodes.Code) (status.Code, bool) {
	switch c {
	case grpcCodes.Unavailable:
		return status.LedgerUnavailable, true
	case grpcCodes.DeadlineExceeded, grpcCodes.Canceled:
		return status.Timeout, true
	case grpcCodes.NotFound:
		return status.NotFound, true
	case grpcCodes.PermissionDenied, grpcCodes.Unauthenticated:
		return status.AccessDenied, true
	default:
		return status.Unknown, false
	}
}

func containsAny(s string, fragments []string) bool {
	for _, f := range fragments {
		if strings.Contains(s, f) {
			return true
		}
	}
	return false
}

func newStatus(code status.Code, msg string) *status.Status {
	return status.New(status.WorkflowStatus, code.ToInt32(), msg, nil)
}
