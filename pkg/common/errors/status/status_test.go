/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package status

import (
	"testing"

	"github.com/hyperledger/fabric-asset-transfer-go/pkg/common/errors/multi"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	grpccodes "google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
)

func TestStatusConstructors(t *testing.T) {
	s := New(EndorserStatus, EndorsementDenied.ToInt32(), "test", nil)
	assert.NotNil(t, s, "Expected status to be constructed")
	assert.EqualValues(t, EndorsementDenied, ToCode(s.Code))
	assert.Equal(t, EndorserStatus, s.Group)
	assert.Equal(t, "test", s.Message, "Expected test message")

	s = NewFromGRPCStatus(nil)
	assert.Nil(t, s)
	s = NewFromGRPCStatus(grpcstatus.New(grpccodes.DeadlineExceeded, "test"))
	assert.NotNil(t, s, "Expected status to be constructed")
	assert.EqualValues(t, grpccodes.DeadlineExceeded, ToGRPCStatusCode(s.Code))
	assert.Equal(t, GRPCTransportStatus, s.Group)

	s = NewFromChaincodeError(500, "key not found")
	assert.Equal(t, "key not found", s.Message)
	assert.Equal(t, int32(500), s.Code)
	assert.Equal(t, ChaincodeStatus, s.Group)

	s = Errorf(PriceMismatch, "price %d does not match %d", 100, 110)
	assert.Equal(t, WorkflowStatus, s.Group)
	assert.Equal(t, "price 100 does not match 110", s.Message)
}

func TestFromError(t *testing.T) {
	s, ok := FromError(nil)
	assert.True(t, ok)
	assert.EqualValues(t, OK, s.Code)

	denied := Errorf(EndorsementDenied, "endorsement policy failure")
	s, ok = FromError(denied)
	assert.True(t, ok)
	assert.Equal(t, denied, s)

	s, ok = FromError(errors.Wrap(denied, "update asset"))
	assert.True(t, ok)
	assert.Equal(t, denied, s)

	_, ok = FromError(errors.New("plain"))
	assert.False(t, ok)

	m := multi.New(errors.New("a"), errors.New("b"))
	s, ok = FromError(m)
	assert.True(t, ok)
	assert.EqualValues(t, MultipleErrors, s.Code)
	assert.Len(t, s.Details, 2)
}

func TestIs(t *testing.T) {
	err := errors.Wrap(Errorf(NotFound, "asset1 does not exist"), "read asset")
	assert.True(t, Is(err, NotFound))
	assert.False(t, Is(err, AccessDenied))
	assert.False(t, Is(nil, OK))
	assert.Equal(t, Unknown, CodeOf(errors.New("plain")))

	// gRPC codes live in a different code space
	grpcErr := NewFromGRPCStatus(grpcstatus.New(grpccodes.NotFound, "no peer"))
	assert.Equal(t, Unknown, CodeOf(grpcErr))
}

func TestStatusToError(t *testing.T) {
	s := New(WorkflowStatus, ConsistencyViolation.ToInt32(), "test", nil)
	assert.Equal(t, "Workflow Status Code: (5) CONSISTENCY_VIOLATION. Description: test", s.Error())
}

func TestStatusCodeString(t *testing.T) {
	s := Status{Group: GRPCTransportStatus, Code: int32(grpccodes.Aborted)}
	assert.Equal(t, grpccodes.Aborted.String(), s.codeString())

	s = Status{Group: ClientStatus, Code: int32(OK)}
	assert.Equal(t, OK.String(), s.codeString())

	assert.Equal(t, "25999", Code(25999).String())
	assert.Equal(t, PriceMismatch, ParseCode("PRICE_MISMATCH"))
	assert.Equal(t, Unknown, ParseCode("NOPE"))
}

func TestStatusGroupString(t *testing.T) {
	unknownGroup77377 := Group(73777)
	assert.Equal(t, UnknownStatus.String(), unknownGroup77377.String())
}
