/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package retry

import (
	"context"
	"time"

	"github.com/hyperledger/fabric-asset-transfer-go/pkg/common/errors/multi"
	"github.com/hyperledger/fabric-asset-transfer-go/pkg/common/logging"
	"github.com/pkg/errors"
)

var logger = logging.NewLogger("assettransfer/retry")

// Invocation is the function to be invoked.
type Invocation func() (interface{}, error)

// BeforeRetryHandler is a function that's invoked before
// a retry attempt.
type BeforeRetryHandler func(error)

// RetryableInvoker manages invocations that could return
// errors and retries the invocation on transient errors.
type RetryableInvoker struct {
	handler     Handler
	beforeRetry BeforeRetryHandler
}

// InvokerOpt is an invoker option
type InvokerOpt func(invoker *RetryableInvoker)

// WithBeforeRetry specifies a function to call before a retry attempt
func WithBeforeRetry(beforeRetry BeforeRetryHandler) InvokerOpt {
	return func(invoker *RetryableInvoker) {
		invoker.beforeRetry = beforeRetry
	}
}

// NewInvoker creates a new RetryableInvoker
func NewInvoker(handler Handler, opts ...InvokerOpt) *RetryableInvoker {
	invoker := &RetryableInvoker{handler: handler}
	for _, opt := range opts {
		opt(invoker)
	}
	return invoker
}

// Invoke invokes the given function and performs retries according
// to the retry options. Waiting between attempts stops when ctx is done.
func (ri *RetryableInvoker) Invoke(ctx context.Context, invocation Invocation) (interface{}, error) {
	for attempt := 1; ; attempt++ {
		retval, err := invocation()
		if err == nil {
			if attempt > 1 {
				logger.Debugf("Success on attempt #%d", attempt)
			}
			return retval, nil
		}

		backoff, retry := ri.resolveRetry(err)
		if !retry {
			logger.Debugf("Retry for err [%s] is NOT warranted after %d attempt(s)", err, attempt)
			return nil, err
		}
		logger.Debugf("Attempt #%d failed with [%s], retrying in %s", attempt, err, backoff)
		if ri.beforeRetry != nil {
			ri.beforeRetry(err)
		}

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, errors.Wrapf(ctx.Err(), "retry aborted after %d attempt(s), last error: %s", attempt, err)
		case <-timer.C:
		}
	}
}

func (ri *RetryableInvoker) resolveRetry(err error) (time.Duration, bool) {
	errs, ok := errors.Cause(err).(multi.Errors)
	if !ok {
		errs = multi.Errors{err}
	}
	for _, e := range errs {
		if backoff, ok := ri.handler.Required(e); ok {
			return backoff, true
		}
	}
	return 0, false
}
