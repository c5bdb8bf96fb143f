// Package registry implements the access-control and record-state core of
// the medical records registry. Every operation is a synchronous state
// transition over a ledger.Ledger, executed against a buffered transaction
// that is committed only when the operation succeeds.
//
// The registry holds no state of its own. Callers are expected to serialize
// operations against one ledger, as a chaincode peer or the HTTP service's
// lock does.
package registry

import (
	"context"
	"errors"
	"time"

	"github.com/medrex/record-registry/pkg/ledger"
	"github.com/medrex/record-registry/pkg/logger"
	"github.com/medrex/record-registry/pkg/types"
)

// Observer receives the outcome of every registry operation. outcome is
// "OK" or the error code.
type Observer interface {
	ObserveOperation(operation, outcome string, duration time.Duration)
}

// Registry executes registry operations over a caller-supplied ledger
type Registry struct {
	logger   *logger.Logger
	observer Observer
}

// Option configures a Registry
type Option func(*Registry)

// WithObserver registers an operation observer, such as a metrics collector
func WithObserver(o Observer) Option {
	return func(r *Registry) {
		r.observer = o
	}
}

// New creates a new registry
func New(log *logger.Logger, opts ...Option) *Registry {
	r := &Registry{logger: log}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type runMode int

const (
	modeUpdate runMode = iota
	modeView
	modePublicView
)

func (r *Registry) update(l ledger.Ledger, op, caller, resource string, fn func(tx *txn) error) error {
	return r.run(l, modeUpdate, op, caller, resource, fn)
}

func (r *Registry) view(l ledger.Ledger, op, caller, resource string, fn func(tx *txn) error) error {
	return r.run(l, modeView, op, caller, resource, fn)
}

func (r *Registry) publicView(l ledger.Ledger, op string, fn func(tx *txn) error) error {
	return r.run(l, modePublicView, op, "", "", fn)
}

func (r *Registry) run(l ledger.Ledger, mode runMode, op, caller, resource string, fn func(tx *txn) error) (err error) {
	start := time.Now()
	defer func() {
		r.record(op, caller, resource, time.Since(start), err)
	}()

	if mode != modePublicView {
		if err = validateCaller(caller); err != nil {
			return err
		}
	}

	tx := newTxn(l)
	if err = fn(tx); err != nil {
		return err
	}
	if mode == modeUpdate {
		err = tx.commit()
	}
	return err
}

func (r *Registry) record(op, caller, resource string, duration time.Duration, err error) {
	outcome := "OK"
	if err != nil {
		outcome = types.ErrorCode(err)
	}
	if r.observer != nil {
		r.observer.ObserveOperation(op, outcome, duration)
	}

	if caller == "" && err == nil {
		r.logger.WithComponent("registry").WithField("operation", op).Debug("Registry query completed")
		return
	}

	details := map[string]interface{}{"duration_ms": duration.Milliseconds()}
	switch {
	case err == nil:
		r.logger.Audit(caller, op, resource, true, details)
	case errors.Is(err, types.ErrAccessDenied):
		r.logger.PHIAccess(context.Background(), caller, resource, op, "patient_record", false, map[string]interface{}{
			"error_code": outcome,
		})
	case errors.Is(err, types.ErrUnauthorized):
		r.logger.Security("authorization_denied", caller, map[string]interface{}{
			"operation":  op,
			"resource":   resource,
			"error_code": outcome,
		})
	case errors.Is(err, types.ErrInternal):
		r.logger.WithError(err).WithFields(map[string]interface{}{
			"operation": op,
			"user_id":   caller,
		}).Error("Registry operation failed")
	default:
		details["error_code"] = outcome
		r.logger.Audit(caller, op, resource, false, details)
	}
}
