// Package services defines the business logic of the cart recovery engine:
// the activity recorder, the heartbeat monitor, the abandonment sweeper,
// and the recovery scheduler. This file centralizes common service-level
// error values so that they can be consistently returned by service
// methods and checked by callers.
//
// These errors are intended for internal use by the service layer and
// translation into user-facing messages or HTTP status codes should be
// performed at the handler layer.
package services

import "errors"

var (
	// ErrMissingSession is returned when a request carries no session id.
	ErrMissingSession = errors.New("session id is required")

	// ErrMissingCartData is returned when an activity post carries neither
	// items nor a total; there is nothing to record.
	ErrMissingCartData = errors.New("cart items or total required")

	// ErrCartNotFound indicates that no tracking record exists for the
	// referenced session or id. Heartbeats must not fabricate records;
	// only the recorder creates them.
	ErrCartNotFound = errors.New("cart not found")

	// ErrCartNotActive is returned when a liveness signal arrives for a
	// cart that already resolved (recovered); the session is over.
	ErrCartNotActive = errors.New("cart is no longer active")
)
