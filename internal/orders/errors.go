package orders

import (
	"errors"
	"fmt"
)

var (
	ErrOrderNotFound    = errors.New("order not found")
	ErrInvalidRequest   = errors.New("invalid order request")
	ErrForbidden        = errors.New("actor may not perform this order action")
	ErrTransitionFailed = errors.New("transition failed")
	errConcurrentUpdate = errors.New("order status changed concurrently")
)

type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition from %s to %s", e.From, e.To)
}
