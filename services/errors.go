package services

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// ServiceError is a typed error with an HTTP status code.
type ServiceError struct {
	StatusCode int
	Message    string
}

func (e *ServiceError) Error() string { return e.Message }

// Validation and access errors surface their stable message directly to
// the caller.
var (
	ErrEmptyCart               = &ServiceError{StatusCode: 400, Message: "Cart is empty"}
	ErrIncompleteAddress       = &ServiceError{StatusCode: 400, Message: "Shipping address is incomplete"}
	ErrUnauthorizedOrderAccess = &ServiceError{StatusCode: 403, Message: "You do not have access to this order"}
	ErrOrderNotFound           = &ServiceError{StatusCode: 404, Message: "Order not found"}
	ErrPaymentNotFound         = &ServiceError{StatusCode: 404, Message: "Payment not found"}
	ErrOrderAlreadyPaid        = &ServiceError{StatusCode: 409, Message: "Order is already paid"}
	ErrOrderAlreadyCancelled   = &ServiceError{StatusCode: 409, Message: "Order is already cancelled"}
	ErrMethodNotAvailable      = &ServiceError{StatusCode: 400, Message: "Payment method not available"}
	ErrAmountMismatch          = &ServiceError{StatusCode: 400, Message: "Payment amount does not match order total"}
	ErrRefundIneligible        = &ServiceError{StatusCode: 400, Message: "Order is not eligible for a refund"}
	ErrRefundReasonRequired    = &ServiceError{StatusCode: 400, Message: "Refund reason is required"}
	ErrRateInconsistent        = &ServiceError{StatusCode: 500, Message: "Exchange rate consistency check failed"}
)

// ErrGatewayUnavailable wraps any external-service failure during
// initiation. The upstream error is attached to logs only, never to the
// response body.
var ErrGatewayUnavailable = &ServiceError{StatusCode: 500, Message: "Payment gateway unavailable"}

// RefundAmountError builds the stable over-max refund rejection message.
func RefundAmountError(requested, maxRefundable decimal.Decimal) *ServiceError {
	return &ServiceError{
		StatusCode: 400,
		Message: fmt.Sprintf("Refund amount (£%s) exceeds maximum refundable amount (£%s)",
			requested.StringFixed(2), maxRefundable.StringFixed(2)),
	}
}

// RefundAmountInvalid is returned for zero, negative or unparseable
// refund amounts.
var RefundAmountInvalid = &ServiceError{StatusCode: 400, Message: "Refund amount must be a positive number"}
