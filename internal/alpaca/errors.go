package alpaca

import (
	"errors"
	"fmt"
)

var (
	// ErrNoBrokerID means an order operation needs a broker-assigned id
	// the order does not have yet.
	ErrNoBrokerID = errors.New("order has no brokerage id")

	// ErrUnsupportedClass means the instrument's security class cannot
	// be expressed as an Alpaca ticker.
	ErrUnsupportedClass = errors.New("unsupported security class")

	// ErrUnsupportedOrderType means the order kind has no wire mapping.
	ErrUnsupportedOrderType = errors.New("unsupported order type")

	// ErrStreamUnavailable means the market data stream gave up
	// reconnecting.
	ErrStreamUnavailable = errors.New("market data stream unavailable")
)

// APIError is a non-2xx REST response. The body is kept verbatim since
// Alpaca encodes the rejection reason there.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("alpaca: http %d: %s", e.StatusCode, e.Body)
}

// IsAPIError unwraps err into an *APIError if there is one.
func IsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}
