package store

import "errors"

// ErrDataUnavailable is returned when the transaction source cannot be located
// or fails to parse. Queries against an uninitialized store return it too.
var ErrDataUnavailable = errors.New("store: transaction data unavailable")

// IsDataUnavailable checks if the given error indicates the snapshot could not be loaded.
func IsDataUnavailable(err error) bool {
	return errors.Is(err, ErrDataUnavailable)
}
