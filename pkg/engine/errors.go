package engine

import (
	"errors"

	"txn-insights/pkg/store"
)

// Query errors. A query that has a legitimate zero or empty answer returns
// that answer with a nil error instead.
var (
	// ErrEmptyStore is returned by queries that need at least one record
	ErrEmptyStore = errors.New("engine: store has no transactions")

	// ErrInsufficientData is returned when a query needs more distinct records than exist
	ErrInsufficientData = errors.New("engine: insufficient data")

	// ErrDataUnavailable is returned by every query when no snapshot was loaded
	ErrDataUnavailable = store.ErrDataUnavailable
)

// IsEmptyStore checks if the given error indicates an empty store.
func IsEmptyStore(err error) bool {
	return errors.Is(err, ErrEmptyStore)
}

// IsInsufficientData checks if the given error indicates too few distinct records.
func IsInsufficientData(err error) bool {
	return errors.Is(err, ErrInsufficientData)
}

// ClassifyError returns a string classification of the error for metrics
// labels and API error bodies.
func ClassifyError(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrDataUnavailable):
		return "data_unavailable"
	case errors.Is(err, ErrEmptyStore):
		return "empty_store"
	case errors.Is(err, ErrInsufficientData):
		return "insufficient_data"
	default:
		return "other"
	}
}
