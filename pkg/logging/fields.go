package logging

import (
	"go.uber.org/zap"
)

// Field constructors shared by every component, so the same concept is
// always logged under the same key.

// Operation is the name of an engine query, e.g. "totalAmount".
func Operation(op string) zap.Field {
	return zap.String("operation", op)
}

// Client is a sender or beneficiary full name taken from a request.
func Client(name string) zap.Field {
	return zap.String("client", name)
}

// SnapshotID is the fingerprint of the loaded transaction snapshot.
func SnapshotID(id string) zap.Field {
	return zap.String("snapshot_id", id)
}

// Records is a record count.
func Records(n int) zap.Field {
	return zap.Int("records", n)
}

// RequestID correlates all entries of one HTTP request.
func RequestID(id string) zap.Field {
	return zap.String("request_id", id)
}

// Layer is the name of a cache layer.
func Layer(name string) zap.Field {
	return zap.String("layer", name)
}
