package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"time"

	"txn-insights/pkg/logging"
	"txn-insights/pkg/transaction"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// snapshotNamespace scopes snapshot fingerprints so they never collide with
// other SHA-1 UUIDs derived from the same bytes.
var snapshotNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("txn-insights/snapshot"))

// Snapshot is the immutable, ordered sequence of transactions held for the
// lifetime of the process. All methods are safe for concurrent use.
type Snapshot struct {
	records  []transaction.Transaction
	id       uuid.UUID
	source   string
	loadedAt time.Time
	names    *nameIndex
}

// LoadOption customizes Load.
type LoadOption func(*loadOptions)

type loadOptions struct {
	falsePositiveRate float64
}

// WithFalsePositiveRate sets the target false positive rate of the name index.
func WithFalsePositiveRate(rate float64) LoadOption {
	return func(o *loadOptions) {
		o.falsePositiveRate = rate
	}
}

// Load reads every record from src and freezes them into a Snapshot.
// Either the whole source loads or Load returns nil and an error wrapping
// ErrDataUnavailable.
func Load(ctx context.Context, src Source, opts ...LoadOption) (*Snapshot, error) {
	if src == nil {
		return nil, fmt.Errorf("%w: no source configured", ErrDataUnavailable)
	}

	options := loadOptions{falsePositiveRate: 0.01}
	for _, opt := range opts {
		opt(&options)
	}

	logger := logging.L().Named("store")
	start := time.Now()

	records, err := src.Load(ctx)
	if err != nil {
		logger.Error("snapshot load failed",
			zap.String("source", src.Name()),
			zap.Error(err),
		)
		if !errors.Is(err, ErrDataUnavailable) {
			err = fmt.Errorf("%w: %v", ErrDataUnavailable, err)
		}
		return nil, err
	}

	s, err := New(records, src.Name(), options.falsePositiveRate)
	if err != nil {
		return nil, err
	}

	logger.Info("snapshot loaded",
		zap.String("source", src.Name()),
		logging.Records(s.Len()),
		logging.SnapshotID(s.ID()),
		zap.Duration("duration", time.Since(start)),
	)

	return s, nil
}

// New freezes records into a Snapshot. The slice is copied; later changes to
// records are not visible through the snapshot.
func New(records []transaction.Transaction, source string, falsePositiveRate float64) (*Snapshot, error) {
	frozen := make([]transaction.Transaction, len(records))
	copy(frozen, records)

	canonical, err := json.Marshal(frozen)
	if err != nil {
		return nil, fmt.Errorf("%w: fingerprint: %v", ErrDataUnavailable, err)
	}

	senders := make([]string, 0, len(frozen))
	beneficiaries := make([]string, 0, len(frozen))
	for _, t := range frozen {
		senders = append(senders, t.SenderName)
		beneficiaries = append(beneficiaries, t.BeneficiaryName)
	}

	return &Snapshot{
		records:  frozen,
		id:       uuid.NewSHA1(snapshotNamespace, canonical),
		source:   source,
		loadedAt: time.Now(),
		names:    newNameIndex(senders, beneficiaries, falsePositiveRate),
	}, nil
}

// Len returns the number of records, duplicates included.
func (s *Snapshot) Len() int {
	return len(s.records)
}

// At returns the i-th record in insertion order.
func (s *Snapshot) At(i int) transaction.Transaction {
	return s.records[i]
}

// All iterates the records in insertion order.
func (s *Snapshot) All() iter.Seq2[int, transaction.Transaction] {
	return func(yield func(int, transaction.Transaction) bool) {
		for i, t := range s.records {
			if !yield(i, t) {
				return
			}
		}
	}
}

// ID is a fingerprint of the record contents. Two processes that load the
// same records in the same order get the same ID.
func (s *Snapshot) ID() string {
	return s.id.String()
}

// Source returns the name of the source the snapshot was loaded from.
func (s *Snapshot) Source() string {
	return s.source
}

// LoadedAt returns when the snapshot was built.
func (s *Snapshot) LoadedAt() time.Time {
	return s.loadedAt
}

// MaySend reports whether name may appear as a sender. False is definite.
func (s *Snapshot) MaySend(name string) bool {
	return s.names.test(s.names.senders, name)
}

// MayInvolve reports whether name may appear as a sender or beneficiary.
// False is definite.
func (s *Snapshot) MayInvolve(name string) bool {
	return s.names.test(s.names.clients, name)
}

// IndexStats returns name index statistics.
func (s *Snapshot) IndexStats() IndexStats {
	return s.names.stats()
}
