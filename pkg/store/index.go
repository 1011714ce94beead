package store

import (
	"sync/atomic"

	"github.com/bits-and-blooms/bloom/v3"
)

// nameIndex answers "may this name appear in the snapshot?" without scanning.
// A negative answer is exact; a positive one may be a false positive.
// The filters are built once and only read afterwards.
type nameIndex struct {
	senders *bloom.BloomFilter
	clients *bloom.BloomFilter

	totalQueries  atomic.Uint64
	bloomRejected atomic.Uint64
}

func newNameIndex(senders, beneficiaries []string, falsePositiveRate float64) *nameIndex {
	if falsePositiveRate <= 0 || falsePositiveRate >= 1 {
		falsePositiveRate = 0.01
	}

	idx := &nameIndex{
		senders: bloom.NewWithEstimates(estimate(len(senders)), falsePositiveRate),
		clients: bloom.NewWithEstimates(estimate(len(senders)+len(beneficiaries)), falsePositiveRate),
	}

	for _, name := range senders {
		idx.senders.AddString(name)
		idx.clients.AddString(name)
	}
	for _, name := range beneficiaries {
		idx.clients.AddString(name)
	}

	return idx
}

func estimate(n int) uint {
	if n < 1 {
		return 1
	}
	return uint(n)
}

func (idx *nameIndex) test(filter *bloom.BloomFilter, name string) bool {
	idx.totalQueries.Add(1)
	if !filter.TestString(name) {
		idx.bloomRejected.Add(1)
		return false
	}
	return true
}

// IndexStats holds statistics about the name index.
type IndexStats struct {
	TotalQueries   uint64  `json:"totalQueries"`
	BloomRejected  uint64  `json:"bloomRejected"`
	RejectionRate  float64 `json:"rejectionRate"`
	SenderCapacity uint    `json:"senderCapacity"`
	ClientCapacity uint    `json:"clientCapacity"`
}

func (idx *nameIndex) stats() IndexStats {
	total := idx.totalQueries.Load()
	rejected := idx.bloomRejected.Load()

	rate := 0.0
	if total > 0 {
		rate = float64(rejected) / float64(total)
	}

	return IndexStats{
		TotalQueries:   total,
		BloomRejected:  rejected,
		RejectionRate:  rate,
		SenderCapacity: idx.senders.Cap(),
		ClientCapacity: idx.clients.Cap(),
	}
}
