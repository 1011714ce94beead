package engine

import (
	"bytes"
	"encoding/json"
	"iter"

	"txn-insights/pkg/transaction"
)

// BeneficiaryIndex is an ordered mapping from beneficiary name to a record.
// Names iterate in ascending byte order.
type BeneficiaryIndex struct {
	names  []string
	byName map[string]transaction.Transaction
}

// Len returns the number of beneficiaries.
func (b *BeneficiaryIndex) Len() int {
	return len(b.names)
}

// Names returns the beneficiary names in ascending order.
func (b *BeneficiaryIndex) Names() []string {
	return append([]string(nil), b.names...)
}

// Get returns the record mapped to name.
func (b *BeneficiaryIndex) Get(name string) (transaction.Transaction, bool) {
	t, ok := b.byName[name]
	return t, ok
}

// All iterates the mapping in name order.
func (b *BeneficiaryIndex) All() iter.Seq2[string, transaction.Transaction] {
	return func(yield func(string, transaction.Transaction) bool) {
		for _, name := range b.names {
			if !yield(name, b.byName[name]) {
				return
			}
		}
	}
}

// MarshalJSON writes a JSON object whose keys keep the index order.
func (b *BeneficiaryIndex) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, name := range b.names {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(b.byName[name])
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
