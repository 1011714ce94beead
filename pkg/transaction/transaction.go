package transaction

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/shopspring/decimal"
)

// Transaction is a single money transfer between a sender and a beneficiary.
// IssueID and IssueMessage are nil when the source had no value for them.
type Transaction struct {
	ID              int64
	Amount          decimal.Decimal
	SenderName      string
	SenderAge       int
	BeneficiaryName string
	BeneficiaryAge  int
	IssueID         *int64
	IssueSolved     bool
	IssueMessage    *string
}

// ErrMalformed is returned when a record cannot be decoded or misses a required field.
var ErrMalformed = errors.New("transaction: malformed record")

// wire is the JSON form. Pointers let the decoder tell a missing or null
// required field apart from a zero value. Amount stays raw so that only a
// bare JSON number is accepted.
type wire struct {
	MTN                 *int64          `json:"mtn"`
	Amount              json.RawMessage `json:"amount"`
	SenderFullName      *string         `json:"senderFullName"`
	SenderAge           int             `json:"senderAge"`
	BeneficiaryFullName *string         `json:"beneficiaryFullName"`
	BeneficiaryAge      int             `json:"beneficiaryAge"`
	IssueID             *int64          `json:"issueId"`
	IssueSolved         *bool           `json:"issueSolved"`
	IssueMessage        *string         `json:"issueMessage"`
}

func (w wire) toTransaction() (Transaction, error) {
	var missing []string
	if w.MTN == nil {
		missing = append(missing, "mtn")
	}
	if len(w.Amount) == 0 || string(w.Amount) == "null" {
		missing = append(missing, "amount")
	}
	if w.SenderFullName == nil {
		missing = append(missing, "senderFullName")
	}
	if w.BeneficiaryFullName == nil {
		missing = append(missing, "beneficiaryFullName")
	}
	if w.IssueSolved == nil {
		missing = append(missing, "issueSolved")
	}
	if len(missing) > 0 {
		return Transaction{}, fmt.Errorf("%w: missing required fields %v", ErrMalformed, missing)
	}

	// A quoted amount fails here: NewFromString sees the quotes
	amount, err := decimal.NewFromString(string(w.Amount))
	if err != nil {
		return Transaction{}, fmt.Errorf("%w: amount %s is not a number", ErrMalformed, w.Amount)
	}

	return Transaction{
		ID:              *w.MTN,
		Amount:          amount,
		SenderName:      *w.SenderFullName,
		SenderAge:       w.SenderAge,
		BeneficiaryName: *w.BeneficiaryFullName,
		BeneficiaryAge:  w.BeneficiaryAge,
		IssueID:         w.IssueID,
		IssueSolved:     *w.IssueSolved,
		IssueMessage:    w.IssueMessage,
	}, nil
}

// UnmarshalJSON decodes a single record and enforces required fields.
func (t *Transaction) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var w wire
	if err := dec.Decode(&w); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	parsed, err := w.toTransaction()
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// MarshalJSON encodes the record with the same keys it is read with.
// Amount is written as a JSON number, not a quoted string.
func (t Transaction) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		MTN                 int64           `json:"mtn"`
		Amount              json.RawMessage `json:"amount"`
		SenderFullName      string          `json:"senderFullName"`
		SenderAge           int             `json:"senderAge"`
		BeneficiaryFullName string          `json:"beneficiaryFullName"`
		BeneficiaryAge      int             `json:"beneficiaryAge"`
		IssueID             *int64          `json:"issueId"`
		IssueSolved         bool            `json:"issueSolved"`
		IssueMessage        *string         `json:"issueMessage"`
	}{
		MTN:                 t.ID,
		Amount:              json.RawMessage(t.Amount.String()),
		SenderFullName:      t.SenderName,
		SenderAge:           t.SenderAge,
		BeneficiaryFullName: t.BeneficiaryName,
		BeneficiaryAge:      t.BeneficiaryAge,
		IssueID:             t.IssueID,
		IssueSolved:         t.IssueSolved,
		IssueMessage:        t.IssueMessage,
	})
}

// DecodeList reads a JSON array of records. Any malformed element rejects the
// whole document; trailing data after the array is rejected as well.
func DecodeList(r io.Reader) ([]Transaction, error) {
	dec := json.NewDecoder(r)

	var raw []json.RawMessage
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("%w: unexpected data after array", ErrMalformed)
	}
	if raw == nil {
		return nil, fmt.Errorf("%w: document is not an array", ErrMalformed)
	}

	txs := make([]Transaction, len(raw))
	for i, item := range raw {
		if err := txs[i].UnmarshalJSON(item); err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
	}
	return txs, nil
}

// HasIssue reports whether a compliance issue was raised for the record.
func (t Transaction) HasIssue() bool {
	return t.IssueID != nil
}
