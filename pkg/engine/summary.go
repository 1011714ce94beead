package engine

import (
	"txn-insights/pkg/transaction"

	"github.com/shopspring/decimal"
)

// Summary collects the results of every query that takes no argument.
// A query that failed leaves its field at the zero value and records its
// error classification in Errors under the operation name.
type Summary struct {
	SnapshotID          string
	Records             int
	TotalAmount         decimal.Decimal
	MaxAmount           *decimal.Decimal
	UniqueClients       int
	Beneficiaries       int
	UnsolvedIssueIDs    []int64
	SolvedIssueMessages int
	Top3                []transaction.Transaction
	TopSender           *string
	Errors              map[string]string
}

// Summary runs every argument-free query once.
func (e *Engine) Summary() (Summary, error) {
	if err := e.ready(); err != nil {
		return Summary{}, err
	}

	s := Summary{
		SnapshotID: e.snapshot.ID(),
		Records:    e.snapshot.Len(),
		Errors:     make(map[string]string),
	}
	fail := func(op string, err error) {
		s.Errors[op] = ClassifyError(err)
	}

	if total, err := e.TotalAmount(); err != nil {
		fail(OpTotalAmount, err)
	} else {
		s.TotalAmount = total
	}

	if highest, err := e.MaxAmount(); err != nil {
		fail(OpMaxAmount, err)
	} else {
		s.MaxAmount = &highest
	}

	if count, err := e.CountUniqueClients(); err != nil {
		fail(OpCountUniqueClients, err)
	} else {
		s.UniqueClients = count
	}

	if index, err := e.TransactionsByBeneficiary(); err != nil {
		fail(OpTransactionsByBeneficiary, err)
	} else {
		s.Beneficiaries = index.Len()
	}

	if ids, err := e.UnsolvedIssueIDs(); err != nil {
		fail(OpUnsolvedIssueIDs, err)
	} else {
		s.UnsolvedIssueIDs = ids
	}

	if messages, err := e.SolvedIssueMessages(); err != nil {
		fail(OpSolvedIssueMessages, err)
	} else {
		s.SolvedIssueMessages = len(messages)
	}

	if top, err := e.Top3ByAmount(); err != nil {
		fail(OpTopByAmount, err)
	} else {
		s.Top3 = top
	}

	if name, ok, err := e.TopSender(); err != nil {
		fail(OpTopSender, err)
	} else if ok {
		s.TopSender = &name
	}

	return s, nil
}
