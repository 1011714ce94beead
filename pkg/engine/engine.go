package engine

import (
	"fmt"
	"iter"
	"maps"
	"slices"
	"time"

	"txn-insights/pkg/logging"
	"txn-insights/pkg/metrics"
	"txn-insights/pkg/store"
	"txn-insights/pkg/transaction"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Operation names, used as metric labels, log fields and cache keys.
const (
	OpTotalAmount               = "totalAmount"
	OpTotalAmountSentBy         = "totalAmountSentBy"
	OpMaxAmount                 = "maxAmount"
	OpCountUniqueClients        = "countUniqueClients"
	OpHasOpenComplianceIssue    = "hasOpenComplianceIssue"
	OpTransactionsByBeneficiary = "transactionsByBeneficiary"
	OpUnsolvedIssueIDs          = "unsolvedIssueIds"
	OpSolvedIssueMessages       = "solvedIssueMessages"
	OpTopByAmount               = "topByAmount"
	OpTopSender                 = "topSender"
)

// Engine answers aggregate queries over a snapshot. Every query is a pure
// function of the snapshot, so an Engine is safe for concurrent use.
//
// Operations marked dedup count each transaction id once: among records that
// share an id, the first one in store order contributes and later ones are
// skipped.
type Engine struct {
	snapshot *store.Snapshot
	metrics  metrics.Collector
	logger   *logging.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithMetrics sets the collector that receives one RecordQuery per query.
func WithMetrics(m metrics.Collector) Option {
	return func(e *Engine) {
		if m != nil {
			e.metrics = m
		}
	}
}

// WithLogger sets the engine logger.
func WithLogger(l *logging.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// New creates an engine over s. A nil snapshot is allowed: every query then
// fails with ErrDataUnavailable.
func New(s *store.Snapshot, opts ...Option) *Engine {
	e := &Engine{
		snapshot: s,
		metrics:  metrics.NoOpCollector{},
		logger:   logging.L().Named("engine"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Snapshot returns the snapshot the engine reads, or nil.
func (e *Engine) Snapshot() *store.Snapshot {
	return e.snapshot
}

// observe records one finished query. Call it deferred with a pointer to the
// named error result.
func (e *Engine) observe(op string, start time.Time, err *error) {
	outcome := ClassifyError(*err)
	e.metrics.RecordQuery(op, outcome, time.Since(start))
	if *err != nil {
		e.logger.Debug("query failed", logging.Operation(op), zap.Error(*err))
	}
}

func (e *Engine) ready() error {
	if e.snapshot == nil {
		return ErrDataUnavailable
	}
	return nil
}

// distinct yields the records accepted by keep, skipping any whose id was
// already yielded. keep == nil accepts every record.
func (e *Engine) distinct(keep func(transaction.Transaction) bool) iter.Seq[transaction.Transaction] {
	return func(yield func(transaction.Transaction) bool) {
		seen := make(map[int64]struct{}, e.snapshot.Len())
		for _, t := range e.snapshot.All() {
			if keep != nil && !keep(t) {
				continue
			}
			if _, dup := seen[t.ID]; dup {
				continue
			}
			seen[t.ID] = struct{}{}
			if !yield(t) {
				return
			}
		}
	}
}

func sum(txs iter.Seq[transaction.Transaction]) decimal.Decimal {
	total := decimal.Zero
	for t := range txs {
		total = total.Add(t.Amount)
	}
	return total
}

// TotalAmount returns the sum of all amounts (dedup). An empty store sums to 0.
func (e *Engine) TotalAmount() (total decimal.Decimal, err error) {
	defer e.observe(OpTotalAmount, time.Now(), &err)
	if err = e.ready(); err != nil {
		return decimal.Zero, err
	}

	return sum(e.distinct(nil)), nil
}

// TotalAmountSentBy returns the sum of amounts sent by senderName, with dedup
// applied within that sender's records. An unknown sender sums to 0.
func (e *Engine) TotalAmountSentBy(senderName string) (total decimal.Decimal, err error) {
	defer e.observe(OpTotalAmountSentBy, time.Now(), &err)
	if err = e.ready(); err != nil {
		return decimal.Zero, err
	}

	if !e.snapshot.MaySend(senderName) {
		e.metrics.RecordNameIndex(true)
		return decimal.Zero, nil
	}
	e.metrics.RecordNameIndex(false)

	return sum(e.distinct(func(t transaction.Transaction) bool {
		return t.SenderName == senderName
	})), nil
}

// MaxAmount returns the highest amount of any record.
func (e *Engine) MaxAmount() (highest decimal.Decimal, err error) {
	defer e.observe(OpMaxAmount, time.Now(), &err)
	if err = e.ready(); err != nil {
		return decimal.Zero, err
	}
	if e.snapshot.Len() == 0 {
		return decimal.Zero, ErrEmptyStore
	}

	highest = e.snapshot.At(0).Amount
	for _, t := range e.snapshot.All() {
		if t.Amount.GreaterThan(highest) {
			highest = t.Amount
		}
	}
	return highest, nil
}

// CountUniqueClients returns the number of distinct sender names plus the
// number of distinct beneficiary names. A name seen in both roles counts twice.
func (e *Engine) CountUniqueClients() (count int, err error) {
	defer e.observe(OpCountUniqueClients, time.Now(), &err)
	if err = e.ready(); err != nil {
		return 0, err
	}

	senders := make(map[string]struct{})
	beneficiaries := make(map[string]struct{})
	for _, t := range e.snapshot.All() {
		senders[t.SenderName] = struct{}{}
		beneficiaries[t.BeneficiaryName] = struct{}{}
	}
	return len(senders) + len(beneficiaries), nil
}

// HasOpenComplianceIssue reports whether any record has clientName as its
// sender, or has clientName as its beneficiary with an unsolved issue.
//
// The unsolved check applies to the beneficiary side only: any record sent
// by clientName counts, whatever its issue state.
func (e *Engine) HasOpenComplianceIssue(clientName string) (open bool, err error) {
	defer e.observe(OpHasOpenComplianceIssue, time.Now(), &err)
	if err = e.ready(); err != nil {
		return false, err
	}

	if !e.snapshot.MayInvolve(clientName) {
		e.metrics.RecordNameIndex(true)
		return false, nil
	}
	e.metrics.RecordNameIndex(false)

	for _, t := range e.snapshot.All() {
		if clientName == t.SenderName || (clientName == t.BeneficiaryName && !t.IssueSolved) {
			return true, nil
		}
	}
	return false, nil
}

// TransactionsByBeneficiary maps every beneficiary name to the last record
// naming it, with names in ascending order.
func (e *Engine) TransactionsByBeneficiary() (index *BeneficiaryIndex, err error) {
	defer e.observe(OpTransactionsByBeneficiary, time.Now(), &err)
	if err = e.ready(); err != nil {
		return nil, err
	}

	latest := make(map[string]transaction.Transaction)
	for _, t := range e.snapshot.All() {
		latest[t.BeneficiaryName] = t
	}

	return &BeneficiaryIndex{
		names:  slices.Sorted(maps.Keys(latest)),
		byName: latest,
	}, nil
}

// UnsolvedIssueIDs returns the distinct issue ids of records whose issue is
// not solved, ascending. Records without an issue id are skipped.
func (e *Engine) UnsolvedIssueIDs() (ids []int64, err error) {
	defer e.observe(OpUnsolvedIssueIDs, time.Now(), &err)
	if err = e.ready(); err != nil {
		return nil, err
	}

	set := make(map[int64]struct{})
	for _, t := range e.snapshot.All() {
		if !t.IssueSolved && t.IssueID != nil {
			set[*t.IssueID] = struct{}{}
		}
	}

	ids = slices.Sorted(maps.Keys(set))
	if ids == nil {
		ids = []int64{}
	}
	return ids, nil
}

// SolvedIssueMessages returns the issue message of every solved record in
// store order. Nil entries stand for records without a message; nothing is
// filtered or deduplicated.
func (e *Engine) SolvedIssueMessages() (messages []*string, err error) {
	defer e.observe(OpSolvedIssueMessages, time.Now(), &err)
	if err = e.ready(); err != nil {
		return nil, err
	}

	messages = []*string{}
	for _, t := range e.snapshot.All() {
		if t.IssueSolved {
			messages = append(messages, t.IssueMessage)
		}
	}
	return messages, nil
}

// TopByAmount returns the n records with the highest amount (dedup),
// highest first. Equal amounts keep store order. It fails with
// ErrInsufficientData when fewer than n distinct records exist.
func (e *Engine) TopByAmount(n int) (top []transaction.Transaction, err error) {
	defer e.observe(OpTopByAmount, time.Now(), &err)
	if err = e.ready(); err != nil {
		return nil, err
	}
	if n <= 0 {
		return nil, fmt.Errorf("%w: need a positive count, got %d", ErrInsufficientData, n)
	}

	candidates := slices.Collect(e.distinct(nil))
	if len(candidates) < n {
		return nil, fmt.Errorf("%w: need %d distinct transactions, have %d", ErrInsufficientData, n, len(candidates))
	}

	slices.SortStableFunc(candidates, func(a, b transaction.Transaction) int {
		return b.Amount.Cmp(a.Amount)
	})
	return slices.Clip(candidates[:n]), nil
}

// Top3ByAmount is TopByAmount(3).
func (e *Engine) Top3ByAmount() ([]transaction.Transaction, error) {
	return e.TopByAmount(3)
}

// TopSender returns the sender with the highest total sent amount (dedup).
// On a tie the sender encountered first in store order wins. ok is false
// only when the store is empty.
func (e *Engine) TopSender() (name string, ok bool, err error) {
	defer e.observe(OpTopSender, time.Now(), &err)
	if err = e.ready(); err != nil {
		return "", false, err
	}

	totals := make(map[string]decimal.Decimal)
	var order []string
	for t := range e.distinct(nil) {
		current, seen := totals[t.SenderName]
		if !seen {
			order = append(order, t.SenderName)
		}
		totals[t.SenderName] = current.Add(t.Amount)
	}

	if len(order) == 0 {
		return "", false, nil
	}

	name = order[0]
	for _, sender := range order[1:] {
		if totals[sender].GreaterThan(totals[name]) {
			name = sender
		}
	}
	return name, true, nil
}
