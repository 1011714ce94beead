package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"txn-insights/pkg/transaction"

	"github.com/shopspring/decimal"
)

const fixturePath = "testdata/transactions.json"

func TestLoad_FileFixture(t *testing.T) {
	s, err := Load(context.Background(), NewFileSource(fixturePath))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if s.Len() != 13 {
		t.Fatalf("Expected 13 records, got %d", s.Len())
	}
	if s.Source() != "file" {
		t.Errorf("Expected source 'file', got '%s'", s.Source())
	}
	if s.At(0).ID != 663458 {
		t.Errorf("Expected first mtn 663458, got %d", s.At(0).ID)
	}
	if s.At(10).ID != 657483 {
		t.Errorf("Expected mtn 657483 at 10, got %d", s.At(10).ID)
	}
	// Duplicated ids are kept in the store; only some queries drop them
	if s.At(12).ID != 645645111 {
		t.Errorf("Expected last mtn 645645111, got %d", s.At(12).ID)
	}
	if s.LoadedAt().IsZero() {
		t.Error("Expected LoadedAt to be set")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	s, err := Load(context.Background(), NewFileSource("testdata/does-not-exist.json"))
	if err == nil {
		t.Fatal("Expected error for missing file")
	}
	if s != nil {
		t.Error("Expected nil snapshot on failure")
	}
	if !IsDataUnavailable(err) {
		t.Errorf("Expected ErrDataUnavailable, got %v", err)
	}
}

func TestLoad_MalformedFile(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"truncated", `[{"mtn": 1, "amount": 1`},
		{"not an array", `{"mtn": 1}`},
		{"missing required field", `[{"mtn": 1, "senderFullName": "a", "beneficiaryFullName": "b", "issueSolved": true}]`},
		{"second record bad", `[
			{"mtn": 1, "amount": 1, "senderFullName": "a", "beneficiaryFullName": "b", "issueSolved": true},
			{"mtn": 2, "amount": "x", "senderFullName": "a", "beneficiaryFullName": "b", "issueSolved": true}
		]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "transactions.json")
			if err := os.WriteFile(path, []byte(tt.content), 0o600); err != nil {
				t.Fatalf("WriteFile failed: %v", err)
			}

			s, err := Load(context.Background(), NewFileSource(path))
			if err == nil {
				t.Fatal("Expected error for malformed file")
			}
			if s != nil {
				t.Error("Expected no partial snapshot")
			}
			if !IsDataUnavailable(err) {
				t.Errorf("Expected ErrDataUnavailable, got %v", err)
			}
		})
	}
}

func TestLoad_NilSource(t *testing.T) {
	_, err := Load(context.Background(), nil)
	if !IsDataUnavailable(err) {
		t.Errorf("Expected ErrDataUnavailable, got %v", err)
	}
}

func TestLoad_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Load(ctx, StaticSource{})
	if !IsDataUnavailable(err) {
		t.Errorf("Expected ErrDataUnavailable, got %v", err)
	}
}

func TestSnapshot_Immutable(t *testing.T) {
	records := []transaction.Transaction{
		{ID: 1, Amount: decimal.NewFromInt(10), SenderName: "a", BeneficiaryName: "b"},
	}

	s, err := New(records, "test", 0.01)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	records[0].Amount = decimal.NewFromInt(99)
	records[0].SenderName = "mutated"

	if !s.At(0).Amount.Equal(decimal.NewFromInt(10)) {
		t.Errorf("Snapshot changed after source slice mutation: %s", s.At(0).Amount)
	}
	if s.At(0).SenderName != "a" {
		t.Errorf("Snapshot changed after source slice mutation: %s", s.At(0).SenderName)
	}
}

func TestSnapshot_All(t *testing.T) {
	s, err := Load(context.Background(), NewFileSource(fixturePath))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	count := 0
	for i, tx := range s.All() {
		if tx.ID != s.At(i).ID {
			t.Errorf("Record %d out of order", i)
		}
		count++
	}
	if count != s.Len() {
		t.Errorf("Expected %d iterations, got %d", s.Len(), count)
	}

	visited := 0
	for range s.All() {
		visited++
		if visited == 3 {
			break
		}
	}
	if visited != 3 {
		t.Errorf("Expected early stop after 3, got %d", visited)
	}
}

func TestSnapshot_ID(t *testing.T) {
	a := []transaction.Transaction{
		{ID: 1, Amount: decimal.NewFromInt(10), SenderName: "a", BeneficiaryName: "b"},
		{ID: 2, Amount: decimal.NewFromInt(20), SenderName: "c", BeneficiaryName: "d"},
	}
	b := []transaction.Transaction{a[1], a[0]}

	s1, _ := New(a, "test", 0.01)
	s2, _ := New(a, "other", 0.01)
	s3, _ := New(b, "test", 0.01)

	if s1.ID() != s2.ID() {
		t.Errorf("Expected same fingerprint for same records, got %s and %s", s1.ID(), s2.ID())
	}
	if s1.ID() == s3.ID() {
		t.Error("Expected different fingerprint for different order")
	}
}

func TestSnapshot_NameIndex(t *testing.T) {
	s, err := Load(context.Background(), NewFileSource(fixturePath))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	for _, tx := range s.All() {
		if !s.MaySend(tx.SenderName) {
			t.Errorf("False negative for sender %q", tx.SenderName)
		}
		if !s.MayInvolve(tx.SenderName) || !s.MayInvolve(tx.BeneficiaryName) {
			t.Errorf("False negative for client in mtn %d", tx.ID)
		}
	}

	stats := s.IndexStats()
	if stats.TotalQueries == 0 {
		t.Error("Expected queries to be counted")
	}
	if stats.SenderCapacity == 0 || stats.ClientCapacity == 0 {
		t.Errorf("Expected non-zero capacities, got %+v", stats)
	}
}

func TestSnapshot_Empty(t *testing.T) {
	s, err := Load(context.Background(), StaticSource{})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if s.Len() != 0 {
		t.Errorf("Expected empty snapshot, got %d", s.Len())
	}
}
