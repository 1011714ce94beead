package store

import (
	"context"
	"fmt"
	"os"

	"txn-insights/pkg/transaction"
)

// Source supplies the full list of transactions in insertion order.
type Source interface {
	// Load returns every record or an error; it never returns a partial list.
	Load(ctx context.Context) ([]transaction.Transaction, error)

	// Name identifies the source in logs and metrics (e.g., "file", "postgres").
	Name() string
}

// FileSource reads a JSON array of transactions from a file.
type FileSource struct {
	path string
}

// NewFileSource creates a source backed by the JSON file at path.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

// Name returns "file".
func (s *FileSource) Name() string {
	return "file"
}

// Path returns the file the source reads from.
func (s *FileSource) Path() string {
	return s.path
}

// Load opens and decodes the file.
func (s *FileSource) Load(ctx context.Context) ([]transaction.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrDataUnavailable, s.path, err)
	}
	defer f.Close()

	txs, err := transaction.DecodeList(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDataUnavailable, s.path, err)
	}
	return txs, nil
}

// StaticSource serves records already held in memory.
type StaticSource []transaction.Transaction

// Name returns "static".
func (s StaticSource) Name() string {
	return "static"
}

// Load returns a copy of the records.
func (s StaticSource) Load(ctx context.Context) ([]transaction.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]transaction.Transaction, len(s))
	copy(out, s)
	return out, nil
}
