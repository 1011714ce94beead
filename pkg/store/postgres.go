package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"txn-insights/pkg/transaction"

	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// PostgresConfig holds PostgreSQL connection configuration.
type PostgresConfig struct {
	// DSN is a lib/pq connection string, e.g.
	// "host=localhost port=5432 user=postgres dbname=transactions sslmode=disable"
	DSN string

	// Table holding the records (default: transactions)
	Table string

	// ConnectTimeout bounds the initial ping
	ConnectTimeout time.Duration
}

// DefaultPostgresConfig returns default PostgreSQL configuration.
func DefaultPostgresConfig() PostgresConfig {
	return PostgresConfig{
		DSN:            "host=localhost port=5432 user=postgres password=postgres dbname=transactions sslmode=disable",
		Table:          "transactions",
		ConnectTimeout: 5 * time.Second,
	}
}

// PostgresSource reads the snapshot from a PostgreSQL table. Rows are returned
// in seq order, which is the insertion order of the original data set.
type PostgresSource struct {
	db     *sql.DB
	config PostgresConfig
}

// NewPostgresSource opens a connection pool and pings the server.
func NewPostgresSource(cfg PostgresConfig) (*PostgresSource, error) {
	if cfg.Table == "" {
		cfg.Table = "transactions"
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 5 * time.Second
	}

	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("%w: open postgres connection: %v", ErrDataUnavailable, err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ConnectTimeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: ping postgres: %v", ErrDataUnavailable, err)
	}

	return &PostgresSource{db: db, config: cfg}, nil
}

// Name returns "postgres".
func (p *PostgresSource) Name() string {
	return "postgres"
}

// Close releases the connection pool.
func (p *PostgresSource) Close() error {
	return p.db.Close()
}

// EnsureSchema creates the transactions table if it does not exist.
func (p *PostgresSource) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		seq BIGSERIAL PRIMARY KEY,
		mtn BIGINT NOT NULL,
		amount NUMERIC NOT NULL,
		sender_full_name TEXT NOT NULL,
		sender_age INTEGER NOT NULL DEFAULT 0,
		beneficiary_full_name TEXT NOT NULL,
		beneficiary_age INTEGER NOT NULL DEFAULT 0,
		issue_id BIGINT,
		issue_solved BOOLEAN NOT NULL,
		issue_message TEXT
	)`, p.config.Table)

	if _, err := p.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("create table %s: %w", p.config.Table, err)
	}
	return nil
}

// Import replaces the table contents with records, in order, inside a
// single transaction. Readers see either the old rows or the new ones.
func (p *PostgresSource) Import(ctx context.Context, txs []transaction.Transaction) error {
	dbTx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin import: %w", err)
	}
	defer dbTx.Rollback()

	if _, err := dbTx.ExecContext(ctx, fmt.Sprintf("TRUNCATE %s RESTART IDENTITY", p.config.Table)); err != nil {
		return fmt.Errorf("clear %s: %w", p.config.Table, err)
	}

	query := fmt.Sprintf(`INSERT INTO %s
		(mtn, amount, sender_full_name, sender_age, beneficiary_full_name, beneficiary_age, issue_id, issue_solved, issue_message)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`, p.config.Table)

	stmt, err := dbTx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("prepare import: %w", err)
	}
	defer stmt.Close()

	for _, t := range txs {
		if _, err := stmt.ExecContext(ctx,
			t.ID, t.Amount, t.SenderName, t.SenderAge, t.BeneficiaryName, t.BeneficiaryAge,
			t.IssueID, t.IssueSolved, t.IssueMessage,
		); err != nil {
			return fmt.Errorf("import mtn %d: %w", t.ID, err)
		}
	}

	return dbTx.Commit()
}

// Load reads every row. A NULL in a required column rejects the whole load.
func (p *PostgresSource) Load(ctx context.Context) ([]transaction.Transaction, error) {
	query := fmt.Sprintf(`
		SELECT mtn, amount, sender_full_name, sender_age, beneficiary_full_name,
		       beneficiary_age, issue_id, issue_solved, issue_message
		FROM %s
		ORDER BY seq
	`, p.config.Table)

	rows, err := p.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: query transactions: %v", ErrDataUnavailable, err)
	}
	defer rows.Close()

	var txs []transaction.Transaction
	for rows.Next() {
		var (
			mtn            sql.NullInt64
			amount         decimal.NullDecimal
			sender         sql.NullString
			senderAge      sql.NullInt64
			beneficiary    sql.NullString
			beneficiaryAge sql.NullInt64
			issueID        sql.NullInt64
			issueSolved    sql.NullBool
			issueMessage   sql.NullString
		)
		if err := rows.Scan(
			&mtn, &amount, &sender, &senderAge, &beneficiary,
			&beneficiaryAge, &issueID, &issueSolved, &issueMessage,
		); err != nil {
			return nil, fmt.Errorf("%w: scan transaction: %v", ErrDataUnavailable, err)
		}

		if !mtn.Valid || !amount.Valid || !sender.Valid || !beneficiary.Valid || !issueSolved.Valid {
			return nil, fmt.Errorf("%w: row %d: %v", ErrDataUnavailable, len(txs), transaction.ErrMalformed)
		}

		t := transaction.Transaction{
			ID:              mtn.Int64,
			Amount:          amount.Decimal,
			SenderName:      sender.String,
			SenderAge:       int(senderAge.Int64),
			BeneficiaryName: beneficiary.String,
			BeneficiaryAge:  int(beneficiaryAge.Int64),
			IssueSolved:     issueSolved.Bool,
		}
		if issueID.Valid {
			id := issueID.Int64
			t.IssueID = &id
		}
		if issueMessage.Valid {
			msg := issueMessage.String
			t.IssueMessage = &msg
		}
		txs = append(txs, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate transactions: %v", ErrDataUnavailable, err)
	}

	return txs, nil
}
