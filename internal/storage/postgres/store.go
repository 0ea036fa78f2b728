package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"treasurySync/internal/model"
	"treasurySync/internal/storage"
)

// Store provides Postgres persistence for treasury transactions.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// MaxBlockNumber returns the highest stored block_number for a treasury.
func (s *Store) MaxBlockNumber(ctx context.Context, treasuryID string) (uint64, bool, error) {
	var maxBlock *int64
	row := s.pool.QueryRow(ctx, `SELECT MAX(block_number) FROM treasury_transactions WHERE treasury_id=$1`, treasuryID)
	if err := row.Scan(&maxBlock); err != nil {
		return 0, false, fmt.Errorf("query max block number: %w", err)
	}
	if maxBlock == nil {
		return 0, false, nil
	}
	return uint64(*maxBlock), true, nil
}

const insertTransactionSQL = `
	INSERT INTO treasury_transactions (
		treasury_id, tx_hash, block_number, block_timestamp, event_type,
		from_address, to_address, amount, period_index
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	ON CONFLICT (tx_hash, treasury_id, event_type) DO NOTHING
	RETURNING id, created_at
`

// InsertTransactions writes one block's transactions in a single database transaction.
// Each row runs under its own savepoint so a rejected row does not abort its neighbours.
func (s *Store) InsertTransactions(ctx context.Context, txs []model.StoredTransaction) ([]storage.InsertOutcome, error) {
	if len(txs) == 0 {
		return nil, nil
	}

	dbTx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer dbTx.Rollback(ctx)

	outcomes := make([]storage.InsertOutcome, 0, len(txs))
	for _, tx := range txs {
		outcome, err := insertOne(ctx, dbTx, tx)
		if err != nil {
			return nil, err
		}
		outcomes = append(outcomes, outcome)
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return outcomes, nil
}

func insertOne(ctx context.Context, dbTx pgx.Tx, tx model.StoredTransaction) (storage.InsertOutcome, error) {
	savepoint, err := dbTx.Begin(ctx)
	if err != nil {
		return storage.InsertOutcome{}, fmt.Errorf("savepoint: %w", err)
	}

	row := savepoint.QueryRow(ctx, insertTransactionSQL,
		tx.TreasuryID,
		tx.TxHash,
		int64(tx.BlockNumber),
		tx.BlockTimestamp,
		string(tx.EventType),
		tx.FromAddress,
		tx.ToAddress,
		tx.Amount,
		tx.PeriodIndex,
	)

	status := storage.StatusInserted
	if err := row.Scan(&tx.ID, &tx.CreatedAt); err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			classified := classify(err)
			if !errors.Is(classified, storage.ErrRecordRejected) {
				return storage.InsertOutcome{}, fmt.Errorf("insert transaction: %w", err)
			}
			if rbErr := savepoint.Rollback(ctx); rbErr != nil {
				return storage.InsertOutcome{}, fmt.Errorf("rollback savepoint: %w", rbErr)
			}
			return storage.InsertOutcome{Row: tx, Status: storage.StatusRejected, Err: classified}, nil
		}
		status = storage.StatusDuplicate
	}

	if err := savepoint.Commit(ctx); err != nil {
		return storage.InsertOutcome{}, fmt.Errorf("release savepoint: %w", err)
	}
	return storage.InsertOutcome{Row: tx, Status: status}, nil
}

// GetTreasury loads a treasury registration by id.
func (s *Store) GetTreasury(ctx context.Context, id string) (model.Treasury, error) {
	var t model.Treasury
	var name *string
	row := s.pool.QueryRow(ctx, `SELECT id, address, chain_id, name FROM treasuries WHERE id=$1`, id)
	if err := row.Scan(&t.ID, &t.Address, &t.ChainID, &name); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Treasury{}, fmt.Errorf("treasury %s: %w", id, storage.ErrNotFound)
		}
		return model.Treasury{}, fmt.Errorf("query treasury: %w", err)
	}
	if name != nil {
		t.Name = *name
	}
	return t, nil
}

// ListTreasuries returns every registered treasury ordered by creation time.
func (s *Store) ListTreasuries(ctx context.Context) ([]model.Treasury, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, address, chain_id, COALESCE(name, '') FROM treasuries ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("query treasuries: %w", err)
	}
	defer rows.Close()

	out := make([]model.Treasury, 0)
	for rows.Next() {
		var t model.Treasury
		if err := rows.Scan(&t.ID, &t.Address, &t.ChainID, &t.Name); err != nil {
			return nil, fmt.Errorf("scan treasury: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate treasuries: %w", err)
	}
	return out, nil
}

// classify marks per-row data and constraint errors as rejections. Anything else
// (connection loss, timeouts) is returned unchanged and aborts the run.
func classify(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && isRowLevel(pgErr.Code) {
		return fmt.Errorf("%w: %s (%s)", storage.ErrRecordRejected, pgErr.Message, pgErr.Code)
	}
	return err
}

// isRowLevel reports SQLSTATE classes 22 (data exception) and 23 (integrity violation).
func isRowLevel(code string) bool {
	return strings.HasPrefix(code, "22") || strings.HasPrefix(code, "23")
}
