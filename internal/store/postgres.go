package store

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/csic-platform/evm-indexer/internal/domain"
	"github.com/csic-platform/evm-indexer/internal/transfer"
)

// uniqueViolation is Postgres's SQLSTATE for a unique-constraint conflict;
// the tx_hash index is the authority spec.md §4.6 names for the idempotent
// transfer insert.
const uniqueViolation = "23505"

// PoolConfig mirrors the connection settings the teacher's repository
// carried, adapted to pgxpool's options.
type PoolConfig struct {
	Host            string
	Port            int
	Username        string
	Password        string
	Database        string
	SSLMode         string
	MaxOpenConns    int32
	ConnMaxLifetime time.Duration
}

// Postgres implements ConfigStore and Persistence over a pgx/v5 pool.
type Postgres struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// Open connects to Postgres and verifies the connection with a ping.
func Open(ctx context.Context, cfg PoolConfig, logger *zap.Logger) (*Postgres, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.Username, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("store.Open: parse dsn: %w", err)
	}
	poolCfg.MaxConns = cfg.MaxOpenConns
	poolCfg.MaxConnLifetime = cfg.ConnMaxLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("store.Open: new pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("store.Open: ping: %w", err)
	}

	logger.Info("connected to postgres", zap.String("database", cfg.Database), zap.String("host", cfg.Host))
	return &Postgres{pool: pool, logger: logger}, nil
}

func (p *Postgres) Close() { p.pool.Close() }

// InitSchema creates the indexer's tables if they don't already exist.
func (p *Postgres) InitSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS networks (
			id BIGSERIAL PRIMARY KEY,
			chain_id BIGINT NOT NULL UNIQUE,
			name VARCHAR(100) NOT NULL,
			rpc_url TEXT NOT NULL,
			max_step BIGINT NOT NULL,
			type VARCHAR(20) NOT NULL,
			need_poa BOOLEAN NOT NULL DEFAULT false,
			explorer_url TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS tokens (
			id BIGSERIAL PRIMARY KEY,
			address VARCHAR(42),
			name VARCHAR(255) NOT NULL,
			network_id BIGINT NOT NULL REFERENCES networks(id),
			type VARCHAR(30) NOT NULL,
			strategy VARCHAR(30) NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS indexers (
			id BIGSERIAL PRIMARY KEY,
			name VARCHAR(100) NOT NULL UNIQUE,
			network_id BIGINT NOT NULL REFERENCES networks(id),
			token_ids BIGINT[] NOT NULL,
			type VARCHAR(30) NOT NULL,
			strategy VARCHAR(30) NOT NULL,
			strategy_params JSONB NOT NULL DEFAULT '{}',
			last_block BIGINT NOT NULL DEFAULT 0,
			short_sleep_seconds INT NOT NULL DEFAULT 5,
			long_sleep_seconds INT NOT NULL DEFAULT 30,
			status VARCHAR(10) NOT NULL DEFAULT 'off'
		)`,
		`CREATE TABLE IF NOT EXISTS token_transfers (
			id BIGSERIAL PRIMARY KEY,
			token_id BIGINT NOT NULL REFERENCES tokens(id),
			operator VARCHAR(42),
			sender VARCHAR(42) NOT NULL,
			recipient VARCHAR(42) NOT NULL,
			tx_hash VARCHAR(66) NOT NULL,
			token_id_ref NUMERIC(78,0),
			amount NUMERIC(78,0),
			fetched_by BIGINT NOT NULL REFERENCES indexers(id),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS token_balances (
			id BIGSERIAL PRIMARY KEY,
			token_id BIGINT NOT NULL REFERENCES tokens(id),
			holder VARCHAR(42) NOT NULL,
			amount NUMERIC(78,0),
			token_id_ref NUMERIC(78,0),
			tracked_by BIGINT NOT NULL REFERENCES indexers(id),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		// UNIQUE table constraints only accept plain column names; the
		// idempotent-insert and upsert-on-conflict targets both need an
		// expression index over COALESCE(token_id_ref, -1), so the
		// uniqueness lives here instead of in the CREATE TABLE above.
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_token_transfers_identity
			ON token_transfers (tx_hash, token_id, sender, recipient, COALESCE(token_id_ref, -1))`,
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_token_balances_identity
			ON token_balances (token_id, holder, COALESCE(token_id_ref, -1))`,
		`CREATE INDEX IF NOT EXISTS idx_token_transfers_token_id ON token_transfers(token_id)`,
		`CREATE INDEX IF NOT EXISTS idx_token_transfers_recipient ON token_transfers(recipient)`,
		`CREATE INDEX IF NOT EXISTS idx_token_transfers_sender ON token_transfers(sender)`,
		`CREATE INDEX IF NOT EXISTS idx_token_balances_holder ON token_balances(holder)`,
	}
	for _, stmt := range statements {
		if _, err := p.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("store.InitSchema: %w", err)
		}
	}
	return nil
}

func (p *Postgres) Indexer(ctx context.Context, name string) (domain.Indexer, error) {
	const q = `
		SELECT id, name, network_id, token_ids, type, strategy, strategy_params,
		       last_block, short_sleep_seconds, long_sleep_seconds, status
		FROM indexers WHERE name = $1`

	var row domain.Indexer
	var params map[string]any
	err := p.pool.QueryRow(ctx, q, name).Scan(
		&row.ID, &row.Name, &row.NetworkID, &row.TokenIDs, &row.Type, &row.Strategy, &params,
		&row.LastBlock, &row.ShortSleepSeconds, &row.LongSleepSeconds, &row.Status)
	if err != nil {
		return domain.Indexer{}, fmt.Errorf("store.Indexer: %w", err)
	}
	row.StrategyParams = params
	return row, nil
}

func (p *Postgres) Network(ctx context.Context, id int64) (domain.Network, error) {
	const q = `
		SELECT id, chain_id, name, rpc_url, max_step, type, need_poa, explorer_url
		FROM networks WHERE id = $1`

	var row domain.Network
	var pk int64
	err := p.pool.QueryRow(ctx, q, id).Scan(
		&pk, &row.ChainID, &row.Name, &row.RPCURL, &row.MaxStep, &row.Type, &row.NeedPOA, &row.ExplorerURL)
	if err != nil {
		return domain.Network{}, fmt.Errorf("store.Network: %w", err)
	}
	return row, nil
}

func (p *Postgres) Tokens(ctx context.Context, ids []int64) ([]domain.Token, error) {
	const q = `
		SELECT id, address, name, network_id, type, strategy
		FROM tokens WHERE id = ANY($1)`

	rows, err := p.pool.Query(ctx, q, ids)
	if err != nil {
		return nil, fmt.Errorf("store.Tokens: %w", err)
	}
	defer rows.Close()

	var tokens []domain.Token
	for rows.Next() {
		var t domain.Token
		if err := rows.Scan(&t.ID, &t.Address, &t.Name, &t.NetworkID, &t.Type, &t.Strategy); err != nil {
			return nil, fmt.Errorf("store.Tokens: scan: %w", err)
		}
		tokens = append(tokens, t)
	}
	return tokens, rows.Err()
}

func (p *Postgres) UpdateLastBlock(ctx context.Context, indexerID int64, lastBlock uint64) error {
	_, err := p.pool.Exec(ctx, `UPDATE indexers SET last_block = $1 WHERE id = $2`, lastBlock, indexerID)
	if err != nil {
		return fmt.Errorf("store.UpdateLastBlock: %w", err)
	}
	return nil
}

func (p *Postgres) SetStatus(ctx context.Context, indexerID int64, status domain.IndexerStatus) error {
	_, err := p.pool.Exec(ctx, `UPDATE indexers SET status = $1 WHERE id = $2`, status, indexerID)
	if err != nil {
		return fmt.Errorf("store.SetStatus: %w", err)
	}
	return nil
}

// SaveTransfer implements the idempotent insert from spec.md §4.6: a
// tx_hash-family conflict is logged at info and treated as success.
func (p *Postgres) SaveTransfer(ctx context.Context, tokenID, fetchedBy int64, record transfer.Record) error {
	persisted := record.ToPersisted(tokenID, fetchedBy)

	const q = `
		INSERT INTO token_transfers (token_id, operator, sender, recipient, tx_hash, token_id_ref, amount, fetched_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := p.pool.Exec(ctx, q,
		persisted.TokenID, persisted.Operator, persisted.Sender, persisted.Recipient, persisted.TxHash,
		bigToNumeric(persisted.TokenIDRef), bigToNumeric(persisted.Amount), persisted.FetchedBy)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			p.logger.Info("skipping duplicate transfer", zap.String("tx_hash", persisted.TxHash))
			return nil
		}
		return fmt.Errorf("store.SaveTransfer: %w", err)
	}
	return nil
}

func (p *Postgres) UpsertBalance(ctx context.Context, row domain.TokenBalance) error {
	const q = `
		INSERT INTO token_balances (token_id, holder, amount, tracked_by, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (token_id, holder, COALESCE(token_id_ref, -1))
		DO UPDATE SET amount = EXCLUDED.amount, tracked_by = EXCLUDED.tracked_by, updated_at = NOW()
		WHERE token_balances.amount IS DISTINCT FROM EXCLUDED.amount`

	_, err := p.pool.Exec(ctx, q, row.TokenID, row.Holder, bigToNumeric(row.Amount), row.TrackedBy)
	if err != nil {
		return fmt.Errorf("store.UpsertBalance: %w", err)
	}
	return nil
}

func (p *Postgres) InsertEnumerableTokenID(ctx context.Context, row domain.TokenBalance) error {
	const q = `
		INSERT INTO token_balances (token_id, holder, token_id_ref, tracked_by, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (token_id, holder, COALESCE(token_id_ref, -1)) DO NOTHING`

	_, err := p.pool.Exec(ctx, q, row.TokenID, row.Holder, bigToNumeric(row.TokenIDRef), row.TrackedBy)
	if err != nil {
		return fmt.Errorf("store.InsertEnumerableTokenID: %w", err)
	}
	return nil
}

func (p *Postgres) DeleteEnumerableTokenID(ctx context.Context, tokenID int64, holder string, id *big.Int) error {
	const q = `DELETE FROM token_balances WHERE token_id = $1 AND holder = $2 AND token_id_ref = $3`

	_, err := p.pool.Exec(ctx, q, tokenID, holder, bigToNumeric(id))
	if err != nil {
		return fmt.Errorf("store.DeleteEnumerableTokenID: %w", err)
	}
	return nil
}

func (p *Postgres) CurrentAmount(ctx context.Context, tokenID int64, holder string) (*big.Int, bool, error) {
	const q = `SELECT amount FROM token_balances WHERE token_id = $1 AND holder = $2 AND token_id_ref IS NULL`

	var amount decimal.NullDecimal
	err := p.pool.QueryRow(ctx, q, tokenID, holder).Scan(&amount)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("store.CurrentAmount: %w", err)
	}
	if !amount.Valid {
		return nil, false, nil
	}
	return amount.Decimal.BigInt(), true, nil
}

func (p *Postgres) CurrentTokenIDs(ctx context.Context, tokenID int64, holder string) ([]*big.Int, error) {
	const q = `SELECT token_id_ref FROM token_balances WHERE token_id = $1 AND holder = $2 AND token_id_ref IS NOT NULL`

	rows, err := p.pool.Query(ctx, q, tokenID, holder)
	if err != nil {
		return nil, fmt.Errorf("store.CurrentTokenIDs: %w", err)
	}
	defer rows.Close()

	var ids []*big.Int
	for rows.Next() {
		var id decimal.Decimal
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("store.CurrentTokenIDs: scan: %w", err)
		}
		ids = append(ids, id.BigInt())
	}
	return ids, rows.Err()
}

func (p *Postgres) DistinctParticipants(ctx context.Context, tokenID int64) ([]string, error) {
	const q = `
		SELECT sender FROM token_transfers WHERE token_id = $1
		UNION
		SELECT recipient FROM token_transfers WHERE token_id = $1`

	rows, err := p.pool.Query(ctx, q, tokenID)
	if err != nil {
		return nil, fmt.Errorf("store.DistinctParticipants: %w", err)
	}
	defer rows.Close()

	var addrs []string
	for rows.Next() {
		var a string
		if err := rows.Scan(&a); err != nil {
			return nil, fmt.Errorf("store.DistinctParticipants: scan: %w", err)
		}
		addrs = append(addrs, a)
	}
	return addrs, rows.Err()
}

func bigToNumeric(v *big.Int) *decimal.Decimal {
	if v == nil {
		return nil
	}
	d := decimal.NewFromBigInt(v, 0)
	return &d
}
