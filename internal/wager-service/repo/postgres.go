package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/lib/pq"

	"github.com/radieske/vrf-wager-engine/internal/shared/db"
)

// Schema das apostas. seq preserva a ordem de criação por usuário.
const Schema = `
CREATE TABLE IF NOT EXISTS bets (
	id            NUMERIC(20,0) PRIMARY KEY,
	seq           BIGSERIAL     NOT NULL,
	user_address  TEXT          NOT NULL,
	asset_address TEXT          NOT NULL,
	amount        NUMERIC(78,0) NOT NULL,
	multiplier    BIGINT        NOT NULL,
	block_number  BIGINT        NOT NULL,
	payout        NUMERIC(78,0) NOT NULL DEFAULT 0,
	oracle_cost   NUMERIC(78,0) NOT NULL DEFAULT 0,
	resolved      BOOLEAN       NOT NULL DEFAULT FALSE,
	refunded      BOOLEAN       NOT NULL DEFAULT FALSE,
	created_at    TIMESTAMPTZ   NOT NULL DEFAULT NOW(),
	updated_at    TIMESTAMPTZ   NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS bets_user_seq_idx ON bets (user_address, seq DESC);
`

const uniqueViolation = "23505"

// Postgres implementa o ledger de apostas em banco Postgres
type Postgres struct{ db *sql.DB }

// NewPostgres retorna uma instância do repositório de apostas
func NewPostgres(db *sql.DB) *Postgres { return &Postgres{db: db} }

// Migrate cria a tabela de apostas se ainda não existir
func (p *Postgres) Migrate(ctx context.Context) error {
	return db.Migrate(ctx, p.db, Schema)
}

// Create insere uma nova aposta PENDING
func (p *Postgres) Create(ctx context.Context, b *Bet) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO bets (id,user_address,asset_address,amount,multiplier,block_number,oracle_cost)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		formatID(b.ID), b.User.Hex(), b.Asset.Hex(), cloneInt(b.Amount).String(),
		int64(b.Multiplier), int64(b.BlockNumber), cloneInt(b.OracleCost).String(),
	)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return ErrDuplicateBet
	}
	if err != nil {
		return fmt.Errorf("insert bet: %w", err)
	}
	return nil
}

const selectBet = `
	SELECT id::text, user_address, asset_address, amount::text, multiplier, block_number,
	       payout::text, oracle_cost::text, resolved, refunded, created_at
	FROM bets`

// Get retorna a aposta pelo request id
func (p *Postgres) Get(ctx context.Context, id uint64) (*Bet, error) {
	row := p.db.QueryRowContext(ctx, selectBet+` WHERE id=$1`, formatID(id))
	b, err := scanBet(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return b, err
}

// MarkResolved faz PENDING -> RESOLVED; o WHERE resolved=false garante transição única
func (p *Postgres) MarkResolved(ctx context.Context, id uint64, payout *big.Int) error {
	return p.settle(ctx, id, payout, false)
}

// MarkRefunded faz PENDING -> REFUNDED
func (p *Postgres) MarkRefunded(ctx context.Context, id uint64, payout *big.Int) error {
	return p.settle(ctx, id, payout, true)
}

func (p *Postgres) settle(ctx context.Context, id uint64, payout *big.Int, refunded bool) error {
	res, err := p.db.ExecContext(ctx, `
		UPDATE bets SET resolved=TRUE, refunded=$3, payout=$2, updated_at=NOW()
		WHERE id=$1 AND resolved=FALSE`,
		formatID(id), cloneInt(payout).String(), refunded,
	)
	if err != nil {
		return fmt.Errorf("settle bet: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}

	var exists bool
	if err := p.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM bets WHERE id=$1)`, formatID(id)).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}
	return ErrNotPending
}

// ListRecent retorna até count apostas do usuário, da mais recente para a mais antiga
func (p *Postgres) ListRecent(ctx context.Context, user common.Address, count int) ([]Bet, error) {
	out := []Bet{}
	if count <= 0 {
		return out, nil
	}
	rows, err := p.db.QueryContext(ctx, selectBet+` WHERE user_address=$1 ORDER BY seq DESC LIMIT $2`, user.Hex(), count)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		b, err := scanBet(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

func (p *Postgres) CountByUser(ctx context.Context, user common.Address) (int, error) {
	var n int
	err := p.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM bets WHERE user_address=$1`, user.Hex()).Scan(&n)
	return n, err
}

// MaxID devolve o maior id já gravado (0 com a tabela vazia)
func (p *Postgres) MaxID(ctx context.Context) (uint64, error) {
	var v string
	if err := p.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(id), 0)::TEXT FROM bets`).Scan(&v); err != nil {
		return 0, err
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse max id %q: %w", v, err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanBet(s scanner) (*Bet, error) {
	var (
		b                                Bet
		id, usr, asset, amt, pay, oracle string
		mult, block                      int64
	)
	if err := s.Scan(&id, &usr, &asset, &amt, &mult, &block, &pay, &oracle, &b.Resolved, &b.Refunded, &b.CreatedAt); err != nil {
		return nil, err
	}
	var err error
	if b.ID, err = strconv.ParseUint(id, 10, 64); err != nil {
		return nil, fmt.Errorf("bet id %q: %w", id, err)
	}
	b.User = common.HexToAddress(usr)
	b.Asset = common.HexToAddress(asset)
	b.Multiplier = uint32(mult)
	b.BlockNumber = uint64(block)
	if b.Amount, err = parseAmount(amt); err != nil {
		return nil, err
	}
	if b.Payout, err = parseAmount(pay); err != nil {
		return nil, err
	}
	if b.OracleCost, err = parseAmount(oracle); err != nil {
		return nil, err
	}
	return &b, nil
}

func parseAmount(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", s)
	}
	return v, nil
}

func formatID(id uint64) string { return strconv.FormatUint(id, 10) }
