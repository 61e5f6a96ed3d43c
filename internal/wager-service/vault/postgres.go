package vault

import (
	"context"
	"database/sql"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/radieske/vrf-wager-engine/internal/shared/db"
)

const Schema = `
CREATE TABLE IF NOT EXISTS accounts (
	id            UUID          PRIMARY KEY,
	owner_address TEXT          NOT NULL,
	asset_address TEXT          NOT NULL,
	balance       NUMERIC(78,0) NOT NULL DEFAULT 0 CHECK (balance >= 0),
	version       BIGINT        NOT NULL DEFAULT 1,
	UNIQUE (owner_address, asset_address)
);
CREATE TABLE IF NOT EXISTS account_ledger (
	id             UUID          PRIMARY KEY,
	account_id     UUID          NOT NULL REFERENCES accounts(id),
	operation_type TEXT          NOT NULL,
	amount         NUMERIC(78,0) NOT NULL,
	description    TEXT          NOT NULL,
	created_at     TIMESTAMPTZ   NOT NULL DEFAULT NOW()
);
`

// Postgres implementa o vault em banco
type Postgres struct{ db *sql.DB }

func NewPostgres(db *sql.DB) *Postgres { return &Postgres{db: db} }

func (p *Postgres) Migrate(ctx context.Context) error {
	return db.Migrate(ctx, p.db, Schema)
}

// Balance retorna o saldo da conta (zero se ela ainda não existir)
func (p *Postgres) Balance(ctx context.Context, owner, asset common.Address) (*big.Int, error) {
	var s string
	err := p.db.QueryRowContext(ctx,
		`SELECT balance::text FROM accounts WHERE owner_address=$1 AND asset_address=$2`,
		owner.Hex(), asset.Hex()).Scan(&s)
	if err == sql.ErrNoRows {
		return new(big.Int), nil
	}
	if err != nil {
		return nil, err
	}
	return parseAmount(s)
}

// Deposit incrementa o saldo da conta e registra a operação no ledger
// Garante lock pessimista na linha da conta
func (p *Postgres) Deposit(ctx context.Context, owner, asset common.Address, amount *big.Int, ref string) (*big.Int, error) {
	if !validAmount(amount) {
		return nil, ErrInvalidAmount
	}
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	id, _, err := lockAccount(ctx, tx, owner, asset)
	if err != nil {
		return nil, err
	}
	if err := move(ctx, tx, id, amount, OpCredit, "deposit:"+ref); err != nil {
		return nil, err
	}

	var s string
	if err := tx.QueryRowContext(ctx, `SELECT balance::text FROM accounts WHERE id=$1`, id).Scan(&s); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return parseAmount(s)
}

// Transfer debita from e credita to na mesma transação.
// As linhas são travadas em ordem de endereço para evitar deadlock entre transferências cruzadas.
func (p *Postgres) Transfer(ctx context.Context, asset, from, to common.Address, amount *big.Int, ref string) error {
	if !validAmount(amount) {
		return ErrInvalidAmount
	}
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	first, second := from, to
	if first.Cmp(second) > 0 {
		first, second = second, first
	}
	ids := map[common.Address]uuid.UUID{}
	bals := map[common.Address]*big.Int{}
	for _, owner := range []common.Address{first, second} {
		id, bal, err := lockAccount(ctx, tx, owner, asset)
		if err != nil {
			return err
		}
		ids[owner], bals[owner] = id, bal
	}

	if bals[from].Cmp(amount) < 0 {
		return ErrInsufficientFunds
	}
	if err := move(ctx, tx, ids[from], new(big.Int).Neg(amount), OpDebit, ref); err != nil {
		return err
	}
	if err := move(ctx, tx, ids[to], amount, OpCredit, ref); err != nil {
		return err
	}
	return tx.Commit()
}

// lockAccount cria a conta se necessário e trava a linha (FOR UPDATE)
func lockAccount(ctx context.Context, tx *sql.Tx, owner, asset common.Address) (uuid.UUID, *big.Int, error) {
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO accounts (id, owner_address, asset_address, balance, version)
		VALUES ($1,$2,$3,0,1)
		ON CONFLICT (owner_address, asset_address) DO NOTHING`,
		uuid.New(), owner.Hex(), asset.Hex()); err != nil {
		return uuid.Nil, nil, fmt.Errorf("ensure account: %w", err)
	}

	var (
		id  uuid.UUID
		bal string
	)
	if err := tx.QueryRowContext(ctx, `
		SELECT id, balance::text FROM accounts
		WHERE owner_address=$1 AND asset_address=$2
		FOR UPDATE`, owner.Hex(), asset.Hex()).Scan(&id, &bal); err != nil {
		return uuid.Nil, nil, fmt.Errorf("lock account: %w", err)
	}
	b, err := parseAmount(bal)
	return id, b, err
}

// move aplica delta (positivo ou negativo) no saldo e grava o lançamento com o valor absoluto
func move(ctx context.Context, tx *sql.Tx, accountID uuid.UUID, delta *big.Int, op, desc string) error {
	if _, err := tx.ExecContext(ctx,
		`UPDATE accounts SET balance = balance + $1::numeric, version = version + 1 WHERE id=$2`,
		delta.String(), accountID); err != nil {
		return err
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO account_ledger (id, account_id, operation_type, amount, description)
		VALUES ($1,$2,$3,$4,$5)`,
		uuid.New(), accountID, op, new(big.Int).Abs(delta).String(), desc)
	return err
}

func parseAmount(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", s)
	}
	return v, nil
}
