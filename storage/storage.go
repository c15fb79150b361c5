// SPDX-License-Identifier: MIT

package storage

import (
	"context"
	"strings"

	"github.com/cenkalti/backoff/v4"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	appcfg "github.com/streamkitchen/kettle/config"
	"github.com/streamkitchen/kettle/log"
)

func MustConnect(ctx context.Context, applicationYAMLKey string) *DB {
	var cfg config
	appcfg.MustLoadFromKey(applicationYAMLKey, &cfg)

	poolConfig, err := pgxpool.ParseConfig(cfg.Storage.URL)
	log.Panic(errors.Wrapf(err, "failed to parse pool config: %v", cfg.Storage.URL)) //nolint:revive // Intended.
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	log.Panic(errors.Wrapf(err, "failed to start pool for: %v", cfg.Storage.URL))
	err = backoff.Retry(func() error {
		return pool.Ping(ctx) //nolint:wrapcheck // Retried, wrapped below.
	}, backoff.WithContext(backoff.NewExponentialBackOff(), ctx))
	log.Panic(errors.Wrap(err, "failed to ping storage"))

	if cfg.Storage.RunDDL {
		for _, statement := range strings.Split(ddl, "----") {
			_, err = pool.Exec(ctx, statement)
			log.Panic(errors.Wrapf(err, "failed to run statement: %v", statement))
		}
	}

	return &DB{pool: pool}
}

func (db *DB) Close() {
	db.pool.Close()
}

// UpsertBalances flushes a whole balance snapshot for one world, transactionally.
func (db *DB) UpsertBalances(ctx context.Context, world int64, balances map[string]int64) error {
	if len(balances) == 0 {
		return nil
	}
	err := pgx.BeginTxFunc(ctx, db.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		sql := `INSERT INTO kitchen_credits (name, world, amount) VALUES ($1, $2, $3)
		        ON CONFLICT (name, world) DO UPDATE SET amount = EXCLUDED.amount`
		for name, amount := range balances {
			if _, tErr := tx.Exec(ctx, sql, name, world, amount); tErr != nil {
				return errors.Wrapf(tErr, "failed to upsert balance for (%v, %v)", name, world)
			}
		}

		return nil
	})

	return errors.Wrapf(err, "failed to flush balances for world %v", world)
}

func (db *DB) BalancesByWorld(ctx context.Context, world int64) (map[string]int64, error) {
	var rows []*balanceRow
	sql := `SELECT name, amount FROM kitchen_credits WHERE world = $1`
	if err := pgxscan.Select(ctx, db.pool, &rows, sql, world); err != nil {
		return nil, errors.Wrapf(err, "failed to select balances for world %v", world)
	}
	balances := make(map[string]int64, len(rows))
	for _, row := range rows {
		balances[row.Name] = row.Amount
	}

	return balances, nil
}

func (db *DB) DeleteByWorld(ctx context.Context, world int64) error {
	_, err := db.pool.Exec(ctx, `DELETE FROM kitchen_credits WHERE world = $1`, world)

	return errors.Wrapf(err, "failed to delete balances for world %v", world)
}
