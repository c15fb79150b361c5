// SPDX-License-Identifier: MIT

package storage

import (
	"github.com/jackc/pgx/v5/pgxpool"
)

// Public API.

type (
	DB struct {
		pool *pgxpool.Pool
	}
)

// Private API.

const (
	ddl = `
CREATE TABLE IF NOT EXISTS kitchen_credits (
    name   TEXT   NOT NULL,
    world  BIGINT NOT NULL,
    amount BIGINT NOT NULL,
    PRIMARY KEY (name, world)
);`
)

type (
	config struct {
		Storage struct {
			URL    string `yaml:"url" mapstructure:"url"`
			RunDDL bool   `yaml:"runDDL" mapstructure:"runDDL"` //nolint:tagliatelle // Nope.
		} `yaml:"storage" mapstructure:"storage"`
	}
	balanceRow struct {
		Name   string `db:"name"`
		Amount int64  `db:"amount"`
	}
)
