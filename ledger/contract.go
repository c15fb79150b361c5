// SPDX-License-Identifier: MIT

package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/streamkitchen/kettle/catalog"
)

// Public API.

var (
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrUnknownRecipient  = errors.New("unknown recipient")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrWaveInProgress    = errors.New("wave already in progress")
)

type (
	// Store is the durable side of the ledger: one row per (name, world), upsert semantics.
	Store interface {
		UpsertBalances(ctx context.Context, world int64, balances map[string]int64) error
		BalancesByWorld(ctx context.Context, world int64) (map[string]int64, error)
		DeleteByWorld(ctx context.Context, world int64) error
	}

	// Pool is a single-goal, multi-contributor escrow commitment toward one catalog target.
	// Contributions are reservations, not debits; the real balances move only in
	// Ledger.ResolvePoolPayment.
	Pool struct {
		mx            sync.Mutex
		contributions map[string]int64
		target        catalog.Target
		name          string
		customer      string
		index         int64
		settling      bool
		ended         bool
	}

	// Wave is a single-owner, multi-contributor escrow commitment measured in mob count.
	Wave struct {
		mx            sync.Mutex
		contributions map[string]int64
		mobs          []string
		chatter       string
		targetCount   int
		settling      bool
	}

	Ledger struct {
		cfg        *cfg
		store      Store
		intervalCh chan time.Duration
		mx         sync.Mutex
		balances   map[string]int64
		chatters   map[string]struct{}
		pools      []*Pool
		waves      []*Wave
		poolSeq    int64
		world      *int64
	}
)

// Private API.

const (
	minIncomeInterval = 5 * time.Second
)

type (
	cfg struct {
		Kitchen struct {
			StartingBalance int64         `yaml:"startingBalance" mapstructure:"startingBalance"`
			Income          int64         `yaml:"income" mapstructure:"income"`
			IncomeInterval  time.Duration `yaml:"incomeInterval" mapstructure:"incomeInterval"`
			MaxBalance      int64         `yaml:"maxBalance" mapstructure:"maxBalance"`
		} `yaml:"kitchen" mapstructure:"kitchen"`
	}
)
