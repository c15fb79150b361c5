// SPDX-License-Identifier: MIT

package ledger

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/streamkitchen/kettle/catalog"
	appcfg "github.com/streamkitchen/kettle/config"
	"github.com/streamkitchen/kettle/log"
	"github.com/streamkitchen/kettle/terror"
)

func New(store Store, applicationYAMLKey string) *Ledger {
	var config cfg
	appcfg.MustLoadFromKey(applicationYAMLKey, &config)
	if config.Kitchen.IncomeInterval < minIncomeInterval {
		config.Kitchen.IncomeInterval = minIncomeInterval
	}

	return &Ledger{
		cfg:        &config,
		store:      store,
		intervalCh: make(chan time.Duration, 1),
		balances:   make(map[string]int64),
		chatters:   make(map[string]struct{}),
	}
}

// Normalize is the canonical participant handle: lowercased, trimmed.
func Normalize(chatter string) string {
	return strings.ToLower(strings.TrimSpace(chatter))
}

func (l *Ledger) AddChatter(chatter string) {
	l.mx.Lock()
	defer l.mx.Unlock()
	l.chatters[Normalize(chatter)] = struct{}{}
}

func (l *Ledger) RemoveChatter(chatter string) {
	l.mx.Lock()
	defer l.mx.Unlock()
	delete(l.chatters, Normalize(chatter))
}

func (l *Ledger) ResetChatters() {
	l.mx.Lock()
	defer l.mx.Unlock()
	l.chatters = make(map[string]struct{})
}

// StartIncome accrues the configured income to every present chatter on each tick,
// until ctx is done. SetIncomeInterval reschedules without dropping a tick in flight.
func (l *Ledger) StartIncome(ctx context.Context) {
	ticker := time.NewTicker(l.cfg.Kitchen.IncomeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case interval := <-l.intervalCh:
			ticker.Reset(interval)
		case <-ticker.C:
			l.Income()
		}
	}
}

func (l *Ledger) SetIncomeInterval(interval time.Duration) {
	if interval < minIncomeInterval {
		interval = minIncomeInterval
	}
	for {
		select {
		case l.intervalCh <- interval:
			return
		case <-l.intervalCh:
			// A stale pending interval, replaced by the latest one.
		}
	}
}

func (l *Ledger) Income() {
	l.mx.Lock()
	defer l.mx.Unlock()
	for chatter := range l.chatters {
		balance := l.ensureAccountLocked(chatter) + l.cfg.Kitchen.Income
		if limit := l.cfg.Kitchen.MaxBalance; limit > 0 && balance > limit {
			balance = limit
		}
		l.balances[chatter] = balance
	}
}

// ModBalance applies delta to the stored balance, clamping the result at zero.
func (l *Ledger) ModBalance(chatter string, delta int64) {
	l.mx.Lock()
	defer l.mx.Unlock()
	l.modBalanceLocked(Normalize(chatter), delta)
}

// GetBalance returns the available balance: stored minus all outstanding escrow
// across active pools and waves.
func (l *Ledger) GetBalance(chatter string) int64 {
	l.mx.Lock()
	defer l.mx.Unlock()

	return l.availableLocked(Normalize(chatter))
}

// Give transfers amountText credits between chatters, atomically, validating that the
// amount is numeric, the recipient is present and the sender has the available funds.
func (l *Ledger) Give(from, to, amountText string) error {
	amount, err := strconv.ParseInt(amountText, 10, 64)
	if err != nil || amount <= 0 {
		return terror.New(ErrInvalidAmount, map[string]any{"amount": amountText})
	}
	from, to = Normalize(from), Normalize(to)
	l.mx.Lock()
	defer l.mx.Unlock()
	if _, found := l.chatters[to]; !found {
		return terror.New(ErrUnknownRecipient, map[string]any{"recipient": to})
	}
	if available := l.availableLocked(from); available < amount {
		return terror.New(ErrInsufficientFunds, map[string]any{"balance": available})
	}
	l.modBalanceLocked(from, -amount)
	l.modBalanceLocked(to, amount)

	return nil
}

// SetWorld flushes the current balances under the previous world, discards all in-memory
// state (including in-flight escrow, which is documented behavior) and reloads balances
// for the new world. A persistence failure aborts the switch.
func (l *Ledger) SetWorld(ctx context.Context, world *int64) error {
	l.mx.Lock()
	if sameWorld(l.world, world) {
		l.mx.Unlock()

		return nil
	}
	previous := l.world
	flush := l.balancesSnapshotLocked()
	l.mx.Unlock()

	if previous != nil {
		if err := l.store.UpsertBalances(ctx, *previous, flush); err != nil {
			return errors.Wrapf(err, "failed to flush balances for world %v", *previous)
		}
	}
	var loaded map[string]int64
	if world != nil {
		var err error
		if loaded, err = l.store.BalancesByWorld(ctx, *world); err != nil {
			return errors.Wrapf(err, "failed to load balances for world %v", *world)
		}
		log.Info("credits loaded from storage", "world", *world, "accounts", len(loaded))
	}

	l.mx.Lock()
	defer l.mx.Unlock()
	l.world = world
	l.balances = make(map[string]int64)
	for chatter, amount := range loaded {
		l.balances[chatter] = amount
	}
	l.pools = nil
	l.waves = nil

	return nil
}

// Flush persists the current balances under the current world, if any.
func (l *Ledger) Flush(ctx context.Context) error {
	l.mx.Lock()
	world := l.world
	snapshot := l.balancesSnapshotLocked()
	l.mx.Unlock()
	if world == nil {
		return nil
	}
	if err := l.store.UpsertBalances(ctx, *world, snapshot); err != nil {
		return errors.Wrapf(err, "failed to flush balances for world %v", *world)
	}
	log.Info("credits saved to storage", "world", *world, "accounts", len(snapshot))

	return nil
}

// Reset clears all in-memory balances, pools, waves and the pool sequence,
// and deletes every persisted row for the current world.
func (l *Ledger) Reset(ctx context.Context) error {
	l.mx.Lock()
	world := l.world
	l.balances = make(map[string]int64)
	l.pools = nil
	l.waves = nil
	l.poolSeq = 0
	l.mx.Unlock()
	if world == nil {
		return nil
	}

	return errors.Wrapf(l.store.DeleteByWorld(ctx, *world), "failed to delete balances for world %v", *world)
}

func (l *Ledger) OpenPool(target catalog.Target, customer string) *Pool {
	l.mx.Lock()
	defer l.mx.Unlock()
	l.poolSeq++
	pool := newPool(l.poolSeq, target, customer)
	l.pools = append(l.pools, pool)

	return pool
}

func (l *Ledger) FindPool(index int64) *Pool {
	l.mx.Lock()
	defer l.mx.Unlock()
	for _, pool := range l.pools {
		if pool.index == index {
			return pool
		}
	}

	return nil
}

func (l *Ledger) FindPoolByTarget(targetKey string) *Pool {
	l.mx.Lock()
	defer l.mx.Unlock()
	for _, pool := range l.pools {
		if catalog.TargetKey(pool.target) == targetKey {
			return pool
		}
	}

	return nil
}

func (l *Ledger) Pools() []*Pool {
	l.mx.Lock()
	defer l.mx.Unlock()
	snapshot := make([]*Pool, len(l.pools))
	copy(snapshot, l.pools)

	return snapshot
}

// ContributePool delegates to the pool's contribution rule and returns the applied amount,
// 0 if no such pool exists.
func (l *Ledger) ContributePool(chatter string, amount, poolIndex int64) int64 {
	pool := l.FindPool(poolIndex)
	if pool == nil {
		return 0
	}

	return pool.Contribute(Normalize(chatter), amount)
}

// ResolvePoolPayment removes the pool from the active set and debits every contributor's
// stored balance by their escrowed amount, exactly once. A pool that is no longer in the
// active set debits nothing and the call reports false. Call it only after the linked
// action succeeded.
func (l *Ledger) ResolvePoolPayment(pool *Pool) bool {
	contributions := pool.contributionsSnapshot()
	l.mx.Lock()
	defer l.mx.Unlock()
	removed := false
	for i, candidate := range l.pools {
		if candidate == pool {
			l.pools = append(l.pools[:i], l.pools[i+1:]...)
			removed = true

			break
		}
	}
	if !removed {
		return false
	}
	for chatter, amount := range contributions {
		l.modBalanceLocked(chatter, -amount)
	}

	return true
}

func (l *Ledger) OpenWave(chatter string, targetCount int) (*Wave, error) {
	chatter = Normalize(chatter)
	l.mx.Lock()
	defer l.mx.Unlock()
	for _, wave := range l.waves {
		if wave.chatter == chatter {
			return nil, terror.New(ErrWaveInProgress, map[string]any{"chatter": chatter})
		}
	}
	wave := newWave(chatter, targetCount)
	l.waves = append(l.waves, wave)

	return wave, nil
}

func (l *Ledger) FindWave(chatter string) *Wave {
	chatter = Normalize(chatter)
	l.mx.Lock()
	defer l.mx.Unlock()
	for _, wave := range l.waves {
		if wave.chatter == chatter {
			return wave
		}
	}

	return nil
}

func (l *Ledger) Waves() []*Wave {
	l.mx.Lock()
	defer l.mx.Unlock()
	snapshot := make([]*Wave, len(l.waves))
	copy(snapshot, l.waves)

	return snapshot
}

// CancelWave removes the owner's wave with no debit, contributions were never subtracted
// from real balances. Returns the removed wave, nil if there was none.
func (l *Ledger) CancelWave(chatter string) *Wave {
	chatter = Normalize(chatter)
	l.mx.Lock()
	defer l.mx.Unlock()
	for i, wave := range l.waves {
		if wave.chatter == chatter {
			l.waves = append(l.waves[:i], l.waves[i+1:]...)

			return wave
		}
	}

	return nil
}

// ResolveWavePayment removes the wave from the active set and debits every contributor,
// exactly once. A wave that is no longer in the active set debits nothing.
func (l *Ledger) ResolveWavePayment(wave *Wave) bool {
	contributions := wave.contributionsSnapshot()
	l.mx.Lock()
	defer l.mx.Unlock()
	removed := false
	for i, candidate := range l.waves {
		if candidate == wave {
			l.waves = append(l.waves[:i], l.waves[i+1:]...)
			removed = true

			break
		}
	}
	if !removed {
		return false
	}
	for chatter, amount := range contributions {
		l.modBalanceLocked(chatter, -amount)
	}

	return true
}

func (l *Ledger) ensureAccountLocked(chatter string) int64 {
	if _, found := l.balances[chatter]; !found {
		l.balances[chatter] = l.cfg.Kitchen.StartingBalance
	}

	return l.balances[chatter]
}

func (l *Ledger) modBalanceLocked(chatter string, delta int64) {
	balance := l.ensureAccountLocked(chatter) + delta
	if balance < 0 {
		balance = 0
	}
	l.balances[chatter] = balance
}

func (l *Ledger) availableLocked(chatter string) int64 {
	available := l.ensureAccountLocked(chatter)
	for _, pool := range l.pools {
		available -= pool.ContributionOf(chatter)
	}
	for _, wave := range l.waves {
		available -= wave.ContributionOf(chatter)
	}

	return available
}

func (l *Ledger) balancesSnapshotLocked() map[string]int64 {
	snapshot := make(map[string]int64, len(l.balances))
	for chatter, amount := range l.balances {
		snapshot[chatter] = amount
	}

	return snapshot
}

func sameWorld(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}

	return *a == *b
}
