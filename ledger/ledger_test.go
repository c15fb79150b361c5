// SPDX-License-Identifier: MIT

package ledger

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamkitchen/kettle/catalog"
	"github.com/streamkitchen/kettle/terror"
)

const applicationYAMLKey = "kettle"

type fakeStore struct {
	mx          sync.Mutex
	rows        map[int64]map[string]int64
	failUpserts bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{rows: make(map[int64]map[string]int64)}
}

func (f *fakeStore) UpsertBalances(_ context.Context, world int64, balances map[string]int64) error {
	f.mx.Lock()
	defer f.mx.Unlock()
	if f.failUpserts {
		return errors.New("storage unavailable")
	}
	if f.rows[world] == nil {
		f.rows[world] = make(map[string]int64)
	}
	for name, amount := range balances {
		f.rows[world][name] = amount
	}

	return nil
}

func (f *fakeStore) BalancesByWorld(_ context.Context, world int64) (map[string]int64, error) {
	f.mx.Lock()
	defer f.mx.Unlock()
	balances := make(map[string]int64, len(f.rows[world]))
	for name, amount := range f.rows[world] {
		balances[name] = amount
	}

	return balances, nil
}

func (f *fakeStore) DeleteByWorld(_ context.Context, world int64) error {
	f.mx.Lock()
	defer f.mx.Unlock()
	delete(f.rows, world)

	return nil
}

func feast() catalog.Item {
	return catalog.Item{Name: "feast", ID: "npc:feast", Cost: 300, Pooling: true}
}

func TestIncomeAccrual(t *testing.T) {
	t.Parallel()
	ldgr := New(newFakeStore(), applicationYAMLKey)
	ldgr.AddChatter("Alice")
	ldgr.AddChatter("bob")
	for range 3 {
		ldgr.Income()
	}
	assert.EqualValues(t, 530, ldgr.GetBalance("alice"))
	assert.EqualValues(t, 530, ldgr.GetBalance("ALICE"))
	assert.EqualValues(t, 530, ldgr.GetBalance("bob"))
	ldgr.RemoveChatter("bob")
	ldgr.Income()
	assert.EqualValues(t, 540, ldgr.GetBalance("alice"))
	assert.EqualValues(t, 530, ldgr.GetBalance("bob"))
}

func TestModBalanceClampsAtZero(t *testing.T) {
	t.Parallel()
	ldgr := New(newFakeStore(), applicationYAMLKey)
	ldgr.ModBalance("alice", -10_000)
	assert.EqualValues(t, 0, ldgr.GetBalance("alice"))
	ldgr.ModBalance("alice", 42)
	assert.EqualValues(t, 42, ldgr.GetBalance("alice"))
}

func TestGive(t *testing.T) {
	t.Parallel()
	ldgr := New(newFakeStore(), applicationYAMLKey)
	ldgr.AddChatter("bob")

	require.ErrorIs(t, ldgr.Give("alice", "bob", "abc"), ErrInvalidAmount)
	require.ErrorIs(t, ldgr.Give("alice", "bob", "-5"), ErrInvalidAmount)
	require.ErrorIs(t, ldgr.Give("alice", "carol", "10"), ErrUnknownRecipient)
	err := ldgr.Give("alice", "bob", "501")
	require.ErrorIs(t, err, ErrInsufficientFunds)
	tErr := terror.As(err)
	require.NotNil(t, tErr)
	assert.EqualValues(t, int64(500), tErr.Data["balance"])

	require.NoError(t, ldgr.Give("Alice", "BOB", "100"))
	assert.EqualValues(t, 400, ldgr.GetBalance("alice"))
	assert.EqualValues(t, 600, ldgr.GetBalance("bob"))
}

func TestAvailableBalanceExcludesEscrow(t *testing.T) {
	t.Parallel()
	ldgr := New(newFakeStore(), applicationYAMLKey)
	pool := ldgr.OpenPool(feast(), "alice")
	assert.EqualValues(t, 200, pool.Contribute("alice", 200))
	assert.EqualValues(t, 300, ldgr.GetBalance("alice"))

	wave, err := ldgr.OpenWave("alice", 10)
	require.NoError(t, err)
	assert.EqualValues(t, 100, wave.AddContribution("alice", 100))
	assert.EqualValues(t, 200, ldgr.GetBalance("alice"))

	ldgr.CancelWave("alice")
	assert.EqualValues(t, 300, ldgr.GetBalance("alice"))
}

func TestPoolContributionClampsToHeadroom(t *testing.T) {
	t.Parallel()
	ldgr := New(newFakeStore(), applicationYAMLKey)
	pool := ldgr.OpenPool(feast(), "alice")
	assert.EqualValues(t, 100, pool.Contribute("alice", 100))
	assert.EqualValues(t, 200, pool.Contribute("bob", 250))
	assert.EqualValues(t, 300, pool.TotalContributions())
	assert.True(t, pool.TargetReached())
	assert.EqualValues(t, 0, pool.Contribute("carol", 50))
}

func TestPoolContributionAdjustments(t *testing.T) {
	t.Parallel()
	ldgr := New(newFakeStore(), applicationYAMLKey)
	pool := ldgr.OpenPool(feast(), "alice")
	assert.EqualValues(t, 0, pool.Contribute("alice", -10))
	assert.EqualValues(t, 0, pool.Contribute("alice", 0))
	assert.EqualValues(t, 100, pool.Contribute("alice", 100))
	assert.EqualValues(t, 0, pool.Contribute("alice", -150))
	assert.EqualValues(t, -60, pool.Contribute("alice", -60))
	assert.EqualValues(t, 40, pool.ContributionOf("alice"))
	assert.Equal(t, 1, pool.Contributors())
}

func TestResolvePoolPaymentDebitsContributors(t *testing.T) {
	t.Parallel()
	ldgr := New(newFakeStore(), applicationYAMLKey)
	pool := ldgr.OpenPool(feast(), "alice")
	pool.Contribute("alice", 100)
	pool.Contribute("bob", 200)
	require.True(t, pool.TargetReached())

	ldgr.ResolvePoolPayment(pool)
	assert.Nil(t, ldgr.FindPool(pool.Index()))
	assert.EqualValues(t, 400, ldgr.GetBalance("alice"))
	assert.EqualValues(t, 300, ldgr.GetBalance("bob"))
}

func TestResolvePoolPaymentDebitsOnlyOnce(t *testing.T) {
	t.Parallel()
	ldgr := New(newFakeStore(), applicationYAMLKey)
	pool := ldgr.OpenPool(feast(), "alice")
	pool.Contribute("alice", 300)

	require.True(t, ldgr.ResolvePoolPayment(pool))
	assert.False(t, ldgr.ResolvePoolPayment(pool))
	assert.EqualValues(t, 200, ldgr.GetBalance("alice"))
}

func TestResolveWavePaymentDebitsOnlyOnce(t *testing.T) {
	t.Parallel()
	ldgr := New(newFakeStore(), applicationYAMLKey)
	wave, err := ldgr.OpenWave("alice", 1)
	require.NoError(t, err)
	wave.AddContribution("bob", 100)
	wave.AddMobs("npc:zombie", 1)

	require.True(t, ldgr.ResolveWavePayment(wave))
	assert.False(t, ldgr.ResolveWavePayment(wave))
	assert.EqualValues(t, 400, ldgr.GetBalance("bob"))
}

func TestSettlementClaimIsExclusive(t *testing.T) {
	t.Parallel()
	ldgr := New(newFakeStore(), applicationYAMLKey)
	pool := ldgr.OpenPool(feast(), "alice")
	require.True(t, pool.ClaimSettlement())
	assert.False(t, pool.ClaimSettlement())
	pool.ReleaseSettlement()
	assert.True(t, pool.ClaimSettlement())

	wave, err := ldgr.OpenWave("alice", 1)
	require.NoError(t, err)
	require.True(t, wave.ClaimSettlement())
	assert.False(t, wave.ClaimSettlement())
	wave.ReleaseSettlement()
	assert.True(t, wave.ClaimSettlement())
}

func TestFailedExecutionKeepsEscrowIntact(t *testing.T) {
	t.Parallel()
	ldgr := New(newFakeStore(), applicationYAMLKey)
	pool := ldgr.OpenPool(feast(), "alice")
	pool.Contribute("alice", 300)
	require.True(t, pool.TargetReached())

	// No resolve: the commitment stays active and no balance moved.
	assert.NotNil(t, ldgr.FindPool(pool.Index()))
	assert.EqualValues(t, 200, ldgr.GetBalance("alice"))

	ldgr.ResolvePoolPayment(pool)
	assert.EqualValues(t, 200, ldgr.GetBalance("alice"))
}

func TestConcurrentPoolContributionsNeverOvershoot(t *testing.T) {
	t.Parallel()
	ldgr := New(newFakeStore(), applicationYAMLKey)
	pool := ldgr.OpenPool(feast(), "alice")

	var wg sync.WaitGroup
	var appliedMx sync.Mutex
	var applied int64
	for i := range 50 {
		wg.Add(1)
		go func(ii int) {
			defer wg.Done()
			amount := pool.Contribute("chatter"+string(rune('a'+ii%26)), 10)
			appliedMx.Lock()
			applied += amount
			appliedMx.Unlock()
		}(i)
	}
	wg.Wait()

	assert.LessOrEqual(t, pool.TotalContributions(), pool.TargetValue())
	assert.EqualValues(t, pool.TotalContributions(), applied)
}

func TestPoolLookup(t *testing.T) {
	t.Parallel()
	ldgr := New(newFakeStore(), applicationYAMLKey)
	first := ldgr.OpenPool(feast(), "alice")
	second := ldgr.OpenPool(catalog.Event{Name: "party", ID: "event:party", Cost: 500}, "bob")

	assert.EqualValues(t, 1, first.Index())
	assert.EqualValues(t, 2, second.Index())
	assert.Equal(t, "Pool 1 - feast", first.Name())
	assert.Equal(t, "Event Pool 2 - party", second.Name())
	assert.Same(t, first, ldgr.FindPool(1))
	assert.Same(t, first, ldgr.FindPoolByTarget(catalog.TargetKey(feast())))
	assert.Nil(t, ldgr.FindPool(3))
	assert.Len(t, ldgr.Pools(), 2)
}

func TestOpenWaveOnePerChatter(t *testing.T) {
	t.Parallel()
	ldgr := New(newFakeStore(), applicationYAMLKey)
	wave, err := ldgr.OpenWave("Alice", 10)
	require.NoError(t, err)
	require.NotNil(t, wave)
	_, err = ldgr.OpenWave("alice", 20)
	require.ErrorIs(t, err, ErrWaveInProgress)
	assert.Same(t, wave, ldgr.FindWave("ALICE"))
}

func TestWaveLifecycle(t *testing.T) {
	t.Parallel()
	ldgr := New(newFakeStore(), applicationYAMLKey)
	wave, err := ldgr.OpenWave("alice", 3)
	require.NoError(t, err)

	assert.EqualValues(t, 100, wave.AddContribution("bob", 100))
	assert.False(t, wave.AddMobs("npc:zombie", 2))
	assert.True(t, wave.AddMobs("npc:demoneye", 1))
	assert.True(t, wave.TargetHit())
	assert.Equal(t, []string{"npc:zombie", "npc:zombie", "npc:demoneye"}, wave.Mobs())

	ldgr.ResolveWavePayment(wave)
	assert.Nil(t, ldgr.FindWave("alice"))
	assert.EqualValues(t, 400, ldgr.GetBalance("bob"))
}

func TestCancelWaveNeverDebits(t *testing.T) {
	t.Parallel()
	ldgr := New(newFakeStore(), applicationYAMLKey)
	wave, err := ldgr.OpenWave("alice", 10)
	require.NoError(t, err)
	wave.AddContribution("bob", 250)
	assert.EqualValues(t, 250, ldgr.GetBalance("bob"))

	removed := ldgr.CancelWave("alice")
	assert.Same(t, wave, removed)
	assert.Nil(t, ldgr.CancelWave("alice"))
	assert.EqualValues(t, 500, ldgr.GetBalance("bob"))
}

func TestSetWorldFlushesAndReloads(t *testing.T) {
	t.Parallel()
	store := newFakeStore()
	store.rows[2] = map[string]int64{"carol": 77}
	ldgr := New(store, applicationYAMLKey)
	ctx := context.Background()

	world1, world2 := int64(1), int64(2)
	require.NoError(t, ldgr.SetWorld(ctx, &world1))
	ldgr.ModBalance("alice", 100)
	ldgr.OpenPool(feast(), "alice")
	require.NoError(t, ldgr.SetWorld(ctx, &world1))

	require.NoError(t, ldgr.SetWorld(ctx, &world2))
	assert.EqualValues(t, 600, store.rows[1]["alice"])
	assert.EqualValues(t, 77, ldgr.GetBalance("carol"))
	assert.EqualValues(t, 500, ldgr.GetBalance("alice"))
	assert.Empty(t, ldgr.Pools())
}

func TestSetWorldAbortsOnStorageFailure(t *testing.T) {
	t.Parallel()
	store := newFakeStore()
	ldgr := New(store, applicationYAMLKey)
	ctx := context.Background()

	world1, world2 := int64(1), int64(2)
	require.NoError(t, ldgr.SetWorld(ctx, &world1))
	ldgr.ModBalance("alice", 100)

	store.failUpserts = true
	require.Error(t, ldgr.SetWorld(ctx, &world2))
	assert.EqualValues(t, 600, ldgr.GetBalance("alice"))
}

func TestFlush(t *testing.T) {
	t.Parallel()
	store := newFakeStore()
	ldgr := New(store, applicationYAMLKey)
	ctx := context.Background()

	require.NoError(t, ldgr.Flush(ctx))
	assert.Empty(t, store.rows)

	world1 := int64(1)
	require.NoError(t, ldgr.SetWorld(ctx, &world1))
	ldgr.ModBalance("alice", -100)
	require.NoError(t, ldgr.Flush(ctx))
	assert.EqualValues(t, 400, store.rows[1]["alice"])
}

func TestReset(t *testing.T) {
	t.Parallel()
	store := newFakeStore()
	ldgr := New(store, applicationYAMLKey)
	ctx := context.Background()

	world1 := int64(1)
	require.NoError(t, ldgr.SetWorld(ctx, &world1))
	ldgr.ModBalance("alice", 100)
	ldgr.OpenPool(feast(), "alice")
	_, err := ldgr.OpenWave("bob", 5)
	require.NoError(t, err)
	require.NoError(t, ldgr.Flush(ctx))

	require.NoError(t, ldgr.Reset(ctx))
	assert.EqualValues(t, 500, ldgr.GetBalance("alice"))
	assert.Empty(t, ldgr.Pools())
	assert.Empty(t, ldgr.Waves())
	assert.Empty(t, store.rows[1])
	assert.EqualValues(t, 1, ldgr.OpenPool(feast(), "alice").Index())
}

func TestSetIncomeIntervalFloor(t *testing.T) {
	t.Parallel()
	ldgr := New(newFakeStore(), applicationYAMLKey)
	ldgr.SetIncomeInterval(1)
	assert.Equal(t, minIncomeInterval, <-ldgr.intervalCh)
}

func TestSetIncomeIntervalKeepsLatest(t *testing.T) {
	t.Parallel()
	ldgr := New(newFakeStore(), applicationYAMLKey)
	ldgr.SetIncomeInterval(10 * time.Second)
	ldgr.SetIncomeInterval(20 * time.Second)
	assert.Equal(t, 20*time.Second, <-ldgr.intervalCh)
}

func TestContributePoolUnknownIndex(t *testing.T) {
	t.Parallel()
	ldgr := New(newFakeStore(), applicationYAMLKey)
	assert.EqualValues(t, 0, ldgr.ContributePool("alice", 100, 42))
}
