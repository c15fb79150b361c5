// SPDX-License-Identifier: MIT

package ledger

func newWave(chatter string, targetCount int) *Wave {
	return &Wave{
		contributions: make(map[string]int64),
		chatter:       chatter,
		targetCount:   targetCount,
	}
}

func (w *Wave) Chatter() string  { return w.chatter }
func (w *Wave) TargetCount() int { return w.targetCount }

// AddMobs appends n mobs to the wave and reports whether the target count is hit.
func (w *Wave) AddMobs(mobID string, n int64) bool {
	w.mx.Lock()
	defer w.mx.Unlock()
	for range n {
		w.mobs = append(w.mobs, mobID)
	}

	return len(w.mobs) >= w.targetCount
}

// AddContribution records the payer's currency share. Unlike pools there is no headroom
// clamp, the wave goal is a mob count, not a currency target.
func (w *Wave) AddContribution(chatter string, amount int64) int64 {
	w.mx.Lock()
	defer w.mx.Unlock()
	if existing, found := w.contributions[chatter]; found {
		if amount+existing < 0 {
			return 0
		}
		w.contributions[chatter] += amount
	} else {
		if amount <= 0 {
			return 0
		}
		w.contributions[chatter] = amount
	}

	return amount
}

// ClaimSettlement grants the settlement to exactly one of any number of racing callers,
// mirroring Pool.ClaimSettlement. ReleaseSettlement reopens the claim after a failed batch.
func (w *Wave) ClaimSettlement() bool {
	w.mx.Lock()
	defer w.mx.Unlock()
	if w.settling {
		return false
	}
	w.settling = true

	return true
}

func (w *Wave) ReleaseSettlement() {
	w.mx.Lock()
	defer w.mx.Unlock()
	w.settling = false
}

func (w *Wave) TargetHit() bool {
	w.mx.Lock()
	defer w.mx.Unlock()

	return len(w.mobs) >= w.targetCount
}

func (w *Wave) MobCount() int {
	w.mx.Lock()
	defer w.mx.Unlock()

	return len(w.mobs)
}

// Mobs returns the ordered mob sequence accumulated so far.
func (w *Wave) Mobs() []string {
	w.mx.Lock()
	defer w.mx.Unlock()
	snapshot := make([]string, len(w.mobs))
	copy(snapshot, w.mobs)

	return snapshot
}

func (w *Wave) TotalContributions() int64 {
	w.mx.Lock()
	defer w.mx.Unlock()
	var total int64
	for _, amount := range w.contributions {
		total += amount
	}

	return total
}

func (w *Wave) ContributionOf(chatter string) int64 {
	w.mx.Lock()
	defer w.mx.Unlock()

	return w.contributions[chatter]
}

func (w *Wave) contributionsSnapshot() map[string]int64 {
	w.mx.Lock()
	defer w.mx.Unlock()
	snapshot := make(map[string]int64, len(w.contributions))
	for chatter, amount := range w.contributions {
		snapshot[chatter] = amount
	}

	return snapshot
}
