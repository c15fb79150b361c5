// SPDX-License-Identifier: MIT

package ledger

import (
	"fmt"

	"github.com/streamkitchen/kettle/catalog"
)

func newPool(index int64, target catalog.Target, customer string) *Pool {
	name := fmt.Sprintf("Pool %v - %v", index, target.TargetName())
	if target.Kind() == catalog.KindEvent {
		name = fmt.Sprintf("Event Pool %v - %v", index, target.TargetName())
	}

	return &Pool{
		contributions: make(map[string]int64),
		target:        target,
		name:          name,
		customer:      customer,
		index:         index,
	}
}

func (p *Pool) Index() int64           { return p.index }
func (p *Pool) Name() string           { return p.name }
func (p *Pool) Customer() string       { return p.customer }
func (p *Pool) Target() catalog.Target { return p.target }
func (p *Pool) TargetValue() int64     { return p.target.Price() }

// Contribute applies at most the pool's remaining headroom and returns the amount
// actually applied. Callers must use the returned value, not the requested one,
// for balance math and overlay updates.
func (p *Pool) Contribute(chatter string, amount int64) int64 {
	p.mx.Lock()
	defer p.mx.Unlock()
	if headroom := p.TargetValue() - p.totalLocked(); amount > headroom {
		amount = headroom
	}
	if existing, found := p.contributions[chatter]; found {
		if amount+existing < 0 {
			return 0
		}
		p.contributions[chatter] += amount
	} else {
		if amount <= 0 {
			return 0
		}
		p.contributions[chatter] = amount
	}

	return amount
}

// ClaimSettlement grants the settlement to exactly one of any number of racing callers.
// The winner runs the pool's action and resolves payment; losers must leave the pool alone.
// ReleaseSettlement reopens the claim after a failed action so a later command can retry.
func (p *Pool) ClaimSettlement() bool {
	p.mx.Lock()
	defer p.mx.Unlock()
	if p.settling {
		return false
	}
	p.settling = true

	return true
}

func (p *Pool) ReleaseSettlement() {
	p.mx.Lock()
	defer p.mx.Unlock()
	p.settling = false
}

// MarkEnded latches the pool as announced, returning true only for the first caller.
func (p *Pool) MarkEnded() bool {
	p.mx.Lock()
	defer p.mx.Unlock()
	if p.ended {
		return false
	}
	p.ended = true

	return true
}

func (p *Pool) TotalContributions() int64 {
	p.mx.Lock()
	defer p.mx.Unlock()

	return p.totalLocked()
}

func (p *Pool) TargetReached() bool {
	return p.TotalContributions() >= p.TargetValue()
}

func (p *Pool) ContributionOf(chatter string) int64 {
	p.mx.Lock()
	defer p.mx.Unlock()

	return p.contributions[chatter]
}

// Contributors is the number of chatters with a positive contribution.
func (p *Pool) Contributors() int {
	p.mx.Lock()
	defer p.mx.Unlock()
	count := 0
	for _, amount := range p.contributions {
		if amount > 0 {
			count++
		}
	}

	return count
}

func (p *Pool) contributionsSnapshot() map[string]int64 {
	p.mx.Lock()
	defer p.mx.Unlock()
	snapshot := make(map[string]int64, len(p.contributions))
	for chatter, amount := range p.contributions {
		snapshot[chatter] = amount
	}

	return snapshot
}

func (p *Pool) totalLocked() int64 {
	var total int64
	for _, amount := range p.contributions {
		total += amount
	}

	return total
}
