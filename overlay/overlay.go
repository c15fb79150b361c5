// SPDX-License-Identifier: MIT

package overlay

import (
	"github.com/goccy/go-json"
	"github.com/pkg/errors"

	"github.com/streamkitchen/kettle/ledger"
	"github.com/streamkitchen/kettle/log"
)

func New(broadcaster Broadcaster) *Coordinator {
	return &Coordinator{broadcaster: broadcaster}
}

func (c *Coordinator) PoolStarted(pool *ledger.Pool) {
	c.send(&poolStartPacket{Event: "poolStart", Idx: pool.Index(), Name: pool.Name(), Target: pool.TargetValue()})
}

func (c *Coordinator) PoolUpdated(pool *ledger.Pool, contributor string, contribution int64) {
	c.send(&poolUpdatePacket{
		Event:            "poolUpdate",
		Idx:              pool.Index(),
		LastContribution: contribution,
		LastContributor:  contributor,
		Current:          pool.TotalContributions(),
	})
}

func (c *Coordinator) PoolEnded(pool *ledger.Pool) {
	c.send(&poolEndPacket{Event: "poolEnd", Idx: pool.Index()})
}

func (c *Coordinator) WaveStarted(wave *ledger.Wave) {
	c.send(&waveStartPacket{Event: "waveStart", Chatter: wave.Chatter(), Current: wave.MobCount(), Target: wave.TargetCount()})
}

func (c *Coordinator) WaveUpdated(wave *ledger.Wave, by string, increment int64, mob string) {
	c.send(&waveUpdatePacket{
		Event:     "waveUpdate",
		Chatter:   wave.Chatter(),
		By:        by,
		Current:   wave.MobCount(),
		Increment: increment,
		Mob:       mob,
	})
}

func (c *Coordinator) WaveEnded(chatter string) {
	c.send(&waveEndPacket{Event: "waveEnd", Chatter: chatter})
}

func (c *Coordinator) Reset() {
	c.send(&eventOnlyPacket{Event: "reset"})
}

func (c *Coordinator) Disconnected() {
	c.send(&eventOnlyPacket{Event: "disconnect"})
}

// Initialize writes the full pools+waves snapshot to one, newly registered, connection.
func (c *Coordinator) Initialize(w ConnWriter, pools []*ledger.Pool, waves []*ledger.Wave) {
	packet := &initializePacket{Event: "initialize", Pools: make([]poolSnapshot, 0, len(pools)), Waves: make([]waveSnapshot, 0, len(waves))}
	for _, pool := range pools {
		packet.Pools = append(packet.Pools, poolSnapshot{
			Idx:     pool.Index(),
			Name:    pool.Name(),
			Current: pool.TotalContributions(),
			Target:  pool.TargetValue(),
		})
	}
	for _, wave := range waves {
		packet.Waves = append(packet.Waves, waveSnapshot{Chatter: wave.Chatter(), Current: wave.MobCount(), Target: wave.TargetCount()})
	}
	payload, err := json.Marshal(packet)
	if err != nil {
		log.Error(errors.Wrap(err, "failed to marshal initialize packet"))

		return
	}
	log.Error(errors.Wrap(w.WriteText(payload), "failed to write initialize packet"))
}

func (c *Coordinator) send(packet any) {
	payload, err := json.Marshal(packet)
	if err != nil {
		log.Error(errors.Wrapf(err, "failed to marshal overlay packet %#v", packet))

		return
	}
	c.broadcaster.Broadcast(payload)
}
