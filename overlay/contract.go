// SPDX-License-Identifier: MIT

package overlay

// Public API.

type (
	// Broadcaster is the transport side the coordinator publishes through.
	Broadcaster interface {
		Broadcast(payload []byte)
	}

	// ConnWriter is a single connection, used for the initial snapshot only.
	ConnWriter interface {
		WriteText(payload []byte) error
	}

	Coordinator struct {
		broadcaster Broadcaster
	}
)

// Private API.
//
// One packet type per overlay state transition, the `event` field is the discriminator.
// Field names are part of the wire contract with the overlay page, do not rename.

type (
	poolStartPacket struct {
		Event  string `json:"event"`
		Name   string `json:"name"`
		Idx    int64  `json:"idx"`
		Target int64  `json:"target"`
	}
	poolUpdatePacket struct {
		Event            string `json:"event"`
		LastContributor  string `json:"lastContributor"`
		Idx              int64  `json:"idx"`
		LastContribution int64  `json:"lastContribution"`
		Current          int64  `json:"current"`
	}
	poolEndPacket struct {
		Event string `json:"event"`
		Idx   int64  `json:"idx"`
	}
	waveStartPacket struct {
		Event   string `json:"event"`
		Chatter string `json:"chatter"`
		Current int    `json:"current"`
		Target  int    `json:"target"`
	}
	waveUpdatePacket struct {
		Event     string `json:"event"`
		Chatter   string `json:"chatter"`
		By        string `json:"by"`
		Mob       string `json:"mob"`
		Current   int    `json:"current"`
		Increment int64  `json:"increment"`
	}
	waveEndPacket struct {
		Event   string `json:"event"`
		Chatter string `json:"chatter"`
	}
	poolSnapshot struct {
		Name    string `json:"name"`
		Idx     int64  `json:"idx"`
		Current int64  `json:"current"`
		Target  int64  `json:"target"`
	}
	waveSnapshot struct {
		Chatter string `json:"chatter"`
		Current int    `json:"current"`
		Target  int    `json:"target"`
	}
	initializePacket struct {
		Event string         `json:"event"`
		Pools []poolSnapshot `json:"pools"`
		Waves []waveSnapshot `json:"waves"`
	}
	eventOnlyPacket struct {
		Event string `json:"event"`
	}
)
