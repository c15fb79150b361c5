// SPDX-License-Identifier: MIT

package frame

import (
	"github.com/pkg/errors"
)

// Public API.

type (
	// Opcode is the 4 bit frame type from RFC 6455, section 5.2.
	Opcode byte
)

const (
	OpContinuation Opcode = 0x0
	OpText         Opcode = 0x1
	OpBinary       Opcode = 0x2
	OpClose        Opcode = 0x8
	OpPing         Opcode = 0x9
	OpPong         Opcode = 0xA
)

var (
	ErrTruncated = errors.New("truncated frame")
	ErrMalformed = errors.New("malformed frame")
)

// Private API.

const (
	// GUID is the fixed handshake key suffix from RFC 6455, section 1.3.
	guid = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"

	finBit  = 0x80
	maskBit = 0x80

	len7Max  = 125
	len16    = 126
	len64    = 127
	len16Max = 65535

	// Overlay clients only ever send short chat and keepalive text, so Read rejects any
	// declared payload length above this as ErrMalformed before allocating for it.
	maxInboundFrameLen = 1 << 20

	maskKeySize = 4
)
