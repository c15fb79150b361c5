// SPDX-License-Identifier: MIT

package frame

import (
	"bufio"
	"crypto/sha1" //nolint:gosec // Mandated by RFC 6455 for the handshake, not used for security.
	"encoding/base64"
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

// AcceptKey derives the Sec-WebSocket-Accept value for the given Sec-WebSocket-Key.
func AcceptKey(clientKey string) string {
	h := sha1.New() //nolint:gosec // See the import note.
	h.Write([]byte(clientKey + guid))

	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// Encode builds a single, unfragmented, unmasked server-to-client frame.
func Encode(opcode Opcode, payload []byte) []byte {
	length := len(payload)
	var header []byte
	switch {
	case length <= len7Max:
		header = []byte{finBit | byte(opcode), byte(length)}
	case length <= len16Max:
		header = make([]byte, 4)
		header[0], header[1] = finBit|byte(opcode), len16
		binary.BigEndian.PutUint16(header[2:], uint16(length))
	default:
		header = make([]byte, 10)
		header[0], header[1] = finBit|byte(opcode), len64
		binary.BigEndian.PutUint64(header[2:], uint64(length))
	}

	return append(header, payload...)
}

// Decode parses one frame out of buf, unmasking the payload if the mask bit is set.
// It returns how many bytes of buf the frame consumed, so callers can decode back to back frames
// from a single read. Fragmentation is not supported, the FIN bit is ignored and every frame
// stands on its own.
func Decode(buf []byte) (opcode Opcode, payload []byte, consumed int, err error) {
	if len(buf) < 2 {
		return 0, nil, 0, ErrTruncated
	}
	opcode = Opcode(buf[0] & 0x0F)
	masked := buf[1]&maskBit != 0
	length := uint64(buf[1] & 0x7F)
	offset := 2
	switch length {
	case len16:
		if len(buf) < offset+2 {
			return 0, nil, 0, ErrTruncated
		}
		length = uint64(binary.BigEndian.Uint16(buf[offset:]))
		offset += 2
	case len64:
		if len(buf) < offset+8 {
			return 0, nil, 0, ErrTruncated
		}
		length = binary.BigEndian.Uint64(buf[offset:])
		offset += 8
		if length > uint64(1)<<62 {
			return 0, nil, 0, ErrMalformed
		}
	}
	var maskKey []byte
	if masked {
		if len(buf) < offset+maskKeySize {
			return 0, nil, 0, ErrTruncated
		}
		maskKey = buf[offset : offset+maskKeySize]
		offset += maskKeySize
	}
	if uint64(len(buf)) < uint64(offset)+length {
		return 0, nil, 0, ErrTruncated
	}
	payload = make([]byte, length)
	copy(payload, buf[offset:uint64(offset)+length])
	if masked {
		for i := range payload {
			payload[i] ^= maskKey[i%maskKeySize]
		}
	}

	return opcode, payload, offset + int(length), nil
}

// Read consumes exactly one frame from r. It is the streaming counterpart of Decode,
// used by connection read loops that block on the wire instead of polling buffers.
// Declared payload lengths above maxInboundFrameLen fail with ErrMalformed before any
// allocation happens. Fragmentation is not supported, the FIN bit is ignored.
func Read(r *bufio.Reader) (Opcode, []byte, error) {
	header := make([]byte, 2)
	if _, err := io.ReadFull(r, header); err != nil {
		return 0, nil, errors.Wrap(err, "failed to read frame header")
	}
	opcode := Opcode(header[0] & 0x0F)
	masked := header[1]&maskBit != 0
	length := uint64(header[1] & 0x7F)
	switch length {
	case len16:
		ext := make([]byte, 2)
		if _, err := io.ReadFull(r, ext); err != nil {
			return 0, nil, errors.Wrap(err, "failed to read 16 bit frame length")
		}
		length = uint64(binary.BigEndian.Uint16(ext))
	case len64:
		ext := make([]byte, 8)
		if _, err := io.ReadFull(r, ext); err != nil {
			return 0, nil, errors.Wrap(err, "failed to read 64 bit frame length")
		}
		length = binary.BigEndian.Uint64(ext)
	}
	if length > maxInboundFrameLen {
		return 0, nil, ErrMalformed
	}
	var maskKey []byte
	if masked {
		maskKey = make([]byte, maskKeySize)
		if _, err := io.ReadFull(r, maskKey); err != nil {
			return 0, nil, errors.Wrap(err, "failed to read frame mask key")
		}
	}
	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return 0, nil, errors.Wrap(err, "failed to read frame payload")
	}
	if masked {
		for i := range payload {
			payload[i] ^= maskKey[i%maskKeySize]
		}
	}

	return opcode, payload, nil
}
