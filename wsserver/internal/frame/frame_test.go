// SPDX-License-Identifier: MIT

package frame

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcceptKey(t *testing.T) {
	t.Parallel()
	// Example handshake from RFC 6455, section 1.3.
	assert.Equal(t, "s3pPLMBiTxaQ9kYGzzhZRbK+xOo=", AcceptKey("dGhlIHNhbXBsZSBub25jZQ=="))
}

func TestEncodeLengthEncodings(t *testing.T) {
	t.Parallel()
	short := Encode(OpText, bytes.Repeat([]byte{'a'}, 125))
	assert.Equal(t, byte(125), short[1])
	assert.Len(t, short, 2+125)

	medium := Encode(OpText, bytes.Repeat([]byte{'b'}, 126))
	assert.Equal(t, byte(126), medium[1])
	assert.Equal(t, uint16(126), binary.BigEndian.Uint16(medium[2:4]))
	assert.Len(t, medium, 4+126)

	long := Encode(OpText, bytes.Repeat([]byte{'c'}, 65536))
	assert.Equal(t, byte(127), long[1])
	assert.Equal(t, uint64(65536), binary.BigEndian.Uint64(long[2:10]))
	assert.Len(t, long, 10+65536)
}

func TestRoundTripServerToClient(t *testing.T) {
	t.Parallel()
	for _, size := range []int{0, 125, 126, 65535, 65536} {
		payload := bytes.Repeat([]byte{'x'}, size)
		opcode, decoded, consumed, err := Decode(Encode(OpText, payload))
		require.NoError(t, err, "payload size %v", size)
		assert.Equal(t, OpText, opcode)
		assert.Equal(t, payload, decoded)
		assert.Equal(t, len(Encode(OpText, payload)), consumed)
	}
}

func TestRoundTripClientToServer(t *testing.T) {
	t.Parallel()
	maskKey := []byte{0x1F, 0x2E, 0x3D, 0x4C}
	for _, size := range []int{0, 125, 126, 65535, 65536} {
		payload := bytes.Repeat([]byte{'k'}, size)
		opcode, decoded, consumed, err := Decode(maskedClientFrame(OpText, payload, maskKey))
		require.NoError(t, err, "payload size %v", size)
		assert.Equal(t, OpText, opcode)
		assert.Equal(t, payload, decoded)
		assert.Equal(t, len(maskedClientFrame(OpText, payload, maskKey)), consumed)
	}
}

func TestReadMatchesDecode(t *testing.T) {
	t.Parallel()
	maskKey := []byte{9, 8, 7, 6}
	for _, size := range []int{0, 125, 126, 65535, 65536} {
		payload := bytes.Repeat([]byte{'s'}, size)
		r := bufio.NewReader(bytes.NewReader(maskedClientFrame(OpText, payload, maskKey)))
		opcode, decoded, err := Read(r)
		require.NoError(t, err, "payload size %v", size)
		assert.Equal(t, OpText, opcode)
		assert.Equal(t, payload, decoded)
	}
}

func TestReadRejectsOversizedDeclaredLength(t *testing.T) {
	t.Parallel()
	// A 10 byte header declaring a huge payload must fail fast, not allocate.
	header := make([]byte, 10)
	header[0], header[1] = finBit|byte(OpText), len64
	binary.BigEndian.PutUint64(header[2:], 1<<45)
	_, _, err := Read(bufio.NewReader(bytes.NewReader(header)))
	require.ErrorIs(t, err, ErrMalformed)

	header[1] = len64 | maskBit
	_, _, err = Read(bufio.NewReader(bytes.NewReader(header)))
	require.ErrorIs(t, err, ErrMalformed)

	binary.BigEndian.PutUint64(header[2:], maxInboundFrameLen+1)
	_, _, err = Read(bufio.NewReader(bytes.NewReader(header)))
	require.ErrorIs(t, err, ErrMalformed)
}

func TestDecodeBackToBackFrames(t *testing.T) {
	t.Parallel()
	buf := append(Encode(OpText, []byte("first")), Encode(OpText, []byte("second"))...)
	opcode, payload, consumed, err := Decode(buf)
	require.NoError(t, err)
	assert.Equal(t, OpText, opcode)
	assert.Equal(t, []byte("first"), payload)
	_, payload, _, err = Decode(buf[consumed:])
	require.NoError(t, err)
	assert.Equal(t, []byte("second"), payload)
}

func TestDecodeZeroLengthPayloadIsValid(t *testing.T) {
	t.Parallel()
	opcode, payload, consumed, err := Decode(Encode(OpPing, nil))
	require.NoError(t, err)
	assert.Equal(t, OpPing, opcode)
	assert.Empty(t, payload)
	assert.Equal(t, 2, consumed)
}

func TestDecodeTruncated(t *testing.T) {
	t.Parallel()
	full := maskedClientFrame(OpText, []byte("truncate me"), []byte{1, 2, 3, 4})
	for cut := range len(full) {
		_, _, _, err := Decode(full[:cut])
		require.ErrorIs(t, err, ErrTruncated, "cut at %v", cut)
	}
}

func maskedClientFrame(opcode Opcode, payload, maskKey []byte) []byte {
	unmasked := Encode(opcode, payload)
	headerLen := len(unmasked) - len(payload)
	out := make([]byte, 0, len(unmasked)+len(maskKey))
	out = append(out, unmasked[:headerLen]...)
	out[1] |= maskBit
	out = append(out, maskKey...)
	for i, b := range payload {
		out = append(out, b^maskKey[i%len(maskKey)])
	}

	return out
}
