// Package wsproto implements the subset of RFC 6455 the relay speaks:
// unfragmented text frames, close/ping/pong control frames, and the
// opening handshake. Extensions and binary payloads are not negotiated.
package wsproto

import (
	"encoding/binary"
	"errors"
	"math"
)

// Opcode identifies the frame type
type Opcode byte

const (
	OpContinuation Opcode = 0x0
	OpText         Opcode = 0x1
	OpBinary       Opcode = 0x2
	OpClose        Opcode = 0x8
	OpPing         Opcode = 0x9
	OpPong         Opcode = 0xA
)

// IsControl reports whether the opcode is a control opcode
func (o Opcode) IsControl() bool {
	return o&0x8 != 0
}

func (o Opcode) String() string {
	switch o {
	case OpContinuation:
		return "continuation"
	case OpText:
		return "text"
	case OpBinary:
		return "binary"
	case OpClose:
		return "close"
	case OpPing:
		return "ping"
	case OpPong:
		return "pong"
	default:
		return "unknown"
	}
}

const (
	finBit   = 0x80
	rsvBits  = 0x70
	maskBit  = 0x80
	lenMask  = 0x7F
	opMask   = 0x0F
	len16    = 126
	len64    = 127
	keyBytes = 4

	// MaxControlPayload is the largest payload a control frame may carry
	MaxControlPayload = 125

	// DefaultMaxPayload bounds inbound payloads when the caller sets no limit
	DefaultMaxPayload = 64 * 1024
)

// Protocol violations. Any of these is fatal to the connection.
var (
	ErrFragmented      = errors.New("fragmented frames are not supported")
	ErrUnmasked        = errors.New("client frame is not masked")
	ErrReservedBits    = errors.New("reserved bits set without a negotiated extension")
	ErrControlTooLarge = errors.New("control frame payload exceeds 125 bytes")
	ErrPayloadTooLarge = errors.New("frame payload exceeds the configured limit")
	ErrFrameTooLarge   = errors.New("frame payloads of 4 GiB or more are not supported")
)

// Frame is one decoded inbound frame
type Frame struct {
	Opcode  Opcode
	Payload []byte
}

// Encode builds an unmasked server-to-client frame with FIN set.
// The 64-bit length form only carries the low 32 bits.
func Encode(payload []byte, op Opcode) ([]byte, error) {
	n := len(payload)
	if uint64(n) > math.MaxUint32 {
		return nil, ErrFrameTooLarge
	}

	var header []byte
	switch {
	case n < len16:
		header = []byte{finBit | byte(op), byte(n)}
	case n < 1<<16:
		header = make([]byte, 4)
		header[0] = finBit | byte(op)
		header[1] = len16
		binary.BigEndian.PutUint16(header[2:], uint16(n))
	default:
		header = make([]byte, 10)
		header[0] = finBit | byte(op)
		header[1] = len64
		binary.BigEndian.PutUint32(header[6:], uint32(n))
	}

	frame := make([]byte, 0, len(header)+n)
	frame = append(frame, header...)
	return append(frame, payload...), nil
}

// Decoder turns an inbound byte stream into frames. Bytes belonging to an
// incomplete frame stay buffered until the next Feed.
type Decoder struct {
	// MaxPayload bounds a single frame payload; zero means DefaultMaxPayload
	MaxPayload int

	acc []byte
}

// Buffered returns the number of bytes waiting for the rest of their frame
func (d *Decoder) Buffered() int {
	return len(d.acc)
}

// Feed appends data to the accumulator and returns every complete frame.
// On error, frames decoded before the violation are still returned.
func (d *Decoder) Feed(data []byte) ([]Frame, error) {
	d.acc = append(d.acc, data...)
	frames, rest, err := Decode(d.acc, d.maxPayload())
	if err != nil {
		d.acc = nil
		return frames, err
	}
	if len(rest) == 0 {
		d.acc = d.acc[:0]
	} else if len(rest) != len(d.acc) {
		d.acc = append(d.acc[:0], rest...)
	}
	return frames, nil
}

func (d *Decoder) maxPayload() int {
	if d.MaxPayload <= 0 {
		return DefaultMaxPayload
	}
	return d.MaxPayload
}

// Decode parses as many complete masked client frames from acc as it can.
// rest is the unconsumed tail, which is acc itself when no full frame is
// available yet. Payloads are unmasked into freshly allocated slices.
func Decode(acc []byte, maxPayload int) (frames []Frame, rest []byte, err error) {
	rest = acc
	for len(rest) >= 2 {
		b0, b1 := rest[0], rest[1]

		if b0&rsvBits != 0 {
			return frames, nil, ErrReservedBits
		}
		if b0&finBit == 0 {
			return frames, nil, ErrFragmented
		}
		if b1&maskBit == 0 {
			return frames, nil, ErrUnmasked
		}
		op := Opcode(b0 & opMask)

		headerLen := 2
		var length uint64
		switch l := b1 & lenMask; l {
		case len16:
			headerLen += 2
			if len(rest) < headerLen {
				return frames, rest, nil
			}
			length = uint64(binary.BigEndian.Uint16(rest[2:4]))
		case len64:
			headerLen += 8
			if len(rest) < headerLen {
				return frames, rest, nil
			}
			length = binary.BigEndian.Uint64(rest[2:10])
			if length > math.MaxUint32 {
				return frames, nil, ErrFrameTooLarge
			}
		default:
			length = uint64(l)
		}

		if op.IsControl() && length > MaxControlPayload {
			return frames, nil, ErrControlTooLarge
		}
		if length > uint64(maxPayload) {
			return frames, nil, ErrPayloadTooLarge
		}

		total := headerLen + keyBytes + int(length)
		if len(rest) < total {
			return frames, rest, nil
		}

		key := rest[headerLen : headerLen+keyBytes]
		payload := make([]byte, length)
		copy(payload, rest[headerLen+keyBytes:total])
		Mask(payload, key)

		frames = append(frames, Frame{Opcode: op, Payload: payload})
		rest = rest[total:]
	}
	return frames, rest, nil
}

// Mask XORs data in place with key cycling modulo 4. Masking and unmasking
// are the same operation.
func Mask(data []byte, key []byte) {
	for i := range data {
		data[i] ^= key[i%keyBytes]
	}
}
