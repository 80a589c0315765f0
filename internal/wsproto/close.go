package wsproto

import (
	"encoding/binary"
	"errors"
)

// ErrBadClosePayload is a close payload too short to hold a status code
var ErrBadClosePayload = errors.New("close payload of one byte")

// CloseCode is a status code carried in a close frame
type CloseCode uint16

const (
	CloseNormal          CloseCode = 1000
	CloseGoingAway       CloseCode = 1001
	CloseProtocolError   CloseCode = 1002
	CloseUnsupportedData CloseCode = 1003
	CloseNoStatus        CloseCode = 1005
	ClosePolicyViolation CloseCode = 1008
	CloseMessageTooBig   CloseCode = 1009
	CloseInternalError   CloseCode = 1011
)

// EncodeClose builds a close frame with a status code and reason. The reason
// is truncated so the payload fits in a control frame.
func EncodeClose(code CloseCode, reason string) []byte {
	if len(reason) > MaxControlPayload-2 {
		reason = reason[:MaxControlPayload-2]
	}
	payload := make([]byte, 2+len(reason))
	binary.BigEndian.PutUint16(payload, uint16(code))
	copy(payload[2:], reason)
	// control payloads are always below the short-form threshold
	frame, _ := Encode(payload, OpClose)
	return frame
}

// ParseClose extracts the status code and reason from a close payload.
// An empty payload reports CloseNoStatus; a single byte is a protocol error.
func ParseClose(payload []byte) (CloseCode, string, error) {
	switch len(payload) {
	case 0:
		return CloseNoStatus, "", nil
	case 1:
		return 0, "", ErrBadClosePayload
	}
	return CloseCode(binary.BigEndian.Uint16(payload)), string(payload[2:]), nil
}
