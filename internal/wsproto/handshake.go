package wsproto

import (
	"crypto/sha1"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// acceptGUID is the fixed suffix from RFC 6455 section 1.3
const acceptGUID = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"

// SupportedVersion is the only Sec-WebSocket-Version accepted
const SupportedVersion = "13"

var (
	ErrBadVersion = errors.New("unsupported websocket version")
	ErrMissingKey = errors.New("missing Sec-WebSocket-Key")
)

// AcceptKey computes the Sec-WebSocket-Accept value for a client key
func AcceptKey(key string) string {
	h := sha1.New()
	h.Write([]byte(key))
	h.Write([]byte(acceptGUID))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// Negotiate validates the upgrade headers and returns the accept token
func Negotiate(key, version string) (string, error) {
	if strings.TrimSpace(version) != SupportedVersion {
		return "", fmt.Errorf("%w: %q", ErrBadVersion, version)
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return "", ErrMissingKey
	}
	return AcceptKey(key), nil
}

// NegotiateRequest runs Negotiate against an HTTP upgrade request
func NegotiateRequest(r *http.Request) (string, error) {
	return Negotiate(r.Header.Get("Sec-WebSocket-Key"), r.Header.Get("Sec-WebSocket-Version"))
}

// WriteResponse writes the 101 Switching Protocols response
func WriteResponse(w io.Writer, accept string) error {
	_, err := io.WriteString(w, "HTTP/1.1 101 Switching Protocols\r\n"+
		"Upgrade: websocket\r\n"+
		"Connection: Upgrade\r\n"+
		"Sec-WebSocket-Accept: "+accept+"\r\n\r\n")
	return err
}

// WriteRejection writes a bare 400 response for a failed upgrade
func WriteRejection(w io.Writer, reason string) error {
	_, err := fmt.Fprintf(w, "HTTP/1.1 400 Bad Request\r\n"+
		"Content-Type: text/plain; charset=utf-8\r\n"+
		"Content-Length: %d\r\n"+
		"Connection: close\r\n\r\n%s", len(reason), reason)
	return err
}
