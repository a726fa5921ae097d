// Package protocol implements the deployment wire protocol: length-prefixed
// TCP framing, the `<Request>` XML grammar, and the general/config-scoped
// dispatch split (spec.md 4.7).
package protocol

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// readChunkSize is the maximum number of bytes read per message; the
// protocol presumes well-formed single-frame arrivals (spec.md 4.7, §9 open
// question — fragmentation/coalescing is explicitly undefined upstream).
const readChunkSize = 2048

// Frame is one parsed deployment request before XML decoding.
type Frame struct {
	Kind     byte
	ConfigID string
	Payload  []byte
}

// ErrFrameTooShort is a ProtocolFrameError (spec.md 7): the connection is
// dropped when this occurs.
var ErrFrameTooShort = fmt.Errorf("protocol: frame shorter than its header")

// ParseFrame decodes the framing header described in spec.md 4.7 out of a
// single read chunk.
func ParseFrame(buf []byte) (Frame, error) {
	if len(buf) < 3 {
		return Frame{}, ErrFrameTooShort
	}
	kind := buf[0]
	size := int(binary.BigEndian.Uint16(buf[1:3]))

	if size == 0 {
		if len(buf) < 6 {
			return Frame{}, ErrFrameTooShort
		}
		return Frame{Kind: kind, Payload: buf[6:]}, nil
	}

	end := 3 + size
	if len(buf) < end+3 {
		return Frame{}, ErrFrameTooShort
	}
	configID := string(buf[3:end])
	payloadStart := end + 3
	if len(buf) < payloadStart {
		return Frame{}, ErrFrameTooShort
	}
	return Frame{Kind: kind, ConfigID: configID, Payload: buf[payloadStart:]}, nil
}

// Sanitize strips the 4diac serialization quirk's stray entity sequences
// before XML parsing (spec.md 4.7).
func Sanitize(payload []byte) []byte {
	s := string(payload)
	s = strings.ReplaceAll(s, "&apos;", "")
	s = strings.ReplaceAll(s, "&quote;", "")
	return []byte(s)
}
