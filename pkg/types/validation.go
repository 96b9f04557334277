package types

import (
	"regexp"
)

// Compiled once; session ids are validated on every inbound envelope.
var sessionIDRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// IsValidSessionID reports whether id is a well-formed session identifier.
func IsValidSessionID(id string) bool {
	return id != "" && len(id) <= 64 && sessionIDRegex.MatchString(id)
}

// IsValidMediaType reports whether t is a supported media type tag.
func IsValidMediaType(t string) bool {
	return t == MediaTypeAudio || t == MediaTypeVideo
}

// Validate checks an inbound envelope before any component touches it.
// A validation failure is a local transport error: the envelope is dropped
// and reported to the sender, the session continues.
func (m *ClientMessage) Validate() error {
	switch m.Type {
	case MessageTypeMediaChunk:
		if m.SessionID == "" {
			return ErrMissingSessionID
		}
		if !IsValidSessionID(m.SessionID) {
			return ErrInvalidSessionID
		}
		if !IsValidMediaType(m.MediaType) {
			return ErrInvalidMediaType
		}
		if m.Chunk == "" {
			return ErrEmptyChunk
		}
		return nil
	case MessageTypeControl:
		return nil
	case MessageTypeImage:
		if m.Data == "" {
			return ErrEmptyImageData
		}
		return nil
	default:
		return ErrInvalidMessageType
	}
}
