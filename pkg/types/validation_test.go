package types

import "testing"

// TestIsValidSessionID covers the identifier format rules.
func TestIsValidSessionID(t *testing.T) {
	valid := []string{"abc123", "session_1", "a-b-c", "ABC"}
	for _, id := range valid {
		if !IsValidSessionID(id) {
			t.Errorf("Expected %q to be valid", id)
		}
	}

	invalid := []string{"", "has space", "semi;colon", "slash/id", string(make([]byte, 65))}
	for _, id := range invalid {
		if IsValidSessionID(id) {
			t.Errorf("Expected %q to be invalid", id)
		}
	}
}

// TestClientMessage_Validate covers the inbound envelope rules per type.
func TestClientMessage_Validate(t *testing.T) {
	cases := []struct {
		name    string
		msg     ClientMessage
		wantErr error
	}{
		{
			"valid media chunk",
			ClientMessage{Type: MessageTypeMediaChunk, SessionID: "s1", MediaType: MediaTypeAudio, Chunk: "AAAA"},
			nil,
		},
		{
			"missing session id",
			ClientMessage{Type: MessageTypeMediaChunk, MediaType: MediaTypeAudio, Chunk: "AAAA"},
			ErrMissingSessionID,
		},
		{
			"bad session id",
			ClientMessage{Type: MessageTypeMediaChunk, SessionID: "bad id!", MediaType: MediaTypeAudio, Chunk: "AAAA"},
			ErrInvalidSessionID,
		},
		{
			"bad media type",
			ClientMessage{Type: MessageTypeMediaChunk, SessionID: "s1", MediaType: "text", Chunk: "AAAA"},
			ErrInvalidMediaType,
		},
		{
			"empty chunk",
			ClientMessage{Type: MessageTypeMediaChunk, SessionID: "s1", MediaType: MediaTypeVideo},
			ErrEmptyChunk,
		},
		{
			"control message",
			ClientMessage{Type: MessageTypeControl, Action: "finish"},
			nil,
		},
		{
			"image with data",
			ClientMessage{Type: MessageTypeImage, Data: "AAAA"},
			nil,
		},
		{
			"image without data",
			ClientMessage{Type: MessageTypeImage},
			ErrEmptyImageData,
		},
		{
			"unknown type",
			ClientMessage{Type: "telepathy"},
			ErrInvalidMessageType,
		},
	}

	for _, tc := range cases {
		if err := tc.msg.Validate(); err != tc.wantErr {
			t.Errorf("%s: expected %v, got %v", tc.name, tc.wantErr, err)
		}
	}
}
