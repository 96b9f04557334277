package media

import (
	"bytes"

	"github.com/HanphoneJan/Ai-Interview-Agent/pkg/types"
)

// Container signatures recognized before any external tool runs. The check
// is deliberately cheap: magic header plus a minimum size threshold.
var (
	magicEBML = []byte{0x1A, 0x45, 0xDF, 0xA3} // WebM / Matroska
	magicRIFF = []byte("RIFF")                 // WAV / AVI
	magicOggS = []byte("OggS")                 // Ogg
	magicID3  = []byte("ID3")                  // MP3 with ID3 tag
	magicFTYP = []byte("ftyp")                 // MP4 / MOV at offset 4
)

// Validator rejects payloads that cannot be a media container.
type Validator struct {
	minBytes int
}

// NewValidator creates a validator with the configured size threshold.
func NewValidator(minBytes int) *Validator {
	if minBytes <= 0 {
		minBytes = 128
	}
	return &Validator{minBytes: minBytes}
}

// Validate reports whether raw looks like a container of the given media
// type. Anything failing here is dropped before the decoder is invoked.
func (v *Validator) Validate(raw []byte, mediaType string) bool {
	if len(raw) < v.minBytes {
		return false
	}

	switch mediaType {
	case types.MediaTypeAudio:
		return hasAudioSignature(raw)
	case types.MediaTypeVideo:
		return hasVideoSignature(raw)
	default:
		return false
	}
}

func hasAudioSignature(raw []byte) bool {
	if bytes.HasPrefix(raw, magicRIFF) || bytes.HasPrefix(raw, magicOggS) ||
		bytes.HasPrefix(raw, magicID3) || bytes.HasPrefix(raw, magicEBML) {
		return true
	}
	if hasFtypBox(raw) {
		return true
	}
	// Raw MPEG audio frame sync (11 set bits).
	return len(raw) >= 2 && raw[0] == 0xFF && raw[1]&0xE0 == 0xE0
}

func hasVideoSignature(raw []byte) bool {
	if bytes.HasPrefix(raw, magicEBML) || hasFtypBox(raw) {
		return true
	}
	// AVI: RIFF....AVI<space>
	return len(raw) >= 12 && bytes.HasPrefix(raw, magicRIFF) && bytes.Equal(raw[8:12], []byte("AVI "))
}

func hasFtypBox(raw []byte) bool {
	return len(raw) >= 8 && bytes.Equal(raw[4:8], magicFTYP)
}
