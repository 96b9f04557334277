package media

import (
	"encoding/base64"
	"fmt"
	"strings"
	"sync"
	"time"
)

// CompletedUnit is a fully reassembled media payload ready for transcoding.
type CompletedUnit struct {
	SessionID  string
	MediaType  string
	Payload    []byte
	ReceivedAt time.Time
}

// buffer holds the pending chunks for one (session, media type) key.
type buffer struct {
	chunks [][]byte
	size   int
}

// Reassembler accumulates fragmented media chunks per session and media
// type until a unit completes. Completion happens on an explicit last-chunk
// marker or once maxPending chunks accumulate, whichever comes first.
//
// Arrival order is preserved only when chunks for the same key are ingested
// sequentially; the connection read loop provides that ordering since one
// goroutine reads each connection. The internal lock makes a flush atomic
// with respect to arrivals for the same key from other connections.
type Reassembler struct {
	maxPending int
	mu         sync.Mutex
	buffers    map[string]*buffer
}

// NewReassembler creates a reassembler flushing at maxPending chunks.
func NewReassembler(maxPending int) *Reassembler {
	if maxPending <= 0 {
		maxPending = 5
	}
	return &Reassembler{
		maxPending: maxPending,
		buffers:    make(map[string]*buffer),
	}
}

func bufferKey(sessionID, mediaType string) string {
	return sessionID + "/" + mediaType
}

// Ingest decodes one transport chunk and appends it to the session buffer.
// It returns a CompletedUnit when the unit finished, nil while pending.
// A decode failure is a local error returned to the caller; the buffer and
// the session are untouched.
func (r *Reassembler) Ingest(sessionID, mediaType, encoded string, isLast bool) (*CompletedUnit, error) {
	payload, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrChunkDecode, err)
	}
	if len(payload) == 0 {
		return nil, ErrEmptyChunk
	}

	key := bufferKey(sessionID, mediaType)

	r.mu.Lock()
	defer r.mu.Unlock()

	buf, exists := r.buffers[key]
	if !exists {
		buf = &buffer{}
		r.buffers[key] = buf
	}

	buf.chunks = append(buf.chunks, payload)
	buf.size += len(payload)

	if !isLast && len(buf.chunks) < r.maxPending {
		return nil, nil
	}

	// Flush: concatenate in arrival order and clear the buffer so the next
	// chunk starts a fresh unit. Each flush happens exactly once per
	// completion signal.
	unit := &CompletedUnit{
		SessionID:  sessionID,
		MediaType:  mediaType,
		Payload:    make([]byte, 0, buf.size),
		ReceivedAt: time.Now(),
	}
	for _, chunk := range buf.chunks {
		unit.Payload = append(unit.Payload, chunk...)
	}
	buf.chunks = nil
	buf.size = 0

	return unit, nil
}

// PendingChunks reports how many chunks are buffered for a key.
func (r *Reassembler) PendingChunks(sessionID, mediaType string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	if buf, exists := r.buffers[bufferKey(sessionID, mediaType)]; exists {
		return len(buf.chunks)
	}
	return 0
}

// Release drops all buffers belonging to a session. Called at connection
// teardown so half-received units do not outlive their session.
func (r *Reassembler) Release(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	prefix := sessionID + "/"
	for key := range r.buffers {
		if strings.HasPrefix(key, prefix) {
			delete(r.buffers, key)
		}
	}
}
