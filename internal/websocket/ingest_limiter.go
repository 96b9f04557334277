package websocket

import (
	"sync"
	"time"
)

// IngestLimiter bounds the chunk rate per session with a minute window.
// It protects the reassembly path from a runaway client flooding chunks
// faster than any real media capture produces them.
type IngestLimiter struct {
	mu              sync.Mutex
	sessions        map[string]*sessionWindow
	chunksPerMinute int
}

type sessionWindow struct {
	chunkCount  int
	windowStart time.Time
}

// NewIngestLimiter creates an ingest limiter.
func NewIngestLimiter(chunksPerMinute int) *IngestLimiter {
	if chunksPerMinute <= 0 {
		chunksPerMinute = 600
	}
	return &IngestLimiter{
		sessions:        make(map[string]*sessionWindow),
		chunksPerMinute: chunksPerMinute,
	}
}

// Allow reports whether the session may ingest another chunk.
func (l *IngestLimiter) Allow(sessionID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()

	window, exists := l.sessions[sessionID]
	if !exists {
		l.sessions[sessionID] = &sessionWindow{chunkCount: 1, windowStart: now}
		return true
	}

	if now.Sub(window.windowStart) >= time.Minute {
		window.chunkCount = 1
		window.windowStart = now
		return true
	}

	if window.chunkCount >= l.chunksPerMinute {
		return false
	}

	window.chunkCount++
	return true
}

// Release drops the session's window state when its last connection goes.
func (l *IngestLimiter) Release(sessionID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.sessions, sessionID)
}

// Cleanup removes windows idle for five minutes.
func (l *IngestLimiter) Cleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	for sessionID, window := range l.sessions {
		if now.Sub(window.windowStart) > 5*time.Minute {
			delete(l.sessions, sessionID)
		}
	}
}
