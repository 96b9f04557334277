package websocket

import (
	"testing"
	"time"

	"github.com/HanphoneJan/Ai-Interview-Agent/internal/config"
)

// TestConnection_ConfiguredLimits verifies the write buffer size and write
// timeout from configuration are applied to the connection.
func TestConnection_ConfiguredLimits(t *testing.T) {
	conn := NewConnection(nil, "s1", "c1", "candidate", 7, 2*time.Second)
	defer conn.Close()

	if got := cap(conn.writeCh); got != 7 {
		t.Errorf("Expected write buffer capacity 7, got %d", got)
	}
	if conn.writeTimeout != 2*time.Second {
		t.Errorf("Expected write timeout 2s, got %v", conn.writeTimeout)
	}
}

// TestConnection_DefaultLimits verifies non-positive values fall back to the
// defaults.
func TestConnection_DefaultLimits(t *testing.T) {
	conn := NewConnection(nil, "s1", "c1", "candidate", 0, 0)
	defer conn.Close()

	if got := cap(conn.writeCh); got != 100 {
		t.Errorf("Expected default write buffer capacity 100, got %d", got)
	}
	if conn.writeTimeout != 5*time.Second {
		t.Errorf("Expected default write timeout 5s, got %v", conn.writeTimeout)
	}
}

// TestHandler_WebSocketConfigApplied verifies the handler threads the
// websocket configuration through to its timeouts and buffer size.
func TestHandler_WebSocketConfigApplied(t *testing.T) {
	wsCfg := &config.WebSocketConfig{
		PingInterval: 10 * time.Second,
		ReadTimeout:  45 * time.Second,
		WriteTimeout: 3 * time.Second,
		BufferSize:   32,
	}
	h := NewHandler(NewRegistry(), nil, nil, nil, nil, nil, nil, NewIngestLimiter(0), wsCfg, 0)

	if h.pingInterval != 10*time.Second {
		t.Errorf("Expected ping interval 10s, got %v", h.pingInterval)
	}
	if h.readTimeout != 45*time.Second {
		t.Errorf("Expected read timeout 45s, got %v", h.readTimeout)
	}
	if h.writeTimeout != 3*time.Second {
		t.Errorf("Expected write timeout 3s, got %v", h.writeTimeout)
	}
	if h.bufferSize != 32 {
		t.Errorf("Expected buffer size 32, got %d", h.bufferSize)
	}
}

// TestHandler_NilConfigFallsBackToReadDeadline verifies a missing websocket
// configuration yields a read deadline of twice the ping interval.
func TestHandler_NilConfigFallsBackToReadDeadline(t *testing.T) {
	h := NewHandler(NewRegistry(), nil, nil, nil, nil, nil, nil, NewIngestLimiter(0), nil, 0)

	if h.pingInterval != 30*time.Second {
		t.Errorf("Expected default ping interval 30s, got %v", h.pingInterval)
	}
	if h.readTimeout != 60*time.Second {
		t.Errorf("Expected read deadline 60s, got %v", h.readTimeout)
	}
}
