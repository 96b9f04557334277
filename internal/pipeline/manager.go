package pipeline

import (
	"context"
	"log"
	"sync"

	"github.com/HanphoneJan/Ai-Interview-Agent/internal/analysis"
	"github.com/HanphoneJan/Ai-Interview-Agent/internal/dialogue"
	"github.com/HanphoneJan/Ai-Interview-Agent/internal/media"
	"github.com/HanphoneJan/Ai-Interview-Agent/internal/session"
)

// Manager runs completed media units through analysis and dialogue
// progression. One worker goroutine per session keeps units for a single
// session in arrival order while sessions stay independent of each other.
type Manager struct {
	dispatcher *analysis.Dispatcher
	controller *dialogue.Controller
	sessions   *session.Manager
	queueSize  int

	mu       sync.Mutex
	workers  map[string]*worker
	shutdown bool
	wg       sync.WaitGroup
}

type worker struct {
	queue chan *media.CompletedUnit
}

// NewManager creates a pipeline manager.
func NewManager(dispatcher *analysis.Dispatcher, controller *dialogue.Controller, sessions *session.Manager, queueSize int) *Manager {
	if queueSize <= 0 {
		queueSize = 8
	}
	return &Manager{
		dispatcher: dispatcher,
		controller: controller,
		sessions:   sessions,
		queueSize:  queueSize,
		workers:    make(map[string]*worker),
	}
}

// Submit hands a completed unit to the session's worker. The call never
// blocks the connection read loop: a saturated queue drops the unit. The
// enqueue happens under the lock so a concurrent CloseSession cannot close
// the queue between the worker lookup and the send.
func (m *Manager) Submit(unit *media.CompletedUnit) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.shutdown {
		return ErrShuttingDown
	}
	w, ok := m.workers[unit.SessionID]
	if !ok {
		w = &worker{queue: make(chan *media.CompletedUnit, m.queueSize)}
		m.workers[unit.SessionID] = w
		m.wg.Add(1)
		go m.run(unit.SessionID, w)
	}

	select {
	case w.queue <- unit:
		return nil
	default:
		log.Printf("Dropping %s unit for session %s: analysis queue full", unit.MediaType, unit.SessionID)
		return ErrQueueFull
	}
}

// CloseSession stops accepting units for the session. The worker drains
// what was already queued before exiting, so in-flight turns complete.
func (m *Manager) CloseSession(sessionID string) {
	m.mu.Lock()
	w, ok := m.workers[sessionID]
	if ok {
		delete(m.workers, sessionID)
	}
	m.mu.Unlock()

	if ok {
		close(w.queue)
	}
}

// Shutdown closes every worker and waits for queued units to finish.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	m.shutdown = true
	for id, w := range m.workers {
		close(w.queue)
		delete(m.workers, id)
	}
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Count returns the number of live session workers.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.workers)
}

func (m *Manager) run(sessionID string, w *worker) {
	defer m.wg.Done()
	for unit := range w.queue {
		m.process(unit)
	}
	log.Printf("Analysis worker for session %s stopped", sessionID)
}

func (m *Manager) process(unit *media.CompletedUnit) {
	h, ok := m.sessions.Get(unit.SessionID)
	if !ok {
		log.Printf("Dropping %s unit for unknown session %s", unit.MediaType, unit.SessionID)
		return
	}

	ctx := context.Background()
	outcome := m.dispatcher.Dispatch(ctx, unit)

	if outcome.Audio != nil {
		if err := m.controller.HandleAudio(ctx, h, outcome.Audio); err != nil {
			log.Printf("Turn for session %s halted: %v", unit.SessionID, err)
		}
	}
	if outcome.Video != nil {
		m.controller.HandleVideo(ctx, h, outcome.Video)
	}
}
