package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/HanphoneJan/Ai-Interview-Agent/internal/session"
	"github.com/HanphoneJan/Ai-Interview-Agent/pkg/interfaces"
	"github.com/HanphoneJan/Ai-Interview-Agent/pkg/types"
)

type handlerStubStore struct {
	known map[string]bool
}

func (s *handlerStubStore) GetSession(ctx context.Context, id string) (*types.Session, error) {
	if s.known[id] {
		return &types.Session{ID: id, UserID: "u1"}, nil
	}
	return nil, interfaces.ErrSessionNotFound
}
func (s *handlerStubStore) CreateSession(ctx context.Context, sess *types.Session) error { return nil }
func (s *handlerStubStore) MarkSessionFinished(ctx context.Context, id string) error     { return nil }
func (s *handlerStubStore) ListSessions(ctx context.Context, u string) ([]*types.Session, error) {
	return nil, nil
}
func (s *handlerStubStore) CreateQuestion(ctx context.Context, q *types.Question) error { return nil }
func (s *handlerStubStore) CountQuestions(ctx context.Context, id string) (int, error)  { return 0, nil }
func (s *handlerStubStore) CreateAnalysis(ctx context.Context, a *types.Analysis) error { return nil }
func (s *handlerStubStore) LatestAnalysis(ctx context.Context, id string) (*types.Analysis, error) {
	return nil, interfaces.ErrAnalysisNotFound
}
func (s *handlerStubStore) AttachVideoAnalysis(ctx context.Context, id, f string) error     { return nil }
func (s *handlerStubStore) CreateEvaluation(ctx context.Context, e *types.Evaluation) error { return nil }
func (s *handlerStubStore) HealthCheck(ctx context.Context) error                           { return nil }
func (s *handlerStubStore) Close() error                                                    { return nil }

func newRejectionHandler(store *handlerStubStore) *Handler {
	sessions := session.NewManager(store)
	return NewHandler(NewRegistry(), sessions, nil, nil, nil, nil, nil, NewIngestLimiter(0), nil, 0)
}

// TestHandler_MissingSessionID verifies the request is rejected before any
// upgrade attempt when session_id is absent.
func TestHandler_MissingSessionID(t *testing.T) {
	h := newRejectionHandler(&handlerStubStore{})

	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	rec := httptest.NewRecorder()
	h.HandleWebSocket(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", rec.Code)
	}
}

func TestHandler_InvalidSessionIDFormat(t *testing.T) {
	h := newRejectionHandler(&handlerStubStore{})

	req := httptest.NewRequest(http.MethodGet, "/ws?session_id=bad/id", nil)
	rec := httptest.NewRecorder()
	h.HandleWebSocket(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", rec.Code)
	}
}

func TestHandler_UnknownSessionNotFound(t *testing.T) {
	h := newRejectionHandler(&handlerStubStore{known: map[string]bool{}})

	req := httptest.NewRequest(http.MethodGet, "/ws?session_id=ghost", nil)
	rec := httptest.NewRecorder()
	h.HandleWebSocket(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", rec.Code)
	}
}
