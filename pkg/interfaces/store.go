package interfaces

import (
	"context"

	"github.com/HanphoneJan/Ai-Interview-Agent/pkg/types"
)

// Store is the boundary to the external relational store. The pipeline only
// reads session records and appends derived records; it never deletes.
// Create calls are fire-and-forget from the pipeline's perspective: a failed
// write is logged and the turn continues or halts per the dialogue rules,
// the hosting process never crashes on store errors.
type Store interface {
	// Session operations

	// GetSession retrieves a session record by ID. Returns
	// ErrSessionNotFound when no record exists; this is the only error the
	// connection layer treats as fatal for a connection.
	GetSession(ctx context.Context, sessionID string) (*types.Session, error)

	// CreateSession inserts a new session record. Used by the HTTP surface
	// only; the realtime pipeline never creates sessions.
	CreateSession(ctx context.Context, session *types.Session) error

	// MarkSessionFinished sets the finished flag and end time. Finishing an
	// already-finished session is a no-op, not an error: detached analysis
	// tasks may race with connection teardown.
	MarkSessionFinished(ctx context.Context, sessionID string) error

	// ListSessions returns the sessions owned by a user, newest first.
	ListSessions(ctx context.Context, userID string) ([]*types.Session, error)

	// Question operations

	// CreateQuestion appends a generated question to a session.
	CreateQuestion(ctx context.Context, question *types.Question) error

	// CountQuestions returns how many questions a session has asked.
	CountQuestions(ctx context.Context, sessionID string) (int, error)

	// Analysis and evaluation operations

	// CreateAnalysis persists a multimodal analysis record for one answer.
	CreateAnalysis(ctx context.Context, analysis *types.Analysis) error

	// LatestAnalysis returns the most recently created analysis record for
	// a session, or ErrAnalysisNotFound when none exists.
	LatestAnalysis(ctx context.Context, sessionID string) (*types.Analysis, error)

	// AttachVideoAnalysis writes facial features onto the latest analysis
	// record for the session. This is a documented best-effort join: video
	// results annotate whichever answer was analyzed most recently rather
	// than a precisely matched turn.
	AttachVideoAnalysis(ctx context.Context, sessionID, facialExpression string) error

	// CreateEvaluation persists a per-question answer evaluation.
	CreateEvaluation(ctx context.Context, evaluation *types.Evaluation) error

	// Lifecycle

	// HealthCheck verifies store connectivity.
	HealthCheck(ctx context.Context) error

	// Close flushes pending writes and releases the connection.
	Close() error
}

// Deliverer fans a payload out to every connection subscribed to a session.
// Delivery is best-effort: unreachable connections are dropped from the
// group and never fail the calling turn.
type Deliverer interface {
	Deliver(sessionID string, payload any)
}
