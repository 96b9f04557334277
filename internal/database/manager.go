package database

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	dbconfig "github.com/HanphoneJan/Ai-Interview-Agent/pkg/database"
	"github.com/HanphoneJan/Ai-Interview-Agent/pkg/interfaces"
	"github.com/HanphoneJan/Ai-Interview-Agent/pkg/types"
)

// Manager implements the interfaces.Store contract on sqlite. All writes
// flow through a single goroutine; sqlite tolerates concurrent reads under
// WAL but not concurrent writers.
type Manager struct {
	db           *sql.DB
	config       *dbconfig.Config
	writeChannel chan writeOperation
	shutdown     chan struct{}
	wg           sync.WaitGroup
	closed       bool
	mu           sync.RWMutex
}

type writeOperation struct {
	operation func(*sql.DB) error
	result    chan error
}

// NewManager opens the store, applies pragmas and bootstraps the schema.
func NewManager(config *dbconfig.Config) (*Manager, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid store configuration: %w", err)
	}

	db, err := sql.Open("sqlite3", config.DatabasePath+"?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(config.MaxConnections)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)
	db.SetConnMaxIdleTime(config.ConnMaxIdleTime)

	if err := dbconfig.ApplyOptimizations(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply sqlite optimizations: %w", err)
	}

	if err := dbconfig.EnsureSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	manager := &Manager{
		db:           db,
		config:       config,
		writeChannel: make(chan writeOperation, 100),
		shutdown:     make(chan struct{}),
	}

	manager.wg.Add(1)
	go manager.writeLoop()

	return manager, nil
}

// writeLoop processes all write operations in a single goroutine.
func (m *Manager) writeLoop() {
	defer m.wg.Done()

	for {
		select {
		case op := <-m.writeChannel:
			err := op.operation(m.db)
			if err != nil {
				log.Printf("Store write failed, retrying once: %v", err)
				time.Sleep(time.Second)
				err = op.operation(m.db)
				if err != nil {
					log.Printf("Store write failed after retry: %v", err)
				}
			}
			op.result <- err

		case <-m.shutdown:
			return
		}
	}
}

// executeWrite queues a write operation and waits for completion.
func (m *Manager) executeWrite(operation func(*sql.DB) error) error {
	m.mu.RLock()
	if m.closed {
		m.mu.RUnlock()
		return fmt.Errorf("store is closed")
	}
	m.mu.RUnlock()

	result := make(chan error, 1)

	select {
	case m.writeChannel <- writeOperation{operation: operation, result: result}:
		return <-result
	case <-time.After(30 * time.Second):
		return fmt.Errorf("write operation timeout")
	case <-m.shutdown:
		return fmt.Errorf("store is shutting down")
	}
}

// GetSession retrieves a session record by ID.
func (m *Manager) GetSession(ctx context.Context, sessionID string) (*types.Session, error) {
	row := m.db.QueryRowContext(ctx, `
		SELECT id, user_id, scenario_id, start_time, end_time, total_questions, finished
		FROM sessions WHERE id = ?`, sessionID)

	var s types.Session
	var endTime sql.NullTime
	err := row.Scan(&s.ID, &s.UserID, &s.ScenarioID, &s.StartTime, &endTime, &s.TotalQuestions, &s.Finished)
	if err == sql.ErrNoRows {
		return nil, interfaces.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session %s: %w", sessionID, err)
	}
	if endTime.Valid {
		s.EndTime = &endTime.Time
	}
	return &s, nil
}

// CreateSession inserts a new session record.
func (m *Manager) CreateSession(ctx context.Context, session *types.Session) error {
	return m.executeWrite(func(db *sql.DB) error {
		_, err := db.ExecContext(ctx, `
			INSERT INTO sessions (id, user_id, scenario_id, start_time, end_time, total_questions, finished)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			session.ID, session.UserID, session.ScenarioID, session.StartTime,
			session.EndTime, session.TotalQuestions, session.Finished)
		if err != nil {
			return fmt.Errorf("failed to create session %s: %w", session.ID, err)
		}
		return nil
	})
}

// MarkSessionFinished sets the finished flag and end time. Finishing an
// already-finished session is a no-op so detached tasks can race teardown.
func (m *Manager) MarkSessionFinished(ctx context.Context, sessionID string) error {
	return m.executeWrite(func(db *sql.DB) error {
		res, err := db.ExecContext(ctx, `
			UPDATE sessions SET finished = 1, end_time = ? WHERE id = ? AND finished = 0`,
			time.Now(), sessionID)
		if err != nil {
			return fmt.Errorf("failed to finish session %s: %w", sessionID, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			log.Printf("Session already finished or missing: id=%s", sessionID)
		}
		return nil
	})
}

// ListSessions returns the sessions owned by a user, newest first.
func (m *Manager) ListSessions(ctx context.Context, userID string) ([]*types.Session, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT id, user_id, scenario_id, start_time, end_time, total_questions, finished
		FROM sessions WHERE user_id = ? ORDER BY start_time DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*types.Session
	for rows.Next() {
		var s types.Session
		var endTime sql.NullTime
		if err := rows.Scan(&s.ID, &s.UserID, &s.ScenarioID, &s.StartTime, &endTime, &s.TotalQuestions, &s.Finished); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		if endTime.Valid {
			s.EndTime = &endTime.Time
		}
		sessions = append(sessions, &s)
	}
	return sessions, rows.Err()
}

// CreateQuestion appends a generated question and bumps the session count.
func (m *Manager) CreateQuestion(ctx context.Context, question *types.Question) error {
	return m.executeWrite(func(db *sql.DB) error {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer tx.Rollback()

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO questions (id, session_id, number, text, asked_at)
			VALUES (?, ?, ?, ?, ?)`,
			question.ID, question.SessionID, question.Number, question.Text, question.AskedAt); err != nil {
			return fmt.Errorf("failed to create question: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE sessions SET total_questions = total_questions + 1 WHERE id = ?`,
			question.SessionID); err != nil {
			return fmt.Errorf("failed to update question count: %w", err)
		}

		return tx.Commit()
	})
}

// CountQuestions returns how many questions a session has asked.
func (m *Manager) CountQuestions(ctx context.Context, sessionID string) (int, error) {
	var count int
	err := m.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM questions WHERE session_id = ?`, sessionID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count questions: %w", err)
	}
	return count, nil
}

// CreateAnalysis persists a multimodal analysis record.
func (m *Manager) CreateAnalysis(ctx context.Context, analysis *types.Analysis) error {
	return m.executeWrite(func(db *sql.DB) error {
		_, err := db.ExecContext(ctx, `
			INSERT INTO response_analyses (id, session_id, question_id, speech_text, facial_expression, created_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			analysis.ID, analysis.SessionID, analysis.QuestionID,
			analysis.SpeechText, analysis.FacialExpression, analysis.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to create analysis: %w", err)
		}
		return nil
	})
}

// LatestAnalysis returns the most recently created analysis for a session.
func (m *Manager) LatestAnalysis(ctx context.Context, sessionID string) (*types.Analysis, error) {
	row := m.db.QueryRowContext(ctx, `
		SELECT id, session_id, question_id, speech_text, facial_expression, created_at
		FROM response_analyses WHERE session_id = ?
		ORDER BY created_at DESC, id DESC LIMIT 1`, sessionID)

	var a types.Analysis
	err := row.Scan(&a.ID, &a.SessionID, &a.QuestionID, &a.SpeechText, &a.FacialExpression, &a.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, interfaces.ErrAnalysisNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest analysis: %w", err)
	}
	return &a, nil
}

// AttachVideoAnalysis writes facial features onto the latest analysis row
// for the session. Best-effort join: video annotates the most recent answer.
func (m *Manager) AttachVideoAnalysis(ctx context.Context, sessionID, facialExpression string) error {
	latest, err := m.LatestAnalysis(ctx, sessionID)
	if err != nil {
		return err
	}

	return m.executeWrite(func(db *sql.DB) error {
		_, err := db.ExecContext(ctx, `
			UPDATE response_analyses SET facial_expression = ? WHERE id = ?`,
			facialExpression, latest.ID)
		if err != nil {
			return fmt.Errorf("failed to attach video analysis: %w", err)
		}
		return nil
	})
}

// CreateEvaluation persists a per-question answer evaluation.
func (m *Manager) CreateEvaluation(ctx context.Context, evaluation *types.Evaluation) error {
	return m.executeWrite(func(db *sql.DB) error {
		_, err := db.ExecContext(ctx, `
			INSERT INTO answer_evaluations (id, session_id, question_id, analysis_id, text, score, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			evaluation.ID, evaluation.SessionID, evaluation.QuestionID,
			evaluation.AnalysisID, evaluation.Text, evaluation.Score, evaluation.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to create evaluation: %w", err)
		}
		return nil
	})
}

// HealthCheck verifies store connectivity.
func (m *Manager) HealthCheck(ctx context.Context) error {
	return m.db.PingContext(ctx)
}

// Close drains pending writes and closes the connection pool.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	close(m.shutdown)
	m.wg.Wait()
	return m.db.Close()
}
