package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/bennydictor/visualmath/pkg/interfaces"
	"github.com/bennydictor/visualmath/pkg/types"
)

const startedColumns = `id, lecture_id, lecturer_id, started_at, current_module_number, current_module_started`

func scanStarted(row interface{ Scan(...interface{}) error }) (*types.StartedLecture, error) {
	var (
		s      types.StartedLecture
		module sql.NullInt64
		gate   sql.NullBool
	)
	if err := row.Scan(&s.ID, &s.LectureID, &s.LecturerID, &s.StartedAt, &module, &gate); err != nil {
		return nil, err
	}
	if module.Valid {
		s.CurrentModuleNumber = types.IntPtr(int(module.Int64))
	}
	s.CurrentModuleStarted = types.GateFromNullBool(gate)
	return &s, nil
}

func moduleArg(n *int) sql.NullInt64 {
	if n == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*n), Valid: true}
}

// CreateStartedLecture inserts s and sets its ID.
func (m *Manager) CreateStartedLecture(ctx context.Context, s *types.StartedLecture) error {
	if s.StartedAt.IsZero() {
		s.StartedAt = time.Now().UTC()
	}
	return m.executeWrite(ctx, func(ctx context.Context, db *sql.DB) error {
		res, err := db.ExecContext(ctx, `
			INSERT INTO started_lectures (lecture_id, lecturer_id, started_at, current_module_number, current_module_started)
			VALUES (?, ?, ?, ?, ?)`,
			s.LectureID, s.LecturerID, s.StartedAt, moduleArg(s.CurrentModuleNumber), s.CurrentModuleStarted.NullBool())
		if err != nil {
			return fmt.Errorf("failed to insert started lecture: %w", err)
		}
		s.ID, err = res.LastInsertId()
		return err
	})
}

// GetStartedLecture reads one started lecture.
func (m *Manager) GetStartedLecture(ctx context.Context, id int64) (*types.StartedLecture, error) {
	s, err := scanStarted(m.db.QueryRowContext(ctx,
		`SELECT `+startedColumns+` FROM started_lectures WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: started lecture %d", types.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query started lecture: %w", err)
	}
	return s, nil
}

// UpdateStartedLecture is a compare-and-set on the module pointer and gate.
// SQLite's IS operator compares NULLs as equal, which the ended state needs.
func (m *Manager) UpdateStartedLecture(ctx context.Context, prev, next *types.StartedLecture) error {
	if prev.ID != next.ID {
		return fmt.Errorf("update of started lecture %d with state of %d", prev.ID, next.ID)
	}
	return m.executeWrite(ctx, func(ctx context.Context, db *sql.DB) error {
		res, err := db.ExecContext(ctx, `
			UPDATE started_lectures
			SET current_module_number = ?, current_module_started = ?
			WHERE id = ? AND current_module_number IS ? AND current_module_started IS ?`,
			moduleArg(next.CurrentModuleNumber), next.CurrentModuleStarted.NullBool(),
			prev.ID, moduleArg(prev.CurrentModuleNumber), prev.CurrentModuleStarted.NullBool())
		if err != nil {
			return fmt.Errorf("failed to update started lecture: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 1 {
			return nil
		}

		var exists int
		if err := db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM started_lectures WHERE id = ?`, prev.ID).Scan(&exists); err != nil {
			return err
		}
		if exists == 0 {
			return fmt.Errorf("%w: started lecture %d", types.ErrNotFound, prev.ID)
		}
		return interfaces.ErrStaleUpdate
	})
}

// ListActiveStartedLectures returns every started lecture that has not been stopped.
func (m *Manager) ListActiveStartedLectures(ctx context.Context) ([]*types.StartedLecture, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT `+startedColumns+` FROM started_lectures
		WHERE current_module_number IS NOT NULL
		ORDER BY started_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query active started lectures: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*types.StartedLecture
	for rows.Next() {
		s, err := scanStarted(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan started lecture: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating started lectures: %w", err)
	}
	return out, nil
}

// SaveResponse upserts a student's answer; a later answer replaces the earlier one.
func (m *Manager) SaveResponse(ctx context.Context, r *types.QuestionResponse) error {
	if r.AnsweredAt.IsZero() {
		r.AnsweredAt = time.Now().UTC()
	}
	return m.executeWrite(ctx, func(ctx context.Context, db *sql.DB) error {
		_, err := db.ExecContext(ctx, `
			INSERT INTO question_responses (started_lecture_id, question_number, user_id, response, correct, answered_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT (started_lecture_id, question_number, user_id)
			DO UPDATE SET response = excluded.response, correct = excluded.correct, answered_at = excluded.answered_at`,
			r.StartedLectureID, r.QuestionNumber, r.UserID, r.Response, r.Correct, r.AnsweredAt)
		if err != nil {
			return fmt.Errorf("failed to save response: %w", err)
		}
		return nil
	})
}

// ListResponses returns the answers of a started lecture by question then user.
func (m *Manager) ListResponses(ctx context.Context, startedLectureID int64) ([]*types.QuestionResponse, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT started_lecture_id, question_number, user_id, response, correct, answered_at
		FROM question_responses
		WHERE started_lecture_id = ?
		ORDER BY question_number, user_id`, startedLectureID)
	if err != nil {
		return nil, fmt.Errorf("failed to query responses: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*types.QuestionResponse
	for rows.Next() {
		var r types.QuestionResponse
		if err := rows.Scan(&r.StartedLectureID, &r.QuestionNumber, &r.UserID, &r.Response, &r.Correct, &r.AnsweredAt); err != nil {
			return nil, fmt.Errorf("failed to scan response: %w", err)
		}
		out = append(out, &r)
	}
	return out, rows.Err()
}
