package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/bennydictor/visualmath/pkg/types"
)

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// GetLecture loads a lecture with its modules in presentation order.
func (m *Manager) GetLecture(ctx context.Context, id int64) (*types.Lecture, error) {
	var (
		l        types.Lecture
		authorID sql.NullInt64
	)
	err := m.db.QueryRowContext(ctx,
		`SELECT id, title, created_at, author_id, course_id FROM lectures WHERE id = ?`, id,
	).Scan(&l.ID, &l.Title, &l.CreatedAt, &authorID, &l.CourseID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: lecture %d", types.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query lecture: %w", err)
	}
	l.AuthorID = authorID.Int64

	ids, err := m.orderedIDs(ctx, m.db,
		`SELECT module_id FROM lecture_modules WHERE lecture_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query lecture modules: %w", err)
	}
	for _, moduleID := range ids {
		mod, err := m.loadModule(ctx, m.db, moduleID)
		if err != nil {
			return nil, fmt.Errorf("lecture %d: %w", id, err)
		}
		l.Modules = append(l.Modules, mod)
	}
	return &l, nil
}

func (m *Manager) orderedIDs(ctx context.Context, q queryer, query string, args ...interface{}) ([]int64, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (m *Manager) loadModule(ctx context.Context, q queryer, id int64) (types.Module, error) {
	var (
		kind       types.ModuleKind
		header     types.ModuleHeader
		authorID   sql.NullInt64
		courseID   sql.NullInt64
		text       string
		questionID sql.NullInt64
	)
	err := q.QueryRowContext(ctx, `
		SELECT id, kind, title, created_at, author_id, course_id, text, question_id
		FROM modules WHERE id = ?`, id,
	).Scan(&header.ID, &kind, &header.Title, &header.CreatedAt, &authorID, &courseID, &text, &questionID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: module %d", types.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query module %d: %w", id, err)
	}
	header.AuthorID = authorID.Int64
	header.CourseID = courseID.Int64

	switch kind {
	case types.ModuleVisual:
		return &types.VisualModule{ModuleHeader: header}, nil

	case types.ModuleText:
		mod := &types.TextModule{ModuleHeader: header, Text: text}
		if questionID.Valid {
			mod.Question, err = m.loadQuestion(ctx, q, questionID.Int64)
			if err != nil {
				return nil, err
			}
		}
		return mod, nil

	case types.ModuleTestBlock:
		ids, err := m.orderedIDs(ctx, q,
			`SELECT module_id FROM test_block_modules WHERE block_id = ? ORDER BY position`, id)
		if err != nil {
			return nil, fmt.Errorf("failed to query test block %d: %w", id, err)
		}
		block := &types.TestBlockModule{ModuleHeader: header}
		for _, subID := range ids {
			sub, err := m.loadModule(ctx, q, subID)
			if err != nil {
				return nil, err
			}
			text, ok := sub.(*types.TextModule)
			if !ok {
				return nil, fmt.Errorf("test block %d contains %s module %d", id, sub.Kind(), subID)
			}
			block.Modules = append(block.Modules, text)
		}
		return block, nil

	default:
		return nil, fmt.Errorf("module %d has unknown kind %q", id, kind)
	}
}

func (m *Manager) loadQuestion(ctx context.Context, q queryer, id int64) (types.Question, error) {
	var (
		kind    types.QuestionKind
		correct string
		checker sql.NullString
	)
	err := q.QueryRowContext(ctx,
		`SELECT kind, correct_answer, checker FROM questions WHERE id = ?`, id,
	).Scan(&kind, &correct, &checker)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: question %d", types.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query question %d: %w", id, err)
	}

	if kind == types.QuestionFreeResponse {
		return &types.FreeResponseQuestion{ID: id, CorrectAnswer: correct, Checker: types.Checker(checker.String)}, nil
	}

	rows, err := q.QueryContext(ctx,
		`SELECT text, correct FROM question_variants WHERE question_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query variants of question %d: %w", id, err)
	}
	defer func() { _ = rows.Close() }()

	var variants []types.SelectVariant
	for rows.Next() {
		var v types.SelectVariant
		if err := rows.Scan(&v.Text, &v.Correct); err != nil {
			return nil, err
		}
		variants = append(variants, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	switch kind {
	case types.QuestionMultipleChoice:
		idx, err := strconv.Atoi(correct)
		if err != nil {
			return nil, fmt.Errorf("question %d has malformed answer %q", id, correct)
		}
		mc := &types.MultipleChoiceQuestion{ID: id, CorrectAnswer: idx}
		for _, v := range variants {
			mc.Variants = append(mc.Variants, v.Text)
		}
		return mc, nil
	case types.QuestionMultipleSelect:
		return &types.MultipleSelectQuestion{ID: id, Variants: variants}, nil
	default:
		return nil, fmt.Errorf("question %d has unknown kind %q", id, kind)
	}
}

// CreateLecture validates and stores l with all of its modules and questions
// in one transaction, then numbers the lecture questions in module order.
func (m *Manager) CreateLecture(ctx context.Context, l *types.Lecture) error {
	if err := l.Validate(); err != nil {
		return fmt.Errorf("%w: %v", types.ErrBadRequest, err)
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now().UTC()
	}

	return m.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO lectures (title, created_at, author_id, course_id) VALUES (?, ?, ?, ?)`,
			l.Title, l.CreatedAt, nullInt64(l.AuthorID), l.CourseID)
		if err != nil {
			return fmt.Errorf("failed to insert lecture: %w", err)
		}
		if l.ID, err = res.LastInsertId(); err != nil {
			return err
		}

		number := 0
		for pos, mod := range l.Modules {
			if err := insertModule(ctx, tx, mod); err != nil {
				return fmt.Errorf("module %d: %w", pos, err)
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO lecture_modules (lecture_id, position, module_id) VALUES (?, ?, ?)`,
				l.ID, pos, mod.Header().ID); err != nil {
				return fmt.Errorf("failed to link module %d: %w", pos, err)
			}
			for _, q := range types.ModuleQuestions(mod) {
				if q == nil {
					number++
					continue
				}
				if _, err := tx.ExecContext(ctx,
					`INSERT INTO lecture_questions (lecture_id, number, question_id) VALUES (?, ?, ?)`,
					l.ID, number, q.QuestionID()); err != nil {
					return fmt.Errorf("failed to number question %d: %w", number, err)
				}
				number++
			}
		}
		return nil
	})
}

func insertModule(ctx context.Context, tx *sql.Tx, mod types.Module) error {
	h := mod.Header()
	if h.CreatedAt.IsZero() {
		h.CreatedAt = time.Now().UTC()
	}

	var (
		text       string
		questionID sql.NullInt64
	)
	if tm, ok := mod.(*types.TextModule); ok {
		text = tm.Text
		if tm.Question != nil {
			id, err := insertQuestion(ctx, tx, tm.Question)
			if err != nil {
				return err
			}
			questionID = sql.NullInt64{Int64: id, Valid: true}
		}
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO modules (kind, title, created_at, author_id, course_id, text, question_id)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		string(mod.Kind()), h.Title, h.CreatedAt, nullInt64(h.AuthorID), nullInt64(h.CourseID), text, questionID)
	if err != nil {
		return fmt.Errorf("failed to insert module: %w", err)
	}
	if h.ID, err = res.LastInsertId(); err != nil {
		return err
	}

	if block, ok := mod.(*types.TestBlockModule); ok {
		for pos, sub := range block.Modules {
			if err := insertModule(ctx, tx, sub); err != nil {
				return fmt.Errorf("sub-module %d: %w", pos, err)
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO test_block_modules (block_id, position, module_id) VALUES (?, ?, ?)`,
				h.ID, pos, sub.ID); err != nil {
				return fmt.Errorf("failed to link sub-module %d: %w", pos, err)
			}
		}
	}
	return nil
}

// insertQuestion stores q and sets its ID.
func insertQuestion(ctx context.Context, tx *sql.Tx, q types.Question) (int64, error) {
	var (
		correct  string
		checker  sql.NullString
		variants []types.SelectVariant
	)
	switch q := q.(type) {
	case *types.MultipleChoiceQuestion:
		correct = strconv.Itoa(q.CorrectAnswer)
		for i, v := range q.Variants {
			variants = append(variants, types.SelectVariant{Text: v, Correct: i == q.CorrectAnswer})
		}
	case *types.MultipleSelectQuestion:
		variants = q.Variants
	case *types.FreeResponseQuestion:
		correct = q.CorrectAnswer
		checker = sql.NullString{String: string(q.Checker), Valid: true}
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO questions (kind, correct_answer, checker) VALUES (?, ?, ?)`,
		string(q.Kind()), correct, checker)
	if err != nil {
		return 0, fmt.Errorf("failed to insert question: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	for pos, v := range variants {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO question_variants (question_id, position, text, correct) VALUES (?, ?, ?, ?)`,
			id, pos, v.Text, v.Correct); err != nil {
			return 0, fmt.Errorf("failed to insert variant %d: %w", pos, err)
		}
	}

	switch q := q.(type) {
	case *types.MultipleChoiceQuestion:
		q.ID = id
	case *types.MultipleSelectQuestion:
		q.ID = id
	case *types.FreeResponseQuestion:
		q.ID = id
	}
	return id, nil
}
