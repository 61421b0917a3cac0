package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/bennydictor/visualmath/pkg/types"
)

const userColumns = `u.id, u.first_name, u.last_name, u.middle_name, u.university,
	u.university_group, u.email, u.password, u.admin`

func scanUser(row interface{ Scan(...interface{}) error }) (*types.User, error) {
	var u types.User
	err := row.Scan(&u.ID, &u.FirstName, &u.LastName, &u.MiddleName, &u.University,
		&u.UniversityGroup, &u.Email, &u.Password, &u.Admin)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (m *Manager) getUser(ctx context.Context, what string, query string, args ...interface{}) (*types.User, error) {
	u, err := scanUser(m.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", types.ErrNotFound, what)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	return u, nil
}

// GetUser looks a user up by id.
func (m *Manager) GetUser(ctx context.Context, id int64) (*types.User, error) {
	return m.getUser(ctx, fmt.Sprintf("user %d", id),
		`SELECT `+userColumns+` FROM users u WHERE u.id = ?`, id)
}

// GetUserByEmail looks a user up by login email.
func (m *Manager) GetUserByEmail(ctx context.Context, email string) (*types.User, error) {
	return m.getUser(ctx, "user with that email",
		`SELECT `+userColumns+` FROM users u WHERE u.email = ?`, email)
}

// CreateUser inserts u and sets its ID. u.Password must already be hashed.
func (m *Manager) CreateUser(ctx context.Context, u *types.User) error {
	return m.executeWrite(ctx, func(ctx context.Context, db *sql.DB) error {
		res, err := db.ExecContext(ctx, `
			INSERT INTO users (first_name, last_name, middle_name, university,
				university_group, email, password, admin)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			u.FirstName, u.LastName, u.MiddleName, u.University,
			u.UniversityGroup, u.Email, u.Password, u.Admin)
		if err != nil {
			return fmt.Errorf("failed to insert user: %w", err)
		}
		u.ID, err = res.LastInsertId()
		return err
	})
}

// ReplaceToken drops the user's previous token and stores the new one.
func (m *Manager) ReplaceToken(ctx context.Context, userID int64, token string) error {
	return m.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM tokens WHERE user_id = ?`, userID); err != nil {
			return fmt.Errorf("failed to delete old tokens: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO tokens (token, user_id) VALUES (?, ?)`, token, userID); err != nil {
			return fmt.Errorf("failed to insert token: %w", err)
		}
		return nil
	})
}

// GetUserByToken resolves a bearer token to its user.
func (m *Manager) GetUserByToken(ctx context.Context, token string) (*types.User, error) {
	return m.getUser(ctx, "token",
		`SELECT `+userColumns+` FROM tokens t JOIN users u ON u.id = t.user_id WHERE t.token = ?`, token)
}

// GetCourse looks a course up by id.
func (m *Manager) GetCourse(ctx context.Context, id int64) (*types.Course, error) {
	var c types.Course
	err := m.db.QueryRowContext(ctx, `SELECT id, title FROM courses WHERE id = ?`, id).Scan(&c.ID, &c.Title)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: course %d", types.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query course: %w", err)
	}
	return &c, nil
}

// CreateCourse inserts c and sets its ID.
func (m *Manager) CreateCourse(ctx context.Context, c *types.Course) error {
	return m.executeWrite(ctx, func(ctx context.Context, db *sql.DB) error {
		res, err := db.ExecContext(ctx, `INSERT INTO courses (title) VALUES (?)`, c.Title)
		if err != nil {
			return fmt.Errorf("failed to insert course: %w", err)
		}
		c.ID, err = res.LastInsertId()
		return err
	})
}

func (m *Manager) addMember(ctx context.Context, table string, courseID, userID int64) error {
	return m.executeWrite(ctx, func(ctx context.Context, db *sql.DB) error {
		_, err := db.ExecContext(ctx,
			`INSERT OR IGNORE INTO `+table+` (course_id, user_id) VALUES (?, ?)`, courseID, userID)
		if err != nil {
			return fmt.Errorf("failed to insert into %s: %w", table, err)
		}
		return nil
	})
}

func (m *Manager) isMember(ctx context.Context, table string, courseID, userID int64) (bool, error) {
	var n int
	err := m.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM `+table+` WHERE course_id = ? AND user_id = ?`, courseID, userID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to query %s: %w", table, err)
	}
	return n > 0, nil
}

func (m *Manager) AddTeacher(ctx context.Context, courseID, userID int64) error {
	return m.addMember(ctx, "course_teachers", courseID, userID)
}

func (m *Manager) AddStudent(ctx context.Context, courseID, userID int64) error {
	return m.addMember(ctx, "course_students", courseID, userID)
}

func (m *Manager) IsTeacher(ctx context.Context, courseID, userID int64) (bool, error) {
	return m.isMember(ctx, "course_teachers", courseID, userID)
}

func (m *Manager) IsStudent(ctx context.Context, courseID, userID int64) (bool, error) {
	return m.isMember(ctx, "course_students", courseID, userID)
}
