package database

import (
	"database/sql"
	"fmt"
)

// SchemaValidator checks that an opened database carries the tables, columns
// and indexes the store layer queries.
type SchemaValidator struct {
	db *sql.DB
}

// NewSchemaValidator creates a new schema validator
func NewSchemaValidator(db *sql.DB) *SchemaValidator {
	return &SchemaValidator{db: db}
}

// RequiredTables lists every table the store layer touches.
var RequiredTables = []string{
	"schema_migrations",
	"users",
	"tokens",
	"courses",
	"course_teachers",
	"course_students",
	"questions",
	"question_variants",
	"modules",
	"test_block_modules",
	"lectures",
	"lecture_modules",
	"lecture_questions",
	"started_lectures",
	"question_responses",
}

var requiredIndexes = []string{
	"idx_course_teachers_user",
	"idx_course_students_user",
	"idx_started_lectures_active",
	"idx_started_lectures_lecturer",
	"idx_question_responses_user",
}

// Validate runs every check.
func (v *SchemaValidator) Validate() error {
	if err := v.ValidateTablesExist(); err != nil {
		return err
	}
	if err := v.ValidateTableStructure(); err != nil {
		return err
	}
	return v.ValidateIndexes()
}

// ValidateTablesExist verifies that all required tables exist
func (v *SchemaValidator) ValidateTablesExist() error {
	for _, table := range RequiredTables {
		exists, err := v.exists("table", table)
		if err != nil {
			return fmt.Errorf("error checking table %s: %w", table, err)
		}
		if !exists {
			return fmt.Errorf("required table %s does not exist", table)
		}
	}
	return nil
}

// ValidateTableStructure verifies the columns of the session state tables,
// the ones the live engine writes concurrently.
func (v *SchemaValidator) ValidateTableStructure() error {
	startedColumns := map[string]string{
		"id":                     "INTEGER",
		"lecture_id":             "INTEGER",
		"lecturer_id":            "INTEGER",
		"started_at":             "DATETIME",
		"current_module_number":  "INTEGER",
		"current_module_started": "INTEGER",
	}
	if err := v.validateColumns("started_lectures", startedColumns); err != nil {
		return fmt.Errorf("started_lectures table structure invalid: %w", err)
	}

	responseColumns := map[string]string{
		"started_lecture_id": "INTEGER",
		"question_number":    "INTEGER",
		"user_id":            "INTEGER",
		"response":           "TEXT",
		"correct":            "INTEGER",
		"answered_at":        "DATETIME",
	}
	if err := v.validateColumns("question_responses", responseColumns); err != nil {
		return fmt.Errorf("question_responses table structure invalid: %w", err)
	}

	return nil
}

// ValidateIndexes verifies that all lookup indexes exist
func (v *SchemaValidator) ValidateIndexes() error {
	for _, index := range requiredIndexes {
		exists, err := v.exists("index", index)
		if err != nil {
			return fmt.Errorf("error checking index %s: %w", index, err)
		}
		if !exists {
			return fmt.Errorf("required index %s does not exist", index)
		}
	}
	return nil
}

func (v *SchemaValidator) exists(kind, name string) (bool, error) {
	var count int
	err := v.db.QueryRow(
		"SELECT COUNT(*) FROM sqlite_master WHERE type=? AND name=?",
		kind, name,
	).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (v *SchemaValidator) validateColumns(tableName string, expected map[string]string) error {
	rows, err := v.db.Query(fmt.Sprintf("PRAGMA table_info(%s)", tableName))
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()

	found := make(map[string]string)
	for rows.Next() {
		var (
			cid          int
			name, typ    string
			notNull, pk  int
			defaultValue interface{}
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &defaultValue, &pk); err != nil {
			return err
		}
		found[name] = typ
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for col, typ := range expected {
		got, ok := found[col]
		if !ok {
			return fmt.Errorf("column %s not found", col)
		}
		if got != typ {
			return fmt.Errorf("column %s has type %s, expected %s", col, got, typ)
		}
	}
	return nil
}
