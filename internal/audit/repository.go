// Package audit records every attempt to run the privileged sensor probe.
//
// Each row captures the executed command line, whether it ran behind the
// elevation prefix, its exit code, duration and outcome, plus the request
// that triggered it. Probe results themselves are not stored.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Page size limits for List.
const (
	defaultLimit = 50
	maxLimit     = 200
)

// timeLayout is fixed width so executed_at sorts correctly as text.
const timeLayout = "2006-01-02T15:04:05.000000Z"

// Execution is one recorded probe run.
type Execution struct {
	ID         string    `json:"id"`
	ExecutedAt time.Time `json:"executed_at"`
	Command    string    `json:"command"`
	Elevated   bool      `json:"elevated"`
	ExitCode   int       `json:"exit_code"`
	DurationMS int64     `json:"duration_ms"`
	Outcome    string    `json:"outcome"`
	Detected   bool      `json:"detected"`
	Error      string    `json:"error,omitempty"`
	RequestID  string    `json:"request_id,omitempty"`
	RemoteAddr string    `json:"remote_addr,omitempty"`
}

// Filter controls which executions List returns.
type Filter struct {
	Outcome string    // optional: ok, exec_error, parse_error, probe_error, internal_error
	Since   time.Time // optional: only executions at or after this time
	Limit   int       // default 50, max 200
	Offset  int       // pagination offset
}

// ListResult is one page of executions, newest first.
type ListResult struct {
	Executions []Execution `json:"executions"`
	Total      int         `json:"total"`
	Limit      int         `json:"limit"`
	Offset     int         `json:"offset"`
}

// Repository stores and queries probe executions.
type Repository interface {
	Create(ctx context.Context, e *Execution) error
	List(ctx context.Context, filter Filter) (*ListResult, error)
}

// SQLiteRepository keeps executions in the probe_executions table.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a repository on an open, migrated database.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Create inserts e. ID and ExecutedAt are filled in when empty.
func (r *SQLiteRepository) Create(ctx context.Context, e *Execution) error {
	if e.ID == "" {
		e.ID = "exe-" + uuid.NewString()[:8]
	}
	if e.ExecutedAt.IsZero() {
		e.ExecutedAt = time.Now()
	}
	e.ExecutedAt = e.ExecutedAt.UTC()

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO probe_executions
		   (id, executed_at, command, elevated, exit_code, duration_ms, outcome, detected, error, request_id, remote_addr)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID,
		e.ExecutedAt.Format(timeLayout),
		e.Command,
		boolToInt(e.Elevated),
		e.ExitCode,
		e.DurationMS,
		e.Outcome,
		boolToInt(e.Detected),
		nullableString(e.Error),
		nullableString(e.RequestID),
		nullableString(e.RemoteAddr),
	)
	if err != nil {
		return fmt.Errorf("inserting probe execution: %w", err)
	}
	return nil
}

// List returns executions matching filter, most recent first.
func (r *SQLiteRepository) List(ctx context.Context, filter Filter) (*ListResult, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultLimit
	}
	if filter.Limit > maxLimit {
		filter.Limit = maxLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	var conditions []string
	var args []any
	if filter.Outcome != "" {
		conditions = append(conditions, "outcome = ?")
		args = append(args, filter.Outcome)
	}
	if !filter.Since.IsZero() {
		conditions = append(conditions, "executed_at >= ?")
		args = append(args, filter.Since.UTC().Format(timeLayout))
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	countQuery := "SELECT COUNT(*) FROM probe_executions " + where //nolint:gosec // WHERE built from parameterised conditions
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting probe executions: %w", err)
	}

	query := `SELECT id, executed_at, command, elevated, exit_code, duration_ms, outcome, detected, error, request_id, remote_addr
		FROM probe_executions ` + where + ` ORDER BY executed_at DESC, id LIMIT ? OFFSET ?` //nolint:gosec // WHERE built from parameterised conditions
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying probe executions: %w", err)
	}
	defer rows.Close()

	executions := []Execution{}
	for rows.Next() {
		e, err := scanExecution(rows)
		if err != nil {
			return nil, err
		}
		executions = append(executions, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating probe executions: %w", err)
	}

	return &ListResult{
		Executions: executions,
		Total:      total,
		Limit:      filter.Limit,
		Offset:     filter.Offset,
	}, nil
}

func scanExecution(rows *sql.Rows) (Execution, error) {
	var e Execution
	var executedAt string
	var elevated, detected int
	var errMsg, reqID, remoteAddr sql.NullString
	if err := rows.Scan(&e.ID, &executedAt, &e.Command, &elevated, &e.ExitCode,
		&e.DurationMS, &e.Outcome, &detected, &errMsg, &reqID, &remoteAddr); err != nil {
		return Execution{}, fmt.Errorf("scanning probe execution: %w", err)
	}

	t, err := time.Parse(timeLayout, executedAt)
	if err != nil {
		return Execution{}, fmt.Errorf("parsing execution timestamp %q: %w", executedAt, err)
	}
	e.ExecutedAt = t
	e.Elevated = elevated != 0
	e.Detected = detected != 0
	e.Error = errMsg.String
	e.RequestID = reqID.String
	e.RemoteAddr = remoteAddr.String

	return e, nil
}

// nullableString maps "" to SQL NULL for optional TEXT columns.
func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
