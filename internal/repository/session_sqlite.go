package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/provpass/internal/model"
)

// SQLiteSessionStore keeps sessions in a local SQLite database (modernc.org/sqlite).
// Timestamps are stored as unix nanoseconds.
type SQLiteSessionStore struct {
	db *sql.DB
}

// NewSQLiteSessionStore creates a new SQLiteSessionStore. The schema must already
// be migrated (see database.Migrate).
func NewSQLiteSessionStore(db *sql.DB) *SQLiteSessionStore {
	return &SQLiteSessionStore{db: db}
}

const sqliteSessionColumns = `id, kind, pass_number, year, semester, current_question,
	time_remaining_ms, timer_enabled, started_at, last_updated, completed`

// ListSessions returns session headers matching the filter.
func (r *SQLiteSessionStore) ListSessions(ctx context.Context, filter SessionFilter) ([]model.Session, error) {
	query := `SELECT ` + sqliteSessionColumns + ` FROM practice_sessions WHERE 1=1`
	var args []any

	if filter.Kind != nil {
		query += " AND kind = ?"
		args = append(args, string(*filter.Kind))
	}
	if filter.PassNumber != nil {
		query += " AND pass_number = ?"
		args = append(args, *filter.PassNumber)
	}
	if filter.OpenOnly {
		query += " AND completed = 0"
	}
	query += " ORDER BY started_at ASC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []model.Session
	for rows.Next() {
		s, err := scanSQLiteSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *s)
	}
	return sessions, rows.Err()
}

// LoadSession retrieves a session and its answers.
func (r *SQLiteSessionStore) LoadSession(ctx context.Context, id uuid.UUID) (*model.Session, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+sqliteSessionColumns+` FROM practice_sessions WHERE id = ?`, id.String())
	s, err := scanSQLiteSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT question_number, selected_option, answered_at
		 FROM practice_answers
		 WHERE session_id = ?
		 ORDER BY question_number ASC`, id.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		a, err := scanSQLiteAnswer(rows)
		if err != nil {
			return nil, err
		}
		s.Answers = append(s.Answers, a)
	}
	return s, rows.Err()
}

// Save upserts the session row and rewrites its answers in one transaction.
func (r *SQLiteSessionStore) Save(ctx context.Context, s *model.Session, answers []model.Answer) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO practice_sessions (`+sqliteSessionColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
			current_question = excluded.current_question,
			time_remaining_ms = excluded.time_remaining_ms,
			last_updated = excluded.last_updated,
			completed = excluded.completed`,
		s.ID.String(), string(s.Identity.Kind), s.Identity.PassNumber,
		nullableYear(s.Identity), nullableSemester(s.Identity),
		s.CurrentQuestion, s.TimeRemaining.Milliseconds(), s.TimerEnabled,
		s.StartedAt.UnixNano(), s.LastUpdated.UnixNano(), s.Completed,
	)
	if err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM practice_answers WHERE session_id = ?`, s.ID.String()); err != nil {
		return fmt.Errorf("clear answers: %w", err)
	}

	if len(answers) > 0 {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO practice_answers (session_id, question_number, selected_option, answered_at)
			 VALUES (?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare answers: %w", err)
		}
		defer stmt.Close()

		for _, a := range answers {
			if _, err := stmt.ExecContext(ctx, s.ID.String(), a.QuestionNumber, a.SelectedOption, a.AnsweredAt.UnixNano()); err != nil {
				return fmt.Errorf("insert answer %d: %w", a.QuestionNumber, err)
			}
		}
	}

	return tx.Commit()
}

// Delete removes sessions and their answers.
func (r *SQLiteSessionStore) Delete(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id.String()
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM practice_answers WHERE session_id IN (`+placeholders+`)`, args...); err != nil {
		return fmt.Errorf("delete answers: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM practice_sessions WHERE id IN (`+placeholders+`)`, args...); err != nil {
		return fmt.Errorf("delete sessions: %w", err)
	}
	return tx.Commit()
}

// Close closes the underlying database.
func (r *SQLiteSessionStore) Close() error {
	return r.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

// scanSQLiteSession reads a session row without trusting column types. SQLite
// stores whatever was written, so a mistyped column decodes to a value
// Session.Validate rejects instead of failing the whole query.
func scanSQLiteSession(row rowScanner) (*model.Session, error) {
	var cols [11]any
	dest := make([]any, len(cols))
	for i := range cols {
		dest[i] = &cols[i]
	}
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	var d sqliteDecoder
	s := &model.Session{}

	// An unparsable id leaves uuid.Nil, which Session.Validate reports.
	s.ID, _ = uuid.Parse(d.text(cols[0]))
	pass := d.integer(cols[2], -1)
	s.Identity = identityFrom(d.text(cols[1]), int(pass), d.nullText(cols[3]), d.nullText(cols[4]))
	s.CurrentQuestion = int(d.integer(cols[5], 0))
	s.TimeRemaining = time.Duration(d.integer(cols[6], -1)) * time.Millisecond
	s.TimerEnabled = d.flag(cols[7])
	s.StartedAt = time.Unix(0, d.integer(cols[8], 0)).UTC()
	s.LastUpdated = time.Unix(0, d.integer(cols[9], 0)).UTC()
	s.Completed = d.flag(cols[10])

	if d.bad {
		s.CurrentQuestion = 0
	}
	return s, nil
}

func scanSQLiteAnswer(rows rowScanner) (model.Answer, error) {
	var q, opt, at any
	if err := rows.Scan(&q, &opt, &at); err != nil {
		return model.Answer{}, err
	}

	var d sqliteDecoder
	a := model.Answer{
		QuestionNumber: int(d.integer(q, 0)),
		SelectedOption: d.text(opt),
		AnsweredAt:     time.Unix(0, d.integer(at, 0)).UTC(),
	}
	if d.bad {
		a.QuestionNumber = 0
	}
	return a, nil
}

// sqliteDecoder converts raw column values and remembers whether any of them
// had the wrong type.
type sqliteDecoder struct {
	bad bool
}

func (d *sqliteDecoder) text(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []byte:
		return string(t)
	default:
		d.bad = true
		return ""
	}
}

func (d *sqliteDecoder) nullText(v any) *string {
	if v == nil {
		return nil
	}
	s := d.text(v)
	return &s
}

func (d *sqliteDecoder) integer(v any, fallback int64) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case float64:
		if t == float64(int64(t)) {
			return int64(t)
		}
	case string:
		if n, err := strconv.ParseInt(t, 10, 64); err == nil {
			return n
		}
	case []byte:
		if n, err := strconv.ParseInt(string(t), 10, 64); err == nil {
			return n
		}
	}
	d.bad = true
	return fallback
}

func (d *sqliteDecoder) flag(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case int64:
		if t == 0 || t == 1 {
			return t == 1
		}
	}
	d.bad = true
	return false
}
