package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/provpass/internal/model"
)

// PostgresSessionStore handles practice session data access on PostgreSQL.
type PostgresSessionStore struct {
	pool *pgxpool.Pool
}

// NewPostgresSessionStore creates a new PostgresSessionStore.
func NewPostgresSessionStore(pool *pgxpool.Pool) *PostgresSessionStore {
	return &PostgresSessionStore{pool: pool}
}

const pgSessionColumns = `id, kind, pass_number, year, semester, current_question,
	time_remaining_ms, timer_enabled, started_at, last_updated, completed`

// ListSessions retrieves session headers, with optional filters.
func (r *PostgresSessionStore) ListSessions(ctx context.Context, filter SessionFilter) ([]model.Session, error) {
	query := `SELECT ` + pgSessionColumns + ` FROM practice_sessions WHERE TRUE`
	var args []any

	if filter.Kind != nil {
		args = append(args, string(*filter.Kind))
		query += fmt.Sprintf(" AND kind = $%d", len(args))
	}
	if filter.PassNumber != nil {
		args = append(args, *filter.PassNumber)
		query += fmt.Sprintf(" AND pass_number = $%d", len(args))
	}
	if filter.OpenOnly {
		query += " AND NOT completed"
	}
	query += " ORDER BY started_at ASC"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []model.Session
	for rows.Next() {
		s, err := scanPgSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *s)
	}
	return sessions, rows.Err()
}

// LoadSession retrieves a session with its answers.
func (r *PostgresSessionStore) LoadSession(ctx context.Context, id uuid.UUID) (*model.Session, error) {
	s, err := scanPgSession(r.pool.QueryRow(ctx,
		`SELECT `+pgSessionColumns+` FROM practice_sessions WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT question_number, selected_option, answered_at
		 FROM practice_answers
		 WHERE session_id = $1
		 ORDER BY question_number ASC`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var a model.Answer
		if err := rows.Scan(&a.QuestionNumber, &a.SelectedOption, &a.AnsweredAt); err != nil {
			return nil, err
		}
		s.Answers = append(s.Answers, a)
	}
	return s, rows.Err()
}

// Save upserts the session and replaces its answers inside one transaction.
func (r *PostgresSessionStore) Save(ctx context.Context, s *model.Session, answers []model.Answer) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`INSERT INTO practice_sessions (`+pgSessionColumns+`)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			 ON CONFLICT (id) DO UPDATE SET
				current_question = EXCLUDED.current_question,
				time_remaining_ms = EXCLUDED.time_remaining_ms,
				last_updated = EXCLUDED.last_updated,
				completed = EXCLUDED.completed`,
			s.ID, string(s.Identity.Kind), s.Identity.PassNumber,
			nullableYear(s.Identity), nullableSemester(s.Identity),
			s.CurrentQuestion, s.TimeRemaining.Milliseconds(), s.TimerEnabled,
			s.StartedAt, s.LastUpdated, s.Completed,
		)
		if err != nil {
			return fmt.Errorf("upsert session: %w", err)
		}

		if _, err := tx.Exec(ctx, `DELETE FROM practice_answers WHERE session_id = $1`, s.ID); err != nil {
			return fmt.Errorf("clear answers: %w", err)
		}

		if len(answers) == 0 {
			return nil
		}

		_, err = tx.CopyFrom(ctx,
			pgx.Identifier{"practice_answers"},
			[]string{"session_id", "question_number", "selected_option", "answered_at"},
			pgx.CopyFromSlice(len(answers), func(i int) ([]any, error) {
				a := answers[i]
				return []any{s.ID, a.QuestionNumber, a.SelectedOption, a.AnsweredAt}, nil
			}),
		)
		if err != nil {
			return fmt.Errorf("copy answers: %w", err)
		}
		return nil
	})
}

// Delete removes the sessions; answers follow through ON DELETE CASCADE and an
// explicit delete in the same transaction.
func (r *PostgresSessionStore) Delete(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	strIDs := idStrings(ids)

	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM practice_answers WHERE session_id = ANY($1::uuid[])`, strIDs); err != nil {
			return fmt.Errorf("delete answers: %w", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM practice_sessions WHERE id = ANY($1::uuid[])`, strIDs); err != nil {
			return fmt.Errorf("delete sessions: %w", err)
		}
		return nil
	})
}

// Close releases the pool.
func (r *PostgresSessionStore) Close() error {
	r.pool.Close()
	return nil
}

func scanPgSession(row pgx.Row) (*model.Session, error) {
	var (
		s              model.Session
		kind           string
		year, semester *string
		remainingMS    int64
	)
	if err := row.Scan(&s.ID, &kind, &s.Identity.PassNumber, &year, &semester, &s.CurrentQuestion,
		&remainingMS, &s.TimerEnabled, &s.StartedAt, &s.LastUpdated, &s.Completed); err != nil {
		return nil, err
	}
	s.Identity = identityFrom(kind, s.Identity.PassNumber, year, semester)
	s.TimeRemaining = time.Duration(remainingMS) * time.Millisecond
	return &s, nil
}
