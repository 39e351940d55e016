package database

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/provpass/internal/config"
	"github.com/stemsi/provpass/internal/model"
	"github.com/stemsi/provpass/internal/repository"
)

func openTestStore(t *testing.T, cfg *config.Config) repository.SessionStore {
	t.Helper()
	store, err := NewSessionStore(context.Background(), cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewSessionStore(%s): %v", cfg.StoreDriver, err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteSessionStore(t *testing.T) {
	cfg := &config.Config{
		StoreDriver: config.StoreSQLite,
		SQLitePath:  filepath.Join(t.TempDir(), "provpass.db"),
	}
	runStoreContract(t, openTestStore(t, cfg))
}

func TestSQLiteSessionStore_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	cfg := &config.Config{
		StoreDriver: config.StoreSQLite,
		SQLitePath:  filepath.Join(t.TempDir(), "provpass.db"),
	}

	store, err := NewSessionStore(ctx, cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewSessionStore: %v", err)
	}
	s := newSession(model.SessionIdentity{Kind: model.TestKindQuant, PassNumber: 2})
	s.CurrentQuestion = 7
	if err := store.Save(ctx, s, []model.Answer{{QuestionNumber: 3, SelectedOption: "C", AnsweredAt: s.StartedAt}}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	store.Close()

	reopened := openTestStore(t, cfg)
	got, err := reopened.LoadSession(ctx, s.ID)
	if err != nil {
		t.Fatalf("LoadSession after reopen: %v", err)
	}
	if got.CurrentQuestion != 7 || len(got.Answers) != 1 || got.Answers[0].SelectedOption != "C" {
		t.Fatalf("state after reopen: %+v", got)
	}
}

func TestPostgresSessionStore(t *testing.T) {
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	cfg := &config.Config{StoreDriver: config.StorePostgres, DatabaseURL: url, MaxDBConns: 4}
	runStoreContract(t, openTestStore(t, cfg))
}

func TestRedisSessionStore(t *testing.T) {
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set")
	}
	cfg := &config.Config{StoreDriver: config.StoreRedis, RedisURL: url}
	runStoreContract(t, openTestStore(t, cfg))
}

func newSession(identity model.SessionIdentity) *model.Session {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return &model.Session{
		ID:              uuid.New(),
		Identity:        identity,
		CurrentQuestion: 1,
		TimeRemaining:   model.ExamDuration,
		TimerEnabled:    true,
		StartedAt:       now,
		LastUpdated:     now,
	}
}

// runStoreContract exercises the behavior every SessionStore backend shares.
// Sessions are created with fresh IDs so the test tolerates leftover data.
func runStoreContract(t *testing.T, store repository.SessionStore) {
	ctx := context.Background()
	year, fall := "2024", model.SemesterFall
	historical := model.SessionIdentity{Kind: model.TestKindVerbal, PassNumber: 3, Year: &year, Semester: &fall}

	t.Run("save and load", func(t *testing.T) {
		s := newSession(historical)
		answers := []model.Answer{
			{QuestionNumber: 9, SelectedOption: "D", AnsweredAt: s.StartedAt},
			{QuestionNumber: 2, SelectedOption: "A", AnsweredAt: s.StartedAt.Add(time.Second)},
		}
		if err := store.Save(ctx, s, answers); err != nil {
			t.Fatalf("Save: %v", err)
		}

		got, err := store.LoadSession(ctx, s.ID)
		if err != nil {
			t.Fatalf("LoadSession: %v", err)
		}
		if !got.Identity.Equal(historical) {
			t.Fatalf("identity = %s, want %s", got.Identity, historical)
		}
		if got.TimeRemaining != model.ExamDuration || !got.TimerEnabled || got.Completed {
			t.Fatalf("header mismatch: %+v", got)
		}
		if !got.StartedAt.Equal(s.StartedAt) {
			t.Fatalf("started_at = %s, want %s", got.StartedAt, s.StartedAt)
		}
		if len(got.Answers) != 2 || got.Answers[0].QuestionNumber != 2 || got.Answers[1].SelectedOption != "D" {
			t.Fatalf("answers = %+v", got.Answers)
		}
	})

	t.Run("save replaces answer set", func(t *testing.T) {
		s := newSession(historical)
		_ = store.Save(ctx, s, []model.Answer{
			{QuestionNumber: 1, SelectedOption: "A", AnsweredAt: s.StartedAt},
			{QuestionNumber: 2, SelectedOption: "B", AnsweredAt: s.StartedAt},
		})

		s.CurrentQuestion = 5
		s.TimeRemaining = 30 * time.Minute
		if err := store.Save(ctx, s, []model.Answer{{QuestionNumber: 2, SelectedOption: "C", AnsweredAt: s.StartedAt}}); err != nil {
			t.Fatalf("Save: %v", err)
		}

		got, err := store.LoadSession(ctx, s.ID)
		if err != nil {
			t.Fatalf("LoadSession: %v", err)
		}
		if got.CurrentQuestion != 5 || got.TimeRemaining != 30*time.Minute {
			t.Fatalf("header not updated: %+v", got)
		}
		if len(got.Answers) != 1 || got.Answers[0].SelectedOption != "C" {
			t.Fatalf("answers = %+v, want [{2 C}]", got.Answers)
		}
	})

	t.Run("long option and year tokens", func(t *testing.T) {
		longYear := "2024-autumn-retake"
		s := newSession(model.SessionIdentity{Kind: model.TestKindQuant, PassNumber: 4, Year: &longYear, Semester: &fall})
		option := "option-with-a-long-opaque-token"
		if err := store.Save(ctx, s, []model.Answer{{QuestionNumber: 1, SelectedOption: option, AnsweredAt: s.StartedAt}}); err != nil {
			t.Fatalf("Save: %v", err)
		}

		got, err := store.LoadSession(ctx, s.ID)
		if err != nil {
			t.Fatalf("LoadSession: %v", err)
		}
		if got.Identity.Year == nil || *got.Identity.Year != longYear {
			t.Fatalf("year = %v, want %q", got.Identity.Year, longYear)
		}
		if len(got.Answers) != 1 || got.Answers[0].SelectedOption != option {
			t.Fatalf("answers = %+v, want [{1 %s}]", got.Answers, option)
		}
		_ = store.Delete(ctx, []uuid.UUID{s.ID})
	})

	t.Run("list filters", func(t *testing.T) {
		kind, pass := model.TestKindQuant, 17
		open := newSession(model.SessionIdentity{Kind: kind, PassNumber: pass})
		done := newSession(model.SessionIdentity{Kind: kind, PassNumber: pass})
		done.Completed = true
		_ = store.Save(ctx, open, nil)
		_ = store.Save(ctx, done, nil)

		all, err := store.ListSessions(ctx, repository.SessionFilter{Kind: &kind, PassNumber: &pass})
		if err != nil {
			t.Fatalf("ListSessions: %v", err)
		}
		if !containsID(all, open.ID) || !containsID(all, done.ID) {
			t.Fatalf("ListSessions missing sessions")
		}

		openOnly, err := store.ListSessions(ctx, repository.SessionFilter{Kind: &kind, PassNumber: &pass, OpenOnly: true})
		if err != nil {
			t.Fatalf("ListSessions: %v", err)
		}
		if !containsID(openOnly, open.ID) || containsID(openOnly, done.ID) {
			t.Fatalf("OpenOnly returned a completed session")
		}
		for _, s := range openOnly {
			if len(s.Answers) != 0 {
				t.Fatalf("ListSessions should not load answers")
			}
		}

		_ = store.Delete(ctx, []uuid.UUID{open.ID, done.ID})
	})

	t.Run("delete cascades", func(t *testing.T) {
		s := newSession(historical)
		_ = store.Save(ctx, s, []model.Answer{{QuestionNumber: 1, SelectedOption: "A", AnsweredAt: s.StartedAt}})

		if err := store.Delete(ctx, []uuid.UUID{s.ID, uuid.New()}); err != nil {
			t.Fatalf("Delete: %v", err)
		}
		if _, err := store.LoadSession(ctx, s.ID); !errors.Is(err, repository.ErrNotFound) {
			t.Fatalf("LoadSession after delete: err = %v, want ErrNotFound", err)
		}

		// Recreating the same ID must not resurrect old answers.
		if err := store.Save(ctx, s, nil); err != nil {
			t.Fatalf("Save: %v", err)
		}
		got, _ := store.LoadSession(ctx, s.ID)
		if got == nil || len(got.Answers) != 0 {
			t.Fatalf("answers survived delete: %+v", got)
		}
		_ = store.Delete(ctx, []uuid.UUID{s.ID})
	})

	t.Run("delete nothing", func(t *testing.T) {
		if err := store.Delete(ctx, nil); err != nil {
			t.Fatalf("Delete(nil): %v", err)
		}
	})
}

func containsID(sessions []model.Session, id uuid.UUID) bool {
	for _, s := range sessions {
		if s.ID == id {
			return true
		}
	}
	return false
}

func TestSQLiteSessionStore_MistypedRowDecodesAsMalformed(t *testing.T) {
	ctx := context.Background()
	cfg := &config.Config{
		StoreDriver: config.StoreSQLite,
		SQLitePath:  filepath.Join(t.TempDir(), "provpass.db"),
	}
	store := openTestStore(t, cfg)

	db, err := OpenSQLite(ctx, cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer db.Close()

	good := newSession(model.SessionIdentity{Kind: model.TestKindVerbal})
	if err := store.Save(ctx, good, nil); err != nil {
		t.Fatalf("Save: %v", err)
	}

	badID := uuid.New()
	now := time.Now().UnixNano()
	if _, err := db.ExecContext(ctx,
		`INSERT INTO practice_sessions (id, kind, pass_number, year, semester, current_question,
			time_remaining_ms, timer_enabled, started_at, last_updated, completed)
		 VALUES (?, 'quant', 1, NULL, NULL, 4, 'garbage', 1, ?, ?, 0)`,
		badID.String(), now, now); err != nil {
		t.Fatalf("insert mistyped session: %v", err)
	}
	if _, err := db.ExecContext(ctx,
		`INSERT INTO practice_answers (session_id, question_number, selected_option, answered_at)
		 VALUES (?, 'seven', 'A', ?)`, badID.String(), now); err != nil {
		t.Fatalf("insert mistyped answer: %v", err)
	}

	sessions, err := store.ListSessions(ctx, repository.SessionFilter{OpenOnly: true})
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if !containsID(sessions, good.ID) || !containsID(sessions, badID) {
		t.Fatalf("ListSessions = %+v, want both sessions", sessions)
	}

	bad, err := store.LoadSession(ctx, badID)
	if err != nil {
		t.Fatalf("LoadSession: %v", err)
	}
	if bad.ID != badID {
		t.Fatalf("id = %s, want %s", bad.ID, badID)
	}
	if err := bad.Validate(); err == nil {
		t.Fatalf("mistyped session passed validation: %+v", bad)
	}

	if err := store.Delete(ctx, []uuid.UUID{badID}); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.LoadSession(ctx, badID); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("LoadSession after delete: err = %v", err)
	}
}
