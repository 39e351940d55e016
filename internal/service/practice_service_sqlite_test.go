package service

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/provpass/internal/config"
	"github.com/stemsi/provpass/internal/database"
	"github.com/stemsi/provpass/internal/model"
)

func TestOpen_ReplacesMistypedSQLiteRow(t *testing.T) {
	ctx := context.Background()
	cfg := &config.Config{
		StoreDriver: config.StoreSQLite,
		SQLitePath:  filepath.Join(t.TempDir(), "provpass.db"),
	}
	store, err := database.NewSessionStore(ctx, cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewSessionStore: %v", err)
	}
	defer store.Close()

	db, err := database.OpenSQLite(ctx, cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer db.Close()

	badID := uuid.New()
	now := time.Now().UnixNano()
	if _, err := db.ExecContext(ctx,
		`INSERT INTO practice_sessions (id, kind, pass_number, year, semester, current_question,
			time_remaining_ms, timer_enabled, started_at, last_updated, completed)
		 VALUES (?, 'quant', 1, NULL, NULL, 4, 'garbage', 0, ?, ?, 0)`,
		badID.String(), now, now); err != nil {
		t.Fatalf("insert mistyped session: %v", err)
	}

	svc := newTestService(store, Options{})
	defer svc.Shutdown(ctx)

	ok, err := svc.HasOpenSession(ctx, model.TestKindVerbal, 0)
	if err != nil || ok {
		t.Fatalf("HasOpenSession(verbal, 0) = %v, %v; want false, nil", ok, err)
	}

	quant := model.SessionIdentity{Kind: model.TestKindQuant, PassNumber: 1}
	as, err := svc.Open(ctx, quant, false)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if as.ID() == badID || as.CurrentQuestion() != 1 {
		t.Fatalf("mistyped session was resumed: id=%s question=%d", as.ID(), as.CurrentQuestion())
	}
	if _, err := store.LoadSession(ctx, badID); err == nil {
		t.Fatalf("mistyped session was not purged")
	}

	if err := svc.Restart(ctx, quant); err != nil {
		t.Fatalf("Restart: %v", err)
	}
}
