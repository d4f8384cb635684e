package refstore

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestMemoryStoreSaveLoadClear(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore(0)

	if got, err := m.Load(ctx, "s1"); err != nil || got != "" {
		t.Fatalf("expected empty reference, got %q %v", got, err)
	}
	if err := m.Save(ctx, "s1", "gid://shopify/Cart/1?key=k"); err != nil {
		t.Fatalf("save: %v", err)
	}
	if got, _ := m.Load(ctx, "s1"); got != "gid://shopify/Cart/1?key=k" {
		t.Fatalf("expected saved reference, got %q", got)
	}
	if err := m.Clear(ctx, "s1"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if got, _ := m.Load(ctx, "s1"); got != "" {
		t.Fatalf("expected cleared reference, got %q", got)
	}
}

func TestMemoryStoreExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	m := NewMemoryStore(time.Hour)
	m.now = func() time.Time { return now }

	_ = m.Save(ctx, "s1", "C1")
	now = now.Add(59 * time.Minute)
	if got, _ := m.Load(ctx, "s1"); got != "C1" {
		t.Fatalf("expected live reference, got %q", got)
	}
	now = now.Add(time.Minute)
	if got, _ := m.Load(ctx, "s1"); got != "" {
		t.Fatalf("expected expired reference, got %q", got)
	}
}

func TestPostgresLoad(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer db.Close()
	s := NewPostgresStoreFromDB(db, time.Hour)

	q := regexp.QuoteMeta(`SELECT cart_id FROM cart_sessions WHERE session_id = $1 AND expires_at > $2`)
	mock.ExpectQuery(q).
		WithArgs("s1", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"cart_id"}).AddRow("C1?key=k"))
	mock.ExpectQuery(q).
		WithArgs("s2", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"cart_id"}))

	got, err := s.Load(context.Background(), "s1")
	if err != nil || got != "C1?key=k" {
		t.Fatalf("unexpected load result %q %v", got, err)
	}
	got, err = s.Load(context.Background(), "s2")
	if err != nil || got != "" {
		t.Fatalf("missing session should load empty, got %q %v", got, err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresSaveUpserts(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer db.Close()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	s := NewPostgresStoreFromDB(db, time.Hour)
	s.now = func() time.Time { return now }

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO cart_sessions (session_id, cart_id, expires_at, updated_at)`)).
		WithArgs("s1", "C1", now.Add(time.Hour), now).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := s.Save(context.Background(), "s1", "C1"); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresClearPropagatesErrors(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer db.Close()
	s := NewPostgresStoreFromDB(db, 0)

	boom := errors.New("connection reset")
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM cart_sessions WHERE session_id = $1`)).
		WithArgs("s1").
		WillReturnError(boom)

	if err := s.Clear(context.Background(), "s1"); !errors.Is(err, boom) {
		t.Fatalf("expected driver error, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresMigrate(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer db.Close()
	s := NewPostgresStoreFromDB(db, time.Hour)

	mock.ExpectExec(regexp.QuoteMeta(`CREATE TABLE IF NOT EXISTS cart_sessions`)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := s.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
