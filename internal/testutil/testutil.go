// Package testutil opens throwaway SQLite databases and seeds fixtures for
// repository, service and handler tests.
package testutil

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/iliyamo/workbook-assignment/internal/database"
	"github.com/iliyamo/workbook-assignment/internal/model"
	"github.com/iliyamo/workbook-assignment/internal/repository"
)

// Store returns a Store over a freshly migrated SQLite file that is removed
// when the test ends.
func Store(tb testing.TB) *repository.Store {
	tb.Helper()
	path := filepath.Join(tb.TempDir(), "workbooks.db")
	db, err := database.OpenSQLite(path)
	if err != nil {
		tb.Fatalf("open sqlite: %v", err)
	}
	tb.Cleanup(func() { _ = db.Close() })
	if err := database.Migrate(context.Background(), db, database.SQLite); err != nil {
		tb.Fatalf("migrate: %v", err)
	}
	return repository.NewStore(db, database.SQLite, 5*time.Second)
}

// SeedTemplate inserts a template with one question per text.
func SeedTemplate(tb testing.TB, s *repository.Store, title string, questions ...string) model.Template {
	tb.Helper()
	t := model.Template{ID: MustID(tb)}
	t.Title = title
	t.Description = title + " description"
	t.Questions = make([]model.Question, len(questions))
	for i, q := range questions {
		t.Questions[i] = model.Question{Text: q}
	}
	if err := s.Templates().Create(context.Background(), &t); err != nil {
		tb.Fatalf("seed template: %v", err)
	}
	return t
}

// SeedUser inserts an active user whose link expires in a week.
func SeedUser(tb testing.TB, s *repository.Store, email string) model.User {
	tb.Helper()
	exp := time.Now().UTC().Add(7 * 24 * time.Hour)
	u := model.User{ID: MustID(tb), Name: "Client", Email: email, LinkExpiresAt: &exp}
	if err := s.Users().Create(context.Background(), &u); err != nil {
		tb.Fatalf("seed user: %v", err)
	}
	return u
}

// SeedExpiredUser inserts a user whose dashboard access has lapsed.
func SeedExpiredUser(tb testing.TB, s *repository.Store, email string) model.User {
	tb.Helper()
	exp := time.Now().UTC().Add(7 * 24 * time.Hour)
	u := model.User{ID: MustID(tb), Name: "Client", Email: email, DashboardExpired: true, LinkExpiresAt: &exp}
	if err := s.Users().Create(context.Background(), &u); err != nil {
		tb.Fatalf("seed user: %v", err)
	}
	return u
}

// MustID returns a fresh identifier or fails the test.
func MustID(tb testing.TB) string {
	tb.Helper()
	id, err := model.NewID()
	if err != nil {
		tb.Fatalf("new id: %v", err)
	}
	return id
}
