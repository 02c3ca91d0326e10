package identity

import (
	"context"
	"errors"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/JCampos05/Backend-Taskeer/internal/platform/store"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := store.OpenMemory()
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { store.Close(db) })
	if err := store.Migrate(db, &User{}, &Session{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func TestHashAndVerifyPassword(t *testing.T) {
	auth := NewUserAuthFast()

	hash, err := auth.HashPassword("correct horse battery staple")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if err := auth.VerifyPassword(hash, "correct horse battery staple"); err != nil {
		t.Errorf("verify with right password: %v", err)
	}
	if err := auth.VerifyPassword(hash, "wrong"); !errors.Is(err, ErrInvalidPassword) {
		t.Errorf("verify with wrong password: got %v, want ErrInvalidPassword", err)
	}
	if err := auth.VerifyPassword("not-a-phc-string", "x"); !errors.Is(err, ErrInvalidPassword) {
		t.Errorf("verify with malformed hash: got %v, want ErrInvalidPassword", err)
	}
}

func TestUserRepoEmailNormalization(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	repo := NewGormUserRepo(db)

	user := &User{Name: "Ana", Email: "  Ana@Example.COM ", PasswordHash: "x"}
	if err := repo.Create(ctx, user); err != nil {
		t.Fatalf("create: %v", err)
	}
	if user.Email != "ana@example.com" {
		t.Errorf("stored email = %q", user.Email)
	}

	got, err := repo.GetByEmail(ctx, "ANA@example.com")
	if err != nil {
		t.Fatalf("get by email: %v", err)
	}
	if got.ID != user.ID {
		t.Errorf("lookup returned user %d, want %d", got.ID, user.ID)
	}

	dup := &User{Name: "Ana2", Email: "ana@EXAMPLE.com", PasswordHash: "x"}
	if err := repo.Create(ctx, dup); !errors.Is(err, ErrEmailTaken) {
		t.Errorf("duplicate create: got %v, want ErrEmailTaken", err)
	}

	if _, err := repo.GetByEmail(ctx, "ghost@example.com"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("unknown email: got %v, want ErrUserNotFound", err)
	}
}

func TestAuthenticate(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	repo := NewGormUserRepo(db)
	auth := NewUserAuthFast()

	hash, err := auth.HashPassword("hunter2hunter2")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if err := repo.Create(ctx, &User{Name: "Ana", Email: "ana@example.com", PasswordHash: hash}); err != nil {
		t.Fatalf("create: %v", err)
	}

	user, err := auth.Authenticate(ctx, repo, "ana@example.com", "hunter2hunter2")
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if user.Name != "Ana" {
		t.Errorf("authenticated user = %q", user.Name)
	}

	if _, err := auth.Authenticate(ctx, repo, "ana@example.com", "wrong"); err == nil {
		t.Error("wrong password accepted")
	}
	if _, err := auth.Authenticate(ctx, repo, "ghost@example.com", "hunter2hunter2"); err == nil {
		t.Error("unknown email accepted")
	}
}

func TestSessionLifecycle(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	repo := NewGormSessionRepo(db)

	session, err := repo.Create(ctx, 7, time.Hour)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if session.Token == "" {
		t.Fatal("empty token")
	}

	got, err := repo.Get(ctx, session.Token)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.UserID != 7 {
		t.Errorf("user id = %d, want 7", got.UserID)
	}

	if err := repo.Delete(ctx, session.Token); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := repo.Get(ctx, session.Token); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("get after delete: got %v, want ErrSessionNotFound", err)
	}
}

func TestSessionExpiry(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	repo := NewGormSessionRepo(db)

	expired, err := repo.Create(ctx, 7, -time.Minute)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	live, err := repo.Create(ctx, 8, time.Hour)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := repo.Get(ctx, expired.Token); !errors.Is(err, ErrSessionExpired) {
		t.Errorf("expired session: got %v, want ErrSessionExpired", err)
	}

	n, err := repo.DeleteExpired(ctx)
	if err != nil {
		t.Fatalf("delete expired: %v", err)
	}
	if n != 1 {
		t.Errorf("deleted %d sessions, want 1", n)
	}
	if _, err := repo.Get(ctx, live.Token); err != nil {
		t.Errorf("live session removed: %v", err)
	}
}
