package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/JCampos05/Backend-Taskeer/internal/platform/store"
	"gorm.io/gorm"
)

func testStore(t *testing.T) (*StoreNotifier, *gorm.DB) {
	t.Helper()
	db, err := store.OpenMemory()
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { store.Close(db) })
	if err := store.Migrate(db, &Notification{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return NewStoreNotifier(db), db
}

func TestNotifyPersistsAndLists(t *testing.T) {
	s, _ := testStore(t)
	ctx := context.Background()

	ev := Event{
		UserID:  1,
		Type:    TypeInvitation,
		Title:   "New shared resource",
		Body:    "You were given access to inbox",
		Payload: map[string]any{"resource_id": 42},
	}
	if err := s.Notify(ctx, ev); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if err := s.Notify(ctx, Event{UserID: 2, Type: TypeRoleChanged}); err != nil {
		t.Fatalf("notify: %v", err)
	}

	items, err := s.List(ctx, 1, false)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("user 1 has %d notifications, want 1", len(items))
	}
	n := items[0]
	if n.ID == "" {
		t.Error("missing id")
	}
	if n.Type != TypeInvitation || n.Title != ev.Title || n.Read {
		t.Errorf("unexpected notification %+v", n)
	}
}

func TestMarkRead(t *testing.T) {
	s, _ := testStore(t)
	ctx := context.Background()

	if err := s.Notify(ctx, Event{UserID: 1, Type: TypeInvitation}); err != nil {
		t.Fatalf("notify: %v", err)
	}
	items, err := s.List(ctx, 1, true)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("unread count = %d, want 1", len(items))
	}

	if err := s.MarkRead(ctx, items[0].ID, 1); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	items, err = s.List(ctx, 1, true)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("unread count after read = %d, want 0", len(items))
	}

	// Another user cannot mark it, and unknown ids are a not-found.
	if err := s.MarkRead(ctx, "no-such-id", 1); !errors.Is(err, ErrNotificationNotFound) {
		t.Errorf("unknown id: got %v, want ErrNotificationNotFound", err)
	}
}

func TestMarkReadIsScopedToOwner(t *testing.T) {
	s, _ := testStore(t)
	ctx := context.Background()

	if err := s.Notify(ctx, Event{UserID: 1, Type: TypeInvitation}); err != nil {
		t.Fatalf("notify: %v", err)
	}
	items, _ := s.List(ctx, 1, false)
	if err := s.MarkRead(ctx, items[0].ID, 2); !errors.Is(err, ErrNotificationNotFound) {
		t.Errorf("foreign user marked notification: %v", err)
	}
}

func TestDeleteReadBefore(t *testing.T) {
	s, db := testStore(t)
	ctx := context.Background()

	if err := s.Notify(ctx, Event{UserID: 1, Type: TypeInvitation}); err != nil {
		t.Fatalf("notify: %v", err)
	}
	items, _ := s.List(ctx, 1, false)
	if err := s.MarkRead(ctx, items[0].ID, 1); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	// Age the row past the cutoff.
	old := time.Now().Add(-48 * time.Hour)
	if err := db.Model(&Notification{}).Where("id = ?", items[0].ID).Update("created_at", old).Error; err != nil {
		t.Fatalf("age row: %v", err)
	}
	// An unread old one must survive.
	if err := s.Notify(ctx, Event{UserID: 1, Type: TypeRoleChanged}); err != nil {
		t.Fatalf("notify: %v", err)
	}

	n, err := s.DeleteReadBefore(ctx, time.Now().Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if n != 1 {
		t.Errorf("purged %d, want 1", n)
	}
	items, _ = s.List(ctx, 1, false)
	if len(items) != 1 {
		t.Errorf("%d notifications remain, want 1", len(items))
	}
}

func TestFanoutCollectsErrors(t *testing.T) {
	s, _ := testStore(t)
	failing := notifierFunc(func(ctx context.Context, ev Event) error {
		return errors.New("downstream unavailable")
	})

	f := Fanout{s, failing}
	err := f.Notify(context.Background(), Event{UserID: 1, Type: TypeInvitation})
	if err == nil {
		t.Fatal("fanout swallowed the error")
	}
	// The store delivery still happened.
	items, _ := s.List(context.Background(), 1, false)
	if len(items) != 1 {
		t.Errorf("store delivery missing, have %d", len(items))
	}
}

type notifierFunc func(ctx context.Context, ev Event) error

func (f notifierFunc) Notify(ctx context.Context, ev Event) error { return f(ctx, ev) }
