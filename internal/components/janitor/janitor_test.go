package janitor

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeSessions struct {
	deleted int64
	err     error
	calls   int
}

func (f *fakeSessions) DeleteExpired(ctx context.Context) (int64, error) {
	f.calls++
	return f.deleted, f.err
}

type fakeNotifications struct {
	deleted int64
	cutoff  time.Time
	calls   int
}

func (f *fakeNotifications) DeleteReadBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	f.calls++
	f.cutoff = cutoff
	return f.deleted, nil
}

func TestRunOncePurgesBoth(t *testing.T) {
	sessions := &fakeSessions{deleted: 3}
	notifications := &fakeNotifications{deleted: 2}
	j := New(sessions, notifications, 30*24*time.Hour, nil)

	j.RunOnce(context.Background())

	if sessions.calls != 1 {
		t.Errorf("session purge called %d times", sessions.calls)
	}
	if notifications.calls != 1 {
		t.Errorf("notification purge called %d times", notifications.calls)
	}

	wantCutoff := time.Now().Add(-30 * 24 * time.Hour)
	if diff := notifications.cutoff.Sub(wantCutoff); diff < -time.Minute || diff > time.Minute {
		t.Errorf("cutoff %v not near %v", notifications.cutoff, wantCutoff)
	}
}

func TestRunOnceSurvivesPurgeErrors(t *testing.T) {
	sessions := &fakeSessions{err: errors.New("db locked")}
	notifications := &fakeNotifications{}
	j := New(sessions, notifications, time.Hour, nil)

	// A failing session purge must not stop the notification purge.
	j.RunOnce(context.Background())

	if notifications.calls != 1 {
		t.Errorf("notification purge skipped after session error")
	}
}

func TestStartRejectsBadSchedule(t *testing.T) {
	j := New(&fakeSessions{}, &fakeNotifications{}, time.Hour, nil)
	if err := j.Start("not a cron spec"); err == nil {
		j.Stop()
		t.Fatal("bad schedule accepted")
	}
}

func TestStartAndStop(t *testing.T) {
	j := New(&fakeSessions{}, &fakeNotifications{}, time.Hour, nil)
	if err := j.Start("@hourly"); err != nil {
		t.Fatalf("start: %v", err)
	}
	j.Stop()
}
