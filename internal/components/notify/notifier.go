// Package notify delivers best-effort notifications to users. Dispatch is
// fire-and-forget: failures are logged by callers and never affect the
// operation that produced the event.
package notify

import (
	"context"
	"errors"
)

// Event types understood by clients.
const (
	TypeInvitation    = "invitation"
	TypeRoleChanged   = "role_changed"
	TypeAccessRevoked = "access_revoked"
)

// Event is one notification to one user.
type Event struct {
	UserID  int64          `json:"user_id"`
	Type    string         `json:"type"`
	Title   string         `json:"title"`
	Body    string         `json:"body"`
	Payload map[string]any `json:"payload,omitempty"`
}

// Notifier delivers events. Delivery is not guaranteed.
type Notifier interface {
	Notify(ctx context.Context, ev Event) error
}

// Discard drops every event.
type Discard struct{}

func (Discard) Notify(ctx context.Context, ev Event) error { return nil }

// Fanout dispatches each event to every notifier, collecting errors.
type Fanout []Notifier

func (f Fanout) Notify(ctx context.Context, ev Event) error {
	var errs []error
	for _, n := range f {
		if err := n.Notify(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
