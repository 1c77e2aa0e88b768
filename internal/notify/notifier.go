// Package notify decides when contest reminders are due and delivers them
// through whatever notification capability is available.
package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"contestwatch/internal/domain"
)

// Permission is the state of the user's consent to receive notifications.
type Permission int

const (
	PermissionDefault Permission = iota
	PermissionGranted
	PermissionDenied
)

func (p Permission) String() string {
	switch p {
	case PermissionGranted:
		return "granted"
	case PermissionDenied:
		return "denied"
	default:
		return "default"
	}
}

// Notification is a single reminder raised for a contest and lead time.
type Notification struct {
	ID          string `json:"id"`
	ContestID   string `json:"contest_id"`
	LeadMinutes int    `json:"lead_minutes"`
	Title       string `json:"title"`
	Body        string `json:"body"`
	// Link is opened when the user activates the notification.
	Link string `json:"link"`
}

// Notifier is a notification capability.
type Notifier interface {
	// RequestPermission asks for consent; it is called at most once per session.
	RequestPermission(ctx context.Context) (Permission, error)

	// Show raises the notification.
	Show(ctx context.Context, n Notification) error
}

// Dispatcher gates a Notifier behind a lazily requested, session scoped permission.
// A denial is remembered and never re-prompted.
type Dispatcher struct {
	notifier Notifier
	log      logrus.FieldLogger

	mu         sync.Mutex
	permission Permission
}

// NewDispatcher wraps notifier. A nil notifier makes every dispatch a logged no-op.
func NewDispatcher(notifier Notifier, logger logrus.FieldLogger) *Dispatcher {
	return &Dispatcher{
		notifier: notifier,
		log:      logger.WithField("component", "dispatcher"),
	}
}

// Permission returns the session's permission state.
func (d *Dispatcher) Permission() Permission {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.permission
}

func (d *Dispatcher) ensurePermission(ctx context.Context) Permission {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.permission != PermissionDefault {
		return d.permission
	}

	p, err := d.notifier.RequestPermission(ctx)
	if err != nil {
		d.log.WithError(err).Warn("Notification permission request failed, treating as denied")
		p = PermissionDenied
	}
	if p == PermissionDefault {
		p = PermissionDenied
	}
	d.permission = p
	d.log.WithField("permission", p).Info("Notification permission resolved")
	return p
}

// Dispatch shows n if a notifier exists and permission is granted.
func (d *Dispatcher) Dispatch(ctx context.Context, n Notification) error {
	if d.notifier == nil {
		d.log.WithField("contest_id", n.ContestID).Debug("No notification capability available")
		return domain.ErrNotificationUnsupported
	}

	if d.ensurePermission(ctx) != PermissionGranted {
		return domain.ErrPermissionDenied
	}

	if err := d.notifier.Show(ctx, n); err != nil {
		return fmt.Errorf("failed to show notification %s: %w", n.ID, err)
	}
	return nil
}

// isSilent reports errors that mean "notifications are off", not failures.
func isSilent(err error) bool {
	return errors.Is(err, domain.ErrNotificationUnsupported) || errors.Is(err, domain.ErrPermissionDenied)
}
