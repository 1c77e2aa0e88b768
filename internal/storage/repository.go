package storage

import (
	"context"
	"time"

	"contestwatch/internal/domain"
)

// Repository persists notification preferences, reminder flags and fired
// notification marks. Each value is a whole JSON blob overwritten on save.
type Repository interface {
	// LoadPreferences returns the saved preferences, or the defaults when nothing
	// is stored or the stored value cannot be decoded.
	LoadPreferences(ctx context.Context) domain.NotificationPreferences

	// SavePreferences overwrites the stored preferences.
	SavePreferences(ctx context.Context, prefs domain.NotificationPreferences) error

	// LoadReminders returns the reminder flags; empty when missing or corrupt.
	LoadReminders(ctx context.Context) domain.ReminderSet

	// SaveReminders overwrites the stored reminder flags.
	SaveReminders(ctx context.Context, reminders domain.ReminderSet) error

	// ToggleReminder flips the flag for a contest and returns the new state.
	ToggleReminder(ctx context.Context, contestID string) (bool, error)

	// PruneReminders drops reminders for which keep returns false.
	PruneReminders(ctx context.Context, keep func(contestID string) bool) (int, error)

	// MarkFired records that a notification was raised; the mark expires after ttl.
	MarkFired(ctx context.Context, key string, ttl time.Duration) error

	// WasFired reports whether an unexpired mark exists for key.
	WasFired(ctx context.Context, key string) (bool, error)

	// Close gracefully shuts down the repository connection.
	Close() error
}
