package app

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"contestwatch/internal/domain"
	"contestwatch/internal/storage"
)

// PreferenceStore is the persistence the preferences cache writes through to.
type PreferenceStore interface {
	LoadPreferences(ctx context.Context) domain.NotificationPreferences
	SavePreferences(ctx context.Context, prefs domain.NotificationPreferences) error
}

var _ PreferenceStore = (storage.Repository)(nil)

// Preferences holds the session's notification preferences. They are loaded
// once and change only through Save.
type Preferences struct {
	store PreferenceStore
	log   logrus.FieldLogger

	mu      sync.RWMutex
	current domain.NotificationPreferences
}

// LoadPreferences reads the stored preferences, falling back to defaults.
func LoadPreferences(ctx context.Context, store PreferenceStore, logger logrus.FieldLogger) *Preferences {
	return &Preferences{
		store:   store,
		log:     logger.WithField("component", "preferences"),
		current: store.LoadPreferences(ctx).Normalize(),
	}
}

// Preferences returns the current value.
func (p *Preferences) Preferences() domain.NotificationPreferences {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.current
}

// Save persists prefs and makes them current. The cached value is only
// replaced once the write succeeded.
func (p *Preferences) Save(ctx context.Context, prefs domain.NotificationPreferences) (domain.NotificationPreferences, error) {
	prefs = prefs.Normalize()

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.store.SavePreferences(ctx, prefs); err != nil {
		return p.current, err
	}
	p.current = prefs
	p.log.WithField("enabled", prefs.Enabled).Debug("Preferences updated")
	return prefs, nil
}
