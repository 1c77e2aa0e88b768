package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"

	"contestwatch/internal/domain"
)

const (
	preferencesKey = "prefs:notification"
	remindersKey   = "reminders:contest"
	firedPrefix    = "fired:"
)

// BadgerRepository implements the Repository interface using BadgerDB.
type BadgerRepository struct {
	db  *badger.DB
	log logrus.FieldLogger

	// remindersMu serializes read-modify-write cycles on the reminder blob.
	remindersMu sync.Mutex
}

// NewBadgerRepository creates and initializes a new BadgerDB repository.
// It opens the database at the specified path.
func NewBadgerRepository(dbPath string, logger logrus.FieldLogger) (*BadgerRepository, error) {
	opts := badger.DefaultOptions(dbPath)
	opts.Logger = &badgerLogger{logger.WithField("component", "badgerdb")}

	db, err := badger.Open(opts)
	if err != nil {
		logger.WithError(err).Error("Failed to open BadgerDB")
		return nil, fmt.Errorf("failed to open badger db at %s: %w", dbPath, err)
	}
	logger.Info("BadgerDB opened successfully at path: ", dbPath)

	return &BadgerRepository{
		db:  db,
		log: logger.WithField("component", "repository"),
	}, nil
}

// Close closes the BadgerDB database connection.
func (r *BadgerRepository) Close() error {
	r.log.Info("Closing BadgerDB...")
	if err := r.db.Close(); err != nil {
		r.log.WithError(err).Error("Error closing BadgerDB")
		return err
	}
	r.log.Info("BadgerDB closed.")
	return nil
}

// firedKey builds the key for a fired notification mark.
// Format: fired:{key}
func firedKey(key string) []byte {
	return []byte(firedPrefix + key)
}

// get reads a raw value; found is false when the key does not exist.
func (r *BadgerRepository) get(key []byte) (val []byte, found bool, err error) {
	err = r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		val, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

func (r *BadgerRepository) putJSON(key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}
	return r.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(badger.NewEntry(key, data))
	})
}

// LoadPreferences returns stored preferences or defaults.
func (r *BadgerRepository) LoadPreferences(ctx context.Context) domain.NotificationPreferences {
	data, found, err := r.get([]byte(preferencesKey))
	if err != nil {
		r.log.WithError(err).Error("Failed to read preferences, using defaults")
		return domain.DefaultPreferences()
	}
	if !found {
		return domain.DefaultPreferences()
	}

	prefs, err := decodePreferences(data)
	if err != nil {
		r.log.WithError(err).Warn("Replacing corrupt preferences with defaults")
		return domain.DefaultPreferences()
	}
	return prefs.Normalize()
}

// decodePreferences rejects blobs that decode to nothing, such as null or {}.
func decodePreferences(data []byte) (domain.NotificationPreferences, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return domain.NotificationPreferences{}, fmt.Errorf("%w: %v", domain.ErrPreferenceCorrupt, err)
	}
	if len(fields) == 0 {
		return domain.NotificationPreferences{}, fmt.Errorf("%w: empty preferences value", domain.ErrPreferenceCorrupt)
	}

	var prefs domain.NotificationPreferences
	if err := json.Unmarshal(data, &prefs); err != nil {
		return domain.NotificationPreferences{}, fmt.Errorf("%w: %v", domain.ErrPreferenceCorrupt, err)
	}
	return prefs, nil
}

// SavePreferences overwrites the stored preferences.
func (r *BadgerRepository) SavePreferences(ctx context.Context, prefs domain.NotificationPreferences) error {
	prefs = prefs.Normalize()
	if err := r.putJSON([]byte(preferencesKey), prefs); err != nil {
		r.log.WithError(err).Error("Failed to save preferences")
		return fmt.Errorf("failed to save preferences: %w", err)
	}
	r.log.WithFields(logrus.Fields{
		"enabled":    prefs.Enabled,
		"lead_times": prefs.LeadTimes,
		"platforms":  prefs.Platforms,
	}).Info("Preferences saved")
	return nil
}

// LoadReminders returns stored reminder flags, empty when missing or corrupt.
func (r *BadgerRepository) LoadReminders(ctx context.Context) domain.ReminderSet {
	data, found, err := r.get([]byte(remindersKey))
	if err != nil {
		r.log.WithError(err).Error("Failed to read reminders")
		return domain.ReminderSet{}
	}
	if !found {
		return domain.ReminderSet{}
	}

	reminders := domain.ReminderSet{}
	if err := json.Unmarshal(data, &reminders); err != nil {
		r.log.WithError(fmt.Errorf("%w: %v", domain.ErrPreferenceCorrupt, err)).
			Warn("Replacing corrupt reminders with an empty set")
		return domain.ReminderSet{}
	}
	return reminders
}

// SaveReminders overwrites the stored reminder flags.
func (r *BadgerRepository) SaveReminders(ctx context.Context, reminders domain.ReminderSet) error {
	if reminders == nil {
		reminders = domain.ReminderSet{}
	}
	if err := r.putJSON([]byte(remindersKey), reminders); err != nil {
		r.log.WithError(err).Error("Failed to save reminders")
		return fmt.Errorf("failed to save reminders: %w", err)
	}
	return nil
}

// ToggleReminder flips a contest's reminder. Unset reminders are removed from
// the map rather than stored as false.
func (r *BadgerRepository) ToggleReminder(ctx context.Context, contestID string) (bool, error) {
	r.remindersMu.Lock()
	defer r.remindersMu.Unlock()

	reminders := r.LoadReminders(ctx)
	on := !reminders[contestID]
	if on {
		reminders[contestID] = true
	} else {
		delete(reminders, contestID)
	}

	if err := r.SaveReminders(ctx, reminders); err != nil {
		return false, err
	}
	r.log.WithFields(logrus.Fields{"contest_id": contestID, "reminder": on}).Info("Reminder toggled")
	return on, nil
}

// PruneReminders removes reminders for contests keep rejects.
func (r *BadgerRepository) PruneReminders(ctx context.Context, keep func(contestID string) bool) (int, error) {
	r.remindersMu.Lock()
	defer r.remindersMu.Unlock()

	reminders := r.LoadReminders(ctx)
	removed := 0
	for id := range reminders {
		if !keep(id) {
			delete(reminders, id)
			removed++
		}
	}
	if removed == 0 {
		return 0, nil
	}
	if err := r.SaveReminders(ctx, reminders); err != nil {
		return 0, err
	}
	r.log.WithField("removed", removed).Info("Stale reminders pruned")
	return removed, nil
}

// MarkFired stores a mark that Badger expires after ttl.
func (r *BadgerRepository) MarkFired(ctx context.Context, key string, ttl time.Duration) error {
	err := r.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry(firedKey(key), []byte(time.Now().UTC().Format(time.RFC3339)))
		if ttl > 0 {
			e = e.WithTTL(ttl)
		}
		return txn.SetEntry(e)
	})
	if err != nil {
		r.log.WithError(err).WithField("key", key).Error("Failed to mark notification fired")
		return fmt.Errorf("failed to mark %s fired: %w", key, err)
	}
	return nil
}

// WasFired reports whether an unexpired mark exists.
func (r *BadgerRepository) WasFired(ctx context.Context, key string) (bool, error) {
	_, found, err := r.get(firedKey(key))
	if err != nil {
		return false, fmt.Errorf("failed to read fired mark %s: %w", key, err)
	}
	return found, nil
}

// --- BadgerDB Internal Logger ---

// badgerLogger adapts logrus.FieldLogger to Badger's logger interface.
type badgerLogger struct {
	logger logrus.FieldLogger
}

func (l *badgerLogger) Errorf(f string, v ...interface{}) {
	l.logger.Errorf(f, v...)
}
func (l *badgerLogger) Warningf(f string, v ...interface{}) {
	l.logger.Warningf(f, v...)
}
func (l *badgerLogger) Infof(f string, v ...interface{}) {
	l.logger.Debugf(f, v...)
}
func (l *badgerLogger) Debugf(f string, v ...interface{}) {
	l.logger.Debugf(f, v...)
}

// RunGC periodically reclaims value log space until ctx is cancelled.
func (r *BadgerRepository) RunGC(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			err := r.db.RunValueLogGC(0.7)
			switch {
			case err == nil:
				r.log.Debug("BadgerDB GC completed")
			case errors.Is(err, badger.ErrNoRewrite):
				r.log.Debug("BadgerDB GC: No rewrite needed")
			default:
				r.log.WithError(err).Error("BadgerDB GC failed")
			}
		case <-ctx.Done():
			r.log.Info("Stopping BadgerDB GC routine")
			return
		}
	}
}
