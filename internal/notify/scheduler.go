package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"contestwatch/internal/domain"
)

// Window is half the width of the firing window around the ideal notify instant.
const Window = 5 * time.Minute

// PreferencesSource supplies the current notification preferences.
type PreferencesSource interface {
	Preferences() domain.NotificationPreferences
}

// FiredStore remembers which (contest, lead time) pairs already fired.
type FiredStore interface {
	MarkFired(ctx context.Context, key string, ttl time.Duration) error
	WasFired(ctx context.Context, key string) (bool, error)
}

// Scheduler scans contest lists and fires reminders whose notify instant is near.
type Scheduler struct {
	prefs      PreferencesSource
	fired      FiredStore
	dispatcher *Dispatcher
	location   *time.Location
	log        logrus.FieldLogger

	// scanMu makes the fired check and mark atomic across concurrent scans.
	scanMu sync.Mutex
}

// NewScheduler creates a scheduler. A nil fired store disables dedup, so a
// pair re-fires on every scan inside its window.
func NewScheduler(prefs PreferencesSource, fired FiredStore, dispatcher *Dispatcher, location *time.Location, logger logrus.FieldLogger) *Scheduler {
	if location == nil {
		location = time.Local
	}
	return &Scheduler{
		prefs:      prefs,
		fired:      fired,
		dispatcher: dispatcher,
		location:   location,
		log:        logger.WithField("component", "scheduler"),
	}
}

// Due reports whether a reminder lead minutes before start should fire at now.
func Due(start time.Time, lead int, now time.Time) bool {
	notifyAt := start.Add(-time.Duration(lead) * time.Minute)
	diff := now.Sub(notifyAt)
	if diff < 0 {
		diff = -diff
	}
	return diff < Window
}

func firedKey(contestID string, lead int) string {
	return fmt.Sprintf("%s:%d", contestID, lead)
}

// Build creates the notification payload for a contest and lead time.
func (s *Scheduler) Build(c domain.Contest, lead int) Notification {
	return Notification{
		ID:          uuid.NewString(),
		ContestID:   c.ID,
		LeadMinutes: lead,
		Title:       fmt.Sprintf("Contest Starting Soon! (%d min)", lead),
		Body:        fmt.Sprintf("%s on %s starts at %s", c.Name, c.Platform, c.StartTime.In(s.location).Format("15:04:05")),
		Link:        c.Link,
	}
}

// Scan fires every due reminder for contests and returns how many were shown.
func (s *Scheduler) Scan(ctx context.Context, contests []domain.Contest, now time.Time) int {
	prefs := s.prefs.Preferences()
	if !prefs.Enabled {
		return 0
	}

	s.scanMu.Lock()
	defer s.scanMu.Unlock()

	fired := 0
	for _, c := range contests {
		if !prefs.WantsPlatform(c.Platform) {
			continue
		}
		for _, lead := range prefs.LeadTimes {
			if !Due(c.StartTime, lead, now) {
				continue
			}
			if s.alreadyFired(ctx, c.ID, lead) {
				continue
			}

			n := s.Build(c, lead)
			log := s.log.WithFields(logrus.Fields{
				"contest_id":      c.ID,
				"lead_minutes":    lead,
				"notification_id": n.ID,
			})

			if err := s.dispatcher.Dispatch(ctx, n); err != nil {
				if isSilent(err) {
					log.WithError(err).Debug("Notification suppressed")
				} else {
					log.WithError(err).Error("Failed to deliver notification")
				}
				continue
			}

			fired++
			log.Info("Notification fired")
			s.markFired(ctx, c, lead, now)
		}
	}
	return fired
}

func (s *Scheduler) alreadyFired(ctx context.Context, contestID string, lead int) bool {
	if s.fired == nil {
		return false
	}
	done, err := s.fired.WasFired(ctx, firedKey(contestID, lead))
	if err != nil {
		s.log.WithError(err).Warn("Could not read fired state, notifying anyway")
		return false
	}
	return done
}

// markFired keeps the mark until the firing window has closed.
func (s *Scheduler) markFired(ctx context.Context, c domain.Contest, lead int, now time.Time) {
	if s.fired == nil {
		return
	}
	closes := c.StartTime.Add(-time.Duration(lead) * time.Minute).Add(Window)
	ttl := closes.Sub(now) + time.Minute
	if ttl < time.Minute {
		ttl = time.Minute
	}
	if err := s.fired.MarkFired(ctx, firedKey(c.ID, lead), ttl); err != nil {
		s.log.WithError(err).Warn("Could not record fired notification")
	}
}
