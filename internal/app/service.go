// Package app owns the contest list and ties sources, filtering, reminders and
// notifications together for the CLI and HTTP front ends.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"contestwatch/internal/aggregator"
	"contestwatch/internal/domain"
	"contestwatch/internal/filter"
	"contestwatch/internal/notify"
	"contestwatch/internal/source"
	"contestwatch/internal/storage"
)

// Fetcher produces the merged contest list.
type Fetcher interface {
	FetchAllContests(ctx context.Context) []domain.Contest
}

// StatusReader exposes the platform status map.
type StatusReader interface {
	Snapshot() map[domain.Platform]domain.PlatformStatus
}

// Scanner fires due reminders for a contest list.
type Scanner interface {
	Scan(ctx context.Context, contests []domain.Contest, now time.Time) int
}

var (
	_ Fetcher      = (*aggregator.Aggregator)(nil)
	_ StatusReader = (*source.StatusBoard)(nil)
	_ Scanner      = (*notify.Scheduler)(nil)
)

// Status is the platform status map plus the time of the last completed refresh.
type Status struct {
	Platforms   map[domain.Platform]domain.PlatformStatus `json:"platforms"`
	LastRefresh *time.Time                                `json:"last_refresh,omitempty"`
	Contests    int                                       `json:"contests"`
}

// Reminder pairs a stored reminder with its contest when still listed.
type Reminder struct {
	ContestID string          `json:"contest_id"`
	Contest   *domain.Contest `json:"contest,omitempty"`
}

// Service owns the current contest list. The list is replaced wholesale on
// every refresh and views are recomputed from it.
type Service struct {
	fetcher        Fetcher
	status         StatusReader
	scanner        Scanner
	repo           storage.Repository
	prefs          *Preferences
	now            source.Clock
	refreshTimeout time.Duration
	log            logrus.FieldLogger

	mu          sync.RWMutex
	contests    []domain.Contest
	lastRefresh time.Time

	refreshing atomic.Bool
}

// Options configures a Service.
type Options struct {
	Fetcher        Fetcher
	Status         StatusReader
	Scanner        Scanner
	Repository     storage.Repository
	Preferences    *Preferences
	Clock          source.Clock
	RefreshTimeout time.Duration
}

func NewService(opts Options, logger logrus.FieldLogger) *Service {
	now := opts.Clock
	if now == nil {
		now = time.Now
	}
	return &Service{
		fetcher:        opts.Fetcher,
		status:         opts.Status,
		scanner:        opts.Scanner,
		repo:           opts.Repository,
		prefs:          opts.Preferences,
		now:            now,
		refreshTimeout: opts.RefreshTimeout,
		log:            logger.WithField("component", "service"),
		contests:       []domain.Contest{},
	}
}

// Contests returns a copy of the full contest list.
func (s *Service) Contests() []domain.Contest {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Contest, len(s.contests))
	copy(out, s.contests)
	return out
}

// Upcoming returns the full list sorted by start time.
func (s *Service) Upcoming() []domain.Contest {
	contests := s.Contests()
	filter.Sort(contests, filter.SortStartAsc)
	return contests
}

// Refresh reloads every source and replaces the contest list. A refresh
// requested while another is in flight returns the current list untouched.
func (s *Service) Refresh(ctx context.Context) (contests []domain.Contest, err error) {
	if !s.refreshing.CompareAndSwap(false, true) {
		s.log.Debug("Refresh already in flight, returning current list")
		return s.Contests(), nil
	}
	defer s.refreshing.Store(false)

	if s.refreshTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.refreshTimeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			s.log.WithField("panic", r).Error("Contest refresh panicked")
			contests, err = nil, fmt.Errorf("%w: %v", domain.ErrAggregateLoad, r)
		}
	}()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrAggregateLoad, err)
	}

	fetched := s.fetcher.FetchAllContests(ctx)
	if errors.Is(ctx.Err(), context.Canceled) {
		s.log.Warn("Refresh cancelled, keeping previous contest list")
		return nil, fmt.Errorf("%w: %w", domain.ErrAggregateLoad, ctx.Err())
	}
	if err := aggregator.CheckUnique(fetched); err != nil {
		s.log.WithError(err).Warn("Sources returned duplicate contest ids")
	}

	s.mu.Lock()
	s.contests = fetched
	s.lastRefresh = s.now()
	s.mu.Unlock()

	s.log.WithField("contest_count", len(fetched)).Info("Contest list refreshed")
	return s.Contests(), nil
}

// View filters the current list and scans the result for due reminders.
func (s *Service) View(ctx context.Context, c filter.Criteria) []domain.Contest {
	now := s.now()
	view := filter.Apply(s.Contests(), c, now)
	s.scan(ctx, view, now)
	return view
}

// Scan checks the default view for due reminders and returns how many fired.
func (s *Service) Scan(ctx context.Context) int {
	now := s.now()
	return s.scan(ctx, filter.Apply(s.Contests(), filter.Criteria{}, now), now)
}

func (s *Service) scan(ctx context.Context, contests []domain.Contest, now time.Time) int {
	if s.scanner == nil {
		return 0
	}
	return s.scanner.Scan(ctx, contests, now)
}

// Status returns the platform statuses and refresh bookkeeping.
func (s *Service) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Status{Platforms: s.status.Snapshot(), Contests: len(s.contests)}
	if !s.lastRefresh.IsZero() {
		last := s.lastRefresh
		st.LastRefresh = &last
	}
	return st
}

// Contest looks up a listed contest by id.
func (s *Service) Contest(id string) (domain.Contest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.contests {
		if c.ID == id {
			return c, nil
		}
	}
	return domain.Contest{}, fmt.Errorf("%w: %s", domain.ErrContestNotFound, id)
}

// Preferences returns the current notification preferences.
func (s *Service) Preferences() domain.NotificationPreferences {
	return s.prefs.Preferences()
}

// SavePreferences replaces the notification preferences.
func (s *Service) SavePreferences(ctx context.Context, prefs domain.NotificationPreferences) (domain.NotificationPreferences, error) {
	return s.prefs.Save(ctx, prefs)
}

// ToggleReminder flips the reminder flag of a listed contest.
func (s *Service) ToggleReminder(ctx context.Context, id string) (bool, error) {
	if _, err := s.Contest(id); err != nil {
		return false, err
	}
	return s.repo.ToggleReminder(ctx, id)
}

// Reminders lists stored reminders, attaching contests that are still listed.
func (s *Service) Reminders(ctx context.Context) []Reminder {
	set := s.repo.LoadReminders(ctx)
	ids := set.IDs()
	out := make([]Reminder, 0, len(ids))
	for _, id := range ids {
		r := Reminder{ContestID: id}
		if c, err := s.Contest(id); err == nil {
			r.Contest = &c
		}
		out = append(out, r)
	}
	return out
}

// PruneReminders drops reminders whose contest is no longer listed.
func (s *Service) PruneReminders(ctx context.Context) (int, error) {
	s.mu.RLock()
	listed := make(map[string]struct{}, len(s.contests))
	for _, c := range s.contests {
		listed[c.ID] = struct{}{}
	}
	s.mu.RUnlock()

	return s.repo.PruneReminders(ctx, func(id string) bool {
		_, ok := listed[id]
		return ok
	})
}

// Run refreshes immediately, then keeps refreshing and scanning on the given
// intervals until ctx is cancelled.
func (s *Service) Run(ctx context.Context, refreshInterval, scanInterval time.Duration) {
	s.log.WithFields(logrus.Fields{
		"refresh_interval": refreshInterval,
		"scan_interval":    scanInterval,
	}).Info("Starting refresh loop")

	s.refreshAndScan(ctx)

	refresh := time.NewTicker(refreshInterval)
	defer refresh.Stop()
	scan := time.NewTicker(scanInterval)
	defer scan.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("Refresh loop stopped")
			return
		case <-refresh.C:
			s.refreshAndScan(ctx)
		case <-scan.C:
			if n := s.Scan(ctx); n > 0 {
				s.log.WithField("fired", n).Info("Reminder scan fired notifications")
			}
		}
	}
}

func (s *Service) refreshAndScan(ctx context.Context) {
	if _, err := s.Refresh(ctx); err != nil {
		s.log.WithError(err).Error("Refresh failed")
		return
	}
	s.Scan(ctx)
}
