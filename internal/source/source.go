package source

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"contestwatch/internal/domain"
)

// Adapter fetches one platform's contests and normalizes them.
type Adapter interface {
	// Platform returns the platform this adapter serves.
	Platform() domain.Platform

	// FetchContests never fails to its caller. On any failure it returns an empty
	// slice and reports the platform offline to its status sink.
	FetchContests(ctx context.Context) []domain.Contest
}

// StatusSink receives the outcome of every fetch attempt.
type StatusSink interface {
	Report(platform domain.Platform, online bool, at time.Time)
}

// Clock returns the current time. Tests inject a fixed clock.
type Clock func() time.Time

// StatusBoard is the process-wide PlatformStatus map.
// Every platform starts offline with no LastChecked.
type StatusBoard struct {
	mu       sync.RWMutex
	statuses map[domain.Platform]domain.PlatformStatus
}

func NewStatusBoard() *StatusBoard {
	b := &StatusBoard{statuses: make(map[domain.Platform]domain.PlatformStatus, len(domain.AllPlatforms))}
	for _, p := range domain.AllPlatforms {
		b.statuses[p] = domain.PlatformStatus{}
	}
	return b
}

func (b *StatusBoard) Report(platform domain.Platform, online bool, at time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	checked := at
	b.statuses[platform] = domain.PlatformStatus{Online: online, LastChecked: &checked}
}

// Get returns the status of a single platform.
func (b *StatusBoard) Get(platform domain.Platform) domain.PlatformStatus {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.statuses[platform]
}

// Snapshot returns a copy of every platform's status.
func (b *StatusBoard) Snapshot() map[domain.Platform]domain.PlatformStatus {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make(map[domain.Platform]domain.PlatformStatus, len(b.statuses))
	for p, s := range b.statuses {
		out[p] = s
	}
	return out
}

// reporter holds what every adapter needs to record a fetch outcome.
type reporter struct {
	platform domain.Platform
	sink     StatusSink
	now      Clock
	log      logrus.FieldLogger
}

func newReporter(platform domain.Platform, sink StatusSink, now Clock, logger logrus.FieldLogger) reporter {
	if now == nil {
		now = time.Now
	}
	return reporter{
		platform: platform,
		sink:     sink,
		now:      now,
		log:      logger.WithFields(logrus.Fields{"component": "source", "platform": platform}),
	}
}

func (r reporter) Platform() domain.Platform { return r.platform }

func (r reporter) online() {
	if r.sink != nil {
		r.sink.Report(r.platform, true, r.now())
	}
}

// offline logs a SourceUnavailable failure and downgrades the platform.
func (r reporter) offline(err error) []domain.Contest {
	r.log.WithError(err).Error("Failed to fetch contests")
	if r.sink != nil {
		r.sink.Report(r.platform, false, r.now())
	}
	return []domain.Contest{}
}
