// Package aggregator runs every contest source concurrently and merges the results.
package aggregator

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"

	"contestwatch/internal/domain"
	"contestwatch/internal/source"
)

// StatusView exposes the status map the aggregator refreshes after each run.
type StatusView interface {
	source.StatusSink
	Snapshot() map[domain.Platform]domain.PlatformStatus
}

// Aggregator fans out to all adapters and concatenates their output in platform order.
type Aggregator struct {
	adapters []source.Adapter
	status   StatusView
	now      source.Clock
	log      logrus.FieldLogger

	// OnStatusChange is called with the status snapshot after every run.
	OnStatusChange func(map[domain.Platform]domain.PlatformStatus)
}

func New(adapters []source.Adapter, status StatusView, now source.Clock, logger logrus.FieldLogger) *Aggregator {
	if now == nil {
		now = time.Now
	}
	return &Aggregator{
		adapters: adapters,
		status:   status,
		now:      now,
		log:      logger.WithField("component", "aggregator"),
	}
}

// FetchAllContests invokes every adapter concurrently and waits for all of them.
// A failing or panicking adapter contributes nothing and is reported offline;
// the others are unaffected.
func (a *Aggregator) FetchAllContests(ctx context.Context) []domain.Contest {
	results := make([][]domain.Contest, len(a.adapters))

	var wg conc.WaitGroup
	for i, adapter := range a.adapters {
		i, adapter := i, adapter
		wg.Go(func() {
			var pc panics.Catcher
			pc.Try(func() {
				results[i] = adapter.FetchContests(ctx)
			})
			if r := pc.Recovered(); r != nil {
				a.log.WithError(r.AsError()).WithField("platform", adapter.Platform()).
					Error("Contest source panicked")
				a.status.Report(adapter.Platform(), false, a.now())
				results[i] = nil
			}
		})
	}
	wg.Wait()

	byPlatform := make(map[domain.Platform][]domain.Contest, len(a.adapters))
	for i, adapter := range a.adapters {
		byPlatform[adapter.Platform()] = append(byPlatform[adapter.Platform()], results[i]...)
	}

	merged := make([]domain.Contest, 0)
	for _, p := range domain.AllPlatforms {
		merged = append(merged, byPlatform[p]...)
	}

	snapshot := a.status.Snapshot()
	a.log.WithFields(logrus.Fields{
		"contest_count": len(merged),
		"online":        countOnline(snapshot),
	}).Info("Contests aggregated")

	if a.OnStatusChange != nil {
		a.OnStatusChange(snapshot)
	}
	return merged
}

// CheckUnique reports an error when two contests share an ID.
func CheckUnique(contests []domain.Contest) error {
	seen := make(map[string]struct{}, len(contests))
	for _, c := range contests {
		if _, dup := seen[c.ID]; dup {
			return fmt.Errorf("duplicate contest id %q", c.ID)
		}
		seen[c.ID] = struct{}{}
	}
	return nil
}

func countOnline(snapshot map[domain.Platform]domain.PlatformStatus) int {
	n := 0
	for _, s := range snapshot {
		if s.Online {
			n++
		}
	}
	return n
}
