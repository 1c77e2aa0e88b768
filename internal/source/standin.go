package source

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"contestwatch/internal/domain"
)

// StandInAdapter serves a fixed illustrative contest set for platforms without a
// public feed. It honors the same status contract as the live adapters.
type StandInAdapter struct {
	reporter
	build func(now time.Time) []domain.Contest
}

func (a *StandInAdapter) FetchContests(ctx context.Context) []domain.Contest {
	if err := ctx.Err(); err != nil {
		return a.offline(err)
	}
	contests := a.build(a.now())
	a.online()
	a.log.WithField("contest_count", len(contests)).Debug("Stand-in contests served")
	return contests
}

// NewLeetCodeAdapter returns the LeetCode stand-in source.
func NewLeetCodeAdapter(sink StatusSink, now Clock, logger logrus.FieldLogger) *StandInAdapter {
	return &StandInAdapter{
		reporter: newReporter(domain.PlatformLeetCode, sink, now, logger),
		build: func(now time.Time) []domain.Contest {
			return []domain.Contest{
				{
					ID:        "lc-001",
					Name:      "Weekly Contest 345",
					Platform:  domain.PlatformLeetCode,
					StartTime: now.Add(24 * time.Hour),
					Duration:  5400,
					Link:      "https://leetcode.com/contest/weekly-contest-345",
					Type:      "Weekly",
				},
				{
					ID:        "lc-002",
					Name:      "Biweekly Contest 105",
					Platform:  domain.PlatformLeetCode,
					StartTime: now.Add(3 * 24 * time.Hour),
					Duration:  7200,
					Link:      "https://leetcode.com/contest/biweekly-contest-105",
					Type:      "Biweekly",
				},
			}
		},
	}
}

// NewGFGAdapter returns the GeeksforGeeks stand-in source.
func NewGFGAdapter(sink StatusSink, now Clock, logger logrus.FieldLogger) *StandInAdapter {
	return &StandInAdapter{
		reporter: newReporter(domain.PlatformGFG, sink, now, logger),
		build: func(now time.Time) []domain.Contest {
			midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
			return []domain.Contest{
				{
					ID:        "gfg-001",
					Name:      "Problem Of The Day",
					Platform:  domain.PlatformGFG,
					StartTime: midnight,
					Duration:  86400,
					Link:      "https://practice.geeksforgeeks.org/problem-of-the-day",
					Type:      "Daily",
				},
				{
					ID:        "gfg-002",
					Name:      "Monthly Coding Contest",
					Platform:  domain.PlatformGFG,
					StartTime: now.AddDate(0, 0, 7),
					Duration:  18000,
					Link:      "https://practice.geeksforgeeks.org/contest/monthly-coding-contest",
					Type:      "Monthly",
				},
			}
		},
	}
}
