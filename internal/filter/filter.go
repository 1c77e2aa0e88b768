// Package filter derives the displayed contest list from the full list and the
// current view selections. Everything here is a pure function of its inputs.
package filter

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/samber/lo"

	"contestwatch/internal/domain"
)

// AllPlatforms is the pass-through platform selection.
const AllPlatforms = "all"

// TimeRange restricts contests by start time.
type TimeRange string

const (
	RangeAll   TimeRange = "all"
	RangeToday TimeRange = "today"
	RangeWeek  TimeRange = "week"
	RangeMonth TimeRange = "month"
)

// ParseTimeRange accepts "", "all", "today", "week" and "month".
func ParseTimeRange(s string) (TimeRange, error) {
	switch r := TimeRange(strings.ToLower(strings.TrimSpace(s))); r {
	case "":
		return RangeAll, nil
	case RangeAll, RangeToday, RangeWeek, RangeMonth:
		return r, nil
	default:
		return "", fmt.Errorf("unknown time range %q", s)
	}
}

// SortKey orders the filtered list. The zero value keeps the input order.
type SortKey string

const (
	SortNone         SortKey = ""
	SortStartAsc     SortKey = "start-asc"
	SortStartDesc    SortKey = "start-desc"
	SortDurationAsc  SortKey = "duration-asc"
	SortDurationDesc SortKey = "duration-desc"
)

// ParseSortKey accepts the four sort keys; anything blank or "default" keeps input order.
func ParseSortKey(s string) (SortKey, error) {
	switch k := SortKey(strings.ToLower(strings.TrimSpace(s))); k {
	case SortNone, "default":
		return SortNone, nil
	case SortStartAsc, SortStartDesc, SortDurationAsc, SortDurationDesc:
		return k, nil
	default:
		return "", fmt.Errorf("unknown sort key %q", s)
	}
}

// Criteria is the set of view selections applied to the full list.
type Criteria struct {
	Platform string    `json:"platform"`
	Search   string    `json:"search"`
	Range    TimeRange `json:"range"`
	Sort     SortKey   `json:"sort"`
}

// Apply filters and sorts contests. The input slice is never modified and the
// result is always a fresh slice.
func Apply(contests []domain.Contest, c Criteria, now time.Time) []domain.Contest {
	out := ByPlatform(contests, c.Platform)
	out = BySearch(out, c.Search)
	out = ByTimeRange(out, c.Range, now)
	Sort(out, c.Sort)
	return out
}

// ByPlatform keeps contests whose platform equals platform, ignoring case.
// "all" and "" keep everything.
func ByPlatform(contests []domain.Contest, platform string) []domain.Contest {
	want := strings.ToLower(strings.TrimSpace(platform))
	if want == "" || want == AllPlatforms {
		return append(make([]domain.Contest, 0, len(contests)), contests...)
	}
	return lo.Filter(contests, func(c domain.Contest, _ int) bool {
		return strings.ToLower(string(c.Platform)) == want
	})
}

// BySearch keeps contests whose name or platform contains the search text,
// ignoring case. Blank text keeps everything.
func BySearch(contests []domain.Contest, search string) []domain.Contest {
	term := strings.ToLower(strings.TrimSpace(search))
	if term == "" {
		return append(make([]domain.Contest, 0, len(contests)), contests...)
	}
	return lo.Filter(contests, func(c domain.Contest, _ int) bool {
		return strings.Contains(strings.ToLower(c.Name), term) ||
			strings.Contains(strings.ToLower(string(c.Platform)), term)
	})
}

// Window returns the closed interval a time range covers relative to now.
// ok is false for RangeAll.
func Window(r TimeRange, now time.Time) (from, to time.Time, ok bool) {
	switch r {
	case RangeToday:
		from = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
		to = time.Date(now.Year(), now.Month(), now.Day(), 23, 59, 59, int(999*time.Millisecond), now.Location())
		return from, to, true
	case RangeWeek:
		return now, now.AddDate(0, 0, 7), true
	case RangeMonth:
		return now, now.AddDate(0, 1, 0), true
	default:
		return time.Time{}, time.Time{}, false
	}
}

// ByTimeRange keeps contests starting inside the range's closed interval.
func ByTimeRange(contests []domain.Contest, r TimeRange, now time.Time) []domain.Contest {
	from, to, ok := Window(r, now)
	if !ok {
		return append(make([]domain.Contest, 0, len(contests)), contests...)
	}
	return lo.Filter(contests, func(c domain.Contest, _ int) bool {
		return !c.StartTime.Before(from) && !c.StartTime.After(to)
	})
}

// Sort orders contests in place. Ties keep their relative order.
func Sort(contests []domain.Contest, key SortKey) {
	var less func(a, b domain.Contest) bool
	switch key {
	case SortStartAsc:
		less = func(a, b domain.Contest) bool { return a.StartTime.Before(b.StartTime) }
	case SortStartDesc:
		less = func(a, b domain.Contest) bool { return a.StartTime.After(b.StartTime) }
	case SortDurationAsc:
		less = func(a, b domain.Contest) bool { return a.Duration < b.Duration }
	case SortDurationDesc:
		less = func(a, b domain.Contest) bool { return a.Duration > b.Duration }
	default:
		return
	}
	sort.SliceStable(contests, func(i, j int) bool { return less(contests[i], contests[j]) })
}

// ParseCriteria validates raw view selections from a query string or flags.
func ParseCriteria(platform, search, timeRange, sortKey string) (Criteria, error) {
	p := strings.ToLower(strings.TrimSpace(platform))
	if p != "" && p != AllPlatforms {
		if _, err := domain.ParsePlatform(p); err != nil {
			return Criteria{}, err
		}
	}
	r, err := ParseTimeRange(timeRange)
	if err != nil {
		return Criteria{}, err
	}
	k, err := ParseSortKey(sortKey)
	if err != nil {
		return Criteria{}, err
	}
	return Criteria{Platform: p, Search: search, Range: r, Sort: k}, nil
}
