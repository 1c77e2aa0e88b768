package domain

import (
	"fmt"
	"strings"
	"time"
)

// Platform identifies the site a contest is hosted on.
type Platform string

const (
	PlatformCodeforces Platform = "codeforces"
	PlatformLeetCode   Platform = "leetcode"
	PlatformCodeChef   Platform = "codechef"
	PlatformGFG        Platform = "gfg"
)

// AllPlatforms lists every supported platform in merge order.
var AllPlatforms = []Platform{
	PlatformCodeforces,
	PlatformLeetCode,
	PlatformCodeChef,
	PlatformGFG,
}

// ParsePlatform converts a user supplied name into a Platform, ignoring case.
func ParsePlatform(s string) (Platform, error) {
	p := Platform(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range AllPlatforms {
		if p == known {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown platform %q", s)
}

// Contest represents a single upcoming contest listing.
// Values are treated as immutable once built by an adapter.
type Contest struct {
	// ID is unique across all platforms, prefixed by the platform (e.g. "cf-1234").
	ID string `json:"id"`

	Name string `json:"name"`

	Platform Platform `json:"platform"`

	// StartTime is the absolute start instant.
	StartTime time.Time `json:"start_time"`

	// Duration is the contest length in seconds.
	Duration int64 `json:"duration"`

	// Link points at the contest page on the platform.
	Link string `json:"link"`

	// Type is a free-text category label such as "Rated" or "Weekly".
	Type string `json:"type"`
}

// DurationValue returns the contest length as a time.Duration.
func (c Contest) DurationValue() time.Duration {
	return time.Duration(c.Duration) * time.Second
}

// EndTime returns the instant the contest finishes.
func (c Contest) EndTime() time.Time {
	return c.StartTime.Add(c.DurationValue())
}

// FormatDuration renders seconds as "2h 30m", "2h" or "45m".
func FormatDuration(seconds int64) string {
	hours := seconds / 3600
	minutes := (seconds % 3600) / 60

	switch {
	case hours > 0 && minutes > 0:
		return fmt.Sprintf("%dh %dm", hours, minutes)
	case hours > 0:
		return fmt.Sprintf("%dh", hours)
	default:
		return fmt.Sprintf("%dm", minutes)
	}
}

// PlatformStatus records the health of a platform's source after its last fetch.
type PlatformStatus struct {
	Online      bool       `json:"online"`
	LastChecked *time.Time `json:"last_checked"`
}
