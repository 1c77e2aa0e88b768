package domain

import (
	"sort"

	"github.com/samber/lo"
)

// NotificationPreferences controls when and for which platforms reminders fire.
// LeadTimes and Platforms have set semantics; Normalize sorts and dedups them.
type NotificationPreferences struct {
	Enabled   bool       `json:"enabled"`
	LeadTimes []int      `json:"times"`
	Platforms []Platform `json:"platforms"`
}

// DefaultPreferences returns the preferences used when nothing has been saved yet.
func DefaultPreferences() NotificationPreferences {
	return NotificationPreferences{
		Enabled:   true,
		LeadTimes: []int{15, 60},
		Platforms: []Platform{PlatformLeetCode, PlatformCodeforces, PlatformCodeChef},
	}.Normalize()
}

// Normalize returns a copy with sorted, duplicate free sets.
// Negative lead times and unknown platforms are dropped; platform names are lowercased.
func (p NotificationPreferences) Normalize() NotificationPreferences {
	leads := lo.Uniq(lo.Filter(p.LeadTimes, func(m int, _ int) bool { return m >= 0 }))
	sort.Ints(leads)

	platforms := lo.Uniq(lo.FilterMap(p.Platforms, func(raw Platform, _ int) (Platform, bool) {
		canonical, err := ParsePlatform(string(raw))
		return canonical, err == nil
	}))
	sort.Slice(platforms, func(i, j int) bool { return platforms[i] < platforms[j] })

	return NotificationPreferences{
		Enabled:   p.Enabled,
		LeadTimes: leads,
		Platforms: platforms,
	}
}

// WantsPlatform reports whether notifications are enabled for the platform.
func (p NotificationPreferences) WantsPlatform(platform Platform) bool {
	return lo.Contains(p.Platforms, platform)
}

// ReminderSet maps contest IDs to whether the user asked to be reminded.
type ReminderSet map[string]bool

// IDs returns the contest IDs with an active reminder, sorted.
func (r ReminderSet) IDs() []string {
	ids := make([]string, 0, len(r))
	for id, on := range r {
		if on {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}
