// Package export renders contest lists as RSS or Atom feeds.
package export

import (
	"fmt"
	"strings"
	"time"

	"github.com/gorilla/feeds"

	"contestwatch/internal/domain"
)

// Format is a feed serialization.
type Format string

const (
	FormatRSS  Format = "rss"
	FormatAtom Format = "atom"
)

// ParseFormat accepts "rss" and "atom", ignoring case.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatRSS, FormatAtom:
		return f, nil
	case "":
		return FormatRSS, nil
	default:
		return "", fmt.Errorf("unknown feed format %q", s)
	}
}

// ContentType returns the HTTP content type of the format.
func (f Format) ContentType() string {
	if f == FormatAtom {
		return "application/atom+xml; charset=utf-8"
	}
	return "application/rss+xml; charset=utf-8"
}

// BuildFeed converts contests into a feed. Each item links to the contest page
// and is dated by the contest start time.
func BuildFeed(contests []domain.Contest, baseURL string, now time.Time) *feeds.Feed {
	feed := &feeds.Feed{
		Title:       "Upcoming programming contests",
		Link:        &feeds.Link{Href: baseURL},
		Description: "Contests from Codeforces, LeetCode, CodeChef and GeeksforGeeks",
		Created:     now,
	}

	items := make([]*feeds.Item, 0, len(contests))
	for _, c := range contests {
		items = append(items, contestToItem(c))
	}
	feed.Items = items
	return feed
}

func contestToItem(c domain.Contest) *feeds.Item {
	description := fmt.Sprintf("%s contest on %s. Starts %s, lasts %s.",
		c.Type, c.Platform, c.StartTime.UTC().Format(time.RFC1123), domain.FormatDuration(c.Duration))

	return &feeds.Item{
		Id:          c.ID,
		Title:       c.Name,
		Link:        &feeds.Link{Href: c.Link},
		Description: description,
		Author:      &feeds.Author{Name: string(c.Platform)},
		Created:     c.StartTime,
	}
}

// Render serializes the feed in the requested format.
func Render(feed *feeds.Feed, format Format) (string, error) {
	switch format {
	case FormatAtom:
		return feed.ToAtom()
	default:
		return feed.ToRss()
	}
}
