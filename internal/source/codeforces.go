package source

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"contestwatch/internal/domain"
)

type codeforcesResponse struct {
	Status  string              `json:"status"`
	Comment string              `json:"comment"`
	Result  []codeforcesContest `json:"result"`
}

type codeforcesContest struct {
	ID               int64  `json:"id"`
	Name             string `json:"name"`
	Type             string `json:"type"`
	Phase            string `json:"phase"`
	DurationSeconds  int64  `json:"durationSeconds"`
	StartTimeSeconds *int64 `json:"startTimeSeconds"`
}

// CodeforcesAdapter reads the public contest.list API.
type CodeforcesAdapter struct {
	reporter
	client  *JSONClient
	baseURL string
}

func NewCodeforcesAdapter(client *JSONClient, baseURL string, sink StatusSink, now Clock, logger logrus.FieldLogger) *CodeforcesAdapter {
	return &CodeforcesAdapter{
		reporter: newReporter(domain.PlatformCodeforces, sink, now, logger),
		client:   client,
		baseURL:  strings.TrimRight(baseURL, "/"),
	}
}

func (a *CodeforcesAdapter) FetchContests(ctx context.Context) []domain.Contest {
	var resp codeforcesResponse
	if err := a.client.GetJSON(ctx, a.baseURL+"/api/contest.list", &resp); err != nil {
		return a.offline(err)
	}
	if resp.Status != "OK" {
		return a.offline(fmt.Errorf("%w: codeforces status %q: %s", domain.ErrSourceUnavailable, resp.Status, resp.Comment))
	}

	contests := make([]domain.Contest, 0)
	for _, c := range resp.Result {
		if c.Phase != "BEFORE" {
			continue
		}
		if c.StartTimeSeconds == nil || c.DurationSeconds < 0 {
			a.log.WithField("contest_id", c.ID).Warn("Skipping contest with incomplete schedule")
			continue
		}
		contests = append(contests, domain.Contest{
			ID:        fmt.Sprintf("cf-%d", c.ID),
			Name:      c.Name,
			Platform:  domain.PlatformCodeforces,
			StartTime: time.Unix(*c.StartTimeSeconds, 0).UTC(),
			Duration:  c.DurationSeconds,
			Link:      fmt.Sprintf("https://codeforces.com/contest/%d", c.ID),
			Type:      codeforcesType(c.Name),
		})
	}

	a.online()
	a.log.WithField("contest_count", len(contests)).Info("Contests fetched")
	return contests
}

// codeforcesType labels division rounds as rated.
func codeforcesType(name string) string {
	if strings.Contains(name, "Div.") {
		return "Rated"
	}
	return "Contest"
}
