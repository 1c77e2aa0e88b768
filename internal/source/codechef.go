package source

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"contestwatch/internal/domain"
)

// codechefLegacyLayout is the non-ISO start date format, always in IST.
const codechefLegacyLayout = "02 Jan 2006  15:04:05"

var istZone = time.FixedZone("IST", 5*3600+30*60)

type codechefResponse struct {
	Status          string            `json:"status"`
	FutureContests  []codechefContest `json:"future_contests"`
	PresentContests []codechefContest `json:"present_contests"`
}

type codechefContest struct {
	Code         string      `json:"contest_code"`
	Name         string      `json:"contest_name"`
	StartDate    string      `json:"contest_start_date"`
	StartDateISO string      `json:"contest_start_date_iso"`
	Duration     flexMinutes `json:"contest_duration"`
}

// flexMinutes accepts the duration either as a JSON number or a numeric string.
type flexMinutes int64

func (m *flexMinutes) UnmarshalJSON(b []byte) error {
	var n json.Number
	if err := json.Unmarshal(b, &n); err == nil {
		v, err := strconv.ParseInt(n.String(), 10, 64)
		if err != nil {
			return fmt.Errorf("contest_duration %s: %w", n, err)
		}
		*m = flexMinutes(v)
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("contest_duration must be a number or string: %w", err)
	}
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return fmt.Errorf("contest_duration %q: %w", s, err)
	}
	*m = flexMinutes(v)
	return nil
}

// CodeChefAdapter reads the contest listing API and merges future and running contests.
type CodeChefAdapter struct {
	reporter
	client  *JSONClient
	baseURL string
}

func NewCodeChefAdapter(client *JSONClient, baseURL string, sink StatusSink, now Clock, logger logrus.FieldLogger) *CodeChefAdapter {
	return &CodeChefAdapter{
		reporter: newReporter(domain.PlatformCodeChef, sink, now, logger),
		client:   client,
		baseURL:  strings.TrimRight(baseURL, "/"),
	}
}

func (a *CodeChefAdapter) FetchContests(ctx context.Context) []domain.Contest {
	var resp codechefResponse
	if err := a.client.GetJSON(ctx, a.baseURL+"/api/list/contests", &resp); err != nil {
		return a.offline(err)
	}
	if resp.FutureContests == nil && resp.PresentContests == nil {
		return a.offline(fmt.Errorf("%w: codechef response has no contest buckets", domain.ErrSourceUnavailable))
	}

	raw := make([]codechefContest, 0, len(resp.FutureContests)+len(resp.PresentContests))
	raw = append(raw, resp.FutureContests...)
	raw = append(raw, resp.PresentContests...)

	contests := make([]domain.Contest, 0, len(raw))
	for _, c := range raw {
		start, err := c.startTime()
		if err != nil {
			a.log.WithError(err).WithField("contest_code", c.Code).Warn("Skipping contest with unparseable start date")
			continue
		}
		if c.Duration < 0 {
			a.log.WithField("contest_code", c.Code).Warn("Skipping contest with negative duration")
			continue
		}
		contests = append(contests, domain.Contest{
			ID:        "cc-" + c.Code,
			Name:      c.Name,
			Platform:  domain.PlatformCodeChef,
			StartTime: start,
			Duration:  int64(c.Duration) * 60,
			Link:      "https://www.codechef.com/" + c.Code,
			Type:      codechefType(c.Code),
		})
	}

	a.online()
	a.log.WithField("contest_count", len(contests)).Info("Contests fetched")
	return contests
}

func (c codechefContest) startTime() (time.Time, error) {
	if c.StartDateISO != "" {
		t, err := time.Parse(time.RFC3339, c.StartDateISO)
		if err == nil {
			return t.UTC(), nil
		}
	}
	if c.StartDate != "" {
		t, err := time.ParseInLocation(codechefLegacyLayout, c.StartDate, istZone)
		if err != nil {
			return time.Time{}, err
		}
		return t.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("no start date")
}

func codechefType(code string) string {
	if strings.Contains(code, "START") {
		return "Starters"
	}
	return "Cook-Off"
}
