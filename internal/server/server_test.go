package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contestwatch/internal/app"
	"contestwatch/internal/domain"
	"contestwatch/internal/filter"
)

var fixedNow = time.Date(2026, 10, 18, 9, 30, 0, 0, time.UTC)

type fakeService struct {
	contests   []domain.Contest
	refreshErr error
	prefs      domain.NotificationPreferences
	reminders  domain.ReminderSet
	criteria   []filter.Criteria
}

func newFakeService() *fakeService {
	return &fakeService{
		contests: []domain.Contest{
			{ID: "cf-2051", Name: "Codeforces Round 994 (Div. 2)", Platform: domain.PlatformCodeforces, StartTime: fixedNow.Add(5 * time.Hour), Duration: 7200, Link: "https://codeforces.com/contest/2051", Type: "Rated"},
			{ID: "lc-001", Name: "Weekly Contest", Platform: domain.PlatformLeetCode, StartTime: fixedNow.Add(24 * time.Hour), Duration: 5400, Link: "https://leetcode.com/contest/", Type: "Weekly"},
		},
		prefs:     domain.DefaultPreferences(),
		reminders: domain.ReminderSet{},
	}
}

func (f *fakeService) View(ctx context.Context, c filter.Criteria) []domain.Contest {
	f.criteria = append(f.criteria, c)
	return filter.Apply(f.contests, c, fixedNow)
}

func (f *fakeService) Refresh(ctx context.Context) ([]domain.Contest, error) {
	if f.refreshErr != nil {
		return nil, f.refreshErr
	}
	return f.contests, nil
}

func (f *fakeService) Status() app.Status {
	checked := fixedNow
	return app.Status{
		Platforms: map[domain.Platform]domain.PlatformStatus{
			domain.PlatformCodeforces: {Online: true, LastChecked: &checked},
			domain.PlatformCodeChef:   {},
		},
		Contests: len(f.contests),
	}
}

func (f *fakeService) Preferences() domain.NotificationPreferences { return f.prefs }

func (f *fakeService) SavePreferences(ctx context.Context, prefs domain.NotificationPreferences) (domain.NotificationPreferences, error) {
	f.prefs = prefs.Normalize()
	return f.prefs, nil
}

func (f *fakeService) Reminders(ctx context.Context) []app.Reminder {
	out := []app.Reminder{}
	for _, id := range f.reminders.IDs() {
		out = append(out, app.Reminder{ContestID: id})
	}
	return out
}

func (f *fakeService) ToggleReminder(ctx context.Context, id string) (bool, error) {
	for _, c := range f.contests {
		if c.ID == id {
			f.reminders[id] = !f.reminders[id]
			return f.reminders[id], nil
		}
	}
	return false, fmt.Errorf("%w: %s", domain.ErrContestNotFound, id)
}

func newTestServer(svc ContestService) *Server {
	logger, _ := test.NewNullLogger()
	s := New(svc, logger)
	s.now = func() time.Time { return fixedNow }
	return s
}

func do(t *testing.T, s *Server, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	rec := do(t, newTestServer(newFakeService()), http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestContests(t *testing.T) {
	svc := newFakeService()
	s := newTestServer(svc)

	rec := do(t, s, http.MethodGet, "/api/contests?platform=LeetCode&sort=start-desc", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Contests []domain.Contest `json:"contests"`
		Count    int              `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Count)
	assert.Equal(t, "lc-001", resp.Contests[0].ID)
	assert.Equal(t, filter.Criteria{Platform: "leetcode", Range: filter.RangeAll, Sort: filter.SortStartDesc}, svc.criteria[0])

	rec = do(t, s, http.MethodGet, "/api/contests?range=decade", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRefresh(t *testing.T) {
	svc := newFakeService()
	s := newTestServer(svc)

	rec := do(t, s, http.MethodPost, "/api/refresh", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","count":2}`, rec.Body.String())

	svc.refreshErr = fmt.Errorf("%w: boom", domain.ErrAggregateLoad)
	rec = do(t, s, http.MethodPost, "/api/refresh", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"error":"Failed to load contests. Please try again later.","retryable":true}`, rec.Body.String())
}

func TestStatus(t *testing.T) {
	rec := do(t, newTestServer(newFakeService()), http.MethodGet, "/api/status", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var st app.Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.True(t, st.Platforms[domain.PlatformCodeforces].Online)
	assert.False(t, st.Platforms[domain.PlatformCodeChef].Online)
	assert.Nil(t, st.Platforms[domain.PlatformCodeChef].LastChecked)
	assert.Equal(t, 2, st.Contests)
}

func TestPreferences(t *testing.T) {
	svc := newFakeService()
	s := newTestServer(svc)

	rec := do(t, s, http.MethodGet, "/api/preferences", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"enabled":true,"times":[15,60],"platforms":["codechef","codeforces","leetcode"]}`, rec.Body.String())

	rec = do(t, s, http.MethodPut, "/api/preferences", `{"enabled":false,"times":[30,5],"platforms":["gfg"]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"enabled":false,"times":[5,30],"platforms":["gfg"]}`, rec.Body.String())
	assert.False(t, svc.prefs.Enabled)

	rec = do(t, s, http.MethodPut, "/api/preferences", `{"platforms":["topcoder"]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s, http.MethodPut, "/api/preferences", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPreferences_MixedCasePlatforms(t *testing.T) {
	svc := newFakeService()
	s := newTestServer(svc)

	rec := do(t, s, http.MethodPut, "/api/preferences", `{"enabled":true,"times":[15],"platforms":["LeetCode","CodeForces"]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"enabled":true,"times":[15],"platforms":["codeforces","leetcode"]}`, rec.Body.String())
	assert.True(t, svc.prefs.WantsPlatform(domain.PlatformLeetCode))
	assert.True(t, svc.prefs.WantsPlatform(domain.PlatformCodeforces))
}

func TestReminders(t *testing.T) {
	s := newTestServer(newFakeService())

	rec := do(t, s, http.MethodPost, "/api/reminders/cf-2051/toggle", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"contest_id":"cf-2051","reminder":true}`, rec.Body.String())

	rec = do(t, s, http.MethodGet, "/api/reminders", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"reminders":[{"contest_id":"cf-2051"}]}`, rec.Body.String())

	rec = do(t, s, http.MethodPost, "/api/reminders/cf-0/toggle", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestFeeds(t *testing.T) {
	s := newTestServer(newFakeService())

	rec := do(t, s, http.MethodGet, "/feed.rss?platform=codeforces", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/rss+xml")

	parsed, err := gofeed.NewParser().ParseString(rec.Body.String())
	require.NoError(t, err)
	require.Len(t, parsed.Items, 1)
	assert.Equal(t, "Codeforces Round 994 (Div. 2)", parsed.Items[0].Title)

	rec = do(t, s, http.MethodGet, "/feed.atom", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/atom+xml")

	parsed, err = gofeed.NewParser().ParseString(rec.Body.String())
	require.NoError(t, err)
	assert.Equal(t, "atom", parsed.FeedType)
	assert.Len(t, parsed.Items, 2)
}
