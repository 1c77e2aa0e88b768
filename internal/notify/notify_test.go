package notify

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	tgbot "github.com/go-telegram/bot"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contestwatch/internal/domain"
)

var fixedNow = time.Date(2026, 10, 18, 9, 30, 0, 0, time.UTC)

type staticPrefs struct{ prefs domain.NotificationPreferences }

func (s staticPrefs) Preferences() domain.NotificationPreferences { return s.prefs }

type memoryFired struct {
	mu   sync.Mutex
	ttls map[string]time.Duration
}

func newMemoryFired() *memoryFired { return &memoryFired{ttls: map[string]time.Duration{}} }

func (m *memoryFired) MarkFired(ctx context.Context, key string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ttls[key] = ttl
	return nil
}

func (m *memoryFired) WasFired(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.ttls[key]
	return ok, nil
}

type recordingNotifier struct {
	mu         sync.Mutex
	permission Permission
	permErr    error
	requests   int
	shown      []Notification
	showErr    error
}

func (r *recordingNotifier) RequestPermission(ctx context.Context) (Permission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests++
	return r.permission, r.permErr
}

func (r *recordingNotifier) Show(ctx context.Context, n Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.showErr != nil {
		return r.showErr
	}
	r.shown = append(r.shown, n)
	return nil
}

func contestAt(id string, platform domain.Platform, start time.Time) domain.Contest {
	return domain.Contest{
		ID:        id,
		Name:      "Round " + id,
		Platform:  platform,
		StartTime: start,
		Duration:  7200,
		Link:      "https://example.com/" + id,
	}
}

func newTestScheduler(prefs domain.NotificationPreferences, fired FiredStore, n Notifier) *Scheduler {
	logger, _ := test.NewNullLogger()
	return NewScheduler(staticPrefs{prefs}, fired, NewDispatcher(n, logger), time.UTC, logger)
}

func TestDue(t *testing.T) {
	start := fixedNow.Add(60 * time.Minute)

	tests := []struct {
		name string
		now  time.Time
		want bool
	}{
		{"exact", fixedNow, true},
		{"just before window edge", fixedNow.Add(-4*time.Minute - 59*time.Second), true},
		{"just after", fixedNow.Add(4*time.Minute + 59*time.Second), true},
		{"window edge excluded", fixedNow.Add(5 * time.Minute), false},
		{"window edge excluded before", fixedNow.Add(-5 * time.Minute), false},
		{"far away", fixedNow.Add(-time.Hour), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Due(start, 60, tt.now))
		})
	}
}

func TestScheduler_FiresOncePerPair(t *testing.T) {
	notifier := &recordingNotifier{permission: PermissionGranted}
	fired := newMemoryFired()
	s := newTestScheduler(domain.DefaultPreferences(), fired, notifier)

	contests := []domain.Contest{
		contestAt("cf-1", domain.PlatformCodeforces, fixedNow.Add(60*time.Minute)),
		contestAt("cf-2", domain.PlatformCodeforces, fixedNow.Add(3*time.Hour)),
	}

	assert.Equal(t, 1, s.Scan(context.Background(), contests, fixedNow))
	require.Len(t, notifier.shown, 1)
	n := notifier.shown[0]
	assert.Equal(t, "cf-1", n.ContestID)
	assert.Equal(t, 60, n.LeadMinutes)
	assert.Equal(t, "Contest Starting Soon! (60 min)", n.Title)
	assert.Equal(t, "Round cf-1 on codeforces starts at 10:30:00", n.Body)
	assert.Equal(t, "https://example.com/cf-1", n.Link)
	assert.NotEmpty(t, n.ID)

	// the mark outlives the window
	assert.GreaterOrEqual(t, fired.ttls["cf-1:60"], Window)

	// a later scan inside the same window is deduplicated
	assert.Zero(t, s.Scan(context.Background(), contests, fixedNow.Add(time.Minute)))
	assert.Len(t, notifier.shown, 1)
}

func TestScheduler_ConcurrentScansFireOnce(t *testing.T) {
	notifier := &recordingNotifier{permission: PermissionGranted}
	s := newTestScheduler(domain.DefaultPreferences(), newMemoryFired(), notifier)
	contests := []domain.Contest{contestAt("cf-1", domain.PlatformCodeforces, fixedNow.Add(60*time.Minute))}

	var (
		wg    sync.WaitGroup
		total atomic.Int32
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			total.Add(int32(s.Scan(context.Background(), contests, fixedNow)))
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, total.Load())
	assert.Len(t, notifier.shown, 1)
}

func TestScheduler_WithoutDedupRefires(t *testing.T) {
	notifier := &recordingNotifier{permission: PermissionGranted}
	s := newTestScheduler(domain.DefaultPreferences(), nil, notifier)
	contests := []domain.Contest{contestAt("lc-001", domain.PlatformLeetCode, fixedNow.Add(15*time.Minute))}

	assert.Equal(t, 1, s.Scan(context.Background(), contests, fixedNow))
	assert.Equal(t, 1, s.Scan(context.Background(), contests, fixedNow.Add(time.Minute)))
}

func TestScheduler_RespectsPreferences(t *testing.T) {
	contests := []domain.Contest{
		contestAt("gfg-001", domain.PlatformGFG, fixedNow.Add(60*time.Minute)),
		contestAt("cc-START1", domain.PlatformCodeChef, fixedNow.Add(30*time.Minute)),
	}

	t.Run("disabled", func(t *testing.T) {
		notifier := &recordingNotifier{permission: PermissionGranted}
		prefs := domain.DefaultPreferences()
		prefs.Enabled = false
		s := newTestScheduler(prefs, nil, notifier)
		assert.Zero(t, s.Scan(context.Background(), contests, fixedNow))
		assert.Zero(t, notifier.requests, "permission is requested lazily")
	})

	t.Run("platform not selected", func(t *testing.T) {
		notifier := &recordingNotifier{permission: PermissionGranted}
		// gfg is not in the default platform set
		s := newTestScheduler(domain.DefaultPreferences(), nil, notifier)
		assert.Zero(t, s.Scan(context.Background(), contests, fixedNow))
	})

	t.Run("custom lead time", func(t *testing.T) {
		notifier := &recordingNotifier{permission: PermissionGranted}
		prefs := domain.NotificationPreferences{
			Enabled:   true,
			LeadTimes: []int{30},
			Platforms: []domain.Platform{domain.PlatformCodeChef, domain.PlatformGFG},
		}
		s := newTestScheduler(prefs, nil, notifier)
		assert.Equal(t, 1, s.Scan(context.Background(), contests, fixedNow))
		require.Len(t, notifier.shown, 1)
		assert.Equal(t, "cc-START1", notifier.shown[0].ContestID)
	})
}

func TestScheduler_NoCapability(t *testing.T) {
	s := newTestScheduler(domain.DefaultPreferences(), newMemoryFired(), nil)
	contests := []domain.Contest{contestAt("cf-1", domain.PlatformCodeforces, fixedNow.Add(60*time.Minute))}
	assert.Zero(t, s.Scan(context.Background(), contests, fixedNow))
}

func TestDispatcher_PermissionIsSticky(t *testing.T) {
	logger, _ := test.NewNullLogger()
	notifier := &recordingNotifier{permission: PermissionDenied}
	d := NewDispatcher(notifier, logger)
	assert.Equal(t, PermissionDefault, d.Permission())

	n := Notification{ContestID: "cf-1"}
	assert.ErrorIs(t, d.Dispatch(context.Background(), n), domain.ErrPermissionDenied)
	assert.ErrorIs(t, d.Dispatch(context.Background(), n), domain.ErrPermissionDenied)

	assert.Equal(t, 1, notifier.requests, "A denial must not re-prompt")
	assert.Equal(t, PermissionDenied, d.Permission())
	assert.Empty(t, notifier.shown)
}

func TestDispatcher_RequestErrorDenies(t *testing.T) {
	logger, _ := test.NewNullLogger()
	notifier := &recordingNotifier{permission: PermissionGranted, permErr: errors.New("prompt failed")}
	d := NewDispatcher(notifier, logger)

	assert.ErrorIs(t, d.Dispatch(context.Background(), Notification{}), domain.ErrPermissionDenied)
	assert.Equal(t, PermissionDenied, d.Permission())
}

func TestDispatcher_ShowError(t *testing.T) {
	logger, hook := test.NewNullLogger()
	notifier := &recordingNotifier{permission: PermissionGranted, showErr: errors.New("boom")}
	s := NewScheduler(staticPrefs{domain.DefaultPreferences()}, newMemoryFired(), NewDispatcher(notifier, logger), time.UTC, logger)

	contests := []domain.Contest{contestAt("cf-1", domain.PlatformCodeforces, fixedNow.Add(15*time.Minute))}
	assert.Zero(t, s.Scan(context.Background(), contests, fixedNow))
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, "Failed to deliver notification", hook.LastEntry().Message)
}

func TestConsoleNotifier(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsoleNotifier(&buf)

	p, err := c.RequestPermission(context.Background())
	require.NoError(t, err)
	assert.Equal(t, PermissionGranted, p)

	require.NoError(t, c.Show(context.Background(), Notification{
		Title: "Contest Starting Soon! (15 min)",
		Body:  "Weekly Contest 420 on leetcode starts at 10:30:00",
		Link:  "https://leetcode.com/contest/",
	}))
	assert.Equal(t,
		"[Contest Starting Soon! (15 min)] Weekly Contest 420 on leetcode starts at 10:30:00\n  https://leetcode.com/contest/\n",
		buf.String())
}

// fakeTelegram serves the subset of the Bot API the notifier touches.
func fakeTelegram(t *testing.T) (*httptest.Server, *[]string) {
	t.Helper()
	var mu sync.Mutex
	sent := []string{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/getMe"):
			_, _ = io.WriteString(w, `{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"contestwatch","username":"contestwatch_bot"}}`)
		case strings.HasSuffix(r.URL.Path, "/sendMessage"):
			body, _ := io.ReadAll(r.Body)
			mu.Lock()
			sent = append(sent, string(body))
			mu.Unlock()
			_, _ = io.WriteString(w, `{"ok":true,"result":{"message_id":7,"date":0,"chat":{"id":42,"type":"private"}}}`)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &sent
}

func TestTelegramNotifier_Show(t *testing.T) {
	srv, sent := fakeTelegram(t)
	logger, _ := test.NewNullLogger()

	tn, err := NewTelegramNotifier("123:abc", 42, nil, logger, tgbot.WithServerURL(srv.URL))
	require.NoError(t, err)

	p, err := tn.RequestPermission(context.Background())
	require.NoError(t, err)
	assert.Equal(t, PermissionGranted, p)

	err = tn.Show(context.Background(), Notification{
		ContestID: "cf-2051",
		Title:     "Contest Starting Soon! (60 min)",
		Body:      "Codeforces Round 994 (Div. 2) on codeforces starts at 14:35:00",
		Link:      "https://codeforces.com/contest/2051",
	})
	require.NoError(t, err)

	require.Len(t, *sent, 1)
	assert.Contains(t, (*sent)[0], "Contest Starting Soon! (60 min)")
	assert.Contains(t, (*sent)[0], "https://codeforces.com/contest/2051")
}

func TestTelegramNotifier_NoChatDenies(t *testing.T) {
	srv, _ := fakeTelegram(t)
	logger, _ := test.NewNullLogger()

	tn, err := NewTelegramNotifier("123:abc", 0, nil, logger, tgbot.WithServerURL(srv.URL))
	require.NoError(t, err)

	p, err := tn.RequestPermission(context.Background())
	require.NoError(t, err)
	assert.Equal(t, PermissionDenied, p)
}

func TestTelegramNotifier_FormatUpcoming(t *testing.T) {
	srv, _ := fakeTelegram(t)
	logger, _ := test.NewNullLogger()

	var contests []domain.Contest
	for i := 0; i < 7; i++ {
		contests = append(contests, contestAt(string(rune('a'+i)), domain.PlatformLeetCode, fixedNow.Add(time.Duration(i)*time.Hour)))
	}

	tn, err := NewTelegramNotifier("123:abc", 42, func() []domain.Contest { return contests }, logger, tgbot.WithServerURL(srv.URL))
	require.NoError(t, err)
	tn.location = time.UTC

	text := tn.formatUpcoming()
	assert.Contains(t, text, "Round a (leetcode)")
	assert.Contains(t, text, "Sun 18 Oct 09:30, 2h")
	assert.Contains(t, text, "Round e")
	assert.NotContains(t, text, "Round f", "list is capped")

	empty, err := NewTelegramNotifier("123:abc", 42, nil, logger, tgbot.WithServerURL(srv.URL))
	require.NoError(t, err)
	assert.Equal(t, "No upcoming contests.", empty.formatUpcoming())
}
