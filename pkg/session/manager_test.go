package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/0xmhha/tab-monitor/pkg/category"
	"github.com/0xmhha/tab-monitor/pkg/logger"
	"github.com/0xmhha/tab-monitor/pkg/notify"
)

// fakeClock is a manually advanced clock.
type fakeClock struct {
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

// fakeTabs is an in-memory TabProvider.
type fakeTabs struct {
	tabs   map[int]Tab
	active map[int]int // window -> tab
	last   int         // last focused window
	err    error
}

func newFakeTabs() *fakeTabs {
	return &fakeTabs{
		tabs:   make(map[int]Tab),
		active: make(map[int]int),
	}
}

func (f *fakeTabs) open(id, window int, url, title string) {
	f.tabs[id] = Tab{ID: id, WindowID: window, URL: url, Title: title}
	f.activate(id)
}

func (f *fakeTabs) activate(id int) {
	tab := f.tabs[id]
	if prev, ok := f.active[tab.WindowID]; ok {
		p := f.tabs[prev]
		p.Active = false
		f.tabs[prev] = p
	}
	tab.Active = true
	f.tabs[id] = tab
	f.active[tab.WindowID] = id
	f.last = tab.WindowID
}

func (f *fakeTabs) close(id int) {
	tab := f.tabs[id]
	delete(f.tabs, id)
	if f.active[tab.WindowID] == id {
		delete(f.active, tab.WindowID)
	}
}

func (f *fakeTabs) Tab(_ context.Context, id int) (Tab, error) {
	if f.err != nil {
		return Tab{}, f.err
	}
	tab, ok := f.tabs[id]
	if !ok {
		return Tab{}, ErrTabNotFound
	}
	return tab, nil
}

func (f *fakeTabs) ActiveTab(_ context.Context, window int) (Tab, error) {
	if f.err != nil {
		return Tab{}, f.err
	}
	if window == CurrentWindow {
		window = f.last
	}
	id, ok := f.active[window]
	if !ok {
		return Tab{}, ErrNoActiveTab
	}
	return f.tabs[id], nil
}

// recordingSink collects folded records.
type recordingSink struct {
	records []Record
	err     error
}

func (s *recordingSink) Fold(rec Record) error {
	if s.err != nil {
		return s.err
	}
	s.records = append(s.records, rec)
	return nil
}

func (s *recordingSink) total(domain string) time.Duration {
	var d time.Duration
	for _, r := range s.records {
		if r.Domain == domain {
			d += r.TimeSpent
		}
	}
	return d
}

// recordingPublisher collects notifications.
type recordingPublisher struct {
	mu     sync.Mutex
	events []notify.EventType
	data   []any
}

func (p *recordingPublisher) Publish(t notify.EventType, data any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, t)
	p.data = append(p.data, data)
}

type fixture struct {
	clock *fakeClock
	tabs  *fakeTabs
	sink  *recordingSink
	pub   *recordingPublisher
	mgr   *Manager
}

func newFixture(minDuration time.Duration) *fixture {
	f := &fixture{
		clock: newFakeClock(),
		tabs:  newFakeTabs(),
		sink:  &recordingSink{},
		pub:   &recordingPublisher{},
	}
	f.mgr = NewManager(Config{MinDuration: minDuration}, Deps{
		Tabs:        f.tabs,
		Clock:       f.clock,
		Categorizer: category.Default(),
		Sink:        f.sink,
		Publisher:   f.pub,
	}, logger.Noop())
	return f
}

func TestIsTrackable(t *testing.T) {
	tests := []struct {
		url  string
		want bool
	}{
		{"https://github.com", true},
		{"http://localhost:3000", true},
		{"file:///home/me/notes.html", true},
		{"", false},
		{"   ", false},
		{"about:blank", false},
		{"about:newtab", false},
		{"chrome://extensions", false},
		{"CHROME://settings", false},
		{"chrome-extension://abc/popup.html", false},
		{"edge://settings", false},
		{"moz-extension://x/y", false},
		{"devtools://devtools/bundled", false},
		{"view-source:https://example.com", false},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTrackable(tt.url))
		})
	}
}

func TestTabActivatedStartsSession(t *testing.T) {
	f := newFixture(time.Second)
	ctx := context.Background()

	f.tabs.open(1, 10, "https://github.com/org/repo/pull/3", "Pull Request")
	f.mgr.TabActivated(ctx, 1)

	cur := f.mgr.Current()
	require.NotNil(t, cur)
	assert.Equal(t, 1, cur.TabID)
	assert.Equal(t, 10, cur.WindowID)
	assert.Equal(t, "github.com", cur.Domain)
	assert.Equal(t, category.Development, cur.Category)
	assert.Equal(t, Focused, cur.Focus)
	assert.Equal(t, f.clock.Now(), cur.StartTime)

	require.Len(t, f.pub.events, 1)
	assert.Equal(t, notify.SessionStart, f.pub.events[0])
	view := f.pub.data[0].(View)
	assert.Equal(t, "github.com", view.Domain)
	assert.True(t, view.IsActive)
}

func TestInvalidTabIgnored(t *testing.T) {
	f := newFixture(time.Second)
	ctx := context.Background()

	f.tabs.open(1, 10, "https://github.com", "GitHub")
	f.mgr.TabActivated(ctx, 1)
	f.clock.Advance(5 * time.Second)

	for id, url := range map[int]string{2: "chrome://newtab", 3: "about:blank", 4: ""} {
		f.tabs.open(id, 10, url, "")
		f.mgr.TabActivated(ctx, id)
	}

	cur := f.mgr.Current()
	require.NotNil(t, cur)
	assert.Equal(t, 1, cur.TabID)
	assert.Empty(t, f.sink.records)
}

func TestProviderErrorKeepsState(t *testing.T) {
	f := newFixture(time.Second)
	ctx := context.Background()

	f.tabs.open(1, 10, "https://github.com", "GitHub")
	f.mgr.TabActivated(ctx, 1)
	before := f.mgr.Current()

	f.tabs.err = errors.New("permission denied")
	f.mgr.TabActivated(ctx, 2)
	f.mgr.TabUpdated(ctx, 1)
	f.mgr.WindowFocused(ctx, 11)

	assert.Equal(t, before, f.mgr.Current())
	assert.Empty(t, f.sink.records)
}

func TestTabUpdatedVanishedCurrentTabEndsSession(t *testing.T) {
	f := newFixture(time.Second)
	ctx := context.Background()

	f.tabs.open(1, 10, "https://github.com", "GitHub")
	f.mgr.TabActivated(ctx, 1)
	f.clock.Advance(3 * time.Second)

	f.tabs.close(1)
	f.mgr.TabUpdated(ctx, 1)

	assert.Nil(t, f.mgr.Current())
	require.Len(t, f.sink.records, 1)
	assert.Equal(t, 3*time.Second, f.sink.records[0].TimeSpent)
}

func TestTabUpdatedBackgroundTabIgnored(t *testing.T) {
	f := newFixture(time.Second)
	ctx := context.Background()

	f.tabs.open(1, 10, "https://github.com", "GitHub")
	f.tabs.open(2, 10, "https://youtube.com", "YouTube")
	f.tabs.activate(1)
	f.mgr.TabActivated(ctx, 1)

	f.mgr.TabUpdated(ctx, 2)

	assert.Equal(t, 1, f.mgr.Current().TabID)
}

func TestTabUpdatedNavigationSwitchesSession(t *testing.T) {
	f := newFixture(time.Second)
	ctx := context.Background()

	f.tabs.open(1, 10, "https://github.com", "GitHub")
	f.mgr.TabActivated(ctx, 1)
	f.clock.Advance(4 * time.Second)

	f.tabs.open(1, 10, "https://www.youtube.com/watch?v=1", "Video")
	f.mgr.TabUpdated(ctx, 1)

	cur := f.mgr.Current()
	require.NotNil(t, cur)
	assert.Equal(t, "www.youtube.com", cur.Domain)
	assert.Equal(t, category.Entertainment, cur.Category)
	require.Len(t, f.sink.records, 1)
	assert.Equal(t, "github.com", f.sink.records[0].Domain)
}

func TestSameTabSameURLKeepsSession(t *testing.T) {
	f := newFixture(time.Second)
	ctx := context.Background()

	f.tabs.open(1, 10, "https://github.com", "GitHub")
	f.mgr.TabActivated(ctx, 1)
	start := f.mgr.Current().StartTime
	f.clock.Advance(2 * time.Second)

	f.tabs.open(1, 10, "https://github.com", "GitHub - renamed")
	f.mgr.TabUpdated(ctx, 1)

	cur := f.mgr.Current()
	assert.Equal(t, start, cur.StartTime)
	assert.Equal(t, "GitHub - renamed", cur.Title)
	assert.Empty(t, f.sink.records)
}

func TestTabClosed(t *testing.T) {
	f := newFixture(time.Second)
	ctx := context.Background()

	f.tabs.open(1, 10, "https://github.com", "GitHub")
	f.mgr.TabActivated(ctx, 1)
	f.clock.Advance(2 * time.Second)

	f.mgr.TabClosed(99)
	assert.NotNil(t, f.mgr.Current())

	f.mgr.TabClosed(1)
	assert.Nil(t, f.mgr.Current())
	require.Len(t, f.sink.records, 1)

	// Idempotent end.
	_, kept := f.mgr.EndCurrent()
	assert.False(t, kept)
	assert.Len(t, f.sink.records, 1)
}

func TestWindowBlurAndFocus(t *testing.T) {
	f := newFixture(time.Second)
	ctx := context.Background()

	f.tabs.open(1, 10, "https://github.com", "GitHub")
	f.mgr.TabActivated(ctx, 1)
	start := f.mgr.Current().StartTime

	f.clock.Advance(5 * time.Second)
	f.mgr.WindowFocused(ctx, NoWindow)
	assert.Equal(t, Unfocused, f.mgr.Current().Focus)
	assert.Equal(t, 5*time.Second, f.mgr.Elapsed())
	assert.Empty(t, f.sink.records)

	f.clock.Advance(5 * time.Second)
	f.mgr.WindowFocused(ctx, 10)
	cur := f.mgr.Current()
	assert.Equal(t, Focused, cur.Focus)
	assert.Equal(t, start, cur.StartTime)
	assert.Empty(t, f.sink.records)

	// Focus moves to another window with another tab.
	f.tabs.open(2, 11, "https://news.ycombinator.com", "Hacker News")
	f.mgr.WindowFocused(ctx, 11)
	require.Len(t, f.sink.records, 1)
	assert.Equal(t, 10*time.Second, f.sink.records[0].TimeSpent)
	assert.Equal(t, category.News, f.mgr.Current().Category)
}

func TestEndCurrentBelowThresholdClearsPointer(t *testing.T) {
	f := newFixture(time.Second)
	ctx := context.Background()

	f.tabs.open(1, 10, "https://github.com", "GitHub")
	f.mgr.TabActivated(ctx, 1)
	f.clock.Advance(500 * time.Millisecond)

	rec, kept := f.mgr.EndCurrent()
	assert.False(t, kept)
	assert.Equal(t, 500*time.Millisecond, rec.TimeSpent)
	assert.Nil(t, f.mgr.Current())
	assert.Empty(t, f.sink.records)

	last := f.pub.data[len(f.pub.data)-1].(EndView)
	assert.False(t, last.Recorded)
	assert.Equal(t, int64(500), last.TimeSpentMS)
}

func TestEndCurrentSinkErrorNotKept(t *testing.T) {
	f := newFixture(time.Second)
	ctx := context.Background()

	f.tabs.open(1, 10, "https://github.com", "GitHub")
	f.mgr.TabActivated(ctx, 1)
	f.clock.Advance(2 * time.Second)

	f.sink.err = errors.New("rejected")
	_, kept := f.mgr.EndCurrent()
	assert.False(t, kept)
	assert.Nil(t, f.mgr.Current())
}

func TestEndCurrentClockSkewNeverNegative(t *testing.T) {
	f := newFixture(0)
	ctx := context.Background()

	f.tabs.open(1, 10, "https://github.com", "GitHub")
	f.mgr.TabActivated(ctx, 1)
	f.clock.Advance(-time.Minute)

	rec, kept := f.mgr.EndCurrent()
	assert.True(t, kept)
	assert.Equal(t, time.Duration(0), rec.TimeSpent)
}

func TestRebase(t *testing.T) {
	f := newFixture(time.Second)
	ctx := context.Background()

	f.tabs.open(1, 10, "https://github.com", "GitHub")
	f.mgr.TabActivated(ctx, 1)
	f.clock.Advance(time.Minute)

	f.mgr.Rebase()
	f.clock.Advance(2 * time.Second)
	rec, kept := f.mgr.EndCurrent()
	assert.True(t, kept)
	assert.Equal(t, 2*time.Second, rec.TimeSpent)
}

func TestTick(t *testing.T) {
	f := newFixture(time.Second)
	ctx := context.Background()

	f.mgr.Tick()
	assert.Empty(t, f.pub.events)

	f.tabs.open(1, 10, "https://github.com", "GitHub")
	f.mgr.TabActivated(ctx, 1)
	f.clock.Advance(3 * time.Second)
	f.mgr.Tick()

	require.Len(t, f.pub.events, 2)
	assert.Equal(t, notify.SessionUpdate, f.pub.events[1])
	assert.Equal(t, int64(3000), f.pub.data[1].(View).ElapsedMS)
	assert.Empty(t, f.sink.records)
}

// Tab A (github) 40s, tab B (youtube) 15s, back to A 20s, close all.
func TestScenarioSwitchAndReturn(t *testing.T) {
	f := newFixture(time.Second)
	ctx := context.Background()

	f.tabs.open(1, 10, "https://github.com/org/repo/pull/1", "Pull Request")
	f.mgr.TabActivated(ctx, 1)
	f.clock.Advance(40 * time.Second)

	f.tabs.open(2, 10, "https://www.youtube.com/watch?v=x", "Music video")
	f.mgr.TabActivated(ctx, 2)
	f.clock.Advance(15 * time.Second)

	f.tabs.activate(1)
	f.mgr.TabActivated(ctx, 1)
	f.clock.Advance(20 * time.Second)

	f.mgr.TabClosed(1)
	f.mgr.TabClosed(2)

	assert.Equal(t, 60*time.Second, f.sink.total("github.com"))
	assert.Equal(t, 15*time.Second, f.sink.total("www.youtube.com"))

	visits := 0
	for _, r := range f.sink.records {
		if r.Domain == "github.com" {
			visits++
			assert.Equal(t, category.Development, r.Category)
		} else {
			assert.Equal(t, category.Entertainment, r.Category)
		}
	}
	assert.Equal(t, 2, visits)
	assert.Nil(t, f.mgr.Current())
}

func TestScenarioRapidFlicker(t *testing.T) {
	f := newFixture(time.Second)
	ctx := context.Background()

	urls := []string{
		"https://github.com",
		"https://youtube.com",
		"https://reddit.com",
		"https://amazon.com",
		"https://en.wikipedia.org",
	}
	for i, u := range urls {
		f.tabs.open(i+1, 10, u, "")
	}

	for round := 0; round < 3; round++ {
		for i := range urls {
			f.tabs.activate(i + 1)
			f.mgr.TabActivated(ctx, i+1)
			f.clock.Advance(200 * time.Millisecond)
		}
	}
	f.mgr.EndCurrent()

	assert.Empty(t, f.sink.records)
}

func TestScenarioPauseMidSession(t *testing.T) {
	f := newFixture(time.Second)
	ctx := context.Background()

	f.tabs.open(1, 10, "https://github.com", "GitHub")
	f.mgr.TabActivated(ctx, 1)
	f.clock.Advance(30 * time.Second)

	f.mgr.Pause()
	assert.True(t, f.mgr.Paused())
	assert.Nil(t, f.mgr.Current())
	require.Len(t, f.sink.records, 1)
	assert.Equal(t, 30*time.Second, f.sink.records[0].TimeSpent)

	f.tabs.open(2, 10, "https://youtube.com", "YouTube")
	f.mgr.TabActivated(ctx, 2)
	f.mgr.TabUpdated(ctx, 2)
	f.mgr.WindowFocused(ctx, 10)
	f.clock.Advance(time.Minute)
	assert.Nil(t, f.mgr.Current())
	assert.Len(t, f.sink.records, 1)

	f.mgr.Resume(ctx)
	assert.False(t, f.mgr.Paused())
	cur := f.mgr.Current()
	require.NotNil(t, cur)
	assert.Equal(t, 2, cur.TabID)
	assert.Equal(t, f.clock.Now(), cur.StartTime)
}

func TestResumeWithoutActiveTab(t *testing.T) {
	f := newFixture(time.Second)

	f.mgr.Pause()
	f.mgr.Resume(context.Background())

	assert.False(t, f.mgr.Paused())
	assert.Nil(t, f.mgr.Current())
}

// Any event sequence yields non-overlapping records, each at or above
// the threshold, and no session while paused.
func TestManagerProperties(t *testing.T) {
	const minDuration = time.Second

	urls := []string{
		"https://github.com/a",
		"https://youtube.com/b",
		"chrome://settings",
		"about:blank",
		"https://news.ycombinator.com",
		"",
	}

	rapid.Check(t, func(rt *rapid.T) {
		f := newFixture(minDuration)
		ctx := context.Background()

		for i := 1; i <= 4; i++ {
			f.tabs.open(i, 10+i%2, rapid.SampledFrom(urls).Draw(rt, "url"), "")
		}

		steps := rapid.IntRange(1, 60).Draw(rt, "steps")
		for s := 0; s < steps; s++ {
			tabID := rapid.IntRange(1, 5).Draw(rt, "tab")
			switch rapid.IntRange(0, 8).Draw(rt, "op") {
			case 0:
				if _, ok := f.tabs.tabs[tabID]; ok {
					f.tabs.activate(tabID)
				}
				f.mgr.TabActivated(ctx, tabID)
			case 1:
				if tab, ok := f.tabs.tabs[tabID]; ok {
					tab.URL = rapid.SampledFrom(urls).Draw(rt, "nav")
					f.tabs.tabs[tabID] = tab
				}
				f.mgr.TabUpdated(ctx, tabID)
			case 2:
				f.tabs.close(tabID)
				f.mgr.TabClosed(tabID)
			case 3:
				f.mgr.WindowFocused(ctx, NoWindow)
			case 4:
				f.mgr.WindowFocused(ctx, rapid.IntRange(10, 11).Draw(rt, "window"))
			case 5:
				f.mgr.Pause()
			case 6:
				f.mgr.Resume(ctx)
			case 7:
				f.mgr.Tick()
			case 8:
				f.mgr.EndCurrent()
			}

			if f.mgr.Paused() && f.mgr.Current() != nil {
				rt.Fatalf("session current while paused")
			}
			if cur := f.mgr.Current(); cur != nil && !IsTrackable(cur.URL) {
				rt.Fatalf("untrackable session %q", cur.URL)
			}

			f.clock.Advance(time.Duration(rapid.IntRange(0, 3000).Draw(rt, "ms")) * time.Millisecond)
		}
		f.mgr.EndCurrent()

		var prevEnd time.Time
		for i, r := range f.sink.records {
			if r.TimeSpent < minDuration {
				rt.Fatalf("record %d below threshold: %v", i, r.TimeSpent)
			}
			if r.StartTime.Before(prevEnd) {
				rt.Fatalf("record %d overlaps previous: start %v < end %v", i, r.StartTime, prevEnd)
			}
			if r.EndTime.Sub(r.StartTime) != r.TimeSpent {
				rt.Fatalf("record %d time spent mismatch", i)
			}
			prevEnd = r.EndTime
		}
	})
}
