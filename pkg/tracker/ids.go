package tracker

import (
	"github.com/0xmhha/tab-monitor/pkg/discovery"
	"github.com/0xmhha/tab-monitor/pkg/parser"
)

// scopedID is a browser id qualified by the profile that issued it.
type scopedID struct {
	profile string
	id      int
}

// profileIDs gives every profile's tabs and windows engine-wide ids.
// Browsers number tabs and windows from small integers, so two profiles
// reuse the same ids for unrelated tabs.
type profileIDs struct {
	tabs    map[scopedID]int
	windows map[scopedID]int
	nextTab int
	nextWin int
}

func newProfileIDs() *profileIDs {
	return &profileIDs{
		tabs:    make(map[scopedID]int),
		windows: make(map[scopedID]int),
	}
}

// Translate rewrites the tab and window ids of ev into engine ids.
// Events without a profile belong to discovery.DefaultProfile. Window ids
// below one carry no window and are kept.
func (p *profileIDs) Translate(ev *parser.Event) {
	profile := profileOf(*ev)

	if ev.TabID > 0 {
		ev.TabID = p.lookup(p.tabs, &p.nextTab, scopedID{profile, ev.TabID})
	}
	if ev.WindowID > 0 {
		ev.WindowID = p.lookup(p.windows, &p.nextWin, scopedID{profile, ev.WindowID})
	}
}

// Forget drops the engine id of a removed tab. ev carries browser ids.
func (p *profileIDs) Forget(ev parser.Event) {
	delete(p.tabs, scopedID{profileOf(ev), ev.TabID})
}

// Tabs returns the number of tab ids in use.
func (p *profileIDs) Tabs() int {
	return len(p.tabs)
}

func (p *profileIDs) lookup(ids map[scopedID]int, next *int, key scopedID) int {
	if id, ok := ids[key]; ok {
		return id
	}
	*next++
	ids[key] = *next
	return *next
}

func profileOf(ev parser.Event) string {
	if ev.Profile == "" {
		return discovery.DefaultProfile
	}
	return ev.Profile
}
