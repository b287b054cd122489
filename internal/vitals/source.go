package vitals

import "sync"

// Source delivers performance entries for one page view.
//
// Subscribe registers interest in one entry category. Entries published before
// the subscription are replayed first (buffered replay), so an observer
// registered after an early paint still sees it. Supported reports whether the
// host exposes performance observation at all; when false the pipeline is
// never installed and no submission occurs.
type Source interface {
	Supported() bool
	Navigation() (NavigationTiming, bool)
	Subscribe(typ EntryType) <-chan Entry
}

// subscriberBuffer bounds each subscription channel. Entries beyond it are
// dropped, matching the best-effort nature of the pipeline.
const subscriberBuffer = 256

// ReplaySource is an in-memory Source. Entries are pushed with Publish and
// fan out to subscribers of the matching category; everything published before
// a Subscribe call is replayed into the new channel first.
//
// It backs the replay command and tests. A real host embeds the same contract
// over its native performance timeline.
type ReplaySource struct {
	mu      sync.Mutex
	nav     NavigationTiming
	haveNav bool
	buffer  map[EntryType][]Entry
	subs    map[EntryType][]chan Entry
	closed  bool
}

// NewReplaySource creates an empty source with the given navigation timing.
func NewReplaySource(nav NavigationTiming) *ReplaySource {
	return &ReplaySource{
		nav:     nav,
		haveNav: true,
		buffer:  make(map[EntryType][]Entry),
		subs:    make(map[EntryType][]chan Entry),
	}
}

// NewReplaySourceWithoutNavigation creates a source whose host exposes no
// navigation timing; TTFB stays zero.
func NewReplaySourceWithoutNavigation() *ReplaySource {
	s := NewReplaySource(NavigationTiming{})
	s.haveNav = false
	return s
}

// Supported always reports true; absence of the capability is modeled by
// UnsupportedSource.
func (s *ReplaySource) Supported() bool { return true }

// Navigation returns the navigation timing, if the host recorded one.
func (s *ReplaySource) Navigation() (NavigationTiming, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nav, s.haveNav
}

// Subscribe returns a channel that first replays buffered entries of the given
// category, then receives live ones. The channel closes when the source closes.
func (s *ReplaySource) Subscribe(typ EntryType) <-chan Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan Entry, subscriberBuffer)
	for _, e := range s.buffer[typ] {
		select {
		case ch <- e:
		default:
		}
	}
	if s.closed {
		close(ch)
		return ch
	}
	s.subs[typ] = append(s.subs[typ], ch)
	return ch
}

// Publish records an entry and delivers it to current subscribers of its
// category. Slow subscribers lose entries rather than block the publisher.
func (s *ReplaySource) Publish(e Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.buffer[e.Type] = append(s.buffer[e.Type], e)
	for _, ch := range s.subs[e.Type] {
		select {
		case ch <- e:
		default:
		}
	}
}

// Close closes all subscription channels. Further publishes are dropped.
func (s *ReplaySource) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	for _, chans := range s.subs {
		for _, ch := range chans {
			close(ch)
		}
	}
	s.subs = make(map[EntryType][]chan Entry)
}

// UnsupportedSource models a host without performance observation. Sessions
// built on it never install observers and never submit.
type UnsupportedSource struct{}

func (UnsupportedSource) Supported() bool { return false }

func (UnsupportedSource) Navigation() (NavigationTiming, bool) { return NavigationTiming{}, false }
func (UnsupportedSource) Subscribe(EntryType) <-chan Entry {
	ch := make(chan Entry)
	close(ch)
	return ch
}

var (
	_ Source = (*ReplaySource)(nil)
	_ Source = UnsupportedSource{}
)
