package view

import "sync"

// Announcer delivers user-facing status messages, independent of rendering.
type Announcer interface {
	Announce(text string)
}

// AnnouncerFunc adapts a function to Announcer.
type AnnouncerFunc func(text string)

func (f AnnouncerFunc) Announce(text string) { f(text) }

// MultiAnnouncer forwards each message to every announcer in order.
type MultiAnnouncer []Announcer

func (m MultiAnnouncer) Announce(text string) {
	for _, a := range m {
		if a != nil {
			a.Announce(text)
		}
	}
}

// LiveRegion models an accessible status region. Each message is written as
// an empty string first and then the text, so assistive technology hears a
// message again even when it equals the previous one.
type LiveRegion struct {
	mu       sync.Mutex
	current  Announcement
	onChange func(Announcement)
}

// NewLiveRegion returns a region that reports every write to onChange.
func NewLiveRegion(onChange func(Announcement)) *LiveRegion {
	return &LiveRegion{onChange: onChange}
}

func (r *LiveRegion) Announce(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.setLocked("")
	r.setLocked(text)
}

// Current returns the last written announcement.
func (r *LiveRegion) Current() Announcement {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

func (r *LiveRegion) setLocked(text string) {
	r.current = Announcement{Text: text, Seq: r.current.Seq + 1}
	if r.onChange != nil {
		r.onChange(r.current)
	}
}
