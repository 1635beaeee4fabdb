package query

import (
	"encoding/hex"
	"strings"

	"github.com/zeebo/blake3"

	"github.com/felixgeelhaar/eventify/internal/domain"
)

// Key identifies a cache entry as ordered segments.
type Key []string

// Well-known roots.
const (
	RootEvents       = "events"
	RootPublicEvents = "publicEvents"
	RootEvent        = "event"
	RootAttendees    = "attendees"
)

// AnonymousViewer is the viewer segment for signed-out sessions.
const AnonymousViewer = "viewer:anonymous"

// String joins the segments with "/".
func (k Key) String() string {
	return strings.Join(k, "/")
}

// Root returns the first segment, used as a low-cardinality label.
func (k Key) Root() string {
	if len(k) == 0 {
		return ""
	}
	return k[0]
}

// HasPrefix reports whether prefix is a leading run of k's segments.
func (k Key) HasPrefix(prefix Key) bool {
	if len(prefix) > len(k) {
		return false
	}
	for i, seg := range prefix {
		if k[i] != seg {
			return false
		}
	}
	return true
}

// Equal reports whether two keys have the same segments.
func (k Key) Equal(other Key) bool {
	return len(k) == len(other) && k.HasPrefix(other)
}

// ViewerSegment identifies the viewer a collection was fetched for. Signed-in
// viewers are keyed by a digest of their user id so two accounts never share
// an entry.
func ViewerSegment(user *domain.Profile) string {
	if user == nil || user.ID == "" {
		return AnonymousViewer
	}
	sum := blake3.Sum256([]byte(user.ID.String()))
	return "viewer:" + hex.EncodeToString(sum[:])[:16]
}

// PublicEventsKey is the key of the public event list for a viewer.
func PublicEventsKey(user *domain.Profile) Key {
	return Key{RootPublicEvents, ViewerSegment(user)}
}

// EventsKey is the key of the admin event list.
func EventsKey() Key {
	return Key{RootEvents}
}

// EventKey is the key of a single event.
func EventKey(id domain.ID) Key {
	return Key{RootEvent, id.String()}
}

// AttendeesKey is the key of one event's attendees. An empty id keys the
// list of all attendees.
func AttendeesKey(eventID domain.ID) Key {
	if eventID == "" {
		return Key{RootAttendees, "all"}
	}
	return Key{RootAttendees, eventID.String()}
}
