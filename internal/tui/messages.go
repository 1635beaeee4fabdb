package tui

import (
	"time"

	"github.com/felixgeelhaar/eventify/internal/auth"
	"github.com/felixgeelhaar/eventify/internal/mutation"
	"github.com/felixgeelhaar/eventify/internal/query"
)

// SessionMsg reports a session transition.
type SessionMsg struct {
	State auth.State
}

// EntryMsg reports a change of a watched cache entry.
type EntryMsg struct {
	Entry query.Entry
}

// NotifyMsg carries a mutation notification to the toast area.
type NotifyMsg struct {
	Notification mutation.Notification
}

// loadedMsg is the result of a fetch started by the model.
type loadedMsg struct {
	key  query.Key
	data any
	err  error
}

// mutatedMsg is the result of a mutation started by the model. notified
// is set when the coordinator already produced a notification for it.
type mutatedMsg struct {
	name     string
	err      error
	notified bool
}

// authMsg is the result of a login or signup.
type authMsg struct {
	state auth.State
	err   error
}

type toastExpiredMsg struct {
	id int
}

const defaultToastTTL = 4 * time.Second
