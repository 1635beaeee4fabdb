package tui

import (
	"sync"
	"sync/atomic"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/felixgeelhaar/eventify/internal/auth"
	"github.com/felixgeelhaar/eventify/internal/mutation"
	"github.com/felixgeelhaar/eventify/internal/query"
)

// Bridge forwards events from the core layers into a running program.
// It is created before the program so it can be handed to the mutation
// coordinator as its notifier. Messages are queued and delivered in order
// by a pump goroutine: core callbacks may fire while the program is inside
// Update, where a direct Send would block. Messages emitted while detached
// are dropped.
type Bridge struct {
	mu       sync.Mutex
	queue    chan tea.Msg
	notified atomic.Uint64
}

const bridgeQueueSize = 256

// NewBridge creates a detached bridge.
func NewBridge() *Bridge {
	return &Bridge{}
}

// Attach starts delivering messages to send, typically (*tea.Program).Send.
func (b *Bridge) Attach(send func(tea.Msg)) (detach func()) {
	q := make(chan tea.Msg, bridgeQueueSize)
	done := make(chan struct{})

	b.mu.Lock()
	b.queue = q
	b.mu.Unlock()

	go func() {
		for {
			select {
			case msg := <-q:
				send(msg)
			case <-done:
				return
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			if b.queue == q {
				b.queue = nil
			}
			b.mu.Unlock()
			close(done)
		})
	}
}

func (b *Bridge) emit(msg tea.Msg) {
	b.mu.Lock()
	q := b.queue
	b.mu.Unlock()
	if q == nil {
		return
	}
	select {
	case q <- msg:
	default:
	}
}

// Notify implements mutation.Notifier.
func (b *Bridge) Notify(n mutation.Notification) {
	b.notified.Add(1)
	b.emit(NotifyMsg{Notification: n})
}

// Notified returns how many notifications passed through.
func (b *Bridge) Notified() uint64 {
	return b.notified.Load()
}

// Session forwards resolver transitions.
func (b *Bridge) Session(st auth.State) {
	b.emit(SessionMsg{State: st})
}

var _ mutation.Notifier = (*Bridge)(nil)

// watcher keeps one cache subscription per slot so a screen sees
// background refetches and optimistic edits of the key it shows.
type watcher struct {
	mu     sync.Mutex
	cache  *query.Cache
	bridge *Bridge
	slots  map[string]watch
}

type watch struct {
	key   query.Key
	unsub func()
}

func newWatcher(cache *query.Cache, bridge *Bridge) *watcher {
	return &watcher{cache: cache, bridge: bridge, slots: make(map[string]watch)}
}

// Watch points slot at key, dropping the slot's previous subscription.
func (w *watcher) Watch(slot string, key query.Key) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if cur, ok := w.slots[slot]; ok {
		if cur.key.Equal(key) {
			return
		}
		cur.unsub()
	}
	unsub := w.cache.Subscribe(key, nil, func(e query.Entry) {
		w.bridge.emit(EntryMsg{Entry: e})
	})
	w.slots[slot] = watch{key: key, unsub: unsub}
}

// Key returns the key slot watches.
func (w *watcher) Key(slot string) (query.Key, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	cur, ok := w.slots[slot]
	return cur.key, ok
}

// Close drops every subscription.
func (w *watcher) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for slot, cur := range w.slots {
		cur.unsub()
		delete(w.slots, slot)
	}
}
