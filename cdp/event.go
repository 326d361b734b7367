package cdp

import (
	"sync"

	"github.com/agenttools/browserctl/log"

	"github.com/chromedp/cdproto"
	"github.com/chromedp/cdproto/target"
)

// eventBufferSize is how many undelivered events a subscriber can lag
// behind before new ones are dropped.
const eventBufferSize = 256

// Event is a CDP event received from the browser. Data holds the decoded
// cdproto event (e.g. *runtime.EventConsoleAPICalled), or the raw
// *cdproto.Message when the event is unknown to cdproto.
type Event struct {
	Name      cdproto.MethodType
	SessionID target.SessionID
	Data      interface{}
}

type subscription struct {
	sessionID target.SessionID
	events    map[cdproto.MethodType]struct{}
	ch        chan *Event
}

type eventWatcher struct {
	logger *log.Logger

	mu     sync.RWMutex
	subs   map[int]*subscription
	nextID int
	closed bool
}

func newEventWatcher(logger *log.Logger) *eventWatcher {
	return &eventWatcher{
		logger: logger,
		subs:   make(map[int]*subscription),
	}
}

// subscribe returns a channel receiving the given events of sessionID and
// a function that unsubscribes and closes the channel.
func (w *eventWatcher) subscribe(sessionID target.SessionID, events ...cdproto.MethodType) (<-chan *Event, func()) {
	sub := &subscription{
		sessionID: sessionID,
		events:    make(map[cdproto.MethodType]struct{}, len(events)),
		ch:        make(chan *Event, eventBufferSize),
	}
	for _, evt := range events {
		sub.events[evt] = struct{}{}
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		close(sub.ch)
		return sub.ch, func() {}
	}
	id := w.nextID
	w.nextID++
	w.subs[id] = sub

	return sub.ch, func() { w.unsubscribe(id) }
}

func (w *eventWatcher) unsubscribe(id int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if sub, ok := w.subs[id]; ok {
		delete(w.subs, id)
		close(sub.ch)
	}
}

// notify never blocks: the receive loop must keep reading command replies
// while subscribers are busy.
func (w *eventWatcher) notify(evt *Event) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	for _, sub := range w.subs {
		if sub.sessionID != evt.SessionID {
			continue
		}
		if _, ok := sub.events[evt.Name]; !ok {
			continue
		}
		select {
		case sub.ch <- evt:
		default:
			w.logger.Warnf("cdp:event", "dropping %s event for session %q: subscriber is not keeping up", evt.Name, evt.SessionID)
		}
	}
}

// close closes every subscriber channel.
func (w *eventWatcher) close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.closed = true
	for id, sub := range w.subs {
		delete(w.subs, id)
		close(sub.ch)
	}
}
