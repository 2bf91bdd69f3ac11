package service

import (
	"context"
	"sync"

	"github.com/geotdo/leicactl/internal/model"
)

// Event is a notification as seen by a ChanListener consumer.
type Event struct {
	model.Notification
	Cancelled bool
}

// ChanListener forwards notifications to a channel so they can be consumed
// by a goroutine other than the supervisor one. Sends block until the event
// is received or ctx is done, which keeps the order of notifications.
type ChanListener struct {
	mx     sync.Mutex
	ch     chan Event
	closed bool
}

func NewChanListener(size int) *ChanListener {
	return &ChanListener{ch: make(chan Event, size)}
}

func (l *ChanListener) C() <-chan Event {
	return l.ch
}

func (l *ChanListener) Progress(ctx context.Context, n model.Notification) {
	l.send(ctx, Event{Notification: n})
}

func (l *ChanListener) Cancelled(ctx context.Context, n model.Notification) {
	l.send(ctx, Event{Notification: n, Cancelled: true})
}

// Close closes the channel. Events sent afterwards are dropped.
func (l *ChanListener) Close() {
	l.mx.Lock()
	defer l.mx.Unlock()
	if l.closed {
		return
	}
	l.closed = true
	close(l.ch)
}

func (l *ChanListener) send(ctx context.Context, e Event) {
	l.mx.Lock()
	defer l.mx.Unlock()
	if l.closed {
		return
	}
	select {
	case l.ch <- e:
	case <-ctx.Done():
	}
}
