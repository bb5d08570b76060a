// Package realtime carries row changes from Postgres to the in-memory stores
// and pushes store changes out to connected terminals.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/lib/pq"

	"github.com/vaidashi/restaurant-pos/pkg/logger"
)

// Change is the payload the NOTIFY triggers publish
type Change struct {
	Table   string `json:"table"`
	Op      string `json:"op"`
	ID      string `json:"id"`
	Version int64  `json:"version"`
}

// Handler reacts to a change of one table
type Handler func(ctx context.Context, change Change)

// Feed is a LISTEN/NOTIFY subscription fanned out by table
type Feed struct {
	listener *pq.Listener
	notify   <-chan *pq.Notification
	logger   logger.Logger

	mu          sync.RWMutex
	handlers    map[string]map[int]Handler
	reconnected []func(ctx context.Context)
	nextID      int
}

// NewFeed opens a dedicated listener connection and LISTENs on channel
func NewFeed(connString, channel string, logger logger.Logger) (*Feed, error) {
	onEvent := func(ev pq.ListenerEventType, err error) {
		switch ev {
		case pq.ListenerEventConnectionAttemptFailed:
			logger.Warn("Change feed connection attempt failed", "error", err)
		case pq.ListenerEventDisconnected:
			logger.Warn("Change feed disconnected", "error", err)
		case pq.ListenerEventReconnected:
			logger.Info("Change feed reconnected")
		}
	}

	listener := pq.NewListener(connString, 2*time.Second, time.Minute, onEvent)
	if err := listener.Listen(channel); err != nil {
		listener.Close()
		return nil, fmt.Errorf("failed to listen on %s: %w", channel, err)
	}

	f := newFeed(listener.Notify, logger)
	f.listener = listener

	logger.Info("Change feed listening", "channel", channel)
	return f, nil
}

func newFeed(notify <-chan *pq.Notification, logger logger.Logger) *Feed {
	return &Feed{
		notify:   notify,
		logger:   logger,
		handlers: make(map[string]map[int]Handler),
	}
}

// Subscribe registers handler for a table and returns a function that removes it
func (f *Feed) Subscribe(table string, handler Handler) func() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.handlers[table] == nil {
		f.handlers[table] = make(map[int]Handler)
	}
	id := f.nextID
	f.nextID++
	f.handlers[table][id] = handler

	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.handlers[table], id)
	}
}

// OnReconnect registers fn to run after the connection was re-established.
// Notifications sent while disconnected are lost, so subscribers reload.
func (f *Feed) OnReconnect(fn func(ctx context.Context)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reconnected = append(f.reconnected, fn)
}

// Run dispatches notifications until ctx is cancelled
func (f *Feed) Run(ctx context.Context) error {
	ping := time.NewTicker(90 * time.Second)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case n, ok := <-f.notify:
			if !ok {
				return nil
			}
			if n == nil {
				f.resync(ctx)
				continue
			}
			f.handle(ctx, n.Extra)

		case <-ping.C:
			if f.listener == nil {
				continue
			}
			go func() {
				if err := f.listener.Ping(); err != nil {
					f.logger.Warn("Change feed ping failed", "error", err)
				}
			}()
		}
	}
}

func (f *Feed) handle(ctx context.Context, payload string) {
	var change Change
	if err := json.Unmarshal([]byte(payload), &change); err != nil {
		f.logger.Warn("Ignoring malformed change notification", "error", err, "payload", payload)
		return
	}

	f.mu.RLock()
	handlers := make([]Handler, 0, len(f.handlers[change.Table]))
	for _, h := range f.handlers[change.Table] {
		handlers = append(handlers, h)
	}
	f.mu.RUnlock()

	for _, h := range handlers {
		h(ctx, change)
	}
}

func (f *Feed) resync(ctx context.Context) {
	f.mu.RLock()
	fns := append([]func(context.Context){}, f.reconnected...)
	f.mu.RUnlock()

	for _, fn := range fns {
		fn(ctx)
	}
}

// Close drops every subscription and releases the listener connection
func (f *Feed) Close() error {
	f.mu.Lock()
	f.handlers = make(map[string]map[int]Handler)
	f.reconnected = nil
	f.mu.Unlock()

	if f.listener == nil {
		return nil
	}
	if err := f.listener.UnlistenAll(); err != nil {
		f.logger.Warn("Failed to unlisten change feed", "error", err)
	}
	return f.listener.Close()
}
