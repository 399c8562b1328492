package cache

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/lib/pq"
)

// DeleteChannel is the NOTIFY channel fed by the documents delete trigger.
// Payloads have the form "collection:id".
const DeleteChannel = "document_deleted"

// Target is an existence cache that can drop entries
type Target interface {
	Invalidate(collection, id string)
	Purge()
}

// Invalidator evicts cached existence answers when documents are deleted,
// using PostgreSQL LISTEN/NOTIFY so that long-lived daemons never keep
// answering "exists" for a document another writer removed.
type Invalidator struct {
	mu       sync.Mutex
	target   Target
	connStr  string
	logger   *slog.Logger
	listener *pq.Listener
	stopCh   chan struct{}
	done     chan struct{}
	stopped  bool
}

// NewInvalidator creates an Invalidator. connStr is the PostgreSQL
// connection string used for the dedicated LISTEN connection.
func NewInvalidator(connStr string, target Target, logger *slog.Logger) *Invalidator {
	return &Invalidator{
		target:  target,
		connStr: connStr,
		logger:  logger,
		stopCh:  make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Start opens the listener and begins consuming notifications
func (i *Invalidator) Start(ctx context.Context) error {
	reportProblem := func(ev pq.ListenerEventType, err error) {
		if err != nil {
			i.logger.Warn("cache invalidation listener problem", "event", ev, "error", err)
		}
	}

	listener := pq.NewListener(i.connStr, 10*time.Second, time.Minute, reportProblem)
	if err := listener.Listen(DeleteChannel); err != nil {
		listener.Close()
		return fmt.Errorf("failed to listen on %s: %w", DeleteChannel, err)
	}

	i.mu.Lock()
	i.listener = listener
	i.mu.Unlock()

	go i.run(ctx, listener)
	return nil
}

// Stop closes the listener. Safe to call more than once, and without Start.
func (i *Invalidator) Stop() error {
	i.mu.Lock()
	if i.stopped {
		i.mu.Unlock()
		return nil
	}
	i.stopped = true
	close(i.stopCh)
	listener := i.listener
	i.mu.Unlock()

	if listener == nil {
		return nil
	}
	err := listener.Close()
	<-i.done
	return err
}

func (i *Invalidator) run(ctx context.Context, listener *pq.Listener) {
	defer close(i.done)

	ping := time.NewTicker(90 * time.Second)
	defer ping.Stop()

	for {
		select {
		case <-i.stopCh:
			return
		case <-ctx.Done():
			return
		case n, ok := <-listener.Notify:
			if !ok {
				return
			}
			i.HandleNotification(n)
		case <-ping.C:
			go func() {
				if err := listener.Ping(); err != nil {
					i.logger.Warn("cache invalidation listener ping failed", "error", err)
				}
			}()
		}
	}
}

// HandleNotification applies one notification to the cache. A nil
// notification means the connection was re-established and notifications
// may have been missed, so the whole cache is dropped.
func (i *Invalidator) HandleNotification(n *pq.Notification) {
	if n == nil {
		i.logger.Info("cache invalidation listener reconnected, purging existence cache")
		i.target.Purge()
		return
	}

	collection, id, ok := strings.Cut(n.Extra, ":")
	if !ok || collection == "" || id == "" {
		i.logger.Warn("ignoring malformed delete notification", "channel", n.Channel, "payload", n.Extra)
		return
	}
	i.target.Invalidate(collection, id)
}
