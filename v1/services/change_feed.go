package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/concierge-tc/portal-backend/v1/models"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// DefaultChangeChannel is the LISTEN/NOTIFY channel used for change events
const DefaultChangeChannel = "portal_changes"

// ChangeHub fans events out to in-process subscribers.
// Slow subscribers drop events rather than block publishers.
type ChangeHub struct {
	mu     sync.Mutex
	subs   map[chan models.ChangeEvent]struct{}
	buffer int
}

// NewChangeHub creates a hub with a per-subscriber buffer
func NewChangeHub(buffer int) *ChangeHub {
	if buffer <= 0 {
		buffer = 16
	}
	return &ChangeHub{subs: make(map[chan models.ChangeEvent]struct{}), buffer: buffer}
}

// Subscribe registers a subscriber until ctx is done
func (h *ChangeHub) Subscribe(ctx context.Context) (<-chan models.ChangeEvent, error) {
	ch := make(chan models.ChangeEvent, h.buffer)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	go func() {
		<-ctx.Done()
		h.mu.Lock()
		delete(h.subs, ch)
		close(ch)
		h.mu.Unlock()
	}()
	return ch, nil
}

// Broadcast delivers event to every current subscriber
func (h *ChangeHub) Broadcast(event models.ChangeEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- event:
		default:
			slog.Warn("Dropping change event for slow subscriber", "table", event.Table, "id", event.ID)
		}
	}
}

// SubscriberCount returns the number of live subscribers
func (h *ChangeHub) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// LocalChangeFeed delivers events within this process only
type LocalChangeFeed struct {
	hub *ChangeHub
}

// NewLocalChangeFeed creates an in-process feed
func NewLocalChangeFeed() *LocalChangeFeed {
	return &LocalChangeFeed{hub: NewChangeHub(0)}
}

// Publish implements ChangeFeed
func (f *LocalChangeFeed) Publish(_ context.Context, event models.ChangeEvent) error {
	f.hub.Broadcast(event)
	return nil
}

// Subscribe implements ChangeFeed
func (f *LocalChangeFeed) Subscribe(ctx context.Context) (<-chan models.ChangeEvent, error) {
	return f.hub.Subscribe(ctx)
}

// PostgresChangeFeed publishes with pg_notify and follows the channel with a pq.Listener,
// so every server instance sees every committed write.
type PostgresChangeFeed struct {
	db      *gorm.DB
	dsn     string
	channel string
	hub     *ChangeHub
}

// NewPostgresChangeFeed creates a feed. Run must be started for subscribers to receive events.
func NewPostgresChangeFeed(db *gorm.DB, dsn, channel string) *PostgresChangeFeed {
	if channel == "" {
		channel = DefaultChangeChannel
	}
	return &PostgresChangeFeed{db: db, dsn: dsn, channel: channel, hub: NewChangeHub(0)}
}

// Publish sends event through NOTIFY
func (f *PostgresChangeFeed) Publish(ctx context.Context, event models.ChangeEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal change event: %w", err)
	}
	if err := f.db.WithContext(ctx).Exec("SELECT pg_notify(?, ?)", f.channel, string(payload)).Error; err != nil {
		return fmt.Errorf("failed to notify %s: %w", f.channel, err)
	}
	return nil
}

// Subscribe implements ChangeFeed
func (f *PostgresChangeFeed) Subscribe(ctx context.Context) (<-chan models.ChangeEvent, error) {
	return f.hub.Subscribe(ctx)
}

// Run listens on the channel until ctx is done
func (f *PostgresChangeFeed) Run(ctx context.Context) error {
	listener := pq.NewListener(f.dsn, 10*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			slog.Warn("Change feed listener event", "event", ev, "error", err)
		}
	})
	defer listener.Close()

	if err := listener.Listen(f.channel); err != nil {
		return fmt.Errorf("failed to LISTEN on %s: %w", f.channel, err)
	}
	slog.Info("Change feed listening", "channel", f.channel)

	ping := time.NewTicker(90 * time.Second)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("Change feed stopped")
			return nil
		case n := <-listener.Notify:
			// nil after a reconnect; events sent while disconnected are lost
			if n == nil {
				continue
			}
			event, err := decodeChangeEvent(n.Extra)
			if err != nil {
				slog.Warn("Ignoring malformed change event", "error", err)
				continue
			}
			f.hub.Broadcast(event)
		case <-ping.C:
			if err := listener.Ping(); err != nil {
				slog.Warn("Change feed ping failed", "error", err)
			}
		}
	}
}

func decodeChangeEvent(payload string) (models.ChangeEvent, error) {
	var event models.ChangeEvent
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		return event, err
	}
	if event.Table == "" || event.ID == "" {
		return event, fmt.Errorf("change event missing table or id")
	}
	return event, nil
}

// NewChangeEvent stamps an event with the current time
func NewChangeEvent(table string, typ models.ChangeEventType, id string) models.ChangeEvent {
	return models.ChangeEvent{
		Table: table,
		Type:  typ,
		ID:    id,
		At:    time.Now().UTC().Format(time.RFC3339),
	}
}

// publishChanges is best effort: the write already committed, so failures are only logged
func publishChanges(ctx context.Context, feed ChangeFeed, table string, typ models.ChangeEventType, ids ...string) {
	if feed == nil {
		return
	}
	for _, id := range ids {
		if err := feed.Publish(ctx, NewChangeEvent(table, typ, id)); err != nil {
			slog.Warn("Failed to publish change event", "table", table, "id", id, "error", err)
		}
	}
}
