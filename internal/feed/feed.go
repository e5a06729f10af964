// Package feed publishes committed store changes over Redis Pub/Sub.
//
// Every change is sent as JSON on "<prefix>:<collection>". Delivery is
// at-most-once; consumers that need a consistent view re-read the store on
// each event instead of trusting the payload.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/oggyb/arena-signals/internal/store"
)

type Event struct {
	Collection string          `json:"collection"`
	ID         string          `json:"id"`
	Op         store.Op        `json:"op"`
	Doc        json.RawMessage `json:"doc,omitempty"`
}

// Decode unmarshals the document payload into v.
func (e Event) Decode(v any) error {
	if len(e.Doc) == 0 {
		return fmt.Errorf("feed: event %s/%s has no document", e.Collection, e.ID)
	}
	return json.Unmarshal(e.Doc, v)
}

type Feed struct {
	client *redis.Client
	prefix string
	log    *slog.Logger
}

func New(client *redis.Client, prefix string, log *slog.Logger) *Feed {
	if prefix == "" {
		prefix = "feed"
	}
	if log == nil {
		log = slog.Default()
	}
	return &Feed{client: client, prefix: prefix, log: log}
}

func (f *Feed) Channel(collection string) string {
	return f.prefix + ":" + collection
}

// Publish implements store.Publisher. Failures are logged and dropped.
func (f *Feed) Publish(ctx context.Context, changes []store.Change) {
	ctx = context.WithoutCancel(ctx)
	for _, ch := range changes {
		doc, err := json.Marshal(ch.Doc)
		if err != nil {
			f.log.Warn("feed: marshal document", "collection", ch.Collection, "id", ch.ID, "err", err)
			continue
		}
		payload, err := json.Marshal(Event{Collection: ch.Collection, ID: ch.ID, Op: ch.Op, Doc: doc})
		if err != nil {
			f.log.Warn("feed: marshal event", "collection", ch.Collection, "id", ch.ID, "err", err)
			continue
		}
		if err := f.client.Publish(ctx, f.Channel(ch.Collection), payload).Err(); err != nil {
			f.log.Warn("feed: publish failed", "collection", ch.Collection, "id", ch.ID, "err", err)
		}
	}
}

type Subscription struct {
	ps     *redis.PubSub
	events chan Event
	done   chan struct{}
	once   sync.Once
}

// Subscribe listens to the given collections. It returns once Redis has
// confirmed the subscription, so no change committed afterwards is missed.
func (f *Feed) Subscribe(ctx context.Context, collections ...string) (*Subscription, error) {
	if len(collections) == 0 {
		return nil, fmt.Errorf("feed: no collections to subscribe to")
	}
	channels := make([]string, len(collections))
	for i, c := range collections {
		channels[i] = f.Channel(c)
	}

	ps := f.client.Subscribe(ctx, channels...)
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return nil, fmt.Errorf("feed: subscribe %s: %w", strings.Join(channels, ","), err)
	}

	s := &Subscription{
		ps:     ps,
		events: make(chan Event, 64),
		done:   make(chan struct{}),
	}
	go s.pump(f.log)
	return s, nil
}

func (s *Subscription) pump(log *slog.Logger) {
	defer close(s.events)
	for msg := range s.ps.Channel() {
		var ev Event
		if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
			log.Warn("feed: dropping malformed event", "channel", msg.Channel, "err", err)
			continue
		}
		select {
		case s.events <- ev:
		case <-s.done:
			return
		}
	}
}

// Events is closed after Close.
func (s *Subscription) Events() <-chan Event { return s.events }

func (s *Subscription) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		err = s.ps.Close()
	})
	return err
}
