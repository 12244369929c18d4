package store

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/nats-io/nats.go"
)

// ChangeFeed tells subscribers that a collection changed. It carries no payload;
// watchers re-read the collection.
type ChangeFeed interface {
	Publish(ctx context.Context, teamID, collection string) error
	Watch(teamID, collection string, fn func()) (func(), error)
}

// LocalFeed is an in-process ChangeFeed.
type LocalFeed struct {
	mu       sync.RWMutex
	nextID   int
	watchers map[string]map[int]func()
}

// NewLocalFeed creates an in-process change feed.
func NewLocalFeed() *LocalFeed {
	return &LocalFeed{watchers: make(map[string]map[int]func())}
}

// Publish invokes every watcher of the collection. Watchers must not block.
func (f *LocalFeed) Publish(_ context.Context, teamID, collection string) error {
	f.mu.RLock()
	defer f.mu.RUnlock()
	for _, fn := range f.watchers[feedKey(teamID, collection)] {
		fn()
	}
	return nil
}

// Watch registers fn for changes of the collection.
func (f *LocalFeed) Watch(teamID, collection string, fn func()) (func(), error) {
	key := feedKey(teamID, collection)

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.watchers[key] == nil {
		f.watchers[key] = make(map[int]func())
	}
	id := f.nextID
	f.nextID++
	f.watchers[key][id] = fn

	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		if ws, ok := f.watchers[key]; ok {
			delete(ws, id)
			if len(ws) == 0 {
				delete(f.watchers, key)
			}
		}
	}, nil
}

func feedKey(teamID, collection string) string {
	return teamID + "|" + collection
}

// NATSFeed fans change notifications out across API instances through NATS core
// subjects of the form <prefix>.<team>.<collection path tokens>.
type NATSFeed struct {
	nc     *nats.Conn
	prefix string
	logger *slog.Logger
}

// NewNATSFeed wraps an established NATS connection.
func NewNATSFeed(nc *nats.Conn, prefix string, logger *slog.Logger) *NATSFeed {
	return &NATSFeed{nc: nc, prefix: prefix, logger: logger}
}

// Subject returns the NATS subject of a collection.
func (f *NATSFeed) Subject(teamID, collection string) string {
	team := teamID
	if team == "" {
		team = "_root"
	}
	return strings.Join([]string{f.prefix, subjectToken(team), strings.ReplaceAll(collection, "/", ".")}, ".")
}

// Publish announces a change of the collection.
func (f *NATSFeed) Publish(_ context.Context, teamID, collection string) error {
	subject := f.Subject(teamID, collection)
	if err := f.nc.Publish(subject, nil); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	return nil
}

// Watch subscribes fn to changes of the collection.
func (f *NATSFeed) Watch(teamID, collection string, fn func()) (func(), error) {
	subject := f.Subject(teamID, collection)
	sub, err := f.nc.Subscribe(subject, func(_ *nats.Msg) { fn() })
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", subject, err)
	}
	return func() {
		if err := sub.Unsubscribe(); err != nil {
			f.logger.Warn("nats unsubscribe failed", "subject", subject, "error", err)
		}
	}, nil
}

func subjectToken(s string) string {
	return strings.NewReplacer(".", "_", " ", "_", "*", "_", ">", "_").Replace(s)
}

// watch runs a feed-driven subscription: load is pushed once up front and again after
// every change notification. Notifications that arrive while a load is running
// coalesce into one reload, so snapshots stay in commit order.
func watch(ctx context.Context, feed ChangeFeed, q Query, load func(context.Context) ([]Document, error), onData DataFunc, onError ErrorFunc) Unsubscribe {
	ctx, cancel := context.WithCancel(ctx)
	signal := make(chan struct{}, 1)

	stopFeed, err := feed.Watch(q.TeamID, q.Collection, func() {
		select {
		case signal <- struct{}{}:
		default:
		}
	})
	if err != nil {
		cancel()
		go onError(err)
		return func() {}
	}

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			stopFeed()
			cancel()
		})
	}

	go func() {
		push := func() {
			docs, err := load(ctx)
			if err != nil {
				if ctx.Err() == nil {
					onError(err)
				}
				return
			}
			if ctx.Err() == nil {
				onData(docs)
			}
		}

		push()
		for {
			select {
			case <-ctx.Done():
				return
			case <-signal:
				push()
			}
		}
	}()

	return unsubscribe
}
