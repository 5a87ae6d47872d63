// Package localstore models the origin-wide key-value area that admin mode
// persists section overrides into, together with the change notifications
// that keep every open context in sync.
package localstore

import (
	"context"
	"sync"
	"time"

	"github.com/waliasolutions/mindful-mindset-coaching-sub001/internal/events"
	"github.com/waliasolutions/mindful-mindset-coaching-sub001/internal/logging"
	"github.com/waliasolutions/mindful-mindset-coaching-sub001/pkg/interfaces"
)

// Area is one persistent key-value area shared by every Store opened on it.
type Area struct {
	backend  Backend
	notifier Notifier
	logger   interfaces.Logger
	timeout  time.Duration

	// mu serializes persistence and queues deliveries in commit order. The
	// queue is drained without holding mu, so subscribers may write.
	mu       sync.Mutex
	nextID   uint64
	stores   map[uint64]*Store
	stop     func()
	queue    []delivery
	draining bool
}

type delivery struct {
	store  *Store
	change Change
}

// AreaOption configures an Area.
type AreaOption func(*Area)

// WithLogger sets the logger used for diagnostics.
func WithLogger(logger interfaces.Logger) AreaOption {
	return func(a *Area) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithNotifier relays changes to and from other processes.
func WithNotifier(notifier Notifier) AreaOption {
	return func(a *Area) {
		a.notifier = notifier
	}
}

// WithTimeout bounds every backend call. Zero disables the bound.
func WithTimeout(timeout time.Duration) AreaOption {
	return func(a *Area) {
		a.timeout = timeout
	}
}

// NewArea constructs an area over backend, defaulting to an unbounded memory
// backend when nil.
func NewArea(backend Backend, opts ...AreaOption) *Area {
	if backend == nil {
		backend = NewMemoryBackend(0)
	}
	a := &Area{
		backend: backend,
		logger:  logging.NoOp(),
		stores:  make(map[uint64]*Store),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	return a
}

// Start begins listening to the notifier, if any.
func (a *Area) Start(ctx context.Context) error {
	if a.notifier == nil {
		return nil
	}
	stop, err := a.notifier.Listen(ctx, a.deliverRemote)
	if err != nil {
		return err
	}
	a.mu.Lock()
	a.stop = stop
	a.mu.Unlock()
	return nil
}

// Close stops the notifier listener.
func (a *Area) Close() {
	a.mu.Lock()
	stop := a.stop
	a.stop = nil
	a.mu.Unlock()
	if stop != nil {
		stop()
	}
}

// Open returns a Store representing one browsing context on the area.
func (a *Area) Open(name string) *Store {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.nextID++
	s := &Store{area: a, id: a.nextID, name: name, bus: &events.Bus[Change]{}}
	a.stores[s.id] = s
	return s
}

func (a *Area) detach(id uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.stores, id)
}

func (a *Area) backendContext() (context.Context, context.CancelFunc) {
	if a.timeout <= 0 {
		return context.Background(), func() {}
	}
	return context.WithTimeout(context.Background(), a.timeout)
}

// commit persists through apply and queues the resulting change: native to
// every other store, then synthetic to the writer. Nothing is queued when apply
// fails. The queue is drained before commit returns unless another call is
// already draining it, in which case that call delivers the change after the
// ones queued before it.
func (a *Area) commit(writer *Store, apply func(ctx context.Context) (Change, error)) error {
	ctx, cancel := a.backendContext()
	defer cancel()

	a.mu.Lock()
	change, err := apply(ctx)
	if err != nil {
		a.mu.Unlock()
		return err
	}

	native := change
	native.Origin = OriginNative
	for id, s := range a.stores {
		if id != writer.id {
			a.queue = append(a.queue, delivery{store: s, change: native})
		}
	}

	if a.notifier != nil {
		if err := a.notifier.Notify(ctx, change); err != nil {
			a.logger.Warn("localstore.notify.failed", "key", change.Key, "error", err)
		}
	}

	synthetic := change
	synthetic.Origin = OriginSynthetic
	a.queue = append(a.queue, delivery{store: writer, change: synthetic})
	a.mu.Unlock()

	a.drain()
	return nil
}

func (a *Area) deliverRemote(change Change) {
	change.Origin = OriginNative
	a.mu.Lock()
	for _, s := range a.stores {
		a.queue = append(a.queue, delivery{store: s, change: change})
	}
	a.mu.Unlock()
	a.drain()
}

func (a *Area) drain() {
	a.mu.Lock()
	if a.draining {
		a.mu.Unlock()
		return
	}
	a.draining = true
	for len(a.queue) > 0 {
		next := a.queue[0]
		a.queue[0] = delivery{}
		a.queue = a.queue[1:]
		a.mu.Unlock()
		a.deliver(next)
		a.mu.Lock()
	}
	a.queue = nil
	a.draining = false
	a.mu.Unlock()
}

func (a *Area) deliver(d delivery) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("localstore.subscriber.panic", "key", d.change.Key, "store", d.store.name, "panic", r)
		}
	}()
	if d.store.closed.Load() {
		return
	}
	d.store.bus.Publish(d.change)
}
