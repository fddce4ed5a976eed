package arena

import (
	"context"
	"sync"
	"time"

	"golang.org/x/exp/maps"
)

// Pending is a single-resolution completion handle for one outstanding
// request/echo correlation. It resolves at most once, with either the
// confirmed value or a failure.
type Pending struct {
	registry *PendingRegistry

	path       string
	timeout    time.Duration
	registered time.Time

	once  sync.Once
	done  chan struct{}
	value any
	err   error
}

func (self *Pending) Path() string {
	return self.path
}

func (self *Pending) complete(value any, err error) {
	self.once.Do(func() {
		self.value = value
		self.err = err
		close(self.done)
	})
}

// Await suspends the caller until the echo resolves the handle, the timeout
// elapses, or ctx is canceled. Timeout and cancellation remove the registry
// entry; they do not cancel the in-flight command, so a late echo simply
// resolves nothing.
func (self *Pending) Await(ctx context.Context) (any, error) {
	timer := time.NewTimer(self.timeout - time.Since(self.registered))
	defer timer.Stop()

	select {
	case <-self.done:
		return self.value, self.err
	case <-timer.C:
		self.registry.remove(self.path, self)
		self.complete(nil, ErrTimeout)
		<-self.done
		return nil, ErrTimeout
	case <-ctx.Done():
		self.registry.remove(self.path, self)
		self.complete(nil, ctx.Err())
		<-self.done
		return nil, ctx.Err()
	}
}

// PendingRegistry correlates unordered inbound echoes back to the callers
// awaiting them, keyed by normalized target path. At most one outstanding
// entry per path: a second registration fails fast with ErrAlreadyPending
// rather than silently dropping the first caller.
type PendingRegistry struct {
	stateLock sync.Mutex
	entries   map[string]*Pending
}

func NewPendingRegistry() *PendingRegistry {
	return &PendingRegistry{
		entries: map[string]*Pending{},
	}
}

func (self *PendingRegistry) Register(path string, timeout time.Duration) (*Pending, error) {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()

	path = NormalizePath(path)
	if _, ok := self.entries[path]; ok {
		return nil, ErrAlreadyPending
	}
	pending := &Pending{
		registry:   self,
		path:       path,
		timeout:    timeout,
		registered: time.Now(),
		done:       make(chan struct{}),
	}
	self.entries[path] = pending
	return pending, nil
}

// Resolve completes and removes the entry for path. No-op if nothing is
// registered there.
func (self *PendingRegistry) Resolve(path string, value any) {
	self.stateLock.Lock()
	pending, ok := self.entries[NormalizePath(path)]
	if ok {
		delete(self.entries, pending.path)
	}
	self.stateLock.Unlock()

	if ok {
		pending.complete(value, nil)
	}
}

// ResolveAll completes every outstanding entry using lookup for the value
// now at each path. A full snapshot is the confirmation of current state,
// so entries whose path vanished resolve with nil rather than waiting out
// their timeout.
func (self *PendingRegistry) ResolveAll(lookup func(path string) any) {
	self.stateLock.Lock()
	drained := maps.Values(self.entries)
	maps.Clear(self.entries)
	self.stateLock.Unlock()

	for _, pending := range drained {
		var value any
		if lookup != nil {
			value = lookup(pending.path)
		}
		pending.complete(value, nil)
	}
}

// FailAll completes every outstanding entry with err. Used on connection
// loss so callers get an error instead of a hang.
func (self *PendingRegistry) FailAll(err error) {
	self.stateLock.Lock()
	drained := maps.Values(self.entries)
	maps.Clear(self.entries)
	self.stateLock.Unlock()

	for _, pending := range drained {
		pending.complete(nil, err)
	}
}

func (self *PendingRegistry) Size() int {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()

	return len(self.entries)
}

// remove drops the entry only if it is still this handle; a newer
// registration on the same path must not be evicted by a stale timeout.
func (self *PendingRegistry) remove(path string, pending *Pending) {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()

	if self.entries[path] == pending {
		delete(self.entries, path)
	}
}
