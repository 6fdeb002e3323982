package session

import (
	"sync"

	"studio/internal/domain"
)

// OpKind names a per-scene side operation.
type OpKind string

const (
	OpRegenerate  OpKind = "regenerate"
	OpRenderVideo OpKind = "render_video"
)

// Tracker maintains independent in-flight flags per scene index so that one
// scene's latency or failure never blocks another. Begin rejects a second
// operation for an index that already has one in flight; operations of
// different kinds are mutually exclusive too, so a video is never seeded from
// a still that is mid-replacement.
type Tracker struct {
	mu           sync.Mutex
	regenerating map[int]bool
	rendering    map[int]bool
}

func NewTracker() *Tracker {
	return &Tracker{
		regenerating: make(map[int]bool),
		rendering:    make(map[int]bool),
	}
}

// Begin marks the operation in flight and returns a release handle. The handle
// is idempotent and must run on every exit path, success or failure.
func (t *Tracker) Begin(kind OpKind, index int) (func(), error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.regenerating[index] || t.rendering[index] {
		return nil, domain.ErrOperationInFlight
	}
	flags := t.flagsFor(kind)
	flags[index] = true

	var once sync.Once
	release := func() {
		once.Do(func() {
			t.mu.Lock()
			defer t.mu.Unlock()
			delete(flags, index)
		})
	}
	return release, nil
}

// InFlight reports whether an operation of the given kind is running for index.
func (t *Tracker) InFlight(kind OpKind, index int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.flagsFor(kind)[index]
}

// AnyInFlight reports whether any per-scene operation is currently running.
func (t *Tracker) AnyInFlight() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.regenerating) > 0 || len(t.rendering) > 0
}

func (t *Tracker) flagsFor(kind OpKind) map[int]bool {
	if kind == OpRenderVideo {
		return t.rendering
	}
	return t.regenerating
}
