package opqueue

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrLoadingTimeout is recorded against a resource whose operation never
// reported completion.
var ErrLoadingTimeout = errors.New("loading timed out")

const DefaultLoadingTimeout = 15 * time.Second

// ResourceState is the per-key view the UI shell renders a spinner from.
type ResourceState struct {
	Loading bool   `json:"loading"`
	Error   string `json:"error,omitempty"`
}

// LoadingRegistry tracks a {loading, error} flag per logical resource key.
// Two different resources can be loading concurrently without clobbering
// each other. An auto-timeout forces loading back to false if the underlying
// operation never completes, so storage being unreachable can not leave the
// UI spinning forever.
type LoadingRegistry struct {
	log     *slog.Logger
	timeout time.Duration

	mu      sync.Mutex
	entries map[string]*loadingEntry
}

type loadingEntry struct {
	loading bool
	err     error
	timer   *time.Timer
}

func NewLoadingRegistry(timeout time.Duration, log *slog.Logger) *LoadingRegistry {
	if timeout <= 0 {
		timeout = DefaultLoadingTimeout
	}
	if log == nil {
		log = slog.Default()
	}
	return &LoadingRegistry{
		log:     log,
		timeout: timeout,
		entries: make(map[string]*loadingEntry),
	}
}

// Begin marks key as loading and arms the backstop timer. Calling Begin again
// for the same key re-arms the timer.
func (r *LoadingRegistry) Begin(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[key]
	if !ok {
		e = &loadingEntry{}
		r.entries[key] = e
	}
	if e.timer != nil {
		e.timer.Stop()
	}
	e.loading = true
	e.err = nil
	e.timer = time.AfterFunc(r.timeout, func() { r.expire(key) })
}

func (r *LoadingRegistry) expire(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[key]
	if !ok || !e.loading {
		return
	}
	e.loading = false
	e.err = ErrLoadingTimeout
	r.log.Warn("resource load never completed", "key", key, "timeout", r.timeout)
}

// Finish clears the loading flag and records err (nil on success).
func (r *LoadingRegistry) Finish(key string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[key]
	if !ok {
		e = &loadingEntry{}
		r.entries[key] = e
	}
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	e.loading = false
	e.err = err
}

func (r *LoadingRegistry) IsLoading(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[key]
	return ok && e.loading
}

func (r *LoadingRegistry) Err(key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[key]; ok {
		return e.err
	}
	return nil
}

// States returns a copy of every tracked resource state.
func (r *LoadingRegistry) States() map[string]ResourceState {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]ResourceState, len(r.entries))
	for k, e := range r.entries {
		st := ResourceState{Loading: e.loading}
		if e.err != nil {
			st.Error = e.err.Error()
		}
		out[k] = st
	}
	return out
}

// Close stops every pending backstop timer.
func (r *LoadingRegistry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries {
		if e.timer != nil {
			e.timer.Stop()
			e.timer = nil
		}
	}
}
