// Package history keeps a bounded undo/redo stack of serializable snapshots.
package history

import (
	"bytes"
	"encoding/json"
	"sync"
)

const DefaultLimit = 50

// Manager holds full application snapshots with a current index. Entries are
// immutable once pushed; equality is structural, so pushing a snapshot whose
// JSON serialization matches the current entry is a no-op.
//
// The zero value is not usable, call New.
type Manager[T any] struct {
	mu      sync.Mutex
	limit   int
	entries []entry[T]
	idx     int
}

type entry[T any] struct {
	value T
	raw   []byte
}

// New returns a manager seeded with base as the only entry. limit bounds the
// stack depth; values below 2 fall back to DefaultLimit.
func New[T any](base T, limit int) *Manager[T] {
	if limit < 2 {
		limit = DefaultLimit
	}
	return &Manager[T]{
		limit:   limit,
		entries: []entry[T]{encode(base)},
	}
}

func encode[T any](v T) entry[T] {
	raw, err := json.Marshal(v)
	if err != nil {
		// snapshots are plain data structs; treat a marshal failure as
		// an always-distinct entry rather than failing the push
		raw = nil
	}
	return entry[T]{value: v, raw: raw}
}

// Set commits a new snapshot. A snapshot structurally equal to the current
// entry is dropped. Otherwise any redo tail past the index is truncated, the
// snapshot is appended and, past the depth bound, the oldest entry evicted.
func (m *Manager[T]) Set(next T) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e := encode(next)
	cur := m.entries[m.idx]
	if e.raw != nil && cur.raw != nil && bytes.Equal(e.raw, cur.raw) {
		return
	}

	m.entries = append(m.entries[:m.idx+1], e)
	m.idx++

	if len(m.entries) > m.limit {
		over := len(m.entries) - m.limit
		m.entries = append([]entry[T](nil), m.entries[over:]...)
		m.idx -= over
	}
}

// Undo moves the index back one entry. At the beginning it reports false and
// returns the current entry unchanged; callers treat that as non-fatal.
func (m *Manager[T]) Undo() (T, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.idx == 0 {
		return m.entries[m.idx].value, false
	}
	m.idx--
	return m.entries[m.idx].value, true
}

// Redo moves the index forward one entry, or reports false at the end.
func (m *Manager[T]) Redo() (T, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.idx >= len(m.entries)-1 {
		return m.entries[m.idx].value, false
	}
	m.idx++
	return m.entries[m.idx].value, true
}

// Current returns the snapshot at the index.
func (m *Manager[T]) Current() T {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.entries[m.idx].value
}

func (m *Manager[T]) CanUndo() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.idx > 0
}

func (m *Manager[T]) CanRedo() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.idx < len(m.entries)-1
}

// Len reports the number of retained entries.
func (m *Manager[T]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Reset drops the whole stack and starts over from base. Used whenever a
// different match is loaded or created: undo history must never leak across
// matches.
func (m *Manager[T]) Reset(base T) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = []entry[T]{encode(base)}
	m.idx = 0
}
