package history

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type snap struct {
	N int `json:"n"`
}

func TestManager_Scenarios(t *testing.T) {
	cases := []struct {
		name string
		run  func(t *testing.T)
	}{
		{
			name: "undo after n sets returns the previous snapshot",
			run: func(t *testing.T) {
				m := New(snap{N: 0}, 10)
				for i := 1; i <= 5; i++ {
					m.Set(snap{N: i})
				}

				got, ok := m.Undo()
				require.True(t, ok)
				assert.Equal(t, snap{N: 4}, got)

				got, ok = m.Undo()
				require.True(t, ok)
				assert.Equal(t, snap{N: 3}, got)
			},
		},
		{
			name: "undo at the beginning is a no-op",
			run: func(t *testing.T) {
				m := New(snap{N: 7}, 10)
				got, ok := m.Undo()
				assert.False(t, ok)
				assert.Equal(t, snap{N: 7}, got)
				assert.False(t, m.CanUndo())
			},
		},
		{
			name: "redo at the end is a no-op",
			run: func(t *testing.T) {
				m := New(snap{N: 0}, 10)
				m.Set(snap{N: 1})
				_, ok := m.Redo()
				assert.False(t, ok)
				assert.False(t, m.CanRedo())
			},
		},
		{
			name: "undo then redo round-trips",
			run: func(t *testing.T) {
				m := New(snap{N: 0}, 10)
				m.Set(snap{N: 1})
				m.Set(snap{N: 2})

				got, ok := m.Undo()
				require.True(t, ok)
				require.Equal(t, snap{N: 1}, got)
				require.True(t, m.CanRedo())

				got, ok = m.Redo()
				require.True(t, ok)
				assert.Equal(t, snap{N: 2}, got)
			},
		},
		{
			name: "structurally equal snapshot is not pushed",
			run: func(t *testing.T) {
				m := New(snap{N: 0}, 10)
				m.Set(snap{N: 1})
				m.Set(snap{N: 1})
				m.Set(snap{N: 1})
				assert.Equal(t, 2, m.Len())
				assert.True(t, m.CanUndo())

				_, ok := m.Undo()
				require.True(t, ok)
				assert.False(t, m.CanUndo())
			},
		},
		{
			name: "set after undo truncates the redo tail",
			run: func(t *testing.T) {
				m := New(snap{N: 0}, 10)
				m.Set(snap{N: 1})
				m.Set(snap{N: 2})

				_, ok := m.Undo()
				require.True(t, ok)

				m.Set(snap{N: 9})
				assert.False(t, m.CanRedo())

				got, ok := m.Undo()
				require.True(t, ok)
				assert.Equal(t, snap{N: 1}, got)
			},
		},
		{
			name: "depth bound evicts the oldest entry",
			run: func(t *testing.T) {
				m := New(snap{N: 0}, 3)
				for i := 1; i <= 5; i++ {
					m.Set(snap{N: i})
				}
				assert.Equal(t, 3, m.Len())
				assert.Equal(t, snap{N: 5}, m.Current())

				// walk all the way back: the floor is the oldest retained entry
				for m.CanUndo() {
					m.Undo()
				}
				assert.Equal(t, snap{N: 3}, m.Current())
			},
		},
		{
			name: "reset drops the stack to a single base entry",
			run: func(t *testing.T) {
				m := New(snap{N: 0}, 10)
				m.Set(snap{N: 1})
				m.Set(snap{N: 2})

				m.Reset(snap{N: 100})
				assert.Equal(t, 1, m.Len())
				assert.False(t, m.CanUndo())
				assert.False(t, m.CanRedo())
				assert.Equal(t, snap{N: 100}, m.Current())
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, tc.run)
	}
}
