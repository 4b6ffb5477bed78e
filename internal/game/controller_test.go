package game

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/VillePajala/soccer-pre-game-app-sub002/internal/opqueue"
	"github.com/VillePajala/soccer-pre-game-app-sub002/internal/session"
)

// countingStore wraps the in-memory store and counts Save calls, so the
// debounce tests can assert how many writes actually happened.
type countingStore struct {
	*InMemoryGameStore
	mu    sync.Mutex
	saves int
}

func newCountingStore() *countingStore {
	return &countingStore{InMemoryGameStore: NewInMemoryGameStore()}
}

func (s *countingStore) Save(ctx context.Context, id string, snap AppSnapshot) (string, error) {
	s.mu.Lock()
	s.saves++
	s.mu.Unlock()
	return s.InMemoryGameStore.Save(ctx, id, snap)
}

func (s *countingStore) saveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

// gatedStore blocks the first Load until released, to exercise load
// cancellation while a load is in flight.
type gatedStore struct {
	*InMemoryGameStore
	gate chan struct{}
	once sync.Once
}

func (s *gatedStore) Load(ctx context.Context, id string) (AppSnapshot, bool, error) {
	blocked := false
	s.once.Do(func() { blocked = true })
	if blocked {
		<-s.gate
	}
	return s.InMemoryGameStore.Load(ctx, id)
}

func newTestController(t *testing.T, store GameStore) (*Controller, *opqueue.Queue) {
	t.Helper()
	q := opqueue.New(time.Second, nil)
	c := NewController("", Config{AutosaveDebounce: 20 * time.Millisecond}, store, nil, q, nil, nil, nil)
	t.Cleanup(func() {
		c.Close()
		q.Close()
	})
	return c, q
}

func withRoster(c *Controller, ids ...string) {
	c.Dispatch(session.SetSelectedPlayerIDs{IDs: ids})
}

func TestController_GoalLogging(t *testing.T) {
	cases := []struct {
		name string
		run  func(t *testing.T)
	}{
		{
			name: "goal records event at current elapsed time and bumps home score",
			run: func(t *testing.T) {
				c, _ := newTestController(t, NewInMemoryGameStore())
				withRoster(c, "p1", "p2")
				c.Dispatch(session.SetTimerElapsed{Seconds: 125})

				ev, err := c.LogGoal("p1", "p2")
				require.NoError(t, err)

				st := c.State()
				assert.Equal(t, 1, st.HomeScore)
				assert.Equal(t, 0, st.AwayScore)
				require.Len(t, st.GameEvents, 1)
				assert.Equal(t, ev.ID, st.GameEvents[0].ID)
				assert.Equal(t, session.EventGoal, st.GameEvents[0].Type)
				assert.Equal(t, 125, st.GameEvents[0].Time)
				assert.Equal(t, "p1", st.GameEvents[0].ScorerID)
				assert.Equal(t, "p2", st.GameEvents[0].AssisterID)
			},
		},
		{
			name: "own goal as the away team bumps the away score",
			run: func(t *testing.T) {
				c, _ := newTestController(t, NewInMemoryGameStore())
				withRoster(c, "p1")
				c.Dispatch(session.SetHomeOrAway{Value: "away"})

				_, err := c.LogGoal("p1", "")
				require.NoError(t, err)

				st := c.State()
				assert.Equal(t, 0, st.HomeScore)
				assert.Equal(t, 1, st.AwayScore)
			},
		},
		{
			name: "unknown scorer is rejected and leaves state untouched",
			run: func(t *testing.T) {
				c, _ := newTestController(t, NewInMemoryGameStore())
				withRoster(c, "p1")
				depth := c.hist.Len()

				_, err := c.LogGoal("ghost", "")
				require.ErrorIs(t, err, ErrUnknownPlayer)

				st := c.State()
				assert.Equal(t, 0, st.HomeScore)
				assert.Empty(t, st.GameEvents)
				assert.Equal(t, depth, c.hist.Len(), "rejected edit must not commit history")
			},
		},
		{
			name: "opponent goal bumps the opposing score",
			run: func(t *testing.T) {
				c, _ := newTestController(t, NewInMemoryGameStore())

				ev := c.LogOpponentGoal()

				st := c.State()
				assert.Equal(t, session.EventOpponentGoal, ev.Type)
				assert.Equal(t, 0, st.HomeScore)
				assert.Equal(t, 1, st.AwayScore)
			},
		},
		{
			name: "delete reverses the score effect exactly once",
			run: func(t *testing.T) {
				c, _ := newTestController(t, NewInMemoryGameStore())
				withRoster(c, "p1")
				ev, err := c.LogGoal("p1", "")
				require.NoError(t, err)

				assert.True(t, c.DeleteEvent(ev.ID))
				st := c.State()
				assert.Equal(t, 0, st.HomeScore)
				assert.Empty(t, st.GameEvents)

				// second delete of the same id is a no-op
				assert.False(t, c.DeleteEvent(ev.ID))
				assert.Equal(t, 0, c.State().HomeScore)
			},
		},
		{
			name: "editing an event's type re-pairs the score",
			run: func(t *testing.T) {
				c, _ := newTestController(t, NewInMemoryGameStore())
				withRoster(c, "p1")
				ev, err := c.LogGoal("p1", "")
				require.NoError(t, err)

				ev.Type = session.EventOpponentGoal
				ev.ScorerID = ""
				require.NoError(t, c.UpdateEvent(ev))

				st := c.State()
				assert.Equal(t, 0, st.HomeScore)
				assert.Equal(t, 1, st.AwayScore)
				require.Len(t, st.GameEvents, 1)
				assert.Equal(t, session.EventOpponentGoal, st.GameEvents[0].Type)
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, tc.run)
	}
}

func TestController_UndoRedo(t *testing.T) {
	cases := []struct {
		name string
		run  func(t *testing.T)
	}{
		{
			name: "undo rolls back a goal, redo restores it",
			run: func(t *testing.T) {
				c, _ := newTestController(t, NewInMemoryGameStore())
				withRoster(c, "p1")
				_, err := c.LogGoal("p1", "")
				require.NoError(t, err)

				require.True(t, c.Undo())
				st := c.State()
				assert.Equal(t, 0, st.HomeScore)
				assert.Empty(t, st.GameEvents)

				require.True(t, c.Redo())
				st = c.State()
				assert.Equal(t, 1, st.HomeScore)
				assert.Len(t, st.GameEvents, 1)
			},
		},
		{
			name: "undo keeps the live clock",
			run: func(t *testing.T) {
				c, _ := newTestController(t, NewInMemoryGameStore())
				withRoster(c, "p1")
				_, err := c.LogGoal("p1", "")
				require.NoError(t, err)
				c.Dispatch(session.SetTimerElapsed{Seconds: 300})

				require.True(t, c.Undo())
				st := c.State()
				assert.Equal(t, 0, st.HomeScore)
				assert.Equal(t, 300, st.TimeElapsedInSeconds, "undo rolls back edits, not time")
			},
		},
		{
			name: "clock ticks never enter history",
			run: func(t *testing.T) {
				c, _ := newTestController(t, NewInMemoryGameStore())
				c.Dispatch(session.SetTimerElapsed{Seconds: 10})
				c.Dispatch(session.SetTimerElapsed{Seconds: 11})
				c.Dispatch(session.SetTimerElapsed{Seconds: 12})

				assert.False(t, c.CanUndo())
			},
		},
		{
			name: "undo at the base is a no-op",
			run: func(t *testing.T) {
				c, _ := newTestController(t, NewInMemoryGameStore())
				assert.False(t, c.Undo())
				assert.False(t, c.Redo())
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, tc.run)
	}
}

func TestController_AutosaveDebounce(t *testing.T) {
	store := newCountingStore()
	c, _ := newTestController(t, store)
	withRoster(c, "p1", "p2", "p3")

	// a burst of edits inside the debounce window
	c.Dispatch(session.SetTeamName{Name: "FC Demo"})
	c.Dispatch(session.SetOpponentName{Name: "Rivals"})
	_, err := c.LogGoal("p1", "")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return store.saveCount() == 1
	}, time.Second, 5*time.Millisecond, "burst should collapse into one save")

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, 1, store.saveCount(), "no further save without further edits")

	// the next edit re-arms the window
	c.Dispatch(session.SetGameLocation{Location: "Home field"})
	require.Eventually(t, func() bool {
		return store.saveCount() == 2
	}, time.Second, 5*time.Millisecond)
}

func TestController_SaveAndLoadRoundTrip(t *testing.T) {
	store := NewInMemoryGameStore()

	c, _ := newTestController(t, store)
	withRoster(c, "p1")
	c.Dispatch(session.SetTeamName{Name: "FC Demo"})
	c.StartTimer()
	_, err := c.LogGoal("p1", "")
	require.NoError(t, err)
	id := c.GameID()

	require.NoError(t, waitErr(t, c.SaveNow()))

	// a fresh controller restores the saved session; the clock loads paused
	c2, _ := newTestController(t, store)
	require.NoError(t, waitErr(t, c2.LoadGame(id)))

	st := c2.State()
	assert.Equal(t, id, c2.GameID())
	assert.Equal(t, "FC Demo", st.TeamName)
	assert.Equal(t, 1, st.HomeScore)
	assert.Len(t, st.GameEvents, 1)
	assert.False(t, st.IsTimerRunning)
	assert.Zero(t, st.StartTimestampMillis)

	// history never leaks across matches
	assert.False(t, c2.CanUndo())
}

func TestController_LoadUnknownGame(t *testing.T) {
	c, _ := newTestController(t, NewInMemoryGameStore())
	err := waitErr(t, c.LoadGame("no-such-game"))
	require.ErrorIs(t, err, ErrGameNotFound)
}

func TestController_NewerLoadSupersedesOlder(t *testing.T) {
	inner := NewInMemoryGameStore()
	_, err := inner.Save(context.Background(), "slow", AppSnapshot{
		GameID:  "slow",
		Session: session.NewInitialState(),
	})
	require.NoError(t, err)

	fast := session.NewInitialState()
	fast.TeamName = "Winners"
	_, err = inner.Save(context.Background(), "fast", AppSnapshot{GameID: "fast", Session: fast})
	require.NoError(t, err)

	store := &gatedStore{InMemoryGameStore: inner, gate: make(chan struct{})}
	c, _ := newTestController(t, store)

	first := c.LoadGame("slow")
	second := c.LoadGame("fast")
	close(store.gate)

	assert.ErrorIs(t, waitErr(t, first), ErrLoadSuperseded)
	require.NoError(t, waitErr(t, second))

	assert.Equal(t, "fast", c.GameID())
	assert.Equal(t, "Winners", c.State().TeamName)
}

func TestController_NewGameResetsSession(t *testing.T) {
	store := newCountingStore()
	c, _ := newTestController(t, store)
	withRoster(c, "p1")
	_, err := c.LogGoal("p1", "")
	require.NoError(t, err)
	oldID := c.GameID()

	opp := "New Rivals"
	id := c.NewGame(session.GamePayload{OpponentName: &opp})

	assert.NotEqual(t, oldID, id)
	st := c.State()
	assert.Equal(t, "New Rivals", st.OpponentName)
	assert.Equal(t, 0, st.HomeScore)
	assert.Empty(t, st.GameEvents)
	assert.Equal(t, session.StatusNotStarted, st.GameStatus)
	assert.False(t, c.CanUndo(), "new game starts with empty history")

	// the initial snapshot is persisted
	require.Eventually(t, func() bool {
		_, found, _ := store.Load(context.Background(), id)
		return found
	}, time.Second, 5*time.Millisecond)
}

func TestService_CacheAndRestore(t *testing.T) {
	store := NewInMemoryGameStore()
	q := opqueue.New(time.Second, nil)
	defer q.Close()

	svc := NewService(Config{AutosaveDebounce: 20 * time.Millisecond}, store, nil, q, nil, nil)
	defer svc.Close()

	c, id := svc.Create(context.Background(), session.GamePayload{})
	got, found, err := svc.GetOrLoad(context.Background(), id)
	require.NoError(t, err)
	require.True(t, found)
	assert.Same(t, c, got, "cached controller is reused")

	_, found, err = svc.GetOrLoad(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestService_CacheFollowsControllerGame(t *testing.T) {
	store := NewInMemoryGameStore()
	other := session.NewInitialState()
	other.TeamName = "Other"
	_, err := store.Save(context.Background(), "g2", AppSnapshot{GameID: "g2", Session: other})
	require.NoError(t, err)

	q := opqueue.New(time.Second, nil)
	defer q.Close()
	svc := NewService(Config{AutosaveDebounce: 20 * time.Millisecond}, store, nil, q, nil, nil)
	defer svc.Close()

	c, id := svc.Create(context.Background(), session.GamePayload{})

	// switching the controller to another saved game moves its cache key
	require.NoError(t, waitErr(t, c.LoadGame("g2")))
	got, found, err := svc.GetOrLoad(context.Background(), "g2")
	require.NoError(t, err)
	require.True(t, found)
	assert.Same(t, c, got, "the loaded game must map to the live controller, not a second one")

	// the old key no longer maps to this controller
	require.Eventually(t, func() bool {
		_, found, _ := store.Load(context.Background(), id)
		return found
	}, time.Second, 5*time.Millisecond)
	old, found, err := svc.GetOrLoad(context.Background(), id)
	require.NoError(t, err)
	require.True(t, found)
	assert.NotSame(t, c, old)

	// new_game re-keys the same way
	newID := c.NewGame(session.GamePayload{})
	got, found, err = svc.GetOrLoad(context.Background(), newID)
	require.NoError(t, err)
	require.True(t, found)
	assert.Same(t, c, got)
}

func waitErr(t *testing.T, ch <-chan error) error {
	t.Helper()
	select {
	case err := <-ch:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("operation result never delivered")
		return nil
	}
}
