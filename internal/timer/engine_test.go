package timer

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/VillePajala/soccer-pre-game-app-sub002/internal/session"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// harness feeds engine dispatches straight through the reducer, standing in
// for the session controller.
type harness struct {
	mu    sync.Mutex
	state session.GameSessionState
}

func (h *harness) Dispatch(a session.Action) {
	h.mu.Lock()
	h.state = session.Reduce(h.state, a)
	h.mu.Unlock()
}

func (h *harness) get() session.GameSessionState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

type memCheckpoints struct {
	mu      sync.Mutex
	byGame  map[string]Checkpoint
	failing bool
	saves   int
}

func newMemCheckpoints() *memCheckpoints {
	return &memCheckpoints{byGame: make(map[string]Checkpoint)}
}

func (m *memCheckpoints) SaveCheckpoint(ctx context.Context, cp Checkpoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	if m.failing {
		return errors.New("checkpoint store down")
	}
	m.byGame[cp.GameID] = cp
	return nil
}

func (m *memCheckpoints) LoadCheckpoint(ctx context.Context, gameID string) (Checkpoint, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp, ok := m.byGame[gameID]
	return cp, ok, nil
}

func (m *memCheckpoints) DeleteCheckpoint(ctx context.Context, gameID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.byGame, gameID)
	return nil
}

// newTestEngine builds an engine without the background tick loop; tests
// drive tick() by hand for determinism.
func newTestEngine(clock Clock, h *harness, cps CheckpointStore) *Engine {
	return &Engine{
		log:         slog.Default(),
		clock:       clock,
		dispatch:    h,
		state:       h.get,
		gameID:      func() string { return "g1" },
		checkpoints: cps,
	}
}

func start() (*fakeClock, *harness) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	h := &harness{state: session.NewInitialState()}
	return clock, h
}

func TestEngine_RecomputesFromAnchorAcrossSkippedTicks(t *testing.T) {
	clock, h := start()
	e := newTestEngine(clock, h, nil)

	e.Start()
	require.True(t, h.get().IsTimerRunning)
	require.Equal(t, session.StatusInProgress, h.get().GameStatus)

	clock.advance(time.Second)
	e.tick()
	assert.Equal(t, 1, h.get().TimeElapsedInSeconds)

	// host suspended: no ticks for 37 seconds, then a single late tick
	clock.advance(37 * time.Second)
	e.tick()
	assert.Equal(t, 38, h.get().TimeElapsedInSeconds)
}

func TestEngine_PauseFoldsAnchorAndStops(t *testing.T) {
	clock, h := start()
	e := newTestEngine(clock, h, nil)

	e.Start()
	clock.advance(10 * time.Second)
	e.Pause()

	st := h.get()
	assert.Equal(t, 10, st.TimeElapsedInSeconds)
	assert.False(t, st.IsTimerRunning)
	assert.Zero(t, st.StartTimestampMillis)

	// ticks while paused change nothing
	clock.advance(time.Minute)
	e.tick()
	assert.Equal(t, 10, h.get().TimeElapsedInSeconds)

	// restart continues from the folded value
	e.Start()
	clock.advance(5 * time.Second)
	e.tick()
	assert.Equal(t, 15, h.get().TimeElapsedInSeconds)
}

func TestEngine_ClockSkewClampsToLastGood(t *testing.T) {
	clock, h := start()
	e := newTestEngine(clock, h, nil)

	e.Start()
	clock.advance(20 * time.Second)
	e.tick()
	require.Equal(t, 20, h.get().TimeElapsedInSeconds)

	// wall clock jumps backwards
	clock.advance(-15 * time.Second)
	e.tick()
	assert.Equal(t, 20, h.get().TimeElapsedInSeconds)

	// once the clock catches back up, advancement continues
	clock.advance(17 * time.Second)
	e.tick()
	assert.Equal(t, 22, h.get().TimeElapsedInSeconds)
}

func TestEngine_PeriodBoundaryClampsAndEnds(t *testing.T) {
	clock, h := start()
	e := newTestEngine(clock, h, nil)

	e.Start() // default: 2 periods of 10 minutes
	clock.advance(700 * time.Second)
	e.tick()

	st := h.get()
	assert.Equal(t, 600, st.TimeElapsedInSeconds, "elapsed clamps to the period boundary")
	assert.Equal(t, session.StatusPeriodEnd, st.GameStatus)
	assert.False(t, st.IsTimerRunning)

	// starting again enters period 2 and runs to the end of the game
	e.Start()
	st = h.get()
	require.Equal(t, session.StatusInProgress, st.GameStatus)
	require.Equal(t, 2, st.CurrentPeriod)

	clock.advance(900 * time.Second)
	e.tick()
	st = h.get()
	assert.Equal(t, 1200, st.TimeElapsedInSeconds)
	assert.Equal(t, session.StatusGameEnd, st.GameStatus)

	// a finished game cannot be restarted by the timer
	e.Start()
	assert.False(t, h.get().IsTimerRunning)
}

func TestEngine_SubstitutionAlerting(t *testing.T) {
	clock, h := start()
	e := newTestEngine(clock, h, nil)

	e.Start() // 5 min interval, due at 300
	clock.advance(300 * time.Second)
	e.tick()
	require.Equal(t, session.AlertDue, h.get().SubAlertLevel)

	e.AckSubstitution()
	st := h.get()
	assert.Equal(t, session.AlertNone, st.SubAlertLevel)
	assert.Equal(t, []int{300}, st.CompletedIntervalDurations)
	assert.Equal(t, 600, st.NextSubDueTimeSeconds)
}

func TestEngine_ResumeAfterOfflineGap(t *testing.T) {
	cases := []struct {
		name string
		run  func(t *testing.T)
	}{
		{
			name: "running checkpoint catches up by at least the gap",
			run: func(t *testing.T) {
				clock, h := start()
				cps := newMemCheckpoints()
				e := newTestEngine(clock, h, cps)

				cps.byGame["g1"] = Checkpoint{
					GameID:          "g1",
					ElapsedSeconds:  120,
					TimestampMillis: clock.Now().UnixMilli(),
					Running:         true,
				}

				// 45 seconds pass while the process is down
				clock.advance(45 * time.Second)
				require.NoError(t, e.Resume(context.Background(), "g1"))

				st := h.get()
				assert.GreaterOrEqual(t, st.TimeElapsedInSeconds, 120+45)
				assert.True(t, st.IsTimerRunning)
			},
		},
		{
			name: "paused checkpoint restores elapsed without the gap",
			run: func(t *testing.T) {
				clock, h := start()
				cps := newMemCheckpoints()
				e := newTestEngine(clock, h, cps)

				cps.byGame["g1"] = Checkpoint{
					GameID:          "g1",
					ElapsedSeconds:  120,
					TimestampMillis: clock.Now().UnixMilli(),
					Running:         false,
				}
				clock.advance(45 * time.Second)
				require.NoError(t, e.Resume(context.Background(), "g1"))

				st := h.get()
				assert.Equal(t, 120, st.TimeElapsedInSeconds)
				assert.False(t, st.IsTimerRunning)
			},
		},
		{
			name: "checkpoint for a different game is discarded",
			run: func(t *testing.T) {
				clock, h := start()
				cps := newMemCheckpoints()
				e := newTestEngine(clock, h, cps)

				cps.byGame["other"] = Checkpoint{GameID: "other", ElapsedSeconds: 500, Running: true}
				require.NoError(t, e.Resume(context.Background(), "g1"))
				assert.Zero(t, h.get().TimeElapsedInSeconds)
				assert.False(t, h.get().IsTimerRunning)
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, tc.run)
	}
}

func TestEngine_CheckpointFailureDoesNotBlockTicks(t *testing.T) {
	clock, h := start()
	cps := newMemCheckpoints()
	cps.failing = true
	e := newTestEngine(clock, h, cps)

	e.Start()
	clock.advance(time.Second)
	e.tick()
	clock.advance(time.Second)
	e.tick()

	assert.Equal(t, 2, h.get().TimeElapsedInSeconds, "timer advances despite store failures")

	// store recovers: the next tick's write lands
	cps.mu.Lock()
	cps.failing = false
	cps.mu.Unlock()

	clock.advance(time.Second)
	e.tick()

	cps.mu.Lock()
	defer cps.mu.Unlock()
	cp, ok := cps.byGame["g1"]
	require.True(t, ok)
	assert.Equal(t, 3, cp.ElapsedSeconds)
}
