// Package timer drives elapsed-time advancement and substitution alerting
// for one match session. The engine never accumulates tick counts: every
// tick recomputes elapsed time from a wall-clock anchor, which is what keeps
// it correct across suspended processes and delayed ticks.
package timer

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/VillePajala/soccer-pre-game-app-sub002/internal/session"
)

// Clock is the engine's only time source, swappable in tests.
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// Dispatcher is the action sink; in production the session controller.
type Dispatcher interface {
	Dispatch(session.Action)
}

// Checkpoint is the durable timer record written every tick so a restarted
// process can correct for the offline gap.
type Checkpoint struct {
	GameID          string `json:"gameId"`
	ElapsedSeconds  int    `json:"elapsedSeconds"`
	TimestampMillis int64  `json:"timestampMs"`
	Running         bool   `json:"running"`
}

// CheckpointStore persists timer checkpoints keyed by game id.
type CheckpointStore interface {
	SaveCheckpoint(ctx context.Context, cp Checkpoint) error
	LoadCheckpoint(ctx context.Context, gameID string) (Checkpoint, bool, error)
	DeleteCheckpoint(ctx context.Context, gameID string) error
}

const (
	defaultTickInterval   = time.Second
	checkpointWriteBudget = 2 * time.Second
)

type Engine struct {
	log         *slog.Logger
	clock       Clock
	dispatch    Dispatcher
	state       func() session.GameSessionState
	gameID      func() string
	checkpoints CheckpointStore

	tickInterval time.Duration

	mu            sync.Mutex
	anchorElapsed int // seconds folded in at the last start/resume
	lastGood      int // last accepted elapsed value, the clamp floor

	stopOnce sync.Once
	stop     chan struct{}
}

// New wires an engine to one session and starts its tick loop. state and
// gameID are read on every tick; checkpoints may be nil (no persistence).
func New(clock Clock, d Dispatcher, state func() session.GameSessionState, gameID func() string, cps CheckpointStore, log *slog.Logger) *Engine {
	if clock == nil {
		clock = SystemClock{}
	}
	if log == nil {
		log = slog.Default()
	}
	e := &Engine{
		log:          log,
		clock:        clock,
		dispatch:     d,
		state:        state,
		gameID:       gameID,
		checkpoints:  cps,
		tickInterval: defaultTickInterval,
		stop:         make(chan struct{}),
	}
	go e.run()
	return e
}

func (e *Engine) run() {
	ticker := time.NewTicker(e.tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			e.tick()
		case <-e.stop:
			return
		}
	}
}

// Close stops the tick loop. The session state is left as-is.
func (e *Engine) Close() {
	e.stopOnce.Do(func() { close(e.stop) })
}

// Start begins (or continues) timing. Starting from a not-started game also
// starts the game. Already running is a no-op.
func (e *Engine) Start() {
	e.mu.Lock()
	defer e.mu.Unlock()

	st := e.state()
	if st.IsTimerRunning || st.GameStatus == session.StatusGameEnd {
		return
	}
	switch st.GameStatus {
	case session.StatusNotStarted:
		e.dispatch.Dispatch(session.StartGame{})
	case session.StatusPeriodEnd:
		e.dispatch.Dispatch(session.StartNextPeriod{})
	}

	e.anchorElapsed = st.TimeElapsedInSeconds
	e.lastGood = st.TimeElapsedInSeconds
	e.dispatch.Dispatch(session.SetTimerRunning{Running: true, AnchorMillis: e.clock.Now().UnixMilli()})
	e.writeCheckpoint(st.TimeElapsedInSeconds, true)
}

// Pause folds the anchor into the accumulated elapsed value and stops
// advancement.
func (e *Engine) Pause() {
	e.mu.Lock()
	defer e.mu.Unlock()

	st := e.state()
	if !st.IsTimerRunning {
		return
	}
	elapsed := e.computeElapsed(st)
	e.anchorElapsed = elapsed
	e.lastGood = elapsed
	e.dispatch.Dispatch(session.SetTimerElapsed{Seconds: elapsed})
	e.dispatch.Dispatch(session.SetTimerRunning{Running: false})
	e.writeCheckpoint(elapsed, false)
}

// AckSubstitution acknowledges a substitution at the current elapsed time.
func (e *Engine) AckSubstitution() {
	e.dispatch.Dispatch(session.ConfirmSubstitution{})
}

// Resume applies the offline-gap correction after a restart. A checkpoint
// written for a different game, or none at all, is discarded. If the timer
// had been left running the gap since the checkpoint is added to the
// persisted elapsed value and timing continues.
func (e *Engine) Resume(ctx context.Context, gameID string) error {
	if e.checkpoints == nil {
		return nil
	}
	cp, found, err := e.checkpoints.LoadCheckpoint(ctx, gameID)
	if err != nil {
		return err
	}
	if !found || cp.GameID != gameID {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	elapsed := cp.ElapsedSeconds
	if cp.Running {
		gap := int((e.clock.Now().UnixMilli() - cp.TimestampMillis) / 1000)
		if gap > 0 {
			elapsed += gap
		}
	}
	if elapsed < 0 {
		elapsed = 0
	}

	e.anchorElapsed = elapsed
	e.lastGood = elapsed
	e.dispatch.Dispatch(session.SetTimerElapsed{Seconds: elapsed})
	if cp.Running {
		e.dispatch.Dispatch(session.SetTimerRunning{Running: true, AnchorMillis: e.clock.Now().UnixMilli()})
		e.writeCheckpoint(elapsed, true)
	}
	return nil
}

// tick is one advancement step: recompute from the anchor, handle the period
// boundary, persist a checkpoint. Runs at 1 Hz but is safe to call at any
// cadence, delayed or skipped ticks cost nothing.
func (e *Engine) tick() {
	e.mu.Lock()
	defer e.mu.Unlock()

	st := e.state()
	if !st.IsTimerRunning {
		return
	}

	elapsed := e.computeElapsed(st)

	if st.GameStatus == session.StatusInProgress {
		if limit := st.PeriodEndSeconds(); elapsed >= limit {
			// clamp to the boundary and stop; the reducer decides
			// between periodEnd and gameEnd
			e.anchorElapsed = limit
			e.lastGood = limit
			e.dispatch.Dispatch(session.SetTimerElapsed{Seconds: limit})
			e.dispatch.Dispatch(session.EndPeriod{})
			e.writeCheckpoint(limit, false)
			return
		}
	}

	e.lastGood = elapsed
	e.dispatch.Dispatch(session.SetTimerElapsed{Seconds: elapsed})
	e.writeCheckpoint(elapsed, true)
}

// computeElapsed derives elapsed seconds from the wall-clock anchor. Clock
// skew producing a value behind the last known good one clamps rather than
// propagates.
func (e *Engine) computeElapsed(st session.GameSessionState) int {
	if st.StartTimestampMillis == 0 {
		return e.lastGood
	}
	deltaMs := e.clock.Now().UnixMilli() - st.StartTimestampMillis
	elapsed := e.anchorElapsed + int(deltaMs/1000)
	if elapsed < e.lastGood {
		return e.lastGood
	}
	return elapsed
}

// writeCheckpoint persists the timer record. Failures are logged and the
// next tick retries; persistence must never block timer advancement.
func (e *Engine) writeCheckpoint(elapsed int, running bool) {
	if e.checkpoints == nil {
		return
	}
	cp := Checkpoint{
		GameID:          e.gameID(),
		ElapsedSeconds:  elapsed,
		TimestampMillis: e.clock.Now().UnixMilli(),
		Running:         running,
	}
	ctx, cancel := context.WithTimeout(context.Background(), checkpointWriteBudget)
	defer cancel()
	if err := e.checkpoints.SaveCheckpoint(ctx, cp); err != nil {
		e.log.Warn("timer checkpoint write failed", "gameId", cp.GameID, "err", err)
	}
}
