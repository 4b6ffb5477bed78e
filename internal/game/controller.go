package game

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/VillePajala/soccer-pre-game-app-sub002/internal/history"
	"github.com/VillePajala/soccer-pre-game-app-sub002/internal/opqueue"
	"github.com/VillePajala/soccer-pre-game-app-sub002/internal/session"
	"github.com/VillePajala/soccer-pre-game-app-sub002/internal/timer"
)

var (
	// ErrUnknownPlayer is a validation error: the referenced player is not
	// in the roster-for-match. State is left unchanged.
	ErrUnknownPlayer = errors.New("player is not in the match roster")

	// ErrGameNotFound is delivered when a load targets an unknown game id.
	ErrGameNotFound = errors.New("saved game not found")

	// ErrLoadSuperseded marks a load that was cancelled by a newer one;
	// its completion is discarded, never applied to state.
	ErrLoadSuperseded = errors.New("load superseded by a newer load")
)

// Config carries the orchestration knobs.
type Config struct {
	AutosaveDebounce time.Duration // collapse edit bursts into one save
	HistoryLimit     int
}

func (c Config) withDefaults() Config {
	if c.AutosaveDebounce <= 0 {
		c.AutosaveDebounce = 750 * time.Millisecond
	}
	if c.HistoryLimit <= 0 {
		c.HistoryLimit = history.DefaultLimit
	}
	return c
}

// Controller owns one match session end to end: it is the single dispatch
// path into the reducer, pushes a snapshot to history after every committed
// edit, debounces autosave, and routes every persistence side effect through
// the operation queue.
type Controller struct {
	log   *slog.Logger
	cfg   Config
	store GameStore
	queue *opqueue.Queue
	loads *opqueue.LoadingRegistry

	mu             sync.Mutex
	gameID         string
	state          session.GameSessionState
	fieldPositions []PlayerPosition
	drawings       [][]DrawingPoint
	hist           *history.Manager[AppSnapshot]
	closed         bool

	// debounce: a new edit bumps the token, orphaning the armed timer
	saveToken int64
	saveTimer *time.Timer

	// in-flight load cancellation token
	loadCancel context.CancelFunc

	onChange func()
	onRekey  func(oldID, newID string) // fired after the controller switches games

	engine *timer.Engine
}

// NewController builds a controller for a fresh session. clock may be nil
// (system clock); checkpoints may be nil (timer state is not persisted).
func NewController(gameID string, cfg Config, store GameStore, checkpoints timer.CheckpointStore,
	queue *opqueue.Queue, loads *opqueue.LoadingRegistry, clock timer.Clock, log *slog.Logger) *Controller {

	if log == nil {
		log = slog.Default()
	}
	if gameID == "" {
		gameID = uuid.NewString()
	}
	cfg = cfg.withDefaults()

	c := &Controller{
		log:    log,
		cfg:    cfg,
		store:  store,
		queue:  queue,
		loads:  loads,
		gameID: gameID,
		state:  session.NewInitialState(),
	}
	c.hist = history.New(c.snapshotLocked(), cfg.HistoryLimit)
	c.engine = timer.New(clock, c, c.State, c.GameID, checkpoints, log)
	return c
}

// Close tears the controller down: the timer loop stops, a pending debounce
// is orphaned and any in-flight load is cancelled. The operation currently
// executing on the queue is not aborted.
func (c *Controller) Close() {
	c.engine.Close()

	c.mu.Lock()
	c.closed = true
	c.saveToken++
	if c.saveTimer != nil {
		c.saveTimer.Stop()
		c.saveTimer = nil
	}
	if c.loadCancel != nil {
		c.loadCancel()
		c.loadCancel = nil
	}
	c.mu.Unlock()
}

// SetOnChange registers the single change listener (the UI shell).
func (c *Controller) SetOnChange(fn func()) {
	c.mu.Lock()
	c.onChange = fn
	c.mu.Unlock()
}

// setRekey registers the game-id change listener. The service uses it to
// keep its cache keyed by the game the controller currently owns.
func (c *Controller) setRekey(fn func(oldID, newID string)) {
	c.mu.Lock()
	c.onRekey = fn
	c.mu.Unlock()
}

// State returns the current session state.
func (c *Controller) State() session.GameSessionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) GameID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gameID
}

func (c *Controller) CanUndo() bool { return c.hist.CanUndo() }
func (c *Controller) CanRedo() bool { return c.hist.CanRedo() }

// Dispatch feeds one action through the reducer. Dispatches are totally
// ordered by arrival and run to completion.
func (c *Controller) Dispatch(a session.Action) {
	c.apply(a)
}

func (c *Controller) apply(actions ...session.Action) {
	c.mu.Lock()
	c.applyLocked(actions...)
	cb := c.onChange
	c.mu.Unlock()
	if cb != nil {
		cb()
	}
}

// applyLocked runs a group of actions as one committed change: one history
// entry, one autosave window reset. Timer-engine plumbing actions advance
// state without committing, so a running clock neither floods the undo stack
// nor churns autosave.
func (c *Controller) applyLocked(actions ...session.Action) {
	prevStatus := c.state.GameStatus
	clockOnly := true
	for _, a := range actions {
		if !isClockAction(a) {
			clockOnly = false
		}
		c.state = session.Reduce(c.state, a)
	}
	c.appendLifecycleEventLocked(prevStatus)

	if clockOnly {
		return
	}
	c.hist.Set(c.snapshotLocked())
	c.scheduleAutosaveLocked()
}

func isClockAction(a session.Action) bool {
	switch a.(type) {
	case session.SetTimerElapsed, session.SetTimerRunning:
		return true
	}
	return false
}

// appendLifecycleEventLocked mirrors period/game transitions into the event
// log so exports show when each period closed.
func (c *Controller) appendLifecycleEventLocked(prev session.GameStatus) {
	cur := c.state.GameStatus
	if cur == prev {
		return
	}
	var et session.EventType
	switch cur {
	case session.StatusPeriodEnd:
		et = session.EventPeriodEnd
	case session.StatusGameEnd:
		et = session.EventGameEnd
	default:
		return
	}
	c.state = session.Reduce(c.state, session.AddGameEvent{Event: session.GameEvent{
		ID:   uuid.NewString(),
		Type: et,
		Time: c.state.TimeElapsedInSeconds,
	}})
}

// --- timer surface ---

func (c *Controller) StartTimer()      { c.engine.Start() }
func (c *Controller) PauseTimer()      { c.engine.Pause() }
func (c *Controller) AckSubstitution() { c.engine.AckSubstitution() }

func (c *Controller) SetSubInterval(minutes int) {
	c.apply(session.SetSubInterval{Minutes: minutes})
}

// --- event logging (score pairing discipline lives here, not in the UI) ---

// LogGoal records an own-team goal at the current elapsed time and adjusts
// the score, as one committed change.
func (c *Controller) LogGoal(scorerID, assisterID string) (session.GameEvent, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if scorerID != "" && !c.state.HasPlayer(scorerID) {
		return session.GameEvent{}, ErrUnknownPlayer
	}
	if assisterID != "" && !c.state.HasPlayer(assisterID) {
		return session.GameEvent{}, ErrUnknownPlayer
	}

	ev := session.GameEvent{
		ID:         uuid.NewString(),
		Type:       session.EventGoal,
		Time:       c.state.TimeElapsedInSeconds,
		ScorerID:   scorerID,
		AssisterID: assisterID,
	}
	c.applyLocked(
		session.AddGameEvent{Event: ev},
		session.AdjustScoreForEvent{EventType: ev.Type, Op: session.ScoreAdd},
	)
	c.notifyLocked()
	return ev, nil
}

// LogOpponentGoal records a goal against at the current elapsed time.
func (c *Controller) LogOpponentGoal() session.GameEvent {
	c.mu.Lock()
	defer c.mu.Unlock()

	ev := session.GameEvent{
		ID:   uuid.NewString(),
		Type: session.EventOpponentGoal,
		Time: c.state.TimeElapsedInSeconds,
	}
	c.applyLocked(
		session.AddGameEvent{Event: ev},
		session.AdjustScoreForEvent{EventType: ev.Type, Op: session.ScoreAdd},
	)
	c.notifyLocked()
	return ev
}

// UpdateEvent edits a logged event by id; if the edit flips the event's type
// the score is re-paired in the same change. Unknown id is a no-op.
func (c *Controller) UpdateEvent(ev session.GameEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	old, ok := c.state.EventByID(ev.ID)
	if !ok {
		return nil
	}
	if ev.ScorerID != "" && !c.state.HasPlayer(ev.ScorerID) {
		return ErrUnknownPlayer
	}
	if ev.AssisterID != "" && !c.state.HasPlayer(ev.AssisterID) {
		return ErrUnknownPlayer
	}

	actions := []session.Action{session.UpdateGameEvent{Event: ev}}
	if old.Type != ev.Type {
		actions = append(actions,
			session.AdjustScoreForEvent{EventType: old.Type, Op: session.ScoreDelete},
			session.AdjustScoreForEvent{EventType: ev.Type, Op: session.ScoreAdd},
		)
	}
	c.applyLocked(actions...)
	c.notifyLocked()
	return nil
}

// DeleteEvent removes a logged event and reverses its score effect exactly
// once. Deleting an unknown id is a no-op, not an error.
func (c *Controller) DeleteEvent(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	ev, ok := c.state.EventByID(id)
	if !ok {
		return false
	}
	c.applyLocked(
		session.AdjustScoreForEvent{EventType: ev.Type, Op: session.ScoreDelete},
		session.DeleteGameEvent{ID: id},
	)
	c.notifyLocked()
	return true
}

// notifyLocked fires the change listener without holding the lock.
func (c *Controller) notifyLocked() {
	cb := c.onChange
	if cb == nil {
		return
	}
	go cb()
}

// --- tactical board (ancillary snapshot state) ---

func (c *Controller) SetFieldPositions(pos []PlayerPosition) {
	c.mu.Lock()
	c.fieldPositions = append([]PlayerPosition(nil), pos...)
	c.hist.Set(c.snapshotLocked())
	c.scheduleAutosaveLocked()
	cb := c.onChange
	c.mu.Unlock()
	if cb != nil {
		cb()
	}
}

func (c *Controller) SetDrawings(drawings [][]DrawingPoint) {
	c.mu.Lock()
	c.drawings = copyDrawings(drawings)
	c.hist.Set(c.snapshotLocked())
	c.scheduleAutosaveLocked()
	cb := c.onChange
	c.mu.Unlock()
	if cb != nil {
		cb()
	}
}

// --- undo / redo ---

// Undo steps back one committed change. The live clock is kept: undo rolls
// back edits, not time.
func (c *Controller) Undo() bool { return c.timeTravel(true) }

// Redo steps forward one committed change.
func (c *Controller) Redo() bool { return c.timeTravel(false) }

func (c *Controller) timeTravel(back bool) bool {
	c.mu.Lock()
	var snap AppSnapshot
	var ok bool
	if back {
		snap, ok = c.hist.Undo()
	} else {
		snap, ok = c.hist.Redo()
	}
	if !ok {
		c.mu.Unlock()
		return false
	}

	elapsed := c.state.TimeElapsedInSeconds
	running := c.state.IsTimerRunning
	anchor := c.state.StartTimestampMillis
	alert := c.state.SubAlertLevel

	c.restoreLocked(snap)
	c.state.TimeElapsedInSeconds = elapsed
	c.state.IsTimerRunning = running
	c.state.StartTimestampMillis = anchor
	c.state.SubAlertLevel = alert

	c.scheduleAutosaveLocked()
	cb := c.onChange
	c.mu.Unlock()
	if cb != nil {
		cb()
	}
	return true
}

// --- persistence orchestration ---

// scheduleAutosaveLocked (re)arms the debounce window. A burst of edits
// collapses into one MEDIUM save; the queue keeps it from ever delaying an
// interactive load.
func (c *Controller) scheduleAutosaveLocked() {
	if c.store == nil || c.queue == nil || c.closed {
		return
	}
	c.saveToken++
	token := c.saveToken
	if c.saveTimer != nil {
		c.saveTimer.Stop()
	}
	c.saveTimer = time.AfterFunc(c.cfg.AutosaveDebounce, func() { c.autosave(token) })
}

func (c *Controller) autosave(token int64) {
	c.mu.Lock()
	if token != c.saveToken || c.closed {
		c.mu.Unlock()
		return
	}
	snap := c.snapshotLocked()
	id := c.gameID
	c.mu.Unlock()

	done := c.queue.Submit(opqueue.Operation{
		Name:     "autosave",
		Priority: opqueue.Medium,
		Run: func(ctx context.Context) error {
			_, err := c.store.Save(ctx, id, snap)
			return err
		},
	})
	go func() {
		// failures are recoverable: the in-memory session stays the
		// source of truth and the next edit re-arms the save
		if err := <-done; err != nil && !errors.Is(err, opqueue.ErrCancelled) {
			c.log.Warn("autosave failed", "gameId", id, "err", err)
		}
	}()
}

// SaveNow submits a quick-save at HIGH priority and returns its result
// channel.
func (c *Controller) SaveNow() <-chan error {
	c.mu.Lock()
	snap := c.snapshotLocked()
	id := c.gameID
	// the explicit save supersedes a pending autosave of the same state
	c.saveToken++
	if c.saveTimer != nil {
		c.saveTimer.Stop()
	}
	c.mu.Unlock()

	return c.queue.Submit(opqueue.Operation{
		Name:     "quick-save",
		Priority: opqueue.High,
		Run: func(ctx context.Context) error {
			_, err := c.store.Save(ctx, id, snap)
			return err
		},
	})
}

// LoadGame switches this controller to a previously saved match. The load
// runs at CRITICAL priority; a still-running earlier load is cancelled and
// its completion discarded. History never leaks across matches.
func (c *Controller) LoadGame(id string) <-chan error {
	c.mu.Lock()
	if c.loadCancel != nil {
		c.loadCancel()
	}
	loadCtx, cancel := context.WithCancel(context.Background())
	c.loadCancel = cancel
	c.mu.Unlock()

	if c.loads != nil {
		c.loads.Begin(id)
	}

	out := make(chan error, 1)
	done := c.queue.Submit(opqueue.Operation{
		Name:     "load:" + id,
		Priority: opqueue.Critical,
		Run: func(ctx context.Context) error {
			snap, found, err := c.store.Load(ctx, id)
			if err != nil {
				return err
			}
			if loadCtx.Err() != nil {
				return ErrLoadSuperseded
			}
			if !found {
				return ErrGameNotFound
			}
			c.adoptSnapshot(id, snap)
			return nil
		},
	})

	go func() {
		err := <-done
		if c.loads != nil {
			c.loads.Finish(id, err)
		}
		out <- err
	}()
	return out
}

// adoptSnapshot replaces the whole session from storage and resets history
// to the loaded base, then lets the timer engine correct for the offline gap.
func (c *Controller) adoptSnapshot(id string, snap AppSnapshot) {
	c.mu.Lock()
	oldID := c.gameID
	c.gameID = id
	c.state = session.Reduce(c.state, session.LoadPersistedGameData{
		Data: session.PayloadFromState(snap.Session),
	})
	c.fieldPositions = append([]PlayerPosition(nil), snap.FieldPositions...)
	c.drawings = copyDrawings(snap.Drawings)
	c.hist.Reset(c.snapshotLocked())
	c.saveToken++ // orphan any autosave armed for the previous match
	if c.saveTimer != nil {
		c.saveTimer.Stop()
	}
	cb := c.onChange
	rk := c.onRekey
	c.mu.Unlock()

	if rk != nil && oldID != id {
		rk(oldID, id)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.engine.Resume(ctx, id); err != nil {
		c.log.Warn("timer resume failed", "gameId", id, "err", err)
	}
	if cb != nil {
		cb()
	}
}

// NewGame resets the session for a new match and persists the initial
// snapshot at HIGH priority. Returns the new game id.
func (c *Controller) NewGame(details session.GamePayload) string {
	id := uuid.NewString()

	c.mu.Lock()
	oldID := c.gameID
	if c.loadCancel != nil {
		c.loadCancel()
		c.loadCancel = nil
	}
	c.gameID = id
	c.state = session.Reduce(c.state, session.ResetGameSessionState{Data: details})
	c.fieldPositions = nil
	c.drawings = nil
	c.hist.Reset(c.snapshotLocked())
	c.saveToken++
	if c.saveTimer != nil {
		c.saveTimer.Stop()
	}
	snap := c.snapshotLocked()
	cb := c.onChange
	rk := c.onRekey
	c.mu.Unlock()

	if rk != nil && oldID != id {
		rk(oldID, id)
	}

	if c.store != nil && c.queue != nil {
		done := c.queue.Submit(opqueue.Operation{
			Name:     "create:" + id,
			Priority: opqueue.High,
			Run: func(ctx context.Context) error {
				_, err := c.store.Save(ctx, id, snap)
				return err
			},
		})
		go func() {
			if err := <-done; err != nil && !errors.Is(err, opqueue.ErrCancelled) {
				c.log.Warn("initial save failed", "gameId", id, "err", err)
			}
		}()
	}
	if cb != nil {
		cb()
	}
	return id
}
