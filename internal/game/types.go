package game

import (
	"encoding/json"

	"github.com/VillePajala/soccer-pre-game-app-sub002/internal/opqueue"
	"github.com/VillePajala/soccer-pre-game-app-sub002/internal/session"
)

// Envelope is the WS frame: {"type":"...","payload":{...}}
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// --- incoming payloads ---

type LogGoalPayload struct {
	ScorerID   string `json:"scorerId"`
	AssisterID string `json:"assisterId,omitempty"`
}

type DeleteEventPayload struct {
	ID string `json:"id"`
}

type UpdateEventPayload struct {
	Event session.GameEvent `json:"event"`
}

type SetRosterPayload struct {
	PlayerIDs []string `json:"playerIds"`
}

type SetSubIntervalPayload struct {
	Minutes int `json:"minutes"`
}

// UpdateDetailsPayload carries partial identity/context edits; absent fields
// are left untouched.
type UpdateDetailsPayload struct {
	TeamName        *string `json:"teamName,omitempty"`
	OpponentName    *string `json:"opponentName,omitempty"`
	HomeOrAway      *string `json:"homeOrAway,omitempty"`
	GameDate        *string `json:"gameDate,omitempty"`
	GameLocation    *string `json:"gameLocation,omitempty"`
	GameTime        *string `json:"gameTime,omitempty"`
	SeasonID        *string `json:"seasonId,omitempty"`
	TournamentID    *string `json:"tournamentId,omitempty"`
	AgeGroup        *string `json:"ageGroup,omitempty"`
	TournamentLevel *string `json:"tournamentLevel,omitempty"`
	NumberOfPeriods *int    `json:"numberOfPeriods,omitempty"`
	PeriodDuration  *int    `json:"periodDurationMinutes,omitempty"`
}

type SetTacticsPayload struct {
	FieldPositions []PlayerPosition `json:"fieldPositions"`
	Drawings       [][]DrawingPoint `json:"drawings"`
}

type LoadGamePayload struct {
	GameID string `json:"gameId"`
}

type CreateGamePayload struct {
	Details session.GamePayload `json:"details"`
}

// --- outgoing payloads ---

// StateUpdate is the full view the UI shell renders from.
type StateUpdate struct {
	GameID         string                           `json:"gameId"`
	Session        session.GameSessionState         `json:"session"`
	FieldPositions []PlayerPosition                 `json:"fieldPositions,omitempty"`
	Drawings       [][]DrawingPoint                 `json:"drawings,omitempty"`
	CanUndo        bool                             `json:"canUndo"`
	CanRedo        bool                             `json:"canRedo"`
	SubAlertLevel  session.SubAlertLevel            `json:"subAlertLevel"`
	Loading        map[string]opqueue.ResourceState `json:"loading,omitempty"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Update assembles the current StateUpdate for broadcast.
func (c *Controller) Update() StateUpdate {
	c.mu.Lock()
	snap := c.snapshotLocked()
	c.mu.Unlock()

	upd := StateUpdate{
		GameID:         snap.GameID,
		Session:        snap.Session,
		FieldPositions: snap.FieldPositions,
		Drawings:       snap.Drawings,
		CanUndo:        c.CanUndo(),
		CanRedo:        c.CanRedo(),
		SubAlertLevel:  snap.Session.SubAlertLevel,
	}
	if c.loads != nil {
		upd.Loading = c.loads.States()
	}
	return upd
}
