package game

import (
	"github.com/VillePajala/soccer-pre-game-app-sub002/internal/session"
)

// PlayerPosition is one roster player placed on the field view.
type PlayerPosition struct {
	PlayerID string  `json:"playerId"`
	X        float64 `json:"x"` // relative 0..1
	Y        float64 `json:"y"`
}

// DrawingPoint is one vertex of a free-hand tactical stroke.
type DrawingPoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// AppSnapshot is the full serializable projection of one match: the session
// plus the ancillary board state. It is what undo/redo restores and what the
// persistence collaborator stores. Immutable once taken.
type AppSnapshot struct {
	GameID         string                   `json:"gameId"`
	Session        session.GameSessionState `json:"session"`
	FieldPositions []PlayerPosition         `json:"fieldPositions,omitempty"`
	Drawings       [][]DrawingPoint         `json:"drawings,omitempty"`
}

func (c *Controller) snapshotLocked() AppSnapshot {
	return AppSnapshot{
		GameID:         c.gameID,
		Session:        c.state,
		FieldPositions: append([]PlayerPosition(nil), c.fieldPositions...),
		Drawings:       copyDrawings(c.drawings),
	}
}

func (c *Controller) restoreLocked(snap AppSnapshot) {
	c.state = snap.Session
	c.fieldPositions = append([]PlayerPosition(nil), snap.FieldPositions...)
	c.drawings = copyDrawings(snap.Drawings)
}

func copyDrawings(in [][]DrawingPoint) [][]DrawingPoint {
	if in == nil {
		return nil
	}
	out := make([][]DrawingPoint, len(in))
	for i, stroke := range in {
		out[i] = append([]DrawingPoint(nil), stroke...)
	}
	return out
}
