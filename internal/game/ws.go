package game

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/VillePajala/soccer-pre-game-app-sub002/internal/session"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true }, // shell runs same-origin
}

type ClientConn struct {
	ws   *websocket.Conn
	send chan []byte

	mu     sync.Mutex
	closed bool
}

func (c *ClientConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	c.mu.Unlock()

	if c.ws != nil {
		_ = c.ws.Close()
	}
}

// trySend drops the frame if the client is gone or cannot keep up; the next
// state broadcast carries the full picture anyway. Async command results
// (save/load) may arrive after the connection closed, so the closed check
// matters.
func (c *ClientConn) trySend(b []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- b:
	default:
	}
}

// handleWS attaches a UI shell to a match: /ws?gameId=xxx
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	gameID := r.URL.Query().Get("gameId")
	if gameID == "" {
		http.Error(w, "missing gameId", http.StatusBadRequest)
		return
	}

	c, ok, err := s.svc.GetOrLoad(r.Context(), gameID)
	if err != nil {
		http.Error(w, "storage error", http.StatusInternalServerError)
		return
	}
	if !ok {
		http.Error(w, "game not found", http.StatusNotFound)
		return
	}

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	cc := &ClientConn{
		ws:   ws,
		send: make(chan []byte, 64),
	}
	s.attach(gameID, cc, c)

	// writer loop
	go func() {
		ticker := time.NewTicker(25 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case msg, ok := <-cc.send:
				if !ok {
					return
				}
				_ = ws.WriteMessage(websocket.TextMessage, msg)
			case <-ticker.C:
				_ = ws.WriteMessage(websocket.PingMessage, []byte{})
			}
		}
	}()

	// initial state
	s.broadcastState(gameID, c)

	// reader loop
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			break
		}

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			s.sendError(cc, "bad_json", "invalid json")
			continue
		}
		s.handleCommand(cc, c, env)
	}

	s.detach(gameID, cc)
	cc.Close()
}

func (s *Server) handleCommand(cc *ClientConn, c *Controller, env Envelope) {
	switch env.Type {

	case "start_timer":
		c.StartTimer()
	case "pause_timer":
		c.PauseTimer()
	case "ack_substitution":
		c.AckSubstitution()
	case "end_game":
		c.Dispatch(session.EndGame{})

	case "set_sub_interval":
		var p SetSubIntervalPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			s.sendError(cc, "bad_input", "invalid payload")
			return
		}
		c.SetSubInterval(p.Minutes)

	case "log_goal":
		var p LogGoalPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			s.sendError(cc, "bad_input", "invalid payload")
			return
		}
		if _, err := c.LogGoal(p.ScorerID, p.AssisterID); err != nil {
			s.sendError(cc, "bad_input", err.Error())
		}

	case "log_opponent_goal":
		c.LogOpponentGoal()

	case "update_event":
		var p UpdateEventPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			s.sendError(cc, "bad_input", "invalid payload")
			return
		}
		if err := c.UpdateEvent(p.Event); err != nil {
			s.sendError(cc, "bad_input", err.Error())
		}

	case "delete_event":
		var p DeleteEventPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			s.sendError(cc, "bad_input", "invalid payload")
			return
		}
		c.DeleteEvent(p.ID)

	case "set_roster":
		var p SetRosterPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			s.sendError(cc, "bad_input", "invalid payload")
			return
		}
		c.Dispatch(session.SetSelectedPlayerIDs{IDs: p.PlayerIDs})

	case "update_game_details":
		var p UpdateDetailsPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			s.sendError(cc, "bad_input", "invalid payload")
			return
		}
		for _, a := range detailActions(p) {
			c.Dispatch(a)
		}

	case "set_tactics":
		var p SetTacticsPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			s.sendError(cc, "bad_input", "invalid payload")
			return
		}
		c.SetFieldPositions(p.FieldPositions)
		c.SetDrawings(p.Drawings)

	case "undo":
		c.Undo()
	case "redo":
		c.Redo()

	case "save_game":
		go func() {
			if err := <-c.SaveNow(); err != nil {
				s.sendError(cc, "save_failed", err.Error())
			}
		}()

	case "load_game":
		var p LoadGamePayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			s.sendError(cc, "bad_input", "invalid payload")
			return
		}
		go func() {
			if err := <-c.LoadGame(p.GameID); err != nil {
				s.sendError(cc, "load_failed", err.Error())
			}
		}()

	case "new_game":
		var p CreateGamePayload
		if env.Payload != nil {
			if err := json.Unmarshal(env.Payload, &p); err != nil {
				s.sendError(cc, "bad_input", "invalid payload")
				return
			}
		}
		c.NewGame(p.Details)

	default:
		s.sendError(cc, "unknown_type", "unknown message type")
	}
}

func (s *Server) sendError(cc *ClientConn, code, message string) {
	b, _ := json.Marshal(Envelope{
		Type:    "error",
		Payload: mustJSON(ErrorPayload{Code: code, Message: message}),
	})
	cc.trySend(b)
}
