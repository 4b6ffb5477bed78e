package game

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/VillePajala/soccer-pre-game-app-sub002/internal/session"
)

// Server is the HTTP/WebSocket shell around the session core. It is plain
// UI plumbing: every command it receives is translated into controller
// calls, and every committed change is broadcast back out.
type Server struct {
	log *slog.Logger
	svc *Service

	mu    sync.Mutex
	conns map[string]map[*ClientConn]struct{} // by game id
}

func NewServer(svc *Service, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		log:   log,
		svc:   svc,
		conns: make(map[string]map[*ClientConn]struct{}),
	}
}

func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/games", s.handleGames)
	mux.HandleFunc("/ws", s.handleWS)
}

func (s *Server) handleGames(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var p CreateGamePayload
		if r.Body != nil {
			_ = json.NewDecoder(r.Body).Decode(&p) // empty body => defaults
		}
		_, id := s.svc.Create(r.Context(), p.Details)
		writeJSON(w, http.StatusOK, map[string]string{"gameId": id})

	case http.MethodGet:
		games, err := s.svc.List(r.Context())
		if err != nil {
			http.Error(w, "failed to list games", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, games)

	case http.MethodDelete:
		id := r.URL.Query().Get("id")
		if id == "" {
			http.Error(w, "missing id", http.StatusBadRequest)
			return
		}
		ok, err := s.svc.Delete(r.Context(), id)
		if err != nil {
			http.Error(w, "failed to delete game", http.StatusInternalServerError)
			return
		}
		if !ok {
			http.Error(w, "game not found", http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) attach(gameID string, cc *ClientConn, c *Controller) {
	s.mu.Lock()
	set, ok := s.conns[gameID]
	if !ok {
		set = make(map[*ClientConn]struct{})
		s.conns[gameID] = set
	}
	set[cc] = struct{}{}
	s.mu.Unlock()

	c.SetOnChange(func() { s.broadcastState(gameID, c) })
}

func (s *Server) detach(gameID string, cc *ClientConn) {
	s.mu.Lock()
	if set, ok := s.conns[gameID]; ok {
		delete(set, cc)
		if len(set) == 0 {
			delete(s.conns, gameID)
		}
	}
	s.mu.Unlock()
}

func (s *Server) broadcastState(gameID string, c *Controller) {
	env := Envelope{Type: "state", Payload: mustJSON(c.Update())}
	b, _ := json.Marshal(env)

	s.mu.Lock()
	defer s.mu.Unlock()
	for cc := range s.conns[gameID] {
		cc.trySend(b)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func mustJSON(v any) json.RawMessage {
	b, _ := json.Marshal(v)
	return b
}

// detailActions expands a partial details edit into reducer actions.
func detailActions(p UpdateDetailsPayload) []session.Action {
	var actions []session.Action
	if p.TeamName != nil {
		actions = append(actions, session.SetTeamName{Name: *p.TeamName})
	}
	if p.OpponentName != nil {
		actions = append(actions, session.SetOpponentName{Name: *p.OpponentName})
	}
	if p.HomeOrAway != nil {
		actions = append(actions, session.SetHomeOrAway{Value: *p.HomeOrAway})
	}
	if p.GameDate != nil {
		actions = append(actions, session.SetGameDate{Date: *p.GameDate})
	}
	if p.GameLocation != nil {
		actions = append(actions, session.SetGameLocation{Location: *p.GameLocation})
	}
	if p.GameTime != nil {
		actions = append(actions, session.SetGameTime{Time: *p.GameTime})
	}
	if p.SeasonID != nil {
		actions = append(actions, session.SetSeasonID{ID: *p.SeasonID})
	}
	if p.TournamentID != nil {
		actions = append(actions, session.SetTournamentID{ID: *p.TournamentID})
	}
	if p.AgeGroup != nil {
		actions = append(actions, session.SetAgeGroup{AgeGroup: *p.AgeGroup})
	}
	if p.TournamentLevel != nil {
		actions = append(actions, session.SetTournamentLevel{Level: *p.TournamentLevel})
	}
	if p.NumberOfPeriods != nil {
		actions = append(actions, session.SetNumberOfPeriods{Periods: *p.NumberOfPeriods})
	}
	if p.PeriodDuration != nil {
		actions = append(actions, session.SetPeriodDuration{Minutes: *p.PeriodDuration})
	}
	return actions
}
