package session

// GameStatus is the match progress phase. It only advances through explicit
// period/game-end actions and never regresses except via load/reset.
type GameStatus string

const (
	StatusNotStarted GameStatus = "notStarted"
	StatusInProgress GameStatus = "inProgress"
	StatusPeriodEnd  GameStatus = "periodEnd"
	StatusGameEnd    GameStatus = "gameEnd"
)

type SubAlertLevel string

const (
	AlertNone    SubAlertLevel = "none"
	AlertWarning SubAlertLevel = "warning"
	AlertDue     SubAlertLevel = "due"
)

type EventType string

const (
	EventGoal         EventType = "goal"
	EventOpponentGoal EventType = "opponentGoal"
	EventPeriodEnd    EventType = "periodEnd"
	EventGameEnd      EventType = "gameEnd"
)

// GameEvent is one logged match event. ScorerID/AssisterID, when present,
// reference the roster at logging time; a later roster edit may leave them
// dangling, which consumers render as "unknown player".
type GameEvent struct {
	ID         string    `json:"id"`
	Type       EventType `json:"type"`
	Time       int       `json:"time"` // elapsed seconds at logging
	ScorerID   string    `json:"scorerId,omitempty"`
	AssisterID string    `json:"assisterId,omitempty"`
}

// GameSessionState is the authoritative in-memory match record. It is only
// ever produced by Reduce; callers treat it as immutable.
type GameSessionState struct {
	TeamName        string `json:"teamName"`
	OpponentName    string `json:"opponentName"`
	HomeOrAway      string `json:"homeOrAway"` // home|away
	GameDate        string `json:"gameDate"`
	GameLocation    string `json:"gameLocation"`
	GameTime        string `json:"gameTime"`
	SeasonID        string `json:"seasonId"`     // mutually exclusive with TournamentID
	TournamentID    string `json:"tournamentId"` // mutually exclusive with SeasonID
	AgeGroup        string `json:"ageGroup"`
	TournamentLevel string `json:"tournamentLevel"`

	NumberOfPeriods       int        `json:"numberOfPeriods"` // 1|2
	PeriodDurationMinutes int        `json:"periodDurationMinutes"`
	CurrentPeriod         int        `json:"currentPeriod"`
	GameStatus            GameStatus `json:"gameStatus"`

	HomeScore int `json:"homeScore"`
	AwayScore int `json:"awayScore"`

	SelectedPlayerIDs []string    `json:"selectedPlayerIds"`
	GameEvents        []GameEvent `json:"gameEvents"`

	TimeElapsedInSeconds           int           `json:"timeElapsedInSeconds"`
	IsTimerRunning                 bool          `json:"isTimerRunning"`
	StartTimestampMillis           int64         `json:"startTimestampMs"` // wall-clock anchor, 0 = none
	SubIntervalMinutes             int           `json:"subIntervalMinutes"`
	SubWarningSeconds              int           `json:"subWarningSeconds"`
	NextSubDueTimeSeconds          int           `json:"nextSubDueTimeSeconds"`
	SubAlertLevel                  SubAlertLevel `json:"subAlertLevel"`
	LastSubConfirmationTimeSeconds int           `json:"lastSubConfirmationTimeSeconds"`
	CompletedIntervalDurations     []int         `json:"completedIntervalDurations"`
}

const (
	DefaultNumberOfPeriods       = 2
	DefaultPeriodDurationMinutes = 10
	DefaultSubIntervalMinutes    = 5
	DefaultSubWarningSeconds     = 60
)

// NewInitialState returns the explicit defaults every session starts from.
func NewInitialState() GameSessionState {
	return GameSessionState{
		HomeOrAway:            "home",
		NumberOfPeriods:       DefaultNumberOfPeriods,
		PeriodDurationMinutes: DefaultPeriodDurationMinutes,
		CurrentPeriod:         1,
		GameStatus:            StatusNotStarted,
		SubIntervalMinutes:    DefaultSubIntervalMinutes,
		SubWarningSeconds:     DefaultSubWarningSeconds,
		NextSubDueTimeSeconds: DefaultSubIntervalMinutes * 60,
		SubAlertLevel:         AlertNone,
	}
}

// PeriodEndSeconds is the elapsed second at which the current period ends.
func (s GameSessionState) PeriodEndSeconds() int {
	return s.CurrentPeriod * s.PeriodDurationMinutes * 60
}

// HasPlayer reports whether id is in the roster-for-match.
func (s GameSessionState) HasPlayer(id string) bool {
	for _, p := range s.SelectedPlayerIDs {
		if p == id {
			return true
		}
	}
	return false
}

// EventByID returns the logged event with the given id, if any.
func (s GameSessionState) EventByID(id string) (GameEvent, bool) {
	for _, ev := range s.GameEvents {
		if ev.ID == id {
			return ev, true
		}
	}
	return GameEvent{}, false
}
