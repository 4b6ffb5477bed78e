package session

// Action is the sealed set of session transitions. Every variant is a plain
// payload struct; Reduce is the only dispatcher.
type Action interface {
	isAction()
}

type ScoreOp string

const (
	ScoreAdd    ScoreOp = "add"
	ScoreDelete ScoreOp = "delete"
)

// --- events & score ---

// AddGameEvent appends an event to the log. It does not touch the score;
// callers pair it with AdjustScoreForEvent.
type AddGameEvent struct{ Event GameEvent }

// UpdateGameEvent replaces the event with the same id. Unknown id is a no-op.
type UpdateGameEvent struct{ Event GameEvent }

// DeleteGameEvent removes the event by id. Unknown id is a no-op.
type DeleteGameEvent struct{ ID string }

// AdjustScoreForEvent moves the correct score field by exactly one.
// Pairing a delete with its prior add is the caller's responsibility.
type AdjustScoreForEvent struct {
	EventType EventType
	Op        ScoreOp
}

// --- roster & context ---

type SetSelectedPlayerIDs struct{ IDs []string }

// SetSeasonID sets the season; a non-empty value clears TournamentID in the
// same transition.
type SetSeasonID struct{ ID string }

// SetTournamentID sets the tournament; a non-empty value clears SeasonID in
// the same transition.
type SetTournamentID struct{ ID string }

type SetTeamName struct{ Name string }
type SetOpponentName struct{ Name string }
type SetHomeOrAway struct{ Value string }
type SetGameDate struct{ Date string }
type SetGameLocation struct{ Location string }
type SetGameTime struct{ Time string }
type SetAgeGroup struct{ AgeGroup string }
type SetTournamentLevel struct{ Level string }

type SetNumberOfPeriods struct{ Periods int }
type SetPeriodDuration struct{ Minutes int }

// --- game progress ---

type StartGame struct{}
type EndPeriod struct{}
type StartNextPeriod struct{}
type EndGame struct{}

// --- timer (dispatched by the timer engine only) ---

// SetTimerElapsed writes the drift-corrected elapsed value and recomputes
// the substitution alert level.
type SetTimerElapsed struct{ Seconds int }

// SetTimerRunning flips the running flag. AnchorMillis carries the wall-clock
// anchor on start and must be zero on pause.
type SetTimerRunning struct {
	Running      bool
	AnchorMillis int64
}

// ConfirmSubstitution acknowledges a substitution at the current elapsed
// time: records the completed interval, advances the next due time and
// clears the alert.
type ConfirmSubstitution struct{}

// SetSubInterval changes the substitution interval mid-match. The next due
// time is recomputed relative to the last confirmation, not from zero.
type SetSubInterval struct{ Minutes int }

// --- lifecycle ---

// LoadPersistedGameData merges a saved game onto a freshly reset base state.
// The wall-clock anchor never comes from storage: the timer always loads
// paused and is resumed by the timer engine.
type LoadPersistedGameData struct{ Data GamePayload }

// ResetToInitialState discards the session and returns to explicit defaults.
type ResetToInitialState struct{}

// ResetGameSessionState replaces the session for a "new game" flow. Timer
// fields are always zeroed regardless of payload.
type ResetGameSessionState struct{ Data GamePayload }

func (AddGameEvent) isAction()          {}
func (UpdateGameEvent) isAction()       {}
func (DeleteGameEvent) isAction()       {}
func (AdjustScoreForEvent) isAction()   {}
func (SetSelectedPlayerIDs) isAction()  {}
func (SetSeasonID) isAction()           {}
func (SetTournamentID) isAction()       {}
func (SetTeamName) isAction()           {}
func (SetOpponentName) isAction()       {}
func (SetHomeOrAway) isAction()         {}
func (SetGameDate) isAction()           {}
func (SetGameLocation) isAction()       {}
func (SetGameTime) isAction()           {}
func (SetAgeGroup) isAction()           {}
func (SetTournamentLevel) isAction()    {}
func (SetNumberOfPeriods) isAction()    {}
func (SetPeriodDuration) isAction()     {}
func (StartGame) isAction()             {}
func (EndPeriod) isAction()             {}
func (StartNextPeriod) isAction()       {}
func (EndGame) isAction()               {}
func (SetTimerElapsed) isAction()       {}
func (SetTimerRunning) isAction()       {}
func (ConfirmSubstitution) isAction()   {}
func (SetSubInterval) isAction()        {}
func (LoadPersistedGameData) isAction() {}
func (ResetToInitialState) isAction()   {}
func (ResetGameSessionState) isAction() {}

// PayloadFromState turns a full session into the payload LoadPersistedGameData
// expects, used when rehydrating a saved game.
func PayloadFromState(s GameSessionState) GamePayload {
	str := func(v string) *string { return &v }
	num := func(v int) *int { return &v }
	status := s.GameStatus
	return GamePayload{
		TeamName:        str(s.TeamName),
		OpponentName:    str(s.OpponentName),
		HomeOrAway:      str(s.HomeOrAway),
		GameDate:        str(s.GameDate),
		GameLocation:    str(s.GameLocation),
		GameTime:        str(s.GameTime),
		SeasonID:        str(s.SeasonID),
		TournamentID:    str(s.TournamentID),
		AgeGroup:        str(s.AgeGroup),
		TournamentLevel: str(s.TournamentLevel),

		NumberOfPeriods:       num(s.NumberOfPeriods),
		PeriodDurationMinutes: num(s.PeriodDurationMinutes),
		CurrentPeriod:         num(s.CurrentPeriod),
		GameStatus:            &status,

		HomeScore: num(s.HomeScore),
		AwayScore: num(s.AwayScore),

		SelectedPlayerIDs: append([]string{}, s.SelectedPlayerIDs...),
		GameEvents:        append([]GameEvent{}, s.GameEvents...),

		TimeElapsedInSeconds:           num(s.TimeElapsedInSeconds),
		SubIntervalMinutes:             num(s.SubIntervalMinutes),
		SubWarningSeconds:              num(s.SubWarningSeconds),
		NextSubDueTimeSeconds:          num(s.NextSubDueTimeSeconds),
		LastSubConfirmationTimeSeconds: num(s.LastSubConfirmationTimeSeconds),
		CompletedIntervalDurations:     append([]int{}, s.CompletedIntervalDurations...),
	}
}

// GamePayload is a partial session used by load/reset flows. Nil pointer
// fields keep the base value; nil slices keep the base slice.
type GamePayload struct {
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

	NumberOfPeriods       *int        `json:"numberOfPeriods,omitempty"`
	PeriodDurationMinutes *int        `json:"periodDurationMinutes,omitempty"`
	CurrentPeriod         *int        `json:"currentPeriod,omitempty"`
	GameStatus            *GameStatus `json:"gameStatus,omitempty"`

	HomeScore *int `json:"homeScore,omitempty"`
	AwayScore *int `json:"awayScore,omitempty"`

	SelectedPlayerIDs []string    `json:"selectedPlayerIds,omitempty"`
	GameEvents        []GameEvent `json:"gameEvents,omitempty"`

	TimeElapsedInSeconds           *int  `json:"timeElapsedInSeconds,omitempty"`
	SubIntervalMinutes             *int  `json:"subIntervalMinutes,omitempty"`
	SubWarningSeconds              *int  `json:"subWarningSeconds,omitempty"`
	NextSubDueTimeSeconds          *int  `json:"nextSubDueTimeSeconds,omitempty"`
	LastSubConfirmationTimeSeconds *int  `json:"lastSubConfirmationTimeSeconds,omitempty"`
	CompletedIntervalDurations     []int `json:"completedIntervalDurations,omitempty"`
}
