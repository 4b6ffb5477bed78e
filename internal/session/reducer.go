package session

// Reduce applies one action to the session and returns the next state.
// It is pure: no I/O, no clock access, and it never panics for well-formed
// actions. Malformed payloads (unknown ids, out-of-range values) leave the
// state unchanged rather than failing.
func Reduce(s GameSessionState, a Action) GameSessionState {
	switch act := a.(type) {

	case AddGameEvent:
		s.GameEvents = append(copyEvents(s.GameEvents), act.Event)
		return s

	case UpdateGameEvent:
		for i, ev := range s.GameEvents {
			if ev.ID == act.Event.ID {
				events := copyEvents(s.GameEvents)
				events[i] = act.Event
				s.GameEvents = events
				return s
			}
		}
		return s

	case DeleteGameEvent:
		for i, ev := range s.GameEvents {
			if ev.ID == act.ID {
				events := copyEvents(s.GameEvents)
				s.GameEvents = append(events[:i], events[i+1:]...)
				return s
			}
		}
		return s

	case AdjustScoreForEvent:
		return adjustScore(s, act.EventType, act.Op)

	case SetSelectedPlayerIDs:
		s.SelectedPlayerIDs = dedupe(act.IDs)
		return s

	case SetSeasonID:
		s.SeasonID = act.ID
		if act.ID != "" {
			s.TournamentID = ""
		}
		return s

	case SetTournamentID:
		s.TournamentID = act.ID
		if act.ID != "" {
			s.SeasonID = ""
		}
		return s

	case SetTeamName:
		s.TeamName = act.Name
		return s
	case SetOpponentName:
		s.OpponentName = act.Name
		return s
	case SetHomeOrAway:
		if act.Value == "home" || act.Value == "away" {
			s.HomeOrAway = act.Value
		}
		return s
	case SetGameDate:
		s.GameDate = act.Date
		return s
	case SetGameLocation:
		s.GameLocation = act.Location
		return s
	case SetGameTime:
		s.GameTime = act.Time
		return s
	case SetAgeGroup:
		s.AgeGroup = act.AgeGroup
		return s
	case SetTournamentLevel:
		s.TournamentLevel = act.Level
		return s

	case SetNumberOfPeriods:
		if act.Periods != 1 && act.Periods != 2 {
			return s
		}
		s.NumberOfPeriods = act.Periods
		if s.CurrentPeriod > act.Periods {
			s.CurrentPeriod = act.Periods
		}
		return s

	case SetPeriodDuration:
		if act.Minutes <= 0 {
			return s
		}
		s.PeriodDurationMinutes = act.Minutes
		return s

	case StartGame:
		if s.GameStatus != StatusNotStarted {
			return s
		}
		s.GameStatus = StatusInProgress
		s.CurrentPeriod = 1
		return s

	case EndPeriod:
		if s.GameStatus != StatusInProgress {
			return s
		}
		if s.CurrentPeriod >= s.NumberOfPeriods {
			s.GameStatus = StatusGameEnd
		} else {
			s.GameStatus = StatusPeriodEnd
		}
		s.IsTimerRunning = false
		s.StartTimestampMillis = 0
		return s

	case StartNextPeriod:
		if s.GameStatus != StatusPeriodEnd {
			return s
		}
		s.GameStatus = StatusInProgress
		if s.CurrentPeriod < s.NumberOfPeriods {
			s.CurrentPeriod++
		}
		return s

	case EndGame:
		if s.GameStatus != StatusInProgress && s.GameStatus != StatusPeriodEnd {
			return s
		}
		s.GameStatus = StatusGameEnd
		s.IsTimerRunning = false
		s.StartTimestampMillis = 0
		return s

	case SetTimerElapsed:
		if act.Seconds < 0 {
			return s
		}
		s.TimeElapsedInSeconds = act.Seconds
		s.SubAlertLevel = alertLevel(act.Seconds, s.NextSubDueTimeSeconds, s.SubWarningSeconds)
		return s

	case SetTimerRunning:
		s.IsTimerRunning = act.Running
		if act.Running {
			s.StartTimestampMillis = act.AnchorMillis
		} else {
			s.StartTimestampMillis = 0
		}
		return s

	case ConfirmSubstitution:
		elapsed := s.TimeElapsedInSeconds
		dur := elapsed - s.LastSubConfirmationTimeSeconds
		if dur < 0 {
			dur = 0
		}
		s.CompletedIntervalDurations = append(copyInts(s.CompletedIntervalDurations), dur)
		s.LastSubConfirmationTimeSeconds = elapsed
		s.NextSubDueTimeSeconds += s.SubIntervalMinutes * 60
		s.SubAlertLevel = AlertNone
		return s

	case SetSubInterval:
		if act.Minutes <= 0 {
			return s
		}
		s.SubIntervalMinutes = act.Minutes
		s.NextSubDueTimeSeconds = s.LastSubConfirmationTimeSeconds + act.Minutes*60
		s.SubAlertLevel = alertLevel(s.TimeElapsedInSeconds, s.NextSubDueTimeSeconds, s.SubWarningSeconds)
		return s

	case LoadPersistedGameData:
		next := applyPayload(NewInitialState(), act.Data)
		// storage never supplies a live anchor
		next.IsTimerRunning = false
		next.StartTimestampMillis = 0
		next.SubAlertLevel = alertLevel(next.TimeElapsedInSeconds, next.NextSubDueTimeSeconds, next.SubWarningSeconds)
		return next

	case ResetToInitialState:
		return NewInitialState()

	case ResetGameSessionState:
		next := applyPayload(NewInitialState(), act.Data)
		next.TimeElapsedInSeconds = 0
		next.IsTimerRunning = false
		next.StartTimestampMillis = 0
		next.NextSubDueTimeSeconds = next.SubIntervalMinutes * 60
		next.SubAlertLevel = AlertNone
		next.LastSubConfirmationTimeSeconds = 0
		next.CompletedIntervalDurations = nil
		return next
	}

	return s
}

func adjustScore(s GameSessionState, et EventType, op ScoreOp) GameSessionState {
	// periodEnd/gameEnd events carry no score effect
	if et != EventGoal && et != EventOpponentGoal {
		return s
	}

	ownIsHome := s.HomeOrAway != "away"
	incHome := (et == EventGoal) == ownIsHome

	delta := 1
	if op == ScoreDelete {
		delta = -1
	}

	if incHome {
		s.HomeScore = clampNonNegative(s.HomeScore + delta)
	} else {
		s.AwayScore = clampNonNegative(s.AwayScore + delta)
	}
	return s
}

func alertLevel(elapsed, dueAt, warningWindow int) SubAlertLevel {
	switch {
	case elapsed >= dueAt:
		return AlertDue
	case elapsed >= dueAt-warningWindow:
		return AlertWarning
	default:
		return AlertNone
	}
}

func applyPayload(base GameSessionState, p GamePayload) GameSessionState {
	setString := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	setInt := func(dst *int, src *int) {
		if src != nil {
			*dst = *src
		}
	}

	setString(&base.TeamName, p.TeamName)
	setString(&base.OpponentName, p.OpponentName)
	setString(&base.HomeOrAway, p.HomeOrAway)
	setString(&base.GameDate, p.GameDate)
	setString(&base.GameLocation, p.GameLocation)
	setString(&base.GameTime, p.GameTime)
	setString(&base.SeasonID, p.SeasonID)
	setString(&base.TournamentID, p.TournamentID)
	setString(&base.AgeGroup, p.AgeGroup)
	setString(&base.TournamentLevel, p.TournamentLevel)

	setInt(&base.NumberOfPeriods, p.NumberOfPeriods)
	setInt(&base.PeriodDurationMinutes, p.PeriodDurationMinutes)
	setInt(&base.CurrentPeriod, p.CurrentPeriod)
	if p.GameStatus != nil {
		base.GameStatus = *p.GameStatus
	}

	setInt(&base.HomeScore, p.HomeScore)
	setInt(&base.AwayScore, p.AwayScore)

	if p.SelectedPlayerIDs != nil {
		base.SelectedPlayerIDs = dedupe(p.SelectedPlayerIDs)
	}
	if p.GameEvents != nil {
		base.GameEvents = copyEvents(p.GameEvents)
	}

	setInt(&base.TimeElapsedInSeconds, p.TimeElapsedInSeconds)
	setInt(&base.SubIntervalMinutes, p.SubIntervalMinutes)
	setInt(&base.SubWarningSeconds, p.SubWarningSeconds)
	if p.NextSubDueTimeSeconds != nil {
		base.NextSubDueTimeSeconds = *p.NextSubDueTimeSeconds
	} else if p.SubIntervalMinutes != nil {
		base.NextSubDueTimeSeconds = *p.SubIntervalMinutes * 60
	}
	setInt(&base.LastSubConfirmationTimeSeconds, p.LastSubConfirmationTimeSeconds)
	if p.CompletedIntervalDurations != nil {
		base.CompletedIntervalDurations = copyInts(p.CompletedIntervalDurations)
	}

	// season and tournament stay mutually exclusive even if the payload
	// carries both
	if base.SeasonID != "" && base.TournamentID != "" {
		if p.TournamentID != nil && *p.TournamentID != "" {
			base.SeasonID = ""
		} else {
			base.TournamentID = ""
		}
	}

	return base
}

func clampNonNegative(n int) int {
	if n < 0 {
		return 0
	}
	return n
}

func copyEvents(in []GameEvent) []GameEvent {
	return append([]GameEvent(nil), in...)
}

func copyInts(in []int) []int {
	return append([]int(nil), in...)
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
