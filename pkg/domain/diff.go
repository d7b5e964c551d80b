package domain

// SimulationDiff represents the changes between two simulations of the same session.
// It is designed to be serialized to JSON for partial updates on the client.
type SimulationDiff struct {
	// SessionID is always present to identify the target.
	SessionID string `json:"session_id"`

	RunID    *uint64  `json:"run_id,omitempty"`
	Position *int     `json:"position,omitempty"`
	Current  StateSet `json:"current,omitempty"`
	Status   *Status  `json:"status,omitempty"`
	Finished *bool    `json:"finished,omitempty"`
	Accepted *bool    `json:"accepted,omitempty"`
	DeadEnd  *bool    `json:"dead_end,omitempty"`

	// Trace carries appended snapshots, or the new length after a back step.
	Trace *TraceDelta `json:"trace,omitempty"`
}

// TraceDelta represents changes to the trace.
// Clients truncate to Length first, then append.
type TraceDelta struct {
	Length   int        `json:"length"`
	Appended []StateSet `json:"appended,omitempty"`
}

// Diff calculates the difference between oldSim and newSim.
// If oldSim is nil, it returns a diff representing the entire newSim (initial load).
// It returns nil when nothing changed.
func Diff(sessionID string, oldSim, newSim *Simulation) *SimulationDiff {
	if newSim == nil {
		return nil
	}

	diff := &SimulationDiff{SessionID: sessionID}

	if oldSim == nil || oldSim.RunID != newSim.RunID {
		diff.RunID = &newSim.RunID
	}
	if oldSim == nil || oldSim.Position != newSim.Position {
		diff.Position = &newSim.Position
	}
	if oldSim == nil || !oldSim.Current.Equal(newSim.Current) {
		diff.Current = newSim.Current.Clone()
	}
	if oldSim == nil || oldSim.Status != newSim.Status {
		diff.Status = &newSim.Status
	}
	if oldSim == nil || oldSim.Finished != newSim.Finished {
		diff.Finished = &newSim.Finished
	}
	if oldSim == nil || oldSim.Accepted != newSim.Accepted {
		diff.Accepted = &newSim.Accepted
	}
	if oldSim == nil || oldSim.DeadEnd != newSim.DeadEnd {
		diff.DeadEnd = &newSim.DeadEnd
	}

	diff.Trace = diffTrace(oldSim, newSim)

	if diff.IsEmpty() {
		return nil
	}
	return diff
}

func diffTrace(old, new *Simulation) *TraceDelta {
	if old == nil || old.RunID != new.RunID {
		return &TraceDelta{Length: 0, Appended: cloneSets(new.Trace)}
	}

	// Longest shared prefix; a reset or back step shortens it.
	common := 0
	for common < len(old.Trace) && common < len(new.Trace) && old.Trace[common].Equal(new.Trace[common]) {
		common++
	}
	if common == len(old.Trace) && common == len(new.Trace) {
		return nil
	}
	return &TraceDelta{Length: common, Appended: cloneSets(new.Trace[common:])}
}

func cloneSets(sets []StateSet) []StateSet {
	if len(sets) == 0 {
		return nil
	}
	out := make([]StateSet, len(sets))
	for i, s := range sets {
		out[i] = s.Clone()
	}
	return out
}

// IsEmpty checks if the diff contains any actionable changes.
func (d *SimulationDiff) IsEmpty() bool {
	return d.RunID == nil &&
		d.Position == nil &&
		d.Current == nil &&
		d.Status == nil &&
		d.Finished == nil &&
		d.Accepted == nil &&
		d.DeadEnd == nil &&
		d.Trace == nil
}
