package trace

import "sort"

// StageSummary aggregates the invocations of one stage name across streams.
type StageSummary struct {
	Invocations  int
	Forwarded    int
	Signalled    int
	Absorbed     int
	TotalService float64 // sum of End-Acquired (ms)
	MeanService  float64
}

// TraceSummary aggregates statistics from a SimulationTrace.
type TraceSummary struct {
	TotalInvocations   int
	Stages             map[string]*StageSummary
	PeakHeld           map[string]int // resource name → highest held count
	CapacityViolations int            // records with Held > Capacity; always 0 for a correct engine
}

// Summarize computes aggregate statistics from a SimulationTrace.
// Safe for nil or empty traces (returns zero-value fields).
func Summarize(st *SimulationTrace) *TraceSummary {
	summary := &TraceSummary{
		Stages:   make(map[string]*StageSummary),
		PeakHeld: make(map[string]int),
	}
	if st == nil {
		return summary
	}

	summary.TotalInvocations = len(st.Stages)
	for _, r := range st.Stages {
		s, ok := summary.Stages[r.Stage]
		if !ok {
			s = &StageSummary{}
			summary.Stages[r.Stage] = s
		}
		s.Invocations++
		switch r.Outcome {
		case OutcomeForwarded:
			s.Forwarded++
		case OutcomeSignalled:
			s.Signalled++
		case OutcomeAbsorbed:
			s.Absorbed++
		}
		s.TotalService += r.End - r.Acquired
	}
	for _, s := range summary.Stages {
		if s.Invocations > 0 {
			s.MeanService = s.TotalService / float64(s.Invocations)
		}
	}

	for _, r := range st.Resources {
		if r.Held > summary.PeakHeld[r.Resource] {
			summary.PeakHeld[r.Resource] = r.Held
		}
		if r.Held > r.Capacity {
			summary.CapacityViolations++
		}
	}

	return summary
}

// StageNames returns the summarized stage names in sorted order.
func (s *TraceSummary) StageNames() []string {
	names := make([]string, 0, len(s.Stages))
	for name := range s.Stages {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
