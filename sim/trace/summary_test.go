package trace

import (
	"math"
	"testing"
)

func TestSummarize_EmptyTrace_ZeroValues(t *testing.T) {
	// GIVEN an empty trace
	st := NewSimulationTrace(TraceConfig{Level: TraceLevelStages})

	// WHEN summarized
	summary := Summarize(st)

	// THEN all counts are zero
	if summary.TotalInvocations != 0 {
		t.Errorf("expected 0 invocations, got %d", summary.TotalInvocations)
	}
	if len(summary.Stages) != 0 || len(summary.PeakHeld) != 0 {
		t.Error("expected empty maps")
	}
	if summary.CapacityViolations != 0 {
		t.Errorf("expected 0 violations, got %d", summary.CapacityViolations)
	}
}

func TestSummarize_NilTrace_ZeroValues(t *testing.T) {
	summary := Summarize(nil)
	if summary.TotalInvocations != 0 || summary.Stages == nil {
		t.Error("expected zero-value summary with initialized maps")
	}
}

func TestSummarize_PopulatedTrace_CorrectCounts(t *testing.T) {
	// GIVEN a trace with mixed outcomes
	st := NewSimulationTrace(TraceConfig{Level: TraceLevelStages})
	st.RecordStage(StageRecord{Stage: "join", Acquired: 0, End: 0, Outcome: OutcomeAbsorbed})
	st.RecordStage(StageRecord{Stage: "join", Acquired: 1, End: 3, Outcome: OutcomeSignalled})
	st.RecordStage(StageRecord{Stage: "decoder", Acquired: 0, End: 4, Outcome: OutcomeForwarded})
	st.RecordStage(StageRecord{Stage: "decoder", Acquired: 4, End: 6, Outcome: OutcomeForwarded})

	// WHEN summarized
	summary := Summarize(st)

	// THEN counts and service means match
	if summary.TotalInvocations != 4 {
		t.Errorf("expected 4 invocations, got %d", summary.TotalInvocations)
	}
	join := summary.Stages["join"]
	if join.Absorbed != 1 || join.Signalled != 1 || join.Forwarded != 0 {
		t.Errorf("join outcomes = %+v", join)
	}
	dec := summary.Stages["decoder"]
	if dec.Forwarded != 2 {
		t.Errorf("expected decoder forwarded 2, got %d", dec.Forwarded)
	}
	if math.Abs(dec.MeanService-3) > 1e-9 {
		t.Errorf("expected decoder mean service 3, got %f", dec.MeanService)
	}
	names := summary.StageNames()
	if len(names) != 2 || names[0] != "decoder" || names[1] != "join" {
		t.Errorf("StageNames() = %v", names)
	}
}

func TestSummarize_ResourceRecords_PeakAndViolations(t *testing.T) {
	// GIVEN resource records including a synthetic over-allocation
	st := NewSimulationTrace(TraceConfig{Level: TraceLevelStages})
	st.RecordResource(ResourceRecord{Resource: "cpu", Op: OpGrant, Held: 1, Capacity: 2})
	st.RecordResource(ResourceRecord{Resource: "cpu", Op: OpGrant, Held: 2, Capacity: 2})
	st.RecordResource(ResourceRecord{Resource: "gpu", Op: OpGrant, Held: 2, Capacity: 1})

	// WHEN summarized
	summary := Summarize(st)

	// THEN peaks are per resource and the violation is counted
	if summary.PeakHeld["cpu"] != 2 {
		t.Errorf("expected cpu peak 2, got %d", summary.PeakHeld["cpu"])
	}
	if summary.CapacityViolations != 1 {
		t.Errorf("expected 1 violation, got %d", summary.CapacityViolations)
	}
}
