package trace

// TraceLevel controls the verbosity of execution tracing.
type TraceLevel string

const (
	// TraceLevelNone disables tracing (zero overhead).
	TraceLevelNone TraceLevel = "none"
	// TraceLevelStages captures stage invocations and pool transitions.
	TraceLevelStages TraceLevel = "stages"
)

// validTraceLevels maps accepted trace level strings.
var validTraceLevels = map[TraceLevel]bool{
	TraceLevelNone:   true,
	TraceLevelStages: true,
	"":               true, // empty defaults to none
}

// IsValidTraceLevel returns true if the given level string is a recognized trace level.
func IsValidTraceLevel(level string) bool {
	return validTraceLevels[TraceLevel(level)]
}

// TraceConfig controls trace collection behavior.
type TraceConfig struct {
	Level TraceLevel
}

// SimulationTrace collects execution records during a single run.
// Stage and resource records share one ordering counter so their relative
// order can be reconstructed.
type SimulationTrace struct {
	Config    TraceConfig
	Stages    []StageRecord
	Resources []ResourceRecord
	order     uint64
}

// NewSimulationTrace creates a SimulationTrace ready for recording.
func NewSimulationTrace(config TraceConfig) *SimulationTrace {
	return &SimulationTrace{
		Config:    config,
		Stages:    make([]StageRecord, 0),
		Resources: make([]ResourceRecord, 0),
	}
}

// Enabled reports whether records should be collected.
func (st *SimulationTrace) Enabled() bool {
	return st != nil && st.Config.Level == TraceLevelStages
}

// RecordStage appends a stage invocation record.
func (st *SimulationTrace) RecordStage(record StageRecord) {
	if !st.Enabled() {
		return
	}
	st.order++
	record.Order = st.order
	st.Stages = append(st.Stages, record)
}

// RecordResource appends a pool transition record.
func (st *SimulationTrace) RecordResource(record ResourceRecord) {
	if !st.Enabled() {
		return
	}
	st.order++
	record.Order = st.order
	st.Resources = append(st.Resources, record)
}
