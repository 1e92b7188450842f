package sim

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTopology_Validate_Errors(t *testing.T) {
	cases := []struct {
		name      string
		topo      Topology
		undefined bool
	}{
		{"no stages", Topology{Entry: "a"}, false},
		{"empty name", Topology{Entry: "a", Stages: []StageSpec{{Kind: KindPlain}}}, false},
		{"duplicate", Topology{Entry: "a", Stages: []StageSpec{{Name: "a", Kind: KindPlain}, {Name: "a", Kind: KindPlain}}}, false},
		{"undefined entry", Topology{Entry: "x", Stages: []StageSpec{{Name: "a", Kind: KindPlain}}}, true},
		{"undefined successor", Topology{Entry: "a", Stages: []StageSpec{{Name: "a", Kind: KindPlain, Next: []string{"b"}}}}, true},
		{"undefined port successor", Topology{Entry: "a", Stages: []StageSpec{
			{Name: "a", Kind: KindFrameSelector, Stride: 1, Ports: [][]string{{}, {"b"}}}}}, true},
		{"unknown kind", Topology{Entry: "a", Stages: []StageSpec{{Name: "a", Kind: "fpga"}}}, false},
		{"unknown mutex", Topology{Entry: "a", Stages: []StageSpec{{Name: "a", Kind: KindMutex, Mutex: "db"}}}, false},
		{"zero threshold", Topology{Entry: "a", Stages: []StageSpec{{Name: "a", Kind: KindBuffer}}}, false},
		{"zero stride", Topology{Entry: "a", Stages: []StageSpec{{Name: "a", Kind: KindFrameSelector}}}, false},
		{"ports on plain", Topology{Entry: "a", Stages: []StageSpec{{Name: "a", Kind: KindPlain, Ports: [][]string{{"a"}}}}}, false},
		{"next on router", Topology{Entry: "a", Stages: []StageSpec{{Name: "a", Kind: KindCacheSearcher, Next: []string{"a"}}}}, false},
		{"too many ports", Topology{Entry: "a", Stages: []StageSpec{
			{Name: "a", Kind: KindCacheSearcher, Ports: [][]string{{}, {}, {}}}}}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.topo.Validate()
			require.Error(t, err)
			assert.Equal(t, tc.undefined, errors.Is(err, ErrUndefinedStage), "error: %v", err)
		})
	}
}

func TestVideoTrackingTopology_IsValid(t *testing.T) {
	for _, extended := range []bool{false, true} {
		topo := VideoTrackingTopology(extended)
		assert.NoError(t, topo.Validate())
		assert.Equal(t, "decoder", topo.Entry)
	}
	_, ok := VideoTrackingTopology(false).Stage("gate_state_detector")
	assert.False(t, ok, "gate branch only exists when extended")
}

func TestDistributionKeysFor_IdealCacheSkipsCacheStages(t *testing.T) {
	topo := VideoTrackingTopology(false)
	assert.Equal(t, topo.DistributionKeys(), topo.DistributionKeysFor(CacheRealFull))
	ideal := topo.DistributionKeysFor(CacheIdealFull)
	assert.NotContains(t, ideal, "nn_cache_searcher")
	assert.NotContains(t, ideal, "nn_cache_writer")
	assert.Contains(t, ideal, "nn_inferencer")
	assert.Len(t, ideal, len(topo.DistributionKeys())-2)
}

func TestParseTopology_ValidYAML(t *testing.T) {
	data := []byte(`
entry: decode
stages:
  - name: decode
    kind: plain
    next: [select]
  - name: select
    kind: frame_selector
    stride: 2
    ports: [[infer], [join]]
  - name: infer
    kind: gpu
    compile_distribution: warmup
    next: [join]
  - name: join
    kind: buffer
    threshold: 1
`)
	topo, err := ParseTopology(data)
	require.NoError(t, err)
	assert.Equal(t, "decode", topo.Entry)
	require.Len(t, topo.Stages, 4)
	assert.Equal(t, [][]string{{"infer"}, {"join"}}, topo.Stages[1].Ports)
	assert.Equal(t, []string{"decode", "infer", "join", "select", "warmup"}, topo.DistributionKeys())
}

func TestParseTopology_UnknownField_ReturnsError(t *testing.T) {
	_, err := ParseTopology([]byte("entry: a\nstages:\n  - name: a\n    kind: plain\n    treshold: 2\n"))
	assert.Error(t, err)
}

func TestParseTopology_InvalidGraph_ReturnsUndefinedStage(t *testing.T) {
	_, err := ParseTopology([]byte("entry: a\nstages:\n  - name: a\n    kind: plain\n    next: [b]\n"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUndefinedStage))
}

func TestLoadTopology_ReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "topology.yaml")
	require.NoError(t, os.WriteFile(path, []byte("entry: a\nstages:\n  - name: a\n    kind: plain\n"), 0644))
	topo, err := LoadTopology(path)
	require.NoError(t, err)
	assert.Len(t, topo.Stages, 1)

	_, err = LoadTopology(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
