package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalScenario = `
name: minimal
description: "one item, one cycle"
steps:
  - enqueue: { type: note, payload: { id: n1 } }
  - sync: {}
assertions:
  - type: queue_length
    count: 0
`

func TestLoadScenario(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/scenario_b.yaml")
	require.NoError(t, err)

	assert.Equal(t, "scenario_b", s.Name)
	assert.Equal(t, 2, s.Options.RetryAttempts)
	require.Len(t, s.Steps, 4)
	assert.Equal(t, "enqueue", s.Steps[0].action())
	assert.Equal(t, "note", s.Steps[0].Enqueue.Type)
	assert.Equal(t, "fail", s.Steps[2].action())
	assert.Equal(t, "remote down", s.Steps[2].Fail.Reason)

	sync := s.Steps[3].Sync
	require.NotNil(t, sync)
	require.NotNil(t, sync.Expect)
	require.NotNil(t, sync.Expect.Success)
	assert.False(t, *sync.Expect.Success)
	assert.Equal(t, 1, *sync.Expect.Errors)
	assert.Equal(t, 0, *sync.Expect.Conflicts)
}

func TestLoadScenario_Missing(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestParseScenario_Minimal(t *testing.T) {
	s, err := ParseScenario([]byte(minimalScenario))
	require.NoError(t, err)
	assert.Equal(t, "sync", s.Steps[1].action())
	assert.Nil(t, s.Steps[1].Sync.Expect)
}

func TestParseScenario_UnknownField(t *testing.T) {
	_, err := ParseScenario([]byte(minimalScenario + "assertion: []\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestParseScenario_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "missing name",
			yaml:    "description: d\nsteps: [{heal: item-1}]\nassertions: [{type: queue_length}]\n",
			wantErr: "name is required",
		},
		{
			name:    "missing description",
			yaml:    "name: n\nsteps: [{heal: item-1}]\nassertions: [{type: queue_length}]\n",
			wantErr: "description is required",
		},
		{
			name:    "no steps",
			yaml:    "name: n\ndescription: d\nassertions: [{type: queue_length}]\n",
			wantErr: "steps list is required",
		},
		{
			name:    "no assertions",
			yaml:    "name: n\ndescription: d\nsteps: [{heal: item-1}]\n",
			wantErr: "assertions list is required",
		},
		{
			name:    "bad policy",
			yaml:    "name: n\ndescription: d\noptions: {policy: newest}\nsteps: [{heal: item-1}]\nassertions: [{type: queue_length}]\n",
			wantErr: "options.policy",
		},
		{
			name:    "two actions in one step",
			yaml:    "name: n\ndescription: d\nsteps: [{heal: item-1, sync: {}}]\nassertions: [{type: queue_length}]\n",
			wantErr: "exactly one action",
		},
		{
			name:    "empty step",
			yaml:    "name: n\ndescription: d\nsteps: [{}]\nassertions: [{type: queue_length}]\n",
			wantErr: "exactly one action",
		},
		{
			name:    "unknown item type",
			yaml:    "name: n\ndescription: d\nsteps: [{enqueue: {type: video}}]\nassertions: [{type: queue_length}]\n",
			wantErr: "steps[0].enqueue",
		},
		{
			name:    "manual is not a resolution",
			yaml:    "name: n\ndescription: d\nsteps: [{resolve: {item: item-1, resolution: manual}}]\nassertions: [{type: queue_length}]\n",
			wantErr: "resolution must be local, remote or merge",
		},
		{
			name:    "unknown remote type",
			yaml:    "name: n\ndescription: d\nremote: [{type: video, key: k}]\nsteps: [{heal: item-1}]\nassertions: [{type: queue_length}]\n",
			wantErr: "remote[0]",
		},
		{
			name:    "unknown assertion",
			yaml:    "name: n\ndescription: d\nsteps: [{heal: item-1}]\nassertions: [{type: trace_contains}]\n",
			wantErr: "unknown assertion type",
		},
		{
			name:    "remote_record without expect",
			yaml:    "name: n\ndescription: d\nsteps: [{heal: item-1}]\nassertions: [{type: remote_record, item_type: note, key: n1}]\n",
			wantErr: "required for remote_record",
		},
		{
			name:    "queue_item without version",
			yaml:    "name: n\ndescription: d\nsteps: [{heal: item-1}]\nassertions: [{type: queue_item, item: item-1}]\n",
			wantErr: "required for queue_item",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadScenario_AllTestdataValid(t *testing.T) {
	entries, err := os.ReadDir("testdata/scenarios")
	require.NoError(t, err)
	require.NotEmpty(t, entries)

	for _, e := range entries {
		t.Run(e.Name(), func(t *testing.T) {
			_, err := LoadScenario(filepath.Join("testdata/scenarios", e.Name()))
			assert.NoError(t, err)
		})
	}
}
