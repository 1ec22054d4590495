package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadScenario_ValidFile(t *testing.T) {
	scenario, err := LoadScenario(filepath.Join("testdata", "scenarios", "stale-save-conflicts.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "stale-save-conflicts", scenario.Name)
	assert.NotEmpty(t, scenario.Description)
	require.Len(t, scenario.Fixtures.Buildings, 1)
	assert.Equal(t, 3, scenario.Fixtures.Buildings[0].Fields["size_storeys_core"])

	require.Len(t, scenario.Steps, 3)
	assert.Equal(t, ActionSave, scenario.Steps[0].Action)
	require.NotNil(t, scenario.Steps[0].Revision)
	assert.Equal(t, int64(0), *scenario.Steps[0].Revision)
	assert.Nil(t, scenario.Steps[2].Revision)
	assert.Equal(t, OutcomeConflict, scenario.Steps[1].Expect)

	require.Len(t, scenario.Assertions, 1)
	require.NotNil(t, scenario.Assertions[0].LogLength)
	assert.Equal(t, 2, *scenario.Assertions[0].LogLength)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestParseScenario_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "malformed YAML",
			content: "name: [unclosed",
			wantErr: "failed to parse YAML",
		},
		{
			name: "unknown field",
			content: `
name: typo
steps:
  - {action: like, building: 1, user: 1, expect: ok}
assertion:
  - building: 1
`,
			wantErr: "field assertion not found",
		},
		{
			name:    "missing name",
			content: "steps:\n  - {action: like, building: 1, user: 1, expect: ok}\n",
			wantErr: "name is required",
		},
		{
			name:    "no steps",
			content: "name: empty\n",
			wantErr: "at least one step",
		},
		{
			name:    "unknown action",
			content: "name: x\nsteps:\n  - {action: delete, building: 1, user: 1, expect: ok}\n",
			wantErr: `unknown action "delete"`,
		},
		{
			name:    "revert without log id",
			content: "name: x\nsteps:\n  - {action: revert, building: 1, user: 1, expect: ok}\n",
			wantErr: "log_id is required",
		},
		{
			name:    "missing building",
			content: "name: x\nsteps:\n  - {action: like, user: 1, expect: ok}\n",
			wantErr: "building is required",
		},
		{
			name:    "negative user",
			content: "name: x\nsteps:\n  - {action: like, building: 1, user: -1, expect: ok}\n",
			wantErr: "user must be non-negative",
		},
		{
			name:    "unknown outcome",
			content: "name: x\nsteps:\n  - {action: like, building: 1, user: 1, expect: maybe}\n",
			wantErr: "expect must be one of",
		},
		{
			name:    "result on failing step",
			content: "name: x\nsteps:\n  - {action: like, building: 1, user: 1, expect: conflict, result: {likes_total: 1}}\n",
			wantErr: "result can only be checked",
		},
		{
			name:    "parallel without counts",
			content: "name: x\nsteps:\n  - {action: like, building: 1, user: 1, parallel: 3}\n",
			wantErr: "expect_counts is required",
		},
		{
			name:    "parallel counts do not add up",
			content: "name: x\nsteps:\n  - {action: like, building: 1, user: 1, parallel: 3, expect_counts: {ok: 2}}\n",
			wantErr: "expect_counts sum to 2, parallel is 3",
		},
		{
			name:    "parallel unknown outcome",
			content: "name: x\nsteps:\n  - {action: like, building: 1, user: 1, parallel: 1, expect: ok}\n  - {action: like, building: 1, user: 2, parallel: 2, expect_counts: {won: 2}}\n",
			wantErr: `unknown outcome "won"`,
		},
		{
			name:    "assertion without building",
			content: "name: x\nsteps:\n  - {action: like, building: 1, user: 1, expect: ok}\nassertions:\n  - {revision: 1}\n",
			wantErr: "assertions[0]: building is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadFixtures(t *testing.T) {
	set, err := LoadFixtures(filepath.Join("testdata", "fixtures", "terrace.yaml"))
	require.NoError(t, err)

	require.Len(t, set.Geometries, 1)
	assert.Equal(t, int64(100), set.Geometries[0].ID)
	assert.InDelta(t, 51.5080, set.Geometries[0].MaxLat, 1e-9)

	require.Len(t, set.Buildings, 2)
	assert.Equal(t, int64(100), set.Buildings[0].GeometryID)
	assert.Equal(t, "osgb1000005", set.Buildings[0].Fields["ref_toid"])
	assert.Zero(t, set.Buildings[1].GeometryID)
}

func TestLoadFixtures_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"empty", "geometries: []\n", "no buildings"},
		{"unknown field", "buildings:\n  - {building_id: 1, storeys: 3}\n", "field storeys not found"},
		{"malformed", "buildings: {", "failed to parse YAML"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "fixtures.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0644))

			_, err := LoadFixtures(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
