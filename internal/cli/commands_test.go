package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	alice = "0b7f6f5e-8f0e-4b52-9a43-6f1f3b2a9c01"
	bob   = "5d2c1a9e-3b4f-4e6d-8c7b-2a1f0e9d8c02"
)

var terraceFixtures = filepath.Join("..", "harness", "testdata", "fixtures", "terrace.yaml")

// execute runs the root command with args and returns stdout and the error.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

// seededDatabase returns a database path seeded with the terrace fixtures.
func seededDatabase(t *testing.T) string {
	t.Helper()
	db := filepath.Join(t.TempDir(), "catalogue.db")
	out, err := execute(t, "seed", "--db", db, terraceFixtures)
	require.NoError(t, err)
	require.Contains(t, out, "Seeded 2 buildings (2 geometries)")
	return db
}

// decodeRecord decodes a JSON success response into the record attributes.
func decodeRecord(t *testing.T, out string) map[string]any {
	t.Helper()
	var resp struct {
		Status string         `json:"status"`
		Data   map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	require.Equal(t, "ok", resp.Status)
	return resp.Data
}

func TestSeedCommand_Twice(t *testing.T) {
	db := seededDatabase(t)

	_, err := execute(t, "seed", "--db", db, terraceFixtures)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "failed to seed")
}

func TestSeedCommand_MissingFile(t *testing.T) {
	db := filepath.Join(t.TempDir(), "catalogue.db")
	_, err := execute(t, "seed", "--db", db, "/nonexistent/fixtures.yaml")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestShowCommand(t *testing.T) {
	db := seededDatabase(t)

	out, err := execute(t, "show", "--db", db, "1")
	require.NoError(t, err)
	assert.Contains(t, out, `location_name: "Albion Terrace"`)
	assert.Contains(t, out, "revision_id: 0")
	assert.Contains(t, out, "location_town: null")

	out, err = execute(t, "show", "--db", db, "--format", "json", "2")
	require.NoError(t, err)
	record := decodeRecord(t, out)
	assert.Equal(t, float64(4242), record["ref_osm_id"])
}

func TestShowCommand_Errors(t *testing.T) {
	db := seededDatabase(t)

	_, err := execute(t, "show", "--db", db, "99")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	_, err = execute(t, "show", "--db", db, "abc")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "must be a positive integer")
}

func TestSaveCommand_OptimisticFlow(t *testing.T) {
	db := seededDatabase(t)

	out, err := execute(t, "save", "--db", db, "--format", "json", "1",
		"--revision", "0", "--user", alice, "--fields", `{"date_year": 1850}`)
	require.NoError(t, err)
	record := decodeRecord(t, out)
	assert.Equal(t, float64(1), record["revision_id"])
	assert.Equal(t, float64(1850), record["date_year"])

	// Bob edited the same revision Alice started from.
	out, err = execute(t, "save", "--db", db, "--format", "json", "1",
		"--revision", "0", "--user", bob, "--fields", `{"date_year": 1851}`)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Status string `json:"status"`
		Error  struct {
			Code    string `json:"code"`
			Details struct {
				CurrentRevision int64 `json:"current_revision"`
			} `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, "CONFLICT", resp.Error.Code)
	assert.Equal(t, int64(1), resp.Error.Details.CurrentRevision)

	out, err = execute(t, "show", "--db", db, "1")
	require.NoError(t, err)
	assert.Contains(t, out, "date_year: 1850")
}

func TestSaveCommand_NoChange(t *testing.T) {
	db := seededDatabase(t)

	out, err := execute(t, "save", "--db", db, "1",
		"--revision", "0", "--user", alice, "--fields", `{"date_year": 1848}`)
	require.NoError(t, err)
	assert.Contains(t, out, "revision_id: 0")

	out, err = execute(t, "history", "--db", db, "1")
	require.NoError(t, err)
	assert.Contains(t, out, "Building 1 has no recorded changes.")
}

func TestSaveCommand_InvalidInput(t *testing.T) {
	db := seededDatabase(t)

	tests := []struct {
		name     string
		args     []string
		wantExit int
		wantErr  string
	}{
		{
			name:     "bad fields JSON",
			args:     []string{"--revision", "0", "--user", alice, "--fields", `{"date_year":`},
			wantExit: ExitCommandError,
			wantErr:  "invalid --fields JSON",
		},
		{
			name:     "bad user",
			args:     []string{"--revision", "0", "--user", "not-a-uuid", "--fields", `{}`},
			wantExit: ExitCommandError,
			wantErr:  "invalid --user",
		},
		{
			name:     "nil user",
			args:     []string{"--revision", "0", "--user", "00000000-0000-0000-0000-000000000000", "--fields", `{}`},
			wantExit: ExitCommandError,
			wantErr:  "nil uuid",
		},
		{
			name:     "unknown field",
			args:     []string{"--revision", "0", "--user", alice, "--fields", `{"roof_colour": "red"}`},
			wantExit: ExitFailure,
			wantErr:  "validation",
		},
		{
			name:     "wrong kind",
			args:     []string{"--revision", "0", "--user", alice, "--fields", `{"date_year": "1850"}`},
			wantExit: ExitFailure,
			wantErr:  "validation",
		},
		{
			name:     "float",
			args:     []string{"--revision", "0", "--user", alice, "--fields", `{"date_year": 1850.5}`},
			wantExit: ExitCommandError,
			wantErr:  "invalid --fields JSON",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"save", "--db", db, "1"}, tt.args...)
			_, err := execute(t, args...)
			require.Error(t, err)
			assert.Equal(t, tt.wantExit, GetExitCode(err))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSaveCommand_RequiredFlags(t *testing.T) {
	_, err := execute(t, "save", "1", "--fields", `{}`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag")
}

func TestLikeCommand(t *testing.T) {
	db := seededDatabase(t)

	out, err := execute(t, "like", "--db", db, "1", "--user", alice)
	require.NoError(t, err)
	assert.Contains(t, out, "likes_total: 1")
	assert.Contains(t, out, "revision_id: 1")

	out, err = execute(t, "like", "--db", db, "1", "--user", alice)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Error [ALREADY_ACTED]")

	out, err = execute(t, "like", "--db", db, "1", "--user", bob)
	require.NoError(t, err)
	assert.Contains(t, out, "likes_total: 2")

	_, err = execute(t, "like", "--db", db, "99", "--user", bob)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestHistoryAndRevertCommands(t *testing.T) {
	db := seededDatabase(t)

	_, err := execute(t, "save", "--db", db, "1", "--revision", "0", "--user", alice,
		"--fields", `{"date_year": 1850, "location_town": "London"}`)
	require.NoError(t, err)
	_, err = execute(t, "like", "--db", db, "1", "--user", bob)
	require.NoError(t, err)

	out, err := execute(t, "history", "--db", db, "--format", "json", "1")
	require.NoError(t, err)
	var resp struct {
		Data struct {
			BuildingID int64 `json:"building_id"`
			Entries    []struct {
				LogID   int64          `json:"log_id"`
				UserID  string         `json:"user_id"`
				Forward map[string]any `json:"forward_patch"`
				Reverse map[string]any `json:"reverse_patch"`
			} `json:"entries"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data.Entries, 2)
	assert.Equal(t, alice, resp.Data.Entries[0].UserID)
	assert.Equal(t, map[string]any{"date_year": float64(1848), "location_town": nil}, resp.Data.Entries[0].Reverse)
	assert.Nil(t, resp.Data.Entries[1].Reverse)

	// Like entries cannot be reverted.
	out, err = execute(t, "revert", "--db", db, "1", "2", "--revision", "2", "--user", bob)
	require.Error(t, err)
	assert.Contains(t, out, "Error [VALIDATION]")

	// Stale revert conflicts like any save.
	_, err = execute(t, "revert", "--db", db, "1", "1", "--revision", "1", "--user", bob)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "conflict")

	out, err = execute(t, "revert", "--db", db, "1", "1", "--revision", "2", "--user", bob)
	require.NoError(t, err)
	assert.Contains(t, out, "date_year: 1848")
	assert.Contains(t, out, "location_town: null")
	assert.Contains(t, out, "likes_total: 1")
	assert.Contains(t, out, "revision_id: 3")

	out, err = execute(t, "history", "--db", db, "1")
	require.NoError(t, err)
	assert.Contains(t, out, "History of building 1 (3 entries)")

	// Rebuild the record as it was after the first edit.
	out, err = execute(t, "show", "--db", db, "--revision", "1", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "date_year: 1850")
	assert.Contains(t, out, `location_town: "London"`)
	assert.Contains(t, out, "likes_total: 0")
	assert.Contains(t, out, "revision_id: 1")
}

func TestHistoryCommand_UnknownBuilding(t *testing.T) {
	db := seededDatabase(t)

	out, err := execute(t, "history", "--db", db, "99")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Error [NOT_FOUND]")
}

func TestConfigFile_SetsDatabase(t *testing.T) {
	db := seededDatabase(t)
	cfgPath := filepath.Join(t.TempDir(), "brickbook.cue")
	require.NoError(t, os.WriteFile(cfgPath, []byte("database: \""+db+"\"\nlog_level: \"error\"\n"), 0644))

	out, err := execute(t, "--config", cfgPath, "show", "1")
	require.NoError(t, err)
	assert.Contains(t, out, `location_name: "Albion Terrace"`)
}

func TestConfigFile_Invalid(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "brickbook.cue")
	require.NoError(t, os.WriteFile(cfgPath, []byte("like_retries: 99\n"), 0644))

	_, err := execute(t, "--config", cfgPath, "show", "1")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "failed to load config")
}
