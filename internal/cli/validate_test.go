package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tardisdcr/tardis/internal/lang"
	"github.com/tardisdcr/tardis/internal/project"
)

func TestValidateSource(t *testing.T) {
	path := writeSource(t, approvalSource)

	stdout, _, err := runCommand(t, "--format", "json", "validate", path)
	require.NoError(t, err)

	var result ValidationResult
	resp := decodeResponse(t, stdout, &result)
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, result.Valid)
	assert.Equal(t, 3, result.Events)
	assert.Equal(t, 2, result.Relations)
	assert.Equal(t, 0, result.Scopes)
}

func TestValidateProjectFile(t *testing.T) {
	g, err := lang.Parse(approvalSource)
	require.NoError(t, err)
	data, err := project.Marshal(g, approvalSource)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "flow.json")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	stdout, _, err := runCommand(t, "--format", "json", "validate", path)
	require.NoError(t, err)

	var result ValidationResult
	decodeResponse(t, stdout, &result)
	assert.True(t, result.Valid)
	assert.Equal(t, 3, result.Events)
}

func TestValidateReportsParseError(t *testing.T) {
	path := writeSource(t, "Author\n;\npublic\n;\nbroken !!\n;\n")

	stdout, _, err := runCommand(t, "--format", "json", "validate", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	resp := decodeResponse(t, stdout, nil)
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, CodeParseError, resp.Error.Code)
}
