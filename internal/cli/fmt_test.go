package cli

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFmtPrintsCanonicalForm(t *testing.T) {
	// Extra whitespace and blank lines disappear in the canonical form.
	path := writeSource(t, "Author\n;\npublic\n;\n(read:   readDocument)(public)[?][Author]\n;\n")

	stdout, _, err := runCommand(t, "fmt", path)
	require.NoError(t, err)
	assert.Contains(t, stdout, "(read: readDocument)(public)[?][Author]")
}

func TestFmtWriteRewritesInPlace(t *testing.T) {
	path := writeSource(t, approvalSource)

	_, _, err := runCommand(t, "fmt", "-w", path)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "read -->* submit")

	// Formatting is a fixpoint: a second run leaves the file unchanged.
	_, _, err = runCommand(t, "fmt", "-w", path)
	require.NoError(t, err)
	again, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, string(data), string(again))
}

func TestFmtParseErrorCarriesLine(t *testing.T) {
	path := writeSource(t, "Author\n;\npublic\n;\nnot an event line\n;\n")

	stdout, _, err := runCommand(t, "--format", "json", "fmt", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	resp := decodeResponse(t, stdout, nil)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeParseError, resp.Error.Code)
	assert.True(t, strings.Contains(resp.Error.Message, "line 5"), "message: %s", resp.Error.Message)
}

func TestFmtMissingFile(t *testing.T) {
	_, _, err := runCommand(t, "fmt", "no/such/file.tardisdcr")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
