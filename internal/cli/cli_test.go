package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const approvalSource = `Author
Reviewer
;
public
;
(read: readDocument)(public)[?][Author]
(submit: submitDocument)(public)[?][Author -> Reviewer]
(accept: acceptDocument)(public)[?][Reviewer]
;
read -->* submit
submit *--> accept
`

func writeSource(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "flow.tardisdcr")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

// runCommand executes the CLI with the given args and captures output.
func runCommand(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	cmd := NewRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err = cmd.Execute()
	return out.String(), errOut.String(), err
}

// decodeResponse parses the JSON envelope into the given data shape.
func decodeResponse(t *testing.T, raw string, data any) Response {
	t.Helper()
	var resp struct {
		Status string          `json:"status"`
		Data   json.RawMessage `json:"data"`
		Error  *ResponseError  `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(raw), &resp))
	if data != nil && len(resp.Data) > 0 {
		require.NoError(t, json.Unmarshal(resp.Data, data))
	}
	return Response{Status: resp.Status, Error: resp.Error}
}
