package cmd

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/whitecross/gateway/internal/endpoints"
)

func runEndpoints(t *testing.T, format string) (string, error) {
	t.Helper()
	root := newTestRootCommand()
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs([]string{"endpoints", "--format", format})
	t.Cleanup(func() { endpointsFormat = "table" })
	err := root.Execute()
	return buf.String(), err
}

func TestEndpointsCommand_Table(t *testing.T) {
	out, err := runEndpoints(t, "table")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, len(endpoints.All())+1)
	assert.True(t, strings.HasPrefix(lines[0], "NAME"))
	assert.Contains(t, out, "/auth/login")
	assert.Contains(t, out, "GET,PUT,DELETE")
}

func TestEndpointsCommand_JSON(t *testing.T) {
	out, err := runEndpoints(t, "json")
	require.NoError(t, err)

	var got []endpoints.Endpoint
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, endpoints.All(), got)
}

func TestEndpointsCommand_YAML(t *testing.T) {
	out, err := runEndpoints(t, "yaml")
	require.NoError(t, err)

	var got []endpoints.Endpoint
	require.NoError(t, yaml.Unmarshal([]byte(out), &got))
	assert.Equal(t, endpoints.All(), got)
}

func TestEndpointsCommand_UnknownFormat(t *testing.T) {
	_, err := runEndpoints(t, "xml")
	require.ErrorContains(t, err, "unsupported format")
}
