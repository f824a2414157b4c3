package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSupergraphSDL = `
directive @join__graph(name: String!, url: String!) on ENUM_VALUE
directive @join__type(graph: join__Graph!, key: String) repeatable on OBJECT | INTERFACE
directive @join__field(graph: join__Graph!) repeatable on FIELD_DEFINITION

enum join__Graph {
  PRODUCTS @join__graph(name: "products", url: "http://products.internal")
}

type Query @join__type(graph: PRODUCTS) {
  hello: String @join__field(graph: PRODUCTS)
}
`

func writeTestSupergraph(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "supergraph.graphql")
	require.NoError(t, os.WriteFile(path, []byte(testSupergraphSDL), 0o644))
	return path
}

func TestRun_MissingCommand(t *testing.T) {
	err := run(nil)
	assert.Error(t, err)
}

func TestRun_UnknownCommand(t *testing.T) {
	err := run([]string{"bogus"})
	assert.Error(t, err)
}

func TestRun_ValidateSucceedsOnWellFormedSupergraph(t *testing.T) {
	path := writeTestSupergraph(t)
	err := run([]string{"validate", path})
	assert.NoError(t, err)
}

func TestRun_ValidateFailsOnMissingFile(t *testing.T) {
	err := run([]string{"validate", "/nonexistent/supergraph.graphql"})
	assert.Error(t, err)
}

func TestRun_ServeRequiresSupergraphPath(t *testing.T) {
	err := run([]string{"serve"})
	assert.Error(t, err)
}

func TestCmdHelp_Topics(t *testing.T) {
	assert.NoError(t, cmdHelp(nil))
	assert.NoError(t, cmdHelp([]string{"serve"}))
	assert.NoError(t, cmdHelp([]string{"validate"}))
	assert.Error(t, cmdHelp([]string{"bogus"}))
}
