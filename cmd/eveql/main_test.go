package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rpattn/eveql/internal/parser"
	"github.com/rpattn/eveql/internal/query"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append([]string{"--config", t.TempDir()}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestExplainCommand(t *testing.T) {
	out, err := run(t, "explain", "--where", `firstname == "Barack" or lastname == "Obama"`, "--sort", "-born", "--max-results", "5")
	require.NoError(t, err)

	var explanation query.Explanation
	require.NoError(t, json.Unmarshal([]byte(out), &explanation))
	assert.Equal(t, []string{"people.firstname = 'Barack' OR people.lastname = 'Obama'"}, explanation.Filters)
	assert.Contains(t, explanation.SQL, "ORDER BY people.born DESC LIMIT 5")
}

func TestExplainCommandRejectsUnsupportedExpression(t *testing.T) {
	_, err := run(t, "explain", "--where", "a | 2")
	require.Error(t, err)
	assert.True(t, parser.IsParseError(err))
}

func TestExplainCommandUnknownResource(t *testing.T) {
	_, err := run(t, "explain", "accounts")
	assert.ErrorIs(t, err, query.ErrUnknownResource)
}

func TestExplainCommandAppliesSchemaOverrides(t *testing.T) {
	dir := t.TempDir()
	content := "resources:\n  people:\n    schema:\n      born:\n        type: integer\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0644))

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--config", dir, "explain"})
	assert.ErrorContains(t, cmd.Execute(), "invalid schema for people")
}

func TestInvalidLogLevel(t *testing.T) {
	_, err := run(t, "--log-level", "loud", "explain")
	assert.Error(t, err)
}
