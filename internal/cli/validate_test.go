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

const validConfig = `confidence_threshold: 0.4
kinds:
  Item:
    pk_fields: [token, owner]
    key_fields: [token, name]
    field_types:
      owner: reference
    cache:
      enabled: true
      ttl_ms: 30000
  Player:
    key_fields: [name]
`

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func runValidateCmd(t *testing.T, format string, args ...string) (*bytes.Buffer, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewValidateCommand(&RootOptions{Format: format})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	return buf, cmd.Execute()
}

func TestValidateValidConfig(t *testing.T) {
	path := writeConfig(t, "canon.yaml", validConfig)

	buf, err := runValidateCmd(t, "text", path)
	require.NoError(t, err)

	output := buf.String()
	assert.Contains(t, output, "✓ Config valid (2 kind(s))")
	assert.Contains(t, output, "Item pk=[token owner] keys=[token name] cached=true")
	assert.Contains(t, output, "Player")
}

func TestValidateValidConfigJSON(t *testing.T) {
	path := writeConfig(t, "canon.yaml", validConfig)

	buf, err := runValidateCmd(t, "json", path)
	require.NoError(t, err)

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.Valid)
	require.Len(t, resp.Data.Kinds, 2)
	assert.Equal(t, "Item", resp.Data.Kinds[0].Name)
	assert.True(t, resp.Data.Kinds[0].Cached)
	assert.False(t, resp.Data.Kinds[1].Cached)
}

func TestValidateCUEConfig(t *testing.T) {
	path := writeConfig(t, "canon.cue", `kinds: Item: {
	pk_fields: ["token"]
	cache: enabled: true
}
`)

	buf, err := runValidateCmd(t, "text", path)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "✓ Config valid (1 kind(s))")
}

func TestValidateNonExistentFile(t *testing.T) {
	buf, err := runValidateCmd(t, "text", "/nonexistent/canon.yaml")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, buf.String(), "config file not found")
}

func TestValidateInvalidConfig(t *testing.T) {
	tests := []struct {
		name    string
		content string
		field   string
	}{
		{"threshold out of range", "confidence_threshold: 1.5\n", "confidence_threshold"},
		{"bad field name", "kinds:\n  Item:\n    pk_fields: [\"$where\"]\n", "kinds.Item.pk_fields"},
		{"unknown type", "kinds:\n  Item:\n    field_types:\n      owner: date\n", "kinds.Item.field_types.owner"},
		{"negative ttl", "kinds:\n  Item:\n    cache:\n      ttl_ms: -1\n", "kinds.Item.cache.ttl_ms"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, "canon.yaml", tt.content)

			buf, err := runValidateCmd(t, "text", path)
			require.Error(t, err)
			assert.Equal(t, ExitFailure, GetExitCode(err))
			assert.Contains(t, buf.String(), "✗ Config invalid")
			assert.Contains(t, buf.String(), "field: "+tt.field)
		})
	}
}

func TestValidateInvalidConfigJSON(t *testing.T) {
	path := writeConfig(t, "canon.yaml", "ambiguity_delta: -0.1\n")

	buf, err := runValidateCmd(t, "json", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
		Error  *CLIError        `json:"error"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.False(t, resp.Data.Valid)
	assert.Equal(t, "ambiguity_delta", resp.Data.Field)
	assert.Equal(t, ErrCodeConfig, resp.Error.Code)
}

func TestValidateUnknownKey(t *testing.T) {
	path := writeConfig(t, "canon.yaml", "kinds:\n  Item:\n    pk_field: [token]\n")

	buf, err := runValidateCmd(t, "text", path)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, buf.String(), "pk_field")
}
