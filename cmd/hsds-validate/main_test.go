package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const servicesCSV = `id,organization_id,name,status,email
6b1f2c1e-8a55-4e39-a5b4-3c1d4f1f0a01,0f0e6d3a-62c4-4d84-9d3b-2a2f8f0e9c12,Food pantry,active,a@b.com
6b1f2c1e-8a55-4e39-a5b4-3c1d4f1f0a02,0f0e6d3a-62c4-4d84-9d3b-2a2f8f0e9c12,Shelter,active,bad
6b1f2c1e-8a55-4e39-a5b4-3c1d4f1f0a03,0f0e6d3a-62c4-4d84-9d3b-2a2f8f0e9c12,Clinic,paused,c@d.com
`

// execute runs the CLI with fresh flag values and captures its output.
func execute(t *testing.T, stdin string, args ...string) (int, string, string) {
	t.Helper()
	validateFlags.headersRow = "1"
	validateFlags.delimiter = ""
	validateFlags.format = "text"
	schemaDir = ""
	verbose = false

	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetIn(strings.NewReader(stdin))
	code := run(args)
	return code, out.String(), errOut.String()
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestValidate_InvalidFile(t *testing.T) {
	code, out, _ := execute(t, "", "validate", "service", writeFile(t, "services.csv", servicesCSV))

	assert.Equal(t, 1, code)
	assert.Contains(t, out, "row 3, col 5:")
	assert.Contains(t, out, "row 4, col 4:")
	assert.Contains(t, out, "2 error(s)")
}

func TestValidate_StdinJSON(t *testing.T) {
	lines := strings.Split(servicesCSV, "\n")
	code, out, _ := execute(t, strings.Join(lines[:2], "\n")+"\n", "validate", "service", "-", "--format", "json")

	assert.Equal(t, 0, code)
	assert.JSONEq(t, `{"valid":true,"errors":[]}`, out)
}

func TestValidate_AutoHeader(t *testing.T) {
	path := writeFile(t, "services.csv", "exported 2024-01-01,\n"+servicesCSV)
	code, out, _ := execute(t, "", "validate", "service", path, "--headers-row", "auto")

	assert.Equal(t, 1, code)
	assert.Contains(t, out, "row 4, col 5:")
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"unknown type", []string{"validate", "widget", "x.csv"}, "unsupported resource type"},
		{"missing file", []string{"validate", "service", "/does/not/exist.csv"}, "exist.csv"},
		{"bad headers row", []string{"validate", "service", "-", "--headers-row", "first"}, "--headers-row"},
		{"bad delimiter", []string{"validate", "service", "-", "--delimiter", ";;"}, "--delimiter"},
		{"wrong arg count", []string{"validate", "service"}, "accepts 2 arg(s)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _, errOut := execute(t, "", tt.args...)
			assert.Equal(t, 2, code)
			assert.Contains(t, errOut, tt.want)
		})
	}
}

func TestTypes(t *testing.T) {
	code, out, _ := execute(t, "", "types")

	assert.Equal(t, 0, code)
	lines := strings.Fields(out)
	assert.Len(t, lines, 22)
	assert.Contains(t, lines, "service")
}

func TestSchema_OverrideDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "phone.yaml"), []byte("fields:\n  - name: number\n"), 0o600))

	code, out, _ := execute(t, "", "schema", "phone", "--schema-dir", dir)

	assert.Equal(t, 0, code)
	assert.Contains(t, out, `"name": "number"`)
}
