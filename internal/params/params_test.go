package params

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestCanonical(t *testing.T) {
	t.Parallel()
	for _, name := range []string{"nuget-api-key", "NUGET_API_KEY", "NuGetApiKey", "nuget.api.key"} {
		assert.Equal(t, "nugetapikey", Canonical(name), name)
	}
}

func TestResolve_Precedence(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	file := writeFile(t, "params.yaml", "configuration: FromFile\nverbosity: minimal\n")
	decls := []Declaration{
		{Name: "configuration", Default: cty.StringVal("Debug")},
		{Name: "verbosity", Default: cty.StringVal("normal")},
		{Name: "build_number", EnvVar: "BUILD_NUMBER"},
		{Name: "nuget_api_url", Default: cty.StringVal("https://api.nuget.org/v3/index.json")},
	}

	// --- Act ---
	set, err := Resolve(decls, Sources{
		Files:   []string{file},
		Environ: []string{"CONFIGURATION=FromEnv", "BUILD_NUMBER=42", "UNDECLARED=x"},
		Flags:   []string{"Configuration=Release"},
	})

	// --- Assert ---
	require.NoError(t, err)
	assert.Equal(t, "Release", set.String("configuration"))
	v, ok := set.Lookup("CONFIGURATION")
	require.True(t, ok)
	assert.Equal(t, SourceFlag, v.Source())

	assert.Equal(t, "minimal", set.String("verbosity"))
	assert.Equal(t, "42", set.String("build-number"))
	assert.Equal(t, "https://api.nuget.org/v3/index.json", set.String("NugetApiUrl"))
	assert.False(t, set.IsSet("undeclared"), "environment only feeds declared parameters")
}

func TestResolve_EnvVarOverrideIsExact(t *testing.T) {
	t.Parallel()
	set, err := Resolve(
		[]Declaration{{Name: "github_api_key", EnvVar: "GH_API_KEY", Secret: true}},
		Sources{Environ: []string{"GITHUB_API_KEY=wrong", "GH_API_KEY=right"}},
	)
	require.NoError(t, err)
	assert.Equal(t, "right", set.String("github_api_key"))
	assert.True(t, set.IsSecret("github_api_key"))
}

func TestResolve_SecretsAreRedacted(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	set, err := Resolve(
		[]Declaration{{Name: "nuget_api_key", Secret: true}, {Name: "configuration"}},
		Sources{
			Flags:       []string{"configuration=Release", "nuget_api_key=plain-flag"},
			SecretFlags: []string{"extra_token=hunter2"},
		},
	)
	require.NoError(t, err)

	// --- Act ---
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	logger.Info("params", "params", set)
	v, _ := set.Lookup("nuget_api_key")

	// --- Assert ---
	assert.Equal(t, "plain-flag", v.Raw())
	assert.Equal(t, Redacted, v.String())
	assert.Equal(t, Redacted, fmt.Sprint(v))
	assert.NotContains(t, buf.String(), "plain-flag")
	assert.NotContains(t, buf.String(), "hunter2")
	assert.Contains(t, buf.String(), "Release")
	assert.ElementsMatch(t, []string{"plain-flag", "hunter2"}, set.Secrets())
}

func TestResolve_Errors(t *testing.T) {
	t.Parallel()

	t.Run("malformed flag does not echo value", func(t *testing.T) {
		_, err := Resolve(nil, Sources{SecretFlags: []string{"tokenonly"}})
		require.ErrorIs(t, err, ErrMalformedAssignment)
	})

	t.Run("duplicate declaration", func(t *testing.T) {
		_, err := Resolve([]Declaration{{Name: "a_b"}, {Name: "AB"}}, Sources{})
		require.ErrorContains(t, err, "declared more than once")
	})

	t.Run("unsupported file type", func(t *testing.T) {
		_, err := Resolve(nil, Sources{Files: []string{writeFile(t, "p.toml", "a=1")}})
		require.ErrorContains(t, err, "unsupported parameter file type")
	})
}

func TestLoadFile_Formats(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		file    string
		content string
	}{
		{"yaml", "p.yml", "configuration: Release\nretries: 3\nflags: [a, b]\n"},
		{"hcl", "p.hcl", "configuration = \"Release\"\nretries = 3\nflags = [\"a\", \"b\"]\n"},
		{"json", "p.json", `{"configuration": "Release", "retries": 3, "flags": ["a", "b"]}`},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			values, err := LoadFile(writeFile(t, tc.file, tc.content))
			require.NoError(t, err)
			assert.Equal(t, "Release", NewValue(values["configuration"], false, SourceFile).Raw())
			assert.Equal(t, "3", NewValue(values["retries"], false, SourceFile).Raw())
			assert.Equal(t, `["a","b"]`, NewValue(values["flags"], false, SourceFile).Raw())
		})
	}
}

func TestSet_ObjectIncludesDeclaredNulls(t *testing.T) {
	t.Parallel()
	set, err := Resolve(
		[]Declaration{{Name: "configuration", Default: cty.StringVal("Debug")}, {Name: "nuget_api_key", Secret: true}},
		Sources{},
	)
	require.NoError(t, err)

	obj := set.Object()
	require.True(t, obj.Type().IsObjectType())
	assert.Equal(t, "Debug", obj.GetAttr("configuration").AsString())
	assert.True(t, obj.GetAttr("nuget_api_key").IsNull())
	assert.False(t, set.IsSet("nuget_api_key"))
}
