package prompt

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadEmbedded(t *testing.T) {
	lib, err := Load("")
	require.NoError(t, err)

	for _, name := range []string{
		"identify_system", "identify_user",
		"validate_system", "validate_user",
		"resolve_system", "resolve_user",
		"select_system", "select_user",
		"websearch_system", "websearch_user",
	} {
		out, err := lib.Render(name, map[string]string{})
		assert.NoError(t, err, name)
		assert.NotEmpty(t, out, name)
	}
}

func TestLoadOverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "templates.yaml")
	require.NoError(t, os.WriteFile(path, []byte("greet: \"hello {{name}}\"\n"), 0o600))

	lib, err := Load(path)
	require.NoError(t, err)

	out, err := lib.Render("greet", map[string]string{"name": "world"})
	require.NoError(t, err)
	assert.Equal(t, "hello world", out)

	// Overrides replace the embedded set entirely.
	_, err = lib.Render("validate_system", nil)
	assert.True(t, eris.Is(err, ErrTemplateMissing))
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestRenderTemplate(t *testing.T) {
	out := RenderTemplate("q={{query}} max={{max}} again={{query}}", map[string]string{
		"query": "ssd 1tb",
	})
	assert.Equal(t, "q=ssd 1tb max=<missing:max> again=ssd 1tb", out)
}

func TestRenderMissingTemplate(t *testing.T) {
	lib, err := Load("")
	require.NoError(t, err)

	_, err = lib.Render("does_not_exist", nil)
	assert.True(t, eris.Is(err, ErrTemplateMissing))
}
