package env

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DoesNotOverrideExisting(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(envFile, []byte("SOLIDX_TEST_A=from-file\nSOLIDX_TEST_B=from-file\n"), 0o644))

	t.Setenv("SOLIDX_TEST_A", "from-env")
	os.Unsetenv("SOLIDX_TEST_B")
	defer os.Unsetenv("SOLIDX_TEST_B")

	Load(envFile, filepath.Join(dir, "missing.env"))

	assert.Equal(t, "from-env", os.Getenv("SOLIDX_TEST_A"))
	assert.Equal(t, "from-file", os.Getenv("SOLIDX_TEST_B"))
}
