package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stageScenarios copies harness scenarios, and their golden files when
// withGolden is set, into a fresh directory.
func stageScenarios(t *testing.T, withGolden bool, names ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, name := range names {
		copyFile(t, scenarioPath(name), filepath.Join(dir, name+".yaml"))
		if withGolden {
			copyFile(t, filepath.Join("../harness/testdata/golden", name+".golden"),
				goldenFilePath(dir, name))
		}
	}
	return dir
}

func TestTestCommandPasses(t *testing.T) {
	dir := stageScenarios(t, true, "mixed_binop", "nested_calls", "distance_mismatch")

	out, _, err := execute(t, "test", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ distance_mismatch\n✓ mixed_binop\n✓ nested_calls\n")
	assert.Contains(t, out, "Test Summary: 3 passed, 0 failed, 3 total")
	assert.Contains(t, out, "✓ All scenarios passed")
}

func TestTestCommandWithoutGolden(t *testing.T) {
	dir := stageScenarios(t, false, "mixed_binop")

	_, _, err := execute(t, "test", dir)
	require.NoError(t, err)
	_, err = os.Stat(goldenFilePath(dir, "mixed_binop"))
	assert.True(t, os.IsNotExist(err), "test must not create golden files without --update")
}

func TestTestCommandGoldenMismatch(t *testing.T) {
	dir := stageScenarios(t, false, "mixed_binop")
	writeFile(t, dir, "golden/mixed_binop.golden", "{}")

	out, _, err := execute(t, "test", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ mixed_binop")
	assert.Contains(t, out, "snapshot does not match golden file")
}

func TestTestCommandUpdate(t *testing.T) {
	dir := stageScenarios(t, false, "mixed_binop")
	writeFile(t, dir, "golden/mixed_binop.golden", "stale")

	_, _, err := execute(t, "test", "--update", dir)
	require.NoError(t, err)

	got, err := os.ReadFile(goldenFilePath(dir, "mixed_binop"))
	require.NoError(t, err)
	want, err := os.ReadFile("../harness/testdata/golden/mixed_binop.golden")
	require.NoError(t, err)
	assert.Equal(t, string(want), string(got))

	_, _, err = execute(t, "test", dir)
	require.NoError(t, err)
}

func TestTestCommandFilter(t *testing.T) {
	dir := stageScenarios(t, true, "mixed_binop", "nested_calls")

	out, _, err := execute(t, "test", "--filter", "nested*", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "nested_calls")
	assert.NotContains(t, out, "mixed_binop")
	assert.Contains(t, out, "1 total")
}

func TestTestCommandJSON(t *testing.T) {
	dir := stageScenarios(t, true, "mixed_binop")
	writeFile(t, dir, "broken.yaml", "name: broken\nsteps: []\n")

	out, _, err := execute(t, "--format", "json", "test", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
		Error  *CLIError  `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, 1, resp.Data.Passed)
	assert.Equal(t, 1, resp.Data.Failed)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "1 scenario(s) failed", resp.Error.Message)
}

func TestTestCommandEmptyDir(t *testing.T) {
	out, _, err := execute(t, "test", t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "No scenarios found.\n", out)
}

func TestTestCommandMissingDir(t *testing.T) {
	_, _, err := execute(t, "test", filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "scenarios directory not found")
}

func TestFindScenarioFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "b.yaml", "")
	writeFile(t, dir, "a.yml", "")
	writeFile(t, dir, "nested/c.yaml", "")
	writeFile(t, dir, "golden/d.yaml", "")
	writeFile(t, dir, "notes.txt", "")

	files, err := FindScenarioFiles(dir, "")
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "a.yml"),
		filepath.Join(dir, "b.yaml"),
		filepath.Join(dir, "nested", "c.yaml"),
	}, files)

	files, err = FindScenarioFiles(dir, "[ab]")
	require.NoError(t, err)
	assert.Len(t, files, 2)

	_, err = FindScenarioFiles(dir, "[")
	require.Error(t, err)
	code, _ := loadErrorCode(err)
	assert.Equal(t, ErrCodeScan, code)
}

func TestGoldenFilePath(t *testing.T) {
	assert.Equal(t, filepath.Join("scenarios", "golden", "unwind.golden"), goldenFilePath("scenarios", "unwind"))
}
