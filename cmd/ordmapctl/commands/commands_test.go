package commands

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/ordmap/internal/config"
	"github.com/Sumatoshi-tech/ordmap/pkg/rbtree"
)

// execute runs ordmapctl with a quiet config file and returns stdout.
// Commands install global OTel providers, so these tests run sequentially.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	configPath := filepath.Join(t.TempDir(), "ordmap.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("observability:\n  log_level: error\n"), 0o600))

	var out bytes.Buffer

	root := NewRootCommand()
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(append([]string{"--config", configPath}, args...))

	err := root.Execute()

	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "ordmapctl ")
	assert.Contains(t, out, "commit: ")
}

func TestDumpCommand(t *testing.T) {
	out, err := execute(t, "dump", "10", "20", "30")
	require.NoError(t, err)

	assert.Contains(t, out, "        [R]00030:00030")
	assert.Contains(t, out, "[B]00020:00020")
	assert.Contains(t, out, "        [R]00010:00010")
	assert.Contains(t, out, "len=3 height=2 black_height=2")
}

func TestDumpCommandDelete(t *testing.T) {
	out, err := execute(t, "dump", "1", "2", "3", "4", "5", "6", "7:70", "--delete", "4")
	require.NoError(t, err)

	assert.NotContains(t, out, "00004:")
	assert.Contains(t, out, "00007:00070")
	assert.Contains(t, out, "len=6")
}

func TestDumpCommandErrors(t *testing.T) {
	_, err := execute(t, "dump", "ten")
	require.Error(t, err)

	_, err = execute(t, "dump", "1", "2", "--delete", "3")
	require.ErrorIs(t, err, rbtree.ErrNotFound)
}

func TestWorkoutAndReplay(t *testing.T) {
	dir := t.TempDir()
	tracePath := filepath.Join(dir, "run.oplog")
	yamlPath := filepath.Join(dir, "run.yaml")
	chartPath := filepath.Join(dir, "run.html")

	out, err := execute(t, "workout",
		"--ops", "2000", "--key-space", "256", "--seed", "42",
		"--verify-every", "100", "--sample-every", "500",
		"--trace", tracePath, "--yaml", yamlPath, "--chart", chartPath)
	require.NoError(t, err)

	assert.Contains(t, out, "ordmap workout (seed 42)")
	assert.Contains(t, out, "2,000")
	assert.FileExists(t, yamlPath)
	assert.FileExists(t, chartPath)

	out, err = execute(t, "replay", tracePath)
	require.NoError(t, err)
	assert.Contains(t, out, "ordmap replay run.oplog")
	assert.Contains(t, out, "2,000")
}

func TestWorkoutNodeLimit(t *testing.T) {
	out, err := execute(t, "workout", "--ops", "500", "--key-space", "1000", "--max-nodes", "10", "--insert-ratio", "0.9", "--delete-ratio", "0.05")
	require.NoError(t, err)
	assert.Contains(t, out, "Allocation failures")
}

func TestWorkoutInvalidConfig(t *testing.T) {
	_, err := execute(t, "workout", "--ops", "0")
	require.ErrorIs(t, err, config.ErrInvalidOps)
}

func TestVerboseQuietExclusive(t *testing.T) {
	_, err := execute(t, "-v", "-q", "version")
	require.Error(t, err)
}

func TestReplayMissingFile(t *testing.T) {
	_, err := execute(t, "replay", filepath.Join(t.TempDir(), "absent.oplog"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestScenarioCommand(t *testing.T) {
	paths, err := filepath.Glob(filepath.Join("..", "..", "..", "internal", "scenario", "testdata", "*.yaml"))
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	out, err := execute(t, append([]string{"scenario", "--tree"}, paths...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "PASS three ascending inserts")
	assert.NotContains(t, out, "FAIL")
}

func TestScenarioCommandFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wrong.yaml")
	body := "name: wrong length\nsteps:\n  - op: insert\n    keys: [1, 2]\n  - op: len\n    want: 3\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	out, err := execute(t, "scenario", path)
	require.ErrorIs(t, err, ErrScenariosFailed)
	assert.Contains(t, out, "FAIL wrong length")
}

func TestNodeLimit(t *testing.T) {
	t.Parallel()

	tenSlots := fmt.Sprintf("%dB", 10*rbtree.NodeBytes)

	tests := []struct {
		name    string
		workout config.WorkoutConfig
		want    int
	}{
		{name: "unlimited", want: 0},
		{name: "max nodes only", workout: config.WorkoutConfig{MaxNodes: 5}, want: 5},
		{name: "memory only", workout: config.WorkoutConfig{MemoryLimit: tenSlots}, want: 9},
		{name: "max nodes tighter", workout: config.WorkoutConfig{MaxNodes: 3, MemoryLimit: tenSlots}, want: 3},
		{name: "memory tighter", workout: config.WorkoutConfig{MaxNodes: 50, MemoryLimit: tenSlots}, want: 9},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := nodeLimit(tt.workout)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNodeLimitTooSmall(t *testing.T) {
	t.Parallel()

	_, err := nodeLimit(config.WorkoutConfig{MemoryLimit: "1B"})
	require.ErrorIs(t, err, ErrMemoryLimitTooSmall)
}

func TestWorkoutCapacity(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		workout config.WorkoutConfig
		limit   int
		want    int
	}{
		{name: "ops bound", workout: config.WorkoutConfig{Ops: 100, KeySpace: 4096}, want: 100},
		{name: "key space bound", workout: config.WorkoutConfig{Ops: 100_000, KeySpace: 256}, want: 256},
		{name: "node limit bound", workout: config.WorkoutConfig{Ops: 100_000, KeySpace: 4096}, limit: 10, want: 10},
		{name: "loose node limit", workout: config.WorkoutConfig{Ops: 50, KeySpace: 4096}, limit: 1000, want: 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, workoutCapacity(tt.workout, tt.limit))
		})
	}
}

func TestParseItem(t *testing.T) {
	t.Parallel()

	item, err := parseItem("12")
	require.NoError(t, err)
	assert.Equal(t, rbtree.Item{Key: 12, Value: 12}, item)

	item, err = parseItem("12:7")
	require.NoError(t, err)
	assert.Equal(t, rbtree.Item{Key: 12, Value: 7}, item)

	_, err = parseItem("12:x")
	require.Error(t, err)

	_, err = parseItem("4294967296")
	require.Error(t, err)
}
