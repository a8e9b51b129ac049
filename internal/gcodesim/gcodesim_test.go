package gcodesim

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Leealpha1/TinyG/internal/config"
	"github.com/Leealpha1/TinyG/internal/planner"
)

func writeFile(t *testing.T, fs afero.Fs, path, content string) {
	t.Helper()
	require.NoError(t, afero.WriteFile(fs, path, []byte(content), 0o644))
}

func TestReadFileParsesEveryDirective(t *testing.T) {
	t.Parallel()
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "prog.moves", `
# a comment
line 10 0 0 0 0 0 0.01
dwell 0.5
mcode 3
tool 2
spindle 8000
`)

	moves, err := ReadFile(fs, "prog.moves")
	require.NoError(t, err)
	require.Len(t, moves, 5)

	assert.Equal(t, MoveLine, moves[0].Kind)
	assert.InDelta(t, 10.0, moves[0].Target[0], 1e-9)
	assert.InDelta(t, 0.01, moves[0].Minutes, 1e-9)

	assert.Equal(t, MoveDwell, moves[1].Kind)
	assert.InDelta(t, 0.5, moves[1].Seconds, 1e-9)

	assert.Equal(t, MoveMCode, moves[2].Kind)
	assert.Equal(t, 3, moves[2].Code)

	assert.Equal(t, MoveTool, moves[3].Kind)
	assert.Equal(t, 2, moves[3].Code)

	assert.Equal(t, MoveSpindle, moves[4].Kind)
	assert.InDelta(t, 8000.0, moves[4].RPM, 1e-9)
}

func TestReadFileRejectsMalformedLine(t *testing.T) {
	t.Parallel()
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "bad.moves", "line 1 2 3\n")

	_, err := ReadFile(fs, "bad.moves")
	require.Error(t, err)
}

func TestReadFileRejectsUnknownDirective(t *testing.T) {
	t.Parallel()
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "bad.moves", "arc 1 2 3\n")

	_, err := ReadFile(fs, "bad.moves")
	require.Error(t, err)
}

func TestSubmitDrivesPlannerInOrder(t *testing.T) {
	t.Parallel()
	cfg := config.Default()
	pool := planner.NewPool(cfg.PoolSize)
	p := planner.NewPlanner(pool, cfg)

	moves := []Move{
		{Kind: MoveLine, Target: [planner.NumAxes]float64{10, 0, 0, 0, 0, 0}, Minutes: 0.01},
		{Kind: MoveDwell, Seconds: 0.1},
	}

	n, res, err := Submit(p, moves)
	require.NoError(t, err)
	assert.Equal(t, planner.ResultOk, res)
	assert.Equal(t, len(moves), n)
	assert.True(t, pool.IsBusy())
}

func TestSubmitStopsOnBufferFull(t *testing.T) {
	t.Parallel()
	cfg := config.Default()
	cfg.PoolSize = 2
	pool := planner.NewPool(cfg.PoolSize)
	p := planner.NewPlanner(pool, cfg)

	moves := []Move{
		{Kind: MoveDwell, Seconds: 0.1},
		{Kind: MoveDwell, Seconds: 0.1},
		{Kind: MoveDwell, Seconds: 0.1},
	}

	n, res, err := Submit(p, moves)
	require.Error(t, err)
	assert.Equal(t, planner.ResultBufferFullFatal, res)
	assert.Equal(t, 2, n)
}
