package main

import (
	"context"
	"os"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Leealpha1/TinyG/internal/state"
)

// newCmdTestRig builds a GlobalState with an in-memory filesystem and
// stdout/stderr wired to real temp files, so RunE's Fprintf calls (which
// need a genuine *os.File per state.GlobalState) can be read back.
func newCmdTestRig(t *testing.T, args ...string) (*state.GlobalState, *os.File) {
	t.Helper()
	gs := state.NewTest(context.Background())
	gs.Args = append([]string{"trajplan"}, args...)

	out, err := os.CreateTemp(t.TempDir(), "stdout")
	require.NoError(t, err)
	t.Cleanup(func() { out.Close() })
	gs.Stdout = out
	gs.Stderr = out
	return gs, out
}

func readAll(t *testing.T, f *os.File) string {
	t.Helper()
	_, err := f.Seek(0, 0)
	require.NoError(t, err)
	data, err := os.ReadFile(f.Name())
	require.NoError(t, err)
	return string(data)
}

func writeMoveFile(t *testing.T, fs afero.Fs, path, content string) {
	t.Helper()
	require.NoError(t, afero.WriteFile(fs, path, []byte(content), 0o644))
}

func TestExecuteRunCompletesASimpleMove(t *testing.T) {
	gs, out := newCmdTestRig(t, "run", "prog.moves")
	writeMoveFile(t, gs.FS, "prog.moves", "line 10 0 0 0 0 0 0.01\ndwell 0.05\n")

	require.NoError(t, newRootCommand(gs).Execute())

	assert.Contains(t, readAll(t, out), "completed 2/2 moves")
}

func TestExecuteRunReportsUndrainedQueueAsError(t *testing.T) {
	gs, _ := newCmdTestRig(t, "run", "--max-ticks", "0", "prog.moves")
	writeMoveFile(t, gs.FS, "prog.moves", "dwell 0.1\n")

	err := newRootCommand(gs).Execute()
	require.Error(t, err)
}

func TestExecuteRunRejectsMissingMoveFile(t *testing.T) {
	gs, _ := newCmdTestRig(t, "run", "missing.moves")

	err := newRootCommand(gs).Execute()
	require.Error(t, err)
}

func TestExecuteStatusReportsPeriodically(t *testing.T) {
	gs, out := newCmdTestRig(t, "status", "--report-every", "1", "prog.moves")
	writeMoveFile(t, gs.FS, "prog.moves", "line 10 0 0 0 0 0 0.01\n")

	err := newRootCommand(gs).Execute()
	require.NoError(t, err)

	assert.Contains(t, readAll(t, out), "is_busy=")
}
