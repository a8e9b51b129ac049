package main

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/Leealpha1/TinyG/internal/errext"
	"github.com/Leealpha1/TinyG/internal/errext/exitcodes"
	"github.com/Leealpha1/TinyG/internal/state"
)

func newRootCommand(gs *state.GlobalState) *cobra.Command {
	root := &cobra.Command{
		Use:           "trajplan",
		Short:         "Cartesian trajectory planner demo harness",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("config", "", "path to a JSON config file overlaying the planner defaults")
	root.SetArgs(gs.Args[1:])
	root.SetOut(gs.Stdout)
	root.SetErr(gs.Stderr)

	root.AddCommand(newRunCmd(gs), newStatusCmd(gs))
	return root
}

// Execute builds and runs the command tree, translating any returned
// error's HasExitCode/HasHint behaviors into a process exit code and a
// logged hint, mirroring the teacher's root Execute().
func Execute() int {
	gs := state.New(context.Background())
	root := newRootCommand(gs)

	if err := root.Execute(); err != nil {
		logErrorWithHint(gs.Logger, err)
		var ecerr errext.HasExitCode
		if errors.As(err, &ecerr) {
			return int(ecerr.ExitCode())
		}
		return int(exitcodes.Internal)
	}
	return int(exitcodes.Success)
}

func logErrorWithHint(logger *logrus.Logger, err error) {
	fields := logrus.Fields{}
	var herr errext.HasHint
	if errors.As(err, &herr) {
		fields["hint"] = herr.Hint()
	}
	logger.WithFields(fields).Error(err.Error())
}
