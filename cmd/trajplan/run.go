package main

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/Leealpha1/TinyG/internal/config"
	"github.com/Leealpha1/TinyG/internal/errext"
	"github.com/Leealpha1/TinyG/internal/errext/exitcodes"
	"github.com/Leealpha1/TinyG/internal/gcodesim"
	"github.com/Leealpha1/TinyG/internal/planner"
	"github.com/Leealpha1/TinyG/internal/planner/exec"
	"github.com/Leealpha1/TinyG/internal/planner/feedhold"
	"github.com/Leealpha1/TinyG/internal/state"
	"github.com/Leealpha1/TinyG/internal/stepper"
)

func newRunCmd(gs *state.GlobalState) *cobra.Command {
	var (
		feedholdAfter int
		resumeAfter   int
		flushAfter    int
		maxTicks      int
		verbose       bool
	)

	cmd := &cobra.Command{
		Use:   "run <move-file>",
		Short: "Submit a move file and drive the executor to completion",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, gs)
			if err != nil {
				return err
			}

			moves, err := gcodesim.ReadFile(gs.FS, args[0])
			if err != nil {
				return errext.WithExitCodeIfNone(err, exitcodes.ExternalAbort)
			}

			pool := planner.NewPool(cfg.PoolSize)
			pl := planner.NewPlanner(pool, cfg)
			fake := stepper.NewFake()
			ik := stepper.Identity(config.NumAxes, 1)
			rt := exec.New(pool, cfg, fake, ik)
			fh := feedhold.New(rt, pl)
			registerBuiltinMCodes(gs, rt)

			submitted, res, err := gcodesim.Submit(pl, moves)
			if err != nil {
				gs.Logger.WithFields(logrus.Fields{"submitted": submitted, "result": res}).Warn("move file submission stopped early")
			}

			ticks := 0
			for (rt.IsBusy() || submitted < len(moves)) && ticks < maxTicks {
				ticks++

				if feedholdAfter > 0 && ticks == feedholdAfter {
					gs.Logger.Info("requesting feedhold")
					fh.RequestFeedhold()
				}
				if resumeAfter > 0 && ticks == resumeAfter {
					gs.Logger.Info("ending feedhold")
					fh.EndFeedhold()
				}
				if flushAfter > 0 && ticks == flushAfter {
					gs.Logger.Info("flushing queued blocks")
					pl.Flush()
				}

				tickRes, tickErr := rt.Tick()
				fh.Tick()
				if tickErr != nil {
					return describeExecError(tickRes, tickErr)
				}
				if verbose {
					gs.Logger.WithFields(logrus.Fields{"tick": ticks, "result": tickRes}).Debug("tick")
				}

				if tickRes == planner.ResultOk && submitted < len(moves) {
					n, subRes, subErr := gcodesim.Submit(pl, moves[submitted:])
					submitted += n
					if subErr != nil {
						gs.Logger.WithFields(logrus.Fields{"submitted": submitted, "result": subRes}).Warn("move file submission stopped early")
					}
				}
			}

			if rt.IsBusy() {
				return errext.WithExitCodeIfNone(
					fmt.Errorf("trajplan: did not drain after %d ticks", maxTicks),
					exitcodes.Internal,
				)
			}

			fmt.Fprintf(gs.Stdout, "completed %d/%d moves in %d ticks, %d segments emitted\n",
				submitted, len(moves), ticks, len(fake.Lines))
			return nil
		},
	}

	cmd.Flags().IntVar(&feedholdAfter, "feedhold-after-ticks", 0, "request a feedhold after N ticks (0 disables)")
	cmd.Flags().IntVar(&resumeAfter, "resume-after-ticks", 0, "end the feedhold after N ticks (0 disables)")
	cmd.Flags().IntVar(&flushAfter, "flush-after-ticks", 0, "flush every queued block after N ticks (0 disables)")
	cmd.Flags().IntVar(&maxTicks, "max-ticks", 1_000_000, "safety bound on executor ticks before giving up")
	cmd.Flags().BoolVar(&verbose, "verbose", false, "log every tick at debug level")
	return cmd
}

func loadConfig(cmd *cobra.Command, gs *state.GlobalState) (config.Config, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return config.Config{}, err
	}

	cfg := config.Default()
	if path != "" {
		cfg, err = config.ReadFile(gs.FS, path)
		if err != nil {
			return config.Config{}, errext.WithHint(
				errext.WithExitCodeIfNone(err, exitcodes.ExternalAbort),
				"check the --config file is valid JSON matching internal/config.Config",
			)
		}
	}
	return config.ReadEnv(cfg)
}

// registerBuiltinMCodes wires the default M-code side effects to the
// logger, standing in for the real program/spindle/coolant hardware
// spec.md §1 puts out of scope.
func registerBuiltinMCodes(gs *state.GlobalState, rt *exec.Runtime) {
	rt.OnProgramStop = func() { gs.Logger.Info("program stop (M0)") }
	rt.OnProgramEnd = func() { gs.Logger.Info("program end (M2)") }
	rt.OnSpindleControl = func(dir int) { gs.Logger.WithField("dir", dir).Info("spindle control") }
	rt.OnMistCoolant = func(on bool) { gs.Logger.WithField("on", on).Info("mist coolant") }
	rt.OnFloodCoolant = func(on bool) { gs.Logger.WithField("on", on).Info("flood coolant") }
}

func describeExecError(res planner.Result, err error) error {
	if res == planner.ResultBufferFullFatal {
		return errext.WithHint(
			errext.WithExitCodeIfNone(err, exitcodes.BufferFull),
			"increase pool_size or submit moves more slowly",
		)
	}
	return errext.WithExitCodeIfNone(err, exitcodes.Internal)
}
