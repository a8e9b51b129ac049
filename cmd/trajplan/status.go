package main

import (
	"fmt"

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

// newStatusCmd is a thinner sibling of run: it drives the same executor
// loop but reports is_busy/hold_state/line_number/velocity/position
// periodically instead of just a final summary.
func newStatusCmd(gs *state.GlobalState) *cobra.Command {
	var (
		reportEvery int
		maxTicks    int
	)

	cmd := &cobra.Command{
		Use:   "status <move-file>",
		Short: "Submit a move file and report executor status every N ticks",
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

			submitted, _, _ := gcodesim.Submit(pl, moves)

			ticks := 0
			for (rt.IsBusy() || submitted < len(moves)) && ticks < maxTicks {
				ticks++

				tickRes, tickErr := rt.Tick()
				fh.Tick()
				if tickErr != nil {
					return describeExecError(tickRes, tickErr)
				}

				if tickRes == planner.ResultOk && submitted < len(moves) {
					n, _, _ := gcodesim.Submit(pl, moves[submitted:])
					submitted += n
				}

				if reportEvery > 0 && ticks%reportEvery == 0 {
					printStatus(gs, rt, ticks)
				}
			}
			printStatus(gs, rt, ticks)

			if rt.IsBusy() {
				return errext.WithExitCodeIfNone(
					fmt.Errorf("trajplan: did not drain after %d ticks", maxTicks),
					exitcodes.Internal,
				)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&reportEvery, "report-every", 100, "print a status line every N ticks (0 disables periodic reports)")
	cmd.Flags().IntVar(&maxTicks, "max-ticks", 1_000_000, "safety bound on executor ticks before giving up")
	return cmd
}

func printStatus(gs *state.GlobalState, rt *exec.Runtime, tick int) {
	fmt.Fprintf(gs.Stdout, "tick=%d is_busy=%t hold_state=%v line_number=%d velocity=%.4f position=%v\n",
		tick, rt.IsBusy(), rt.HoldState, rt.LineNumber(), rt.Velocity(), rt.Position)
}
