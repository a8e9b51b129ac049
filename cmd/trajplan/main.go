// Command trajplan is a runnable demonstration harness for the
// internal/planner package: it reads a move file (internal/gcodesim),
// submits it to the look-ahead planner, and drives the runtime executor
// against a fake stepper to completion, exercising every contract in
// spec.md end to end without any real G-code parser or pulse generator.
package main

import "os"

func main() {
	os.Exit(Execute())
}
