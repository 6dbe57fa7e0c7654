/*
Package runner implements the terminal loop that plays a dialogue to a person or a program.

It is the bridge between an Interpreter and the outside world: it presents every
suspension point through a pluggable IOHandler, reads choice indices back, and optionally
persists the run after every step so it can be resumed later.

# Key Components

  - Runner: drives an interpreter until it terminates, the input ends or the context is cancelled.
  - IOHandler: decouples how steps are shown and how choices are read.
  - TextHandler: interactive CLI usage. Renders Markdown through glamour on a terminal.
  - JSONHandler: NDJSON for scripts and other processes.

# Usage

	r := runner.NewRunner(
		runner.WithInputHandler(runner.NewTextHandler(os.Stdin, os.Stdout)),
		runner.WithSignalHandling(),
	)

	if err := r.Run(ctx, it); err != nil {
		log.Fatal(err)
	}
*/
package runner
