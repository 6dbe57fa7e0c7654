/*
Package parley is a branching dialogue interpreter for games and interactive fiction.

A dialogue is a graph of nodes. Line nodes show text, choice nodes offer options
(optionally gated by conditions on game variables), and jump, setVar and condition
nodes redirect, assign and branch without pausing. The interpreter walks the graph one
Advance at a time, suspending at every line and choice, and never fails: a broken
reference or an invalid choice simply ends the dialogue.

# Usage

	eng, err := parley.New("./dialogues/tavern.yaml")
	if err != nil {
		log.Fatal(err)
	}

	it, err := eng.Start(ctx, "", domain.Variables{"gold": 5})
	if err != nil {
		log.Fatal(err)
	}

	for step := it.Advance(ctx, nil); !step.Terminal(); {
		switch step.Kind {
		case domain.StepYielded:
			fmt.Println(step.Node.Content)
			step = it.Advance(ctx, nil)
		case domain.StepAwaitingChoice:
			step = it.Advance(ctx, pick(step.Options))
		}
	}

Graphs can come from JSON/YAML files, a directory of Markdown documents (Loam), or the
pkg/dsl builder. pkg/session persists runs across processes, and pkg/runner,
pkg/adapters/http and pkg/adapters/mcp present them to players.
*/
package parley
