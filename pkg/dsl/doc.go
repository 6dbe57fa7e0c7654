/*
Package dsl provides a Go DSL (Domain Specific Language) for programmatically constructing dialogue graphs.

It allows developers to define branching dialogues using a type-safe, fluent builder pattern
instead of relying on external YAML or JSON files. This is particularly useful for generated
content, unit testing, and leveraging IDE autocompletion/type-checking.

Example usage:

	b := dsl.New()

	b.Add("intro").
		Line("Welcome to the tavern!").
		To("menu")

	b.Add("menu").
		Choice().
		Option("Buy an ale", "buy", dsl.When("gold", domain.OpGte, 2)).
		Option("Leave", "bye")

	b.Add("buy").
		Set("gold", 0).
		To("menu")

	b.Add("bye").
		Line("Safe travels.")

	graph, err := b.Graph()
	// ... pass graph to runtime.New, or b.Build("tavern") for a GraphLoader
*/
package dsl
