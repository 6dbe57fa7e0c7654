/*
Package domain contains the core data model of the Parley dialogue interpreter.

It defines the dialogue graph, the mutable run state and the results of a single
interpreter step. This package is kept pure and free of external dependencies
like I/O or persistence.

# Key Entities

  - Node: one unit of graph behavior (line, choice, jump, setVar or condition).
  - Graph: the immutable, shareable collection of nodes plus the start node id.
  - State: the runtime snapshot of a run (current node, variables, history).
  - StepResult: what the caller gets back from an Advance (Yielded, AwaitingChoice, Terminated).
  - Session: a persisted run, as stored by the session adapters.
*/
package domain
