/*
Package ports defines the driven ports (interfaces) around the dialogue interpreter.

These interfaces decouple the interpreter and the session layer from concrete backends,
so graphs can come from memory, files or a Loam repository and sessions can live in
memory, on disk or in Redis.

# Key Interfaces

  - GraphLoader: Resolves a dialogue graph by name (e.g., from Loam, files or Memory).
  - StateStore: Persists and loads Sessions (interpreter snapshots plus their seed).
  - DistributedLocker: Serializes access to a session across replicas.
  - DialogueService: What presentation adapters (HTTP, MCP) drive.
*/
package ports
