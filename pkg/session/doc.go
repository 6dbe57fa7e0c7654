/*
Package session runs dialogues as persisted, resumable sessions.

A session pairs a graph name with an interpreter snapshot. Every operation loads the
snapshot, restores an interpreter, applies the change and saves the result, all while
holding the session's lock: an in-process mutex (reference counted, so unused locks are
garbage collected) plus, optionally, a distributed lock for stores shared across replicas.
*/
package session
