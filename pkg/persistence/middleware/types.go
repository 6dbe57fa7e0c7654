// Package middleware wraps a ports.StateStore with cross-cutting behavior applied
// to every saved session, such as encryption at rest or masking of sensitive variables.
package middleware

import "github.com/aretw0/parley/pkg/ports"

// Middleware allows wrapping a StateStore to add behavior.
type Middleware func(ports.StateStore) ports.StateStore

// Chain applies middlewares so that the first one is the outermost.
func Chain(store ports.StateStore, mws ...Middleware) ports.StateStore {
	for i := len(mws) - 1; i >= 0; i-- {
		store = mws[i](store)
	}
	return store
}
