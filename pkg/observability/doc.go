/*
Package observability turns interpreter lifecycle hooks into metrics and structured logs.

Metrics registers Prometheus collectors and exposes them as domain.LifecycleHooks;
LoggingHooks does the same for slog. Both are merged into an interpreter with
runtime.WithLifecycleHooks (or parley.WithLifecycleHooks).
*/
package observability
