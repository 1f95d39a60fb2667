/*
Package observability turns engine lifecycle hooks into Prometheus metrics.

	m := observability.NewMetrics(prometheus.NewRegistry())
	engine := runtime.NewEngine(g, kb, gen, runtime.WithLifecycleHooks(m.Hooks()))

Hooks are safe to share between engines of many sessions.
*/
package observability
