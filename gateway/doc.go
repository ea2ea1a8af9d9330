// Package gateway is the boundary between the engine and everything
// remote. It fans a workflow request out to the enabled AI sources in
// parallel, and wraps the source-control provider with timeouts, bounded
// retries, and a small error taxonomy the engine can branch on.
package gateway
