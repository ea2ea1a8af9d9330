// Package quorumflow is an autonomous multi-source consensus and workflow
// orchestration engine. It accepts a development request, fans it out to a
// panel of AI sources in parallel, reconciles their proposals into a single
// decision, and drives that decision through a staged workflow (plan,
// generate, validate, commit, review, deploy, release) against a
// source-control provider.
//
// The package is organized into subpackages by domain:
//
//   - source: AI source adapters (Claude, DeepSeek, Gemini, Grok, Perplexity)
//   - consensus: proposal normalization, clustering, and decision scoring
//   - gateway: parallel source fan-out and retrying provider access
//   - provider: GitHub and GitLab source-control providers
//   - ledger: append-only operation ledger and statistics
//   - config: layered configuration (defaults, file, environment)
//   - notify: run and stage event notification (Slack, webhook, log)
//   - persona: engine persona traits
//   - http: shared HTTP client with retry and error translation
//
// # Quick Start
//
//	registry := source.NewRegistry()
//	registry.Register(source.NewClaude(client))
//	registry.Register(source.NewDeepSeek(apiKey))
//
//	engine, err := quorumflow.New(quorumflow.Options{
//	    Registry: registry,
//	    Provider: provider.NewMemory(),
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer engine.Close()
//
//	run, err := engine.Submit(ctx, quorumflow.NewRequest(
//	    quorumflow.KindFeature, "add rate limiting to the login endpoint"))
//
// Every stage outcome is appended to the operation ledger. On restart,
// Recover replays the ledger: idempotent stages are re-run, and stages with
// durable side effects are resumed only after the provider confirms whether
// the effect already happened.
package quorumflow
