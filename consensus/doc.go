// Package consensus reconciles competing proposals from independent AI
// sources into a single decision.
//
// The Normalizer shapes raw source responses into scored Proposals, dropping
// sources that exceeded their timeout and defaulting missing confidences from
// each source's rolling success rate. The Engine clusters proposals by
// textual similarity, scores each cluster by confidence weighted with a
// per-source trust multiplier, and picks a winner with deterministic
// tie-breaking.
//
//	engine := consensus.NewEngine(consensus.EngineConfig{})
//	decision, err := engine.Decide(requestID, proposals)
package consensus
