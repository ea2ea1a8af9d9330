// Package provider defines the source-control provider contract the
// workflow engine drives its side effects through: branches, commits, pull
// requests, deployments, and releases.
//
// Implementations exist for GitHub and GitLab. Every primitive is paired
// with a completion probe (BranchExists, CommitExists, ...) so the engine's
// restart recovery can confirm whether a durable side effect already
// happened before re-issuing it.
package provider
