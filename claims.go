package quorumflow

import "sync"

// branchClaims enforces mutual exclusion of working branches among live
// runs. A claim is logical: it exists only in engine memory and is
// released when the claiming run reaches a terminal status. The remote
// branch itself is probed separately by the committing stage.
type branchClaims struct {
	mu   sync.Mutex
	held map[string]string // branch -> run ID
}

func newBranchClaims() *branchClaims {
	return &branchClaims{held: make(map[string]string)}
}

// Claim records runID as the holder of branch. Claiming a branch the same
// run already holds is a no-op, so retries and recovery are idempotent.
// When another run holds the branch, Claim returns its run ID and false.
func (c *branchClaims) Claim(branch, runID string) (holder string, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cur, exists := c.held[branch]; exists && cur != runID {
		return cur, false
	}
	c.held[branch] = runID
	return runID, true
}

// Release drops the claim on branch if runID holds it.
func (c *branchClaims) Release(branch, runID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.held[branch] == runID {
		delete(c.held, branch)
	}
}

// Holder returns the run ID holding branch, if any.
func (c *branchClaims) Holder(branch string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id, ok := c.held[branch]
	return id, ok
}
