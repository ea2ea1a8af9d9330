package quorumflow

import (
	"context"
	"errors"
	"fmt"

	"github.com/randalmurphal/quorumflow/ledger"
	"github.com/randalmurphal/quorumflow/provider"
)

// commitAuthor is the identity stamped on engine-authored commits.
const commitAuthor = "quorumflow <quorumflow@localhost>"

// commitStage claims the working branch, creates it if needed, and writes
// the generated file changes as one commit. A branch held by another live
// run fails the run immediately; the claim is not retried.
func commitStage(ctx context.Context, st runState) (runState, error) {
	claims := claimsFromContext(ctx)
	scm := MustSCMFromContext(ctx)
	settings := SettingsFromContext(ctx)

	if claims != nil {
		if holder, ok := claims.Claim(st.run.branch, st.run.runID); !ok {
			return st, &BranchConflictError{
				Branch:        st.run.branch,
				HeldByRunID:   holder,
				RequestedByID: st.run.runID,
			}
		}
	}

	// A retried or recovered attempt may find its own branch already
	// created; only a branch we do not hold the claim for is a conflict.
	exists, err := scm.BranchExists(ctx, st.run.branch)
	if err != nil {
		return st, fmt.Errorf("committing: probe branch: %w", err)
	}
	if !exists {
		if err := scm.CreateBranch(ctx, st.run.branch, settings.BaseBranch); err != nil {
			if errors.Is(err, ErrBranchConflict) {
				return st, &BranchConflictError{Branch: st.run.branch, RequestedByID: st.run.runID}
			}
			return st, fmt.Errorf("committing: create branch: %w", err)
		}
		if err := appendEffect(ctx, st, StageCommitting, ledger.EffectBranch, st.run.branch); err != nil {
			return st, err
		}
	}

	sha, err := scm.Commit(ctx, provider.CommitOptions{
		Branch:  st.run.branch,
		Message: st.commitMessage,
		Files:   st.files,
		Author:  commitAuthor,
	})
	if err != nil {
		return st, fmt.Errorf("committing: %w", err)
	}
	st.commitSHA = sha

	if err := appendEffect(ctx, st, StageCommitting, ledger.EffectCommit, sha); err != nil {
		return st, err
	}
	return st, nil
}
