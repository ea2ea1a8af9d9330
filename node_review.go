package quorumflow

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/randalmurphal/quorumflow/ledger"
	"github.com/randalmurphal/quorumflow/notify"
	"github.com/randalmurphal/quorumflow/provider"
)

// reviewStage opens a pull request for the run's branch. Opening is
// idempotent: if a pull request already exists for the branch it is
// adopted instead of duplicated. When auto-merge is enabled the pull
// request is squash-merged immediately for non-review workflows.
func reviewStage(ctx context.Context, st runState) (runState, error) {
	scm := MustSCMFromContext(ctx)
	settings := SettingsFromContext(ctx)
	req := st.run.request

	pr, err := scm.OpenPR(ctx, provider.PROptions{
		Title:  req.Title(),
		Body:   prBody(st),
		Base:   settings.BaseBranch,
		Head:   st.run.branch,
		Labels: []string{"quorumflow", string(req.Kind)},
	})
	switch {
	case err == nil:
		if effErr := appendEffect(ctx, st, StageReviewing, ledger.EffectPR, strconv.Itoa(pr.ID)); effErr != nil {
			return st, effErr
		}
		emit(ctx, st, notify.Event{
			Type:      notify.EventPROpened,
			Stage:     string(StageReviewing),
			Severity:  notify.SeverityInfo,
			Message:   fmt.Sprintf("opened PR #%d: %s", pr.ID, pr.URL),
			Timestamp: time.Now().UTC(),
		})
	case errors.Is(err, provider.ErrPRExists):
		pr, err = scm.PRForBranch(ctx, st.run.branch)
		if err != nil {
			return st, fmt.Errorf("reviewing: adopt existing PR: %w", err)
		}
	default:
		return st, fmt.Errorf("reviewing: %w", err)
	}
	st.pr = pr

	if settings.AutoMerge && req.Kind != KindReview && pr.State == provider.PRStateOpen {
		err := scm.MergePR(ctx, pr.ID, provider.MergeOptions{
			Method:       provider.MergeMethodSquash,
			CommitTitle:  req.Title(),
			DeleteBranch: false,
		})
		if err != nil {
			return st, fmt.Errorf("reviewing: merge PR #%d: %w", pr.ID, err)
		}
		st.merged = true
		if effErr := appendEffect(ctx, st, StageReviewing, ledger.EffectMerge, strconv.Itoa(pr.ID)); effErr != nil {
			return st, effErr
		}
	}
	return st, nil
}

// prBody renders the pull request description from the decision.
func prBody(st runState) string {
	var b strings.Builder
	b.WriteString("## Task\n\n")
	b.WriteString(st.run.request.Description)
	if st.decision != nil {
		b.WriteString("\n\n## Consensus\n\n")
		fmt.Fprintf(&b, "%s\n\nAgreement: %.2f (sources: %s)\n",
			st.decision.Rationale,
			st.decision.AgreementScore,
			strings.Join(st.decision.ContributingSources, ", "))
	}
	if len(st.unreachable) > 0 {
		fmt.Fprintf(&b, "\nUnreachable sources: %s\n", strings.Join(st.unreachable, ", "))
	}
	return b.String()
}
