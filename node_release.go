package quorumflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/randalmurphal/quorumflow/ledger"
	"github.com/randalmurphal/quorumflow/notify"
	"github.com/randalmurphal/quorumflow/provider"
)

// releaseStage tags and publishes a release for release runs. Other kinds
// pass through; their sequence still visits the stage so every run's
// history reads the same way. An already-existing release with the run's
// tag is treated as done, which makes a recovered attempt idempotent.
func releaseStage(ctx context.Context, st runState) (runState, error) {
	req := st.run.request
	if req.Kind != KindRelease {
		return st, nil
	}

	scm := MustSCMFromContext(ctx)
	tag := req.ReleaseTag()
	rel, err := scm.CreateRelease(ctx, provider.ReleaseOptions{
		Tag:       tag,
		Name:      req.Title(),
		Changelog: releaseChangelog(st),
		Ref:       st.commitSHA,
	})
	if err != nil {
		if errors.Is(err, provider.ErrReleaseExists) {
			return st, nil
		}
		return st, fmt.Errorf("releasing %s: %w", tag, err)
	}
	st.release = rel

	if err := appendEffect(ctx, st, StageReleasing, ledger.EffectRelease, tag); err != nil {
		return st, err
	}
	emit(ctx, st, notify.Event{
		Type:      notify.EventReleased,
		Stage:     string(StageReleasing),
		Severity:  notify.SeverityInfo,
		Message:   fmt.Sprintf("published release %s", tag),
		Timestamp: time.Now().UTC(),
	})
	return st, nil
}

// releaseChangelog renders release notes from the decision.
func releaseChangelog(st runState) string {
	if st.decision == nil {
		return st.run.request.Description
	}
	return renderChangelog(st.run.request, st.decision.ChosenContent)
}
