package quorumflow

import (
	"context"
	"fmt"
	"time"

	"github.com/randalmurphal/quorumflow/ledger"
	"github.com/randalmurphal/quorumflow/notify"
)

// deployStage creates a deployment for the run's artifact. Release runs
// always deploy; feature and hotfix runs deploy only when auto-deploy is
// enabled, otherwise the stage completes as a recorded no-op.
func deployStage(ctx context.Context, st runState) (runState, error) {
	settings := SettingsFromContext(ctx)
	req := st.run.request

	if req.Kind != KindRelease && !settings.AutoDeploy {
		return st, nil
	}

	scm := MustSCMFromContext(ctx)
	env, ref := deployTarget(st)
	dep, err := scm.Deploy(ctx, env, ref)
	if err != nil {
		return st, fmt.Errorf("deploying to %s: %w", env, err)
	}
	st.deployment = dep

	detail := fmt.Sprintf("%s %s", env, ref)
	if err := appendEffect(ctx, st, StageDeploying, ledger.EffectDeployment, detail); err != nil {
		return st, err
	}
	emit(ctx, st, notify.Event{
		Type:      notify.EventDeployed,
		Stage:     string(StageDeploying),
		Severity:  notify.SeverityInfo,
		Message:   fmt.Sprintf("deployed %s to %s", ref, env),
		Timestamp: time.Now().UTC(),
	})
	return st, nil
}
