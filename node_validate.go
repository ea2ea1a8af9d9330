package quorumflow

import (
	"context"
	"fmt"
	"strings"
)

// validateStage checks the generated artifacts before anything durable
// happens. Validation failures are not retryable: re-running the same
// pure rendering cannot fix them.
func validateStage(ctx context.Context, st runState) (runState, error) {
	if st.decision == nil {
		return st, fmt.Errorf("validating: decision missing")
	}
	if strings.TrimSpace(st.decision.ChosenContent) == "" {
		return st, fmt.Errorf("validating: decision has empty content")
	}
	if len(st.files) == 0 {
		return st, fmt.Errorf("validating: no file changes generated")
	}
	for _, f := range st.files {
		if f.Path == "" {
			return st, fmt.Errorf("validating: file change with empty path")
		}
		if f.Operation != "delete" && strings.TrimSpace(f.Content) == "" {
			return st, fmt.Errorf("validating: empty content for %s", f.Path)
		}
	}
	if strings.TrimSpace(st.commitMessage) == "" {
		return st, fmt.Errorf("validating: commit message missing")
	}
	if st.run.request.Kind == KindRelease && st.run.request.ReleaseTag() == "" {
		return st, fmt.Errorf("validating: release tag could not be derived")
	}
	return st, nil
}
