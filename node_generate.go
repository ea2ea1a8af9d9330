package quorumflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/randalmurphal/quorumflow/provider"
)

// generateStage renders the decision into the concrete artifacts the
// committing stage will write: a proposal document, a changelog entry for
// release runs, and the commit message. Rendering is a pure function of
// the request and decision, which lets recovery rebuild identical
// artifacts after a restart.
func generateStage(ctx context.Context, st runState) (runState, error) {
	if st.decision == nil {
		return st, fmt.Errorf("generating: no decision to render")
	}
	st.files = renderFiles(st.run.request, st.decision.ChosenContent, st.decision.Rationale)
	st.commitMessage = commitMessage(st.run.request)
	return st, nil
}

// commitMessage derives the deterministic commit message for a request.
// The committing recovery probe compares branch heads against it, so it
// must not vary between runs of the same request.
func commitMessage(req WorkflowRequest) string {
	return req.Title() + "\n\nRequest-ID: " + req.ID
}

// renderFiles produces the file changes for a run.
func renderFiles(req WorkflowRequest, content, rationale string) []provider.FileChange {
	doc := renderProposalDoc(req, content, rationale)
	files := []provider.FileChange{{
		Path:      fmt.Sprintf("docs/proposals/%s.md", shortID(req.ID)),
		Operation: "create",
		Content:   doc,
	}}
	if req.Kind == KindRelease {
		files = append(files, provider.FileChange{
			Path:      fmt.Sprintf("docs/changelog/%s.md", req.ReleaseTag()),
			Operation: "create",
			Content:   renderChangelog(req, content),
		})
	}
	return files
}

func renderProposalDoc(req WorkflowRequest, content, rationale string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", req.Title())
	fmt.Fprintf(&b, "Request: %s\n\n", req.ID)
	b.WriteString("## Task\n\n")
	b.WriteString(req.Description)
	b.WriteString("\n\n## Proposal\n\n")
	b.WriteString(strings.TrimSpace(content))
	if rationale != "" {
		b.WriteString("\n\n## Rationale\n\n")
		b.WriteString(rationale)
	}
	b.WriteString("\n")
	return b.String()
}

func renderChangelog(req WorkflowRequest, content string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", req.ReleaseTag())
	b.WriteString(strings.TrimSpace(content))
	b.WriteString("\n")
	return b.String()
}
