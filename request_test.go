package quorumflow

import (
	"strings"
	"testing"
)

func TestNewRequestDefaults(t *testing.T) {
	req := NewRequest(KindFeature, "  add caching  ")
	if !strings.HasPrefix(req.ID, "req-") {
		t.Errorf("ID = %q, want req- prefix", req.ID)
	}
	if req.Description != "add caching" {
		t.Errorf("Description = %q, want trimmed", req.Description)
	}
	if req.Priority != PriorityNormal {
		t.Errorf("Priority = %q, want %q", req.Priority, PriorityNormal)
	}
	if err := req.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestRequestValidate(t *testing.T) {
	tests := []struct {
		name    string
		req     WorkflowRequest
		wantErr bool
	}{
		{"valid", WorkflowRequest{ID: "req-1", Kind: KindHotfix, Description: "fix it"}, false},
		{"missing id", WorkflowRequest{Kind: KindHotfix, Description: "fix it"}, true},
		{"unknown kind", WorkflowRequest{ID: "req-1", Kind: "deploy", Description: "x"}, true},
		{"blank description", WorkflowRequest{ID: "req-1", Kind: KindFeature, Description: "   "}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestBranchNameByKind(t *testing.T) {
	tests := []struct {
		kind Kind
		desc string
		want string
	}{
		{KindFeature, "Add OAuth2 support", "feature/add-oauth2-support"},
		{KindHotfix, "fix NPE in login!!", "hotfix/fix-npe-in-login"},
		{KindRelease, "ship v2", "release/ship-v2"},
		{KindReview, "audit cache layer", "review/audit-cache-layer"},
	}
	for _, tt := range tests {
		req := WorkflowRequest{ID: "req-abc", Kind: tt.kind, Description: tt.desc}
		if got := req.BranchName(); got != tt.want {
			t.Errorf("BranchName(%q, %q) = %q, want %q", tt.kind, tt.desc, got, tt.want)
		}
	}
}

func TestBranchNameIsDeterministic(t *testing.T) {
	a := WorkflowRequest{ID: "req-one", Kind: KindFeature, Description: "same work"}
	b := WorkflowRequest{ID: "req-two", Kind: KindFeature, Description: "same work"}
	if a.BranchName() != b.BranchName() {
		t.Errorf("branches differ for identical work: %q vs %q", a.BranchName(), b.BranchName())
	}
}

func TestReleaseTagIsStablePerRequest(t *testing.T) {
	req := WorkflowRequest{ID: "req-stable99", Kind: KindRelease, Description: "ship the thing"}
	if req.ReleaseTag() != req.ReleaseTag() {
		t.Error("ReleaseTag must be deterministic")
	}
	other := WorkflowRequest{ID: "req-other777", Kind: KindRelease, Description: "ship the thing"}
	if req.ReleaseTag() == other.ReleaseTag() {
		t.Error("distinct requests must get distinct tags")
	}
}

func TestRequestTitle(t *testing.T) {
	req := WorkflowRequest{ID: "req-1", Kind: KindHotfix, Description: "patch the session leak"}
	if got := req.Title(); got != "Hotfix: patch the session leak" {
		t.Errorf("Title = %q", got)
	}

	long := WorkflowRequest{ID: "req-2", Kind: KindFeature, Description: strings.Repeat("very long description ", 10)}
	if got := long.Title(); len(got) > 90 {
		t.Errorf("Title not truncated: %d chars", len(got))
	}
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"Hello, World!", 40, "hello-world"},
		{"  spaces   everywhere  ", 40, "spaces-everywhere"},
		{"UPPER_case-mix 123", 40, "upper-case-mix-123"},
		{"truncate me please", 8, "truncate"},
		{"!!!", 40, ""},
	}
	for _, tt := range tests {
		if got := slugify(tt.in, tt.max); got != tt.want {
			t.Errorf("slugify(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
		}
	}
}

func TestBranchClaims(t *testing.T) {
	claims := newBranchClaims()

	if holder, ok := claims.Claim("feature/x", "run-1"); !ok || holder != "run-1" {
		t.Fatalf("first claim: holder=%q ok=%v", holder, ok)
	}
	// Re-claiming by the same run is idempotent.
	if _, ok := claims.Claim("feature/x", "run-1"); !ok {
		t.Error("same-run re-claim should succeed")
	}
	if holder, ok := claims.Claim("feature/x", "run-2"); ok || holder != "run-1" {
		t.Errorf("conflicting claim: holder=%q ok=%v, want run-1 and false", holder, ok)
	}

	// Release by a non-holder is ignored.
	claims.Release("feature/x", "run-2")
	if holder, _ := claims.Holder("feature/x"); holder != "run-1" {
		t.Errorf("holder = %q after foreign release, want run-1", holder)
	}

	claims.Release("feature/x", "run-1")
	if _, ok := claims.Claim("feature/x", "run-2"); !ok {
		t.Error("claim after release should succeed")
	}
}

func TestStageSequences(t *testing.T) {
	if got := stagesFor(KindReview); got[len(got)-1] != StageReviewing {
		t.Errorf("review sequence ends at %s, want %s", got[len(got)-1], StageReviewing)
	}
	if got := stagesFor(KindRelease); got[len(got)-1] != StageReleasing {
		t.Errorf("release sequence ends at %s, want %s", got[len(got)-1], StageReleasing)
	}
	if next := nextStage(KindReview, StageReviewing); next != "" {
		t.Errorf("nextStage(review, reviewing) = %q, want end", next)
	}
	if next := nextStage(KindFeature, StageReviewing); next != StageDeploying {
		t.Errorf("nextStage(feature, reviewing) = %q, want %q", next, StageDeploying)
	}
	if next := nextStage(KindFeature, StageReleasing); next != "" {
		t.Errorf("nextStage(feature, releasing) = %q, want end", next)
	}
}
