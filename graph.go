package quorumflow

import (
	"fmt"

	"github.com/randalmurphal/flowgraph/pkg/flowgraph"
)

// runGraphFn executes a compiled workflow graph from its entry stage.
type runGraphFn func(ctx flowgraph.Context, state runState) (runState, error)

// buildGraph compiles the workflow graph with the given entry stage. The
// entry is normally planning; recovery sets it to the stage an
// interrupted run should resume from. One graph shape serves every
// workflow kind: the router after reviewing ends review runs early.
func buildGraph(entry Stage) (runGraphFn, error) {
	if !validStage(entry) {
		return nil, fmt.Errorf("unknown entry stage %q", entry)
	}

	graph := flowgraph.NewGraph[runState]().
		AddNode(string(StagePlanning), stageNode(StagePlanning, planStage)).
		AddNode(string(StageGenerating), stageNode(StageGenerating, generateStage)).
		AddNode(string(StageValidating), stageNode(StageValidating, validateStage)).
		AddNode(string(StageCommitting), stageNode(StageCommitting, commitStage)).
		AddNode(string(StageReviewing), stageNode(StageReviewing, reviewStage)).
		AddNode(string(StageDeploying), stageNode(StageDeploying, deployStage)).
		AddNode(string(StageReleasing), stageNode(StageReleasing, releaseStage)).
		AddEdge(string(StagePlanning), string(StageGenerating)).
		AddEdge(string(StageGenerating), string(StageValidating)).
		AddEdge(string(StageValidating), string(StageCommitting)).
		AddEdge(string(StageCommitting), string(StageReviewing)).
		AddConditionalEdge(string(StageReviewing), afterReview).
		AddEdge(string(StageDeploying), string(StageReleasing)).
		AddEdge(string(StageReleasing), flowgraph.END).
		SetEntry(string(entry))

	compiled, err := graph.Compile()
	if err != nil {
		return nil, fmt.Errorf("compile workflow graph: %w", err)
	}
	return func(ctx flowgraph.Context, state runState) (runState, error) {
		return compiled.Run(ctx, state)
	}, nil
}

// afterReview routes review runs straight to completion; every other kind
// continues into deployment.
func afterReview(ctx flowgraph.Context, state runState) string {
	if state.run.request.Kind == KindReview {
		return flowgraph.END
	}
	return string(StageDeploying)
}
