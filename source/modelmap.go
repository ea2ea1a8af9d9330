package source

import (
	"github.com/randalmurphal/llmkit/model"
)

// Workflow kinds, mirrored from the engine so adapters can pick models
// without importing it.
const (
	KindFeature = "feature"
	KindHotfix  = "hotfix"
	KindRelease = "release"
	KindReview  = "review"
)

// DefaultModelMap maps workflow kinds to default Claude models. Hotfixes
// and reviews get the reasoning tier; release note generation is cheap.
var DefaultModelMap = map[string]model.ModelName{
	KindHotfix:  model.ModelOpus,
	KindReview:  model.ModelOpus,
	KindFeature: model.ModelSonnet,
	KindRelease: model.ModelHaiku,
}

// TierForKind returns the appropriate model tier for a workflow kind.
func TierForKind(kind string) model.Tier {
	switch kind {
	case KindHotfix, KindReview:
		return model.TierThinking
	case KindRelease:
		return model.TierFast
	default:
		return model.TierDefault
	}
}

// NewSelector creates a model selector configured for workflow kinds.
func NewSelector(opts ...model.SelectorOption) *model.Selector {
	allOpts := append([]model.SelectorOption{
		model.WithTierFunc(func(task any) model.Tier {
			if kind, ok := task.(string); ok {
				return TierForKind(kind)
			}
			return model.TierDefault
		}),
	}, opts...)

	return model.NewSelector(allOpts...)
}

// SelectModel selects the model for a workflow kind.
func SelectModel(kind string) model.ModelName {
	if m, ok := DefaultModelMap[kind]; ok {
		return m
	}
	switch TierForKind(kind) {
	case model.TierThinking:
		return model.ModelOpus
	case model.TierFast:
		return model.ModelHaiku
	default:
		return model.ModelSonnet
	}
}
