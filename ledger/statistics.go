package ledger

// Statistics summarizes everything the ledger has recorded.
type Statistics struct {
	// Operations is the total number of runs started.
	Operations int `json:"operations"`

	// Succeeded and Failed count terminal runs. Aborted counts runs
	// cancelled by request.
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Aborted   int `json:"aborted"`

	// Side-effect counters folded from stage logs.
	Branches    int `json:"branches"`
	Commits     int `json:"commits"`
	PRs         int `json:"prs"`
	Merges      int `json:"merges"`
	Deployments int `json:"deployments"`
	Releases    int `json:"releases"`
}

// Statistics folds all recorded runs into aggregate counters. The fold is
// recomputed from disk each call, so it survives restarts without any
// separate counter state.
func (s *FileStore) Statistics() (Statistics, error) {
	runs, err := s.AllRuns()
	if err != nil {
		return Statistics{}, err
	}

	var stats Statistics
	for _, meta := range runs {
		stats.Operations++
		switch meta.Status {
		case StatusSucceeded:
			stats.Succeeded++
		case StatusFailed:
			stats.Failed++
		case StatusAborted:
			stats.Aborted++
		}

		records, err := s.Records(meta.RunID)
		if err != nil {
			continue
		}
		for _, rec := range records {
			if rec.Event != EventCompleted {
				continue
			}
			switch rec.Effect {
			case EffectBranch:
				stats.Branches++
			case EffectCommit:
				stats.Commits++
			case EffectPR:
				stats.PRs++
			case EffectMerge:
				stats.Merges++
			case EffectDeployment:
				stats.Deployments++
			case EffectRelease:
				stats.Releases++
			}
		}
	}

	return stats, nil
}
