package orchestrator

import "github.com/dispatchd/dispatch/pkg/models"

// MatchPolicy holds the tunable conventions of the capability matcher.
type MatchPolicy struct {
	// EmptyRequiredScore is the score assigned when a task requires no
	// capabilities: the requirement is trivially satisfied.
	EmptyRequiredScore float64
}

// DefaultMatchPolicy returns the standard policy: an empty requirement
// set scores 1.
func DefaultMatchPolicy() MatchPolicy {
	return MatchPolicy{EmptyRequiredScore: 1.0}
}

// CapabilityMatcher scores worker fit and picks the best candidate.
// It is a pure, stateless function of its inputs and policy.
type CapabilityMatcher struct {
	policy MatchPolicy
}

// NewCapabilityMatcher creates a matcher with the given policy.
func NewCapabilityMatcher(policy MatchPolicy) *CapabilityMatcher {
	return &CapabilityMatcher{policy: policy}
}

// MatchScore returns |required ∩ available| / |required|.
// An empty required set scores the policy's EmptyRequiredScore.
func (m *CapabilityMatcher) MatchScore(required, available []string) float64 {
	if len(required) == 0 {
		return m.policy.EmptyRequiredScore
	}

	availSet := make(map[string]bool, len(available))
	for _, c := range available {
		availSet[c] = true
	}

	matched := 0
	for _, c := range required {
		if availSet[c] {
			matched++
		}
	}
	return float64(matched) / float64(len(required))
}

// FindBestMatch returns the candidate with the highest match score.
// Ties break deterministically in favor of the earlier candidate.
// Returns nil only when every candidate scores exactly 0: a non-zero
// but imperfect match is still returned.
func (m *CapabilityMatcher) FindBestMatch(required []string, candidates []*models.Worker) *models.Worker {
	var best *models.Worker
	var bestScore float64

	for _, candidate := range candidates {
		score := m.MatchScore(required, candidate.Capabilities)
		if score > bestScore {
			best = candidate
			bestScore = score
		}
	}
	return best
}
