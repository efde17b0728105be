package quality

import (
	"github.com/c360studio/foreman/task"
)

// ParticipantScore is one reviewer's score, reported for visibility only.
type ParticipantScore struct {
	Participant string  `json:"participant"`
	Score       float64 `json:"score"`
}

// Decision is the outcome of a consensus evaluation.
type Decision struct {
	Achieved          bool               `json:"achieved"`
	Score             float64            `json:"score"`
	ParticipantScores []ParticipantScore `json:"participant_scores"`
}

// participantOffsets synthesize reviewer scores as fixed offsets from the
// base score. They exist for reporting only and never affect the decision:
// letting synthetic scores vote would make acceptance nondeterministic.
var participantOffsets = []struct {
	name   string
	offset float64
}{
	{"reviewer-1", 0},
	{"reviewer-2", +0.05},
	{"reviewer-3", -0.05},
}

// ConsensusEvaluator produces an accept/reject decision usable when multiple
// reviewers must agree. Without a real multi-agent mechanism configured it
// fails closed: acceptance is exactly the deterministic score check.
type ConsensusEvaluator struct {
	scorer Scorer
}

// NewConsensusEvaluator wraps a scorer in a consensus decision.
func NewConsensusEvaluator(scorer Scorer) *ConsensusEvaluator {
	if scorer == nil {
		scorer = NewHeuristicScorer()
	}
	return &ConsensusEvaluator{scorer: scorer}
}

// Evaluate computes the base score and decides acceptance against threshold.
func (c *ConsensusEvaluator) Evaluate(content string, docType task.Type, threshold float64) Decision {
	base := c.scorer.Score(content, docType)

	decision := Decision{
		Achieved: base >= threshold,
		Score:    base,
	}
	for _, p := range participantOffsets {
		score := base + p.offset
		if score > 1.0 {
			score = 1.0
		}
		if score < 0 {
			score = 0
		}
		decision.ParticipantScores = append(decision.ParticipantScores, ParticipantScore{
			Participant: p.name,
			Score:       score,
		})
	}
	return decision
}
