package quality

import (
	"testing"

	"github.com/c360studio/foreman/task"
)

// fixedScorer returns the same score for any input.
type fixedScorer struct {
	score float64
}

func (f *fixedScorer) Score(string, task.Type) float64 {
	return f.score
}

func (f *fixedScorer) Evaluate(content string, docType task.Type, threshold float64) *Result {
	return &Result{Valid: true, Score: f.score}
}

func TestConsensusAchieved(t *testing.T) {
	c := NewConsensusEvaluator(&fixedScorer{score: 0.72})

	decision := c.Evaluate("content", task.TypeDesign, 0.70)
	if !decision.Achieved {
		t.Error("score 0.72 against threshold 0.70 must achieve consensus")
	}
	if !approx(decision.Score, 0.72) {
		t.Errorf("decision score = %.2f, want 0.72", decision.Score)
	}
}

func TestConsensusNotAchieved(t *testing.T) {
	c := NewConsensusEvaluator(&fixedScorer{score: 0.65})

	decision := c.Evaluate("content", task.TypeDesign, 0.70)
	if decision.Achieved {
		t.Error("score 0.65 against threshold 0.70 must not achieve consensus")
	}
}

func TestConsensusParticipantScores(t *testing.T) {
	c := NewConsensusEvaluator(&fixedScorer{score: 0.80})

	decision := c.Evaluate("content", task.TypeReview, 0.70)
	if len(decision.ParticipantScores) != 3 {
		t.Fatalf("expected 3 participant scores, got %d", len(decision.ParticipantScores))
	}

	want := map[string]float64{
		"reviewer-1": 0.80,
		"reviewer-2": 0.85,
		"reviewer-3": 0.75,
	}
	for _, p := range decision.ParticipantScores {
		if !approx(p.Score, want[p.Participant]) {
			t.Errorf("%s score = %.2f, want %.2f", p.Participant, p.Score, want[p.Participant])
		}
	}
}

func TestConsensusParticipantScoresClamped(t *testing.T) {
	c := NewConsensusEvaluator(&fixedScorer{score: 0.98})

	decision := c.Evaluate("content", task.TypeReview, 0.70)
	for _, p := range decision.ParticipantScores {
		if p.Score > 1.0 || p.Score < 0 {
			t.Errorf("%s score %.2f outside [0, 1]", p.Participant, p.Score)
		}
	}
}

func TestConsensusDecisionIgnoresParticipantOffsets(t *testing.T) {
	// Base exactly at threshold: the negative synthetic offset must not flip
	// the decision.
	c := NewConsensusEvaluator(&fixedScorer{score: 0.70})

	decision := c.Evaluate("content", task.TypeDesign, 0.70)
	if !decision.Achieved {
		t.Error("a base score equal to the threshold must achieve consensus")
	}
}

func TestConsensusDefaultScorer(t *testing.T) {
	c := NewConsensusEvaluator(nil)

	decision := c.Evaluate("plain prose without structure here", task.TypeSpec, 0.70)
	if !approx(decision.Score, 0.70) {
		t.Errorf("default scorer base = %.2f, want 0.70", decision.Score)
	}
	if !decision.Achieved {
		t.Error("base score at threshold must be achieved")
	}
}
