package quality

import (
	"math"
	"strings"
	"testing"

	"github.com/c360studio/foreman/task"
)

// approx compares scores with a tolerance for float accumulation.
func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

// richSpec has every scoring bonus: length, headings, lists, line count,
// and the spec type term.
const richSpec = `# Payment Service Specification

## Requirements

- The user can submit a payment request
- Each requirement is traceable to a goal
- Failures are reported within one second

## Out of Scope

- Refund handling
`

func TestEvaluateRejectsShortContent(t *testing.T) {
	s := NewHeuristicScorer()

	result := s.Evaluate("too short", task.TypeSpec, 0.8)
	if result.Valid {
		t.Error("short content must be invalid")
	}
	if result.Score != shortContentScore {
		t.Errorf("short content score = %.2f, want %.2f", result.Score, shortContentScore)
	}
	if len(result.Errors) != 1 || !strings.Contains(result.Errors[0], "content too short") {
		t.Errorf("expected a short-content error, got %v", result.Errors)
	}
}

func TestEvaluateRichContent(t *testing.T) {
	s := NewHeuristicScorer()

	result := s.Evaluate(richSpec, task.TypeSpec, 0.8)
	if !result.Valid {
		t.Fatal("rich content must be valid")
	}
	if result.Score != 1.0 {
		t.Errorf("rich content score = %.2f, want 1.0", result.Score)
	}
	if len(result.Warnings) != 0 {
		t.Errorf("unexpected warnings: %v", result.Warnings)
	}
	if len(result.Suggestions) != 0 {
		t.Errorf("unexpected suggestions: %v", result.Suggestions)
	}
}

func TestEvaluateMissingSectionWarns(t *testing.T) {
	s := NewHeuristicScorer()

	content := "# Design Notes\n\nA quick sketch of the approach without the expected section.\n"
	result := s.Evaluate(content, task.TypeDesign, 0.8)
	if !result.Valid {
		t.Fatal("content above the length floor must be valid")
	}

	found := false
	for _, w := range result.Warnings {
		if strings.Contains(w, "Architecture") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected missing Architecture warning, got %v", result.Warnings)
	}
}

func TestEvaluateBelowThresholdSuggests(t *testing.T) {
	s := NewHeuristicScorer()

	// Plain prose: base score only.
	content := "plain prose without any structure at all"
	result := s.Evaluate(content, task.TypeImplementation, 0.8)
	if !approx(result.Score, 0.70) {
		t.Errorf("plain prose score = %.2f, want 0.70", result.Score)
	}
	if len(result.Suggestions) == 0 {
		t.Error("expected a suggestion when score is below threshold")
	}
}

func TestScoreBonuses(t *testing.T) {
	s := NewHeuristicScorer()

	cases := []struct {
		name    string
		content string
		docType task.Type
		want    float64
	}{
		{"base only", "short plain text that stays", task.TypeImplementation, 0.70},
		{"top heading", "# Title\nbody text", task.TypeImplementation, 0.75},
		{"list marker", "- item one\nplain", task.TypeImplementation, 0.75},
		{"type term", "the architecture is layered", task.TypeDesign, 0.80},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := s.Score(tc.content, tc.docType); !approx(got, tc.want) {
				t.Errorf("Score = %.2f, want %.2f", got, tc.want)
			}
		})
	}
}

func TestScoreIsDeterministic(t *testing.T) {
	s := NewHeuristicScorer()

	first := s.Score(richSpec, task.TypeSpec)
	for i := 0; i < 10; i++ {
		if got := s.Score(richSpec, task.TypeSpec); got != first {
			t.Fatalf("score changed between calls: %.4f != %.4f", got, first)
		}
	}
}
