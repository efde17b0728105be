// Package quality provides the content quality gate for workflow artifacts.
// Scoring is deterministic and side-effect free so the heuristic scorer can be
// swapped for a real evaluation backend without touching the workflow engine.
package quality

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/c360studio/foreman/task"
)

// Result is the outcome of evaluating an artifact against the quality gate.
type Result struct {
	Valid             bool      `json:"valid"`
	Score             float64   `json:"score"`
	Errors            []string  `json:"errors,omitempty"`
	Warnings          []string  `json:"warnings,omitempty"`
	Suggestions       []string  `json:"suggestions,omitempty"`
	ConsensusAchieved *bool     `json:"consensus_achieved,omitempty"`
	Timestamp         time.Time `json:"timestamp"`
}

// Scorer scores artifact content against a document type. Implementations
// must be deterministic: identical (content, type) always yields an identical
// score, and Evaluate must have no side effects.
type Scorer interface {
	// Score returns a quality score in [0, 1].
	Score(content string, docType task.Type) float64

	// Evaluate scores content and decides pass/fail against threshold.
	Evaluate(content string, docType task.Type, threshold float64) *Result
}

// minContentLength is the hard floor below which content is rejected outright.
const minContentLength = 10

// shortContentScore is the fixed score assigned to rejected short content.
const shortContentScore = 0.3

// Structural markers, matched at line starts.
var (
	topHeadingRe = regexp.MustCompile(`(?m)^#\s+`)
	subHeadingRe = regexp.MustCompile(`(?m)^##\s+`)
	listMarkerRe = regexp.MustCompile(`(?m)^\s*[-*]\s+`)
)

// typeTerms maps document types to the term whose presence earns the
// type-specific bonus.
var typeTerms = map[task.Type]string{
	task.TypeSpec:   "requirement",
	task.TypeDesign: "architecture",
	task.TypeTest:   "test case",
}

// recommendedSections maps document types to the section heading the gate
// expects to find. Absence is a warning, not a failure.
var recommendedSections = map[task.Type]struct {
	name    string
	pattern *regexp.Regexp
}{
	task.TypeSpec:   {"Requirements", regexp.MustCompile(`(?mi)^#{1,2}\s+requirements?\b`)},
	task.TypeDesign: {"Architecture", regexp.MustCompile(`(?mi)^#{1,2}\s+architecture\b`)},
	task.TypeTest:   {"Test Cases", regexp.MustCompile(`(?mi)^#{1,2}\s+test\s+cases?\b`)},
}

// HeuristicScorer is the default keyword/length scorer.
type HeuristicScorer struct{}

// NewHeuristicScorer creates the default scorer.
func NewHeuristicScorer() *HeuristicScorer {
	return &HeuristicScorer{}
}

// Score computes the heuristic quality score for content of the given type.
func (s *HeuristicScorer) Score(content string, docType task.Type) float64 {
	score := 0.70

	if len(content) >= 100 {
		score += 0.10
	}
	if topHeadingRe.MatchString(content) {
		score += 0.05
	}
	if subHeadingRe.MatchString(content) {
		score += 0.05
	}
	if listMarkerRe.MatchString(content) {
		score += 0.05
	}
	if strings.Count(content, "\n") >= 5 {
		score += 0.05
	}
	if term, ok := typeTerms[docType]; ok {
		if strings.Contains(strings.ToLower(content), term) {
			score += 0.10
		}
	}

	if score > 1.0 {
		score = 1.0
	}
	return score
}

// Evaluate scores content and reports pass/fail against threshold.
func (s *HeuristicScorer) Evaluate(content string, docType task.Type, threshold float64) *Result {
	result := &Result{Timestamp: time.Now()}

	if len(content) < minContentLength {
		result.Valid = false
		result.Score = shortContentScore
		result.Errors = append(result.Errors,
			fmt.Sprintf("content too short: %d characters, minimum %d", len(content), minContentLength))
		return result
	}

	result.Valid = true
	result.Score = s.Score(content, docType)

	if section, ok := recommendedSections[docType]; ok {
		if !section.pattern.MatchString(content) {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("missing recommended section: %s", section.name))
		}
	}

	if result.Score < threshold {
		result.Suggestions = append(result.Suggestions,
			fmt.Sprintf("score %.2f is below threshold %.2f; add headings, lists, and %s detail",
				result.Score, threshold, docType))
	}

	return result
}
