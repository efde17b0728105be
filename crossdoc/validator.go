package crossdoc

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Alignment thresholds. The overall threshold gates the document set as a
// whole; the per-document threshold triggers targeted recommendations.
const (
	overallThreshold  = 0.95
	documentThreshold = 0.90
)

// Axis identifies one alignment vocabulary.
type Axis string

const (
	AxisProduct    Axis = "product"
	AxisStructure  Axis = "structure"
	AxisTechnology Axis = "technology"
)

// axisVocabularies are the fixed keyword lists per alignment axis.
// Each matched keyword is worth 0.05 on that axis.
var axisVocabularies = map[Axis][]string{
	AxisProduct:    {"user", "feature", "requirement", "goal", "workflow"},
	AxisStructure:  {"architecture", "component", "module", "interface", "layer"},
	AxisTechnology: {"framework", "language", "database", "technology", "deployment"},
}

// allAxes fixes the iteration order so results are deterministic.
var allAxes = []Axis{AxisProduct, AxisStructure, AxisTechnology}

// Structural markers worth 0.05 each per axis.
var (
	headingRe    = regexp.MustCompile(`(?m)^#\s+`)
	subHeadingRe = regexp.MustCompile(`(?m)^##\s+`)
	listRe       = regexp.MustCompile(`(?m)^\s*[-*]\s+`)
)

// DocumentScore holds the per-axis sub-scores and their mean for one document.
type DocumentScore struct {
	Axes    map[Axis]float64 `json:"axes"`
	Average float64          `json:"average"`
}

// Result is the outcome of cross-document validation.
type Result struct {
	// OverallAlignment is the mean of per-document averages across all
	// documents present.
	OverallAlignment float64                        `json:"overall_alignment"`
	Documents        map[DocumentType]DocumentScore `json:"documents"`
	Issues           []string                       `json:"issues,omitempty"`
	Recommendations  []string                       `json:"recommendations,omitempty"`
	Timestamp        time.Time                      `json:"timestamp"`
}

// Validator computes cross-document alignment.
type Validator struct{}

// NewValidator creates a cross-document validator.
func NewValidator() *Validator {
	return &Validator{}
}

// axisScore computes one axis sub-score: base 0.70 plus 0.05 per matched
// vocabulary keyword plus 0.05 per structural marker, capped at 1.0.
func axisScore(content string, axis Axis) float64 {
	score := 0.70
	lower := strings.ToLower(content)

	for _, keyword := range axisVocabularies[axis] {
		if strings.Contains(lower, keyword) {
			score += 0.05
		}
	}
	if headingRe.MatchString(content) {
		score += 0.05
	}
	if subHeadingRe.MatchString(content) {
		score += 0.05
	}
	if listRe.MatchString(content) {
		score += 0.05
	}

	if score > 1.0 {
		score = 1.0
	}
	return score
}

// Alignment scores a set of related documents and reports consistency issues.
// The dependency check never alters the numeric alignment; only the result's
// own timestamp uses the wall clock.
func (v *Validator) Alignment(docs []Document) *Result {
	result := &Result{
		Documents: make(map[DocumentType]DocumentScore, len(docs)),
		Timestamp: time.Now(),
	}

	present := make(map[DocumentType]bool, len(docs))
	var sum float64
	for _, doc := range docs {
		present[doc.Type] = true

		score := DocumentScore{Axes: make(map[Axis]float64, len(allAxes))}
		var axisSum float64
		for _, axis := range allAxes {
			s := axisScore(doc.Content, axis)
			score.Axes[axis] = s
			axisSum += s
		}
		score.Average = axisSum / float64(len(allAxes))
		result.Documents[doc.Type] = score
		sum += score.Average
	}
	if len(docs) > 0 {
		result.OverallAlignment = sum / float64(len(docs))
	}

	// Dependency check, independent of the score. Fixed iteration order keeps
	// the issue list deterministic.
	for _, docType := range []DocumentType{DocumentTypeProduct, DocumentTypeStructure, DocumentTypeTech} {
		if !present[docType] {
			continue
		}
		for _, dep := range dependencies[docType] {
			if !present[dep] {
				result.Issues = append(result.Issues,
					fmt.Sprintf("%s document present without its %s dependency", docType, dep))
			}
		}
	}

	if result.OverallAlignment < overallThreshold {
		result.Issues = append(result.Issues,
			fmt.Sprintf("overall alignment %.2f is below recommended threshold %.2f",
				result.OverallAlignment, overallThreshold))
	}
	for _, docType := range []DocumentType{DocumentTypeProduct, DocumentTypeStructure, DocumentTypeTech} {
		score, ok := result.Documents[docType]
		if !ok {
			continue
		}
		if score.Average < documentThreshold {
			result.Recommendations = append(result.Recommendations,
				fmt.Sprintf("improve the %s document: average alignment %.2f is below %.2f",
					docType, score.Average, documentThreshold))
		}
	}

	return result
}
