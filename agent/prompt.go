package agent

import (
	"strings"

	"github.com/c360studio/foreman/task"
)

// systemPrompts are the per-phase instructions sent with every request.
// Each asks for structured markdown so the quality gate has something to
// measure.
var systemPrompts = map[task.Type]string{
	task.TypeSpec: "You are a requirements analyst. Produce a specification " +
		"document in markdown with a top-level title, a '## Requirements' " +
		"section, and bullet lists of concrete, testable requirements.",
	task.TypeDesign: "You are a software architect. Produce a design document " +
		"in markdown with a top-level title, an '## Architecture' section, and " +
		"bullet lists describing components and their interactions.",
	task.TypeImplementation: "You are a senior engineer. Produce an " +
		"implementation plan in markdown with a top-level title, section " +
		"headings, and bullet lists of concrete work items.",
	task.TypeTest: "You are a test engineer. Produce a test plan in markdown " +
		"with a top-level title, a '## Test Cases' section, and bullet lists " +
		"of individual test cases with expected outcomes.",
	task.TypeReview: "You are a code reviewer. Produce a review report in " +
		"markdown with a top-level title, section headings, and bullet lists " +
		"of findings ordered by severity.",
}

// BuildMessages assembles the chat history for a generation request. The
// agent hint, when present, narrows the system instruction to a specific
// capability.
func BuildMessages(prompt string, docType task.Type, agentHint string) []Message {
	system, ok := systemPrompts[docType]
	if !ok {
		system = systemPrompts[task.TypeSpec]
	}
	if agentHint != "" {
		system += " Focus on " + strings.ReplaceAll(agentHint, "_", " ") + "."
	}

	return []Message{
		{Role: "system", Content: system},
		{Role: "user", Content: prompt},
	}
}
