package task

// maxAgentsByType bounds how many agents may work a task of each type.
var maxAgentsByType = map[Type]int{
	TypeSpec:           2,
	TypeDesign:         3,
	TypeImplementation: 4,
	TypeTest:           2,
	TypeReview:         3,
}

// defaultMaxAgents applies when a task type has no explicit bound.
const defaultMaxAgents = 2

// capabilitiesByType maps task types to the capability tags an executing
// agent must carry.
var capabilitiesByType = map[Type][]string{
	TypeSpec:           {"requirements_analysis", "user_story_creation"},
	TypeDesign:         {"system_architecture", "api_design"},
	TypeImplementation: {"code_generation", "refactoring"},
	TypeTest:           {"test_design", "test_automation"},
	TypeReview:         {"code_review", "quality_assessment"},
}

// deriveStrategy selects the execution strategy from type and priority.
// Critical work is always serialized; implementation fans out; reviews need
// agreement; everything else adapts at dispatch time.
func deriveStrategy(taskType Type, priority Priority) Strategy {
	switch {
	case priority == PriorityCritical:
		return StrategySequential
	case taskType == TypeImplementation:
		return StrategyParallel
	case taskType == TypeReview:
		return StrategyConsensus
	default:
		return StrategyAdaptive
	}
}

// deriveConsensus reports whether a task requires multi-reviewer agreement.
// Only meaningful when consensus is globally enabled.
func deriveConsensus(taskType Type, priority Priority, consensusEnabled bool) bool {
	if !consensusEnabled {
		return false
	}
	return taskType == TypeSpec || taskType == TypeDesign || priority == PriorityCritical
}

// deriveMaxAgents returns the agent bound for a task type.
func deriveMaxAgents(taskType Type) int {
	if n, ok := maxAgentsByType[taskType]; ok {
		return n
	}
	return defaultMaxAgents
}

// deriveCapabilities returns a copy of the capability tags for a task type.
func deriveCapabilities(taskType Type) []string {
	caps, ok := capabilitiesByType[taskType]
	if !ok {
		return nil
	}
	return append([]string(nil), caps...)
}
