package task

import "testing"

func TestDeriveStrategy(t *testing.T) {
	cases := []struct {
		taskType Type
		priority Priority
		want     Strategy
	}{
		{TypeSpec, PriorityCritical, StrategySequential},
		{TypeImplementation, PriorityCritical, StrategySequential},
		{TypeImplementation, PriorityHigh, StrategyParallel},
		{TypeReview, PriorityMedium, StrategyConsensus},
		{TypeSpec, PriorityMedium, StrategyAdaptive},
		{TypeDesign, PriorityLow, StrategyAdaptive},
		{TypeTest, PriorityHigh, StrategyAdaptive},
	}

	for _, tc := range cases {
		if got := deriveStrategy(tc.taskType, tc.priority); got != tc.want {
			t.Errorf("deriveStrategy(%s, %s) = %s, want %s", tc.taskType, tc.priority, got, tc.want)
		}
	}
}

func TestDeriveConsensus(t *testing.T) {
	cases := []struct {
		taskType Type
		priority Priority
		enabled  bool
		want     bool
	}{
		{TypeSpec, PriorityMedium, true, true},
		{TypeDesign, PriorityLow, true, true},
		{TypeImplementation, PriorityCritical, true, true},
		{TypeImplementation, PriorityHigh, true, false},
		{TypeTest, PriorityMedium, true, false},
		{TypeSpec, PriorityCritical, false, false},
	}

	for _, tc := range cases {
		if got := deriveConsensus(tc.taskType, tc.priority, tc.enabled); got != tc.want {
			t.Errorf("deriveConsensus(%s, %s, %v) = %v, want %v",
				tc.taskType, tc.priority, tc.enabled, got, tc.want)
		}
	}
}

func TestDeriveMaxAgents(t *testing.T) {
	if got := deriveMaxAgents(TypeImplementation); got != 4 {
		t.Errorf("implementation max agents = %d, want 4", got)
	}
	if got := deriveMaxAgents(Type("unknown")); got != defaultMaxAgents {
		t.Errorf("unknown type max agents = %d, want %d", got, defaultMaxAgents)
	}
}

func TestDeriveCapabilitiesReturnsCopy(t *testing.T) {
	caps := deriveCapabilities(TypeSpec)
	if len(caps) == 0 {
		t.Fatal("expected capabilities for spec tasks")
	}
	caps[0] = "mutated"
	if capabilitiesByType[TypeSpec][0] == "mutated" {
		t.Error("mutating derived capabilities leaked into the defaults table")
	}
}
