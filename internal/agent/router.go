package agent

import (
	"strings"
)

// PersonaTag identifies a persona profile.
type PersonaTag string

// Persona tags, in routing priority order.
const (
	PersonaRoot          PersonaTag = "ROOT"
	PersonaArchitect     PersonaTag = "ARCHITECT"
	PersonaDeveloper     PersonaTag = "DEVELOPER"
	PersonaDebugger      PersonaTag = "DEBUGGER"
	PersonaGitSpecialist PersonaTag = "GIT_SPECIALIST"
)

// routingRule maps a keyword set to a persona. Rules are evaluated in
// order; the first rule with any matching keyword wins.
type routingRule struct {
	tag      PersonaTag
	keywords []string
}

var routingRules = []routingRule{
	{PersonaArchitect, []string{"design", "architecture", "plan"}},
	{PersonaDeveloper, []string{"write", "code", "create", "function", "component"}},
	{PersonaDebugger, []string{"fix", "error", "debug", "fail"}},
	{PersonaGitSpecialist, []string{"git", "repo", "commit", "push"}},
}

// Classify maps a raw instruction to a persona by case-insensitive
// substring match. It is deterministic and makes no network calls;
// instructions matching no rule fall back to ROOT.
func Classify(instruction string) PersonaTag {
	lower := strings.ToLower(instruction)
	for _, rule := range routingRules {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				return rule.tag
			}
		}
	}
	return PersonaRoot
}
