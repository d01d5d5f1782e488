package workflow

import (
	"fmt"

	"github.com/papercomputeco/ragchat/pkg/conversation"
)

// Policy selects how the engine routes a turn through the graph.
type Policy string

const (
	// PolicyGrading always retrieves first and grades each context before
	// deciding between Generate, SearchWeb and Fallback.
	PolicyGrading Policy = "grading"

	// PolicyFanout runs the nodes selected by the turn's scope and web
	// search flag concurrently, then always generates.
	PolicyFanout Policy = "fanout"
)

// ParsePolicy validates a configured policy name.
func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(s); p {
	case PolicyGrading, PolicyFanout:
		return p, nil
	case "":
		return PolicyFanout, nil
	default:
		return "", fmt.Errorf("unknown workflow policy %q (want %q or %q)", s, PolicyGrading, PolicyFanout)
	}
}

// entry returns the first node of a fresh turn.
func (p Policy) entry(state *conversation.State) NodeKind {
	if p == PolicyGrading {
		return KindRetrieveDocument
	}
	if sel := fanoutSelection(state); len(sel) > 0 {
		return sel[0]
	}
	return KindGenerate
}

// fanoutSelection returns the context nodes a fan-out step runs, in the fixed
// order their updates are applied.
func fanoutSelection(state *conversation.State) []NodeKind {
	var sel []NodeKind
	if state.FilePath != "" {
		sel = append(sel, KindRetrieveDocument)
	}
	if state.EnableWebSearch {
		sel = append(sel, KindSearchWeb)
	}
	return sel
}
