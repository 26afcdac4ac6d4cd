// Package conversation holds the scripted intake graph and the engine that walks it.
package conversation

import (
	"fmt"
	"strings"

	pkgerrors "github.com/Skozial17/supportchat/pkg/errors"
)

// End is the absorbing terminal marker. It is never a defined step.
const End = "end"

// CompletionPolicy decides what happens when the cursor reaches a completion step.
type CompletionPolicy string

const (
	// CompleteFinalize stops at the completion step and finalizes the session.
	CompleteFinalize CompletionPolicy = "finalize"
	// CompleteRestart follows the completion step's default and keeps going.
	CompleteRestart CompletionPolicy = "restart"
)

// Step is one node of a conversation graph.
type Step struct {
	ID            string            `yaml:"id" json:"id"`
	Prompt        string            `yaml:"prompt" json:"prompt"`
	Options       []string          `yaml:"options,omitempty" json:"options,omitempty"`
	RequiresInput bool              `yaml:"requires_input,omitempty" json:"requires_input,omitempty"`
	Placeholder   string            `yaml:"placeholder,omitempty" json:"placeholder,omitempty"`
	Next          map[string]string `yaml:"next,omitempty" json:"next,omitempty"`
	Default       string            `yaml:"default,omitempty" json:"default,omitempty"`
}

// HasOption reports whether option is one of the declared labels.
func (s Step) HasOption(option string) bool {
	for _, o := range s.Options {
		if o == option {
			return true
		}
	}
	return false
}

// IsCompletion reports whether the step offers nothing to act on.
func (s Step) IsCompletion() bool {
	return len(s.Options) == 0 && !s.RequiresInput
}

func (s Step) clone() Step {
	c := s
	c.Options = append([]string(nil), s.Options...)
	if s.Next != nil {
		c.Next = make(map[string]string, len(s.Next))
		for k, v := range s.Next {
			c.Next[k] = v
		}
	}
	return c
}

// Definition is the authored form of a graph, as decoded from the flow asset.
type Definition struct {
	Name       string           `yaml:"name" json:"name"`
	Title      string           `yaml:"title" json:"title"`
	Start      string           `yaml:"start" json:"start"`
	OnComplete CompletionPolicy `yaml:"on_complete" json:"on_complete"`
	Steps      []Step           `yaml:"steps" json:"steps"`
}

// Graph is a validated, immutable conversation graph shared by every session
// that runs it.
type Graph struct {
	name       string
	title      string
	start      string
	onComplete CompletionPolicy
	steps      map[string]Step
	order      []string
}

// NewGraph validates def and builds a Graph. Every problem found is reported
// at once in a single ErrInvalidGraph.
func NewGraph(def Definition) (*Graph, error) {
	var problems []string
	addf := func(format string, args ...interface{}) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	policy := def.OnComplete
	if policy == "" {
		policy = CompleteFinalize
	}
	if policy != CompleteFinalize && policy != CompleteRestart {
		addf("unknown on_complete policy %q", def.OnComplete)
	}
	if strings.TrimSpace(def.Name) == "" {
		addf("graph name is required")
	}
	if len(def.Steps) == 0 {
		addf("graph has no steps")
	}

	g := &Graph{
		name:       def.Name,
		title:      def.Title,
		start:      def.Start,
		onComplete: policy,
		steps:      make(map[string]Step, len(def.Steps)),
		order:      make([]string, 0, len(def.Steps)),
	}

	for _, s := range def.Steps {
		switch {
		case strings.TrimSpace(s.ID) == "":
			addf("step with prompt %q has no id", s.Prompt)
			continue
		case s.ID == End:
			addf("step id %q is reserved", End)
			continue
		}
		if _, dup := g.steps[s.ID]; dup {
			addf("step %q is defined twice", s.ID)
			continue
		}
		g.steps[s.ID] = s.clone()
		g.order = append(g.order, s.ID)
	}

	if def.Start == "" {
		addf("start step is required")
	} else if _, ok := g.steps[def.Start]; !ok {
		addf("start step %q is not defined", def.Start)
	}

	resolves := func(target string) bool {
		if target == End {
			return true
		}
		_, ok := g.steps[target]
		return ok
	}

	for _, id := range g.order {
		s := g.steps[id]
		if strings.TrimSpace(s.Prompt) == "" {
			addf("step %q has no prompt", id)
		}
		seen := make(map[string]bool, len(s.Options))
		for _, o := range s.Options {
			if strings.TrimSpace(o) == "" {
				addf("step %q has an empty option label", id)
			}
			if seen[o] {
				addf("step %q declares option %q twice", id, o)
			}
			seen[o] = true
		}
		for option, target := range s.Next {
			if !seen[option] {
				addf("step %q maps undeclared option %q", id, option)
			}
			if !resolves(target) {
				addf("step %q option %q targets undefined step %q", id, option, target)
			}
		}
		if s.Default != "" && !resolves(s.Default) {
			addf("step %q default targets undefined step %q", id, s.Default)
		}
		if policy == CompleteRestart && s.IsCompletion() && s.Default != "" && s.Default != End {
			if target, ok := g.steps[s.Default]; ok && target.IsCompletion() {
				addf("completion step %q restarts into completion step %q", id, s.Default)
			}
		}
	}

	if len(problems) > 0 {
		return nil, pkgerrors.NewInvalidGraphError(def.Name, problems)
	}
	return g, nil
}

// Lookup returns the step with the given id.
func (g *Graph) Lookup(stepID string) (Step, error) {
	s, ok := g.steps[stepID]
	if !ok {
		return Step{}, pkgerrors.NewUnknownStepError(stepID)
	}
	return s.clone(), nil
}

// Has reports whether stepID is a defined step or End.
func (g *Graph) Has(stepID string) bool {
	if stepID == End {
		return true
	}
	_, ok := g.steps[stepID]
	return ok
}

// Name returns the catalogue key of the graph.
func (g *Graph) Name() string { return g.name }

// Title returns the prefix used for case titles.
func (g *Graph) Title() string { return g.title }

// StartID returns the id of the first step.
func (g *Graph) StartID() string { return g.start }

// OnComplete returns what happens when a completion step is reached.
func (g *Graph) OnComplete() CompletionPolicy { return g.onComplete }

// Steps returns every step in authored order.
func (g *Graph) Steps() []Step {
	out := make([]Step, len(g.order))
	for i, id := range g.order {
		out[i] = g.steps[id].clone()
	}
	return out
}

// Definition returns the authored form, suitable for rendering clients.
func (g *Graph) Definition() Definition {
	return Definition{
		Name:       g.name,
		Title:      g.title,
		Start:      g.start,
		OnComplete: g.onComplete,
		Steps:      g.Steps(),
	}
}
