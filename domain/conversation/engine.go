package conversation

import (
	"strings"
	"time"

	"github.com/Skozial17/supportchat/domain/core/entities"
	"github.com/Skozial17/supportchat/domain/core/valueobjects"
	pkgerrors "github.com/Skozial17/supportchat/pkg/errors"
)

// Transition is the outcome of one user action.
type Transition struct {
	From     string
	Next     string
	Messages []*entities.Message
	// Completed is set when the traversal is over: the cursor reached End,
	// or a completion step under CompleteFinalize.
	Completed bool
}

// Engine walks a Graph. It holds no per-session state: the same inputs
// always yield the same transition content.
type Engine struct {
	graph  *Graph
	userID string
	now    func() time.Time
}

// EngineOption configures an Engine
type EngineOption func(*Engine)

// WithUserID attributes end-user messages to the given user.
func WithUserID(userID string) EngineOption {
	return func(e *Engine) { e.userID = userID }
}

// WithClock overrides the message timestamp source.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

// NewEngine creates an engine over graph.
func NewEngine(graph *Graph, opts ...EngineOption) *Engine {
	e := &Engine{graph: graph, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Graph returns the graph the engine walks.
func (e *Engine) Graph() *Graph {
	return e.graph
}

// Start returns the start step and the system message carrying its prompt.
func (e *Engine) Start() (Step, *entities.Message) {
	step := e.graph.steps[e.graph.start].clone()
	return step, e.systemMessage(step.Prompt)
}

// SelectOption applies an option choice on stepID. The option mapping wins
// over the step default; with neither the conversation ends.
func (e *Engine) SelectOption(stepID, option string) (Transition, error) {
	step, err := e.graph.Lookup(stepID)
	if err != nil {
		return Transition{}, err
	}
	if !step.HasOption(option) {
		return Transition{}, pkgerrors.NewInvalidOptionError(stepID, option)
	}

	next, ok := step.Next[option]
	if !ok {
		next = step.Default
	}
	return e.arrive(stepID, next, e.userMessage(option))
}

// SubmitInput applies free text on a step that asks for it. The option
// mapping is never consulted.
func (e *Engine) SubmitInput(stepID, text string) (Transition, error) {
	step, err := e.graph.Lookup(stepID)
	if err != nil {
		return Transition{}, err
	}
	if !step.RequiresInput {
		return Transition{}, pkgerrors.NewInputNotExpectedError(stepID)
	}
	if strings.TrimSpace(text) == "" {
		return Transition{}, pkgerrors.NewEmptyInputError(stepID)
	}
	return e.arrive(stepID, step.Default, e.userMessage(text))
}

func (e *Engine) arrive(from, next string, echo *entities.Message) (Transition, error) {
	if next == "" {
		next = End
	}
	t := Transition{From: from, Next: next, Messages: []*entities.Message{echo}}
	if next == End {
		t.Completed = true
		return t, nil
	}

	step, err := e.graph.Lookup(next)
	if err != nil {
		return Transition{}, err
	}
	t.Messages = append(t.Messages, e.systemMessage(step.Prompt))
	if !step.IsCompletion() {
		return t, nil
	}

	if e.graph.onComplete == CompleteFinalize {
		t.Completed = true
		return t, nil
	}

	// CompleteRestart: loop into the default, or stop for good without one.
	if step.Default == "" || step.Default == End {
		t.Next = End
		t.Completed = true
		return t, nil
	}
	target, err := e.graph.Lookup(step.Default)
	if err != nil {
		return Transition{}, err
	}
	t.Next = target.ID
	t.Messages = append(t.Messages, e.systemMessage(target.Prompt))
	return t, nil
}

func (e *Engine) systemMessage(text string) *entities.Message {
	return entities.NewMessage(text, valueobjects.SenderSystem, "", e.now())
}

func (e *Engine) userMessage(text string) *entities.Message {
	return entities.NewMessage(text, valueobjects.SenderEndUser, e.userID, e.now())
}
